package domain

// Board identity is fixed at configuration time; boards are never created or
// destroyed at runtime.
type Board struct {
	Name        BoardName `yaml:"name" validate:"required"`
	DisplayName string    `yaml:"display_name" validate:"required"`
	Description string    `yaml:"description"`
}

package setup

import (
	"github.com/dn5s/lthread/internal/config"
	"github.com/dn5s/lthread/internal/handler"
	"github.com/dn5s/lthread/internal/service"
	"github.com/dn5s/lthread/internal/storage/pg"
)

// Dependencies holds all initialized components of the process.
type Dependencies struct {
	Storage *pg.Storage
	Handler *handler.Handler
	Limiter *service.RateLimiter
	Pruner  *service.Pruner
	Config  *config.Config
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(cfg)
	if err != nil {
		return nil, err
	}

	images, err := service.NewImage(&cfg.Public.Storage)
	if err != nil {
		return nil, err
	}

	sanitizer := service.NewTextSanitizer()
	board := service.NewBoard(storage, storage, storage, images, sanitizer, cfg)
	limiter := service.NewRateLimiter(storage)
	pruner := service.NewPruner(storage, board, &cfg.Public.Pruning, cfg.BoardNames())

	h := handler.New(board, pruner, cfg)

	return &Dependencies{
		Storage: storage,
		Handler: h,
		Limiter: limiter,
		Pruner:  pruner,
		Config:  cfg,
	}, nil
}

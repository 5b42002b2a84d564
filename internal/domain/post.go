package domain

import "time"

// Post is immutable once written. It is owned by exactly one thread; the
// thread holds the forward reference, the post never points back.
type Post struct {
	Id            PostId
	Text          PostText
	ImagePath     *string
	ThumbnailPath *string
	CreatedAt     time.Time
	Author        string // formatted display name, possibly with tripcode suffix
}

// PostCreationData carries validated input through the write path:
// handler -> service -> storage.
type PostCreationData struct {
	Text      PostText
	NameInput string
	Image     *PendingImage
}

// PendingImage is a raw upload that has not passed the image collaborator yet.
type PendingImage struct {
	Filename string
	Data     []byte
}

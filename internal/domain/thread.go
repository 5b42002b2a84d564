package domain

import "time"

// Thread holds board membership and the ordered post sequence.
// PostIds[0] is the OP; a stored thread always has at least one post id.
type Thread struct {
	Id        ThreadId
	Board     BoardName
	PostIds   PostIds
	CreatedAt time.Time
}

func (t *Thread) ReplyCount() int {
	return len(t.PostIds) - 1
}

func (t *Thread) OpPostId() PostId {
	return t.PostIds[0]
}

// ThreadPreview is one entry of a paginated board listing: the OP plus the
// most recent replies.
type ThreadPreview struct {
	Id             ThreadId
	Op             *Post
	PreviewReplies []*Post
	ReplyCount     int
	LastPostTime   time.Time
}

// ThreadList is a single page of a board.
type ThreadList struct {
	Board        BoardName
	Threads      []ThreadPreview
	CurrentPage  int
	TotalPages   int
	TotalThreads int
}

// ThreadDetail is a fully hydrated thread.
type ThreadDetail struct {
	Id           ThreadId
	Board        BoardName
	Posts        []*Post
	ReplyCount   int
	CreatedAt    time.Time
	LastPostTime time.Time
}

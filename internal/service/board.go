package service

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/dn5s/lthread/internal/config"
	"github.com/dn5s/lthread/internal/domain"
	internal_errors "github.com/dn5s/lthread/internal/errors"
	"github.com/dn5s/lthread/internal/logger"
)

// PostStorage persists individual post records in the shared store.
type PostStorage interface {
	// NextPostId atomically increments the shared post counter. Values are
	// strictly increasing and unique across processes.
	NextPostId(ctx context.Context) (domain.PostId, error)
	SavePost(ctx context.Context, post *domain.Post) error
	GetPost(ctx context.Context, id domain.PostId) (*domain.Post, error)
	// GetPosts hydrates ids in the given order, silently skipping any id
	// that no longer resolves.
	GetPosts(ctx context.Context, ids domain.PostIds) ([]*domain.Post, error)
	DeletePost(ctx context.Context, id domain.PostId) error
}

// ThreadStorage persists thread records: board membership plus the ordered
// post-id sequence.
type ThreadStorage interface {
	NextThreadId(ctx context.Context) (domain.ThreadId, error)
	// CreateThread persists the OP post, the thread record and the board
	// index entry so that no reader can observe the thread without its OP.
	CreateThread(ctx context.Context, id domain.ThreadId, board domain.BoardName, op *domain.Post, score int64) error
	GetThread(ctx context.Context, id domain.ThreadId) (domain.Thread, error)
	// AppendPost appends one post id to the thread's sequence, order-preserving.
	AppendPost(ctx context.Context, id domain.ThreadId, postId domain.PostId) error
	// DeleteThread removes the thread record and its board index entry.
	DeleteThread(ctx context.Context, board domain.BoardName, id domain.ThreadId) error
}

// BoardIndex is the per-board ordering structure mapping thread id to its
// last-activity score. It drives both pagination and eviction selection.
type BoardIndex interface {
	// BumpThread raises the thread's activity score to max(current, score);
	// scores never decrease.
	BumpThread(ctx context.Context, board domain.BoardName, id domain.ThreadId, score int64) error
	// RecentThreadIds returns one page of thread ids ordered by descending
	// activity score. Pages are 1-based.
	RecentThreadIds(ctx context.Context, board domain.BoardName, page, pageSize int) ([]domain.ThreadId, error)
	ThreadCount(ctx context.Context, board domain.BoardName) (int, error)
	// OldestThreadIds returns up to count thread ids from the tail of the
	// index, oldest first.
	OldestThreadIds(ctx context.Context, board domain.BoardName, count int) ([]domain.ThreadId, error)
}

// Board composes the stores into the board-facing operations: thread
// creation, replies, paginated listings, detail views and deletion.
type Board struct {
	posts     PostStorage
	threads   ThreadStorage
	index     BoardIndex
	images    ImageStore
	sanitizer *TextSanitizer
	cfg       *config.Config
	now       func() time.Time
}

func NewBoard(posts PostStorage, threads ThreadStorage, index BoardIndex, images ImageStore, sanitizer *TextSanitizer, cfg *config.Config) *Board {
	return &Board{
		posts:     posts,
		threads:   threads,
		index:     index,
		images:    images,
		sanitizer: sanitizer,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Boards returns the configured board set.
func (b *Board) Boards() []domain.Board {
	return b.cfg.Public.Boards
}

// CreateThread runs the full thread write path. The OP post, thread record
// and index entry become visible atomically; on failure after the image was
// stored, the image is released again.
func (b *Board) CreateThread(ctx context.Context, board domain.BoardName, data domain.PostCreationData) (domain.Thread, error) {
	if !b.cfg.BoardExists(board) {
		return domain.Thread{}, internal_errors.InvalidBoard
	}
	if err := b.validateText(data.Text); err != nil {
		return domain.Thread{}, err
	}
	if data.Image == nil || len(data.Image.Data) == 0 {
		return domain.Thread{}, internal_errors.ImageRequired
	}

	imagePath, thumbnailPath, err := b.images.Store(data.Image)
	if err != nil {
		return domain.Thread{}, err
	}

	now := b.now()
	post := &domain.Post{
		Text:          b.sanitizer.SanitizeText(data.Text),
		ImagePath:     &imagePath,
		ThumbnailPath: &thumbnailPath,
		CreatedAt:     now,
		Author:        b.formatAuthor(data.NameInput),
	}

	post.Id, err = b.posts.NextPostId(ctx)
	if err != nil {
		b.releaseImage(imagePath)
		return domain.Thread{}, err
	}
	threadId, err := b.threads.NextThreadId(ctx)
	if err != nil {
		b.releaseImage(imagePath)
		return domain.Thread{}, err
	}
	if err := b.threads.CreateThread(ctx, threadId, board, post, now.Unix()); err != nil {
		b.releaseImage(imagePath)
		return domain.Thread{}, err
	}

	return domain.Thread{
		Id:        threadId,
		Board:     board,
		PostIds:   domain.PostIds{post.Id},
		CreatedAt: now,
	}, nil
}

// PostReply appends a post to an existing thread and bumps it. Append and
// bump are two store operations applied in that order; if the bump fails the
// reply still stands and the thread's listing position is stale until the
// next reply. That staleness is an accepted trade-off, not corruption.
func (b *Board) PostReply(ctx context.Context, threadId domain.ThreadId, data domain.PostCreationData) (*domain.Post, error) {
	thread, err := b.threads.GetThread(ctx, threadId)
	if err != nil {
		return nil, err
	}
	if err := b.validateText(data.Text); err != nil {
		return nil, err
	}

	// Image is optional for replies.
	var imagePath, thumbnailPath *string
	if data.Image != nil && len(data.Image.Data) > 0 {
		img, thumb, err := b.images.Store(data.Image)
		if err != nil {
			return nil, err
		}
		imagePath, thumbnailPath = &img, &thumb
	}

	now := b.now()
	post := &domain.Post{
		Text:          b.sanitizer.SanitizeText(data.Text),
		ImagePath:     imagePath,
		ThumbnailPath: thumbnailPath,
		CreatedAt:     now,
		Author:        b.formatAuthor(data.NameInput),
	}
	post.Id, err = b.posts.NextPostId(ctx)
	if err != nil {
		b.releaseOptional(imagePath)
		return nil, err
	}
	if err := b.posts.SavePost(ctx, post); err != nil {
		b.releaseOptional(imagePath)
		return nil, err
	}

	if err := b.threads.AppendPost(ctx, threadId, post.Id); err != nil {
		// Thread may have been pruned between resolve and append. The post
		// is orphaned garbage at this point, drop its image too.
		b.releaseOptional(imagePath)
		return nil, err
	}

	if err := b.index.BumpThread(ctx, thread.Board, threadId, now.Unix()); err != nil {
		logger.Log.Warn("reply stored but bump failed, thread listing is stale",
			"thread", threadId, "board", thread.Board, "error", err)
	}

	return post, nil
}

// GetThreadList returns one page of a board ordered by descending activity,
// each thread carrying its OP and the most recent preview replies.
func (b *Board) GetThreadList(ctx context.Context, board domain.BoardName, page int) (domain.ThreadList, error) {
	if !b.cfg.BoardExists(board) {
		return domain.ThreadList{}, internal_errors.InvalidBoard
	}
	if page < 1 {
		page = 1
	}

	pageSize := b.cfg.Public.Thread.PageSize
	ids, err := b.index.RecentThreadIds(ctx, board, page, pageSize)
	if err != nil {
		return domain.ThreadList{}, err
	}

	previews := make([]domain.ThreadPreview, 0, len(ids))
	for _, id := range ids {
		preview, err := b.buildPreview(ctx, id)
		if err != nil {
			if err == internal_errors.ThreadNotFound {
				// Evicted between index read and hydration.
				continue
			}
			return domain.ThreadList{}, err
		}
		previews = append(previews, preview)
	}

	total, err := b.index.ThreadCount(ctx, board)
	if err != nil {
		return domain.ThreadList{}, err
	}

	return domain.ThreadList{
		Board:        board,
		Threads:      previews,
		CurrentPage:  page,
		TotalPages:   (total + pageSize - 1) / pageSize,
		TotalThreads: total,
	}, nil
}

func (b *Board) buildPreview(ctx context.Context, id domain.ThreadId) (domain.ThreadPreview, error) {
	thread, err := b.threads.GetThread(ctx, id)
	if err != nil {
		return domain.ThreadPreview{}, err
	}
	posts, err := b.posts.GetPosts(ctx, thread.PostIds)
	if err != nil {
		return domain.ThreadPreview{}, err
	}

	preview := domain.ThreadPreview{
		Id:         id,
		ReplyCount: thread.ReplyCount(),
	}
	if len(posts) == 0 {
		return preview, nil
	}

	preview.Op = posts[0]
	preview.LastPostTime = posts[len(posts)-1].CreatedAt

	// Most recent replies, kept in original order.
	replies := posts[1:]
	if n := b.cfg.Public.Thread.PreviewReplies; len(replies) > n {
		replies = replies[len(replies)-n:]
	}
	preview.PreviewReplies = replies
	return preview, nil
}

// GetThreadDetail hydrates every post of a thread. Post ids that no longer
// resolve are skipped rather than failing the whole request.
func (b *Board) GetThreadDetail(ctx context.Context, threadId domain.ThreadId) (domain.ThreadDetail, error) {
	thread, err := b.threads.GetThread(ctx, threadId)
	if err != nil {
		return domain.ThreadDetail{}, err
	}
	posts, err := b.posts.GetPosts(ctx, thread.PostIds)
	if err != nil {
		return domain.ThreadDetail{}, err
	}

	detail := domain.ThreadDetail{
		Id:         threadId,
		Board:      thread.Board,
		Posts:      posts,
		ReplyCount: thread.ReplyCount(),
		CreatedAt:  thread.CreatedAt,
	}
	if len(posts) > 0 {
		detail.CreatedAt = posts[0].CreatedAt
		detail.LastPostTime = posts[len(posts)-1].CreatedAt
	}
	return detail, nil
}

// DeleteThread removes a thread with all its posts and media. Only the
// pruning engine and the admin trigger call this; there is no user-facing
// deletion.
func (b *Board) DeleteThread(ctx context.Context, threadId domain.ThreadId) error {
	thread, err := b.threads.GetThread(ctx, threadId)
	if err != nil {
		return err
	}

	for _, postId := range thread.PostIds {
		post, err := b.posts.GetPost(ctx, postId)
		if err != nil {
			if err != internal_errors.PostNotFound {
				logger.Log.Warn("failed to fetch post during thread deletion",
					"thread", threadId, "post", postId, "error", err)
			}
		} else if post.ImagePath != nil {
			b.releaseImage(*post.ImagePath)
		}
		if err := b.posts.DeletePost(ctx, postId); err != nil {
			logger.Log.Warn("failed to delete post",
				"thread", threadId, "post", postId, "error", err)
		}
	}

	return b.threads.DeleteThread(ctx, thread.Board, threadId)
}

func (b *Board) validateText(text domain.PostText) error {
	if text == "" {
		return internal_errors.TextEmpty
	}
	if utf8.RuneCountInString(text) > b.cfg.Public.MaxTextLength {
		return internal_errors.TextTooLong
	}
	return nil
}

func (b *Board) formatAuthor(nameInput string) string {
	name, tripcode := DeriveTripcode(b.sanitizer.SanitizeName(nameInput))
	return FormatDisplayName(name, tripcode)
}

func (b *Board) releaseImage(path string) {
	if err := b.images.Release(path); err != nil {
		logger.Log.Warn("failed to release image", "path", path, "error", err)
	}
}

func (b *Board) releaseOptional(path *string) {
	if path != nil {
		b.releaseImage(*path)
	}
}

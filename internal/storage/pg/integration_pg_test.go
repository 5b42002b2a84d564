package pg

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dn5s/lthread/internal/config"
	"github.com/dn5s/lthread/internal/domain"
	internal_errors "github.com/dn5s/lthread/internal/errors"
	"github.com/dn5s/lthread/internal/service"
)

var storage *Storage

func TestMain(m *testing.M) {
	ctx := context.Background()
	var container *postgres.PostgresContainer
	storage, container = mustSetup(ctx)
	defer teardown(ctx, storage, container)

	exitCode := m.Run()
	os.Exit(exitCode)
}

func mustSetup(ctx context.Context) (*Storage, *postgres.PostgresContainer) {
	dbName := "lthread"
	dbUser := "user"
	dbPassword := "password"
	container, err := postgres.Run(ctx,
		"postgres:15.3-alpine",
		postgres.WithInitScripts(filepath.Join("migrations", "init.sql")),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			// The container restarts itself once during init, so wait for
			// the readiness log twice.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start container: %s", err)
	}
	containerPort, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("failed to obtain container port: %s", err)
	}
	port, err := strconv.Atoi(containerPort.Port())
	if err != nil {
		log.Fatalf("failed to obtain int container port: %s", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("failed to obtain container host: %s", err)
	}

	storage, err := New(&config.Config{
		Public:  config.Public{StoreTimeout: 5 * time.Second},
		Private: config.Private{Pg: config.Pg{Host: host, Port: port, User: dbUser, Password: dbPassword, Dbname: dbName}},
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres container: %s", err)
	}
	return storage, container
}

func teardown(ctx context.Context, storage *Storage, container *postgres.PostgresContainer) {
	if err := storage.Cleanup(); err != nil {
		log.Printf("failed to close storage connection: %s", err)
	}
	if err := container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate container: %s", err)
	}
}

func newPost(t *testing.T, text string) *domain.Post {
	t.Helper()
	id, err := storage.NextPostId(context.Background())
	require.NoError(t, err)
	return &domain.Post{
		Id:        id,
		Text:      text,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Author:    "Anonymous",
	}
}

// mustCreateThread persists a fresh thread with one OP post on the given
// board and returns it.
func mustCreateThread(t *testing.T, board domain.BoardName, score int64) (domain.ThreadId, *domain.Post) {
	t.Helper()
	ctx := context.Background()

	op := newPost(t, "op post")
	threadId, err := storage.NextThreadId(ctx)
	require.NoError(t, err)
	require.NoError(t, storage.CreateThread(ctx, threadId, board, op, score))
	return threadId, op
}

func TestNextIds(t *testing.T) {
	ctx := context.Background()

	t.Run("strictly increasing", func(t *testing.T) {
		first, err := storage.NextPostId(ctx)
		require.NoError(t, err)
		second, err := storage.NextPostId(ctx)
		require.NoError(t, err)
		assert.Greater(t, second, first)
	})

	t.Run("post and thread counters are independent", func(t *testing.T) {
		postId, err := storage.NextPostId(ctx)
		require.NoError(t, err)
		_, err = storage.NextThreadId(ctx)
		require.NoError(t, err)
		nextPostId, err := storage.NextPostId(ctx)
		require.NoError(t, err)

		assert.Equal(t, postId+1, nextPostId)
	})

	t.Run("concurrent callers get unique ids", func(t *testing.T) {
		const callers = 20
		ids := make(chan domain.PostId, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := storage.NextPostId(ctx)
				assert.NoError(t, err)
				ids <- id
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[domain.PostId]bool)
		for id := range ids {
			assert.False(t, seen[id], "id %d issued twice", id)
			seen[id] = true
		}
		assert.Len(t, seen, callers)
	})
}

func TestCreateAndGetThread(t *testing.T) {
	ctx := context.Background()
	threadId, op := mustCreateThread(t, "create-board", 100)

	thread, err := storage.GetThread(ctx, threadId)
	require.NoError(t, err)
	assert.Equal(t, domain.BoardName("create-board"), thread.Board)
	require.Len(t, thread.PostIds, 1)
	assert.Equal(t, op.Id, thread.PostIds[0])
	assert.WithinDuration(t, op.CreatedAt, thread.CreatedAt, time.Millisecond)

	fetched, err := storage.GetPost(ctx, op.Id)
	require.NoError(t, err)
	assert.Equal(t, op.Text, fetched.Text)
	assert.Equal(t, op.Author, fetched.Author)

	ids, err := storage.RecentThreadIds(ctx, "create-board", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.ThreadId{threadId}, ids)
}

func TestGetThreadMissing(t *testing.T) {
	_, err := storage.GetThread(context.Background(), 999999999)
	assert.ErrorIs(t, err, internal_errors.ThreadNotFound)
}

func TestGetPostMissing(t *testing.T) {
	_, err := storage.GetPost(context.Background(), 999999999)
	assert.ErrorIs(t, err, internal_errors.PostNotFound)
}

func TestAppendPost(t *testing.T) {
	ctx := context.Background()

	t.Run("preserves sequence order", func(t *testing.T) {
		threadId, op := mustCreateThread(t, "append-board", 100)

		first := newPost(t, "first reply")
		require.NoError(t, storage.SavePost(ctx, first))
		require.NoError(t, storage.AppendPost(ctx, threadId, first.Id))

		second := newPost(t, "second reply")
		require.NoError(t, storage.SavePost(ctx, second))
		require.NoError(t, storage.AppendPost(ctx, threadId, second.Id))

		thread, err := storage.GetThread(ctx, threadId)
		require.NoError(t, err)
		assert.Equal(t, domain.PostIds{op.Id, first.Id, second.Id}, thread.PostIds)
	})

	t.Run("missing thread", func(t *testing.T) {
		err := storage.AppendPost(ctx, 999999999, 1)
		assert.ErrorIs(t, err, internal_errors.ThreadNotFound)
	})

	t.Run("concurrent appends all land", func(t *testing.T) {
		threadId, _ := mustCreateThread(t, "append-race-board", 100)

		const replies = 10
		posts := make([]*domain.Post, replies)
		for i := range posts {
			posts[i] = newPost(t, "racing reply")
			require.NoError(t, storage.SavePost(ctx, posts[i]))
		}

		var wg sync.WaitGroup
		for _, post := range posts {
			wg.Add(1)
			go func(id domain.PostId) {
				defer wg.Done()
				assert.NoError(t, storage.AppendPost(ctx, threadId, id))
			}(post.Id)
		}
		wg.Wait()

		thread, err := storage.GetThread(ctx, threadId)
		require.NoError(t, err)
		assert.Len(t, thread.PostIds, replies+1)
	})
}

func TestGetPosts(t *testing.T) {
	ctx := context.Background()

	first := newPost(t, "a")
	second := newPost(t, "b")
	require.NoError(t, storage.SavePost(ctx, first))
	require.NoError(t, storage.SavePost(ctx, second))

	t.Run("returns posts in requested order", func(t *testing.T) {
		posts, err := storage.GetPosts(ctx, domain.PostIds{second.Id, first.Id})
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, second.Id, posts[0].Id)
		assert.Equal(t, first.Id, posts[1].Id)
	})

	t.Run("skips unresolvable ids", func(t *testing.T) {
		posts, err := storage.GetPosts(ctx, domain.PostIds{first.Id, 999999999, second.Id})
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, first.Id, posts[0].Id)
		assert.Equal(t, second.Id, posts[1].Id)
	})

	t.Run("empty input", func(t *testing.T) {
		posts, err := storage.GetPosts(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, posts)
	})
}

func TestBoardIndex(t *testing.T) {
	ctx := context.Background()
	board := domain.BoardName("index-board")

	t1, _ := mustCreateThread(t, board, 100)
	t2, _ := mustCreateThread(t, board, 200)
	t3, _ := mustCreateThread(t, board, 300)

	t.Run("recent ordering is by descending score", func(t *testing.T) {
		ids, err := storage.RecentThreadIds(ctx, board, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []domain.ThreadId{t3, t2, t1}, ids)
	})

	t.Run("bump reorders", func(t *testing.T) {
		require.NoError(t, storage.BumpThread(ctx, board, t1, 400))
		ids, err := storage.RecentThreadIds(ctx, board, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []domain.ThreadId{t1, t3, t2}, ids)
	})

	t.Run("score never decreases", func(t *testing.T) {
		require.NoError(t, storage.BumpThread(ctx, board, t1, 50))
		ids, err := storage.RecentThreadIds(ctx, board, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, domain.ThreadId(t1), ids[0], "stale bump must not demote the thread")
	})

	t.Run("equal scores tie-break by newest thread id", func(t *testing.T) {
		require.NoError(t, storage.BumpThread(ctx, board, t2, 400))
		require.NoError(t, storage.BumpThread(ctx, board, t3, 400))
		ids, err := storage.RecentThreadIds(ctx, board, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []domain.ThreadId{t3, t2, t1}, ids)
	})

	t.Run("pagination windows do not overlap", func(t *testing.T) {
		page1, err := storage.RecentThreadIds(ctx, board, 1, 2)
		require.NoError(t, err)
		page2, err := storage.RecentThreadIds(ctx, board, 2, 2)
		require.NoError(t, err)

		assert.Len(t, page1, 2)
		assert.Len(t, page2, 1)
		assert.NotContains(t, page1, page2[0])
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		ids, err := storage.RecentThreadIds(ctx, board, 99, 10)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("thread count", func(t *testing.T) {
		count, err := storage.ThreadCount(ctx, board)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("oldest come back in ascending activity", func(t *testing.T) {
		ids, err := storage.OldestThreadIds(ctx, board, 2)
		require.NoError(t, err)
		assert.Equal(t, []domain.ThreadId{t1, t2}, ids)
	})
}

func TestDeleteThread(t *testing.T) {
	ctx := context.Background()
	board := domain.BoardName("delete-board")
	threadId, op := mustCreateThread(t, board, 100)

	require.NoError(t, storage.DeleteThread(ctx, board, threadId))

	_, err := storage.GetThread(ctx, threadId)
	assert.ErrorIs(t, err, internal_errors.ThreadNotFound)

	count, err := storage.ThreadCount(ctx, board)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Post rows are removed separately by the service layer.
	require.NoError(t, storage.DeletePost(ctx, op.Id))

	err = storage.DeleteThread(ctx, board, threadId)
	assert.ErrorIs(t, err, internal_errors.ThreadNotFound)
}

func TestRateBuckets(t *testing.T) {
	ctx := context.Background()
	refill := time.Unix(1700000000, 123456789)

	t.Run("insert wins exactly once", func(t *testing.T) {
		state := service.BucketState{Tokens: 5, LastRefill: refill}
		inserted, err := storage.InsertBucket(ctx, "9.9.9.1", service.ActionGeneral, state)
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = storage.InsertBucket(ctx, "9.9.9.1", service.ActionGeneral, state)
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	t.Run("state round trips exactly", func(t *testing.T) {
		stored := service.BucketState{Tokens: 3.25, LastRefill: refill}
		_, err := storage.InsertBucket(ctx, "9.9.9.2", service.ActionPostReply, stored)
		require.NoError(t, err)

		state, found, err := storage.GetBucket(ctx, "9.9.9.2", service.ActionPostReply)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, stored.Tokens, state.Tokens)
		assert.True(t, stored.LastRefill.Equal(state.LastRefill), "nanosecond precision must survive")
	})

	t.Run("missing bucket reports not found", func(t *testing.T) {
		_, found, err := storage.GetBucket(ctx, "9.9.9.3", service.ActionGeneral)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("cas succeeds only against current state", func(t *testing.T) {
		old := service.BucketState{Tokens: 2, LastRefill: refill}
		_, err := storage.InsertBucket(ctx, "9.9.9.4", service.ActionThreadCreate, old)
		require.NoError(t, err)

		next := service.BucketState{Tokens: 1, LastRefill: refill.Add(time.Second)}
		swapped, err := storage.CompareAndSwapBucket(ctx, "9.9.9.4", service.ActionThreadCreate, old, next)
		require.NoError(t, err)
		assert.True(t, swapped)

		// The same predicate is now stale.
		swapped, err = storage.CompareAndSwapBucket(ctx, "9.9.9.4", service.ActionThreadCreate, old, next)
		require.NoError(t, err)
		assert.False(t, swapped)

		state, found, err := storage.GetBucket(ctx, "9.9.9.4", service.ActionThreadCreate)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, next.Tokens, state.Tokens)
	})

	t.Run("concurrent cas admits one winner", func(t *testing.T) {
		old := service.BucketState{Tokens: 1, LastRefill: refill}
		_, err := storage.InsertBucket(ctx, "9.9.9.5", service.ActionPostReply, old)
		require.NoError(t, err)

		const racers = 8
		wins := make(chan bool, racers)
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				next := service.BucketState{Tokens: 0, LastRefill: refill.Add(time.Duration(n+1) * time.Millisecond)}
				swapped, err := storage.CompareAndSwapBucket(ctx, "9.9.9.5", service.ActionPostReply, old, next)
				assert.NoError(t, err)
				wins <- swapped
			}(i)
		}
		wg.Wait()
		close(wins)

		winners := 0
		for swapped := range wins {
			if swapped {
				winners++
			}
		}
		assert.Equal(t, 1, winners)
	})
}

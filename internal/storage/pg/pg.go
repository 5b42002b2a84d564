package pg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/dn5s/lthread/internal/config"
	internal_errors "github.com/dn5s/lthread/internal/errors"
	"github.com/dn5s/lthread/internal/logger"
)

// Storage is the shared store every process coordinates through. All
// cross-request invariants (unique ids, index consistency, rate-limit
// accounting) are enforced with atomic statements here, never with
// application-level locks.
type Storage struct {
	db      *sql.DB
	timeout time.Duration
}

func New(cfg *config.Config) (*Storage, error) {
	logger.Log.Info("connecting to postgres", "host", cfg.Private.Pg.Host, "db", cfg.Private.Pg.Dbname)
	db, err := Connect(&cfg.Private.Pg)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("connected to postgres")
	return &Storage{db: db, timeout: cfg.Public.StoreTimeout}, nil
}

func Connect(pg *config.Pg) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		pg.Host, pg.Port, pg.User, pg.Password, pg.Dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func (s *Storage) Cleanup() error {
	return s.db.Close()
}

// opCtx bounds a single store operation. No operation in the core blocks
// indefinitely; once the deadline passes the caller sees StoreUnavailable.
func (s *Storage) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// storeErr maps low-level failures to the core taxonomy. Timeouts and dead
// connections become StoreUnavailable; typed errors pass through untouched.
func storeErr(op string, err error) error {
	var typed *internal_errors.ErrorWithStatusCode
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		logger.Log.Error("store operation timed out", "op", op, "error", err)
		return internal_errors.StoreUnavailable
	}
	return fmt.Errorf("%s: %w", op, err)
}

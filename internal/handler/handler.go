package handler

import (
	"context"

	"github.com/dn5s/lthread/internal/config"
	"github.com/dn5s/lthread/internal/domain"
	"github.com/dn5s/lthread/internal/service"
)

// BoardService is the board-facing core surface the handlers call into.
type BoardService interface {
	Boards() []domain.Board
	CreateThread(ctx context.Context, board domain.BoardName, data domain.PostCreationData) (domain.Thread, error)
	PostReply(ctx context.Context, threadId domain.ThreadId, data domain.PostCreationData) (*domain.Post, error)
	GetThreadList(ctx context.Context, board domain.BoardName, page int) (domain.ThreadList, error)
	GetThreadDetail(ctx context.Context, threadId domain.ThreadId) (domain.ThreadDetail, error)
}

// PruneService is the manual eviction trigger.
type PruneService interface {
	ForcePrune(ctx context.Context) (int, error)
	LastSweepStats() service.SweepStats
}

type Handler struct {
	board  BoardService
	pruner PruneService
	cfg    *config.Config
}

func New(board BoardService, pruner PruneService, cfg *config.Config) *Handler {
	return &Handler{board: board, pruner: pruner, cfg: cfg}
}

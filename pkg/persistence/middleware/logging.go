package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.Gateway
	logger *slog.Logger
}

// NewLoggingMiddleware logs every gateway call with its duration and outcome.
// Failures log at warn, successes at debug.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.Gateway) ports.Gateway {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) log(ctx context.Context, op, id string, start time.Time, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "duration", time.Since(start))
	if id != "" {
		attrs = append(attrs, "blueprint_id", id)
	}
	if err != nil {
		m.logger.WarnContext(ctx, "gateway call failed", append(attrs, "err", err)...)
		return
	}
	m.logger.DebugContext(ctx, "gateway call", attrs...)
}

func (m *loggingMiddleware) UpsertGraph(ctx context.Context, req ports.UpsertRequest) (ports.UpsertResult, error) {
	start := time.Now()
	res, err := m.next.UpsertGraph(ctx, req)
	id := req.BlueprintID
	if id == "" {
		id = res.BlueprintID
	}
	m.log(ctx, "upsert", id, start, err,
		"autosave", req.Autosave,
		"expected_version", req.ExpectedAutosaveVersion,
		"nodes", len(req.Graph.Nodes),
		"edges", len(req.Graph.Edges),
	)
	return res, err
}

func (m *loggingMiddleware) GetBlueprint(ctx context.Context, id string) (*domain.Hydrated, error) {
	start := time.Now()
	h, err := m.next.GetBlueprint(ctx, id)
	m.log(ctx, "get", id, start, err)
	return h, err
}

func (m *loggingMiddleware) ListBlueprints(ctx context.Context) ([]domain.Blueprint, error) {
	start := time.Now()
	list, err := m.next.ListBlueprints(ctx)
	m.log(ctx, "list", "", start, err, "count", len(list))
	return list, err
}

func (m *loggingMiddleware) DeleteBlueprint(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.DeleteBlueprint(ctx, id)
	m.log(ctx, "delete", id, start, err)
	return err
}

func (m *loggingMiddleware) DuplicateBlueprint(ctx context.Context, id string) (string, error) {
	start := time.Now()
	dupID, err := m.next.DuplicateBlueprint(ctx, id)
	m.log(ctx, "duplicate", id, start, err, "duplicate_id", dupID)
	return dupID, err
}

func (m *loggingMiddleware) RenameBlueprint(ctx context.Context, req ports.RenameRequest) (uint64, error) {
	start := time.Now()
	version, err := m.next.RenameBlueprint(ctx, req)
	m.log(ctx, "rename", req.BlueprintID, start, err, "expected_version", req.ExpectedAutosaveVersion)
	return version, err
}

func (m *loggingMiddleware) CreateSnapshot(ctx context.Context, id string, opts ports.SnapshotOptions) (*domain.SnapshotRecord, error) {
	start := time.Now()
	snap, err := m.next.CreateSnapshot(ctx, id, opts)
	m.log(ctx, "snapshot", id, start, err, "label", opts.Label)
	return snap, err
}

func (m *loggingMiddleware) CreateShare(ctx context.Context, id string, opts ports.ShareOptions) (*domain.Share, error) {
	start := time.Now()
	share, err := m.next.CreateShare(ctx, id, opts)
	m.log(ctx, "share", id, start, err)
	return share, err
}

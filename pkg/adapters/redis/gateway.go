package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/blueprint/pkg/adapters/internal/record"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the gateway.
const DefaultPrefix = "blueprint:"

// maxTxAttempts bounds how often a WATCH transaction is re-run under contention.
const maxTxAttempts = 10

// Gateway implements ports.Gateway using Redis.
// A blueprint is one JSON document; writes use WATCH/MULTI and are re-run when a
// concurrent writer touches the document. Only a version mismatch found on the
// fresh read surfaces as domain.ErrConflict.
// An index ZSET scored by update time backs ListBlueprints.
type Gateway struct {
	client *backend.Client
	prefix string
	now    func() time.Time
	newID  func() string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(g *Gateway) {
		g.prefix = prefix
	}
}

// WithNow overrides the time source used for timestamps.
func WithNow(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New creates a Gateway connected to address.
func New(address, password string, db int, opts ...Option) *Gateway {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Gateway from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Gateway {
	g := &Gateway{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) key(id string) string {
	return g.prefix + "bp:" + id
}

func (g *Gateway) indexKey() string {
	return g.prefix + "index"
}

func (g *Gateway) shareKey(token string) string {
	return g.prefix + "share:" + token
}

func decode(id string, data []byte) (*record.Record, error) {
	var r record.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal blueprint %s: %v", domain.ErrFatal, id, err)
	}
	return &r, nil
}

// getter is the part of a client or transaction used for reads.
type getter interface {
	Get(ctx context.Context, key string) *backend.StringCmd
}

func (g *Gateway) get(ctx context.Context, cmd getter, id string) (*record.Record, error) {
	data, err := cmd.Get(ctx, g.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrBlueprintNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return decode(id, data)
}

// write queues the document and its index entry on pipe.
func (g *Gateway) write(ctx context.Context, pipe backend.Pipeliner, r *record.Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal blueprint: %w", err)
	}
	pipe.Set(ctx, g.key(r.Blueprint.ID), data, 0)
	pipe.ZAdd(ctx, g.indexKey(), backend.Z{
		Score:  float64(r.Blueprint.UpdatedAt.UnixMilli()),
		Member: r.Blueprint.ID,
	})
	return nil
}

// update runs fn on the stored record inside an optimistic transaction.
// A transaction aborted by another writer is retried on a fresh read.
func (g *Gateway) update(ctx context.Context, id string, fn func(*record.Record) error) (*record.Record, error) {
	var updated *record.Record
	txf := func(tx *backend.Tx) error {
		r, err := g.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			return g.write(ctx, pipe, r)
		})
		if err != nil {
			return err
		}
		updated = r
		return nil
	}

	for range maxTxAttempts {
		err := g.client.Watch(ctx, txf, g.key(id))
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("blueprint %s: write abandoned after %d contended attempts", id, maxTxAttempts)
}

func (g *Gateway) insert(ctx context.Context, r *record.Record) error {
	_, err := g.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		return g.write(ctx, pipe, r)
	})
	if err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// UpsertGraph creates or updates a blueprint graph.
func (g *Gateway) UpsertGraph(ctx context.Context, req ports.UpsertRequest) (ports.UpsertResult, error) {
	if req.BlueprintID == "" {
		r, err := record.Create(g.newID(), req, g.now())
		if err != nil {
			return ports.UpsertResult{}, err
		}
		if err := g.insert(ctx, r); err != nil {
			return ports.UpsertResult{}, err
		}
		return ports.UpsertResult{BlueprintID: r.Blueprint.ID, Version: r.Blueprint.AutosaveVersion}, nil
	}

	r, err := g.update(ctx, req.BlueprintID, func(r *record.Record) error {
		return r.Upsert(req, g.now())
	})
	if err != nil {
		return ports.UpsertResult{}, err
	}
	return ports.UpsertResult{BlueprintID: r.Blueprint.ID, Version: r.Blueprint.AutosaveVersion}, nil
}

// GetBlueprint reads a blueprint document.
func (g *Gateway) GetBlueprint(ctx context.Context, id string) (*domain.Hydrated, error) {
	r, err := g.get(ctx, g.client, id)
	if err != nil {
		return nil, err
	}
	return r.Hydrated(), nil
}

// ListBlueprints returns every indexed blueprint, most recently updated first.
// Index entries whose document is gone are pruned lazily.
func (g *Gateway) ListBlueprints(ctx context.Context) ([]domain.Blueprint, error) {
	ids, err := g.client.ZRevRange(ctx, g.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list blueprints: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Blueprint{}, nil
	}

	pipe := g.client.Pipeline()
	cmds := make([]*backend.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, g.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("failed to read blueprints: %w", err)
	}

	list := make([]domain.Blueprint, 0, len(ids))
	var stale []any
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, backend.Nil) {
			stale = append(stale, ids[i])
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read blueprint %s: %w", ids[i], err)
		}
		r, err := decode(ids[i], data)
		if err != nil {
			return nil, err
		}
		list = append(list, r.Blueprint)
	}
	if len(stale) > 0 {
		if err := g.client.ZRem(ctx, g.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune blueprint index: %w", err)
		}
	}
	record.SortByUpdated(list)
	return list, nil
}

// DeleteBlueprint removes the document, its index entry and its shares.
func (g *Gateway) DeleteBlueprint(ctx context.Context, id string) error {
	r, err := g.get(ctx, g.client, id)
	if errors.Is(err, domain.ErrBlueprintNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := g.client.TxPipeline()
	pipe.Del(ctx, g.key(id))
	pipe.ZRem(ctx, g.indexKey(), id)
	for _, s := range r.Shares {
		pipe.Del(ctx, g.shareKey(s.Token))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete blueprint: %w", err)
	}
	return nil
}

// DuplicateBlueprint copies a blueprint under a new id.
func (g *Gateway) DuplicateBlueprint(ctx context.Context, id string) (string, error) {
	r, err := g.get(ctx, g.client, id)
	if err != nil {
		return "", err
	}
	dup := r.Duplicate(g.newID(), g.now())
	if err := g.insert(ctx, dup); err != nil {
		return "", err
	}
	return dup.Blueprint.ID, nil
}

// RenameBlueprint changes the title if the version matches.
func (g *Gateway) RenameBlueprint(ctx context.Context, req ports.RenameRequest) (uint64, error) {
	var version uint64
	_, err := g.update(ctx, req.BlueprintID, func(r *record.Record) error {
		v, err := r.Rename(req, g.now())
		version = v
		return err
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// CreateSnapshot records the current graph inside the blueprint document.
func (g *Gateway) CreateSnapshot(ctx context.Context, id string, opts ports.SnapshotOptions) (*domain.SnapshotRecord, error) {
	var snap *domain.SnapshotRecord
	_, err := g.update(ctx, id, func(r *record.Record) error {
		s, err := r.Snapshot(g.newID(), opts, g.now())
		snap = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// CreateShare issues a share token. The token key expires with the share.
func (g *Gateway) CreateShare(ctx context.Context, id string, opts ports.ShareOptions) (*domain.Share, error) {
	var share *domain.Share
	_, err := g.update(ctx, id, func(r *record.Record) error {
		s, err := r.Share(g.newID(), opts, g.now())
		share = s
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := g.client.Set(ctx, g.shareKey(share.Token), id, opts.TTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to index share: %w", err)
	}
	return share, nil
}

// ResolveShare returns the blueprint a live share token points to.
func (g *Gateway) ResolveShare(ctx context.Context, token string) (*domain.Hydrated, error) {
	id, err := g.client.Get(ctx, g.shareKey(token)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrBlueprintNotFound
		}
		return nil, fmt.Errorf("failed to resolve share: %w", err)
	}
	return g.GetBlueprint(ctx, id)
}

// Close closes the redis client.
func (g *Gateway) Close() error {
	return g.client.Close()
}

package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// MigrationMirrorEvents is the DDL for the remote mirror table. Safe to run
// on every startup.
const MigrationMirrorEvents = `
CREATE TABLE IF NOT EXISTS medilink_mirror_events (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    payload     JSONB NOT NULL,
    mirrored_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_medilink_mirror_events_kind
    ON medilink_mirror_events (kind);
`

// pgExecer is the minimal remote-database surface the worker needs. Both
// *pgxpool.Pool (via poolWrapper) and test mocks implement it.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) error
}

type poolWrapper struct {
	pool *pgxpool.Pool
}

func (w *poolWrapper) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := w.pool.Exec(ctx, sql, args...)
	return err
}

// Connect opens a pgx pool against the Supabase Postgres URL. The service
// key acts as the database password when the URL does not carry one.
func Connect(ctx context.Context, url, key string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse mirror url: %w", err)
	}
	if cfg.ConnConfig.Password == "" && key != "" {
		cfg.ConnConfig.Password = key
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect mirror: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping mirror: %w", err)
	}
	return pool, nil
}

// Worker drains the outbox into the remote mirror table.
type Worker struct {
	outbox    *Outbox
	remote    pgExecer
	log       zerolog.Logger
	interval  time.Duration
	batchSize int
	retention time.Duration
	stop      chan struct{}
	done      chan struct{}
}

const (
	defaultInterval  = 15 * time.Second
	defaultBatchSize = 100
	defaultRetention = 24 * time.Hour
)

func NewWorker(outbox *Outbox, pool *pgxpool.Pool, log zerolog.Logger) *Worker {
	return newWorker(outbox, &poolWrapper{pool: pool}, log)
}

func newWorker(outbox *Outbox, remote pgExecer, log zerolog.Logger) *Worker {
	return &Worker{
		outbox:    outbox,
		remote:    remote,
		log:       log.With().Str("component", "mirror").Logger(),
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		retention: defaultRetention,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// EnsureSchema creates the remote mirror table.
func (w *Worker) EnsureSchema(ctx context.Context) error {
	return w.remote.Exec(ctx, MigrationMirrorEvents)
}

// Start runs the flush loop until Stop is called.
func (w *Worker) Start() {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), w.interval)
				if n, err := w.Flush(ctx); err != nil {
					w.log.Warn().Err(err).Msg("mirror flush failed")
				} else if n > 0 {
					w.log.Debug().Int("events", n).Msg("mirror flushed")
				}
				if n, err := w.outbox.Prune(ctx, time.Now().Add(-w.retention)); err != nil {
					w.log.Warn().Err(err).Msg("outbox prune failed")
				} else if n > 0 {
					w.log.Debug().Int64("events", n).Msg("outbox pruned")
				}
				cancel()
			}
		}
	}()
}

// Stop halts the flush loop and waits for the in-flight batch.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

// Flush pushes one batch of pending events to the remote and returns how
// many were delivered. Events that fail stay queued with a bumped attempt
// counter.
func (w *Worker) Flush(ctx context.Context) (int, error) {
	events, err := w.outbox.Pending(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending events: %w", err)
	}

	delivered := 0
	for _, e := range events {
		err := w.remote.Exec(ctx, `
			INSERT INTO medilink_mirror_events (id, kind, payload) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING`,
			e.ID.String(), e.Kind, e.Payload)
		if err != nil {
			w.log.Warn().Err(err).Str("event_id", e.ID.String()).Msg("mirror delivery failed")
			if markErr := w.outbox.MarkFailed(ctx, e.ID); markErr != nil {
				return delivered, markErr
			}
			continue
		}
		if err := w.outbox.MarkDelivered(ctx, e.ID); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

package version

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"

	"stashdocs/internal/config"
	"stashdocs/internal/model"
	"stashdocs/internal/repository"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// ConflictError is returned when the retry budget is exhausted without
// winning a sequence number. The caller may retry the whole mutation;
// the inputs are still valid.
type ConflictError struct {
	FileID   string
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version allocation conflict for file %s after %d attempts", e.FileID, e.Attempts)
}

// Allocator assigns the next sequence number for a file and persists a
// new immutable version row. It is optimistic: it reads MAX(seq)
// without a row lock and lets the (file_id, seq) uniqueness constraint
// arbitrate races, retrying a bounded number of times with randomized
// backoff. The constraint is the single source of truth for
// correctness; the retry loop only improves liveness.
type Allocator struct {
	cfg config.AllocatorConfig

	conflicts prometheus.Counter
	exhausted prometheus.Counter
}

// NewAllocator creates an Allocator. Pass a nil Registerer to skip
// metric registration (e.g., in tests).
func NewAllocator(cfg config.AllocatorConfig, reg prometheus.Registerer) (*Allocator, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffMinMs <= 0 {
		cfg.BackoffMinMs = 5
	}
	if cfg.BackoffMaxMs < cfg.BackoffMinMs {
		cfg.BackoffMaxMs = cfg.BackoffMinMs
	}

	a := &Allocator{
		cfg: cfg,
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "version_alloc_conflicts_total",
			Help: "Total number of unique-constraint conflicts hit while allocating version numbers.",
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "version_alloc_exhausted_total",
			Help: "Total number of version allocations that failed after exhausting retries.",
		}),
	}

	if reg != nil {
		if err := reg.Register(a.conflicts); err != nil {
			return nil, err
		}
		if err := reg.Register(a.exhausted); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Allocate reads the current maximum sequence number for the file and
// inserts a new version row with seq = max + 1. The versions repository
// decides the transaction scope: pass one bound to an open *sql.Tx to
// nest the allocation inside a larger atomic unit. Tx-bound
// repositories keep the transaction usable after a lost race (the
// postgres one runs each insert under a savepoint), so the retry loop
// behaves the same nested or standalone.
//
// Only unique-constraint violations are retried; any other error (for
// example a dropped connection) propagates immediately and untouched.
func (a *Allocator) Allocate(ctx context.Context, versions repository.VersionRepository, fileID, content, authorID string) (*model.FileVersion, error) {
	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		max, err := versions.MaxSeq(ctx, fileID)
		if err != nil {
			return nil, err
		}

		v, err := versions.Insert(ctx, &model.FileVersion{
			ID:        uuid.New().String(),
			FileID:    fileID,
			Content:   content,
			Seq:       max + 1,
			AuthorID:  authorID,
			CreatedAt: time.Now().UTC(),
		})
		if err == nil {
			return v, nil
		}
		if !IsUniqueViolation(err) {
			return nil, err
		}

		// A concurrent writer claimed this sequence number first.
		a.conflicts.Inc()
		if attempt < a.cfg.MaxAttempts {
			if err := a.backoff(ctx); err != nil {
				return nil, err
			}
		}
	}

	a.exhausted.Inc()
	return nil, &ConflictError{FileID: fileID, Attempts: a.cfg.MaxAttempts}
}

// backoff sleeps for a randomized interval so that retrying writers do
// not stampede the same sequence number again in lockstep.
func (a *Allocator) backoff(ctx context.Context) error {
	spread := a.cfg.BackoffMaxMs - a.cfg.BackoffMinMs + 1
	d := time.Duration(a.cfg.BackoffMinMs+rand.Intn(spread)) * time.Millisecond

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/studymate/study-mate-backend/internal/metrics"
)

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// lockSQL waits for in-flight request transactions and holds off new ones
// until the repair commits. Without it a pass computed from an older snapshot
// overwrites arrays or counters a concurrent send just wrote. users goes
// first because every request mutation locks its users rows before writing
// connection_requests; the other order deadlocks against an open send.
var lockSQL = []string{
	`LOCK TABLE users IN EXCLUSIVE MODE`,
	`LOCK TABLE connection_requests IN SHARE MODE`,
}

// rebuildArraysSQL recomputes users.sent_requests/received_requests from the
// pending rows and only touches users whose arrays differ.
const rebuildArraysSQL = `
WITH sent AS (
    SELECT sender_id AS user_id, array_agg(receiver_id::text ORDER BY created_at) AS ids
    FROM connection_requests
    WHERE status = 'pending'
    GROUP BY sender_id
), received AS (
    SELECT receiver_id AS user_id, array_agg(sender_id::text ORDER BY created_at) AS ids
    FROM connection_requests
    WHERE status = 'pending'
    GROUP BY receiver_id
), wanted AS (
    SELECT u.id,
           COALESCE(s.ids, '{}'::text[]) AS sent_ids,
           COALESCE(r.ids, '{}'::text[]) AS received_ids
    FROM users u
    LEFT JOIN sent s ON s.user_id = u.id
    LEFT JOIN received r ON r.user_id = u.id
)
UPDATE users u
SET sent_requests = w.sent_ids,
    received_requests = w.received_ids,
    updated_at = NOW()
FROM wanted w
WHERE u.id = w.id
  AND (u.sent_requests IS DISTINCT FROM w.sent_ids
       OR u.received_requests IS DISTINCT FROM w.received_ids)`

// rebuildCountsSQL sets each partner's request_count to the number of
// request rows addressed to the user sharing its email. Cancelled requests
// are deleted, so every remaining row is one send that was never undone.
const rebuildCountsSQL = `
WITH counts AS (
    SELECT lower(u.email) AS email, COUNT(*)::int AS n
    FROM connection_requests cr
    JOIN users u ON u.id = cr.receiver_id
    GROUP BY lower(u.email)
), wanted AS (
    SELECT p.id, COALESCE(c.n, 0) AS n
    FROM partners p
    LEFT JOIN counts c ON c.email = p.email
)
UPDATE partners p
SET request_count = w.n,
    updated_at = NOW()
FROM wanted w
WHERE p.id = w.id
  AND p.request_count <> w.n`

// Report says how many rows each pass repaired.
type Report struct {
	UsersRepaired    int64
	PartnersRepaired int64
	Took             time.Duration
}

// Reconciler repairs drift between connection_requests and the
// denormalized arrays and counters derived from it.
type Reconciler struct {
	db      TxBeginner
	log     *zap.Logger
	timeout time.Duration
}

func NewReconciler(db TxBeginner, log *zap.Logger, timeout time.Duration) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Reconciler{db: db, log: log, timeout: timeout}
}

// Run executes both passes in one transaction behind table locks. Request
// mutations and profile writes block for the duration; plain reads do not.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	report, err := r.run(ctx)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}
	metrics.ReconcileRuns.WithLabelValues(metrics.ResultOK).Inc()

	if report.UsersRepaired > 0 || report.PartnersRepaired > 0 {
		r.log.Warn("repaired denormalized request state",
			zap.Int64("users", report.UsersRepaired),
			zap.Int64("partners", report.PartnersRepaired),
			zap.Duration("took", report.Took),
		)
	} else {
		r.log.Info("request state consistent", zap.Duration("took", report.Took))
	}
	return report, nil
}

func (r *Reconciler) run(ctx context.Context) (*Report, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reconcile: %w", err)
	}
	// no-op after a successful commit
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range lockSQL {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("lock tables: %w", err)
		}
	}

	users, err := tx.Exec(ctx, rebuildArraysSQL)
	if err != nil {
		return nil, fmt.Errorf("rebuild request arrays: %w", err)
	}

	partners, err := tx.Exec(ctx, rebuildCountsSQL)
	if err != nil {
		return nil, fmt.Errorf("rebuild request counts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reconcile: %w", err)
	}

	return &Report{
		UsersRepaired:    users.RowsAffected(),
		PartnersRepaired: partners.RowsAffected(),
		Took:             time.Since(start),
	}, nil
}

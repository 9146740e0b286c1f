package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Finding kinds reported by the integrity check.
const (
	FindingUnbalancedEntry = "unbalanced_entry"
	FindingTrialBalance    = "trial_balance"
)

// UnbalancedEntry is a posted entry whose lines do not net to zero.
type UnbalancedEntry struct {
	EntryID int64
	Number  int64
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// IntegrityStore lists what the check inspects.
type IntegrityStore interface {
	Organizations(ctx context.Context) ([]int64, error)
	UnbalancedEntries(ctx context.Context, orgID int64) ([]UnbalancedEntry, error)
}

// TrialBalancer produces the all-time trial balance of an organization.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, scope tenant.Scope, r reports.Range) (reports.TrialBalance, error)
}

// IntegrityReport summarises one check run.
type IntegrityReport struct {
	Organizations int
	Unbalanced    int
	OpenTrials    int
}

// GLIntegrityJob verifies that every posted entry balances and that each
// organization trial balance closes.
type GLIntegrityJob struct {
	store    IntegrityStore
	balances TrialBalancer
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
	limit    int
}

func NewGLIntegrityJob(store IntegrityStore, balances TrialBalancer, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &GLIntegrityJob{store: store, balances: balances, logger: logger, metrics: metrics, limit: 4}
}

// Handle processes TaskGLIntegrity.
func (j *GLIntegrityJob) Handle(ctx context.Context, _ *asynq.Task) error {
	_, err := j.Run(ctx)
	return err
}

// Run checks every organization, a few at a time.
func (j *GLIntegrityJob) Run(ctx context.Context) (report IntegrityReport, err error) {
	if j == nil || j.store == nil || j.balances == nil {
		return IntegrityReport{}, errors.New("gl integrity: job not configured")
	}
	tracker := j.metrics.Track(TaskGLIntegrity)
	defer func() { err = tracker.End(err) }()

	orgs, err := j.store.Organizations(ctx)
	if err != nil {
		return IntegrityReport{}, err
	}
	results := make([]IntegrityReport, len(orgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.limit)
	for idx, orgID := range orgs {
		g.Go(func() error {
			res, err := j.checkOrganization(gctx, orgID)
			results[idx] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return IntegrityReport{}, err
	}

	report.Organizations = len(orgs)
	for _, res := range results {
		report.Unbalanced += res.Unbalanced
		report.OpenTrials += res.OpenTrials
	}
	j.logger.Info("gl integrity check finished",
		slog.String("job", TaskGLIntegrity),
		slog.Int("organizations", report.Organizations),
		slog.Int("unbalanced_entries", report.Unbalanced),
		slog.Int("open_trial_balances", report.OpenTrials),
	)
	return report, nil
}

func (j *GLIntegrityJob) checkOrganization(ctx context.Context, orgID int64) (IntegrityReport, error) {
	logger := j.logger.With(slog.Int64("organization_id", orgID))
	var res IntegrityReport

	entries, err := j.store.UnbalancedEntries(ctx, orgID)
	if err != nil {
		return res, err
	}
	for _, e := range entries {
		logger.Error("posted entry does not balance",
			slog.Int64("entry_id", e.EntryID),
			slog.Int64("number", e.Number),
			slog.String("debit", e.Debit.StringFixed(2)),
			slog.String("credit", e.Credit.StringFixed(2)),
		)
	}
	res.Unbalanced = len(entries)
	j.metrics.AddFindings(FindingUnbalancedEntry, orgID, res.Unbalanced)

	tb, err := j.balances.TrialBalance(ctx, tenant.Scope{OrganizationID: orgID}, reports.Range{})
	if err != nil {
		return res, err
	}
	if !tb.Balanced() {
		res.OpenTrials = 1
		logger.Error("trial balance does not close",
			slog.String("debit", tb.Totals.Debit.StringFixed(2)),
			slog.String("credit", tb.Totals.Credit.StringFixed(2)),
		)
		j.metrics.AddFindings(FindingTrialBalance, orgID, 1)
	}
	return res, nil
}

// PGIntegrityStore reads integrity data from PostgreSQL.
type PGIntegrityStore struct {
	pool *pgxpool.Pool
}

func NewPGIntegrityStore(pool *pgxpool.Pool) *PGIntegrityStore {
	return &PGIntegrityStore{pool: pool}
}

func (s *PGIntegrityStore) Organizations(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT organization_id FROM journal_entries ORDER BY organization_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PGIntegrityStore) UnbalancedEntries(ctx context.Context, orgID int64) ([]UnbalancedEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT e.id, e.number, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_entries e
LEFT JOIN journal_lines l ON l.entry_id = e.id
WHERE e.organization_id=$1 AND e.status IN ('POSTED','VOID')
GROUP BY e.id, e.number
HAVING COALESCE(SUM(l.debit),0) <> COALESCE(SUM(l.credit),0) OR COUNT(l.id) = 0
ORDER BY e.number`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UnbalancedEntry
	for rows.Next() {
		var e UnbalancedEntry
		if err := rows.Scan(&e.EntryID, &e.Number, &e.Debit, &e.Credit); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

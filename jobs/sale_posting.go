package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// SaleHooks posts sale events to the ledger.
type SaleHooks interface {
	HandleSaleRegistered(ctx context.Context, scope tenant.Scope, evt integration.SaleRegistered) error
	HandleSaleCancelled(ctx context.Context, scope tenant.Scope, evt integration.SaleCancelled) error
}

// SalePostingJob consumes sale tasks.
type SalePostingJob struct {
	hooks   SaleHooks
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

func NewSalePostingJob(hooks SaleHooks, logger *slog.Logger, metrics *jobmetrics.Metrics) *SalePostingJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SalePostingJob{hooks: hooks, logger: logger, metrics: metrics}
}

// HandleRegistered processes TaskSaleRegistered.
func (j *SalePostingJob) HandleRegistered(ctx context.Context, t *asynq.Task) error {
	var payload SaleRegisteredPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", TaskSaleRegistered, err, asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskSaleRegistered)
	err := j.hooks.HandleSaleRegistered(ctx, payload.Scope(), payload.Sale)
	return tracker.End(j.outcome(TaskSaleRegistered, payload.OrganizationID, payload.Sale.SaleID, err))
}

// HandleCancelled processes TaskSaleCancelled.
func (j *SalePostingJob) HandleCancelled(ctx context.Context, t *asynq.Task) error {
	var payload SaleCancelledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", TaskSaleCancelled, err, asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskSaleCancelled)
	err := j.hooks.HandleSaleCancelled(ctx, payload.Scope(), payload.Sale)
	return tracker.End(j.outcome(TaskSaleCancelled, payload.OrganizationID, payload.Sale.SaleID, err))
}

// outcome stops retries for errors a retry cannot fix.
func (j *SalePostingJob) outcome(task string, orgID, saleID int64, err error) error {
	if err == nil {
		return nil
	}
	logger := j.logger.With(slog.String("task", task), slog.Int64("organization_id", orgID), slog.Int64("sale_id", saleID))
	switch shared.KindOf(err) {
	case shared.KindValidation, shared.KindConflict:
		logger.Error("sale rejected by ledger", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if errors.Is(err, tenant.ErrNoTenant) {
		logger.Error("sale without tenant", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logger.Warn("sale posting failed, will retry", slog.Any("error", err))
	return err
}

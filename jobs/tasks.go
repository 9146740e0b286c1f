package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueLedger carries event postings, processed ahead of maintenance work.
	QueueLedger = "ledger"

	TaskSaleRegistered     = "ledger:sale_registered"
	TaskSaleCancelled      = "ledger:sale_cancelled"
	TaskGLIntegrity        = "ledger:gl_integrity"
	TaskIdempotencyCleanup = "ledger:idempotency_cleanup"
)

// TenantPayload carries the scope an event belongs to.
type TenantPayload struct {
	OrganizationID int64  `json:"organization_id"`
	CompanyID      *int64 `json:"company_id,omitempty"`
}

// Scope converts the payload into a tenant scope.
func (p TenantPayload) Scope() tenant.Scope {
	return tenant.Scope{OrganizationID: p.OrganizationID, CompanyID: p.CompanyID}
}

func tenantPayload(scope tenant.Scope) TenantPayload {
	return TenantPayload{OrganizationID: scope.OrganizationID, CompanyID: scope.CompanyID}
}

// SaleRegisteredPayload is the body of TaskSaleRegistered.
type SaleRegisteredPayload struct {
	TenantPayload
	Sale integration.SaleRegistered `json:"sale"`
}

// SaleCancelledPayload is the body of TaskSaleCancelled.
type SaleCancelledPayload struct {
	TenantPayload
	Sale integration.SaleCancelled `json:"sale"`
}

// IdempotencyCleanupPayload sets the retention of idempotency keys.
type IdempotencyCleanupPayload struct {
	OlderThanHours int `json:"older_than_hours"`
}

// NewSaleRegisteredTask constructs the posting task of a sale. Replays are
// absorbed by the source link of the entry.
func NewSaleRegisteredTask(scope tenant.Scope, evt integration.SaleRegistered) (*asynq.Task, error) {
	body, err := json.Marshal(SaleRegisteredPayload{TenantPayload: tenantPayload(scope), Sale: evt})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSaleRegistered, body, asynq.Queue(QueueLedger), asynq.MaxRetry(10)), nil
}

// NewSaleCancelledTask constructs the void task of a sale.
func NewSaleCancelledTask(scope tenant.Scope, evt integration.SaleCancelled) (*asynq.Task, error) {
	body, err := json.Marshal(SaleCancelledPayload{TenantPayload: tenantPayload(scope), Sale: evt})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSaleCancelled, body, asynq.Queue(QueueLedger), asynq.MaxRetry(10)), nil
}

// NewGLIntegrityTask constructs the nightly integrity check.
func NewGLIntegrityTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskGLIntegrity, nil, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs the key retention sweep.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{OlderThanHours: int(olderThan / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

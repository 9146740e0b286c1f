package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// SourceSale tags entries produced by sale events.
const SourceSale = "SALES.SALE"

// SaleRegistered is emitted when a sale voucher is issued. Total includes tax.
type SaleRegistered struct {
	SaleID        int64           `json:"saleId"`
	CompanyID     *int64          `json:"companyId,omitempty"`
	Date          time.Time       `json:"date"`
	Serie         string          `json:"serie"`
	Correlativo   string          `json:"correlativo"`
	ProductLabel  string          `json:"productLabel"`
	PaymentMethod string          `json:"paymentMethod"`
	Total         decimal.Decimal `json:"total"`
	Tax           decimal.Decimal `json:"tax"`
	Cost          decimal.Decimal `json:"cost"`
}

// SaleCancelled is emitted when a sale voucher is annulled.
type SaleCancelled struct {
	SaleID int64      `json:"saleId"`
	Reason string     `json:"reason"`
	Date   *time.Time `json:"date,omitempty"`
}

// Ledger exposes the journal operations required by integrations.
type Ledger interface {
	CreateDraft(ctx context.Context, scope tenant.Scope, in journals.DraftInput) (journals.JournalEntry, error)
	FindBySource(ctx context.Context, scope tenant.Scope, sourceType, sourceID string) (journals.JournalEntry, error)
	Void(ctx context.Context, scope tenant.Scope, id int64, in journals.VoidInput) (journals.VoidResult, error)
}

// AccountMappingRepository provides mapping lookups.
type AccountMappingRepository interface {
	Get(ctx context.Context, orgID int64, module, key string) (mappings.AccountMapping, error)
}

// AccountLookup resolves mapped accounts to their codes.
type AccountLookup interface {
	Get(ctx context.Context, scope tenant.Scope, id int64) (accounts.Account, error)
}

// Hooks wires domain events from operational modules into the general ledger.
type Hooks struct {
	ledger      Ledger
	mappingRepo AccountMappingRepository
	accounts    AccountLookup
	logger      *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, mappingRepo AccountMappingRepository, accounts AccountLookup, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, mappingRepo: mappingRepo, accounts: accounts, logger: logger}
}

// SaleSourceID derives the stable source id of a sale.
func SaleSourceID(saleID int64) string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("SALE:%d", saleID))).String()
}

func (h *Hooks) resolveAccount(ctx context.Context, scope tenant.Scope, key string) (accounts.Account, error) {
	mapping, err := h.mappingRepo.Get(ctx, scope.OrganizationID, mappings.ModuleSales, key)
	if err != nil {
		return accounts.Account{}, fmt.Errorf("integration: resolve %s: %w", key, err)
	}
	return h.accounts.Get(ctx, scope, mapping.AccountID)
}

// HandleSaleRegistered posts the accounting entry for a sale. Replays of the
// same sale are accepted without creating a second entry.
func (h *Hooks) HandleSaleRegistered(ctx context.Context, scope tenant.Scope, evt SaleRegistered) error {
	if h == nil || h.ledger == nil || h.mappingRepo == nil || h.accounts == nil {
		return nil
	}
	if err := scope.Validate(); err != nil {
		return err
	}
	if evt.SaleID <= 0 {
		return fmt.Errorf("%w: sale id required", shared.ErrInvalidSale)
	}
	if evt.Date.IsZero() {
		return fmt.Errorf("%w: sale date required", shared.ErrInvalidSale)
	}
	if !evt.Total.IsPositive() {
		return nil
	}

	resolved := make(map[string]accounts.Account, len(mappings.DefaultSalesCodes))
	for _, key := range saleKeys(evt) {
		acc, err := h.resolveAccount(ctx, scope, key)
		if err != nil {
			return err
		}
		resolved[key] = acc
	}

	input := journals.DraftInput{
		CompanyID:   evt.CompanyID,
		Date:        evt.Date,
		Description: strings.TrimSpace(fmt.Sprintf("Venta %s-%s", evt.Serie, evt.Correlativo)),
		SourceType:  SourceSale,
		SourceID:    SaleSourceID(evt.SaleID),
		Lines:       saleLines(evt, resolved),
		AutoPost:    true,
	}
	entry, err := h.ledger.CreateDraft(ctx, scope, input)
	if err != nil {
		if errors.Is(err, shared.ErrSourceAlreadyLinked) {
			h.logger.Debug("sale already posted", slog.Int64("sale_id", evt.SaleID))
			return nil
		}
		return err
	}
	h.logger.Info("sale posted", slog.Int64("sale_id", evt.SaleID), slog.Int64("entry_id", entry.ID), slog.Int64("number", entry.Number))
	return nil
}

// HandleSaleCancelled voids the entry of a cancelled sale. A sale that never
// reached the ledger or is already void is a no-op.
func (h *Hooks) HandleSaleCancelled(ctx context.Context, scope tenant.Scope, evt SaleCancelled) error {
	if h == nil || h.ledger == nil {
		return nil
	}
	if err := scope.Validate(); err != nil {
		return err
	}
	if evt.SaleID <= 0 {
		return fmt.Errorf("%w: sale id required", shared.ErrInvalidSale)
	}
	entry, err := h.ledger.FindBySource(ctx, scope, SourceSale, SaleSourceID(evt.SaleID))
	if err != nil {
		if errors.Is(err, shared.ErrJournalNotFound) {
			return nil
		}
		return err
	}
	if entry.Status == journals.StatusVoid {
		return nil
	}
	reason := strings.TrimSpace(evt.Reason)
	if reason == "" {
		reason = "Anulacion de venta"
	}
	result, err := h.ledger.Void(ctx, scope, entry.ID, journals.VoidInput{Reason: reason, Date: evt.Date})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyVoided) {
			return nil
		}
		return err
	}
	h.logger.Info("sale voided", slog.Int64("sale_id", evt.SaleID), slog.Int64("entry_id", entry.ID), slog.Int64("reversal_id", result.Reversal.ID))
	return nil
}

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

var scope = tenant.Scope{OrganizationID: 7}

type fakeLedger struct {
	drafts  []journals.DraftInput
	entries map[string]journals.JournalEntry
	voided  []int64
	voidIn  journals.VoidInput
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[string]journals.JournalEntry{}}
}

func (f *fakeLedger) CreateDraft(_ context.Context, _ tenant.Scope, in journals.DraftInput) (journals.JournalEntry, error) {
	if _, ok := f.entries[in.SourceID]; ok {
		return journals.JournalEntry{}, shared.ErrSourceAlreadyLinked
	}
	f.drafts = append(f.drafts, in)
	entry := journals.JournalEntry{ID: int64(len(f.drafts)), Number: int64(len(f.drafts)), Status: journals.StatusPosted, SourceType: in.SourceType, SourceID: in.SourceID}
	f.entries[in.SourceID] = entry
	return entry, nil
}

func (f *fakeLedger) FindBySource(_ context.Context, _ tenant.Scope, sourceType, sourceID string) (journals.JournalEntry, error) {
	entry, ok := f.entries[sourceID]
	if !ok || entry.SourceType != sourceType {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	return entry, nil
}

func (f *fakeLedger) Void(_ context.Context, _ tenant.Scope, id int64, in journals.VoidInput) (journals.VoidResult, error) {
	for key, entry := range f.entries {
		if entry.ID != id {
			continue
		}
		if entry.Status == journals.StatusVoid {
			return journals.VoidResult{}, shared.ErrAlreadyVoided
		}
		entry.Status = journals.StatusVoid
		f.entries[key] = entry
		f.voided = append(f.voided, id)
		f.voidIn = in
		return journals.VoidResult{Voided: entry, Reversal: journals.JournalEntry{ID: id + 100}}, nil
	}
	return journals.VoidResult{}, shared.ErrJournalNotFound
}

type fakeMappings map[string]int64

func (f fakeMappings) Get(_ context.Context, orgID int64, module, key string) (mappings.AccountMapping, error) {
	id, ok := f[key]
	if !ok || orgID != scope.OrganizationID || module != mappings.ModuleSales {
		return mappings.AccountMapping{}, shared.ErrMappingNotFound
	}
	return mappings.AccountMapping{OrganizationID: orgID, Module: module, Key: key, AccountID: id}, nil
}

type fakeAccounts map[int64]string

func (f fakeAccounts) Get(_ context.Context, _ tenant.Scope, id int64) (accounts.Account, error) {
	code, ok := f[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return accounts.Account{ID: id, Code: code, IsPosting: true}, nil
}

func newHooks(ledger *fakeLedger) *Hooks {
	maps := fakeMappings{}
	accs := fakeAccounts{}
	var id int64
	for key, code := range mappings.DefaultSalesCodes {
		id++
		maps[key] = id
		accs[id] = code
	}
	return NewHooks(ledger, maps, accs, nil)
}

func sale() SaleRegistered {
	return SaleRegistered{
		SaleID:        42,
		Date:          time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		Serie:         "B001",
		Correlativo:   "88",
		ProductLabel:  "Polo SN12345678 azul",
		PaymentMethod: "TARJETA",
		Total:         decimal.RequireFromString("118"),
		Tax:           decimal.RequireFromString("18"),
		Cost:          decimal.RequireFromString("60.456"),
	}
}

func TestHandleSaleRegistered(t *testing.T) {
	ledger := newFakeLedger()
	hooks := newHooks(ledger)

	require.NoError(t, hooks.HandleSaleRegistered(context.Background(), scope, sale()))
	require.Len(t, ledger.drafts, 1)

	in := ledger.drafts[0]
	assert.True(t, in.AutoPost)
	assert.Equal(t, SourceSale, in.SourceType)
	assert.Equal(t, SaleSourceID(42), in.SourceID)
	assert.Equal(t, "Venta B001-88", in.Description)
	require.Len(t, in.Lines, 5)

	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range in.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	assert.True(t, debit.Equal(credit), "debit %s credit %s", debit, credit)
	assert.Equal(t, "178.46", debit.StringFixed(2))

	assert.Equal(t, "Cobro B001-88 (TARJETA)", in.Lines[0].Description)
	assert.Equal(t, "Venta B001-88 Polo azul", in.Lines[1].Description)
	assert.Equal(t, "100.00", in.Lines[1].Credit.StringFixed(2))
	assert.Equal(t, "IGV por pagar venta B001-88", in.Lines[2].Description)
	assert.Equal(t, "Costo de venta B001-88", in.Lines[3].Description)
	assert.Equal(t, "Salida de mercaderia B001-88", in.Lines[4].Description)
}

func TestHandleSaleRegisteredReplayIsAccepted(t *testing.T) {
	ledger := newFakeLedger()
	hooks := newHooks(ledger)
	ctx := context.Background()

	require.NoError(t, hooks.HandleSaleRegistered(ctx, scope, sale()))
	require.NoError(t, hooks.HandleSaleRegistered(ctx, scope, sale()))
	assert.Len(t, ledger.drafts, 1)
}

func TestHandleSaleRegisteredWithoutTaxOrCost(t *testing.T) {
	ledger := newFakeLedger()
	evt := sale()
	evt.Tax, evt.Cost = decimal.Zero, decimal.Zero
	require.NoError(t, newHooks(ledger).HandleSaleRegistered(context.Background(), scope, evt))
	require.Len(t, ledger.drafts, 1)
	assert.Len(t, ledger.drafts[0].Lines, 2)
}

func TestHandleSaleRegisteredErrors(t *testing.T) {
	ctx := context.Background()
	hooks := newHooks(newFakeLedger())

	assert.ErrorIs(t, hooks.HandleSaleRegistered(ctx, tenant.Scope{}, sale()), tenant.ErrNoTenant)

	evt := sale()
	evt.Date = time.Time{}
	err := hooks.HandleSaleRegistered(ctx, scope, evt)
	assert.ErrorIs(t, err, shared.ErrInvalidSale)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))

	evt = sale()
	evt.SaleID = 0
	assert.ErrorIs(t, hooks.HandleSaleRegistered(ctx, scope, evt), shared.ErrInvalidSale)
	assert.ErrorIs(t, hooks.HandleSaleCancelled(ctx, scope, SaleCancelled{}), shared.ErrInvalidSale)

	missing := NewHooks(newFakeLedger(), fakeMappings{}, fakeAccounts{}, nil)
	assert.ErrorIs(t, missing.HandleSaleRegistered(ctx, scope, sale()), shared.ErrMappingNotFound)

	ledger := newFakeLedger()
	evt = sale()
	evt.Total = decimal.Zero
	require.NoError(t, newHooks(ledger).HandleSaleRegistered(ctx, scope, evt))
	assert.Empty(t, ledger.drafts)

	var nilHooks *Hooks
	assert.NoError(t, nilHooks.HandleSaleRegistered(ctx, scope, sale()))
}

func TestHandleSaleCancelled(t *testing.T) {
	ledger := newFakeLedger()
	hooks := newHooks(ledger)
	ctx := context.Background()

	require.NoError(t, hooks.HandleSaleCancelled(ctx, scope, SaleCancelled{SaleID: 42}), "unknown sale is a no-op")
	assert.Empty(t, ledger.voided)

	require.NoError(t, hooks.HandleSaleRegistered(ctx, scope, sale()))
	require.NoError(t, hooks.HandleSaleCancelled(ctx, scope, SaleCancelled{SaleID: 42}))
	assert.Equal(t, []int64{1}, ledger.voided)
	assert.Equal(t, "Anulacion de venta", ledger.voidIn.Reason)

	require.NoError(t, hooks.HandleSaleCancelled(ctx, scope, SaleCancelled{SaleID: 42, Reason: "again"}))
	assert.Len(t, ledger.voided, 1)
}

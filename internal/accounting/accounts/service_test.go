package accounts

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

type auditSpy struct {
	logs []internalShared.AuditLog
}

func (a *auditSpy) Record(_ context.Context, log internalShared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var orgA = tenant.Scope{OrganizationID: 1, ActorID: 10}
var orgB = tenant.Scope{OrganizationID: 2, ActorID: 20}

func mustCreate(t *testing.T, svc *Service, scope tenant.Scope, code, name, typ string) Account {
	t.Helper()
	acc, err := svc.Create(context.Background(), scope, CreateInput{Code: code, Name: name, Type: typ})
	require.NoError(t, err)
	return acc
}

func TestCreateDerivesLevelPostingAndParent(t *testing.T) {
	audit := &auditSpy{}
	svc := NewService(newMemRepo(), nil, audit, nil)

	group := mustCreate(t, svc, orgA, "10", "Efectivo", "ASSET")
	sub := mustCreate(t, svc, orgA, "101", "Caja general", "ASSET")
	leaf := mustCreate(t, svc, orgA, "1011", "Caja", "asset")

	assert.Equal(t, 2, group.Level)
	assert.False(t, group.IsPosting)
	assert.Nil(t, group.ParentID)
	require.NotNil(t, sub.ParentID)
	assert.Equal(t, group.ID, *sub.ParentID)
	assert.Equal(t, 4, leaf.Level)
	assert.True(t, leaf.IsPosting)
	require.NotNil(t, leaf.ParentID)
	assert.Equal(t, sub.ID, *leaf.ParentID)
	assert.Len(t, audit.logs, 3)
	assert.Equal(t, "account.create", audit.logs[0].Action)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, orgA, CreateInput{Code: "", Name: "x", Type: "ASSET"})
	assert.ErrorIs(t, err, shared.ErrInvalidCode)
	_, err = svc.Create(ctx, orgA, CreateInput{Code: "10A", Name: "x", Type: "ASSET"})
	assert.ErrorIs(t, err, shared.ErrInvalidCode)
	_, err = svc.Create(ctx, orgA, CreateInput{Code: "10", Name: "x", Type: "STOCK"})
	assert.ErrorIs(t, err, shared.ErrInvalidAccountType)
	_, err = svc.Create(ctx, orgA, CreateInput{Code: "10", Name: "  ", Type: "ASSET"})
	assert.ErrorIs(t, err, shared.ErrInvalidName)
	_, err = svc.Create(ctx, tenant.Scope{}, CreateInput{Code: "10", Name: "x", Type: "ASSET"})
	assert.ErrorIs(t, err, tenant.ErrNoTenant)

	mustCreate(t, svc, orgA, "7011", "Ventas", "REVENUE")
	_, err = svc.Create(ctx, orgA, CreateInput{Code: "7011", Name: "Otra", Type: "INCOME"})
	assert.ErrorIs(t, err, shared.ErrDuplicateCode)

	// Codes are unique per organization only.
	other := mustCreate(t, svc, orgB, "7011", "Ventas", "INCOME")
	assert.Equal(t, AccountTypeIncome, other.Type)
}

func TestCreateWithExplicitParentAndPostingOverride(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil, nil)
	ctx := context.Background()
	root := mustCreate(t, svc, orgA, "50", "Capital", "EQUITY")
	foreign := mustCreate(t, svc, orgB, "60", "Compras", "EXPENSE")

	posting := true
	acc, err := svc.Create(ctx, orgA, CreateInput{Code: "501", Name: "Capital social", Type: "EQUITY", ParentID: &root.ID, IsPosting: &posting})
	require.NoError(t, err)
	assert.True(t, acc.IsPosting)
	assert.Equal(t, root.ID, *acc.ParentID)

	_, err = svc.Create(ctx, orgA, CreateInput{Code: "502", Name: "x", Type: "EQUITY", ParentID: &foreign.ID})
	assert.ErrorIs(t, err, shared.ErrAccountNotFound)
}

func TestUpdateTypeBlockedByPostedLines(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	acc := mustCreate(t, svc, orgA, "1011", "Caja", "ASSET")

	name := "Caja chica"
	updated, err := svc.Update(ctx, orgA, acc.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Caja chica", updated.Name)

	repo.posted[acc.ID] = true
	typ := "EXPENSE"
	_, err = svc.Update(ctx, orgA, acc.ID, UpdateInput{Type: &typ})
	assert.ErrorIs(t, err, shared.ErrAccountHasPostings)

	notPosting := false
	_, err = svc.Update(ctx, orgA, acc.ID, UpdateInput{IsPosting: &notPosting})
	assert.ErrorIs(t, err, shared.ErrAccountHasPostings)

	name = "Caja principal"
	_, err = svc.Update(ctx, orgA, acc.ID, UpdateInput{Name: &name})
	assert.NoError(t, err)
}

func TestUpdateCodeRecomputesLevelAndRejectsCycles(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil, nil)
	ctx := context.Background()
	parent := mustCreate(t, svc, orgA, "12", "Cuentas por cobrar", "ASSET")
	child := mustCreate(t, svc, orgA, "121", "Facturas", "ASSET")

	code := "1212"
	updated, err := svc.Update(ctx, orgA, child.ID, UpdateInput{Code: &code})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Level)
	assert.True(t, updated.IsPosting)
	assert.Equal(t, parent.ID, *updated.ParentID)

	_, err = svc.Update(ctx, orgA, parent.ID, UpdateInput{ParentID: &child.ID})
	assert.ErrorIs(t, err, shared.ErrInvalidParent)
	_, err = svc.Update(ctx, orgA, parent.ID, UpdateInput{ParentID: &parent.ID})
	assert.ErrorIs(t, err, shared.ErrInvalidParent)

	detach := int64(0)
	detached, err := svc.Update(ctx, orgA, child.ID, UpdateInput{ParentID: &detach})
	require.NoError(t, err)
	assert.Nil(t, detached.ParentID)
}

func TestCreateAdoptsExistingPrefixChildren(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	root := mustCreate(t, svc, orgA, "1", "Activo", "ASSET")
	leaf := mustCreate(t, svc, orgA, "1011", "Caja", "ASSET")
	other := mustCreate(t, svc, orgA, "1211", "Facturas", "ASSET")
	explicit, err := svc.Create(ctx, orgA, CreateInput{Code: "1041", Name: "Banco", Type: "ASSET", ParentID: &other.ID})
	require.NoError(t, err)
	require.Equal(t, root.ID, *leaf.ParentID)

	group := mustCreate(t, svc, orgA, "10", "Efectivo", "ASSET")
	assert.Equal(t, root.ID, *group.ParentID)

	got, err := svc.Get(ctx, orgA, leaf.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, group.ID, *got.ParentID)

	got, err = svc.Get(ctx, orgA, other.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, *got.ParentID)

	got, err = svc.Get(ctx, orgA, explicit.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, *got.ParentID, "explicit parent is kept")
}

func TestUpdateCodeMovesPrefixChildren(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil, nil)
	ctx := context.Background()
	cash := mustCreate(t, svc, orgA, "10", "Efectivo", "ASSET")
	receivables := mustCreate(t, svc, orgA, "12", "Cuentas por cobrar", "ASSET")
	sub := mustCreate(t, svc, orgA, "101", "Caja general", "ASSET")
	leaf := mustCreate(t, svc, orgA, "1011", "Caja", "ASSET")
	invoices := mustCreate(t, svc, orgA, "1212", "Facturas", "ASSET")
	require.Equal(t, receivables.ID, *invoices.ParentID)

	code := "121"
	moved, err := svc.Update(ctx, orgA, sub.ID, UpdateInput{Code: &code})
	require.NoError(t, err)
	assert.Equal(t, receivables.ID, *moved.ParentID)

	got, err := svc.Get(ctx, orgA, leaf.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, cash.ID, *got.ParentID, "old prefix children fall back to their next prefix")

	got, err = svc.Get(ctx, orgA, invoices.ID)
	require.NoError(t, err)
	assert.Equal(t, moved.ID, *got.ParentID, "new prefix children attach to the moved account")
}

func TestIsPostable(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil, nil)
	ctx := context.Background()
	group := mustCreate(t, svc, orgA, "40", "Tributos", "LIABILITY")
	leaf := mustCreate(t, svc, orgA, "4011", "IGV", "LIABILITY")

	ok, err := svc.IsPostable(ctx, orgA, leaf.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = svc.IsPostable(ctx, orgA, group.ID)
	assert.False(t, ok)
	ok, _ = svc.IsPostable(ctx, orgB, leaf.ID)
	assert.False(t, ok, "foreign account must not be postable")
	ok, _ = svc.IsPostable(ctx, orgA, 999)
	assert.False(t, ok)

	_, err = svc.Disable(ctx, orgA, leaf.ID)
	require.NoError(t, err)
	ok, _ = svc.IsPostable(ctx, orgA, leaf.ID)
	assert.False(t, ok)
}

func TestDeleteAccount(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	root := mustCreate(t, svc, orgA, "20", "Mercaderias", "ASSET")
	mid := mustCreate(t, svc, orgA, "201", "Manufacturadas", "ASSET")
	leaf := mustCreate(t, svc, orgA, "2011", "Costo", "ASSET")

	repo.drafted[leaf.ID] = true
	assert.ErrorIs(t, svc.Delete(ctx, orgA, leaf.ID), shared.ErrAccountInUse)

	require.NoError(t, svc.Delete(ctx, orgA, mid.ID))
	moved, err := svc.Get(ctx, orgA, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, *moved.ParentID)

	assert.ErrorIs(t, svc.Delete(ctx, orgB, root.ID), shared.ErrAccountNotFound)
}

func TestSeedMinimalIsIdempotent(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil, nil)
	ctx := context.Background()

	created, err := svc.SeedMinimal(ctx, orgA)
	require.NoError(t, err)
	assert.Equal(t, len(MinimalChartCodes()), created)

	created, err = svc.SeedMinimal(ctx, orgA)
	require.NoError(t, err)
	assert.Zero(t, created)

	tree, err := svc.Tree(ctx, orgA)
	require.NoError(t, err)
	codes := make([]string, 0, len(tree))
	for _, n := range tree {
		codes = append(codes, n.Code)
	}
	assert.Equal(t, []string{"10", "12", "20", "40", "42", "50", "69", "70"}, codes)

	raw, err := json.Marshal(tree[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"children"`)
	assert.Len(t, tree[0].Children, 2)
	assert.Equal(t, "104", tree[0].Children[1].Code)
	assert.Equal(t, "1041", tree[0].Children[1].Children[0].Code)
}

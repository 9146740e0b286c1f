package journals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memIdempotency) CheckAndInsert(_ context.Context, orgID int64, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := fmt.Sprintf("%d/%s/%s", orgID, module, key)
	if m.keys[k] {
		return internalShared.ErrIdempotencyConflict
	}
	m.keys[k] = true
	return nil
}

func (m *memIdempotency) Delete(_ context.Context, orgID int64, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, fmt.Sprintf("%d/%s/%s", orgID, module, key))
	return nil
}

func newTestRouter(h *Handler, scope tenant.Scope) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(tenant.WithScope(req.Context(), scope)))
		})
	})
	r.Route("/journal-entries", h.MountRoutes)
	return r
}

func do(t *testing.T, router http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const saleBody = `{"date":"2024-01-01","description":"Venta","lines":[{"accountId":1,"debit":"100.00"},{"accountId":2,"credit":100}]}`

func TestHandlerLifecycle(t *testing.T) {
	svc, _, _, _ := newFixture()
	h := NewHandler(nil, svc, &memIdempotency{keys: map[string]bool{}})
	router := newTestRouter(h, orgA)

	rec := do(t, router, http.MethodPost, "/journal-entries/", saleBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created JournalEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, StatusDraft, created.Status)

	rec = do(t, router, http.MethodPost, fmt.Sprintf("/journal-entries/%d/void", created.ID), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPost, fmt.Sprintf("/journal-entries/%d/post", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, router, http.MethodPost, fmt.Sprintf("/journal-entries/%d/post", created.ID), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPost, fmt.Sprintf("/journal-entries/%d/void", created.ID), `{"reason":"duplicado"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Voided   JournalEntry `json:"voided"`
		Reversal JournalEntry `json:"reversal"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, StatusVoid, result.Voided.Status)
	assert.Equal(t, StatusPosted, result.Reversal.Status)
	require.Len(t, result.Reversal.Lines, 2)
	assert.Equal(t, "100", result.Reversal.Lines[0].Credit.String())

	rec = do(t, router, http.MethodPost, fmt.Sprintf("/journal-entries/%d/void", created.ID), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/journal-entries/?status=void", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data       []JournalEntry            `json:"data"`
		Pagination internalShared.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Pagination.Total)
}

func TestHandlerErrorMapping(t *testing.T) {
	svc, _, _, _ := newFixture()
	router := newTestRouter(NewHandler(nil, svc, nil), orgA)

	rec := do(t, router, http.MethodPost, "/journal-entries/", `{"date":"01/01/2024","lines":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/journal-entries/", `{"date":"2024-01-01","lines":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/journal-entries/", `{"date":"2024-01-01","lines":[{"accountId":999,"debit":1},{"accountId":2,"credit":1}]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/journal-entries/", `{"date":"2024-01-01","bogus":true,"lines":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/journal-entries/",
		`{"date":"2024-01-01","lines":[{"accountId":1,"debit":"50"},{"accountId":2,"credit":"40"}],"autopost":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unbalanced by 10.00")

	rec = do(t, router, http.MethodGet, "/journal-entries/12345", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/journal-entries/?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	noTenant := newTestRouter(NewHandler(nil, svc, nil), tenant.Scope{})
	rec = do(t, noTenant, http.MethodGet, "/journal-entries/", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerIdempotencyKey(t *testing.T) {
	svc, repo, _, _ := newFixture()
	router := newTestRouter(NewHandler(nil, svc, &memIdempotency{keys: map[string]bool{}}), orgA)

	rec := do(t, router, http.MethodPost, "/journal-entries/", saleBody, IdempotencyHeader, "sale-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, router, http.MethodPost, "/journal-entries/", saleBody, IdempotencyHeader, "sale-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, repo.count(StatusDraft))

	// A failed request releases its key.
	bad := `{"date":"2024-01-01","lines":[{"accountId":999,"debit":1},{"accountId":2,"credit":1}]}`
	rec = do(t, router, http.MethodPost, "/journal-entries/", bad, IdempotencyHeader, "sale-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, router, http.MethodPost, "/journal-entries/", saleBody, IdempotencyHeader, "sale-2")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandlerForeignTenantSeesNotFound(t *testing.T) {
	svc, _, _, _ := newFixture()
	h := NewHandler(nil, svc, nil)

	rec := do(t, newTestRouter(h, orgA), http.MethodPost, "/journal-entries/", saleBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created JournalEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	foreign := newTestRouter(h, orgB)
	for _, path := range []string{"/journal-entries/%d/post", "/journal-entries/%d/void"} {
		rec = do(t, foreign, http.MethodPost, fmt.Sprintf(path, created.ID), "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec = do(t, foreign, http.MethodDelete, fmt.Sprintf("/journal-entries/%d", created.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

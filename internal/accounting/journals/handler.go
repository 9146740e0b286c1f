package journals

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// IdempotencyHeader carries the client supplied request key.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyPort claims request keys per organization.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, organizationID int64, key, module string) error
	Delete(ctx context.Context, organizationID int64, key, module string) error
}

// Handler exposes journal entries over JSON.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	idem      IdempotencyPort
	validator *validator.Validate
}

// NewHandler builds the handler. idem may be nil, which disables key checks.
func NewHandler(logger *slog.Logger, service *Service, idem IdempotencyPort) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger, idem: idem, validator: validator.New()}
}

type draftRequest struct {
	CompanyID   *int64      `json:"companyId,omitempty" validate:"omitempty,gt=0"`
	Date        string      `json:"date"`
	Description string      `json:"description" validate:"max=500"`
	SourceType  string      `json:"sourceType,omitempty" validate:"max=59"`
	SourceID    string      `json:"sourceId,omitempty" validate:"max=128"`
	Lines       []LineInput `json:"lines" validate:"dive"`
	AutoPost    bool        `json:"autopost,omitempty"`
}

func (req draftRequest) input() (DraftInput, error) {
	date, err := time.Parse(httpx.DateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return DraftInput{}, shared.ErrInvalidDate
	}
	return DraftInput{
		CompanyID:   req.CompanyID,
		Date:        date,
		Description: req.Description,
		SourceType:  req.SourceType,
		SourceID:    req.SourceID,
		Lines:       req.Lines,
		AutoPost:    req.AutoPost,
	}, nil
}

type voidRequest struct {
	Reason string `json:"reason" validate:"max=500"`
	Date   string `json:"date,omitempty"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, _ := tenant.FromContext(r.Context())
	filter, err := listFilterFromRequest(r)
	if err != nil {
		shared.RespondError(w, h.logger, "list journals", err)
		return
	}
	entries, total, err := h.service.List(r.Context(), scope, filter)
	if err != nil {
		shared.RespondError(w, h.logger, "list journals", err)
		return
	}
	if entries == nil {
		entries = []JournalEntry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       entries,
		"pagination": internalShared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	entry, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		shared.RespondError(w, h.logger, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	release, ok := h.claim(w, r, scope, "journals.create")
	if !ok {
		return
	}
	entry, err := h.service.CreateDraft(r.Context(), scope, in)
	if err != nil {
		release()
		shared.RespondError(w, h.logger, "create journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	entry, err := h.service.UpdateDraft(r.Context(), scope, id, in)
	if err != nil {
		shared.RespondError(w, h.logger, "update journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	if err := h.service.DeleteDraft(r.Context(), scope, id); err != nil {
		shared.RespondError(w, h.logger, "delete journal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	entry, err := h.service.Post(r.Context(), scope, id)
	if err != nil {
		shared.RespondError(w, h.logger, "post journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req voidRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	in := VoidInput{Reason: req.Reason}
	if raw := strings.TrimSpace(req.Date); raw != "" {
		date, err := time.Parse(httpx.DateLayout, raw)
		if err != nil {
			shared.RespondError(w, h.logger, "void journal", shared.ErrInvalidDate)
			return
		}
		in.Date = &date
	}
	scope, _ := tenant.FromContext(r.Context())
	release, ok := h.claim(w, r, scope, "journals.void")
	if !ok {
		return
	}
	result, err := h.service.Void(r.Context(), scope, id, in)
	if err != nil {
		release()
		shared.RespondError(w, h.logger, "void journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (DraftInput, bool) {
	var req draftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return DraftInput{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return DraftInput{}, false
	}
	in, err := req.input()
	if err != nil {
		shared.RespondError(w, h.logger, "decode journal", err)
		return DraftInput{}, false
	}
	return in, true
}

// claim reserves the Idempotency-Key of r, if any. The returned func releases
// the key so a failed request may be retried.
func (h *Handler) claim(w http.ResponseWriter, r *http.Request, scope tenant.Scope, module string) (func(), bool) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if h.idem == nil || key == "" || scope.Validate() != nil {
		return func() {}, true
	}
	if err := h.idem.CheckAndInsert(r.Context(), scope.OrganizationID, key, module); err != nil {
		if errors.Is(err, internalShared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "request with this Idempotency-Key was already processed")
			return nil, false
		}
		h.logger.Error("idempotency check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return nil, false
	}
	return func() {
		if err := h.idem.Delete(context.WithoutCancel(r.Context()), scope.OrganizationID, key, module); err != nil {
			h.logger.Warn("idempotency release", slog.Any("error", err))
		}
	}, true
}

func listFilterFromRequest(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var filter ListFilter
	filter.Page, filter.PerPage = internalShared.PageFromQuery(q)
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		return ListFilter{}, err
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		return ListFilter{}, err
	}
	filter.From, filter.To = from, to
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := ParseStatus(strings.ToUpper(raw))
		if err != nil {
			return ListFilter{}, err
		}
		filter.Status = status
	}
	filter.Query = strings.TrimSpace(q.Get("q"))
	return filter, nil
}

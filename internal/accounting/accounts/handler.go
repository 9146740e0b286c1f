package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Handler exposes the chart of accounts over JSON.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validator: validator.New()}
}

// MountRoutes attaches account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/tree", h.Tree)
	r.Post("/seed", h.Seed)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/disable", h.Disable)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, _ := tenant.FromContext(r.Context())
	accounts, err := h.service.List(r.Context(), scope)
	if err != nil {
		shared.RespondError(w, h.logger, "list accounts", err)
		return
	}
	if accounts == nil {
		accounts = []Account{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": accounts})
}

func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	scope, _ := tenant.FromContext(r.Context())
	tree, err := h.service.Tree(r.Context(), scope)
	if err != nil {
		shared.RespondError(w, h.logger, "account tree", err)
		return
	}
	if tree == nil {
		tree = []*AccountNode{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": tree})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	account, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		shared.RespondError(w, h.logger, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	account, err := h.service.Create(r.Context(), scope, in)
	if err != nil {
		shared.RespondError(w, h.logger, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	account, err := h.service.Update(r.Context(), scope, id, in)
	if err != nil {
		shared.RespondError(w, h.logger, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	account, err := h.service.Disable(r.Context(), scope, id)
	if err != nil {
		shared.RespondError(w, h.logger, "disable account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	if err := h.service.Delete(r.Context(), scope, id); err != nil {
		shared.RespondError(w, h.logger, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	scope, _ := tenant.FromContext(r.Context())
	created, err := h.service.SeedMinimal(r.Context(), scope)
	if err != nil {
		shared.RespondError(w, h.logger, "seed accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"created": created})
}

package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Enqueuer submits tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueInspector reports queue depth.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler accepts sale events from producers and exposes queue health.
type Handler struct {
	queue     Enqueuer
	inspector QueueInspector
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints. inspector may be nil.
func NewHandler(queue Enqueuer, inspector QueueInspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{queue: queue, inspector: inspector, validate: validator.New(), logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/sales", h.saleRegistered)
	r.Post("/sales/{id}/cancel", h.saleCancelled)
}

type saleRequest struct {
	SaleID        int64           `json:"saleId" validate:"required,gt=0"`
	CompanyID     *int64          `json:"companyId,omitempty" validate:"omitempty,gt=0"`
	Date          string          `json:"date" validate:"required"`
	Serie         string          `json:"serie" validate:"required,max=8"`
	Correlativo   string          `json:"correlativo" validate:"required,max=16"`
	ProductLabel  string          `json:"productLabel" validate:"max=255"`
	PaymentMethod string          `json:"paymentMethod" validate:"max=32"`
	Total         decimal.Decimal `json:"total"`
	Tax           decimal.Decimal `json:"tax"`
	Cost          decimal.Decimal `json:"cost"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=255"`
	Date   string `json:"date"`
}

func (h *Handler) saleRegistered(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	date, err := time.Parse(httpx.DateLayout, req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	scope, _ := tenant.FromContext(r.Context())
	task, err := NewSaleRegisteredTask(scope, integration.SaleRegistered{
		SaleID:        req.SaleID,
		CompanyID:     req.CompanyID,
		Date:          date,
		Serie:         req.Serie,
		Correlativo:   req.Correlativo,
		ProductLabel:  req.ProductLabel,
		PaymentMethod: req.PaymentMethod,
		Total:         req.Total,
		Tax:           req.Tax,
		Cost:          req.Cost,
	})
	h.enqueue(w, r, task, err)
}

func (h *Handler) saleCancelled(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	evt := integration.SaleCancelled{SaleID: id, Reason: req.Reason}
	if req.Date != "" {
		date, err := time.Parse(httpx.DateLayout, req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		evt.Date = &date
	}
	scope, _ := tenant.FromContext(r.Context())
	task, err := NewSaleCancelledTask(scope, evt)
	h.enqueue(w, r, task, err)
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, task *asynq.Task, buildErr error) {
	if buildErr != nil {
		h.logger.Error("build task", slog.Any("error", buildErr))
		httpx.RespondError(w, buildErr)
		return
	}
	info, err := h.queue.Enqueue(r.Context(), task)
	if err != nil {
		h.logger.Error("enqueue task", slog.String("task", task.Type()), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"taskId": info.ID, "queue": info.Queue, "type": task.Type()})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	out := map[string]int{QueueLedger: 0, QueueDefault: 0}
	if h.inspector != nil {
		for queue := range out {
			info, err := h.inspector.GetQueueInfo(queue)
			if errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			if err != nil {
				h.logger.Warn("jobs health", slog.String("queue", queue), slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
				return
			}
			if info != nil {
				out[queue] = info.Pending
			}
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pending": out})
}

// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/service/order/application"
	"orderdesk/internal/service/order/domain"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const serviceName = "order-desk"

// OrderUseCases 是 HTTP 层用到的应用服务能力
type OrderUseCases interface {
	Preview(ctx context.Context, req application.CartRequest) (domain.Breakdown, error)
	SubmitOrder(ctx context.Context, req application.CartRequest) (domain.Order, error)
	ChangeStatus(ctx context.Context, cmd application.ChangeStatusCommand) (application.ChangeStatusResult, error)
	SelectDay(ctx context.Context, day time.Time) ([]domain.Order, error)
	Orders() []domain.Order
}

// BranchConfigAdmin 写入门店配置，返回新版本号
type BranchConfigAdmin interface {
	Save(ctx context.Context, cfg domain.BranchConfig) (int64, error)
}

// OrderHandler 封装了收银台的 HTTP 处理器
type OrderHandler struct {
	service  OrderUseCases
	hub      *Hub
	admin    BranchConfigAdmin
	branchID string
}

// NewOrderHandler hub 和 admin 可以为 nil，对应的路由不注册
func NewOrderHandler(service OrderUseCases, hub *Hub, admin BranchConfigAdmin, branchID string) *OrderHandler {
	return &OrderHandler{service: service, hub: hub, admin: admin, branchID: branchID}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /pricing/preview", traced("http.PreviewPricing", h.preview))
	mux.HandleFunc("POST /orders", traced("http.SubmitOrder", h.submit))
	mux.HandleFunc("POST /orders/{id}/status", traced("http.ChangeStatus", h.changeStatus))
	mux.HandleFunc("GET /orders", traced("http.ListOrders", h.list))
	if h.hub != nil {
		mux.HandleFunc("GET /ws", h.hub.ServeWS)
	}
	if h.admin != nil {
		mux.HandleFunc("PUT /branch/config", traced("http.SaveBranchConfig", h.saveConfig))
	}
}

// traced 恢复上游的追踪上下文并为请求创建 span
func traced(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := otel.Tracer(serviceName).Start(ctx, name)
		defer span.End()
		span.SetAttributes(attribute.String("http.method", r.Method), attribute.String("http.target", r.URL.Path))
		next(w, r.WithContext(ctx))
	}
}

func (h *OrderHandler) preview(w http.ResponseWriter, r *http.Request) {
	var req application.CartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	totals, err := h.service.Preview(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (h *OrderHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req application.CartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := h.service.SubmitOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var cmd application.ChangeStatusCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	cmd.OrderID = r.PathValue("id")
	if !cmd.Target.Valid() {
		writeError(w, r, &domain.ValidationError{Field: "target", Reason: "is not a known status"})
		return
	}
	res, err := h.service.ChangeStatus(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeJSON(w, http.StatusOK, h.service.Orders())
		return
	}
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		writeError(w, r, &domain.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"})
		return
	}
	orders, err := h.service.SelectDay(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) saveConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.BranchConfig
	if !decodeBody(w, r, &cfg) {
		return
	}
	if cfg.BranchID == "" {
		cfg.BranchID = h.branchID
	}
	version, err := h.admin.Save(r.Context(), cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"version": version})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// statusFor 把领域错误映射为 HTTP 状态码
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, domain.ErrNoteRequired):
		return http.StatusUnprocessableEntity, "note_required"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConfigUnavailable):
		return http.StatusServiceUnavailable, "config_unavailable"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	case errors.Is(err, domain.ErrSyncConflict):
		return http.StatusConflict, "sync_conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	body := errorBody{Error: err.Error(), Code: code}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if status >= http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error(), Code: "bad_request"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

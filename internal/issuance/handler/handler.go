package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certo/internal/events"
	"certo/internal/issuance"
	"certo/pkg/platform/httputil"
	"certo/pkg/requestcontext"
)

// Service defines the issuance operations the handler exposes.
type Service interface {
	PrepareIssue(ctx context.Context) (*issuance.PrepareIssueResponse, error)
	Sign(ctx context.Context, req issuance.SignRequest) (*issuance.SignResponse, error)
	SignPaper(ctx context.Context, blobs []events.SignedBlob) (string, error)
}

// Handler wires the issuance endpoints to the issuance service.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *issuance.Metrics
}

// New constructs an issuance handler with its dependencies.
func New(service Service, logger *slog.Logger, metrics *issuance.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

// Register mounts the issuance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/app/prepare_issue", h.HandlePrepareIssue)
	r.Post("/app/sign", h.HandleSign)
	r.Post("/app/paper", h.HandlePaper)
}

// HandlePrepareIssue handles POST /app/prepare_issue requests.
func (h *Handler) HandlePrepareIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	resp, err := h.service.PrepareIssue(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "prepare issue failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleSign handles POST /app/sign requests.
func (h *Handler) HandleSign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeJSON[issuance.SignRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	resp, err := h.service.Sign(ctx, *req)
	if err != nil {
		h.metrics.SignFailures.Inc()
		h.logger.ErrorContext(ctx, "sign failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "credentials issued",
		"request_id", requestID,
		"eu_greencards", len(resp.EUGreencards),
		"domestic", resp.DomesticGreencard != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// PaperRequest asks for a single static QR over the supplied events.
type PaperRequest struct {
	Events []events.SignedBlob `json:"events"`
}

// PaperResponse carries the printable QR content.
type PaperResponse struct {
	QR string `json:"qr"`
}

// HandlePaper handles POST /app/paper requests.
func (h *Handler) HandlePaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeJSON[PaperRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	qr, err := h.service.SignPaper(ctx, req.Events)
	if err != nil {
		h.logger.ErrorContext(ctx, "paper sign failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, PaperResponse{QR: qr})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certo/internal/accesstoken"
	"certo/pkg/platform/httputil"
	"certo/pkg/requestcontext"
)

// Service defines the access-token operations the handler exposes.
type Service interface {
	Issue(ctx context.Context, tvsToken string) ([]accesstoken.ProviderTokens, error)
}

// Handler wires the access-token endpoint to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the access-token endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/app/access_tokens", h.HandleAccessTokens)
}

// AccessTokensRequest carries the authenticated retrieval token.
type AccessTokensRequest struct {
	TVSToken string `json:"tvs_token"`
}

// HandleAccessTokens handles POST /app/access_tokens requests.
func (h *Handler) HandleAccessTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeJSON[AccessTokensRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tokens, err := h.service.Issue(ctx, req.TVSToken)
	if err != nil {
		h.logger.WarnContext(ctx, "access token issuance failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokens)
}

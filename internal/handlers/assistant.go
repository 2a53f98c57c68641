package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/diewo77/ap-invoices/httpx"
	"github.com/diewo77/ap-invoices/internal/assistant"
	"github.com/diewo77/ap-invoices/internal/logger"
	"github.com/rs/zerolog"
)

const maxQueryBody = 64 << 10

// Answerer is the assistant operation the handler needs.
type Answerer interface {
	Answer(ctx context.Context, query string) (*assistant.Result, error)
}

type AssistantHandler struct {
	bridge   Answerer
	provider string
	log      zerolog.Logger
}

// NewAssistantHandler creates the handler. provider names the configured
// model vendor in the "not configured" message.
func NewAssistantHandler(bridge Answerer, provider string) *AssistantHandler {
	return &AssistantHandler{bridge: bridge, provider: provider, log: logger.WithComponent("assistant-handler")}
}

func (h *AssistantHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query *string `json:"query"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req); err != nil ||
		req.Query == nil || strings.TrimSpace(*req.Query) == "" {
		httpx.JSONError(w, http.StatusBadRequest, "Invalid query format")
		return
	}

	res, err := h.bridge.Answer(r.Context(), *req.Query)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, res)
	case errors.Is(err, assistant.ErrInvalidQuery):
		httpx.JSONError(w, http.StatusBadRequest, "Invalid query format")
	case errors.Is(err, assistant.ErrNotConfigured):
		httpx.JSON(w, http.StatusInternalServerError, httpx.ErrorResponse{
			Message:     providerLabel(h.provider) + " API key is not configured",
			NeedsAPIKey: true,
		})
	default:
		requestLogger(r, &h.log).Error().Err(err).Str("endpoint", "POST /api/ai-assistant/query").Msg("assistant query failed")
		httpx.JSONError(w, http.StatusInternalServerError, "Failed to process your query")
	}
}

func providerLabel(provider string) string {
	switch provider {
	case "openai":
		return "OpenAI"
	case "gemini", "":
		return "Gemini"
	default:
		return provider
	}
}

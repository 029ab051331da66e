package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/domain"
	"github.com/ruudy-sib/outbound/internal/port/primary"
)

// maxBodyBytes bounds the accepted request payload.
const maxBodyBytes = 1 << 20

// SendMessageHandler handles POST /messages requests. The JSON body is the
// payload; the optional "to" query parameter overrides the destination.
type SendMessageHandler struct {
	service            primary.ProducerService
	defaultDestination string
	logger             *zap.Logger
}

// NewSendMessageHandler creates a handler for message publishing.
func NewSendMessageHandler(service primary.ProducerService, defaultDestination string, logger *zap.Logger) *SendMessageHandler {
	return &SendMessageHandler{
		service:            service,
		defaultDestination: defaultDestination,
		logger:             logger.Named("send-message-handler"),
	}
}

// ServeHTTP stamps and routes the payload, then waits until the message has
// been handed off or buffered.
func (h *SendMessageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: "request body too large",
			Code:  "BODY_TOO_LARGE",
		})
		return
	}

	if !json.Valid(raw) {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_BODY",
		})
		return
	}

	destination := strings.TrimSpace(r.URL.Query().Get("to"))
	if destination == "" {
		destination = h.defaultDestination
	}

	receipt := h.service.Send(r.Context(), destination, json.RawMessage(raw))
	messageID, err := receipt.Wait(r.Context())
	if err != nil {
		status, code := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("message not accepted",
				zap.String("message_id", receipt.MessageID()),
				zap.String("to", destination),
				zap.Error(err),
			)
		}
		respondJSON(w, status, ErrorResponse{
			Error: err.Error(),
			Code:  code,
		})
		return
	}

	respondJSON(w, http.StatusAccepted, SendMessageResponse{
		MessageID:   messageID,
		Destination: destination,
		Mode:        string(h.service.Mode()),
	})
}

// statusFor maps producer errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidMessage):
		return http.StatusBadRequest, "INVALID_MESSAGE"
	case errors.Is(err, domain.ErrQueueFull):
		return http.StatusServiceUnavailable, "QUEUE_FULL"
	case errors.Is(err, domain.ErrShuttingDown):
		return http.StatusServiceUnavailable, "SHUTTING_DOWN"
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusServiceUnavailable, "NOT_READY"
	case errors.Is(err, domain.ErrTransportRejected):
		return http.StatusBadGateway, "TRANSPORT_REJECTED"
	case errors.Is(err, domain.ErrFatalTransport):
		return http.StatusBadGateway, "TRANSPORT_FAILED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

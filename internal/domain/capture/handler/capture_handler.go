// Package handler exposes the capture pipeline over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

const maxBodyBytes int64 = 64 << 10

// Submitter enqueues events for asynchronous capture.
type Submitter interface {
	Submit(event common.NotificationEvent) error
}

// TransactionReader loads a persisted capture by id.
type TransactionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*common.Transaction, error)
}

// CaptureHandler serves the notification ingest bridge.
type CaptureHandler struct {
	queue  Submitter
	reader TransactionReader
	logger *slog.Logger
}

// NewCaptureHandler constructs a new handler. reader may be nil, in which case lookups return 404.
func NewCaptureHandler(queue Submitter, reader TransactionReader, logger *slog.Logger) *CaptureHandler {
	return &CaptureHandler{queue: queue, reader: reader, logger: logger}
}

// Instrument wraps a handler for the named route. observability.NewMetricsMiddleware fits.
type Instrument func(route string) func(http.Handler) http.Handler

// Register mounts the capture routes on mux. instrument may be nil.
func (h *CaptureHandler) Register(mux *http.ServeMux, instrument Instrument) {
	wrap := func(route string, fn http.HandlerFunc) http.Handler {
		if instrument == nil {
			return fn
		}
		return instrument(route)(fn)
	}
	mux.Handle("POST /v1/notifications", wrap("ingest_notification", h.IngestNotification))
	mux.Handle("GET /v1/transactions/{id}", wrap("get_transaction", h.GetTransaction))
}

type notificationRequest struct {
	SourcePackage string `json:"source_package"`
	Title         string `json:"title"`
	Text          string `json:"text"`
	PostTimestamp int64  `json:"post_timestamp"`
	SourceKind    string `json:"source_kind"`
}

func (r notificationRequest) toEvent() (common.NotificationEvent, error) {
	if strings.TrimSpace(r.SourcePackage) == "" {
		return common.NotificationEvent{}, fmt.Errorf("%w: source_package is required", common.ErrBadRequest)
	}
	if r.PostTimestamp <= 0 {
		return common.NotificationEvent{}, fmt.Errorf("%w: post_timestamp must be unix milliseconds", common.ErrBadRequest)
	}
	kind, err := common.ParseSourceKind(r.SourceKind)
	if err != nil {
		return common.NotificationEvent{}, fmt.Errorf("%w: %w", common.ErrBadRequest, err)
	}
	return common.NotificationEvent{
		SourcePackage: r.SourcePackage,
		Title:         r.Title,
		Text:          r.Text,
		PostTimestamp: r.PostTimestamp,
		SourceKind:    kind,
	}, nil
}

type acceptedResponse struct {
	Status string `json:"status"`
}

type transactionResponse struct {
	ID               string  `json:"id"`
	Amount           string  `json:"amount"`
	Currency         string  `json:"currency"`
	OriginalAmount   *string `json:"original_amount,omitempty"`
	OriginalCurrency *string `json:"original_currency,omitempty"`
	Type             string  `json:"type"`
	Category         string  `json:"category"`
	Merchant         *string `json:"merchant,omitempty"`
	Description      string  `json:"description"`
	PostedAt         string  `json:"posted_at"`
	Source           string  `json:"source"`
	RewardCredit     int     `json:"reward_credit"`
	CreatedAt        string  `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// IngestNotification accepts one event and queues it. Parsing happens asynchronously,
// so 202 only means the event was queued.
func (h *CaptureHandler) IngestNotification(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var req notificationRequest
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	event, err := req.toEvent()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.queue.Submit(event); err != nil {
		if errors.Is(err, common.ErrQueueFull) || errors.Is(err, common.ErrQueueClosed) {
			w.Header().Set("Retry-After", "1")
			h.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.logger.Error("failed to enqueue notification", "package", event.SourcePackage, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "queued"})
}

// GetTransaction returns a persisted capture.
func (h *CaptureHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	if h.reader == nil {
		h.writeError(w, http.StatusNotFound, common.ErrNotFound.Error())
		return
	}

	tx, err := h.reader.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to load transaction", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func toTransactionResponse(tx *common.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:           tx.ID.String(),
		Amount:       tx.Amount.StringFixed(2),
		Currency:     string(tx.Currency),
		Type:         string(tx.Type),
		Category:     string(tx.Category),
		Merchant:     tx.Merchant,
		Description:  tx.Description,
		PostedAt:     tx.Timestamp.UTC().Format(time.RFC3339),
		Source:       string(tx.SourceKind),
		RewardCredit: tx.RewardCredit,
		CreatedAt:    tx.CreatedAt.UTC().Format(time.RFC3339),
	}
	if tx.OriginalAmount != nil && tx.OriginalCurrency != nil {
		amount := tx.OriginalAmount.StringFixed(2)
		currency := string(*tx.OriginalCurrency)
		resp.OriginalAmount = &amount
		resp.OriginalCurrency = &currency
	}
	return resp
}

func (h *CaptureHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func (h *CaptureHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

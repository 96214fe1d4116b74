package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/filter"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/stats"
)

const defaultListLimit = 100

// Handler holds dependencies for API handlers.
type Handler struct {
	repo           domain.Repository
	cache          domain.Cache
	bus            domain.EventBus
	ingest         *ingest.Service
	stats          *stats.Service
	version        string
	maxUploadBytes int64
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, ing *ingest.Service, st *stats.Service, version string, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{
		repo:           repo,
		cache:          cache,
		bus:            bus,
		ingest:         ing,
		stats:          st,
		version:        version,
		maxUploadBytes: maxUploadBytes,
	}
}

// TransactionRequest is the request body for POST /transactions.
type TransactionRequest struct {
	AccountID          string  `json:"accountId"`
	Amount             float64 `json:"amount"`
	Description        string  `json:"description,omitempty"`
	Category           string  `json:"category,omitempty"`
	Location           string  `json:"location,omitempty"`
	IPAddress          string  `json:"ipAddress,omitempty"`
	DeviceID           string  `json:"deviceId,omitempty"`
	BrowserID          string  `json:"browserId,omitempty"`
	RecipientAccountID string  `json:"recipientAccountId,omitempty"`
	Timestamp          string  `json:"timestamp,omitempty"`
}

// SubmitTransaction handles POST /transactions: scores and stores a
// single transaction.
func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.AccountID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "accountId is required",
		})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return
	}

	c := &domain.Candidate{
		AccountID:          req.AccountID,
		Amount:             req.Amount,
		Description:        req.Description,
		Category:           req.Category,
		Location:           req.Location,
		IPAddress:          req.IPAddress,
		DeviceID:           req.DeviceID,
		BrowserID:          req.BrowserID,
		RecipientAccountID: req.RecipientAccountID,
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "timestamp must be RFC 3339",
			})
			return
		}
		c.Timestamp = ts.UTC()
	}

	tx, err := h.ingest.Submit(ctx, c)
	if err != nil {
		slog.Error("failed to ingest transaction", "account_id", req.AccountID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to store transaction",
		})
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}

// Upload handles POST /upload: parses a CSV or TXT file and ingests
// every usable row.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid multipart form or file too large",
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "file field is required",
		})
		return
	}
	defer file.Close()

	candidates, err := ingest.ParseFile(file, header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if len(candidates) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "no valid rows in upload",
		})
		return
	}

	summary, txs, err := h.ingest.ProcessBatch(ctx, candidates)
	if err != nil {
		slog.Error("failed to process upload", "filename", header.Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to process upload",
		})
		return
	}

	slog.Info("upload processed",
		"filename", header.Filename,
		"rows", summary.TotalProcessed,
		"fraudulent", summary.FraudCount)
	writeJSON(w, http.StatusOK, struct {
		*ingest.Summary
		Transactions []*domain.Transaction `json:"transactions"`
	}{summary, txs})
}

// ListTransactions handles GET /transactions with optional limit and
// CEL filter query parameters.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := parseLimit(r.URL.Query().Get("limit"), defaultListLimit)

	var f *filter.Filter
	if expr := r.URL.Query().Get("filter"); expr != "" {
		var err error
		f, err = filter.Compile(expr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
	}

	// When filtering, fetch everything so the filter sees all rows,
	// then apply the limit to the matches.
	fetchLimit := limit
	if f != nil {
		fetchLimit = 0
	}

	txs, err := h.repo.ListTransactions(ctx, fetchLimit)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
		return
	}

	if f != nil {
		txs = f.Apply(txs)
		if limit > 0 && len(txs) > limit {
			txs = txs[:limit]
		}
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	})
}

// GetTransaction handles GET /transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, txID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListAccountTransactions handles GET /accounts/{id}/transactions.
func (h *Handler) ListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "id")

	if accountID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "account id is required",
		})
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), defaultListLimit)

	txs, err := h.repo.ListByAccount(ctx, accountID, limit)
	if err != nil {
		slog.Error("failed to list account transactions", "account_id", accountID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId":    accountID,
		"transactions": txs,
		"count":        len(txs),
	})
}

// GetStats handles GET /stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.stats.Snapshot(r.Context())
	if err != nil {
		slog.Error("failed to compute stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute stats",
		})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Health returns the overall health of the service.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check event bus health
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"github.com/sidvermani/fundflow/internal/domain"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	moneyMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_money_movements_total",
		Help: "Committed and rejected money movements by operation and outcome",
	}, []string{"operation", "outcome"})
)

// Ledger is the money-movement core consumed by the HTTP layer.
type Ledger interface {
	Transfer(ctx context.Context, senderID, recipientID uuid.UUID, amount decimal.Decimal, description string, actor *uuid.UUID) (*domain.Transfer, error)
	Deposit(ctx context.Context, email, fullName string, amount decimal.Decimal, actor *uuid.UUID) (*domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetTransfer(ctx context.Context, id, requesterID uuid.UUID) (*domain.Transfer, error)
	ListTransfers(ctx context.Context, accountID uuid.UUID) ([]domain.Transfer, error)
}

type Handler struct {
	ledger Ledger
	logger *slog.Logger
}

func NewHandler(ledger Ledger, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, logger: logger}
}

// TransferRequest is the client payload. The authenticated actor is always
// the sender; a token cannot move someone else's money.
type TransferRequest struct {
	ReceiverID  string `json:"receiver_id"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

type DepositRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Amount   string `json:"amount"`
}

func (h *Handler) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transfers"))
	defer timer.ObserveDuration()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		h.respond(w, "POST", "/transfers", http.StatusUnauthorized, errorBody("Authentication required"))
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, "POST", "/transfers", http.StatusBadRequest, errorBody("Malformed JSON body"))
		return
	}

	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		h.respond(w, "POST", "/transfers", http.StatusUnprocessableEntity, errorBody("Invalid receiver_id"))
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.respond(w, "POST", "/transfers", http.StatusUnprocessableEntity, errorBody("Positive amount required"))
		return
	}

	transfer, err := h.ledger.Transfer(r.Context(), actor, receiverID, amount, req.Description, &actor)
	if err != nil {
		moneyMovementsTotal.WithLabelValues("transfer", outcomeLabel(err)).Inc()
		h.respondDomainError(w, "POST", "/transfers", err)
		return
	}

	moneyMovementsTotal.WithLabelValues("transfer", "committed").Inc()
	w.Header().Set("Location", fmt.Sprintf("/api/v1/transfers/%s", transfer.ID))
	h.respond(w, "POST", "/transfers", http.StatusCreated, map[string]string{"transaction_id": transfer.ID.String()})
}

func (h *Handler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/deposits"))
	defer timer.ObserveDuration()

	actor, ok := ActorFromContext(r.Context())
	if !ok {
		h.respond(w, "POST", "/deposits", http.StatusUnauthorized, errorBody("Authentication required"))
		return
	}

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, "POST", "/deposits", http.StatusBadRequest, errorBody("Malformed JSON body"))
		return
	}
	if req.Email == "" {
		h.respond(w, "POST", "/deposits", http.StatusUnprocessableEntity, errorBody("Email required"))
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.respond(w, "POST", "/deposits", http.StatusUnprocessableEntity, errorBody("Positive amount required"))
		return
	}

	account, err := h.ledger.Deposit(r.Context(), req.Email, req.FullName, amount, &actor)
	if err != nil {
		moneyMovementsTotal.WithLabelValues("deposit", outcomeLabel(err)).Inc()
		h.respondDomainError(w, "POST", "/deposits", err)
		return
	}

	moneyMovementsTotal.WithLabelValues("deposit", "committed").Inc()
	h.respond(w, "POST", "/deposits", http.StatusOK, map[string]string{
		"account_id":  account.ID.String(),
		"new_balance": account.Balance.StringFixed(domain.AmountScale),
	})
}

func (h *Handler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respond(w, "GET", "/accounts/{id}", http.StatusUnprocessableEntity, errorBody("Invalid account id"))
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, "GET", "/accounts/{id}", err)
		return
	}
	h.respond(w, "GET", "/accounts/{id}", http.StatusOK, account)
}

func (h *Handler) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		h.respond(w, "GET", "/transfers/{id}", http.StatusUnauthorized, errorBody("Authentication required"))
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respond(w, "GET", "/transfers/{id}", http.StatusUnprocessableEntity, errorBody("Invalid transfer id"))
		return
	}

	transfer, err := h.ledger.GetTransfer(r.Context(), id, actor)
	if err != nil {
		h.respondDomainError(w, "GET", "/transfers/{id}", err)
		return
	}
	h.respond(w, "GET", "/transfers/{id}", http.StatusOK, transfer)
}

func (h *Handler) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		h.respond(w, "GET", "/transfers", http.StatusUnauthorized, errorBody("Authentication required"))
		return
	}

	transfers, err := h.ledger.ListTransfers(r.Context(), actor)
	if err != nil {
		h.respondDomainError(w, "GET", "/transfers", err)
		return
	}
	if transfers == nil {
		transfers = []domain.Transfer{}
	}
	h.respond(w, "GET", "/transfers", http.StatusOK, transfers)
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondDomainError maps the core's error taxonomy onto stable status codes.
// Storage failures surface as a generic 500; internals are never leaked.
func (h *Handler) respondDomainError(w http.ResponseWriter, method, endpoint string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		h.respond(w, method, endpoint, http.StatusUnprocessableEntity, errorBody("Positive amount required"))
	case errors.Is(err, domain.ErrSameAccount):
		h.respond(w, method, endpoint, http.StatusUnprocessableEntity, errorBody("Self-transfer not allowed"))
	case errors.Is(err, domain.ErrAccountNotFound):
		h.respond(w, method, endpoint, http.StatusNotFound, errorBody("Account not found"))
	case errors.Is(err, domain.ErrTransferNotFound):
		h.respond(w, method, endpoint, http.StatusNotFound, errorBody("Transfer not found"))
	case errors.Is(err, domain.ErrAccountInactive):
		h.respond(w, method, endpoint, http.StatusUnprocessableEntity, errorBody("Account is not active"))
	case errors.Is(err, domain.ErrInsufficientFunds):
		h.respond(w, method, endpoint, http.StatusUnprocessableEntity, errorBody("Insufficient funds"))
	case errors.Is(err, domain.ErrEmailTaken):
		h.respond(w, method, endpoint, http.StatusConflict, errorBody("Email already registered"))
	default:
		h.logger.Error("request failed", "method", method, "endpoint", endpoint, "error", err)
		h.respond(w, method, endpoint, http.StatusInternalServerError, errorBody("Internal server error"))
	}
}

func (h *Handler) respond(w http.ResponseWriter, method, endpoint string, code int, payload any) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	respondWithJSON(w, code, payload)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrAccountInactive),
		errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrEmailTaken):
		return "rejected"
	default:
		return "error"
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorBody(message))
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

package transfer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/ledger"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/settlement"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/wallet"
)

const maxWaitParam = 30 * time.Second

// Handler exposes transfer endpoints.
type Handler struct {
	executor *Executor
	wallets  *wallet.Service
}

// NewHandler constructs a transfer handler.
func NewHandler(executor *Executor, wallets *wallet.Service) *Handler {
	return &Handler{executor: executor, wallets: wallets}
}

type createRequest struct {
	ToWalletID     string `json:"to_wallet_id"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

type transferResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	State         string `json:"state"`
	UserOpHash    string `json:"user_op_hash,omitempty"`
	TxHash        string `json:"tx_hash,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// Create submits a peer-to-peer transfer from the caller's wallet.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	from, err := h.wallets.Resolve(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.Get("Idempotency-Key")
	}

	res, err := h.executor.Execute(c.UserContext(), Input{
		FromWalletID:    from.ID,
		ToWalletID:      req.ToWalletID,
		Amount:          req.Amount,
		IdempotencyKey:  req.IdempotencyKey,
		RequestorUserID: uid,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return c.Status(http.StatusUnprocessableEntity).JSON(toResponse(res))
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSameWallet):
			return c.Status(http.StatusBadRequest).JSON(toResponse(res))
		case errors.Is(err, ErrNotOwner):
			return fiber.NewError(http.StatusForbidden, "not owner of source wallet")
		case errors.Is(err, wallet.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, settlement.ErrSubmission):
			return c.Status(http.StatusBadGateway).JSON(toResponse(res))
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusAccepted).JSON(toResponse(res))
}

// Get returns the transfer record, optionally waiting for finality via the
// wait query parameter. A wait that runs out leaves the transfer submitted
// and returns its current state.
func (h *Handler) Get(c *fiber.Ctx) error {
	transactionID := c.Params("transactionId")

	if waitStr := c.Query("wait"); waitStr != "" {
		wait, err := time.ParseDuration(waitStr)
		if err != nil || wait <= 0 {
			return fiber.NewError(http.StatusBadRequest, "invalid wait duration")
		}
		if wait > maxWaitParam {
			wait = maxWaitParam
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), wait)
		defer cancel()

		rec, err := h.executor.Await(ctx, transactionID)
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "transfer not found")
		case errors.Is(err, ErrSettlementTimeout):
			return c.Status(http.StatusAccepted).JSON(recordResponse(rec))
		case err != nil:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(recordResponse(rec))
	}

	rec, err := h.executor.Get(c.UserContext(), transactionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "transfer not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(recordResponse(rec))
}

func toResponse(res Result) transferResponse {
	return transferResponse{
		Success:       res.Success,
		TransactionID: res.TransactionID,
		State:         string(res.State),
		UserOpHash:    res.UserOpHash,
		TxHash:        res.TxHash,
		Reason:        res.Reason,
	}
}

func recordResponse(rec Record) fiber.Map {
	return fiber.Map{
		"transaction_id": rec.TransactionID,
		"from_wallet_id": rec.FromWalletID,
		"to_wallet_id":   rec.ToWalletID,
		"amount":         rec.Amount,
		"state":          string(rec.State),
		"user_op_hash":   rec.UserOpHash,
		"tx_hash":        rec.TxHash,
		"reason":         rec.Reason,
		"created_at":     rec.CreatedAt,
		"updated_at":     rec.UpdatedAt,
	}
}

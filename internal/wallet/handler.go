package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type walletResponse struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	Address    string `json:"address"`
	ChainID    int64  `json:"chain_id"`
	IsDeployed bool   `json:"is_deployed"`
	Currency   string `json:"currency"`
}

type balanceResponse struct {
	WalletID        string    `json:"wallet_id"`
	RawAmount       int64     `json:"raw_amount"`
	FormattedAmount string    `json:"formatted_amount"`
	FiatValue       *float64  `json:"fiat_value,omitempty"`
	Currency        string    `json:"currency"`
	AsOf            time.Time `json:"as_of"`
}

// Resolve returns the caller's wallet identity, provisioning it on first use.
func (h *Handler) Resolve(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	w, err := h.service.Resolve(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ErrWalletCreation) {
			return fiber.NewError(http.StatusServiceUnavailable, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusOK).JSON(toWalletResponse(w))
}

// Me returns the caller's wallet together with its balance snapshot.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	w, err := h.service.GetByOwner(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}

	snap, err := h.service.Balance(c.UserContext(), w.ID)
	if err != nil {
		if errors.Is(err, ErrBalanceUnavailable) {
			return fiber.NewError(http.StatusServiceUnavailable, "balance unavailable")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet":  toWalletResponse(w),
		"balance": toBalanceResponse(snap),
	})
}

// Balance returns the balance snapshot for a wallet id.
func (h *Handler) Balance(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	snap, err := h.service.Balance(c.UserContext(), walletID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, ErrBalanceUnavailable):
			return fiber.NewError(http.StatusServiceUnavailable, "balance unavailable")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(toBalanceResponse(snap))
}

func toWalletResponse(w Wallet) walletResponse {
	return walletResponse{
		ID:         w.ID,
		OwnerID:    w.OwnerID,
		Address:    w.Address,
		ChainID:    w.ChainID,
		IsDeployed: w.IsDeployed,
		Currency:   w.Currency,
	}
}

func toBalanceResponse(snap BalanceSnapshot) balanceResponse {
	return balanceResponse{
		WalletID:        snap.WalletID,
		RawAmount:       snap.RawAmount,
		FormattedAmount: snap.FormattedAmount,
		FiatValue:       snap.FiatValue,
		Currency:        snap.Currency,
		AsOf:            snap.AsOf,
	}
}

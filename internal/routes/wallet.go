package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets/resolve", h.Resolve)
	r.Get("/wallet", h.Me)
	r.Get("/wallets/:walletId/balance", h.Balance)
}

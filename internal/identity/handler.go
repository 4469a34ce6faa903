package identity

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/wallet"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
	wallets *wallet.Service
}

// NewHandler constructs an identity HTTP handler. The wallet service is used
// to provision a counterfactual wallet at registration time.
func NewHandler(service *Service, wallets *wallet.Service) *Handler {
	return &Handler{service: service, wallets: wallets}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type userResponse struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name"`
	Role          string `json:"role"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

// Register handles account onboarding and provisions the account's wallet.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.Register(c.UserContext(), Credentials{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	})
	if err != nil {
		status := http.StatusBadRequest
		if err == ErrEmailTaken {
			status = http.StatusConflict
		}
		return fiber.NewError(status, err.Error())
	}

	resp := userResponse{UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName, Role: user.Role}
	if h.wallets != nil {
		// The address exists before any on-chain deployment, so a failure
		// here does not block registration.
		if w, err := h.wallets.Resolve(c.UserContext(), user.ID); err == nil {
			resp.WalletAddress = w.Address
		}
	}
	return c.Status(http.StatusCreated).JSON(resp)
}

package booking

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/ledger"
)

// Handler exposes HTTP endpoints for bookings and their payment.
type Handler struct {
	service *Service
}

// NewHandler constructs a booking handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	StylistID   string    `json:"stylist_id"`
	ServiceName string    `json:"service_name"`
	Amount      int64     `json:"amount"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type bookingResponse struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id"`
	StylistID     string    `json:"stylist_id"`
	ServiceName   string    `json:"service_name"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type payResponse struct {
	Booking  bookingResponse `json:"booking"`
	Transfer payTransfer     `json:"transfer"`
}

type payTransfer struct {
	TransactionID string `json:"transaction_id"`
	UserOpHash    string `json:"user_op_hash,omitempty"`
	State         string `json:"state"`
}

// Create records a pending booking for the authenticated customer.
func (h *Handler) Create(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	b, err := h.service.Create(c.UserContext(), CreateInput{
		CustomerID:  userID,
		StylistID:   req.StylistID,
		ServiceName: req.ServiceName,
		Amount:      req.Amount,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(b))
}

// Pay charges the customer's wallet for the booking amount.
func (h *Handler) Pay(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	b, result, err := h.service.Pay(c.UserContext(), c.Params("bookingId"), userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNotParticipant):
			return fiber.NewError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrNotPending):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		default:
			return fiber.NewError(http.StatusBadGateway, err.Error())
		}
	}
	return c.Status(http.StatusAccepted).JSON(payResponse{
		Booking: toResponse(b),
		Transfer: payTransfer{
			TransactionID: result.TransactionID,
			UserOpHash:    result.UserOpHash,
			State:         string(result.State),
		},
	})
}

// Cancel voids a pending booking.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	b, err := h.service.Cancel(c.UserContext(), c.Params("bookingId"), userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNotParticipant):
			return fiber.NewError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrNotPending):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(toResponse(b))
}

// Get returns one booking visible to the caller.
func (h *Handler) Get(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	b, err := h.service.Get(c.UserContext(), c.Params("bookingId"), userID)
	if err != nil {
		if errors.Is(err, ErrNotParticipant) {
			return fiber.NewError(http.StatusForbidden, err.Error())
		}
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(b))
}

// List returns the caller's bookings.
func (h *Handler) List(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	bookings, err := h.service.ListByUser(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toResponse(b))
	}
	return c.Status(http.StatusOK).JSON(out)
}

func toResponse(b Booking) bookingResponse {
	return bookingResponse{
		ID:            b.ID,
		CustomerID:    b.CustomerID,
		StylistID:     b.StylistID,
		ServiceName:   b.ServiceName,
		Amount:        b.Amount,
		Status:        b.Status,
		TransactionID: b.TransactionID,
		ScheduledAt:   b.ScheduledAt,
		CreatedAt:     b.CreatedAt,
	}
}

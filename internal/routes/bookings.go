package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/booking"
)

// RegisterBookingRoutes wires booking endpoints.
func RegisterBookingRoutes(r fiber.Router, h *booking.Handler) {
	r.Post("/bookings", h.Create)
	r.Get("/bookings", h.List)
	r.Get("/bookings/:bookingId", h.Get)
	r.Post("/bookings/:bookingId/pay", h.Pay)
	r.Post("/bookings/:bookingId/cancel", h.Cancel)
}

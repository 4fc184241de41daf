package handler

import (
	"context"  // request-scoped calls into the engine
	"errors"   // errors.Is against repository sentinels
	"log/slog" // structured error logging
	"net/http" // HTTP status codes

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/waitlist-rebooking/internal/model"      // booking types
	"github.com/iliyamo/waitlist-rebooking/internal/repository" // ErrBookingNotFound
	"github.com/iliyamo/waitlist-rebooking/internal/service"    // sweep and allocation results
)

// BookingFinder loads a booking by id.
type BookingFinder interface {
	GetByID(ctx context.Context, id string) (*model.Booking, error)
}

// SweepRunner runs one expiration sweep.
type SweepRunner interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// Reallocator replays allocation for a freed slot.
type Reallocator interface {
	Reallocate(ctx context.Context, freed model.Booking) (service.Outcome, error)
}

// AdminHandler exposes manual triggers for operators.  Both operations
// are safe to repeat: a sweep only expires entries that are still waiting
// and a reallocation can book the slot at most once.
type AdminHandler struct {
	Bookings  BookingFinder
	Sweeper   SweepRunner
	Allocator Reallocator
	Log       *slog.Logger
}

func NewAdminHandler(bookings BookingFinder, sweeper SweepRunner, alloc Reallocator, logger *slog.Logger) *AdminHandler {
	if bookings == nil || sweeper == nil || alloc == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Bookings: bookings, Sweeper: sweeper, Allocator: alloc, Log: logger.With("component", "admin")}
}

// Sweep handles POST /v1/admin/waitlist/sweep and returns the SweepResult.
func (h *AdminHandler) Sweep(c echo.Context) error {
	res, err := h.Sweeper.Sweep(c.Request().Context())
	if err != nil {
		h.Log.Error("manual sweep failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed", "partial": res})
	}
	return c.JSON(http.StatusOK, res)
}

// Reallocate handles POST /v1/admin/bookings/:id/reallocate.  It loads the
// booking, which must be cancelled, and reruns allocation and
// notification for its slot.  This is how operators replay a reaction that
// was dropped after exhausting its retries.
func (h *AdminHandler) Reallocate(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()
	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		h.Log.Error("load booking failed", "booking_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if b.Status != model.BookingCancelled {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not cancelled", "status": b.Status})
	}
	out, err := h.Allocator.Reallocate(ctx, *b)
	if err != nil {
		h.Log.Error("reallocation failed", "booking_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reallocation failed"})
	}
	return c.JSON(http.StatusOK, out)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/waitlist-rebooking/internal/model"
	"github.com/iliyamo/waitlist-rebooking/internal/repository"
	"github.com/iliyamo/waitlist-rebooking/internal/service"
)

type fakeBookings struct {
	getFn func(ctx context.Context, id string) (*model.Booking, error)
}

func (f fakeBookings) GetByID(ctx context.Context, id string) (*model.Booking, error) { return f.getFn(ctx, id) }

type fakeSweeper struct {
	sweepFn func(ctx context.Context) (service.SweepResult, error)
}

func (f fakeSweeper) Sweep(ctx context.Context) (service.SweepResult, error) { return f.sweepFn(ctx) }

type fakeReallocator struct {
	calls  int
	freed  model.Booking
	result service.Outcome
	err    error
}

func (f *fakeReallocator) Reallocate(ctx context.Context, freed model.Booking) (service.Outcome, error) {
	f.calls++
	f.freed = freed
	return f.result, f.err
}

func newAdmin(b fakeBookings, s fakeSweeper, r *fakeReallocator) (*echo.Echo, *AdminHandler) {
	h := NewAdminHandler(b, s, r, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e := echo.New()
	e.POST("/v1/admin/waitlist/sweep", h.Sweep)
	e.POST("/v1/admin/bookings/:id/reallocate", h.Reallocate)
	return e, h
}

func post(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func noBookings() fakeBookings {
	return fakeBookings{getFn: func(ctx context.Context, id string) (*model.Booking, error) {
		return nil, repository.ErrBookingNotFound
	}}
}

func idleSweeper() fakeSweeper {
	return fakeSweeper{sweepFn: func(ctx context.Context) (service.SweepResult, error) { return service.SweepResult{}, nil }}
}

func TestSweep_ReturnsResult(t *testing.T) {
	s := fakeSweeper{sweepFn: func(ctx context.Context) (service.SweepResult, error) {
		return service.SweepResult{Today: "2024-02-15", Scanned: 4, Expired: 3, Skipped: 1}, nil
	}}
	e, _ := newAdmin(noBookings(), s, &fakeReallocator{})

	rec := post(e, "/v1/admin/waitlist/sweep")
	require.Equal(t, http.StatusOK, rec.Code)
	var got service.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, service.SweepResult{Today: "2024-02-15", Scanned: 4, Expired: 3, Skipped: 1}, got)
}

func TestSweep_Failure(t *testing.T) {
	s := fakeSweeper{sweepFn: func(ctx context.Context) (service.SweepResult, error) {
		return service.SweepResult{Scanned: 2, Expired: 2}, errors.New("db gone")
	}}
	e, _ := newAdmin(noBookings(), s, &fakeReallocator{})
	assert.Equal(t, http.StatusInternalServerError, post(e, "/v1/admin/waitlist/sweep").Code)
}

func TestReallocate_UnknownBooking(t *testing.T) {
	r := &fakeReallocator{}
	e, _ := newAdmin(noBookings(), idleSweeper(), r)

	assert.Equal(t, http.StatusNotFound, post(e, "/v1/admin/bookings/nope/reallocate").Code)
	assert.Zero(t, r.calls)
}

func TestReallocate_RejectsActiveBooking(t *testing.T) {
	b := fakeBookings{getFn: func(ctx context.Context, id string) (*model.Booking, error) {
		return &model.Booking{ID: id, Status: model.BookingConfirmed}, nil
	}}
	r := &fakeReallocator{}
	e, _ := newAdmin(b, idleSweeper(), r)

	assert.Equal(t, http.StatusConflict, post(e, "/v1/admin/bookings/b-1/reallocate").Code)
	assert.Zero(t, r.calls)
}

func TestReallocate_RunsAllocationForCancelledBooking(t *testing.T) {
	cancelled := model.Booking{ID: "b-1", ResourceID: "court-1", Date: "2024-02-15", StartTime: "18:00", EndTime: "19:00", Status: model.BookingCancelled}
	b := fakeBookings{getFn: func(ctx context.Context, id string) (*model.Booking, error) {
		c := cancelled
		return &c, nil
	}}
	newID := "nb-1"
	r := &fakeReallocator{result: service.Outcome{
		Slot:         cancelled.Slot(),
		Winner:       &model.WaitlistEntry{ID: "e1", UserID: "u1"},
		NewBookingID: &newID,
		Remainder:    []model.WaitlistEntry{},
	}}
	e, _ := newAdmin(b, idleSweeper(), r)

	rec := post(e, "/v1/admin/bookings/b-1/reallocate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, "b-1", r.freed.ID)

	var got service.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.NewBookingID)
	assert.Equal(t, "nb-1", *got.NewBookingID)
	assert.Equal(t, "e1", got.Winner.ID)
}

func TestReallocate_EngineFailure(t *testing.T) {
	b := fakeBookings{getFn: func(ctx context.Context, id string) (*model.Booking, error) {
		return &model.Booking{ID: id, Status: model.BookingCancelled}, nil
	}}
	e, _ := newAdmin(b, idleSweeper(), &fakeReallocator{err: errors.New("list waiting: timeout")})
	assert.Equal(t, http.StatusInternalServerError, post(e, "/v1/admin/bookings/b-1/reallocate").Code)
}

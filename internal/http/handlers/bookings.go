package handlers

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/wolfman30/expert-call-booker/internal/booking"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

const maxBookingBody = 64 << 10

//go:embed schemas/booking_request.json
var bookingRequestSchema string

// BookingRunner executes a validated booking run.
type BookingRunner interface {
	Run(ctx context.Context, req booking.Request) (*booking.Outcome, error)
}

// BookingsHandler serves POST /api/v1/bookings.
type BookingsHandler struct {
	runner BookingRunner
	schema *gojsonschema.Schema
	logger *logging.Logger
}

// NewBookingsHandler compiles the request schema and returns the handler.
func NewBookingsHandler(runner BookingRunner, logger *logging.Logger) (*BookingsHandler, error) {
	if logger == nil {
		logger = logging.Default()
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(bookingRequestSchema))
	if err != nil {
		return nil, fmt.Errorf("handlers: compile booking schema: %w", err)
	}
	return &BookingsHandler{runner: runner, schema: schema, logger: logger}, nil
}

// BookingResponse is the body of a successful run.
type BookingResponse struct {
	RunID       string           `json:"runId"`
	BookedCount int              `json:"bookedCount"`
	Bookings    []booking.Record `json:"bookings"`
	Skipped     []booking.Skip   `json:"skipped"`
}

type errorResponse struct {
	Error   string          `json:"error"`
	Message string          `json:"message,omitempty"`
	Details []booking.Issue `json:"details,omitempty"`
}

// CreateBookings validates the request, runs the pipeline and reports the outcome.
func (h *BookingsHandler) CreateBookings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBookingBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "body_too_large"})
		return
	}

	issues, err := h.validateSchema(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_json", Message: err.Error()})
		return
	}
	if len(issues) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_failed", Details: issues})
		return
	}

	var in booking.RunInput
	if err := json.Unmarshal(body, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_json", Message: err.Error()})
		return
	}
	req, err := in.Parse()
	if err != nil {
		h.writeRunError(w, err, nil)
		return
	}

	h.logger.Info("bookings: run requested",
		"company", req.TargetCompany,
		"role", req.TargetRole,
		"num_calls", req.NumCalls,
		"max_price", req.MaxPrice,
		"windows", len(req.Availability),
	)
	outcome, err := h.runner.Run(r.Context(), req)
	if err != nil {
		h.writeRunError(w, err, outcome)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(outcome))
}

func (h *BookingsHandler) writeRunError(w http.ResponseWriter, err error, partial *booking.Outcome) {
	if ve, ok := booking.AsValidationError(err); ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_failed", Details: ve.Issues})
		return
	}
	switch {
	case errors.Is(err, booking.ErrMissingCallerIdentity):
		h.logger.Error("bookings: caller identity not configured", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "configuration_error", Message: "caller name and email must be configured"})
	case errors.Is(err, booking.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "run_in_progress"})
	case errors.Is(err, booking.ErrSearchFailed), errors.Is(err, booking.ErrSessionUnavailable):
		h.logger.Error("bookings: run aborted", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "search_failed", Message: err.Error()})
	case errors.Is(err, booking.ErrRunCanceled):
		// The client is usually gone by now; the partial outcome is logged for the operator.
		h.logger.Warn("bookings: run canceled", "booked", partial.BookedCount())
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "run_canceled"})
	default:
		h.logger.Error("bookings: run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

// validateSchema returns schema violations, or an error when body is not JSON.
func (h *BookingsHandler) validateSchema(body []byte) ([]booking.Issue, error) {
	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("request body is not valid JSON")
	}
	if result.Valid() {
		return nil, nil
	}
	issues := make([]booking.Issue, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, booking.Issue{
			Field:   schemaField(desc),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Field < issues[j].Field })
	return issues, nil
}

// schemaField renders gojsonschema paths ("availability.0.start") as
// "availability[0].start", naming the offending property for required and
// additional-property errors.
func schemaField(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if prop, ok := desc.Details()["property"].(string); ok && (desc.Type() == "required" || desc.Type() == "additional_property_not_allowed") {
		if field == "(root)" {
			field = prop
		} else {
			field += "." + prop
		}
	}
	parts := strings.Split(field, ".")
	var b strings.Builder
	for i, p := range parts {
		if isIndex(p) {
			b.WriteString("[" + p + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(p)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func toResponse(outcome *booking.Outcome) BookingResponse {
	resp := BookingResponse{Bookings: []booking.Record{}, Skipped: []booking.Skip{}}
	if outcome == nil {
		return resp
	}
	resp.RunID = outcome.RunID
	resp.BookedCount = outcome.BookedCount()
	if outcome.Booked != nil {
		resp.Bookings = outcome.Booked
	}
	if outcome.Skipped != nil {
		resp.Skipped = outcome.Skipped
	}
	return resp
}

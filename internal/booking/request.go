package booking

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wolfman30/expert-call-booker/internal/schedule"
)

// RunInput is the wire form of a run request, as posted to the API or built
// from CLI flags.
type RunInput struct {
	TargetCompany string                `json:"targetCompany"`
	TargetRole    string                `json:"targetRole"`
	NumCalls      int                   `json:"numCalls"`
	MaxPrice      float64               `json:"maxPrice"`
	Availability  []schedule.WindowSpec `json:"availability"`
}

// Request is a validated run request.
type Request struct {
	TargetCompany string
	TargetRole    string
	NumCalls      int
	MaxPrice      float64
	Availability  []schedule.Window
}

// Parse validates the input and converts it into a Request. All problems are
// reported together in a *ValidationError.
func (in RunInput) Parse() (Request, error) {
	verr := &ValidationError{}
	req := Request{
		TargetCompany: strings.TrimSpace(in.TargetCompany),
		TargetRole:    strings.TrimSpace(in.TargetRole),
		NumCalls:      in.NumCalls,
		MaxPrice:      in.MaxPrice,
	}
	req.checkScalars(verr)

	if len(in.Availability) == 0 {
		verr.add("availability", "required", "at least one availability window is required")
	}
	for i, spec := range in.Availability {
		w, err := schedule.ParseWindow(spec)
		if err != nil {
			field := fmt.Sprintf("availability[%d]", i)
			verr.add(field+windowField(err), windowCode(err), err.Error())
			continue
		}
		req.Availability = append(req.Availability, w)
	}
	if err := verr.orNil(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate re-checks a Request built in code rather than through Parse.
func (r Request) Validate() error {
	verr := &ValidationError{}
	r.checkScalars(verr)
	if len(r.Availability) == 0 {
		verr.add("availability", "required", "at least one availability window is required")
	}
	for i, w := range r.Availability {
		if err := w.Validate(); err != nil {
			verr.add(fmt.Sprintf("availability[%d]", i), windowCode(err), err.Error())
		}
	}
	return verr.orNil()
}

// Query is the free-text search sent to the marketplace.
func (r Request) Query() string {
	return strings.TrimSpace(r.TargetCompany + " " + r.TargetRole)
}

// Input converts the request back into its wire form.
func (r Request) Input() RunInput {
	specs := make([]schedule.WindowSpec, len(r.Availability))
	for i, w := range r.Availability {
		specs[i] = w.Spec()
	}
	return RunInput{
		TargetCompany: r.TargetCompany,
		TargetRole:    r.TargetRole,
		NumCalls:      r.NumCalls,
		MaxPrice:      r.MaxPrice,
		Availability:  specs,
	}
}

func (r Request) checkScalars(verr *ValidationError) {
	if strings.TrimSpace(r.TargetCompany) == "" {
		verr.add("targetCompany", "required", "targetCompany is required")
	}
	if strings.TrimSpace(r.TargetRole) == "" {
		verr.add("targetRole", "required", "targetRole is required")
	}
	if r.NumCalls < 1 {
		verr.add("numCalls", "minimum", "numCalls must be at least 1")
	}
	if r.MaxPrice < 0 || math.IsNaN(r.MaxPrice) || math.IsInf(r.MaxPrice, 0) {
		verr.add("maxPrice", "minimum", "maxPrice must be a non-negative number")
	}
}

func windowField(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, schedule.ErrInvalidTimeOfDay) && strings.HasPrefix(msg, "start:"):
		return ".start"
	case errors.Is(err, schedule.ErrInvalidTimeOfDay) && strings.HasPrefix(msg, "end:"):
		return ".end"
	case errors.Is(err, schedule.ErrInvalidWeekday), errors.Is(err, schedule.ErrNoDays):
		return ".days"
	case errors.Is(err, schedule.ErrUnknownTimezone):
		return ".timezone"
	default:
		return ""
	}
}

func windowCode(err error) string {
	switch {
	case errors.Is(err, schedule.ErrInvalidTimeOfDay):
		return "invalid_time_of_day"
	case errors.Is(err, schedule.ErrInvalidWeekday):
		return "invalid_day"
	case errors.Is(err, schedule.ErrNoDays):
		return "required"
	case errors.Is(err, schedule.ErrUnknownTimezone):
		return "invalid_timezone"
	case errors.Is(err, schedule.ErrEmptyWindow):
		return "empty_window"
	default:
		return "invalid"
	}
}

// Validate reports a missing caller identity as ErrMissingCallerIdentity.
func (c CallerDetails) Validate() error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" {
		return ErrMissingCallerIdentity
	}
	return nil
}

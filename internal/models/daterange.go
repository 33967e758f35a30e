// Package models defines data structures for the EDGAR query client and normalizer.
package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by the EDGAR search endpoint.
const DateLayout = "2006-01-02"

// Date range errors.
var (
	ErrMissingDate      = errors.New("start and end dates are required")
	ErrInvalidDateRange = errors.New("start date must not be after end date")
)

// DateRange is an inclusive pair of calendar dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange truncates both bounds to calendar dates and validates the range.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: truncateDay(start), End: truncateDay(end)}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}

	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD strings into a validated range.
func ParseDateRange(start, end string) (DateRange, error) {
	if start == "" || end == "" {
		return DateRange{}, ErrMissingDate
	}

	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}

	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}

	return NewDateRange(s, e)
}

// Today returns a single-day range covering the current local date.
func Today() DateRange {
	now := truncateDay(time.Now())
	return DateRange{Start: now, End: now}
}

// Validate checks that both bounds are set and start <= end.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return ErrMissingDate
	}

	if truncateDay(r.Start).After(truncateDay(r.End)) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, r.StartParam(), r.EndParam())
	}

	return nil
}

// StartParam renders the start date as sent upstream.
func (r DateRange) StartParam() string {
	return r.Start.Format(DateLayout)
}

// EndParam renders the end date as sent upstream.
func (r DateRange) EndParam() string {
	return r.End.Format(DateLayout)
}

// String returns a string representation of the range.
func (r DateRange) String() string {
	return r.StartParam() + "/" + r.EndParam()
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}

	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

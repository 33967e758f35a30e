package dashboard

import (
	"errors"

	"formdwatch/internal/edgar"
	"formdwatch/internal/formatter"
	"formdwatch/internal/models"
)

// Status messages shown in the filings status area.
const (
	MsgNoFilings   = "No filings found for the selected dates."
	MsgIdle        = "Choose a date range and click Check for Filings."
	MsgRateLimited = "Too many searches. Please wait a minute and try again."
)

// ShownRangeCaption labels a table kept from an earlier fetch.
func ShownRangeCaption(r *models.FilingResult) string {
	return "Showing earlier results. " + formatter.Summary(r)
}

// KindRateLimited is the JSON API error kind for rejected requests.
const KindRateLimited = "rate_limited"

// FetchErrorMessage maps a fetch or input error to a message for visitors.
// Technical detail stays in the logs.
func FetchErrorMessage(err error) string {
	switch {
	case errors.Is(err, errDateFormat):
		return "Enter dates as YYYY-MM-DD."
	case errors.Is(err, errDatesBlank):
		return "Choose both a start and an end date."
	case errors.Is(err, errDateRange):
		return "The start date must be on or before the end date."
	}

	switch edgar.ErrorKind(err) {
	case edgar.KindInvalidRange:
		return "The start date must be on or before the end date."
	case edgar.KindTimeout:
		return "The SEC search service did not respond in time. Please try again."
	case edgar.KindTransport:
		return "Could not reach the SEC search service. Please try again."
	case edgar.KindHTTPStatus:
		return "The SEC search service returned an error. Please try again later."
	case edgar.KindMalformed, edgar.KindDataContract:
		return "The SEC search service returned data in an unexpected format."
	default:
		return "Something went wrong while fetching filings."
	}
}

// apiErrorKind is the "kind" label of a JSON API error. Input errors are
// reported as invalid_range.
func apiErrorKind(err error) string {
	if errors.Is(err, errDateFormat) || errors.Is(err, errDatesBlank) || errors.Is(err, errDateRange) {
		return edgar.KindInvalidRange
	}

	return edgar.ErrorKind(err)
}

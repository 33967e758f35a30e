package normalizer

import (
	"net/url"
	"strings"

	"formdwatch/internal/models"
)

// DefaultBrowseURL is the EDGAR per-entity browse page.
const DefaultBrowseURL = "https://www.sec.gov/edgar/browse/"

// ListSeparator joins multi-value fields.
const ListSeparator = ", "

// Transformer maps validated hits to display records.
type Transformer struct {
	browseURL string
}

// NewTransformer creates a transformer linking to DefaultBrowseURL.
func NewTransformer() *Transformer {
	return NewTransformerWithBrowseURL(DefaultBrowseURL)
}

// NewTransformerWithBrowseURL creates a transformer with a custom browse page base.
func NewTransformerWithBrowseURL(browseURL string) *Transformer {
	if browseURL == "" {
		browseURL = DefaultBrowseURL
	}

	return &Transformer{browseURL: browseURL}
}

// Transform maps each hit to a Filing in input order. Hits must have passed
// Validator.Validate. The result is never nil.
func (t *Transformer) Transform(hits []models.FilingHit) []models.Filing {
	filings := make([]models.Filing, 0, len(hits))

	for _, hit := range hits {
		src := hit.Source

		links := make([]models.EdgarLink, 0, len(src.CIKs))
		for _, cik := range src.CIKs {
			links = append(links, models.EdgarLink{CIK: cik, URL: t.BrowseLink(cik)})
		}

		filings = append(filings, models.Filing{
			CompanyName:       strings.Join(src.DisplayNames, ListSeparator),
			FileDate:          src.FileDate,
			BusinessLocations: strings.Join(src.BizLocations, ListSeparator),
			Edgar:             links,
		})
	}

	return filings
}

// BrowseLink returns the browse page URL for one CIK.
func (t *Transformer) BrowseLink(cik string) string {
	return t.browseURL + "?CIK=" + url.QueryEscape(cik)
}

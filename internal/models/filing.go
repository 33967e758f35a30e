package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// SearchResponse is the envelope returned by the EDGAR full-text search index.
// Hits is nil when the body lacks the "hits" object.
type SearchResponse struct {
	Hits *HitsEnvelope `json:"hits"`
}

// HitsEnvelope holds the hit list and the upstream match count.
// Hits is nil when the inner "hits" array is absent or null.
type HitsEnvelope struct {
	Total HitsTotal   `json:"total"`
	Hits  []FilingHit `json:"hits"`
}

// HitsTotal is the number of matches upstream, which may exceed len(Hits)
// because only the first page is requested.
type HitsTotal struct {
	Value    int    `json:"value"`
	Relation string `json:"relation"`
}

// UnmarshalJSON accepts the {"value","relation"} object or a bare count.
// Any other shape leaves the total zero; the filings never depend on it.
func (t *HitsTotal) UnmarshalJSON(data []byte) error {
	*t = HitsTotal{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '{':
		var obj struct {
			Value    json.RawMessage `json:"value"`
			Relation json.RawMessage `json:"relation"`
		}

		if err := json.Unmarshal(data, &obj); err != nil {
			return nil
		}

		t.Value, _ = parseCount(obj.Value)
		_ = json.Unmarshal(obj.Relation, &t.Relation)
	default:
		t.Value, _ = parseCount(data)
	}

	return nil
}

func parseCount(data []byte) (int, bool) {
	n, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil || n < 0 {
		return 0, false
	}

	return n, true
}

// HitID is the upstream document id. It is informational only, so numbers
// are kept as their literal text and other shapes decode to "".
type HitID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *HitID) UnmarshalJSON(data []byte) error {
	*id = ""

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = HitID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = HitID(n.String())
	}

	return nil
}

// FilingHit is one search hit.
type FilingHit struct {
	ID     HitID         `json:"_id"`
	Source *FilingSource `json:"_source"`
}

// FilingSource carries the indexed fields of a filing. Absent or null list
// fields decode to nil, an explicit empty array decodes to an empty slice.
type FilingSource struct {
	CIKs         []string `json:"ciks"`
	DisplayNames []string `json:"display_names"`
	FileDate     string   `json:"file_date"`
	BizLocations []string `json:"biz_locations"`
}

// EdgarLink points at the EDGAR browse page for one filer.
type EdgarLink struct {
	CIK string `json:"cik"`
	URL string `json:"url"`
}

// Filing is the normalized, display-ready record for one hit.
type Filing struct {
	CompanyName       string      `json:"Company Name"`
	FileDate          string      `json:"File Date"`
	BusinessLocations string      `json:"Business Location(s)"`
	Edgar             []EdgarLink `json:"Edgar"`
}

// FilingResult is the outcome of one successful fetch.
type FilingResult struct {
	FetchedAt     time.Time `json:"fetchedAt"`
	Range         DateRange `json:"range"`
	TotalRelation string    `json:"totalRelation,omitempty"`
	Filings       []Filing  `json:"filings"`
	Total         int       `json:"total"`
}

// Truncated reports whether upstream matched more filings than were returned.
func (r *FilingResult) Truncated() bool {
	return r.Total > len(r.Filings) || r.TotalRelation == "gte"
}

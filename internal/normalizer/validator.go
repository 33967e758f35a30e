package normalizer

import (
	"errors"
	"fmt"

	"formdwatch/internal/models"
)

// ErrDataContract is matched by every DataContractError.
var ErrDataContract = errors.New("filing hit violates data contract")

// Field names as they appear in the upstream _source object.
const (
	FieldSource       = "_source"
	FieldCIKs         = "ciks"
	FieldDisplayNames = "display_names"
	FieldFileDate     = "file_date"
	FieldBizLocations = "biz_locations"
)

// DataContractError reports the first hit that is missing a required field.
type DataContractError struct {
	Field  string
	Reason string
	Index  int
}

func (e *DataContractError) Error() string {
	return fmt.Sprintf("%s: hit %d: %s %s", ErrDataContract, e.Index, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrDataContract) true.
func (e *DataContractError) Is(target error) bool {
	return target == ErrDataContract
}

// Validator checks hits before they are mapped.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate fails on the first hit lacking a required field. ciks,
// display_names and file_date must be non-empty; biz_locations must be
// present but may be empty.
func (v *Validator) Validate(hits []models.FilingHit) error {
	for i, hit := range hits {
		src := hit.Source
		if src == nil {
			return &DataContractError{Index: i, Field: FieldSource, Reason: "is missing"}
		}

		switch {
		case src.CIKs == nil:
			return &DataContractError{Index: i, Field: FieldCIKs, Reason: "is missing"}
		case len(src.CIKs) == 0:
			return &DataContractError{Index: i, Field: FieldCIKs, Reason: "is empty"}
		case src.DisplayNames == nil:
			return &DataContractError{Index: i, Field: FieldDisplayNames, Reason: "is missing"}
		case len(src.DisplayNames) == 0:
			return &DataContractError{Index: i, Field: FieldDisplayNames, Reason: "is empty"}
		case src.FileDate == "":
			return &DataContractError{Index: i, Field: FieldFileDate, Reason: "is missing"}
		case src.BizLocations == nil:
			return &DataContractError{Index: i, Field: FieldBizLocations, Reason: "is missing"}
		}

		for j, cik := range src.CIKs {
			if cik == "" {
				return &DataContractError{Index: i, Field: FieldCIKs, Reason: fmt.Sprintf("entry %d is blank", j)}
			}
		}
	}

	return nil
}

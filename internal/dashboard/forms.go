package dashboard

import (
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/form"
	"github.com/go-playground/validator/v10"

	"formdwatch/internal/models"
)

// FilingsForm is the date range submitted by the filings form and the JSON API.
type FilingsForm struct {
	Start time.Time `form:"start" validate:"required"`
	End   time.Time `form:"end"   validate:"required,gtefield=Start"`
}

// Range converts the form into a validated DateRange.
func (f *FilingsForm) Range() (models.DateRange, error) {
	return models.NewDateRange(f.Start, f.End)
}

// ChatForm is one submission of the chat panel. Either field may be empty,
// but not both.
type ChatForm struct {
	APIKey string `form:"api_key" validate:"max=512"`
	Prompt string `form:"prompt"  validate:"max=4000"`
}

// ChatResetForm clears the transcript and optionally the stored key.
type ChatResetForm struct {
	ForgetKey bool `form:"forget_key"`
}

var (
	errDateFormat = errors.New("dates must use the YYYY-MM-DD format")
	errDateRange  = errors.New("start date must not be after end date")
	errDatesBlank = errors.New("start and end dates are required")
	errTooLong    = errors.New("input is too long")
)

func newDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		if len(vals) == 0 || vals[0] == "" {
			return time.Time{}, nil
		}

		return time.Parse(models.DateLayout, vals[0])
	}, time.Time{})

	return d
}

// formBinder decodes url.Values into a DTO and validates it.
type formBinder struct {
	decoder  *form.Decoder
	validate *validator.Validate
}

func newFormBinder() *formBinder {
	return &formBinder{
		decoder:  newDecoder(),
		validate: validator.New(),
	}
}

func (b *formBinder) bindFilings(values url.Values) (models.DateRange, error) {
	var f FilingsForm
	if err := b.decoder.Decode(&f, values); err != nil {
		return models.DateRange{}, errDateFormat
	}

	if err := b.validate.Struct(&f); err != nil {
		return models.DateRange{}, filingsValidationError(err)
	}

	return f.Range()
}

func filingsValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	for _, fe := range verrs {
		if fe.Tag() == "gtefield" {
			return errDateRange
		}
	}

	return errDatesBlank
}

func (b *formBinder) bindChat(values url.Values) (ChatForm, error) {
	var f ChatForm
	if err := b.decoder.Decode(&f, values); err != nil {
		return f, err
	}

	if err := b.validate.Struct(&f); err != nil {
		return f, errTooLong
	}

	return f, nil
}

func (b *formBinder) bindChatReset(values url.Values) ChatResetForm {
	var f ChatResetForm
	// An unparsable checkbox means "keep the key".
	_ = b.decoder.Decode(&f, values)

	return f
}

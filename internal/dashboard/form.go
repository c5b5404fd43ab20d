package dashboard

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"nexus-chat/pkg/errors"
)

// MaxAvatarBytes caps avatar uploads.
const MaxAvatarBytes = 5 << 20

var validate = validator.New()

// Form is the create-character form.
type Form struct {
	Name            string `validate:"required,max=80"`
	Description     string `validate:"required,max=4000"`
	StartingMessage string `validate:"required,max=2000"`
	Private         bool
	Avatar          *Avatar
}

// Avatar is an optional image attached to the form.
type Avatar struct {
	FileName string
	Data     []byte
}

func (f *Form) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.StartingMessage = strings.TrimSpace(f.StartingMessage)
}

// Validate checks the form and returns a VALIDATION error whose details
// map each failing field to a message.
func (f *Form) Validate() error {
	f.normalize()

	fields := make(map[string]string)
	if err := validate.Struct(f); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return errors.NewBadRequestError(errors.CodeValidation, err.Error())
		}
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				fields[e.Field()] = "field is required"
			case "max":
				fields[e.Field()] = "must be at most " + e.Param() + " characters"
			default:
				fields[e.Field()] = "validation failed on " + e.Tag()
			}
		}
	}
	if f.Avatar != nil {
		if _, err := f.Avatar.contentType(); err != nil {
			fields["Avatar"] = errors.GetErrorMessage(err)
		}
	}
	if len(fields) > 0 {
		return errors.NewBadRequestError(errors.CodeValidation, "Please fill in all required fields").WithDetails(fields)
	}
	return nil
}

// contentType sniffs the image type from the bytes rather than trusting the
// file name.
func (a *Avatar) contentType() (*mimetype.MIME, error) {
	if len(a.Data) == 0 {
		return nil, errors.NewBadRequestError(errors.CodeValidation, "image is empty")
	}
	if len(a.Data) > MaxAvatarBytes {
		return nil, errors.NewBadRequestError(errors.CodeValidation, fmt.Sprintf("image is larger than %d MB", MaxAvatarBytes>>20))
	}
	mtype := mimetype.Detect(a.Data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, errors.NewBadRequestError(errors.CodeValidation, "file is not an image ("+mtype.String()+")")
	}
	return mtype, nil
}

func (a *Avatar) fileName(mtype *mimetype.MIME) string {
	name := strings.TrimSpace(a.FileName)
	if name == "" {
		return "avatar" + mtype.Extension()
	}
	return name
}

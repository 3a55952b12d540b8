package scrape

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"profilescraper/internal/core/model"
)

const maxProfileLen = 64

// Profiles end up as a worker argument and inside artifact file names, so
// anything that could read as a flag or a path is refused.
var profilePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("profile", func(fl validator.FieldLevel) bool {
		return profilePattern.MatchString(fl.Field().String())
	})
	return v
}

type profileInput struct {
	Profile string `validate:"required,max=64,profile"`
}

// ValidateProfile returns a model.ErrInvalidRequest error describing why p
// cannot be scraped, or nil.
func ValidateProfile(p string) error {
	err := validate.Struct(profileInput{Profile: p})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.NewError(model.ErrInvalidRequest, "profile", err)
	}
	var msg string
	switch verrs[0].Tag() {
	case "required":
		msg = "profile is required"
	case "max":
		msg = fmt.Sprintf("profile is longer than %d characters", maxProfileLen)
	default:
		msg = "profile may only contain letters, digits, '.' and '_' and must not start with '.'"
	}
	return model.NewError(model.ErrInvalidRequest, msg, nil)
}

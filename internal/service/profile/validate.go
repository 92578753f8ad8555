package profile

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	svcErr "github.com/oggyb/pupmatch/internal/errors"
	"github.com/oggyb/pupmatch/internal/geo"
	"github.com/oggyb/pupmatch/internal/recommend"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator with the profile tags registered.
// Field names in errors are the JSON names.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		mustRegister("activity", func(fl validator.FieldLevel) bool {
			return recommend.ActivityLevel(fl.Field().String()).Valid()
		})
		mustRegister("distanceunit", func(fl validator.FieldLevel) bool {
			return geo.Unit(fl.Field().String()).Valid()
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// validateRequest checks v's validate tags and reports the first failures as
// a validation error.
func validateRequest(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return svcErr.Validation("%v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return svcErr.Validation("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "max", "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be below %s", field, strings.ToLower(fe.Param()))
	case "latitude", "longitude":
		return fmt.Sprintf("%s is not a valid %s", field, fe.Tag())
	case "activity":
		return field + " must be low, medium or high"
	case "distanceunit":
		return field + " must be miles or kilometers"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// validateCoordinates requires latitude and longitude to be set together.
func validateCoordinates(lat, lon *float64) error {
	if (lat == nil) != (lon == nil) {
		return svcErr.Validation("latitude and longitude must be set together")
	}
	if lat != nil && !geo.ValidCoordinates(*lat, *lon) {
		return svcErr.Validation("coordinates out of range")
	}
	return nil
}

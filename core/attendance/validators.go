package attendance

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-attendance/core"
)

var (
	statusTag  = "attendancestatus"
	statusText = "{0} must be one of: " + joinStatuses()

	timeOrderTag  = "timeorder"
	timeOrderText = "time_out must not be before time_in"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	validate.RegisterStructValidation(markInputStructValidation, MarkInput{})
	core.RegisterCustomTranslation(validate, translator, timeOrderTag, timeOrderText)
}

func statusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).IsValid()
}

func markInputStructValidation(sl validator.StructLevel) {
	in := sl.Current().Interface().(MarkInput)
	if in.TimeIn == "" || in.TimeOut == "" {
		return
	}
	// HH:MM:SS strings order lexically
	if core.NormalizeClock(in.TimeOut) < core.NormalizeClock(in.TimeIn) {
		sl.ReportError(in.TimeOut, "time_out", "TimeOut", timeOrderTag, "")
	}
}

func joinStatuses() string {
	names := make([]string, 0, len(AllStatuses))
	for _, s := range AllStatuses {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func statusFieldError(field string, s Status) core.FieldError {
	return core.FieldError{
		Field: field,
		Error: fmt.Sprintf("%q is not a valid status, must be one of: %s", s, joinStatuses()),
	}
}

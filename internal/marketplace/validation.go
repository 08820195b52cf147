package marketplace

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/sudo-init-do/juggle/internal/validate"
)

func init() {
	validate.Register("category", fmt.Sprintf("must be one of %v", Categories), func(fl validator.FieldLevel) bool {
		return IsCategory(fl.Field().String())
	})
	validate.Register("budget", "must be a non-negative whole number", func(fl validator.FieldLevel) bool {
		n, err := Budget(fl.Field().String()).parse()
		return err == nil && n >= 0
	})
	validate.RegisterStruct(taskLocation, TaskInput{})
	validate.Describe("online_location", "online tasks must not carry a location")
	validate.Describe("offline_location", "offline tasks need latitude, longitude and string_location")
}

// taskLocation requires exactly one of an online task or a full location.
func taskLocation(sl validator.StructLevel) {
	in := sl.Current().Interface().(TaskInput)
	hasLocation := in.Latitude != nil && in.Longitude != nil && in.StringLocation != nil
	anyLocation := in.Latitude != nil || in.Longitude != nil || in.StringLocation != nil
	switch {
	case in.IsOnline && anyLocation:
		sl.ReportError(in.IsOnline, "location", "IsOnline", "online_location", "")
	case !in.IsOnline && !hasLocation:
		sl.ReportError(in.IsOnline, "location", "IsOnline", "offline_location", "")
	}
}

// ValidateTask checks a task request and returns the parsed budget. Every
// violation is reported in the returned *validate.ValidationError.
func ValidateTask(in TaskInput) (int, error) {
	if err := validate.Struct(in); err != nil {
		return 0, err
	}
	return in.Budget.parse()
}

// ValidateReview checks a review of reviewedUserID written by reviewerID.
func ValidateReview(reviewerID, reviewedUserID string, in ReviewInput) error {
	var v validate.Collector
	v.Struct(in)
	v.ID("user", reviewedUserID)
	v.Check(reviewerID != reviewedUserID, "user", "cannot review yourself")
	return v.Err()
}

package marketplace

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/sudo-init-do/juggle/internal/models"
)

var (
	// ErrForbidden is returned when the session does not own the record.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a required record does not exist.
	ErrNotFound = errors.New("not found")
)

// Task categories. AllCategories is a listing filter only, never stored.
const (
	CategoryCleaning   = "Cleaning"
	CategoryDelivery   = "Delivery"
	CategoryMoving     = "Moving"
	CategoryComputerIT = "Computer/IT"
	CategoryHandyMan   = "Handy Man"
	CategoryGardening  = "Gardening"
	CategoryAssembly   = "Assembly"
	CategoryOther      = "Other"

	AllCategories = "All"
)

// Categories lists every category a task can be posted in.
var Categories = []string{
	CategoryCleaning,
	CategoryDelivery,
	CategoryMoving,
	CategoryComputerIT,
	CategoryHandyMan,
	CategoryGardening,
	CategoryAssembly,
	CategoryOther,
}

// IsCategory reports whether c is one of Categories.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Budget is the budget as typed by the poster. It accepts a JSON string or
// number and is parsed during validation.
type Budget string

func (b *Budget) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = Budget(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("budget must be a string or number")
	}
	*b = Budget(n.String())
	return nil
}

func (b Budget) parse() (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

// TaskInput is the request to post a task. Location fields are checked
// together with IsOnline by taskLocation.
type TaskInput struct {
	Title          string   `json:"title" validate:"min=10,max=40"`
	Description    string   `json:"description" validate:"min=25,max=250"`
	Category       string   `json:"category" validate:"category"`
	Budget         Budget   `json:"budget" validate:"budget"`
	IsOnline       bool     `json:"is_online"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	StringLocation *string  `json:"string_location"`
}

// ReviewInput is the request to review a user.
type ReviewInput struct {
	Rating      int    `json:"rating" validate:"gte=1,lte=5"`
	Description string `json:"description" validate:"min=10,max=250"`
}

// TaskView is a task together with its owner and the owner's rating. A
// missing owner or missing reviews yield defaulted values.
type TaskView struct {
	Task       models.Task   `json:"task"`
	Owner      models.User   `json:"owner"`
	OwnerFound bool          `json:"owner_found"`
	Rating     RatingSummary `json:"rating"`
	TaskFound  bool          `json:"-"`
}

// Package validate runs struct tag validation and reports every rejected
// field at once as a *ValidationError.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sudo-init-do/juggle/internal/realtime"
)

// FieldError is one rejected field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError is returned before any write when input is rejected.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field was rejected.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// As extracts a *ValidationError from err.
func As(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

var (
	engine = validator.New(validator.WithRequiredStructEnabled())

	mu      sync.RWMutex
	reasons = map[string]string{}
)

func init() {
	// Report fields under their JSON names.
	engine.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	Register("notblank", "is required", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	Register("segment", "must be a single id without / . $ # [ ]", func(fl validator.FieldLevel) bool {
		return IsSegment(fl.Field().String())
	})
}

// IsSegment reports whether id can be used as exactly one store path key.
func IsSegment(id string) bool {
	clean, err := realtime.Clean(id)
	return err == nil && clean != "" && clean == id && !strings.Contains(id, "/")
}

// Register adds a field tag. reason is reported when the tag fails. It
// panics on a malformed tag and is meant for package init.
func Register(tag, reason string, fn validator.Func) {
	if err := engine.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validate: register %q: %v", tag, err))
	}
	Describe(tag, reason)
}

// RegisterStruct adds a cross-field rule for types. The rule reports
// failures with StructLevel.ReportError; pair its tags with Describe.
func RegisterStruct(fn validator.StructLevelFunc, types ...any) {
	engine.RegisterStructValidation(fn, types...)
}

// Describe sets the reason reported for tag.
func Describe(tag, reason string) {
	mu.Lock()
	reasons[tag] = reason
	mu.Unlock()
}

func reason(fe validator.FieldError) string {
	mu.RLock()
	r, ok := reasons[fe.Tag()]
	mu.RUnlock()
	if ok {
		return r
	}

	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min", "gte":
		return "must be at least " + fe.Param() + unit
	case "max", "lte":
		return "must be at most " + fe.Param() + unit
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "failed " + fe.Tag()
}

// Collector accumulates field errors from tag validation and ad hoc checks.
type Collector struct {
	fields []FieldError
}

func (c *Collector) Add(field, reason string) {
	c.fields = append(c.fields, FieldError{Field: field, Reason: reason})
}

func (c *Collector) Addf(field, format string, args ...any) {
	c.Add(field, fmt.Sprintf(format, args...))
}

// Check adds reason for field when ok is false.
func (c *Collector) Check(ok bool, field, reason string) {
	if !ok {
		c.Add(field, reason)
	}
}

// Struct validates the tags of s.
func (c *Collector) Struct(s any) {
	c.collect("", engine.Struct(s))
}

// Var validates a single value against tag and reports it as field.
func (c *Collector) Var(field string, value any, tag string) {
	c.collect(field, engine.Var(value, tag))
}

// ID requires id to be a single store key.
func (c *Collector) ID(field, id string) {
	c.Var(field, id, "required,segment")
}

func (c *Collector) collect(field string, err error) {
	if err == nil {
		return
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		c.Add(field, err.Error())
		return
	}
	for _, fe := range errs {
		name := field
		if name == "" {
			name = fe.Field()
		}
		c.Add(name, reason(fe))
	}
}

// Err returns nil when nothing was collected.
func (c *Collector) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: append([]FieldError(nil), c.fields...)}
}

// Struct validates s and returns a *ValidationError or nil.
func Struct(s any) error {
	var c Collector
	c.Struct(s)
	return c.Err()
}

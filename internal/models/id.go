package models

import "github.com/google/uuid"

// NewID returns a time ordered unique id for a new record.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

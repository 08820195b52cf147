package models

import "time"

// Task is stored at tasks/{ownerUid}/{taskId}. Location fields are set only
// for offline tasks.
type Task struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	Budget         int       `json:"budget"`
	IsOnline       bool      `json:"is_online"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	StringLocation *string   `json:"string_location,omitempty"`
	CreationDate   time.Time `json:"creation_date"`
}

// DecodeTask never fails. A missing isTaskOnline means online; offline tasks
// without coordinates fall back to the default city centre and an empty
// location string.
func DecodeTask(id string, v any) Task {
	r := asRecord(v)
	t := Task{
		ID:           id,
		UserID:       str(r, KeyUserID),
		Title:        str(r, KeyTaskTitle),
		Description:  str(r, KeyTaskDescription),
		Category:     str(r, KeyTaskCategory),
		CreationDate: timestamp(r, KeyCreationDate),
	}
	if budget, ok := integer(r, KeyTaskBudget); ok {
		t.Budget = budget
	}

	t.IsOnline = decodeOnline(r)
	if !t.IsOnline {
		lat, ok := float(r, KeyLatitude)
		if !ok {
			lat = DefaultLatitude
		}
		lon, ok := float(r, KeyLongitude)
		if !ok {
			lon = DefaultLongitude
		}
		loc, _ := strPtr(r, KeyStringLocation)
		t.Latitude, t.Longitude, t.StringLocation = &lat, &lon, &loc
	}
	return t
}

func decodeOnline(r Record) bool {
	if b, ok := r[KeyIsTaskOnline].(bool); ok {
		return b
	}
	if n, ok := integer(r, KeyIsTaskOnline); ok {
		return n == 1
	}
	return true
}

func (t Task) Record() Record {
	r := Record{
		KeyUserID:          t.UserID,
		KeyTaskTitle:       t.Title,
		KeyTaskDescription: t.Description,
		KeyTaskCategory:    t.Category,
		KeyTaskBudget:      t.Budget,
		KeyCreationDate:    Seconds(t.CreationDate),
	}
	if t.IsOnline {
		r[KeyIsTaskOnline] = 1
		return r
	}
	r[KeyIsTaskOnline] = 0
	if t.Latitude != nil {
		r[KeyLatitude] = *t.Latitude
	}
	if t.Longitude != nil {
		r[KeyLongitude] = *t.Longitude
	}
	if t.StringLocation != nil {
		r[KeyStringLocation] = *t.StringLocation
	}
	return r
}

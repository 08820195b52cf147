package models

import "time"

// Message is stored at messages/{messageId}.
type Message struct {
	ID          string    `json:"id"`
	FromID      string    `json:"from_id"`
	ToID        string    `json:"to_id"`
	Text        string    `json:"text"`
	TimeStamp   time.Time `json:"timestamp"`
	TaskID      string    `json:"task_id"`
	TaskOwnerID string    `json:"task_owner_id"`
}

func DecodeMessage(id string, v any) Message {
	r := asRecord(v)
	return Message{
		ID:          id,
		FromID:      str(r, KeyFromID),
		ToID:        str(r, KeyToID),
		Text:        str(r, KeyText),
		TimeStamp:   timestamp(r, KeyTimeStamp),
		TaskID:      str(r, KeyTaskID),
		TaskOwnerID: str(r, KeyTaskOwnerID),
	}
}

// ChatPartnerID returns the other participant from the point of view of uid.
func (m Message) ChatPartnerID(uid string) string {
	if m.FromID == uid {
		return m.ToID
	}
	return m.FromID
}

func (m Message) Record() Record {
	return Record{
		KeyFromID:      m.FromID,
		KeyToID:        m.ToID,
		KeyText:        m.Text,
		KeyTimeStamp:   Seconds(m.TimeStamp),
		KeyTaskID:      m.TaskID,
		KeyTaskOwnerID: m.TaskOwnerID,
	}
}

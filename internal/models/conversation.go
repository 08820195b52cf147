package models

import "time"

// ConversationEntry is the inbox index entry kept at
// user-conversations/{uid}/{partnerUid}. It points at the newest message
// exchanged with that partner about any task.
type ConversationEntry struct {
	PartnerID   string    `json:"partner_id"`
	MessageID   string    `json:"message_id"`
	TimeStamp   time.Time `json:"timestamp"`
	TaskID      string    `json:"task_id"`
	TaskOwnerID string    `json:"task_owner_id"`
}

func DecodeConversationEntry(partnerID string, v any) ConversationEntry {
	r := asRecord(v)
	return ConversationEntry{
		PartnerID:   partnerID,
		MessageID:   str(r, KeyMessageID),
		TimeStamp:   timestamp(r, KeyTimeStamp),
		TaskID:      str(r, KeyTaskID),
		TaskOwnerID: str(r, KeyTaskOwnerID),
	}
}

// EntryFor builds the index entry that message m produces for uid.
func EntryFor(uid string, m Message) ConversationEntry {
	return ConversationEntry{
		PartnerID:   m.ChatPartnerID(uid),
		MessageID:   m.ID,
		TimeStamp:   m.TimeStamp,
		TaskID:      m.TaskID,
		TaskOwnerID: m.TaskOwnerID,
	}
}

func (e ConversationEntry) Record() Record {
	return Record{
		KeyMessageID:   e.MessageID,
		KeyTimeStamp:   Seconds(e.TimeStamp),
		KeyTaskID:      e.TaskID,
		KeyTaskOwnerID: e.TaskOwnerID,
	}
}

// Account is the credential record at accounts/{emailKey}.
type Account struct {
	UserID       string
	PasswordHash string
}

func DecodeAccount(v any) Account {
	r := asRecord(v)
	return Account{UserID: str(r, KeyUserID), PasswordHash: str(r, KeyPasswordHash)}
}

func (a Account) Record() Record {
	return Record{KeyUserID: a.UserID, KeyPasswordHash: a.PasswordHash}
}

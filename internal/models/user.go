package models

// User is a marketplace member stored at users/{uid}.
type User struct {
	ID              string `json:"id"`
	EmailAddress    string `json:"email_address"`
	FullName        string `json:"full_name"`
	ProfileImageURL string `json:"profile_image_url"`
	FCMToken        string `json:"-"`
}

// DecodeUser never fails; missing fields decode to empty strings.
func DecodeUser(id string, v any) User {
	r := asRecord(v)
	return User{
		ID:              id,
		EmailAddress:    str(r, KeyEmailAddress),
		FullName:        str(r, KeyFullName),
		ProfileImageURL: str(r, KeyProfileImageURL),
		FCMToken:        str(r, KeyFCMToken),
	}
}

func (u User) Record() Record {
	return Record{
		KeyEmailAddress:    u.EmailAddress,
		KeyFullName:        u.FullName,
		KeyProfileImageURL: u.ProfileImageURL,
		KeyFCMToken:        u.FCMToken,
	}
}

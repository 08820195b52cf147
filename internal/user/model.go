package user

import (
	"github.com/sudo-init-do/juggle/internal/marketplace"
	"github.com/sudo-init-do/juggle/internal/models"
)

// PublicProfile is what other members see of a user.
type PublicProfile struct {
	User   models.User               `json:"user"`
	Rating marketplace.RatingSummary `json:"rating"`
}

// UpdateProfileRequest edits the session user's profile. Empty fields leave
// the stored value unchanged.
type UpdateProfileRequest struct {
	FullName        string `json:"full_name"`
	ProfileImageURL string `json:"profile_image_url"`
	FCMToken        string `json:"fcm_token"`
}

type FCMTokenRequest struct {
	Token string `json:"fcm_token"`
}

package models

import "time"

// Review is stored at reviews/{reviewedUid}/{reviewId}. UserID is the
// reviewer; ReviewedUserID is the partition key and is not part of the record.
type Review struct {
	ID             string    `json:"id"`
	ReviewedUserID string    `json:"reviewed_user_id"`
	UserID         string    `json:"user_id"`
	Rating         int       `json:"rating"`
	Description    string    `json:"description"`
	CreationDate   time.Time `json:"creation_date"`
}

func DecodeReview(reviewedUserID, id string, v any) Review {
	r := asRecord(v)
	rev := Review{
		ID:             id,
		ReviewedUserID: reviewedUserID,
		UserID:         str(r, KeyUserID),
		Description:    str(r, KeyReviewDescription),
		CreationDate:   timestamp(r, KeyCreationDate),
	}
	if rating, ok := integer(r, KeyRating); ok {
		rev.Rating = rating
	}
	return rev
}

func (rev Review) Record() Record {
	return Record{
		KeyUserID:            rev.UserID,
		KeyRating:            rev.Rating,
		KeyReviewDescription: rev.Description,
		KeyCreationDate:      Seconds(rev.CreationDate),
	}
}

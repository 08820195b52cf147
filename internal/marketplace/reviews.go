package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
	"github.com/sudo-init-do/juggle/internal/session"
)

// CreateReview stores a review of reviewedUserID written by the session user.
func (s *Service) CreateReview(ctx context.Context, sess session.Session, reviewedUserID string, in ReviewInput) (models.Review, error) {
	if !sess.Valid() {
		return models.Review{}, session.ErrUnauthenticated
	}
	if err := ValidateReview(sess.UserID, reviewedUserID, in); err != nil {
		return models.Review{}, err
	}

	ok, err := realtime.Exists(ctx, s.store, realtime.Join(models.UsersRef, reviewedUserID))
	if err != nil {
		return models.Review{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return models.Review{}, ErrNotFound
	}

	review := models.Review{
		ID:             s.newID(),
		ReviewedUserID: reviewedUserID,
		UserID:         sess.UserID,
		Rating:         in.Rating,
		Description:    in.Description,
		CreationDate:   s.now().UTC(),
	}
	if err := s.writer.WriteReview(ctx, review); err != nil {
		return models.Review{}, fmt.Errorf("create review: %w", err)
	}
	s.logger.Info().Str("review_id", review.ID).Str("reviewed_user_id", reviewedUserID).Int("rating", review.Rating).Msg("review created")
	return review, nil
}

// ListReviews returns the reviews of uid, newest first.
func (s *Service) ListReviews(ctx context.Context, uid string) ([]models.Review, error) {
	if err := checkIDs("id", uid); err != nil {
		return nil, err
	}
	children, err := realtime.Children(ctx, s.store, realtime.Join(models.ReviewsRef, uid))
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	reviews := make([]models.Review, 0, len(children))
	for id, v := range children {
		reviews = append(reviews, models.DecodeReview(uid, id, v))
	}
	sort.Slice(reviews, func(i, j int) bool {
		if !reviews[i].CreationDate.Equal(reviews[j].CreationDate) {
			return reviews[i].CreationDate.After(reviews[j].CreationDate)
		}
		return reviews[i].ID > reviews[j].ID
	})
	return reviews, nil
}

// Summary returns the rating summary of uid. A user without reviews has an
// average of 0.
func (s *Service) Summary(ctx context.Context, uid string) (RatingSummary, error) {
	reviews, err := s.ListReviews(ctx, uid)
	if err != nil {
		return RatingSummary{}, err
	}
	return summarizeReviews(uid, reviews), nil
}

func summarizeReviews(uid string, reviews []models.Review) RatingSummary {
	ratings := make([]int, 0, len(reviews))
	for _, r := range reviews {
		ratings = append(ratings, r.Rating)
	}
	return Summarize(uid, ratings)
}

// GetUser reads a user record. Missing users decode to a defaulted value and
// found reports whether the record existed.
func (s *Service) GetUser(ctx context.Context, uid string) (user models.User, found bool, err error) {
	if err := checkIDs("id", uid); err != nil {
		return models.User{}, false, err
	}
	v, err := s.store.Get(ctx, realtime.Join(models.UsersRef, uid))
	if errors.Is(err, realtime.ErrNotFound) {
		return models.DecodeUser(uid, nil), false, nil
	}
	if err != nil {
		return models.User{}, false, fmt.Errorf("get user: %w", err)
	}
	return models.DecodeUser(uid, v), true, nil
}

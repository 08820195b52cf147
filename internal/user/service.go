package user

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/juggle/internal/marketplace"
	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
	"github.com/sudo-init-do/juggle/internal/session"
	"github.com/sudo-init-do/juggle/internal/validate"
)

var ErrNotFound = errors.New("user not found")

// RatingSource computes a user's rating summary.
type RatingSource interface {
	Summary(ctx context.Context, uid string) (marketplace.RatingSummary, error)
}

// ImageUploader stores a profile image and returns its URL.
type ImageUploader interface {
	UploadProfileImage(ctx context.Context, r io.Reader) (string, error)
}

// Service reads and edits users/{uid} records.
type Service struct {
	store   realtime.Store
	ratings RatingSource
	images  ImageUploader
}

func NewService(store realtime.Store, ratings RatingSource, images ImageUploader) *Service {
	return &Service{store: store, ratings: ratings, images: images}
}

func userPath(uid string) string {
	return realtime.Join(models.UsersRef, uid)
}

func (s *Service) get(ctx context.Context, uid string) (models.User, error) {
	v, err := s.store.Get(ctx, userPath(uid))
	if errors.Is(err, realtime.ErrNotFound) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("read user: %w", err)
	}
	return models.DecodeUser(uid, v), nil
}

// Profile returns uid's public profile with their rating summary.
func (s *Service) Profile(ctx context.Context, uid string) (PublicProfile, error) {
	var v validate.Collector
	v.ID("id", uid)
	if err := v.Err(); err != nil {
		return PublicProfile{}, err
	}

	var p PublicProfile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.get(gctx, uid)
		p.User = u
		return err
	})
	g.Go(func() error {
		r, err := s.ratings.Summary(gctx, uid)
		p.Rating = r
		return err
	})
	if err := g.Wait(); err != nil {
		return PublicProfile{}, err
	}
	return p, nil
}

// UpdateProfile writes the non-empty fields of req in one update.
func (s *Service) UpdateProfile(ctx context.Context, sess session.Session, req UpdateProfileRequest) (models.User, error) {
	if !sess.Valid() {
		return models.User{}, session.ErrUnauthenticated
	}
	if _, err := s.get(ctx, sess.UserID); err != nil {
		return models.User{}, err
	}

	values := map[string]any{}
	set := func(key, value string) {
		if value != "" {
			values[realtime.Join(userPath(sess.UserID), key)] = value
		}
	}
	set(models.KeyFullName, req.FullName)
	set(models.KeyProfileImageURL, req.ProfileImageURL)
	set(models.KeyFCMToken, req.FCMToken)

	if len(values) > 0 {
		if err := s.store.Update(ctx, values); err != nil {
			return models.User{}, fmt.Errorf("update profile: %w", err)
		}
	}
	return s.get(ctx, sess.UserID)
}

// UpdateFCMToken registers the device token pushes are sent to.
func (s *Service) UpdateFCMToken(ctx context.Context, sess session.Session, token string) error {
	var v validate.Collector
	v.Var("fcm_token", token, "notblank")
	if err := v.Err(); err != nil {
		return err
	}
	_, err := s.UpdateProfile(ctx, sess, UpdateProfileRequest{FCMToken: token})
	return err
}

// UploadProfileImage stores the image and points the session user's
// profile at it.
func (s *Service) UploadProfileImage(ctx context.Context, sess session.Session, r io.Reader) (models.User, error) {
	if !sess.Valid() {
		return models.User{}, session.ErrUnauthenticated
	}
	if _, err := s.get(ctx, sess.UserID); err != nil {
		return models.User{}, err
	}
	url, err := s.images.UploadProfileImage(ctx, r)
	if err != nil {
		return models.User{}, err
	}
	return s.UpdateProfile(ctx, sess, UpdateProfileRequest{ProfileImageURL: url})
}

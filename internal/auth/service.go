package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudo-init-do/juggle/internal/log"
	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// Service owns credentials. Accounts live at accounts/{emailKey} and point
// at the users/{uid} profile created alongside them.
type Service struct {
	store      realtime.Store
	tokens     TokenIssuer
	newID      func() string
	now        func() time.Time
	bcryptCost int
	logger     zerolog.Logger
}

func NewService(store realtime.Store, tokens TokenIssuer) *Service {
	return &Service{
		store:      store,
		tokens:     tokens,
		newID:      models.NewID,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
		logger:     log.WithComponent("auth"),
	}
}

// Session is returned by signup and login.
type Session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// NormalizeEmail lowercases and trims an address so lookups are case
// insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountPath is where the credentials for email are stored. Email
// addresses contain characters that are not valid in keys, so the key is a
// digest of the normalized address.
func AccountPath(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return realtime.Join(models.AccountsRef, hex.EncodeToString(sum[:]))
}

func (s *Service) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *Service) account(ctx context.Context, email string) (models.Account, error) {
	v, err := s.store.Get(ctx, AccountPath(email))
	if errors.Is(err, realtime.ErrNotFound) {
		return models.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("read account: %w", err)
	}
	return models.DecodeAccount(v), nil
}

func (s *Service) user(ctx context.Context, uid string) (models.User, error) {
	v, err := s.store.Get(ctx, realtime.Join(models.UsersRef, uid))
	if errors.Is(err, realtime.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("read user: %w", err)
	}
	return models.DecodeUser(uid, v), nil
}

func (s *Service) issue(u models.User) (Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: u}, nil
}

package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/ai"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const (
	resetTokenTTL   = 15 * time.Minute
	resetTokenBytes = 32

	defaultWalletName = "Cash"
	defaultWalletType = "cash"
)

var errInvalidCredentials = &core.ValidationError{Field: "password", Reason: "invalid email or password"}

// ResetNotifier delivers a password reset token to its owner.
type ResetNotifier interface {
	NotifyReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// LogNotifier writes reset tokens to the log. It stands in for a mail sender.
type LogNotifier struct{}

func (LogNotifier) NotifyReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	slog.InfoContext(ctx, "Password reset requested",
		"email", email,
		"token", token,
		"expires_at", expiresAt.Format(time.RFC3339))
	return nil
}

type UserService struct {
	repo     *storage.Repository
	notifier ResetNotifier
	now      func() time.Time
	cost     int
}

func NewUserService(repo *storage.Repository, notifier ResetNotifier) *UserService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &UserService{repo: repo, notifier: notifier, now: time.Now, cost: bcrypt.DefaultCost}
}

// Register creates a user together with default settings, a cash wallet and
// one category per vocabulary label, atomically.
func (s *UserService) Register(ctx context.Context, in core.RegisterInput) (core.User, error) {
	return s.register(ctx, in, core.RoleUser)
}

// CreateAdmin is Register with the admin role.
func (s *UserService) CreateAdmin(ctx context.Context, in core.RegisterInput) (core.User, error) {
	return s.register(ctx, in, core.RoleAdmin)
}

func (s *UserService) register(ctx context.Context, in core.RegisterInput, role core.Role) (core.User, error) {
	if err := in.Validate(); err != nil {
		return core.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	u := core.User{
		ID:           core.NewID(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         role,
		Status:       core.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.InsertUser(ctx, u); err != nil {
			return err
		}
		if err := q.InsertSettings(ctx, core.DefaultSettings(u.ID)); err != nil {
			return err
		}
		if err := q.InsertWallet(ctx, core.Wallet{
			ID: core.NewID(), UserID: u.ID, Name: defaultWalletName, Type: defaultWalletType, CreatedAt: now,
		}); err != nil {
			return err
		}
		for _, label := range ai.Labels {
			if err := q.InsertCategory(ctx, core.Category{
				ID: core.NewID(), UserID: u.ID, Name: label, Direction: ai.DirectionOf(label),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.User{}, err
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, userID string) (core.User, error) {
	return s.repo.Queries().GetUser(ctx, userID)
}

func (s *UserService) Settings(ctx context.Context, userID string) (core.Settings, error) {
	return s.repo.Queries().GetSettings(ctx, userID)
}

func (s *UserService) UpdateSettings(ctx context.Context, userID string, in core.SettingsInput) (core.Settings, error) {
	if err := in.Validate(); err != nil {
		return core.Settings{}, err
	}
	st := core.Settings{
		UserID:        userID,
		Currency:      strings.ToUpper(strings.TrimSpace(in.Currency)),
		Language:      strings.TrimSpace(in.Language),
		Notifications: in.Notifications,
		AISuggestions: in.AISuggestions,
		Theme:         in.Theme,
	}
	if err := s.repo.Queries().UpdateSettings(ctx, st); err != nil {
		return core.Settings{}, err
	}
	return st, nil
}

// RequestPasswordReset issues a fresh token for email, replacing any previous
// one, and hands it to the notifier.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	q := s.repo.Queries()
	if _, err := q.GetUserByEmail(ctx, email); err != nil {
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	t := core.PasswordResetToken{Email: email, Token: token, ExpiresAt: s.now().UTC().Add(resetTokenTTL)}
	if err := q.UpsertResetToken(ctx, t); err != nil {
		return err
	}
	return s.notifier.NotifyReset(ctx, t.Email, t.Token, t.ExpiresAt)
}

// ResetPassword consumes a live token and sets the new password.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := core.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	return s.repo.WithTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetResetToken(ctx, token)
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrInvalidToken
		}
		if err != nil {
			return err
		}
		if now.After(t.ExpiresAt) {
			return core.ErrInvalidToken
		}
		if err := q.UpdatePasswordHash(ctx, t.Email, string(hash), now); err != nil {
			return err
		}
		return q.DeleteResetToken(ctx, t.Email)
	})
}

// Authenticate checks credentials. Locked accounts get ErrForbidden.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	u, err := s.repo.Queries().GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, errInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return core.User{}, errInvalidCredentials
	}
	if u.Status != core.StatusActive {
		return core.User{}, core.ErrForbidden
	}
	return u, nil
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/mailer"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/repository"
	"github.com/nocson47/beaconofknowledge/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultResetTokenTTL = 60 * time.Minute
	resetTokenBytes      = 32
)

// ForgotPasswordMessage is returned whether or not the account exists.
const ForgotPasswordMessage = "If an account with that email exists, a reset link has been sent"

type PasswordResetService struct {
	userRepo  repository.UserRepository
	resetRepo repository.PasswordResetRepository
	mail      mailer.Mailer
	audit     *AuditService
	ttl       time.Duration
	baseURL   string
	now       func() time.Time
}

func NewPasswordResetService(
	userRepo repository.UserRepository,
	resetRepo repository.PasswordResetRepository,
	mail mailer.Mailer,
	audit *AuditService,
	ttl time.Duration,
	baseURL string,
) *PasswordResetService {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &PasswordResetService{
		userRepo:  userRepo,
		resetRepo: resetRepo,
		mail:      mail,
		audit:     audit,
		ttl:       ttl,
		baseURL:   strings.TrimRight(baseURL, "/"),
		now:       time.Now,
	}
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// RequestReset issues a token and mails it. The caller always answers ForgotPasswordMessage;
// only storage failures surface, and an unknown email is indistinguishable from success.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		s.audit.Debug(ctx, "info", "password reset requested for unknown email", nil)
		return nil
	}

	token, err := newResetToken()
	if err != nil {
		return models.NewInternalError(err)
	}
	reset := &models.PasswordReset{
		UserID:    user.ID,
		TokenHash: hashResetToken(token),
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}
	if err := s.resetRepo.Create(ctx, reset); err != nil {
		return err
	}
	s.audit.Record(ctx, &user.ID, "password_reset_requested", "user", user.ID, nil)

	link := s.baseURL + "/reset-password?token=" + url.QueryEscape(token)
	msg := mailer.Message{
		To:      user.Email,
		Subject: "Reset your Beacon of Knowledge password",
		Body: fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password. It expires in %d minutes.\n\n%s\n\nIf you did not ask for this, ignore this email.\n",
			user.Username, int(s.ttl.Minutes()), link),
	}
	if s.mail != nil {
		if err := s.mail.Send(ctx, msg); err != nil {
			s.audit.Debug(ctx, "error", "password reset mail failed", map[string]any{
				"user_id": user.ID,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// ResetPassword consumes a token. Errors: invalid token, token already used, token expired.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.NewValidationError("invalid token")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}

	reset, err := s.resetRepo.GetByTokenHash(ctx, hashResetToken(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewValidationError("invalid token")
		}
		return err
	}
	if reset.Used {
		return models.NewConflictError("token already used")
	}
	if !s.now().Before(reset.ExpiresAt) {
		return models.NewValidationError("token expired")
	}

	// Claim the token before touching the password so two racing resets cannot both win.
	if err := s.resetRepo.MarkUsed(ctx, reset.ID); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.userRepo.SetPassword(ctx, reset.UserID, string(hash)); err != nil {
		return err
	}
	if err := s.resetRepo.DeleteOthers(ctx, reset.UserID, reset.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, &reset.UserID, "password_reset_completed", "user", reset.UserID, nil)
	return nil
}

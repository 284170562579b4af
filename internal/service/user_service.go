package service

import (
	"context"
	"strings"

	"github.com/nocson47/beaconofknowledge/internal/authz"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/repository"
	"github.com/nocson47/beaconofknowledge/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	userRepo   repository.UserRepository
	audit      *AuditService
	bcryptCost int
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type UpdateProfileInput struct {
	ActorID    uint
	TargetID   uint
	Bio        *string
	GithubURL  *string
	TwitterURL *string
	WebsiteURL *string
}

func NewUserService(userRepo repository.UserRepository, audit *AuditService) *UserService {
	return &UserService{userRepo: userRepo, audit: audit, bcryptCost: bcrypt.DefaultCost}
}

// Actor resolves the stored identity behind a request.
func (s *UserService) Actor(ctx context.Context, userID uint) (*authz.Actor, error) {
	return resolveActor(ctx, s.userRepo, userID)
}

// Register creates a member account. Usernames are stored lowercase.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := validation.NormalizeUsername(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hash),
		Role:     models.RoleMember,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, &user.ID, "user_registered", "user", user.ID, nil)
	return user, nil
}

// Authenticate checks a username-or-email and password pair. Every mismatch is the same error.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, models.NewInvalidCredentialsError()
	}
	user, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewInvalidCredentialsError()
	}
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetUserByUsername returns NOT_FOUND rather than nil for an unknown name.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

// UpdateProfile edits bio and links. Owners edit themselves; admins edit anyone.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	actor, err := s.Actor(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	target, err := s.userRepo.GetByID(ctx, in.TargetID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionEdit, authz.UserResource(target)); err != nil {
		return nil, err
	}

	if in.Bio != nil {
		if err := validation.ValidateBio(*in.Bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		target.Bio = *in.Bio
	}
	links := []struct {
		in  *string
		out *string
	}{
		{in.GithubURL, &target.GithubURL},
		{in.TwitterURL, &target.TwitterURL},
		{in.WebsiteURL, &target.WebsiteURL},
	}
	for _, l := range links {
		if l.in == nil {
			continue
		}
		v := strings.TrimSpace(*l.in)
		if err := validation.ValidateLink(v); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		*l.out = v
	}

	if err := s.userRepo.UpdateProfile(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

// SetRole is the only path that changes a role, and it is admin only.
func (s *UserService) SetRole(ctx context.Context, actorID, targetID uint, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, models.NewValidationError("role must be member or admin")
	}
	actor, err := s.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionModerate, authz.UserResource(target)); err != nil {
		return nil, err
	}
	if actor.ID == target.ID && role != models.RoleAdmin {
		return nil, models.NewInvalidOperationError("Admins cannot demote themselves")
	}
	if target.Role == role {
		return target, nil
	}

	if err := s.userRepo.UpdateRole(ctx, targetID, role); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, &actor.ID, "user_role_changed", "user", targetID, map[string]any{
		"from": target.Role,
		"to":   role,
	})
	target.Role = role
	return target, nil
}

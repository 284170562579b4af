package service

import (
	"context"
	"testing"

	"github.com/nocson47/beaconofknowledge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(repo *userRepoStub, audit *auditRepoStub) *UserService {
	svc := NewUserService(repo, NewAuditService(audit, nil, repo))
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes and hashes", func(t *testing.T) {
		repo := newUserRepoStub()
		audit := &auditRepoStub{}
		svc := newTestUserService(repo, audit)

		user, err := svc.Register(ctx, RegisterInput{Username: " Reader_1 ", Email: "Reader@Example.com", Password: "longenough"})
		require.NoError(t, err)
		assert.Equal(t, "reader_1", user.Username)
		assert.Equal(t, "reader@example.com", user.Email)
		assert.Equal(t, models.RoleMember, user.Role)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("longenough")))
		assert.Equal(t, []string{"user_registered"}, audit.actions())
	})

	t.Run("validation", func(t *testing.T) {
		svc := newTestUserService(newUserRepoStub(), &auditRepoStub{})
		cases := []RegisterInput{
			{Username: "ab", Email: "a@example.com", Password: "longenough"},
			{Username: "valid_name", Email: "nope", Password: "longenough"},
			{Username: "valid_name", Email: "a@example.com", Password: "short"},
		}
		for _, in := range cases {
			_, err := svc.Register(ctx, in)
			assertAppCode(t, err, models.CodeValidation)
		}
	})

	t.Run("conflict passes through", func(t *testing.T) {
		repo := newUserRepoStub()
		repo.createFn = func(context.Context, *models.User) error {
			return models.NewConflictError("Username or email already taken")
		}
		svc := newTestUserService(repo, &auditRepoStub{})
		_, err := svc.Register(ctx, RegisterInput{Username: "taken", Email: "t@example.com", Password: "longenough"})
		assertAppCode(t, err, models.CodeConflict)
	})
}

func TestUserService_Authenticate(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepoStub()
	svc := newTestUserService(repo, &auditRepoStub{})
	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	byName, err := svc.Authenticate(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	byEmail, err := svc.Authenticate(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, byName.ID, byEmail.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assertAppCode(t, err, models.CodeInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody", "correct-horse")
	assertAppCode(t, err, models.CodeInvalidCredentials)
	_, err = svc.Authenticate(ctx, "", "")
	assertAppCode(t, err, models.CodeInvalidCredentials)
}

func TestUserService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepoStub(member(1), member(2), admin(3))
	svc := newTestUserService(repo, &auditRepoStub{})
	bio := "hello"
	site := "https://example.com"

	updated, err := svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: 1, TargetID: 1, Bio: &bio, WebsiteURL: &site})
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Bio)

	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: 2, TargetID: 1, Bio: &bio})
	assertAppCode(t, err, models.CodeForbidden)

	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: 0, TargetID: 1, Bio: &bio})
	assertAppCode(t, err, models.CodeUnauthenticated)

	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: 3, TargetID: 1, Bio: &bio})
	assert.NoError(t, err, "admins may edit any profile")

	bad := "javascript:alert(1)"
	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: 1, TargetID: 1, GithubURL: &bad})
	assertAppCode(t, err, models.CodeValidation)
}

func TestUserService_SetRole(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepoStub(member(1), admin(2))
	audit := &auditRepoStub{}
	svc := newTestUserService(repo, audit)

	_, err := svc.SetRole(ctx, 1, 1, models.RoleAdmin)
	assertAppCode(t, err, models.CodeForbidden)

	_, err = svc.SetRole(ctx, 2, 2, models.RoleMember)
	assertAppCode(t, err, models.CodeInvalidOperation)

	_, err = svc.SetRole(ctx, 2, 1, "owner")
	assertAppCode(t, err, models.CodeValidation)

	promoted, err := svc.SetRole(ctx, 2, 1, models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin())
	assert.Equal(t, []string{"user_role_changed"}, audit.actions())

	_, err = svc.SetRole(ctx, 99, 1, models.RoleAdmin)
	assertAppCode(t, err, models.CodeUnauthenticated)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/identica-edu/portal-api/internal/models"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
)

type fakeAuthUsers struct {
	user          *models.User
	lastLoginSet  bool
	lastLoginUser string
}

func (f *fakeAuthUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	if f.user == nil || f.user.Username != username {
		return nil, sql.ErrNoRows
	}
	return f.user, nil
}

func (f *fakeAuthUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.user, nil
}

func (f *fakeAuthUsers) UpdateLastLogin(_ context.Context, id string, _ time.Time) error {
	f.lastLoginSet = true
	f.lastLoginUser = id
	return nil
}

type fakeAuthProfiles struct {
	profile *models.Profile
}

func (f *fakeAuthProfiles) EnsureProfile(context.Context, string) (*models.Profile, error) {
	return f.profile, nil
}

func authFixture(t *testing.T) (*AuthService, *fakeAuthUsers) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	users := &fakeAuthUsers{user: &models.User{
		ID:           "user-1",
		Username:     "student1",
		Email:        "student1@university.local",
		PasswordHash: string(hash),
		Active:       true,
	}}
	profiles := &fakeAuthProfiles{profile: &models.Profile{ID: "profile-1", UserID: "user-1", Role: models.RoleStudent}}
	svc := NewAuthService(users, profiles, nil, nil, AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "portal-api",
	})
	return svc, users
}

func TestLoginIssuesValidatableToken(t *testing.T) {
	svc, users := authFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "student1", Password: "password123"})
	require.NoError(t, err)

	assert.Equal(t, "student1", res.User.Username)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.True(t, users.lastLoginSet)
	assert.Equal(t, "user-1", users.lastLoginUser)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "profile-1", claims.ProfileID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "student1", Password: "nope00"})

	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, apiErr.Code)
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "password123"})

	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, apiErr.Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, users := authFixture(t)
	users.user.Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "student1", Password: "password123"})

	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, apiErr.Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := authFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "student1", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(res.AccessToken + "x")
	assert.Error(t, err)

	other := NewAuthService(&fakeAuthUsers{}, &fakeAuthProfiles{}, nil, nil, AuthConfig{Secret: "other-secret", Expiration: time.Hour})
	_, err = other.ValidateToken(res.AccessToken)
	assert.Error(t, err)
}

func TestCurrentUserChecksActiveFlag(t *testing.T) {
	svc, users := authFixture(t)

	user, err := svc.CurrentUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "student1", user.Username)

	users.user.Active = false
	_, err = svc.CurrentUser(context.Background(), "user-1")
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, apiErr.Code)

	_, err = svc.CurrentUser(context.Background(), "user-9")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrUnauthorized.Code, apiErr.Code)
}

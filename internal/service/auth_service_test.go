package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapro-backend/internal/auth"
	"mapro-backend/internal/repository"
	"mapro-backend/internal/repository/sqlite"
)

const testSecret = "test-secret"

func newUserRepo(t *testing.T) repository.UserRepository {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestAuthService_SignUpThenLogin(t *testing.T) {
	t.Parallel()

	svc := NewAuthService(newUserRepo(t), testSecret, time.Hour)
	ctx := context.Background()

	signup, err := svc.SignUp(ctx, "alice", "s3cret1", "Alice")
	require.NoError(t, err)
	assert.NotEmpty(t, signup.Token)
	assert.NotZero(t, signup.UserID)
	assert.Equal(t, "alice", signup.Username)
	assert.Equal(t, "Alice", signup.Name)

	login, err := svc.Login(ctx, "alice", "s3cret1")
	require.NoError(t, err)
	assert.NotEqual(t, signup.Token, login.Token)
	assert.True(t, svc.ValidateToken(signup.Token))
	assert.True(t, svc.ValidateToken(login.Token))

	// both tokens must decode to the same identity
	for _, tok := range []string{signup.Token, login.Token} {
		claims, err := auth.ParseToken(tok, []byte(testSecret))
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Subject)
		assert.Equal(t, signup.UserID, claims.UserID)
	}
}

func TestAuthService_SignUpDuplicate(t *testing.T) {
	t.Parallel()

	repo := newUserRepo(t)
	svc := NewAuthService(repo, testSecret, time.Hour)
	ctx := context.Background()

	first, err := svc.SignUp(ctx, "alice", "s3cret1", "Alice")
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, "alice", "other", "Other Alice")
	require.ErrorIs(t, err, ErrUserAlreadyExists)

	// the first account is untouched
	user, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.UserID, user.ID)
	assert.Equal(t, "Alice", user.Name)
}

func TestAuthService_LoginFailures(t *testing.T) {
	t.Parallel()

	svc := NewAuthService(newUserRepo(t), testSecret, time.Hour)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "alice", "s3cret1", "Alice")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "bob", "s3cret1")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_PasswordNeverStoredPlain(t *testing.T) {
	t.Parallel()

	repo := newUserRepo(t)
	svc := NewAuthService(repo, testSecret, time.Hour)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "alice", "s3cret1", "Alice")
	require.NoError(t, err)

	user, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.NotContains(t, user.PasswordHash, "s3cret1")
	assert.NotEqual(t, "s3cret1", user.PasswordHash)
}

func TestAuthService_ValidateTokenGarbage(t *testing.T) {
	t.Parallel()

	svc := NewAuthService(newUserRepo(t), testSecret, time.Hour)

	assert.False(t, svc.ValidateToken(""))
	assert.False(t, svc.ValidateToken("not.a.jwt"))
}

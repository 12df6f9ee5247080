package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapro-backend/internal/auth"
	"mapro-backend/internal/domain"
	"mapro-backend/internal/repository/sqlite"
	"mapro-backend/internal/service"
	"mapro-backend/internal/storage"
)

const testSecret = "test-secret"

type testEnv struct {
	router    *gin.Engine
	optionIDs []int64
}

func newTestEnv(t *testing.T, archiveStore ...storage.Service) *testEnv {
	t.Helper()

	dir := t.TempDir()
	db, err := sqlite.Open(filepath.Join(dir, "mapro.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	auditDB, err := sqlite.Open(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditDB.Close() })

	ctx := context.Background()
	userRepo := sqlite.NewUserRepository(db)
	prefRepo := sqlite.NewPreferenceRepository(db)
	auditRepo := sqlite.NewAuditRepository(auditDB)
	require.NoError(t, userRepo.Init(ctx))
	require.NoError(t, prefRepo.Init(ctx))
	require.NoError(t, auditRepo.Init(ctx))

	require.NoError(t, prefRepo.Seed(ctx, []domain.PreferenceCategory{
		{Name: "Atmosphere", Options: []domain.PreferenceOption{{Name: "Quiet"}, {Name: "Lively"}}},
	}))
	categories, err := prefRepo.ListCategories(ctx)
	require.NoError(t, err)
	var optionIDs []int64
	for _, opt := range categories[0].Options {
		optionIDs = append(optionIDs, opt.ID)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var store storage.Service
	bucket, keyPrefix := "", ""
	if len(archiveStore) > 0 {
		store = archiveStore[0]
		bucket, keyPrefix = "audit-bucket", "activity-logs"
	}

	handler := NewHandler(
		service.NewAuthService(userRepo, testSecret, time.Hour),
		service.NewUserService(userRepo),
		service.NewPreferenceService(prefRepo),
		service.NewActivityLogger(auditRepo, store, bucket, keyPrefix),
		testSecret,
		logger,
	)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.RegisterRoutes(router)

	return &testEnv{router: router, optionIDs: optionIDs}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func (e *testEnv) signUp(t *testing.T, username, password, name string) authResponse {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": username, "password": password, "name": name,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp authResponse
	decodeBody(t, rec, &resp)
	return resp
}

func TestSignUpLoginFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	signup := env.signUp(t, "alice", "s3cret1", "Alice")
	assert.NotEmpty(t, signup.Token)
	assert.NotZero(t, signup.UserID)

	// duplicate signup
	rec := env.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": "alice", "password": "other", "name": "Other",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// login with the right password
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice", "password": "s3cret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login authResponse
	decodeBody(t, rec, &login)
	assert.NotEqual(t, signup.Token, login.Token)
	assert.Equal(t, signup.UserID, login.UserID)

	// wrong password
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// unknown user
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "ghost", "password": "whatever",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	signup := env.signUp(t, "alice", "s3cret1", "Alice")

	rec := env.do(t, http.MethodGet, "/api/auth/validate", signup.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/validate", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/validate", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareGatesUserRoutes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/user/pfr", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/user/pfr", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	signup := env.signUp(t, "alice", "s3cret1", "Alice")
	rec = env.do(t, http.MethodGet, "/api/user/pfr", signup.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// a well signed token whose subject never signed up is rejected
	ghost, err := auth.GenerateToken("ghost", 42, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/api/user/pfr", ghost, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPreferenceRoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	signup := env.signUp(t, "alice", "s3cret1", "Alice")

	rec := env.do(t, http.MethodPost, "/api/user/pfr/save", signup.Token, env.optionIDs[:1])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/user/pfr", signup.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var prefs struct {
		OptionIDs []int64 `json:"optionIds"`
	}
	decodeBody(t, rec, &prefs)
	assert.Equal(t, env.optionIDs[:1], prefs.OptionIDs)

	// unknown option id
	rec = env.do(t, http.MethodPost, "/api/user/pfr/save", signup.Token, []int64{99999})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateUserName(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	signup := env.signUp(t, "alice", "s3cret1", "Alice")

	rec := env.do(t, http.MethodPatch, "/api/user/1", signup.Token, gin.H{"name": "Alice Liddell"})
	require.Equal(t, http.StatusOK, rec.Code)
	var user userResponse
	decodeBody(t, rec, &user)
	assert.Equal(t, "Alice Liddell", user.Name)
	assert.Equal(t, "alice", user.Username)

	rec = env.do(t, http.MethodPatch, "/api/user/999", signup.Token, gin.H{"name": "Nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLogs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	signup := env.signUp(t, "alice", "s3cret1", "Alice")

	// login twice to generate LOGIN records on top of the SIGNUP one
	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
			"username": "alice", "password": "s3cret1",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/user/logs?page=0&size=10", signup.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Size    int                   `json:"size"`
		Records []auditRecordResponse `json:"records"`
	}
	decodeBody(t, rec, &logs)
	require.Len(t, logs.Records, 3)
	for _, record := range logs.Records {
		assert.Equal(t, "alice", record.Username)
		assert.Equal(t, signup.UserID, record.UserID)
	}

	// page past the end is empty, not an error
	rec = env.do(t, http.MethodGet, "/api/user/logs?page=5&size=10", signup.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &logs)
	assert.Empty(t, logs.Records)

	// absurd page sizes are clamped, not served verbatim
	rec = env.do(t, http.MethodGet, "/api/user/logs?page=0&size=10000000", signup.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &logs)
	assert.Equal(t, service.MaxLogPageSize, logs.Size)
	assert.Len(t, logs.Records, 3)

	// audit archive is not configured in tests
	rec = env.do(t, http.MethodPost, "/api/user/logs/archive", signup.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/user/logs/archives", signup.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type memoryArchiveStore struct {
	objects []storage.ObjectInfo
}

func (s *memoryArchiveStore) PutObject(_ context.Context, bucket, key string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.objects = append(s.objects, storage.ObjectInfo{Key: key, Size: int64(len(data))})
	return "s3://" + bucket + "/" + key, nil
}

func (s *memoryArchiveStore) ListObjects(context.Context, string, string) ([]storage.ObjectInfo, error) {
	return s.objects, nil
}

func TestArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &memoryArchiveStore{})
	signup := env.signUp(t, "alice", "s3cret1", "Alice")

	rec := env.do(t, http.MethodPost, "/api/user/logs/archive", signup.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var archived struct {
		Location string `json:"location"`
	}
	decodeBody(t, rec, &archived)
	assert.Contains(t, archived.Location, "s3://audit-bucket/activity-logs/audit-")

	rec = env.do(t, http.MethodGet, "/api/user/logs/archives", signup.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Archives []struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
		} `json:"archives"`
	}
	decodeBody(t, rec, &listing)
	require.Len(t, listing.Archives, 1)
	assert.Contains(t, listing.Archives[0].Key, "activity-logs/audit-")
	assert.Positive(t, listing.Archives[0].Size)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-api/internal/auth"
	"messenger-api/internal/data"
	"messenger-api/internal/middleware"
	"messenger-api/internal/mocks"
)

func setupAuthRouter(store *mocks.AccountStoreMock, limiter *middleware.LimiterStore) *gin.Engine {
	handler := NewAuthHandler(store, testJWT, limiter)
	r := gin.New()
	r.POST("/auth/register", handler.Register)
	r.POST("/auth/login", handler.Login)
	return r
}

func newTestLimiter(t *testing.T) *middleware.LimiterStore {
	t.Helper()
	limiter := middleware.NewLimiterStore(60, 10, time.Minute)
	t.Cleanup(limiter.Stop)
	return limiter
}

func TestRegister(t *testing.T) {
	store := new(mocks.AccountStoreMock)
	router := setupAuthRouter(store, newTestLimiter(t))

	created := testUser("alice")
	store.On("CreateUser", mock.Anything, "alice", "alice@example.com", mock.AnythingOfType("string")).
		Return(created, nil).Once()

	body := bytes.NewBufferString(`{"username":"alice","email":"alice@example.com","password":"s3cret-pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	respData := envelopeData(t, decodeEnvelope(t, rec))
	require.NotEmpty(t, respData["token"])
	require.Equal(t, "alice", respData["user"].(map[string]any)["username"])
	store.AssertExpectations(t)
}

func TestRegisterDuplicate(t *testing.T) {
	store := new(mocks.AccountStoreMock)
	router := setupAuthRouter(store, newTestLimiter(t))

	store.On("CreateUser", mock.Anything, "alice", "alice@example.com", mock.AnythingOfType("string")).
		Return(nil, data.ErrUserExists).Once()

	body := bytes.NewBufferString(`{"username":"alice","email":"alice@example.com","password":"s3cret-pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	store.AssertExpectations(t)
}

func TestRegisterValidation(t *testing.T) {
	store := new(mocks.AccountStoreMock)
	router := setupAuthRouter(store, newTestLimiter(t))

	for _, body := range []string{
		`{}`,
		`{"username":"al","email":"alice@example.com","password":"s3cret-pass"}`,
		`{"username":"alice","email":"not-an-email","password":"s3cret-pass"}`,
		`{"username":"alice","email":"alice@example.com","password":"short"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
	store.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin(t *testing.T) {
	store := new(mocks.AccountStoreMock)
	router := setupAuthRouter(store, newTestLimiter(t))

	hashed, err := auth.HashPassword("s3cret-pass")
	require.NoError(t, err)
	user := testUser("alice")
	user.Password = hashed

	// the lookup email is normalized first
	store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(user, nil).Twice()

	body := bytes.NewBufferString(`{"email":" Alice@Example.com ","password":"s3cret-pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	respData := envelopeData(t, decodeEnvelope(t, rec))
	require.NotEmpty(t, respData["token"])

	// wrong password: 401, same message as unknown account
	body = bytes.NewBufferString(`{"email":"alice@example.com","password":"wrong-pass"}`)
	req = httptest.NewRequest(http.MethodPost, "/auth/login", body)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.Equal(t, "invalid email or password", resp["message"])
	store.AssertExpectations(t)
}

func TestLoginUnknownAccount(t *testing.T) {
	store := new(mocks.AccountStoreMock)
	router := setupAuthRouter(store, newTestLimiter(t))

	store.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, data.ErrUserNotFound).Once()

	body := bytes.NewBufferString(`{"email":"ghost@example.com","password":"whatever1"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.Equal(t, "invalid email or password", resp["message"])
	store.AssertExpectations(t)
}

func TestLoginRateLimitedPerEmail(t *testing.T) {
	store := new(mocks.AccountStoreMock)
	limiter := middleware.NewLimiterStore(1, 1, time.Minute)
	t.Cleanup(limiter.Stop)
	router := setupAuthRouter(store, limiter)

	store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(nil, data.ErrUserNotFound).Once()

	body := `{"email":"alice@example.com","password":"whatever1"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// second attempt for the same account trips the per-email limiter
	req = httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	store.AssertExpectations(t)
}

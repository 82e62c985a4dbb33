package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alumlink/alumlink/internal/auth"
	"github.com/alumlink/alumlink/internal/database"
	"github.com/alumlink/alumlink/internal/models"
)

func setupAuthRouter(store database.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth.InitJWTKey([]byte("test-secret"))

	router := gin.New()
	handler := NewAuthHandler(store)

	router.POST("/api/auth/register", handler.Register)
	router.POST("/api/auth/login", handler.Login)
	router.GET("/api/auth/me", AuthMiddleware(), handler.GetMe)
	router.GET("/api/users", AuthMiddleware(), handler.GetAllUsers)

	return router
}

func TestRegister(t *testing.T) {
	store := new(MockStore)
	router := setupAuthRouter(store)

	created := &models.User{
		ID:        uuid.New(),
		Name:      "Ada Lovelace",
		Email:     "ada@example.com",
		CreatedAt: time.Now().UTC(),
	}

	store.On("CreateUser", "Ada Lovelace", "ada@example.com", mock.AnythingOfType("string")).Return(created, nil)

	body, _ := json.Marshal(models.UserRegistration{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Password: "secret123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var got models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Ada Lovelace", got.Name)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegisterDuplicate(t *testing.T) {
	store := new(MockStore)
	router := setupAuthRouter(store)

	store.On("CreateUser", "Ada Lovelace", "ada@example.com", mock.AnythingOfType("string")).
		Return(nil, database.ErrUserAlreadyExists)

	body, _ := json.Marshal(models.UserRegistration{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Password: "secret123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin(t *testing.T) {
	store := new(MockStore)
	router := setupAuthRouter(store)

	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)

	user := &models.User{
		ID:           uuid.New(),
		Name:         "Ada Lovelace",
		Email:        "ada@example.com",
		PasswordHash: hash,
	}

	store.On("GetUserByEmail", "ada@example.com").Return(user, nil)
	store.On("UpdateLastSeen", user.ID).Return(nil)

	body, _ := json.Marshal(models.UserLogin{Email: "ada@example.com", Password: "secret123"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Contains(t, got, "token")
	assert.Contains(t, got, "user")
}

func TestLoginWrongPassword(t *testing.T) {
	store := new(MockStore)
	router := setupAuthRouter(store)

	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)

	user := &models.User{ID: uuid.New(), Email: "ada@example.com", PasswordHash: hash}
	store.On("GetUserByEmail", "ada@example.com").Return(user, nil)

	body, _ := json.Marshal(models.UserLogin{Email: "ada@example.com", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	store := new(MockStore)
	router := setupAuthRouter(store)

	store.On("GetUserByEmail", "ghost@example.com").Return(nil, database.ErrUserNotFound)

	body, _ := json.Marshal(models.UserLogin{Email: "ghost@example.com", Password: "whatever"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetMe(t *testing.T) {
	store := new(MockStore)
	router := setupAuthRouter(store)

	user := &models.User{ID: uuid.New(), Name: "Ada Lovelace", Email: "ada@example.com"}
	store.On("GetUserByID", user.ID).Return(user, nil)

	token, _, err := auth.GenerateToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), user.ID.String())
}

func TestGetAllUsersExcludesCaller(t *testing.T) {
	store := new(MockStore)
	router := setupAuthRouter(store)

	caller := &models.User{ID: uuid.New(), Name: "Ada Lovelace"}
	others := []*models.User{
		{ID: uuid.New(), Name: "Charles Babbage", Email: "charles@example.com"},
	}
	store.On("GetAllUsers", caller.ID).Return(others, nil)

	token, _, err := auth.GenerateToken(caller)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var got []models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Charles Babbage", got[0].Name)
}

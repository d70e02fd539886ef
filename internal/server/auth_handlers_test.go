package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"driftboard/internal/config"
	"driftboard/internal/middleware"
	"driftboard/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock of the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) SetRole(ctx context.Context, id uint, role string) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func (m *MockUserRepository) SetBanned(ctx context.Context, id uint, banned bool) error {
	args := m.Called(ctx, id, banned)
	return args.Error(0)
}

// authRedis wires a go-redis client to an in-process miniredis.
func authRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSignup(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockUserRepository)

	s := &Server{
		config:   &config.Config{JWTSecret: "test_secret"},
		userRepo: mockRepo,
	}

	app.Post("/signup", s.Signup)

	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func()
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]string{
				"username": "testuser",
				"email":    "test@example.com",
				"password": "Password123!",
			},
			mockSetup: func() {
				mockRepo.On("GetByEmail", mock.Anything, "test@example.com").Return(nil, nil)
				mockRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Duplicate User",
			body: map[string]string{
				"username": "testuser",
				"email":    "exists@example.com",
				"password": "Password123!",
			},
			mockSetup: func() {
				mockRepo.On("GetByEmail", mock.Anything, "exists@example.com").Return(&models.User{ID: 1}, nil)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "Weak Password",
			body: map[string]string{
				"username": "testuser",
				"email":    "weak@example.com",
				"password": "short",
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Invalid Email",
			body: map[string]string{
				"username": "testuser",
				"email":    "not-an-email",
				"password": "Password123!",
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Missing Fields",
			body: map[string]string{
				"username": "testuser",
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, _ := app.Test(req)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var respBody map[string]interface{}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&respBody))
				assert.NotEmpty(t, respBody["token"])
			}
		})
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := &models.User{ID: 42, Username: "testuser", Email: "test@example.com", Password: string(hash)}

	app := fiber.New()
	mockRepo := new(MockUserRepository)
	s := &Server{
		config:   &config.Config{JWTSecret: "test_secret"},
		userRepo: mockRepo,
	}
	app.Post("/login", s.Login)

	mockRepo.On("GetByEmail", mock.Anything, "test@example.com").Return(stored, nil)
	mockRepo.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, nil)

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
	}{
		{
			name:           "Success",
			body:           map[string]string{"email": "test@example.com", "password": "Password123!"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Wrong Password",
			body:           map[string]string{"email": "test@example.com", "password": "WrongPass123!"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Unknown Email",
			body:           map[string]string{"email": "nobody@example.com", "password": "Password123!"},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, _ := app.Test(req)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var respBody map[string]interface{}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&respBody))
				assert.NotEmpty(t, respBody["token"])
				assert.NotEmpty(t, respBody["refresh_token"])
			}
		})
	}
}

func TestLogin_IssuesStoredRefreshToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.MinCost)
	require.NoError(t, err)

	mr, client := authRedis(t)
	mockRepo := new(MockUserRepository)
	mockRepo.On("GetByEmail", mock.Anything, "test@example.com").
		Return(&models.User{ID: 42, Password: string(hash)}, nil)

	s := &Server{
		config:   &config.Config{JWTSecret: "test_secret"},
		userRepo: mockRepo,
		redis:    client,
	}
	app := fiber.New()
	app.Post("/login", s.Login)

	body, _ := json.Marshal(map[string]string{"email": "test@example.com", "password": "Password123!"})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var respBody map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&respBody))
	refreshToken, _ := respBody["refresh_token"].(string)
	require.NotEmpty(t, refreshToken)

	// The refresh token maps back to the user ID in Redis.
	val, err := mr.Get(refreshTokenKey(refreshToken))
	require.NoError(t, err)
	assert.Equal(t, "42", val)
}

func TestRefresh_RotatesToken(t *testing.T) {
	mr, client := authRedis(t)
	require.NoError(t, mr.Set(refreshTokenKey("old-token"), "42"))

	mockRepo := new(MockUserRepository)
	mockRepo.On("GetByID", mock.Anything, uint(42)).Return(&models.User{ID: 42, Username: "testuser"}, nil)

	s := &Server{
		config:   &config.Config{JWTSecret: "test_secret"},
		userRepo: mockRepo,
		redis:    client,
	}
	app := fiber.New()
	app.Post("/refresh", s.Refresh)

	body, _ := json.Marshal(map[string]string{"refresh_token": "old-token"})
	req := httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var respBody map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&respBody))
	newToken, _ := respBody["refresh_token"].(string)
	require.NotEmpty(t, newToken)
	assert.NotEqual(t, "old-token", newToken)

	// The presented token is consumed; the replacement is stored.
	assert.False(t, mr.Exists(refreshTokenKey("old-token")))
	assert.True(t, mr.Exists(refreshTokenKey(newToken)))

	// Replaying the consumed token fails.
	req = httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp2, _ := app.Test(req)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestRefresh_UnknownToken(t *testing.T) {
	_, client := authRedis(t)
	s := &Server{
		config: &config.Config{JWTSecret: "test_secret"},
		redis:  client,
	}
	app := fiber.New()
	app.Post("/refresh", s.Refresh)

	body, _ := json.Marshal(map[string]string{"refresh_token": "never-issued"})
	req := httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefresh_NoSessionStore(t *testing.T) {
	s := &Server{config: &config.Config{JWTSecret: "test_secret"}}
	app := fiber.New()
	app.Post("/refresh", s.Refresh)

	body, _ := json.Marshal(map[string]string{"refresh_token": "anything"})
	req := httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLogout_RevokesSessionState(t *testing.T) {
	mr, client := authRedis(t)
	require.NoError(t, mr.Set(refreshTokenKey("live-token"), "42"))

	s := &Server{
		config: &config.Config{JWTSecret: "test_secret"},
		redis:  client,
	}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(42))
		c.Locals("jti", "logout-jti")
		return c.Next()
	})
	app.Post("/logout", s.Logout)

	body, _ := json.Marshal(map[string]string{"refresh_token": "live-token"})
	req := httptest.NewRequest(http.MethodPost, "/logout", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.False(t, mr.Exists(refreshTokenKey("live-token")))
	assert.True(t, mr.Exists(middleware.BlacklistKey("logout-jti")))
}

func TestGenerateToken_RequiresSecret(t *testing.T) {
	s := &Server{config: &config.Config{}}
	_, err := s.generateToken(1, "testuser")
	assert.Error(t, err)
}

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/natsukage/task-tracker-api/internal/database"
	"github.com/natsukage/task-tracker-api/internal/middleware"
	"github.com/natsukage/task-tracker-api/internal/models"
	"github.com/natsukage/task-tracker-api/internal/repository"
	"github.com/natsukage/task-tracker-api/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// AuthHandlerTestSuite exercises the session flow end to end: register and
// login set the cookie, and RequireAuth resolves it back into an actor.
type AuthHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
}

// SetupTest runs before each test
func (suite *AuthHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	var err error
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = suite.db.AutoMigrate(&models.User{})
	suite.Require().NoError(err)

	// RequireAuth loads the session user through the package-level handle.
	database.SetDB(suite.db)

	authHandler := NewAuthHandler(services.NewAuthService(repository.NewUserRepository(suite.db)))

	suite.router = gin.New()
	suite.router.Use(sessions.Sessions("session", cookie.NewStore([]byte("test-secret"))))

	auth := suite.router.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
	}
}

// TearDownTest runs after each test
func (suite *AuthHandlerTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *AuthHandlerTestSuite) request(method, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	encoded, err := json.Marshal(body)
	suite.Require().NoError(err)

	req := httptest.NewRequest(method, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *AuthHandlerTestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

// TestRegisterLoginMe runs the full session round trip
func (suite *AuthHandlerTestSuite) TestRegisterLoginMe() {
	w := suite.request(http.MethodPost, "/api/auth/register", gin.H{
		"name":     "Session User",
		"email":    "session@example.com",
		"password": "password123",
	}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	user := suite.decode(w)["user"].(map[string]interface{})
	assert.Equal(suite.T(), "session@example.com", user["email"])
	assert.Equal(suite.T(), false, user["is_admin"])
	// Password material never leaves the server.
	assert.NotContains(suite.T(), user, "password")
	assert.NotContains(suite.T(), user, "password_hash")

	cookies := w.Result().Cookies()
	suite.Require().NotEmpty(cookies, "register must open a session")

	w = suite.request(http.MethodGet, "/api/auth/me", nil, cookies)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	me := suite.decode(w)["user"].(map[string]interface{})
	assert.Equal(suite.T(), "session@example.com", me["email"])
}

// TestMe_Unauthenticated rejects a request without a session
func (suite *AuthHandlerTestSuite) TestMe_Unauthenticated() {
	w := suite.request(http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

// TestLogin covers success, wrong password and malformed body
func (suite *AuthHandlerTestSuite) TestLogin() {
	w := suite.request(http.MethodPost, "/api/auth/register", gin.H{
		"name":     "Login User",
		"email":    "login@example.com",
		"password": "password123",
	}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code)

	w = suite.request(http.MethodPost, "/api/auth/login", gin.H{
		"email":    "login@example.com",
		"password": "password123",
	}, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.NotEmpty(suite.T(), w.Result().Cookies())

	w = suite.request(http.MethodPost, "/api/auth/login", gin.H{
		"email":    "login@example.com",
		"password": "wrongpassword",
	}, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)

	w = suite.request(http.MethodPost, "/api/auth/login", gin.H{"email": "login@example.com"}, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

// TestRegister_Validation surfaces the per-field messages as 422
func (suite *AuthHandlerTestSuite) TestRegister_Validation() {
	w := suite.request(http.MethodPost, "/api/auth/register", gin.H{
		"name":     "",
		"email":    "broken",
		"password": "short",
	}, nil)
	suite.Require().Equal(http.StatusUnprocessableEntity, w.Code)

	details := suite.decode(w)["details"].(map[string]interface{})
	assert.Contains(suite.T(), details, "name")
	assert.Contains(suite.T(), details, "email")
	assert.Contains(suite.T(), details, "password")
}

// TestRegister_DuplicateEmail maps ErrEmailTaken to 409
func (suite *AuthHandlerTestSuite) TestRegister_DuplicateEmail() {
	body := gin.H{"name": "First", "email": "dup@example.com", "password": "password123"}
	w := suite.request(http.MethodPost, "/api/auth/register", body, nil)
	suite.Require().Equal(http.StatusCreated, w.Code)

	w = suite.request(http.MethodPost, "/api/auth/register", body, nil)
	suite.Require().Equal(http.StatusConflict, w.Code)
	assert.Equal(suite.T(), "ALREADY_EXISTS", suite.decode(w)["code"])
}

// TestLogout clears the session so /me stops resolving
func (suite *AuthHandlerTestSuite) TestLogout() {
	w := suite.request(http.MethodPost, "/api/auth/register", gin.H{
		"name":     "Leaving",
		"email":    "leaving@example.com",
		"password": "password123",
	}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code)
	cookies := w.Result().Cookies()

	w = suite.request(http.MethodPost, "/api/auth/logout", gin.H{}, cookies)
	suite.Require().Equal(http.StatusOK, w.Code)
	cleared := w.Result().Cookies()

	w = suite.request(http.MethodGet, "/api/auth/me", nil, cleared)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerTestSuite))
}

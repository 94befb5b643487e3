package http_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourelearner/digiboard44/internal/domain"
	handlerhttp "github.com/yourelearner/digiboard44/internal/handler/http"
	"github.com/yourelearner/digiboard44/internal/middleware"
	"github.com/yourelearner/digiboard44/internal/repository"
	"github.com/yourelearner/digiboard44/internal/repository/mocks"
	"github.com/yourelearner/digiboard44/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asUser 模拟 Auth 中间件写入的上下文
func asUser(id string, role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, id)
		c.Set(middleware.ContextRoleKey, role)
		c.Next()
	}
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newAuthRouter(t *testing.T, users *mocks.UserRepository) *gin.Engine {
	svc, err := service.NewAuthService(users, "secret", 1)
	require.NoError(t, err)
	h := handlerhttp.NewAuthHandler(svc)
	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	return r
}

func TestAuthHandler_Register(t *testing.T) {
	users := new(mocks.UserRepository)
	r := newAuthRouter(t, users)
	users.On("Save", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil).Once()

	w := doJSON(r, http.MethodPost, "/register", gin.H{
		"firstName": "Ada", "lastName": "Lovelace", "email": "Ada@Example.com",
		"password": "secret1", "birthDate": "1990-12-10", "role": "teacher",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		User  map[string]interface{} `json:"user"`
		Token string                 `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "ada@example.com", resp.User["email"])
	assert.Equal(t, "teacher", resp.User["role"])
	assert.NotContains(t, resp.User, "password")
	users.AssertExpectations(t)
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	users := new(mocks.UserRepository)
	r := newAuthRouter(t, users)

	cases := map[string]gin.H{
		"bad role":       {"firstName": "A", "email": "a@b.c", "password": "secret1", "role": "admin"},
		"bad email":      {"firstName": "A", "email": "nope", "password": "secret1", "role": "student"},
		"short password": {"firstName": "A", "email": "a@b.c", "password": "123", "role": "student"},
		"bad birth date": {"firstName": "A", "email": "a@b.c", "password": "secret1", "role": "student", "birthDate": "10/12/1990"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/register", body).Code)
		})
	}
	users.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthHandler_RegisterDuplicateEmail(t *testing.T) {
	users := new(mocks.UserRepository)
	r := newAuthRouter(t, users)
	users.On("Save", mock.Anything, mock.Anything).Return(repository.ErrDuplicateEntry).Once()

	w := doJSON(r, http.MethodPost, "/register", gin.H{
		"firstName": "A", "email": "a@b.c", "password": "secret1", "role": "student",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	users := new(mocks.UserRepository)
	r := newAuthRouter(t, users)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	users.On("FindByEmail", mock.Anything, "s@example.com").
		Return(&domain.User{ID: "s1", Email: "s@example.com", Password: string(hash), Role: domain.RoleStudent}, nil)

	w := doJSON(r, http.MethodPost, "/login", gin.H{"email": "s@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token"`)

	w = doJSON(r, http.MethodPost, "/login", gin.H{"email": "s@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/login", gin.H{"email": "s@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func newRecordingRouter(repo *mocks.RecordingRepository) *gin.Engine {
	h := handlerhttp.NewRecordingHandler(service.NewRecordingService(repo))
	r := gin.New()
	g := r.Group("/api/sessions", asUser("s1", domain.RoleStudent))
	g.POST("", h.Create)
	g.GET("/student", h.ListForStudent)
	g.DELETE("/:id", h.Delete)
	return r
}

func TestRecordingHandler_Create(t *testing.T) {
	repo := new(mocks.RecordingRepository)
	r := newRecordingRouter(repo)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(rec *domain.Recording) bool {
		return rec.StudentID == "s1" && rec.TeacherID == "t1" && rec.WhiteboardData == `[{"x":1}]`
	})).Return(nil).Once()

	w := doJSON(r, http.MethodPost, "/api/sessions", gin.H{
		"teacherId": "t1", "videoUrl": "https://cdn/v.webm", "whiteboardData": []gin.H{{"x": 1}},
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	repo.AssertExpectations(t)

	w = doJSON(r, http.MethodPost, "/api/sessions", gin.H{"teacherId": "t1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordingHandler_CreateStoresStringBoardUnquoted(t *testing.T) {
	repo := new(mocks.RecordingRepository)
	r := newRecordingRouter(repo)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(rec *domain.Recording) bool {
		return rec.WhiteboardData == "data:image/png;base64,AAA"
	})).Return(nil).Once()

	w := doJSON(r, http.MethodPost, "/api/sessions", gin.H{
		"teacherId": "t1", "videoUrl": "v", "whiteboardData": "data:image/png;base64,AAA",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	repo.AssertExpectations(t)
}

func TestRecordingHandler_CreateUnknownTeacher(t *testing.T) {
	repo := new(mocks.RecordingRepository)
	r := newRecordingRouter(repo)
	repo.On("Save", mock.Anything, mock.Anything).Return(repository.ErrInvalidReference).Once()

	w := doJSON(r, http.MethodPost, "/api/sessions", gin.H{"teacherId": "ghost", "videoUrl": "v"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestRecordingHandler_ListAndDelete(t *testing.T) {
	repo := new(mocks.RecordingRepository)
	r := newRecordingRouter(repo)
	now := time.Now()
	repo.On("FindByStudent", mock.Anything, "s1").
		Return([]domain.Recording{{ID: "r1", StudentID: "s1", TeacherID: "t1", CreatedAt: now}}, nil).Once()
	repo.On("DeleteOwned", mock.Anything, "r1", "s1").Return(nil).Once()
	repo.On("DeleteOwned", mock.Anything, "r2", "s1").Return(repository.ErrRecordingNotFound).Once()
	repo.On("DeleteOwned", mock.Anything, "r3", "s1").Return(errors.New("db down")).Once()

	w := doJSON(r, http.MethodGet, "/api/sessions/student", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var recs []domain.Recording
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "r1", recs[0].ID)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodDelete, "/api/sessions/r1", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodDelete, "/api/sessions/r2", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, doJSON(r, http.MethodDelete, "/api/sessions/r3", nil).Code)
	repo.AssertExpectations(t)
}

type stubPresence []domain.LiveRoom

func (s stubPresence) Rooms() []domain.LiveRoom { return s }

func TestLiveHandler(t *testing.T) {
	users := new(mocks.UserRepository)
	sessions := new(mocks.LiveSessionRepository)
	h := handlerhttp.NewLiveHandler(service.NewLiveService(stubPresence{{TeacherID: "t1", Audience: 2}}, users, sessions))
	r := gin.New()
	r.GET("/api/live", h.ListLive)
	r.GET("/api/live/history", asUser("t1", domain.RoleTeacher), h.History)

	users.On("FindByIDs", mock.Anything, []string{"t1"}).Return([]domain.User{{ID: "t1", FirstName: "Ada"}}, nil)
	sessions.On("ListByTeacher", mock.Anything, "t1", 5).Return([]domain.LiveSession{{ID: 1, TeacherID: "t1"}}, nil).Once()

	w := doJSON(r, http.MethodGet, "/api/live", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"teacherId":"t1"`)
	assert.Contains(t, w.Body.String(), `"firstName":"Ada"`)
	assert.Contains(t, w.Body.String(), `"audience":2`)

	w = doJSON(r, http.MethodGet, "/api/live/history?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sessions"`)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/api/live/history?limit=-1", nil).Code)
	sessions.AssertExpectations(t)
}

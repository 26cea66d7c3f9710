package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neighborly/internal/adapter/api"
	"neighborly/internal/adapter/api/handler"
	"neighborly/internal/adapter/api/middleware"
	"neighborly/internal/adapter/repository/memory"
	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	ws "neighborly/internal/infrastructure/websocket"
	"neighborly/internal/usecase"
	"neighborly/pkg/errors"
)

// tokenVerifier treats the bearer token as the user id.
type tokenVerifier struct{}

func (tokenVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	if token == "" || token == "bad" {
		return "", fmt.Errorf("invalid token")
	}
	return token, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Severity  string `json:"severity"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

type mutation struct {
	Applied bool  `json:"applied"`
	Version int64 `json:"version"`
	Result  struct {
		Request entity.ServiceRequest `json:"request"`
		Booking *entity.Booking       `json:"booking"`
	} `json:"result"`
}

type server struct {
	e     *echo.Echo
	users repository.UserRepository
}

func newServer(t *testing.T) *server {
	t.Helper()
	users := memory.NewUserRepository()
	requests := memory.NewServiceRequestRepository()
	bookings := memory.NewBookingRepository()
	chats := memory.NewChatRepository()
	notes := memory.NewNotificationRepository()
	wsManager := ws.NewManager(nil)

	notifier := usecase.NewNotificationUseCase(notes, users, wsManager, nil)
	chat := usecase.NewChatUseCase(chats, notifier, wsManager, nil)
	matching := usecase.NewMatchingUseCase(users)
	lifecycle := usecase.NewServiceRequestUseCase(requests, bookings, users, matching, chat, notifier,
		wsManager, nil, nil, nil, 30*time.Minute)
	handler.Setup(lifecycle, chat, notifier,
		usecase.NewUserUseCase(users, requests, notifier),
		usecase.NewBookingUseCase(bookings, users, nil, notifier))

	e := echo.New()
	e.Validator = api.NewValidator()
	auth := middleware.NewAuthMiddleware(tokenVerifier{}, users)
	Setup(e, auth, handler.NewWebSocketHandler(wsManager, auth, nil), handler.NewHealthHandler(wsManager, "memory"))

	ctx := context.Background()
	require.NoError(t, users.Save(ctx, &entity.User{ID: "u1", Username: "ann", Role: entity.RoleRequester}))
	for _, id := range []string{"P", "Q"} {
		require.NoError(t, users.Save(ctx, &entity.User{ID: id, Username: id, Role: entity.RoleProvider,
			Skills: []string{"plumbing"}, Rate: 100, Online: true, OnlineSince: time.Now()}))
	}
	return &server{e: e, users: users}
}

func (s *server) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func decodeMutation(t *testing.T, env envelope) mutation {
	t.Helper()
	var m mutation
	require.NoError(t, json.Unmarshal(env.Data, &m))
	return m
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAuthenticationIsRequired(t *testing.T) {
	s := newServer(t)

	rec, env := s.do(t, http.MethodGet, "/v1/requests", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errors.CodeUnauthenticated, env.Error.Code)

	rec, _ = s.do(t, http.MethodGet, "/v1/requests", "bad", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)

	rec, env := s.do(t, http.MethodPost, "/v1/requests", "u1", `{"type_of_work":"plumbing","budget":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeValidation, env.Error.Code)

	rec, env = s.do(t, http.MethodPost, "/v1/requests", "u1", `{"type_of_work":"plumbing","budget":500,"address":"12 Elm Street"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeMutation(t, env)
	assert.True(t, created.Applied)
	assert.Equal(t, int64(1), created.Version)
	assert.Equal(t, entity.StatusOpen, created.Result.Request.Status)
	id := created.Result.Request.ID

	rec, env = s.do(t, http.MethodPost, "/v1/requests/"+id+"/accept", "P", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accepted := decodeMutation(t, env)
	assert.True(t, accepted.Applied)
	assert.Equal(t, int64(2), accepted.Version)
	require.NotNil(t, accepted.Result.Booking)
	assert.Equal(t, id, accepted.Result.Booking.ID)

	// replay by the winner
	rec, env = s.do(t, http.MethodPost, "/v1/requests/"+id+"/accept", "P", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeMutation(t, env).Applied)

	rec, env = s.do(t, http.MethodPost, "/v1/requests/"+id+"/accept", "Q", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errors.CodeRequestAlreadyTaken, env.Error.Code)
	assert.Equal(t, errors.SeverityInfo, env.Error.Severity)

	rec, env = s.do(t, http.MethodGet, "/v1/requests/"+id, "Q", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, errors.CodeUnauthorized, env.Error.Code)

	rec, _ = s.do(t, http.MethodPost, "/v1/requests/"+id+"/complete", "P", `{"notes":"fixed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(t, http.MethodPost, "/v1/requests/"+id+"/cancel", "u1", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errors.CodeInvalidTransition, env.Error.Code)

	rec, _ = s.do(t, http.MethodPost, "/v1/bookings/"+id+"/rating", "u1", `{"rating":5,"review":"great"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(t, http.MethodGet, "/v1/requests?as=requester&status=done", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(1), page.Total)

	rec, _ = s.do(t, http.MethodGet, "/v1/requests?status=bogus", "u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatOverHTTP(t *testing.T) {
	s := newServer(t)

	_, env := s.do(t, http.MethodPost, "/v1/requests", "u1", `{"type_of_work":"plumbing","budget":500,"address":"12 Elm Street"}`)
	id := decodeMutation(t, env).Result.Request.ID
	rec, _ := s.do(t, http.MethodPost, "/v1/requests/"+id+"/accept", "P", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/v1/chats/"+id+"/messages", "u1", `{"body":"When can you come?"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env = s.do(t, http.MethodGet, "/v1/chats/unread", "P", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unread":1}`, string(env.Data))

	rec, _ = s.do(t, http.MethodPut, "/v1/chats/"+id+"/read", "P", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, env = s.do(t, http.MethodGet, "/v1/chats/unread", "P", "")
	assert.JSONEq(t, `{"unread":0}`, string(env.Data))

	rec, env = s.do(t, http.MethodPost, "/v1/chats/"+id+"/messages", "Q", `{"body":"hi"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, errors.CodeUnauthorized, env.Error.Code)

	rec, _ = s.do(t, http.MethodPost, "/v1/chats/"+id+"/messages", "u1", `{"body":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileAndNotifications(t *testing.T) {
	s := newServer(t)

	rec, env := s.do(t, http.MethodPatch, "/v1/users/me", "newbie", `{"role":"provider","skills":["Tiling"],"rate":80}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var user entity.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, []string{"tiling"}, user.Skills)

	rec, _ = s.do(t, http.MethodPatch, "/v1/users/me", "newbie2", `{"role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, env = s.do(t, http.MethodPost, "/v1/requests", "u1", `{"type_of_work":"plumbing","budget":500,"address":"12 Elm Street","target_provider_id":"P"}`)
	assert.Equal(t, entity.StatusOffered, decodeMutation(t, env).Result.Request.Status)

	rec, env = s.do(t, http.MethodGet, "/v1/notifications?unread=true", "P", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []entity.Notification `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.NotEmpty(t, page.Items)

	rec, _ = s.do(t, http.MethodPut, "/v1/notifications/"+page.Items[0].ID+"/read", "P", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/v1/notifications/"+page.Items[0].ID+"/read", "Q", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dkeye/Chat/internal/adapters/signal"
	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/auth"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/storage/memory"
)

type apiFixture struct {
	router *gin.Engine
	rooms  *memory.RoomStore
	users  *memory.UserDirectory
	tokens map[string]string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hasher := auth.NewPasswordHasherWithCost(bcrypt.MinCost)
	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)

	users := memory.NewUserDirectory()
	users.Put(domain.User{ID: "u-alice", Username: "alice", Email: "alice@example.com", PasswordHash: hash})
	users.Put(domain.User{ID: "u-bob", Username: "bob", Email: "bob@example.com", PasswordHash: hash})

	jwtm, err := auth.NewJWTManager(auth.JWTConfig{SecretKey: "test-secret", TokenTTL: time.Minute}, users)
	require.NoError(t, err)
	tokens := map[string]string{}
	for _, id := range []domain.UserID{"u-alice", "u-bob"} {
		u, err := users.FindByID(context.Background(), id)
		require.NoError(t, err)
		tokens[u.Username], err = jwtm.Issue(u)
		require.NoError(t, err)
	}

	rooms := memory.NewRoomStore()
	registry := app.NewRegistry()
	o := &orch.Orchestrator{Registry: registry, Rooms: rooms, Policy: app.SimplePolicy{}}
	deps := Deps{
		Signal:    signal.NewSignalWSController(o, jwtm, nil, signal.Options{}),
		Chatrooms: &app.Chatrooms{Rooms: rooms, Users: users, Registry: registry},
		Registry:  registry,
		Verifier:  jwtm,
		Auth:      &auth.Authenticator{Users: users, Hasher: hasher, Tokens: jwtm},
	}
	cfg := &config.Config{Mode: "test", Secret: "test-secret"}
	return &apiFixture{
		router: SetupRouter(context.Background(), cfg, deps),
		rooms:  rooms,
		users:  users,
		tokens: tokens,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+f.tokens[user])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "ChatSessions=")
}

func TestChatroomsRequireToken(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/api/chatrooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/chatrooms", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndListChatrooms(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/chatrooms", "alice", gin.H{"name": "general", "members": []string{"alice", "alice", "bob"}})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[map[string]string](t, w)
	assert.Equal(t, "general successfully created", created["message"])
	require.NotEmpty(t, created["chatroom_id"])

	w = f.do(t, http.MethodPost, "/api/chatrooms", "alice", gin.H{"name": "general"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/api/chatrooms", "alice", gin.H{"members": []string{"alice"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/chatrooms", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]core.RoomInfo](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, domain.RoomID(created["chatroom_id"]), list[0].ID)
	assert.Equal(t, []string{"alice", "bob"}, list[0].Members)
}

func TestListMine(t *testing.T) {
	f := newAPIFixture(t)
	_, err := f.rooms.Create(context.Background(), "general", []string{"alice"})
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/chatrooms/mine", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[struct {
		Chatrooms []core.RoomInfo `json:"chatrooms"`
	}](t, w)
	require.Len(t, mine.Chatrooms, 1)
	assert.Equal(t, domain.RoomName("general"), mine.Chatrooms[0].Name)

	w = f.do(t, http.MethodGet, "/api/chatrooms/mine", "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinChatroom(t *testing.T) {
	f := newAPIFixture(t)
	id, err := f.rooms.Create(context.Background(), "general", []string{"alice"})
	require.NoError(t, err)

	for range 2 {
		w := f.do(t, http.MethodPost, "/api/chatrooms/"+string(id)+"/members", "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode[struct {
			Members []string `json:"members"`
		}](t, w)
		assert.Equal(t, []string{"alice", "bob"}, body.Members)
	}

	w := f.do(t, http.MethodPost, "/api/chatrooms/missing/members", "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinPlatoon(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	id, err := f.rooms.Create(ctx, "Platoon 3", nil)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/chatrooms/platoon?state_code=bad", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/chatrooms/platoon?state_code=NY/12A/0003", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		ChatroomID domain.RoomID `json:"chatroom_id"`
		Members    []string      `json:"members"`
	}](t, w)
	assert.Equal(t, id, body.ChatroomID)
	assert.Equal(t, []string{"alice"}, body.Members)

	u, err := f.users.FindByID(ctx, "u-alice")
	require.NoError(t, err)
	assert.Equal(t, "NY/12A/0003", u.StateCode)

	w = f.do(t, http.MethodPost, "/api/chatrooms/platoon?state_code=NY/12A/0003", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/chatrooms/platoon?state_code=NY/12A/0004", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/chatrooms/platoon?state_code=NY/12A/0004", "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOnline(t *testing.T) {
	f := newAPIFixture(t)
	id, err := f.rooms.Create(context.Background(), "general", []string{"alice"})
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/chatrooms/"+string(id)+"/online", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"online":[]}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/chatrooms/"+string(id)+"/online", "bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoginToken(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/auth/token", "", gin.H{"email": "alice@example.com", "password": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "bearer", body["token_type"])

	req := httptest.NewRequest(http.MethodGet, "/api/chatrooms", nil)
	req.Header.Set("Authorization", "Bearer "+body["access_token"])
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w = f.do(t, http.MethodPost, "/api/auth/token", "", gin.H{"email": "alice@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/api/auth/token", "", gin.H{"email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

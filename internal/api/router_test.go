package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/isdelr/metrics-bridge/internal/auth"
	"github.com/isdelr/metrics-bridge/internal/database"
	"github.com/isdelr/metrics-bridge/internal/host"
	"github.com/isdelr/metrics-bridge/internal/models"
	"github.com/isdelr/metrics-bridge/internal/monitoring"
	"github.com/isdelr/metrics-bridge/internal/services"
	"github.com/isdelr/metrics-bridge/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyToken = "legacy-secret"

type testServer struct {
	*httptest.Server
	console *services.ConsoleService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	users, err := services.NewUserService(filepath.Join(t.TempDir(), "users.json"),
		services.HashParams{Time: 1, Memory: 64, Threads: 1, KeyLen: 16})
	require.NoError(t, err)
	require.NoError(t, users.CreateUser("bob", "secret123", false))

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	console := services.NewConsoleService(100, hub)
	local := host.NewLocal("1.21.1", console)
	require.NoError(t, local.Join("Steve", "", models.Position{X: 1, Y: 64, Z: 1}))

	sessions := services.NewSessionService(users, 0)
	events := services.NewEventService(db)
	tickets, err := auth.NewTicketIssuer(nil, 0)
	require.NoError(t, err)

	router := NewRouter(Dependencies{
		Hub:        hub,
		Authorizer: auth.NewAuthorizer(auth.SessionStrategy{Sessions: sessions}, auth.StaticTokenStrategy{Secret: legacyToken}),
		Tickets:    tickets,
		Users:      users,
		Sessions:   sessions,
		Metrics:    services.NewMetricsService(monitoring.NewSampler(), local, t.TempDir()),
		History:    services.NewHistoryService(db),
		Admin:      services.NewAdminService(local, users, sessions, console, events),
		Console:    console,
		Events:     events,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, console: console}
}

func (s *testServer) do(t *testing.T, method, path, session string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(auth.SessionHeader, session)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, status)
	token, _ := body["sessionToken"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRouter_AdminFlow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "admin", "password": "admin"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["isAdmin"])
	token := body["sessionToken"].(string)

	status, body = s.do(t, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, true, body["isAdmin"])

	status, body = s.do(t, http.MethodPost, "/api/console", token, map[string]string{"command": "say hi"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["result"])

	status, body = s.do(t, http.MethodGet, "/api/console/history", token, nil)
	assert.Equal(t, http.StatusOK, status)
	lines := body["console_output"].([]interface{})
	joined := ""
	for _, l := range lines {
		joined += l.(string) + "\n"
	}
	assert.Contains(t, joined, "> say hi")
	assert.Contains(t, joined, "[Server] hi")

	status, _ = s.do(t, http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodGet, "/api/metrics", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", body["error"])

	status, body = s.do(t, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["authenticated"])
}

func TestRouter_LoginFailure(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, _ = s.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRouter_NonAdminIsForbidden(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	token := s.login(t, "bob", "secret123")

	status, _ := s.do(t, http.MethodGet, "/api/metrics", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := s.do(t, http.MethodPost, "/api/console", token, map[string]string{"command": "say hi"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Admin privileges required", body["error"])

	status, _ = s.do(t, http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRouter_LegacyToken(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	get := func(path string, header string) int {
		req, err := http.NewRequest(http.MethodGet, s.URL+path, nil)
		require.NoError(t, err)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("/api/metrics", "Bearer "+legacyToken))
	assert.Equal(t, http.StatusOK, get("/api/test?token="+legacyToken, ""))
	assert.Equal(t, http.StatusUnauthorized, get("/api/metrics", "Bearer wrong"))
	assert.Equal(t, http.StatusForbidden, get("/api/console/history", "Bearer "+legacyToken))
	assert.Equal(t, http.StatusForbidden, get("/api/admin/users", "Bearer "+legacyToken))
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	token := s.login(t, "bob", "secret123")

	status, body := s.do(t, http.MethodGet, "/api/metrics", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["player_count"])
	assert.Equal(t, "1.21.1", body["minecraft_version"])
	assert.Equal(t, models.Unavailable, body["tps"], "no ticks have been sampled yet")

	status, body = s.do(t, http.MethodGet, "/api/test", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["websocket_supported"])

	req, _ := http.NewRequest(http.MethodGet, s.URL+"/api/metrics/history?minutes=5", nil)
	req.Header.Set(auth.SessionHeader, token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var points []interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&points))
	assert.Empty(t, points)
}

func TestRouter_UserManagement(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin")

	status, body := s.do(t, http.MethodPost, "/api/admin/users", admin, map[string]interface{}{"username": "carol", "password": "carol-pass", "isAdmin": false})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["success"])

	status, _ = s.do(t, http.MethodPost, "/api/admin/users", admin, map[string]interface{}{"username": "carol", "password": "carol-pass"})
	assert.Equal(t, http.StatusConflict, status)

	status, body = s.do(t, http.MethodPost, "/api/admin/users", admin, map[string]interface{}{"username": "dave", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Password must be at least 6 characters", body["error"])

	carol := s.login(t, "carol", "carol-pass")

	status, _ = s.do(t, http.MethodPut, "/api/admin/users/carol/admin", admin, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(t, http.MethodPut, "/api/admin/users/carol/admin", admin, map[string]interface{}{"isAdmin": true})
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPut, "/api/admin/users/admin/admin", admin, map[string]interface{}{"isAdmin": false})
	assert.Equal(t, http.StatusUnprocessableEntity, status, "cannot change own admin status")
	status, _ = s.do(t, http.MethodDelete, "/api/admin/users/admin", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body = s.do(t, http.MethodGet, "/api/admin/users", admin, nil)
	assert.Equal(t, http.StatusOK, status)
	users := body["users"].(map[string]interface{})
	assert.Contains(t, users, "carol")
	assert.NotContains(t, users["carol"], "hashedPassword")

	status, _ = s.do(t, http.MethodDelete, "/api/admin/users/carol", admin, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/api/metrics", carol, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "deleting a user ends their sessions")

	status, _ = s.do(t, http.MethodDelete, "/api/admin/users/carol", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)

	req, _ := http.NewRequest(http.MethodGet, s.URL+"/api/events?limit=50", nil)
	req.Header.Set(auth.SessionHeader, admin)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var events []models.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	assert.Contains(t, types, "user.create")
	assert.Contains(t, types, "user.delete")
}

func TestRouter_ChangePassword(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	bob := s.login(t, "bob", "secret123")

	status, body := s.do(t, http.MethodPost, "/api/change-password", bob, map[string]string{
		"oldPassword": "wrong", "newPassword": "another1", "confirmPassword": "another1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Current password is incorrect", body["error"])

	status, _ = s.do(t, http.MethodPost, "/api/change-password", bob, map[string]string{
		"oldPassword": "secret123", "newPassword": "another1", "confirmPassword": "mismatch",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/api/change-password", bob, map[string]string{
		"oldPassword": "secret123", "newPassword": "another1", "confirmPassword": "another1",
	})
	assert.Equal(t, http.StatusOK, status)
	s.login(t, "bob", "another1")
}

func TestRouter_Teleport(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin")

	status, body := s.do(t, http.MethodPost, "/api/teleport", admin, map[string]interface{}{"player": "Steve", "x": 10, "y": 70, "z": -5, "world": "nether"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Teleported Steve to 10.00, 70.00, -5.00 in minecraft:the_nether", body["message"])

	status, _ = s.do(t, http.MethodPost, "/api/teleport", admin, map[string]interface{}{"player": "Steve", "x": 10, "z": -5})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/api/teleport", admin, map[string]interface{}{"player": "Alex", "x": 1, "y": 2, "z": 3})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodPost, "/api/teleport", admin, map[string]interface{}{"player": "Steve", "x": 1, "y": 2, "z": 3, "world": "void"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRouter_ConsoleStream(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin")
	s.console.WriteLine("stdout", "before connect")

	status, body := s.do(t, http.MethodGet, "/api/console/ticket", admin, nil)
	require.Equal(t, http.StatusOK, status)
	ticket := body["ticket"].(string)

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/console/ws?ticket=" + ticket
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	readLine := func() string {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var m websocket.Message
		require.NoError(t, json.Unmarshal(msg, &m))
		return m.Payload.(string)
	}

	// History first: the join line, then the line written above.
	assert.Contains(t, readLine(), "Steve joined the game")
	assert.Contains(t, readLine(), "before connect")

	// The client may not be registered with the hub yet, so keep producing
	// live output until one line arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.console.WriteLine("stdout", "live line")
			}
		}
	}()
	assert.Contains(t, readLine(), "live line")

	_, _, err = gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/api/console/ws?ticket=bogus", nil)
	assert.Error(t, err)
}

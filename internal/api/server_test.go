package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	pi4j "github.com/GeVanCo/pi4j-v2"
	"github.com/GeVanCo/pi4j-v2/config"
	"github.com/GeVanCo/pi4j-v2/digital"
	"github.com/GeVanCo/pi4j-v2/history"
	"github.com/GeVanCo/pi4j-v2/internal/logging"
	"github.com/GeVanCo/pi4j-v2/plugins/mock"
)

// ─── Test Harness ────────────────────────────────────────────────────────────

const testSecret = "test-secret-key-at-least-32-characters-long"

// testServer builds a Server over a mock-provider runtime without binding a
// listener. Tests drive the router directly through httptest.
func testServer(t *testing.T, instances ...config.InstanceConfig) (*Server, *mock.Board) {
	t.Helper()

	board := mock.NewBoard()

	cfg := config.DefaultConfig()
	cfg.API.Auth.Secret = testSecret
	cfg.IO.Defaults = map[string]string{
		"digital-output": mock.ProviderID,
		"digital-input":  mock.ProviderID,
	}
	cfg.IO.Instances = instances

	rt, err := pi4j.New(context.Background(),
		pi4j.WithConfig(cfg),
		pi4j.WithPlugins(mock.NewPlugin(board)),
	)
	if err != nil {
		t.Fatalf("pi4j.New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := rt.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config:  cfg.API,
		Logger:  log,
		Runtime: rt,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Start() binds a real port; router tests only need the hub and the
	// registry taps it would have set up.
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.hub = NewHub(cfg.API.WebSocket, log)
	go srv.hub.Run(ctx)
	srv.tapRegistry()

	return srv, board
}

func ledOutput() config.InstanceConfig {
	return config.InstanceConfig{
		ID:            "led",
		Name:          "Status LED",
		Type:          "digital-output",
		Address:       17,
		InitialState:  digital.Low,
		ShutdownState: digital.Low,
	}
}

func buttonInput() config.InstanceConfig {
	return config.InstanceConfig{
		ID:      "button",
		Name:    "Front Button",
		Type:    "digital-input",
		Address: 4,
		Pull:    digital.PullDown,
	}
}

// do performs one request against the router. An empty body sends no body;
// an empty token sends no Authorization header.
func do(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response body: %v (body %q)", err, w.Body.String())
	}
	return resp
}

// authToken exchanges the test secret for a bearer token.
func authToken(t *testing.T, router http.Handler) string {
	t.Helper()

	w := do(t, router, http.MethodPost, "/api/v1/auth/token", "", `{"secret":"`+testSecret+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /auth/token status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeMap(t, w)
	token, _ := resp["access_token"].(string)
	if token == "" {
		t.Fatal("token response has no access_token")
	}
	return "Bearer " + token
}

// awaitOperation polls the operation endpoint until it reports want.
func awaitOperation(t *testing.T, router http.Handler, token, opID, want string) map[string]any {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w := do(t, router, http.MethodGet, "/api/v1/operations/"+opID, token, "")
		if w.Code != http.StatusOK {
			t.Fatalf("GET /operations/%s status = %d, want %d", opID, w.Code, http.StatusOK)
		}
		resp := decodeMap(t, w)
		if resp["status"] == want {
			return resp
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("operation %s did not reach status %q within 2s", opID, want)
	return nil
}

// ─── Health & Middleware Tests ───────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, ledOutput(), buttonInput())
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/health", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	resp := decodeMap(t, w)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want %q", resp["status"], "ok")
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want %q", resp["version"], "test")
	}
	if resp["instances"] != float64(2) {
		t.Errorf("instances = %v, want 2", resp["instances"])
	}
}

func TestRequestIDGenerated(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/health", "", "")

	if id := w.Header().Get("X-Request-ID"); id == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestRequestIDPreservesClientValue(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if id := w.Header().Get("X-Request-ID"); id != "client-supplied-id" {
		t.Errorf("X-Request-ID = %q, want %q", id, "client-supplied-id")
	}
}

func TestRequestBodySizeLimit(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	huge := `{"secret":"` + strings.Repeat("a", 2<<20) + `"}`
	w := do(t, router, http.MethodPost, "/api/v1/auth/token", "", huge)

	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized body status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Auth Tests ──────────────────────────────────────────────────────────────

func TestTokenRejectsWrongSecret(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := do(t, router, http.MethodPost, "/api/v1/auth/token", "", `{"secret":"not-the-secret"}`)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestTokenIssued(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := do(t, router, http.MethodPost, "/api/v1/auth/token", "", `{"secret":"`+testSecret+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeMap(t, w)
	if resp["token_type"] != "Bearer" {
		t.Errorf("token_type = %v, want %q", resp["token_type"], "Bearer")
	}
	if resp["expires_in"] != float64(15*60) {
		t.Errorf("expires_in = %v, want %d", resp["expires_in"], 15*60)
	}

	token, _ := resp["access_token"].(string)
	if token == "" {
		t.Fatal("access_token is empty")
	}

	// The issued token must open protected routes.
	w = do(t, router, http.MethodGet, "/api/v1/io", "Bearer "+token, "")
	if w.Code != http.StatusOK {
		t.Errorf("authenticated list status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name  string
		token string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodGet, "/api/v1/io", tt.token, "")
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestWSTicketIssued(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	w := do(t, router, http.MethodPost, "/api/v1/auth/ws-ticket", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("ws-ticket status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeMap(t, w)
	if ticket, _ := resp["ticket"].(string); ticket == "" {
		t.Error("ticket is empty")
	}
	if resp["expires_in"] != float64(60) {
		t.Errorf("expires_in = %v, want 60", resp["expires_in"])
	}
}

// ─── IO Endpoint Tests ───────────────────────────────────────────────────────

func TestListIO(t *testing.T) {
	srv, _ := testServer(t, ledOutput(), buttonInput())
	router := srv.buildRouter()
	token := authToken(t, router)

	t.Run("all instances sorted by id", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/v1/io", token, "")
		if w.Code != http.StatusOK {
			t.Fatalf("list status = %d, want %d", w.Code, http.StatusOK)
		}

		resp := decodeMap(t, w)
		if resp["count"] != float64(2) {
			t.Fatalf("count = %v, want 2", resp["count"])
		}

		instances := resp["instances"].([]any)
		wantIDs := []string{"button", "led"}
		for i, want := range wantIDs {
			got := instances[i].(map[string]any)["id"]
			if got != want {
				t.Errorf("instances[%d].id = %v, want %q", i, got, want)
			}
		}
	})

	t.Run("filter by type", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/v1/io?type=digital-output", token, "")
		resp := decodeMap(t, w)
		if resp["count"] != float64(1) {
			t.Fatalf("output count = %v, want 1", resp["count"])
		}
		inst := resp["instances"].([]any)[0].(map[string]any)
		if inst["id"] != "led" {
			t.Errorf("filtered id = %v, want %q", inst["id"], "led")
		}

		w = do(t, router, http.MethodGet, "/api/v1/io?type=digital-input", token, "")
		resp = decodeMap(t, w)
		if resp["count"] != float64(1) {
			t.Fatalf("input count = %v, want 1", resp["count"])
		}
	})
}

func TestCreateOutput(t *testing.T) {
	srv, board := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	body := `{"id":"fan","name":"Cooling Fan","type":"digital-output","address":5,"initial_state":"LOW","shutdown_state":"LOW"}`
	w := do(t, router, http.MethodPost, "/api/v1/io", token, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d (body %s)", w.Code, http.StatusCreated, w.Body.String())
	}

	resp := decodeMap(t, w)
	if resp["id"] != "fan" {
		t.Errorf("id = %v, want %q", resp["id"], "fan")
	}
	if resp["type"] != "digital-output" {
		t.Errorf("type = %v, want %q", resp["type"], "digital-output")
	}
	if resp["state"] != "LOW" {
		t.Errorf("state = %v, want %q", resp["state"], "LOW")
	}
	if got := board.Level(5); got != digital.Low {
		t.Errorf("board level = %v, want %v", got, digital.Low)
	}

	// The new instance is immediately retrievable.
	w = do(t, router, http.MethodGet, "/api/v1/io/fan", token, "")
	if w.Code != http.StatusOK {
		t.Errorf("get after create status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestCreateInput(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	body := `{"id":"door","name":"Door Contact","type":"digital-input","address":22,"pull":"UP"}`
	w := do(t, router, http.MethodPost, "/api/v1/io", token, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d (body %s)", w.Code, http.StatusCreated, w.Body.String())
	}

	resp := decodeMap(t, w)
	if resp["id"] != "door" {
		t.Errorf("id = %v, want %q", resp["id"], "door")
	}
	if resp["type"] != "digital-input" {
		t.Errorf("type = %v, want %q", resp["type"], "digital-input")
	}
}

func TestCreateIOValidation(t *testing.T) {
	srv, _ := testServer(t, ledOutput())
	router := srv.buildRouter()
	token := authToken(t, router)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{"id":`, http.StatusBadRequest},
		{"missing id", `{"type":"digital-output","address":1}`, http.StatusBadRequest},
		{"unknown type", `{"id":"x","type":"analog-output","address":1}`, http.StatusBadRequest},
		{"unknown provider", `{"id":"x","type":"digital-output","address":1,"provider":"nonexistent"}`, http.StatusBadRequest},
		{"duplicate id", `{"id":"led","type":"digital-output","address":9}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/v1/io", token, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestGetIONotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	w := do(t, router, http.MethodGet, "/api/v1/io/ghost", token, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDescribeIO(t *testing.T) {
	srv, _ := testServer(t, ledOutput())
	router := srv.buildRouter()
	token := authToken(t, router)

	w := do(t, router, http.MethodGet, "/api/v1/io/led/describe", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("describe status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeMap(t, w)
	if resp["category"] != "digital-output" {
		t.Errorf("category = %v, want %q", resp["category"], "digital-output")
	}
	if resp["id"] != "led" {
		t.Errorf("id = %v, want %q", resp["id"], "led")
	}
}

func TestDestroyIO(t *testing.T) {
	srv, _ := testServer(t, ledOutput())
	router := srv.buildRouter()
	token := authToken(t, router)

	w := do(t, router, http.MethodDelete, "/api/v1/io/led", token, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("destroy status = %d, want %d", w.Code, http.StatusNoContent)
	}

	w = do(t, router, http.MethodGet, "/api/v1/io/led", token, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after destroy status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = do(t, router, http.MethodDelete, "/api/v1/io/led", token, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second destroy status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── State Endpoint Tests ────────────────────────────────────────────────────

func TestGetIOState(t *testing.T) {
	srv, board := testServer(t, ledOutput(), buttonInput())
	router := srv.buildRouter()
	token := authToken(t, router)

	t.Run("output reports configured initial state", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/v1/io/led/state", token, "")
		if w.Code != http.StatusOK {
			t.Fatalf("state status = %d, want %d", w.Code, http.StatusOK)
		}
		resp := decodeMap(t, w)
		if resp["instance_id"] != "led" {
			t.Errorf("instance_id = %v, want %q", resp["instance_id"], "led")
		}
		if resp["state"] != "LOW" {
			t.Errorf("state = %v, want %q", resp["state"], "LOW")
		}
	})

	t.Run("input follows the line", func(t *testing.T) {
		board.SetLine(4, digital.High)

		w := do(t, router, http.MethodGet, "/api/v1/io/button/state", token, "")
		if w.Code != http.StatusOK {
			t.Fatalf("state status = %d, want %d", w.Code, http.StatusOK)
		}
		resp := decodeMap(t, w)
		if resp["state"] != "HIGH" {
			t.Errorf("state = %v, want %q", resp["state"], "HIGH")
		}
	})

	t.Run("unknown instance", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/v1/io/ghost/state", token, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestSetIOState(t *testing.T) {
	srv, board := testServer(t, ledOutput())
	router := srv.buildRouter()
	token := authToken(t, router)

	w := do(t, router, http.MethodPut, "/api/v1/io/led/state", token, `{"state":"HIGH"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set state status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeMap(t, w)
	if resp["state"] != "HIGH" {
		t.Errorf("state = %v, want %q", resp["state"], "HIGH")
	}
	if got := board.Level(17); got != digital.High {
		t.Errorf("board level = %v, want %v", got, digital.High)
	}
}

func TestSetIOStateValidation(t *testing.T) {
	srv, _ := testServer(t, ledOutput(), buttonInput())
	router := srv.buildRouter()
	token := authToken(t, router)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"input is not writable", "/api/v1/io/button/state", `{"state":"HIGH"}`, http.StatusBadRequest},
		{"unknown instance", "/api/v1/io/ghost/state", `{"state":"HIGH"}`, http.StatusNotFound},
		{"unparseable state", "/api/v1/io/led/state", `{"state":"BANANA"}`, http.StatusBadRequest},
		{"unknown state", "/api/v1/io/led/state", `{"state":"UNKNOWN"}`, http.StatusBadRequest},
		{"invalid json", "/api/v1/io/led/state", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPut, tt.path, token, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

// ─── Pulse & Blink Tests ─────────────────────────────────────────────────────

func TestPulseIO(t *testing.T) {
	srv, board := testServer(t, ledOutput())
	router := srv.buildRouter()
	token := authToken(t, router)

	w := do(t, router, http.MethodPost, "/api/v1/io/led/pulse", token, `{"interval":25,"unit":"ms","state":"HIGH"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("pulse status = %d, want %d (body %s)", w.Code, http.StatusAccepted, w.Body.String())
	}

	resp := decodeMap(t, w)
	if resp["kind"] != "pulse" {
		t.Errorf("kind = %v, want %q", resp["kind"], "pulse")
	}
	if resp["instance_id"] != "led" {
		t.Errorf("instance_id = %v, want %q", resp["instance_id"], "led")
	}
	opID, _ := resp["operation_id"].(string)
	if opID == "" {
		t.Fatal("operation_id is empty")
	}

	awaitOperation(t, router, token, opID, OpStatusCompleted)

	if got := board.Level(17); got != digital.Low {
		t.Errorf("board level after pulse = %v, want %v", got, digital.Low)
	}
}

func TestPulseIOValidation(t *testing.T) {
	srv, _ := testServer(t, ledOutput(), buttonInput())
	router := srv.buildRouter()
	token := authToken(t, router)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"zero interval", "/api/v1/io/led/pulse", `{"interval":0,"unit":"ms"}`, http.StatusBadRequest},
		{"negative interval", "/api/v1/io/led/pulse", `{"interval":-5,"unit":"ms"}`, http.StatusBadRequest},
		{"unrecognised unit", "/api/v1/io/led/pulse", `{"interval":25,"unit":"fortnights"}`, http.StatusBadRequest},
		{"unsupported unit", "/api/v1/io/led/pulse", `{"interval":1,"unit":"days"}`, http.StatusBadRequest},
		{"input target", "/api/v1/io/button/pulse", `{"interval":25,"unit":"ms"}`, http.StatusBadRequest},
		{"unknown instance", "/api/v1/io/ghost/pulse", `{"interval":25,"unit":"ms"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, tt.path, token, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestBlinkIO(t *testing.T) {
	srv, board := testServer(t, ledOutput())
	router := srv.buildRouter()
	token := authToken(t, router)

	// Four transitions from LOW land back on LOW.
	w := do(t, router, http.MethodPost, "/api/v1/io/led/blink", token, `{"delay":10,"count":4,"unit":"ms","state":"HIGH"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("blink status = %d, want %d (body %s)", w.Code, http.StatusAccepted, w.Body.String())
	}

	resp := decodeMap(t, w)
	if resp["kind"] != "blink" {
		t.Errorf("kind = %v, want %q", resp["kind"], "blink")
	}
	opID, _ := resp["operation_id"].(string)
	if opID == "" {
		t.Fatal("operation_id is empty")
	}

	awaitOperation(t, router, token, opID, OpStatusCompleted)

	if got := board.Level(17); got != digital.Low {
		t.Errorf("board level after blink = %v, want %v", got, digital.Low)
	}
}

func TestBlinkCancel(t *testing.T) {
	srv, _ := testServer(t, ledOutput())
	router := srv.buildRouter()
	token := authToken(t, router)

	w := do(t, router, http.MethodPost, "/api/v1/io/led/blink", token, `{"delay":500,"count":100,"unit":"ms"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("blink status = %d, want %d", w.Code, http.StatusAccepted)
	}
	opID := decodeMap(t, w)["operation_id"].(string)

	w = do(t, router, http.MethodDelete, "/api/v1/operations/"+opID, token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := awaitOperation(t, router, token, opID, OpStatusCancelled)
	if resp["instance_id"] != "led" {
		t.Errorf("instance_id = %v, want %q", resp["instance_id"], "led")
	}
}

func TestOperationNotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	w := do(t, router, http.MethodGet, "/api/v1/operations/no-such-op", token, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = do(t, router, http.MethodDelete, "/api/v1/operations/no-such-op", token, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("cancel status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── History Endpoint Tests ──────────────────────────────────────────────────

func TestIOHistoryDisabled(t *testing.T) {
	srv, _ := testServer(t, ledOutput())
	router := srv.buildRouter()
	token := authToken(t, router)

	w := do(t, router, http.MethodGet, "/api/v1/io/led/history", token, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("history without journal status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestIOHistory(t *testing.T) {
	srv, _ := testServer(t, ledOutput())

	j, err := history.Open(history.Config{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := j.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	srv.journal = j

	router := srv.buildRouter()
	token := authToken(t, router)

	// Two writes through the API land in the journal via the registry tap.
	for _, state := range []string{"HIGH", "LOW"} {
		w := do(t, router, http.MethodPut, "/api/v1/io/led/state", token, `{"state":"`+state+`"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("set state %s status = %d, want %d", state, w.Code, http.StatusOK)
		}
	}

	w := do(t, router, http.MethodGet, "/api/v1/io/led/history", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeMap(t, w)
	if resp["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", resp["count"])
	}

	entries := resp["entries"].([]any)
	wantStates := []string{"LOW", "HIGH"} // newest first
	for i, want := range wantStates {
		entry := entries[i].(map[string]any)
		if entry["instance_id"] != "led" {
			t.Errorf("entries[%d].instance_id = %v, want %q", i, entry["instance_id"], "led")
		}
		if entry["state"] != want {
			t.Errorf("entries[%d].state = %v, want %q", i, entry["state"], want)
		}
	}

	t.Run("invalid limit", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/v1/io/led/history?limit=abc", token, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("unknown instance", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/v1/io/ghost/history", token, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// ─── Describe & Provider Tests ───────────────────────────────────────────────

func TestDescribeContext(t *testing.T) {
	srv, _ := testServer(t, ledOutput())
	router := srv.buildRouter()
	token := authToken(t, router)

	w := do(t, router, http.MethodGet, "/api/v1/context/describe", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("describe status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeMap(t, w)
	if resp["category"] != "CONTEXT" {
		t.Errorf("category = %v, want %q", resp["category"], "CONTEXT")
	}
	children, _ := resp["children"].([]any)
	if len(children) != 3 {
		t.Errorf("children len = %d, want 3 (providers, platforms, registry)", len(children))
	}
}

func TestListProviders(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	w := do(t, router, http.MethodGet, "/api/v1/providers", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("providers status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeMap(t, w)
	if resp["count"] != float64(1) {
		t.Fatalf("count = %v, want 1", resp["count"])
	}

	p := resp["providers"].([]any)[0].(map[string]any)
	if p["id"] != mock.ProviderID {
		t.Errorf("provider id = %v, want %q", p["id"], mock.ProviderID)
	}

	types := p["types"].([]any)
	if len(types) != 2 {
		t.Errorf("types len = %d, want 2", len(types))
	}
}

// ─── WebSocket Tests ─────────────────────────────────────────────────────────

// wsTicket obtains a single-use connection ticket through the REST API.
func wsTicket(t *testing.T, router http.Handler, token string) string {
	t.Helper()

	w := do(t, router, http.MethodPost, "/api/v1/auth/ws-ticket", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("ws-ticket status = %d, want %d", w.Code, http.StatusOK)
	}
	ticket, _ := decodeMap(t, w)["ticket"].(string)
	if ticket == "" {
		t.Fatal("ticket is empty")
	}
	return ticket
}

func TestWebSocketStream(t *testing.T) {
	srv, _ := testServer(t, ledOutput())
	router := srv.buildRouter()

	ts := httptest.NewServer(router)
	defer ts.Close()

	token := authToken(t, router)
	ticket := wsTicket(t, router, token)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticket
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("setting read deadline: %v", err)
	}

	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelStateChanged}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("sending subscribe: %v", err)
	}

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("reading subscribe ack: %v", err)
	}
	if ack.Type != WSTypeResponse {
		t.Fatalf("ack type = %q, want %q", ack.Type, WSTypeResponse)
	}
	if ack.ID != "sub-1" {
		t.Errorf("ack id = %q, want %q", ack.ID, "sub-1")
	}

	// A state write must arrive on the stream.
	w := do(t, router, http.MethodPut, "/api/v1/io/led/state", token, `{"state":"HIGH"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set state status = %d, want %d", w.Code, http.StatusOK)
	}

	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if event.Type != WSTypeEvent {
		t.Errorf("event type = %q, want %q", event.Type, WSTypeEvent)
	}
	if event.EventType != ChannelStateChanged {
		t.Errorf("event_type = %q, want %q", event.EventType, ChannelStateChanged)
	}

	payload, ok := event.Payload.(map[string]any)
	if !ok {
		t.Fatalf("event payload type = %T, want object", event.Payload)
	}
	if payload["instance_id"] != "led" {
		t.Errorf("payload instance_id = %v, want %q", payload["instance_id"], "led")
	}
	if payload["state"] != "HIGH" {
		t.Errorf("payload state = %v, want %q", payload["state"], "HIGH")
	}
}

func TestWebSocketRequiresTicket(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		conn.Close()
		t.Fatal("dial without ticket succeeded, want rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("handshake response = %v, want status %d", resp, http.StatusUnauthorized)
	}
	if resp != nil {
		resp.Body.Close()
	}
}

func TestWebSocketTicketSingleUse(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	ts := httptest.NewServer(router)
	defer ts.Close()

	token := authToken(t, router)
	ticket := wsTicket(t, router, token)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticket
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("first dial error = %v", err)
	}
	conn.Close()

	second, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		second.Close()
		t.Fatal("second dial with consumed ticket succeeded, want rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("second handshake status = %v, want %d", resp, http.StatusUnauthorized)
	}
	if resp != nil {
		resp.Body.Close()
	}
}

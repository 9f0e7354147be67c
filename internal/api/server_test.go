package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/biofleet/biofleet-core/internal/audit"
	"github.com/biofleet/biofleet-core/internal/device"
	"github.com/biofleet/biofleet-core/internal/infrastructure/config"
	"github.com/biofleet/biofleet-core/internal/infrastructure/database"
	"github.com/biofleet/biofleet-core/internal/infrastructure/logging"
	"github.com/biofleet/biofleet-core/internal/listener"
	"github.com/biofleet/biofleet-core/internal/relay"
	"github.com/biofleet/biofleet-core/internal/scanner"
	"github.com/biofleet/biofleet-core/internal/terminal"
)

// testEnv bundles the wired components behind one API router.
type testEnv struct {
	registry *device.Registry
	manager  *listener.Manager
	sim      *terminal.Simulator
	server   *Server
	router   http.Handler
}

// discardSink drops every relayed event.
type discardSink struct{}

func (discardSink) Deliver(_ context.Context, _ string, _ relay.Event) error { return nil }

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func listenerTestConfig() config.ListenerConfig {
	return config.ListenerConfig{
		PollInterval:     1,
		MaxRetries:       1,
		RetryDelay:       1,
		ReconnectBackoff: 1,
		StopTimeout:      2,
		ProbeTimeout:     1,
		ConnectTimeout:   1,
	}
}

// newTestEnv builds a router over a fresh registry, a simulator driver,
// and an optional audit repository.
func newTestEnv(t *testing.T, auditRepo audit.Repository) *testEnv {
	t.Helper()

	registry := device.NewRegistry()
	sim := terminal.NewSimulator()
	rly := relay.New(discardSink{}, time.Second)
	mgr := listener.NewManager(listenerTestConfig(), registry, sim, rly)
	t.Cleanup(mgr.StopAll)

	scn := scanner.New(config.ScannerConfig{Port: 4370, Timeout: 1, Workers: 50}, sim)

	srv, err := New(Deps{
		Config:    config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:        config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 60},
		Logger:    testLogger(),
		Registry:  registry,
		Manager:   mgr,
		Scanner:   scn,
		AuditRepo: auditRepo,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv.Hub() // ensure hub exists for the websocket route

	return &testEnv{
		registry: registry,
		manager:  mgr,
		sim:      sim,
		server:   srv,
		router:   srv.buildRouter(),
	}
}

// reachableDevice registers a device backed by a listening TCP socket so
// the reachability probe passes and the simulator answers the handshake.
func (e *testEnv) reachableDevice(t *testing.T, name string) *device.Device {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	port := ln.Addr().(*net.TCPAddr).Port
	dev, err := e.registry.Add("127.0.0.1", port, name, true)
	if err != nil {
		t.Fatalf("registry.Add: %v", err)
	}
	return dev
}

// do executes a request against the router and decodes the JSON response.
func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		//nolint:errcheck // Some responses are not JSON objects; callers check what they need
		json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

// =============================================================================
// Health
// =============================================================================

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

// =============================================================================
// Device CRUD
// =============================================================================

func TestDeviceCRUD(t *testing.T) {
	env := newTestEnv(t, nil)

	// Create with default port
	rec, body := env.do(t, http.MethodPost, "/api/v1/devices", map[string]any{
		"ip":   "10.0.0.5",
		"name": "warehouse",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if body["port"] != float64(defaultDevicePort) {
		t.Errorf("port = %v, want %d", body["port"], defaultDevicePort)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("create returned no id")
	}

	// Get
	rec, body = env.do(t, http.MethodGet, "/api/v1/devices/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	if body["name"] != "warehouse" {
		t.Errorf("name = %v, want warehouse", body["name"])
	}

	// List
	rec, body = env.do(t, http.MethodGet, "/api/v1/devices", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}

	// Patch
	rec, body = env.do(t, http.MethodPatch, "/api/v1/devices/"+id, map[string]any{
		"name":    "warehouse-2",
		"enabled": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, want 200", rec.Code)
	}
	if body["name"] != "warehouse-2" || body["enabled"] != false {
		t.Errorf("patched device = %v", body)
	}

	// Delete
	rec, _ = env.do(t, http.MethodDelete, "/api/v1/devices/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	rec, _ = env.do(t, http.MethodGet, "/api/v1/devices/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestCreateDevice_InvalidAddress(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/devices", map[string]any{
		"ip":   "   ",
		"name": "bad",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListDevices_EnabledFilter(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.registry.Add("10.0.0.1", 4370, "on", true); err != nil {
		t.Fatal(err)
	}
	if _, err := env.registry.Add("10.0.0.2", 4370, "off", false); err != nil {
		t.Fatal(err)
	}

	rec, body := env.do(t, http.MethodGet, "/api/v1/devices?enabled=false", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

// =============================================================================
// Terminal users
// =============================================================================

func TestSetAndListUsers(t *testing.T) {
	env := newTestEnv(t, nil)
	dev := env.reachableDevice(t, "office")

	// Explicit uid
	rec, body := env.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/users", map[string]any{
		"uid":    5,
		"userId": "1001",
		"name":   "Ada",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("set user status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["uid"] != float64(5) {
		t.Errorf("uid = %v, want 5", body["uid"])
	}

	// Omitted uid resolves to the numeric userId
	rec, body = env.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/users", map[string]any{
		"userId": "42",
		"name":   "Grace",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("set user status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["uid"] != float64(42) {
		t.Errorf("auto-picked uid = %v, want 42", body["uid"])
	}

	rec, body = env.do(t, http.MethodGet, "/api/v1/devices/"+dev.ID+"/users", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list users status = %d", rec.Code)
	}
	if body["count"] != float64(2) {
		t.Errorf("user count = %v, want 2", body["count"])
	}
}

func TestSetUser_RequiresUserID(t *testing.T) {
	env := newTestEnv(t, nil)
	dev := env.reachableDevice(t, "office")

	rec, _ := env.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/users", map[string]any{
		"name": "anonymous",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t, nil)
	dev := env.reachableDevice(t, "office")

	rec, _ := env.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/users", map[string]any{
		"uid":    3,
		"userId": "77",
		"name":   "Tmp",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("set user status = %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/devices/"+dev.ID+"/users/3", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete user status = %d, want 204", rec.Code)
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/devices/"+dev.ID+"/users/3", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing user status = %d, want 404", rec.Code)
	}
}

func TestDeleteUser_ByUserID(t *testing.T) {
	env := newTestEnv(t, nil)
	dev := env.reachableDevice(t, "office")

	rec, _ := env.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/users", map[string]any{
		"uid":    9,
		"userId": "EMP-100",
		"name":   "Badge holder",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("set user status = %d", rec.Code)
	}

	// Non-numeric key resolves through the userId fallback.
	rec, _ = env.do(t, http.MethodDelete, "/api/v1/devices/"+dev.ID+"/users/EMP-100", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete by userId status = %d, want 204", rec.Code)
	}

	rec, body := env.do(t, http.MethodGet, "/api/v1/devices/"+dev.ID+"/users", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list users status = %d", rec.Code)
	}
	if users, ok := body["users"].([]any); ok && len(users) != 0 {
		t.Fatalf("users after delete = %v, want none", users)
	}
}

func TestSessionEndpoints_UnreachableDevice(t *testing.T) {
	env := newTestEnv(t, nil)

	// No TCP listener behind this address: the probe fails.
	dev, err := env.registry.Add("127.0.0.1", 1, "dead", true)
	if err != nil {
		t.Fatal(err)
	}

	rec, _ := env.do(t, http.MethodGet, "/api/v1/devices/"+dev.ID+"/users", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestListAllUsers_ToleratesFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	alive := env.reachableDevice(t, "alive")
	if _, err := env.registry.Add("127.0.0.1", 1, "dead", true); err != nil {
		t.Fatal(err)
	}

	rec, _ := env.do(t, http.MethodPost, "/api/v1/devices/"+alive.ID+"/users", map[string]any{
		"uid":    1,
		"userId": "9",
		"name":   "Solo",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("set user status = %d", rec.Code)
	}

	rec, body := env.do(t, http.MethodGet, "/api/v1/users", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}

	devices, _ := body["devices"].([]any)
	var withUsers, withErrors int
	for _, d := range devices {
		entry := d.(map[string]any)
		if entry["error"] != nil {
			withErrors++
		}
		if entry["users"] != nil {
			withUsers++
		}
	}
	if withUsers != 1 || withErrors != 1 {
		t.Errorf("withUsers = %d, withErrors = %d, want 1 and 1", withUsers, withErrors)
	}
}

// =============================================================================
// Attendance
// =============================================================================

func TestAttendanceReadAndClear(t *testing.T) {
	env := newTestEnv(t, nil)
	dev := env.reachableDevice(t, "gate")

	when := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	env.sim.QueueAttendance(dev.Addr(),
		terminal.AttendanceRecord{UserID: "12", Timestamp: when},
		terminal.AttendanceRecord{UserID: "13", Timestamp: when.Add(time.Minute)},
	)

	rec, body := env.do(t, http.MethodGet, "/api/v1/devices/"+dev.ID+"/attendance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("read status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}

	rec, body = env.do(t, http.MethodDelete, "/api/v1/devices/"+dev.ID+"/attendance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	if body["cleared"] != float64(2) {
		t.Errorf("cleared = %v, want 2", body["cleared"])
	}

	rec, body = env.do(t, http.MethodGet, "/api/v1/devices/"+dev.ID+"/attendance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("read status = %d", rec.Code)
	}
	if body["count"] != float64(0) {
		t.Errorf("count after clear = %v, want 0", body["count"])
	}
}

// =============================================================================
// Listener supervision
// =============================================================================

func TestListenerLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.reachableDevice(t, "gate")

	rec, body := env.do(t, http.MethodPost, "/api/v1/listener/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d", rec.Code)
	}
	if body["running"] != true {
		t.Errorf("running = %v after start, want true", body["running"])
	}

	rec, body = env.do(t, http.MethodPost, "/api/v1/listener/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
	if body["running"] != false {
		t.Errorf("running = %v after stop, want false", body["running"])
	}
	if devices, ok := body["devices"].(map[string]any); ok && len(devices) != 0 {
		t.Errorf("devices after stop = %v, want empty", devices)
	}
}

func TestDeleteDevice_StopsListenerTask(t *testing.T) {
	env := newTestEnv(t, nil)
	dev := env.reachableDevice(t, "gate")

	rec, _ := env.do(t, http.MethodPost, "/api/v1/listener/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d", rec.Code)
	}

	// The task registers asynchronously; wait for it to show up.
	deadline := time.Now().Add(3 * time.Second)
	for {
		_, body := env.do(t, http.MethodGet, "/api/v1/listener/status", nil)
		if devices, ok := body["devices"].(map[string]any); ok {
			if _, found := devices[dev.ID]; found {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("listener task never registered")
		}
		time.Sleep(20 * time.Millisecond)
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/devices/"+dev.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	_, body := env.do(t, http.MethodGet, "/api/v1/listener/status", nil)
	if devices, ok := body["devices"].(map[string]any); ok {
		if _, found := devices[dev.ID]; found {
			t.Error("listener task still present after device delete")
		}
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/devices/"+dev.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted device status = %d, want 404", rec.Code)
	}
}

func TestListenerStopDevice_NoTask(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/listener/devices/nope/stop", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// =============================================================================
// Network scan
// =============================================================================

func TestNetworkScan_InvalidPrefix(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/network/scan", map[string]any{
		"prefix": "not-a-subnet",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// =============================================================================
// Audit trail
// =============================================================================

func TestAuditTrail(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{Path: t.TempDir() + "/audit.db"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := newTestEnv(t, audit.NewSQLiteRepository(db.DB))

	// Start the audit drain goroutine without the HTTP listener.
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go env.server.drainAuditLog(ctx)

	rec, body := env.do(t, http.MethodPost, "/api/v1/devices", map[string]any{
		"ip":   "10.1.1.1",
		"name": "audited",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	id, _ := body["id"].(string)

	// The write is asynchronous; poll until it lands.
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, body = env.do(t, http.MethodGet, "/api/v1/audit?entity_type=device", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("audit list status = %d", rec.Code)
		}
		if body["total"] == float64(1) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("audit entry never appeared: %s", rec.Body.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	entries, _ := body["entries"].([]any)
	entry := entries[0].(map[string]any)
	if entry["action"] != audit.ActionCreate || entry["entityId"] != id {
		t.Errorf("entry = %v", entry)
	}
}

// =============================================================================
// WebSocket
// =============================================================================

func TestWebSocketBroadcast(t *testing.T) {
	env := newTestEnv(t, nil)

	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)

	wsURL := "ws" + ts.URL[len("http"):] + "/api/v1/ws"
	conn, resp, err := dialWebSocket(wsURL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	// Subscribe to status transitions
	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{ChannelDeviceStatus}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Type != WSTypeResponse {
		t.Fatalf("ack type = %q, want response", ack.Type)
	}

	env.server.hub.DeviceStatusChanged("dev-1", device.StatusListening)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev WSMessage
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != WSTypeEvent || ev.EventType != ChannelDeviceStatus {
		t.Errorf("event = %+v", ev)
	}
	payload, _ := ev.Payload.(map[string]any)
	if payload["deviceId"] != "dev-1" || payload["status"] != string(device.StatusListening) {
		t.Errorf("payload = %v", payload)
	}
}

func TestWebSocket_UnsubscribedChannelSilent(t *testing.T) {
	env := newTestEnv(t, nil)

	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)

	wsURL := "ws" + ts.URL[len("http"):] + "/api/v1/ws"
	conn, resp, err := dialWebSocket(wsURL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	// No subscription: broadcast must not reach this client.
	env.server.hub.PollCompleted("dev-1", 3)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

// =============================================================================
// helpers
// =============================================================================

func dialWebSocket(url string) (*websocket.Conn, *http.Response, error) {
	return websocket.DefaultDialer.Dial(url, nil)
}

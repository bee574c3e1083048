package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func createSession(t *testing.T, ts *httptest.Server, name string) string {
	t.Helper()
	res, payload := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/session", map[string]any{"name": name})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create session status=%d payload=%v", res.StatusCode, payload)
	}
	return payload.(map[string]any)["id"].(string)
}

func TestSessionCreateAndGet(t *testing.T) {
	ts, _ := newTestServer(t)
	c := ts.Client()

	res, payload := doJSON(t, c, http.MethodPost, ts.URL+"/session", map[string]any{})
	if res.StatusCode != http.StatusBadRequest || payload.(map[string]any)["error"].(string) != "Name is required" {
		t.Fatalf("missing name status=%d payload=%v", res.StatusCode, payload)
	}

	id := createSession(t, ts, "Evening Run")

	res, payload = doJSON(t, c, http.MethodGet, ts.URL+"/session/"+id, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get session status=%d payload=%v", res.StatusCode, payload)
	}
	got := payload.(map[string]any)
	if got["id"].(string) != id || got["name"].(string) != "Evening Run" {
		t.Fatalf("unexpected session: %v", got)
	}

	res, payload = doJSON(t, c, http.MethodGet, ts.URL+"/session/nope", nil)
	if res.StatusCode != http.StatusNotFound || payload.(map[string]any)["error"].(string) != "Session not found" {
		t.Fatalf("unknown session status=%d payload=%v", res.StatusCode, payload)
	}
}

func TestLayoutCreate_WithRooms(t *testing.T) {
	ts, _ := newTestServer(t)
	c := ts.Client()
	sessionID := createSession(t, ts, "s1")

	res, payload := doJSON(t, c, http.MethodPost, ts.URL+"/layouts", map[string]any{
		"name":             "Ground Floor",
		"owner_session_id": sessionID,
		"rooms": []map[string]any{
			{"name": "Kitchen", "x": 0.0, "y": 0.0, "width": 200.0, "height": 150.0},
			{"name": "Hall", "x": 200.0, "y": 0.0, "width": 100.0, "height": 150.0},
		},
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create layout status=%d payload=%v", res.StatusCode, payload)
	}
	layoutID := payload.(map[string]any)["layout_id"].(string)
	if !strings.HasPrefix(layoutID, "layout-") {
		t.Fatalf("unexpected layout id: %q", layoutID)
	}

	res, payload = doJSON(t, c, http.MethodGet, ts.URL+"/layouts", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list layouts status=%d payload=%v", res.StatusCode, payload)
	}
	rows := payload.([]any)
	if len(rows) != 1 {
		t.Fatalf("expected 1 layout, got %d", len(rows))
	}
	layout := rows[0].(map[string]any)
	if layout["owner_session_id"].(string) != sessionID {
		t.Fatalf("unexpected owner: %v", layout)
	}
	rooms := layout["rooms"].([]any)
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	room := rooms[0].(map[string]any)
	if !strings.HasPrefix(room["id"].(string), "room-") {
		t.Fatalf("unexpected room id: %v", room["id"])
	}
	if room["width"].(float64) != 200 || room["height"].(float64) != 150 {
		t.Fatalf("unexpected room geometry: %v", room)
	}
}

func TestLayoutCreate_ZeroRooms(t *testing.T) {
	ts, _ := newTestServer(t)
	c := ts.Client()
	sessionID := createSession(t, ts, "s1")

	res, payload := doJSON(t, c, http.MethodPost, ts.URL+"/layouts", map[string]any{
		"name":             "Empty Floor",
		"owner_session_id": sessionID,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create layout status=%d payload=%v", res.StatusCode, payload)
	}

	res, payload = doJSON(t, c, http.MethodGet, ts.URL+"/layouts", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list layouts status=%d payload=%v", res.StatusCode, payload)
	}
	rooms, ok := payload.([]any)[0].(map[string]any)["rooms"].([]any)
	if !ok || len(rooms) != 0 {
		t.Fatalf("expected empty rooms array, got %v", payload)
	}
}

func TestLayoutCreate_RollsBackOnBadRoom(t *testing.T) {
	ts, _ := newTestServer(t)
	c := ts.Client()
	sessionID := createSession(t, ts, "s1")

	res, payload := doJSON(t, c, http.MethodPost, ts.URL+"/layouts", map[string]any{
		"name":             "Broken Floor",
		"owner_session_id": sessionID,
		"rooms": []map[string]any{
			{"name": "Kitchen", "x": 0.0, "y": 0.0, "width": 200.0, "height": 150.0},
			{"name": "Hall", "x": 200.0, "y": 0.0, "width": 100.0}, // height missing
		},
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad room status=%d payload=%v", res.StatusCode, payload)
	}

	// Nothing persisted: no layout, no partial room rows.
	res, payload = doJSON(t, c, http.MethodGet, ts.URL+"/layouts", nil)
	if res.StatusCode != http.StatusOK || len(payload.([]any)) != 0 {
		t.Fatalf("expected no layouts after rollback, got %v", payload)
	}
}

func TestLayoutCreate_RequiredFields(t *testing.T) {
	ts, _ := newTestServer(t)
	c := ts.Client()

	res, payload := doJSON(t, c, http.MethodPost, ts.URL+"/layouts", map[string]any{"owner_session_id": "s"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing name status=%d payload=%v", res.StatusCode, payload)
	}
	res, payload = doJSON(t, c, http.MethodPost, ts.URL+"/layouts", map[string]any{"name": "Floor"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing owner status=%d payload=%v", res.StatusCode, payload)
	}
}

func TestLayoutDelete_CascadesEverything(t *testing.T) {
	ts, _ := newTestServer(t)
	c := ts.Client()
	sessionID := createSession(t, ts, "s1")

	res, payload := doJSON(t, c, http.MethodPost, ts.URL+"/layouts", map[string]any{
		"name":             "Doomed Floor",
		"owner_session_id": sessionID,
		"rooms": []map[string]any{
			{"name": "Kitchen", "x": 0.0, "y": 0.0, "width": 200.0, "height": 150.0},
		},
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create layout status=%d payload=%v", res.StatusCode, payload)
	}
	layoutID := payload.(map[string]any)["layout_id"].(string)

	// Populate the layout with one of everything.
	res, payload = doJSON(t, c, http.MethodPost, ts.URL+"/layouts/"+layoutID+"/devices", deviceBody("dev-1", 5))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create device status=%d payload=%v", res.StatusCode, payload)
	}
	res, payload = doJSON(t, c, http.MethodPost, ts.URL+"/layouts/"+layoutID+"/sensors", sensorBody("sen-1", "motion"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create sensor status=%d payload=%v", res.StatusCode, payload)
	}
	res, payload = doJSON(t, c, http.MethodPost, ts.URL+"/layouts/"+layoutID+"/persons", map[string]any{
		"id": "p1", "name": "Alice", "animationSpeed": 1.0,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create person status=%d payload=%v", res.StatusCode, payload)
	}
	res, payload = doJSON(t, c, http.MethodPost, ts.URL+"/layouts/"+layoutID+"/events", map[string]any{
		"id": "ev-1", "nodeId": "dev-1", "nodeType": "device",
		"eventType": "motion_detected", "message": "m",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create event status=%d payload=%v", res.StatusCode, payload)
	}

	res, payload = doJSON(t, c, http.MethodDelete, ts.URL+"/layouts/"+layoutID, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete layout status=%d payload=%v", res.StatusCode, payload)
	}

	for _, path := range []string{"/devices", "/sensors", "/persons", "/events"} {
		res, payload = doJSON(t, c, http.MethodGet, ts.URL+"/layouts/"+layoutID+path, nil)
		if res.StatusCode != http.StatusOK || len(payload.([]any)) != 0 {
			t.Fatalf("expected empty %s after layout delete, got %v", path, payload)
		}
	}

	res, payload = doJSON(t, c, http.MethodDelete, ts.URL+"/layouts/"+layoutID, nil)
	if res.StatusCode != http.StatusNotFound || payload.(map[string]any)["error"].(string) != "Layout not found" {
		t.Fatalf("re-delete status=%d payload=%v", res.StatusCode, payload)
	}
}

func TestLogAppend(t *testing.T) {
	ts, repo := newTestServer(t)
	c := ts.Client()

	// A missing event surfaces as 500, not 400.
	res, payload := doJSON(t, c, http.MethodPost, ts.URL+"/logs", map[string]any{"room": "kitchen"})
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("missing event status=%d payload=%v", res.StatusCode, payload)
	}

	res, payload = doJSON(t, c, http.MethodPost, ts.URL+"/logs", map[string]any{
		"event":            "light_on",
		"timestamp":        "2024-03-01T10:00:00",
		"sensor_id":        "sen-1",
		"target_device_id": "dev-1",
		"room":             "kitchen",
		"floor-id":         "layout-1",
		"effect":           "on",
		"user_action":      true,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("append log status=%d payload=%v", res.StatusCode, payload)
	}

	rows, err := repo.ListLogs(context.Background())
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 log row, got %d", len(rows))
	}
	row := rows[0]
	if row.Event != "light_on" || !row.UserAction {
		t.Fatalf("unexpected log row: %+v", row)
	}
	if row.DeviceID == nil || *row.DeviceID != "dev-1" {
		t.Fatalf("target_device_id not mapped to device_id: %+v", row)
	}
	if row.FloorID == nil || *row.FloorID != "layout-1" {
		t.Fatalf("floor-id not mapped to floor_id: %+v", row)
	}
	if got := row.Timestamp.Format("2006-01-02T15:04:05"); got != "2024-03-01T10:00:00" {
		t.Fatalf("unexpected timestamp: %v", row.Timestamp)
	}

	res, payload = doJSON(t, c, http.MethodPost, ts.URL+"/logs", map[string]any{
		"event": "x", "timestamp": "yesterday",
	})
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("bad timestamp status=%d payload=%v", res.StatusCode, payload)
	}
}

package ingest

import (
	"context"
	"testing"

	"floorplan-service/internal/store"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRunner(t *testing.T) (*Runner, *store.Repo) {
	t.Helper()
	dsn := "file:memdb_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo, err := store.New(db)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	return New(repo, nil), repo
}

func TestHandleMessage_SimEventStored(t *testing.T) {
	r, repo := newTestRunner(t)
	ctx := context.Background()

	payload := []byte(`{"id":"evt-1","nodeId":"dev-1","nodeType":"device","eventType":"motion_detected","message":"movement","timestamp":1700000000000}`)
	r.handleMessage(ctx, simEventPrefix+"layout-1", payload)

	rows, err := repo.ListEvents(ctx, "layout-1")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one event, got %d", len(rows))
	}
	if rows[0].ID != "evt-1" || rows[0].TimestampMillis() != 1700000000000 {
		t.Fatalf("unexpected event: %+v", rows[0])
	}
}

func TestHandleMessage_SimEventGeneratesID(t *testing.T) {
	r, repo := newTestRunner(t)
	ctx := context.Background()

	payload := []byte(`{"nodeId":"dev-1","nodeType":"device","eventType":"t","message":"m"}`)
	r.handleMessage(ctx, simEventPrefix+"layout-1", payload)

	rows, _ := repo.ListEvents(ctx, "layout-1")
	if len(rows) != 1 || rows[0].ID == "" {
		t.Fatalf("expected one event with generated id, got %+v", rows)
	}
}

func TestHandleMessage_DropsBadPayloads(t *testing.T) {
	r, repo := newTestRunner(t)
	ctx := context.Background()

	// invalid json
	r.handleMessage(ctx, simEventPrefix+"layout-1", []byte(`{not json`))
	// incomplete event
	r.handleMessage(ctx, simEventPrefix+"layout-1", []byte(`{"nodeId":"dev-1"}`))
	// missing layout id in topic
	r.handleMessage(ctx, simEventPrefix, []byte(`{"nodeId":"d","nodeType":"device","eventType":"t","message":"m"}`))
	// empty payload
	r.handleMessage(ctx, simEventPrefix+"layout-1", nil)

	rows, _ := repo.ListEvents(ctx, "layout-1")
	if len(rows) != 0 {
		t.Fatalf("expected no events stored, got %+v", rows)
	}
}

func TestHandleMessage_AuditAppended(t *testing.T) {
	r, repo := newTestRunner(t)
	ctx := context.Background()

	payload := []byte(`{"event":"light_on","target_device_id":"dev-1","floor-id":"layout-1","user_action":true,"timestamp":"2026-08-29T10:00:00Z"}`)
	r.handleMessage(ctx, auditTopic, payload)

	rows, err := repo.ListLogs(ctx)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one log line, got %d", len(rows))
	}
	got := rows[0]
	if got.Event != "light_on" || !got.UserAction {
		t.Fatalf("unexpected log: %+v", got)
	}
	if got.DeviceID == nil || *got.DeviceID != "dev-1" {
		t.Fatalf("target_device_id not mapped: %+v", got.DeviceID)
	}
	if got.FloorID == nil || *got.FloorID != "layout-1" {
		t.Fatalf("floor-id not mapped: %+v", got.FloorID)
	}
}

func TestHandleMessage_AuditWithoutEventDropped(t *testing.T) {
	r, repo := newTestRunner(t)
	ctx := context.Background()

	r.handleMessage(ctx, auditTopic, []byte(`{"sensor_id":"s1"}`))

	rows, _ := repo.ListLogs(ctx)
	if len(rows) != 0 {
		t.Fatalf("expected no log lines, got %+v", rows)
	}
}

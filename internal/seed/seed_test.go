package seed

import (
	"context"
	"testing"

	"floorplan-service/internal/store"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *store.Repo {
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
	return repo
}

func TestRunOnce_Idempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inserted, err := RunOnce(ctx, repo)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if inserted == 0 {
		t.Fatal("expected rows inserted on fresh database")
	}

	inserted, err = RunOnce(ctx, repo)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("expected no inserts on second run, got %d", inserted)
	}

	layouts, err := repo.ListLayouts(ctx)
	if err != nil {
		t.Fatalf("list layouts: %v", err)
	}
	if len(layouts) != 1 {
		t.Fatalf("expected one demo layout, got %d", len(layouts))
	}
}

func TestRunOnce_WiresDeviceAndSensor(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := RunOnce(ctx, repo); err != nil {
		t.Fatalf("run: %v", err)
	}

	devices, err := repo.ListDevices(ctx, demoLayoutID)
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "light_living" {
		t.Fatalf("unexpected devices: %+v", devices)
	}

	sensors, err := repo.ListSensors(ctx, demoLayoutID, "motion")
	if err != nil {
		t.Fatalf("list sensors: %v", err)
	}
	if len(sensors) != 1 || sensors[0].ID != "occupancy_living" {
		t.Fatalf("unexpected sensors: %+v", sensors)
	}
}

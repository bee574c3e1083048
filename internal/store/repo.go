package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repo wraps the datastore. All multi-row writes run inside a transaction;
// nothing here keeps state between calls.
type Repo struct {
	db *gorm.DB
}

func OpenPostgres(user, password, dbName, host, port, sslMode string) (*gorm.DB, error) {
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC", host, user, password, dbName, port, sslMode)
	gormLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return gorm.Open(
		postgres.New(postgres.Config{DSN: dsn}),
		&gorm.Config{DisableForeignKeyConstraintWhenMigrating: true, Logger: gormLogger},
	)
}

// OpenSQLite opens the single-file store used by the reference deployment
// and by local development.
func OpenSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(
		sqlite.Open(path),
		&gorm.Config{DisableForeignKeyConstraintWhenMigrating: true},
	)
}

func New(db *gorm.DB) (*Repo, error) {
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

func ensureSchema(db *gorm.DB) error {
	m := db.Migrator()
	for _, model := range []any{
		&Session{}, &Layout{}, &Room{}, &Device{}, &Sensor{},
		&Person{}, &SimulationEvent{}, &Log{},
	} {
		if m.HasTable(model) {
			continue
		}
		if err := m.CreateTable(model); err != nil {
			return fmt.Errorf("create table %T: %w", model, err)
		}
	}

	// Indexes (names come from struct tags)
	if !m.HasIndex(&Layout{}, "OwnerSessionID") {
		_ = m.CreateIndex(&Layout{}, "OwnerSessionID")
	}
	if !m.HasIndex(&Room{}, "LayoutID") {
		_ = m.CreateIndex(&Room{}, "LayoutID")
	}
	for _, model := range []any{&Device{}, &Sensor{}, &Person{}, &SimulationEvent{}} {
		if !m.HasIndex(model, "Floor") {
			_ = m.CreateIndex(model, "Floor")
		}
	}
	return nil
}

// --- Sessions ---

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSession(ctx context.Context, id string) (*Session, error) {
	var row Session
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// --- Layouts ---

// CreateLayoutWithRooms inserts the layout and all of its rooms in one
// transaction; a failure on any row leaves nothing behind.
func (r *Repo) CreateLayoutWithRooms(ctx context.Context, layout *Layout, rooms []Room) error {
	if layout.ID == "" {
		layout.ID = NewLayoutID()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Rooms").Create(layout).Error; err != nil {
			return err
		}
		if len(rooms) == 0 {
			return nil
		}
		now := time.Now().UTC()
		for i := range rooms {
			if rooms[i].ID == "" {
				rooms[i].ID = NewRoomID()
			}
			rooms[i].LayoutID = layout.ID
			rooms[i].DateCreated = now
			rooms[i].DateModified = now
		}
		return tx.Create(&rooms).Error
	})
}

func (r *Repo) ListLayouts(ctx context.Context) ([]Layout, error) {
	rows := []Layout{}
	if err := r.db.WithContext(ctx).Preload("Rooms").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteLayout removes the layout and everything scoped to it. Returns
// gorm.ErrRecordNotFound when the layout does not exist.
func (r *Repo) DeleteLayout(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var layout Layout
		if err := tx.First(&layout, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("floor = ?", id).Delete(&Device{}).Error; err != nil {
			return err
		}
		if err := tx.Where("floor = ?", id).Delete(&Sensor{}).Error; err != nil {
			return err
		}
		if err := tx.Where("floor = ?", id).Delete(&Person{}).Error; err != nil {
			return err
		}
		if err := tx.Where("floor = ?", id).Delete(&SimulationEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("layout_id = ?", id).Delete(&Room{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Layout{}, "id = ?", id).Error
	})
}

// --- Devices ---

func (r *Repo) ListDevices(ctx context.Context, layoutID string) ([]Device, error) {
	rows := []Device{}
	if err := r.db.WithContext(ctx).Where("floor = ?", layoutID).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) GetDevice(ctx context.Context, id string) (*Device, error) {
	var row Device
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// PutDevice inserts or replaces the row keyed by dev.ID. The lookup is by
// id alone, not by (id, floor): a payload carrying an existing id under a
// different layout re-parents the device to that layout.
func (r *Repo) PutDevice(ctx context.Context, dev *Device) (created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var existing Device
		findErr := tx.First(&existing, "id = ?", dev.ID).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			created = true
			dev.DateCreated = now
			dev.DateModified = now
			return tx.Create(dev).Error
		}
		if findErr != nil {
			return findErr
		}
		dev.DateCreated = existing.DateCreated
		dev.DateModified = now
		return tx.Save(dev).Error
	})
	return created, err
}

// DeleteDevice looks up by both id and owning layout, unlike PutDevice.
func (r *Repo) DeleteDevice(ctx context.Context, layoutID, deviceID string) error {
	var row Device
	if err := r.db.WithContext(ctx).First(&row, "id = ? AND floor = ?", deviceID, layoutID).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&row).Error
}

// --- Sensors ---

// ListSensors filters by layout and sensor type.
func (r *Repo) ListSensors(ctx context.Context, layoutID, sensorType string) ([]Sensor, error) {
	rows := []Sensor{}
	if err := r.db.WithContext(ctx).Where("floor = ? AND type = ?", layoutID, sensorType).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) GetSensor(ctx context.Context, id string) (*Sensor, error) {
	var row Sensor
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repo) PutSensor(ctx context.Context, sensor *Sensor) (created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var existing Sensor
		findErr := tx.First(&existing, "id = ?", sensor.ID).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			created = true
			sensor.DateCreated = now
			sensor.DateModified = now
			return tx.Create(sensor).Error
		}
		if findErr != nil {
			return findErr
		}
		sensor.DateCreated = existing.DateCreated
		sensor.DateModified = now
		return tx.Save(sensor).Error
	})
	return created, err
}

func (r *Repo) DeleteSensor(ctx context.Context, layoutID, sensorID string) error {
	var row Sensor
	if err := r.db.WithContext(ctx).First(&row, "id = ? AND floor = ?", sensorID, layoutID).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&row).Error
}

// --- Persons ---

func (r *Repo) ListPersons(ctx context.Context, layoutID string) ([]Person, error) {
	rows := []Person{}
	if err := r.db.WithContext(ctx).Where("floor = ?", layoutID).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) GetPerson(ctx context.Context, id string) (*Person, error) {
	var row Person
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repo) PutPerson(ctx context.Context, person *Person) (created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var existing Person
		findErr := tx.First(&existing, "id = ?", person.ID).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			created = true
			person.DateCreated = now
			person.DateModified = now
			return tx.Create(person).Error
		}
		if findErr != nil {
			return findErr
		}
		person.DateCreated = existing.DateCreated
		person.DateModified = now
		return tx.Save(person).Error
	})
	return created, err
}

// --- Simulation events ---

func (r *Repo) ListEvents(ctx context.Context, layoutID string) ([]SimulationEvent, error) {
	rows := []SimulationEvent{}
	if err := r.db.WithContext(ctx).Where("floor = ?", layoutID).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) PutEvent(ctx context.Context, event *SimulationEvent) (created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var existing SimulationEvent
		findErr := tx.First(&existing, "id = ?", event.ID).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			created = true
			event.DateCreated = now
			event.DateModified = now
			return tx.Create(event).Error
		}
		if findErr != nil {
			return findErr
		}
		event.DateCreated = existing.DateCreated
		event.DateModified = now
		return tx.Save(event).Error
	})
	return created, err
}

// --- Audit log ---

// AppendLog always inserts; log rows are never updated or upserted.
func (r *Repo) AppendLog(ctx context.Context, entry *Log) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repo) ListLogs(ctx context.Context) ([]Log, error) {
	rows := []Log{}
	if err := r.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

package store

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Session is one editing/simulation session. It owns layouts via
// Layout.OwnerSessionID.
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (Session) TableName() string { return "sessions" }

// Layout is a floor plan. Everything placed on a floor (rooms, devices,
// sensors, persons, simulation events) is scoped by its id.
type Layout struct {
	ID             string `json:"id" gorm:"primaryKey"`
	Name           string `json:"name" gorm:"not null"`
	OwnerSessionID string `json:"owner_session_id" gorm:"index;not null"`
	Rooms          []Room `json:"rooms" gorm:"foreignKey:LayoutID"`
}

func (Layout) TableName() string { return "layouts" }

type Room struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"not null"`
	LayoutID     string    `json:"layout_id" gorm:"index;not null"`
	X            float64   `json:"x" gorm:"not null"`
	Y            float64   `json:"y" gorm:"not null"`
	Width        float64   `json:"width" gorm:"not null"`
	Height       float64   `json:"height" gorm:"not null"`
	DateCreated  time.Time `json:"date_created"`
	DateModified time.Time `json:"date_modified"`
}

func (Room) TableName() string { return "rooms" }

// Device is a placed smart-device icon. The id is supplied by the editor,
// not generated here; re-posting an existing id replaces the row.
// JSON tags follow the editor's wire names (camelCase for the list fields).
type Device struct {
	ID                    string                      `json:"id" gorm:"primaryKey"`
	X                     float64                     `json:"x" gorm:"not null"`
	Y                     float64                     `json:"y" gorm:"not null"`
	Type                  string                      `json:"type" gorm:"not null"`
	Label                 string                      `json:"label" gorm:"not null"`
	Name                  string                      `json:"name" gorm:"not null"`
	DeviceRad             float64                     `json:"device_rad" gorm:"not null"`
	Connectivity          datatypes.JSONSlice[string] `json:"connectivity"`
	CompatibleSensors     datatypes.JSONSlice[string] `json:"compatibleSensors" gorm:"column:compatible_sensors"`
	InterferenceProtocols datatypes.JSONSlice[string] `json:"interferenceProtocols" gorm:"column:interference_protocols"`
	ConnectedSensorIDs    datatypes.JSONSlice[string] `json:"connectedSensorIds" gorm:"column:connected_sensor_ids"`
	InterferenceIDs       datatypes.JSONSlice[string] `json:"interferenceIds" gorm:"column:interference_ids"`
	Floor                 string                      `json:"floor" gorm:"index;not null"`
	DateCreated           time.Time                   `json:"date_created"`
	DateModified          time.Time                   `json:"date_modified"`
}

func (Device) TableName() string { return "devices" }

// Sensor mirrors Device: editor-supplied id, upsert-by-id semantics.
type Sensor struct {
	ID                 string                      `json:"id" gorm:"primaryKey"`
	Type               string                      `json:"type" gorm:"not null"`
	Name               string                      `json:"name" gorm:"not null"`
	X                  float64                     `json:"x" gorm:"not null"`
	Y                  float64                     `json:"y" gorm:"not null"`
	SensorRad          float64                     `json:"sensor_rad" gorm:"not null"`
	Connectivity       datatypes.JSONSlice[string] `json:"connectivity"`
	ConnectedDeviceIDs datatypes.JSONSlice[string] `json:"connectedDeviceIds" gorm:"column:connected_device_ids"`
	InterferenceIDs    datatypes.JSONSlice[string] `json:"interferenceIds" gorm:"column:interference_ids"`
	Floor              string                      `json:"floor" gorm:"index;not null"`
	DateCreated        time.Time                   `json:"date_created"`
	DateModified       time.Time                   `json:"date_modified"`
}

func (Sensor) TableName() string { return "sensors" }

// Person is a simulated occupant walking a waypoint path. Path is stored as
// the editor sent it; the server never interprets the waypoints.
type Person struct {
	ID             string         `json:"id" gorm:"primaryKey"`
	Name           string         `json:"name" gorm:"not null"`
	Floor          string         `json:"floor" gorm:"index;not null"`
	Path           datatypes.JSON `json:"path"`
	CurrentIndex   int            `json:"currentIndex" gorm:"column:current_index;not null"`
	Direction      int            `json:"direction" gorm:"not null"`
	Color          *string        `json:"color"`
	AnimationSpeed float64        `json:"animationSpeed" gorm:"column:animation_speed;not null"`
	Progress       *float64       `json:"progress"`
	DateCreated    time.Time      `json:"date_created"`
	DateModified   time.Time      `json:"date_modified"`
}

func (Person) TableName() string { return "persons" }

// SimulationEvent records something that happened to a device or sensor
// during simulation playback. Timestamp is stored as a time; the wire
// format is integer milliseconds since epoch.
type SimulationEvent struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Floor        string    `json:"floor" gorm:"index;not null"`
	NodeID       string    `json:"nodeId" gorm:"column:node_id;not null"`
	NodeType     string    `json:"nodeType" gorm:"column:node_type;not null"`
	EventType    string    `json:"eventType" gorm:"column:event_type;not null"`
	Timestamp    time.Time `json:"-" gorm:"not null"`
	Message      string    `json:"message" gorm:"not null"`
	DateCreated  time.Time `json:"date_created"`
	DateModified time.Time `json:"date_modified"`
}

func (SimulationEvent) TableName() string { return "simulation_events" }

// TimestampMillis is the wire representation of Timestamp.
func (e SimulationEvent) TimestampMillis() int64 {
	return e.Timestamp.UnixMilli()
}

// Log is an immutable audit row. References are best-effort: the referent
// may no longer exist, and deleting a referent never deletes the log row.
type Log struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Timestamp      time.Time `json:"timestamp" gorm:"not null"`
	Event          string    `json:"event" gorm:"not null"`
	DeviceID       *string   `json:"device_id"`
	SensorID       *string   `json:"sensor_id"`
	OwnerSessionID *string   `json:"owner_session_id"`
	Room           *string   `json:"room"`
	FloorID        *string   `json:"floor_id"`
	Effect         *string   `json:"effect"`
	UserAction     bool      `json:"user_action"`
}

func (Log) TableName() string { return "logs" }

// NewLayoutID returns a fresh "layout-<hex8>" identifier.
func NewLayoutID() string { return "layout-" + randomHex(8) }

// NewRoomID returns a fresh "room-<hex6>" identifier.
func NewRoomID() string { return "room-" + randomHex(6) }

func randomHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// Package seed provisions a small demo floor plan so a fresh install has
// something to open in the editor.
package seed

import (
	"context"
	"errors"

	"floorplan-service/internal/store"

	"gorm.io/gorm"
)

const (
	demoSessionID = "session-demo"
	demoLayoutID  = "layout-demo"
)

// RunOnce inserts the demo session, layout, rooms, a device and a motion
// sensor. Idempotent: a second run finds the demo session and does nothing.
// Returns the number of rows inserted.
func RunOnce(ctx context.Context, repo *store.Repo) (int, error) {
	if repo == nil {
		return 0, errors.New("repo is required")
	}

	_, err := repo.GetSession(ctx, demoSessionID)
	if err == nil {
		return 0, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	inserted := 0
	session := &store.Session{ID: demoSessionID, Name: "Demo Session"}
	if err := repo.CreateSession(ctx, session); err != nil {
		return inserted, err
	}
	inserted++

	layout := &store.Layout{ID: demoLayoutID, Name: "Demo Floor", OwnerSessionID: demoSessionID}
	rooms := []store.Room{
		{Name: "Living Room", X: 0, Y: 0, Width: 420, Height: 300},
		{Name: "Hallway", X: 420, Y: 0, Width: 160, Height: 300},
	}
	if err := repo.CreateLayoutWithRooms(ctx, layout, rooms); err != nil {
		return inserted, err
	}
	inserted += 1 + len(rooms)

	device := &store.Device{
		ID:                    "light_living",
		X:                     120,
		Y:                     140,
		Type:                  "light",
		Label:                 "Ceiling Light",
		Name:                  "Living Room Light",
		DeviceRad:             40,
		Connectivity:          []string{"zigbee"},
		CompatibleSensors:     []string{"motion"},
		InterferenceProtocols: []string{},
		ConnectedSensorIDs:    []string{"occupancy_living"},
		InterferenceIDs:       []string{},
		Floor:                 demoLayoutID,
	}
	if created, err := repo.PutDevice(ctx, device); err != nil {
		return inserted, err
	} else if created {
		inserted++
	}

	sensor := &store.Sensor{
		ID:                 "occupancy_living",
		Type:               "motion",
		Name:               "Living Room Occupancy",
		X:                  200,
		Y:                  150,
		SensorRad:          60,
		Connectivity:       []string{"zigbee"},
		ConnectedDeviceIDs: []string{"light_living"},
		InterferenceIDs:    []string{},
		Floor:              demoLayoutID,
	}
	if created, err := repo.PutSensor(ctx, sensor); err != nil {
		return inserted, err
	} else if created {
		inserted++
	}

	return inserted, nil
}

// Package ingest lets a headless simulator feed the store over MQTT
// instead of HTTP. Simulation events arrive on a per-layout topic and are
// written through the same repo as the POST endpoints; audit log lines
// arrive on a single shared topic.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"floorplan-service/internal/mqtt"
	"floorplan-service/internal/realtime"
	"floorplan-service/internal/store"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	simEventPrefix = "floorplan/sim/event/"
	auditTopic     = "floorplan/audit/log"
)

type Runner struct {
	repo *store.Repo
	cli  *mqtt.Client
	hub  *realtime.Hub
}

func New(repo *store.Repo, hub *realtime.Hub) *Runner {
	return &Runner{repo: repo, hub: hub}
}

// Start connects to the broker and subscribes. The runner stops when ctx is
// cancelled.
func Start(ctx context.Context, repo *store.Repo, brokerURL string, hub *realtime.Hub) (*Runner, error) {
	if strings.TrimSpace(brokerURL) == "" {
		brokerURL = "tcp://mosquitto:1883"
	}
	r := New(repo, hub)
	cli, err := mqtt.New(brokerURL, "floorplan-ingest")
	if err != nil {
		return nil, err
	}
	r.cli = cli

	h := func(_ paho.Client, msg mqtt.Message) {
		r.handleMessage(ctx, msg.Topic(), msg.Payload())
	}
	if err := cli.Subscribe(simEventPrefix+"#", h); err != nil {
		cli.Disconnect(250)
		return nil, err
	}
	if err := cli.Subscribe(auditTopic, h); err != nil {
		cli.Disconnect(250)
		return nil, err
	}

	go func() {
		<-ctx.Done()
		cli.Disconnect(250)
	}()

	return r, nil
}

// simEventMessage mirrors the POST /layouts/{id}/events body.
type simEventMessage struct {
	ID        string   `json:"id"`
	NodeID    string   `json:"nodeId"`
	NodeType  string   `json:"nodeType"`
	EventType string   `json:"eventType"`
	Message   string   `json:"message"`
	Timestamp *float64 `json:"timestamp"`
}

// auditMessage mirrors the POST /logs body.
type auditMessage struct {
	Timestamp      *string `json:"timestamp"`
	Event          string  `json:"event"`
	SensorID       *string `json:"sensor_id"`
	TargetDeviceID *string `json:"target_device_id"`
	OwnerSessionID *string `json:"owner_session_id"`
	Room           *string `json:"room"`
	FloorID        *string `json:"floor-id"`
	Effect         *string `json:"effect"`
	UserAction     bool    `json:"user_action"`
}

func (r *Runner) handleMessage(ctx context.Context, topic string, payload []byte) {
	if len(payload) == 0 {
		return
	}
	msgCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if strings.HasPrefix(topic, simEventPrefix) {
		layoutID := strings.Trim(strings.TrimPrefix(topic, simEventPrefix), "/")
		if layoutID == "" {
			slog.Warn("sim ingest missing layout id", "topic", topic)
			return
		}
		r.handleSimEvent(msgCtx, layoutID, payload)
		return
	}
	if topic == auditTopic {
		r.handleAudit(msgCtx, payload)
	}
}

func (r *Runner) handleSimEvent(ctx context.Context, layoutID string, payload []byte) {
	var msg simEventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		slog.Warn("sim ingest invalid json", "layout_id", layoutID, "error", err)
		return
	}
	if msg.NodeID == "" || msg.NodeType == "" || msg.EventType == "" || msg.Message == "" {
		slog.Warn("sim ingest incomplete event", "layout_id", layoutID)
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	ts := time.Now().UTC()
	if msg.Timestamp != nil {
		ts = time.UnixMilli(int64(*msg.Timestamp)).UTC()
	}

	event := &store.SimulationEvent{
		ID:        msg.ID,
		Floor:     layoutID,
		NodeID:    msg.NodeID,
		NodeType:  msg.NodeType,
		EventType: msg.EventType,
		Timestamp: ts,
		Message:   msg.Message,
	}
	created, err := r.repo.PutEvent(ctx, event)
	if err != nil {
		slog.Error("sim ingest db write failed", "layout_id", layoutID, "event_id", msg.ID, "error", err)
		return
	}
	if r.hub != nil {
		verb := "updated"
		if created {
			verb = "created"
		}
		r.hub.Broadcast(realtime.Event{Type: "floorplan.event." + verb, Entity: "event", ID: event.ID})
	}
	slog.Debug("sim event stored", "layout_id", layoutID, "event_id", event.ID)
}

func (r *Runner) handleAudit(ctx context.Context, payload []byte) {
	var msg auditMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		slog.Warn("audit ingest invalid json", "error", err)
		return
	}
	if msg.Event == "" {
		slog.Warn("audit ingest missing event")
		return
	}
	entry := &store.Log{
		Event:          msg.Event,
		SensorID:       msg.SensorID,
		DeviceID:       msg.TargetDeviceID,
		OwnerSessionID: msg.OwnerSessionID,
		Room:           msg.Room,
		FloorID:        msg.FloorID,
		Effect:         msg.Effect,
		UserAction:     msg.UserAction,
	}
	if msg.Timestamp != nil {
		if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(*msg.Timestamp)); err == nil {
			entry.Timestamp = ts.UTC()
		}
	}
	if err := r.repo.AppendLog(ctx, entry); err != nil {
		slog.Error("audit ingest db write failed", "error", err)
		return
	}
	slog.Debug("audit line stored", "event", msg.Event)
}

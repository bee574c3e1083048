package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"floorplan-service/internal/realtime"
	"floorplan-service/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Server struct {
	repo *store.Repo
	hub  *realtime.Hub
}

func NewServer(repo *store.Repo, hub *realtime.Hub) *Server {
	return &Server{repo: repo, hub: hub}
}

func (s *Server) Register(mux *http.ServeMux) {
	r := chi.NewRouter()

	// The editor is a browser client served from its own dev origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	if s.hub != nil {
		r.Get("/ws", s.hub.ServeHTTP)
	}

	r.Get("/layouts", s.handleLayoutsList)
	r.Post("/layouts", s.handleLayoutCreate)
	r.Delete("/layouts/{layout_id}", s.handleLayoutDelete)

	r.Get("/layouts/{layout_id}/devices", s.handleDevicesList)
	r.Post("/layouts/{layout_id}/devices", s.handleDeviceUpsert)
	r.Delete("/layouts/{layout_id}/devices/{device_id}", s.handleDeviceDelete)

	r.Get("/layouts/{layout_id}/sensors", s.handleSensorsList)
	r.Post("/layouts/{layout_id}/sensors", s.handleSensorUpsert)
	r.Delete("/layouts/{layout_id}/sensors/{sensor_id}", s.handleSensorDelete)

	r.Get("/layouts/{layout_id}/persons", s.handlePersonsList)
	r.Post("/layouts/{layout_id}/persons", s.handlePersonUpsert)

	r.Get("/layouts/{layout_id}/events", s.handleEventsList)
	r.Post("/layouts/{layout_id}/events", s.handleEventUpsert)

	r.Post("/session", s.handleSessionCreate)
	r.Get("/session/{session_id}", s.handleSessionGet)

	r.Post("/logs", s.handleLogAppend)

	mux.Handle("/", r)
}

func (s *Server) emit(eventType, entity, id string) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(realtime.Event{Type: eventType, Entity: entity, ID: id})
}

type jsonErr struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonErr{Error: msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func decodeJSON(r *http.Request, dst any) error {
	// Unknown fields are tolerated: the editor re-posts whole entities,
	// including fields the server itself produced.
	return json.NewDecoder(r.Body).Decode(dst)
}

func jsonList(v []string) datatypes.JSONSlice[string] {
	if v == nil {
		v = []string{}
	}
	return datatypes.NewJSONSlice(v)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// parseEpochMillis accepts a JSON number or a numeric string counting
// milliseconds since the Unix epoch. NaN, infinities and magnitudes
// beyond the int64 millisecond range are rejected; the float-to-int
// conversion would otherwise be undefined.
func parseEpochMillis(v any) (time.Time, error) {
	var ms float64
	switch t := v.(type) {
	case float64:
		ms = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return time.Time{}, errors.New("Invalid timestamp value")
		}
		ms = parsed
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return time.Time{}, errors.New("Invalid timestamp value")
		}
		ms = parsed
	default:
		return time.Time{}, errors.New("Invalid timestamp value")
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < math.MinInt64 || ms >= math.MaxInt64 {
		return time.Time{}, errors.New("Invalid timestamp value")
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// parseISOTimestamp accepts the timestamp shapes the editor produces:
// RFC 3339, or a bare ISO date-time without zone.
func parseISOTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02",
	} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid isoformat string: %q", raw)
}

// --- Devices ---

type deviceRequest struct {
	ID                    *string  `json:"id"`
	X                     *float64 `json:"x"`
	Y                     *float64 `json:"y"`
	Type                  *string  `json:"type"`
	Label                 *string  `json:"label"`
	Name                  *string  `json:"name"`
	DeviceRad             *float64 `json:"device_rad"`
	Connectivity          []string `json:"connectivity"`
	CompatibleSensors     []string `json:"compatibleSensors"`
	InterferenceProtocols []string `json:"interferenceProtocols"`
	ConnectedSensorIDs    []string `json:"connectedSensorIds"`
	InterferenceIDs       []string `json:"interferenceIds"`
}

func (req *deviceRequest) missingFields() []string {
	var missing []string
	if req.X == nil {
		missing = append(missing, "x")
	}
	if req.Y == nil {
		missing = append(missing, "y")
	}
	if req.Type == nil {
		missing = append(missing, "type")
	}
	if req.Label == nil {
		missing = append(missing, "label")
	}
	if req.Name == nil {
		missing = append(missing, "name")
	}
	if req.DeviceRad == nil {
		missing = append(missing, "device_rad")
	}
	return missing
}

func (s *Server) handleDevicesList(w http.ResponseWriter, r *http.Request) {
	layoutID := chi.URLParam(r, "layout_id")
	rows, err := s.repo.ListDevices(r.Context(), layoutID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleDeviceUpsert(w http.ResponseWriter, r *http.Request) {
	layoutID := chi.URLParam(r, "layout_id")
	var req deviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ID == nil || strings.TrimSpace(*req.ID) == "" {
		writeError(w, http.StatusBadRequest, "Device ID is required")
		return
	}
	if missing := req.missingFields(); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return
	}

	// Absent list fields reset to empty on update as well; the editor
	// always sends the whole device.
	dev := &store.Device{
		ID:                    strings.TrimSpace(*req.ID),
		X:                     *req.X,
		Y:                     *req.Y,
		Type:                  *req.Type,
		Label:                 *req.Label,
		Name:                  *req.Name,
		DeviceRad:             *req.DeviceRad,
		Connectivity:          jsonList(req.Connectivity),
		CompatibleSensors:     jsonList(req.CompatibleSensors),
		InterferenceProtocols: jsonList(req.InterferenceProtocols),
		ConnectedSensorIDs:    jsonList(req.ConnectedSensorIDs),
		InterferenceIDs:       jsonList(req.InterferenceIDs),
		Floor:                 layoutID,
	}
	created, err := s.repo.PutDevice(r.Context(), dev)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if created {
		s.emit("floorplan.device.created", "device", dev.ID)
		writeMessage(w, http.StatusCreated, "Device added")
		return
	}
	s.emit("floorplan.device.updated", "device", dev.ID)
	writeMessage(w, http.StatusOK, "Device updated")
}

func (s *Server) handleDeviceDelete(w http.ResponseWriter, r *http.Request) {
	layoutID := chi.URLParam(r, "layout_id")
	deviceID := chi.URLParam(r, "device_id")
	if err := s.repo.DeleteDevice(r.Context(), layoutID, deviceID); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.emit("floorplan.device.deleted", "device", deviceID)
	writeMessage(w, http.StatusOK, fmt.Sprintf("Device '%s' deleted from layout '%s'.", deviceID, layoutID))
}

// --- Sensors ---

type sensorRequest struct {
	ID                 *string  `json:"id"`
	Type               *string  `json:"type"`
	Name               *string  `json:"name"`
	X                  *float64 `json:"x"`
	Y                  *float64 `json:"y"`
	SensorRad          *float64 `json:"sensor_rad"`
	Connectivity       []string `json:"connectivity"`
	ConnectedDeviceIDs []string `json:"connectedDeviceIds"`
	InterferenceIDs    []string `json:"interferenceIds"`
}

func (req *sensorRequest) missingFields() []string {
	var missing []string
	if req.Type == nil {
		missing = append(missing, "type")
	}
	if req.Name == nil {
		missing = append(missing, "name")
	}
	if req.X == nil {
		missing = append(missing, "x")
	}
	if req.Y == nil {
		missing = append(missing, "y")
	}
	if req.SensorRad == nil {
		missing = append(missing, "sensor_rad")
	}
	return missing
}

// The sensor list is deliberately narrowed to motion sensors; the
// simulator only replays motion on retrieval.
const listedSensorType = "motion"

func (s *Server) handleSensorsList(w http.ResponseWriter, r *http.Request) {
	layoutID := chi.URLParam(r, "layout_id")
	rows, err := s.repo.ListSensors(r.Context(), layoutID, listedSensorType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleSensorUpsert(w http.ResponseWriter, r *http.Request) {
	layoutID := chi.URLParam(r, "layout_id")
	var req sensorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ID == nil || strings.TrimSpace(*req.ID) == "" {
		writeError(w, http.StatusBadRequest, "Sensor ID is required")
		return
	}
	id := strings.TrimSpace(*req.ID)

	var sensor *store.Sensor
	existing, err := s.repo.GetSensor(r.Context(), id)
	switch {
	case isNotFound(err):
		if missing := req.missingFields(); len(missing) > 0 {
			writeError(w, http.StatusInternalServerError, "missing required fields: "+strings.Join(missing, ", "))
			return
		}
		sensor = &store.Sensor{
			ID:                 id,
			Type:               *req.Type,
			Name:               *req.Name,
			X:                  *req.X,
			Y:                  *req.Y,
			SensorRad:          *req.SensorRad,
			Connectivity:       jsonList(req.Connectivity),
			ConnectedDeviceIDs: jsonList(req.ConnectedDeviceIDs),
			InterferenceIDs:    jsonList(req.InterferenceIDs),
		}
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	default:
		// Partial update: absent fields keep their stored values.
		sensor = existing
		if req.Type != nil {
			sensor.Type = *req.Type
		}
		if req.Name != nil {
			sensor.Name = *req.Name
		}
		if req.X != nil {
			sensor.X = *req.X
		}
		if req.Y != nil {
			sensor.Y = *req.Y
		}
		if req.SensorRad != nil {
			sensor.SensorRad = *req.SensorRad
		}
		if req.Connectivity != nil {
			sensor.Connectivity = jsonList(req.Connectivity)
		}
		if req.ConnectedDeviceIDs != nil {
			sensor.ConnectedDeviceIDs = jsonList(req.ConnectedDeviceIDs)
		}
		if req.InterferenceIDs != nil {
			sensor.InterferenceIDs = jsonList(req.InterferenceIDs)
		}
	}
	sensor.Floor = layoutID

	created, err := s.repo.PutSensor(r.Context(), sensor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if created {
		s.emit("floorplan.sensor.created", "sensor", sensor.ID)
	} else {
		s.emit("floorplan.sensor.updated", "sensor", sensor.ID)
	}
	// Always 200, even on insert; the editor does not distinguish.
	writeMessage(w, http.StatusOK, "Sensor saved successfully")
}

func (s *Server) handleSensorDelete(w http.ResponseWriter, r *http.Request) {
	layoutID := chi.URLParam(r, "layout_id")
	sensorID := chi.URLParam(r, "sensor_id")
	if err := s.repo.DeleteSensor(r.Context(), layoutID, sensorID); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Sensor not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.emit("floorplan.sensor.deleted", "sensor", sensorID)
	writeMessage(w, http.StatusOK, fmt.Sprintf("Sensor '%s' deleted successfully.", sensorID))
}

// --- Persons ---

type personRequest struct {
	ID             *string         `json:"id"`
	Name           *string         `json:"name"`
	Path           json.RawMessage `json:"path"`
	CurrentIndex   *int            `json:"currentIndex"`
	Direction      *int            `json:"direction"`
	Color          *string         `json:"color"`
	AnimationSpeed *float64        `json:"animationSpeed"`
	Progress       *float64        `json:"progress"`
}

func (s *Server) handlePersonsList(w http.ResponseWriter, r *http.Request) {
	layoutID := chi.URLParam(r, "layout_id")
	rows, err := s.repo.ListPersons(r.Context(), layoutID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handlePersonUpsert(w http.ResponseWriter, r *http.Request) {
	layoutID := chi.URLParam(r, "layout_id")
	var req personRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ID == nil || strings.TrimSpace(*req.ID) == "" {
		writeError(w, http.StatusBadRequest, "Person ID is required")
		return
	}
	if req.Name == nil {
		writeError(w, http.StatusBadRequest, "Person name is required")
		return
	}
	if req.AnimationSpeed == nil {
		writeError(w, http.StatusBadRequest, "animationSpeed is required")
		return
	}
	id := strings.TrimSpace(*req.ID)

	var person *store.Person
	existing, err := s.repo.GetPerson(r.Context(), id)
	switch {
	case isNotFound(err):
		person = &store.Person{
			ID:             id,
			Name:           *req.Name,
			Path:           datatypes.JSON("[]"),
			CurrentIndex:   0,
			Direction:      1,
			Color:          req.Color,
			AnimationSpeed: *req.AnimationSpeed,
			Progress:       req.Progress,
		}
		if req.Path != nil {
			person.Path = datatypes.JSON(req.Path)
		}
		if req.CurrentIndex != nil {
			person.CurrentIndex = *req.CurrentIndex
		}
		if req.Direction != nil {
			person.Direction = *req.Direction
		}
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	default:
		person = existing
		person.Name = *req.Name
		person.AnimationSpeed = *req.AnimationSpeed
		if req.Path != nil {
			person.Path = datatypes.JSON(req.Path)
		}
		if req.CurrentIndex != nil {
			person.CurrentIndex = *req.CurrentIndex
		}
		if req.Direction != nil {
			person.Direction = *req.Direction
		}
		if req.Color != nil {
			person.Color = req.Color
		}
		if req.Progress != nil {
			person.Progress = req.Progress
		}
	}
	person.Floor = layoutID

	created, err := s.repo.PutPerson(r.Context(), person)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if created {
		s.emit("floorplan.person.created", "person", person.ID)
		writeMessage(w, http.StatusCreated, "Person added")
		return
	}
	s.emit("floorplan.person.updated", "person", person.ID)
	writeMessage(w, http.StatusOK, "Person updated")
}

// --- Simulation events ---

type eventRequest struct {
	ID        *string `json:"id"`
	NodeID    *string `json:"nodeId"`
	NodeType  *string `json:"nodeType"`
	EventType *string `json:"eventType"`
	Message   *string `json:"message"`
	Timestamp any     `json:"timestamp"`
}

type eventView struct {
	ID           string    `json:"id"`
	Floor        string    `json:"floor"`
	NodeID       string    `json:"nodeId"`
	NodeType     string    `json:"nodeType"`
	EventType    string    `json:"eventType"`
	Timestamp    int64     `json:"timestamp"`
	Message      string    `json:"message"`
	DateCreated  time.Time `json:"date_created"`
	DateModified time.Time `json:"date_modified"`
}

func newEventView(e store.SimulationEvent) eventView {
	return eventView{
		ID:           e.ID,
		Floor:        e.Floor,
		NodeID:       e.NodeID,
		NodeType:     e.NodeType,
		EventType:    e.EventType,
		Timestamp:    e.TimestampMillis(),
		Message:      e.Message,
		DateCreated:  e.DateCreated,
		DateModified: e.DateModified,
	}
}

func (s *Server) handleEventsList(w http.ResponseWriter, r *http.Request) {
	layoutID := chi.URLParam(r, "layout_id")
	rows, err := s.repo.ListEvents(r.Context(), layoutID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]eventView, 0, len(rows))
	for _, row := range rows {
		out = append(out, newEventView(row))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEventUpsert(w http.ResponseWriter, r *http.Request) {
	layoutID := chi.URLParam(r, "layout_id")
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ID == nil || strings.TrimSpace(*req.ID) == "" {
		writeError(w, http.StatusBadRequest, "Event ID is required")
		return
	}
	for field, v := range map[string]*string{
		"nodeId":    req.NodeID,
		"nodeType":  req.NodeType,
		"eventType": req.EventType,
		"message":   req.Message,
	} {
		if v == nil {
			writeError(w, http.StatusBadRequest, field+" is required")
			return
		}
	}

	eventTime := time.Now().UTC()
	if req.Timestamp != nil {
		parsed, err := parseEpochMillis(req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		eventTime = parsed
	}

	event := &store.SimulationEvent{
		ID:        strings.TrimSpace(*req.ID),
		Floor:     layoutID,
		NodeID:    *req.NodeID,
		NodeType:  *req.NodeType,
		EventType: *req.EventType,
		Timestamp: eventTime,
		Message:   *req.Message,
	}
	created, err := s.repo.PutEvent(r.Context(), event)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if created {
		s.emit("floorplan.event.created", "event", event.ID)
		writeMessage(w, http.StatusCreated, "Event added")
		return
	}
	s.emit("floorplan.event.updated", "event", event.ID)
	writeMessage(w, http.StatusOK, "Event updated")
}

// --- Sessions ---

type sessionRequest struct {
	Name *string `json:"name"`
}

type sessionView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	session := &store.Session{Name: *req.Name}
	if err := s.repo.CreateSession(r.Context(), session); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.emit("floorplan.session.created", "session", session.ID)
	writeJSON(w, http.StatusCreated, sessionView{ID: session.ID, Name: session.Name})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	session, err := s.repo.GetSession(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionView{ID: session.ID, Name: session.Name})
}

// --- Layouts ---

type layoutRoomRequest struct {
	ID     *string  `json:"id"`
	Name   *string  `json:"name"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

func (req *layoutRoomRequest) missingFields() []string {
	var missing []string
	if req.Name == nil {
		missing = append(missing, "name")
	}
	if req.X == nil {
		missing = append(missing, "x")
	}
	if req.Y == nil {
		missing = append(missing, "y")
	}
	if req.Width == nil {
		missing = append(missing, "width")
	}
	if req.Height == nil {
		missing = append(missing, "height")
	}
	return missing
}

type layoutCreateRequest struct {
	ID             *string             `json:"id"`
	Name           *string             `json:"name"`
	OwnerSessionID *string             `json:"owner_session_id"`
	Rooms          []layoutRoomRequest `json:"rooms"`
}

type roomView struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type layoutView struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	OwnerSessionID string     `json:"owner_session_id"`
	Rooms          []roomView `json:"rooms"`
}

func (s *Server) handleLayoutCreate(w http.ResponseWriter, r *http.Request) {
	var req layoutCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.OwnerSessionID == nil || strings.TrimSpace(*req.OwnerSessionID) == "" {
		writeError(w, http.StatusBadRequest, "owner_session_id is required")
		return
	}

	rooms := make([]store.Room, 0, len(req.Rooms))
	for i, roomReq := range req.Rooms {
		if missing := roomReq.missingFields(); len(missing) > 0 {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("rooms[%d]: missing required fields: %s", i, strings.Join(missing, ", ")))
			return
		}
		room := store.Room{
			Name:   *roomReq.Name,
			X:      *roomReq.X,
			Y:      *roomReq.Y,
			Width:  *roomReq.Width,
			Height: *roomReq.Height,
		}
		if roomReq.ID != nil {
			room.ID = strings.TrimSpace(*roomReq.ID)
		}
		rooms = append(rooms, room)
	}

	layout := &store.Layout{Name: *req.Name, OwnerSessionID: *req.OwnerSessionID}
	if req.ID != nil && strings.TrimSpace(*req.ID) != "" {
		layout.ID = strings.TrimSpace(*req.ID)
	}
	if err := s.repo.CreateLayoutWithRooms(r.Context(), layout, rooms); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.emit("floorplan.layout.created", "layout", layout.ID)
	writeJSON(w, http.StatusCreated, map[string]string{
		"message":   "Layout and rooms created successfully",
		"layout_id": layout.ID,
	})
}

func (s *Server) handleLayoutsList(w http.ResponseWriter, r *http.Request) {
	layouts, err := s.repo.ListLayouts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]layoutView, 0, len(layouts))
	for _, layout := range layouts {
		view := layoutView{
			ID:             layout.ID,
			Name:           layout.Name,
			OwnerSessionID: layout.OwnerSessionID,
			Rooms:          make([]roomView, 0, len(layout.Rooms)),
		}
		for _, room := range layout.Rooms {
			view.Rooms = append(view.Rooms, roomView{
				ID:     room.ID,
				Name:   room.Name,
				X:      room.X,
				Y:      room.Y,
				Width:  room.Width,
				Height: room.Height,
			})
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLayoutDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "layout_id")
	if err := s.repo.DeleteLayout(r.Context(), id); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Layout not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.emit("floorplan.layout.deleted", "layout", id)
	writeMessage(w, http.StatusOK, fmt.Sprintf("Layout %s deleted successfully", id))
}

// --- Audit log ---

type logRequest struct {
	Timestamp      *string `json:"timestamp"`
	Event          *string `json:"event"`
	SensorID       *string `json:"sensor_id"`
	TargetDeviceID *string `json:"target_device_id"`
	OwnerSessionID *string `json:"owner_session_id"`
	Room           *string `json:"room"`
	FloorID        *string `json:"floor-id"`
	Effect         *string `json:"effect"`
	UserAction     *bool   `json:"user_action"`
}

func (s *Server) handleLogAppend(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, "invalid json")
		return
	}
	// A missing event is surfaced as a store-level failure, not a 400.
	// Known inconsistency with every other endpoint; callers depend on it.
	if req.Event == nil {
		writeError(w, http.StatusInternalServerError, "event is required")
		return
	}
	entry := &store.Log{
		Event:          *req.Event,
		SensorID:       req.SensorID,
		DeviceID:       req.TargetDeviceID,
		OwnerSessionID: req.OwnerSessionID,
		Room:           req.Room,
		FloorID:        req.FloorID,
		Effect:         req.Effect,
	}
	if req.UserAction != nil {
		entry.UserAction = *req.UserAction
	}
	if req.Timestamp != nil {
		ts, err := parseISOTimestamp(*req.Timestamp)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		entry.Timestamp = ts
	}
	if err := s.repo.AppendLog(r.Context(), entry); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeMessage(w, http.StatusCreated, "Event logged successfully")
}

// Package server exposes the polled device over HTTP: decoded values, writes
// to control points and a websocket stream of updates.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/anicoll/solax-http-integration/internal/pkg/database"
	"github.com/anicoll/solax-http-integration/internal/pkg/model"
	"github.com/anicoll/solax-http-integration/pkg/sockets"
)

const maxBodyBytes = 1 << 16

var (
	errNotFound    = errors.New("unknown key")
	errReadOnly    = errors.New("key is read-only")
	errMissingBody = errors.New("value is required")
)

type device interface {
	Identity() model.Identity
	Readings() []model.Reading
	Descriptor(key string) (*model.Descriptor, bool)
	Get(d *model.Descriptor) model.Value
	RequestRefresh()
	WriteRegister(ctx context.Context, d *model.Descriptor, value float64, force bool) error
}

type store interface {
	GetLatestValues(ctx context.Context, identifier string) (database.LatestValues, error)
	GetDevices(ctx context.Context) ([]database.Device, error)
}

type server struct {
	device  device
	store   store
	metrics http.Handler
	secret  []byte
	hub     *sockets.Hub
	logger  *zap.Logger
}

func New(d device, options ...Option) *server {
	s := &server{device: d, logger: zap.L()}
	for _, opt := range options {
		opt(s)
	}
	s.hub = sockets.New(
		sockets.OnConnected(s.greet),
		sockets.OnError(func(err error) { s.logger.Debug("websocket client error", zap.Error(err)) }),
	)
	return s
}

// Handler routes the API. Write endpoints require a bearer token when a
// secret is configured.
func (s *server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/identity", s.GetIdentity)
	mux.HandleFunc("GET /api/sensors", s.GetSensors)
	mux.HandleFunc("GET /api/sensors/{key}", s.GetSensor)
	mux.HandleFunc("POST /api/sensors/{key}", s.requireToken(s.PostSensor))
	mux.HandleFunc("POST /api/refresh", s.requireToken(s.PostRefresh))
	mux.Handle("GET /api/ws", s.hub)
	if s.store != nil {
		mux.HandleFunc("GET /api/latest", s.GetLatest)
		mux.HandleFunc("GET /api/devices", s.GetDevices)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return LoggingMiddleware(mux)
}

// Close disconnects websocket clients.
func (s *server) Close() error {
	return s.hub.Close()
}

type identity struct {
	Identifier string `json:"identifier"`
	model.Identity
}

type sensor struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Kind        model.Kind     `json:"kind"`
	Value       model.Value    `json:"value"`
	Label       string         `json:"label,omitempty"`
	Unit        string         `json:"unit_of_measurement,omitempty"`
	DeviceClass string         `json:"device_class,omitempty"`
	StateClass  string         `json:"state_class,omitempty"`
	Min         *float64       `json:"min,omitempty"`
	Max         *float64       `json:"max,omitempty"`
	Options     map[int]string `json:"options,omitempty"`
}

func newSensor(d *model.Descriptor, v model.Value) sensor {
	out := sensor{
		Key:         d.Key,
		Name:        d.Name,
		Kind:        d.Kind,
		Value:       v,
		Unit:        d.Unit,
		DeviceClass: d.DeviceClass,
		StateClass:  d.StateClass,
		Options:     d.Options,
	}
	if v.Available() {
		if label, ok := d.Option(int(v.Int64())); ok {
			out.Label = label
		}
	}
	if d.Limits != nil {
		low, high := d.Limits.Min, d.Limits.Max
		out.Min, out.Max = &low, &high
	}
	return out
}

func (s *server) sensors() []sensor {
	readings := s.device.Readings()
	out := make([]sensor, 0, len(readings))
	for _, r := range readings {
		out = append(out, newSensor(r.Descriptor, r.Value))
	}
	return out
}

func (s *server) GetIdentity(w http.ResponseWriter, r *http.Request) {
	id := s.device.Identity()
	writeJSON(w, http.StatusOK, identity{Identifier: model.Slugify(id.Identifier()), Identity: id})
}

func (s *server) GetSensors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sensors())
}

func (s *server) GetSensor(w http.ResponseWriter, r *http.Request) {
	d, ok := s.device.Descriptor(r.PathValue("key"))
	if !ok {
		handleError(w, http.StatusNotFound, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newSensor(d, s.device.Get(d)))
}

type writeRequest struct {
	Value *float64 `json:"value"`
	Force bool     `json:"force"`
}

func (s *server) PostSensor(w http.ResponseWriter, r *http.Request) {
	d, ok := s.device.Descriptor(r.PathValue("key"))
	if !ok {
		handleError(w, http.StatusNotFound, errNotFound)
		return
	}
	if !d.Kind.Writable() {
		handleError(w, http.StatusMethodNotAllowed, errReadOnly)
		return
	}
	req, err := unmarshalPayload[writeRequest](w, r)
	switch {
	case errors.Is(err, io.EOF):
		req = &writeRequest{}
	case err != nil:
		handleError(w, http.StatusBadRequest, err)
		return
	}
	value := float64(d.PressValue)
	if d.Kind != model.KindButton {
		if req.Value == nil {
			handleError(w, http.StatusBadRequest, errMissingBody)
			return
		}
		value = *req.Value
	}
	if err := validate(d, value); err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.device.WriteRegister(r.Context(), d, value, req.Force); err != nil {
		s.logger.Error("write failed", zap.String("key", d.Key), zap.Error(err))
		handleError(w, http.StatusBadGateway, err)
		return
	}
	s.logger.Info("value written", zap.String("key", d.Key), zap.Float64("value", value), zap.Bool("force", req.Force))
	writeJSON(w, http.StatusOK, newSensor(d, s.device.Get(d)))
}

func (s *server) PostRefresh(w http.ResponseWriter, r *http.Request) {
	s.device.RequestRefresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) GetLatest(w http.ResponseWriter, r *http.Request) {
	values, err := s.store.GetLatestValues(r.Context(), r.URL.Query().Get("identifier"))
	if err != nil {
		s.logger.Error("failed to read latest values", zap.Error(err))
		handleError(w, http.StatusInternalServerError, err)
		return
	}
	if values == nil {
		values = database.LatestValues{}
	}
	writeJSON(w, http.StatusOK, values)
}

func (s *server) GetDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.store.GetDevices(r.Context())
	if err != nil {
		s.logger.Error("failed to read devices", zap.Error(err))
		handleError(w, http.StatusInternalServerError, err)
		return
	}
	if devices == nil {
		devices = []database.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func validate(d *model.Descriptor, value float64) error {
	switch d.Kind {
	case model.KindSelect:
		if _, ok := d.Option(int(value)); !ok || float64(int(value)) != value {
			return fmt.Errorf("%v is not an option of %s", value, d.Key)
		}
	case model.KindNumber:
		if d.Limits != nil && (value < d.Limits.Min || value > d.Limits.Max) {
			return fmt.Errorf("%v is outside [%v, %v]", value, d.Limits.Min, d.Limits.Max)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func handleError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}

func unmarshalPayload[T any](w http.ResponseWriter, r *http.Request) (*T, error) {
	var out T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

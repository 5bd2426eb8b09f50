package server

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
	"github.com/anicoll/solax-http-integration/pkg/sockets"
)

const (
	msgSensors = "sensors"
	msgState   = "state"
	msgDevice  = "device"
)

type message struct {
	Type    string         `json:"type"`
	Device  *model.Device  `json:"device,omitempty"`
	Sensors []sensor       `json:"sensors,omitempty"`
	Records []model.Record `json:"records,omitempty"`
}

// greet sends a new websocket client every current value.
func (s *server) greet(c sockets.Connection) {
	b, err := json.Marshal(message{Type: msgSensors, Sensors: s.sensors()})
	if err != nil {
		s.logger.Error("failed to marshal sensors", zap.Error(err))
		return
	}
	if err := c.Send(b); err != nil {
		s.logger.Debug("failed to greet websocket client", zap.Error(err))
	}
}

// Write streams changed values to websocket clients.
func (s *server) Write(_ context.Context, records []model.Record) error {
	return s.broadcast(message{Type: msgState, Records: records})
}

func (s *server) RegisterDevice(_ context.Context, device model.Device, _ []*model.Descriptor) error {
	return s.broadcast(message{Type: msgDevice, Device: &device})
}

func (s *server) broadcast(m message) error {
	if s.hub.Len() == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.hub.Broadcast(b)
	return nil
}

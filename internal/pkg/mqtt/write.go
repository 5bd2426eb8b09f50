package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
)

type statePayload struct {
	Value *float64 `json:"value"`
	Label string   `json:"label,omitempty"`
	Unit  string   `json:"unit_of_measurement,omitempty"`
}

func (s *service) Write(ctx context.Context, records []model.Record) error {
	for _, r := range records {
		if err := s.PublishData(r); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDevice publishes a retained discovery config for every sensor of
// the device. Buttons are driven through the HTTP API and get none.
func (s *service) RegisterDevice(ctx context.Context, device model.Device, descriptors []*model.Descriptor) error {
	if _, exists := s.configured.Load(device.ID); exists {
		return nil
	}
	for _, d := range descriptors {
		if d.Kind == model.KindButton {
			continue
		}
		slug := d.Slug()
		payload, err := json.Marshal(registerMsg(device, d, slug))
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("%s/sensor/%s/%s/config", discoveryPrefix, device.ID, slug)
		if err := s.wait(s.client.Publish(topic, 1, true, payload)); err != nil {
			return fmt.Errorf("register %s: %w", d.Key, err)
		}
	}
	s.configured.Store(device.ID, struct{}{})
	s.logger.Info("registered device", zap.String("device", device.ID), zap.Int("sensors", len(descriptors)))
	return nil
}

func (s *service) PublishData(r model.Record) error {
	topic := fmt.Sprintf("%s/sensor/%s/%s/state", discoveryPrefix, r.Identifier, r.Slug)
	publishData, err := json.Marshal(statePayload{
		Value: r.Value.Ptr(),
		Label: r.Label,
		Unit:  r.Unit,
	})
	if err != nil {
		return err
	}
	return s.wait(s.client.Publish(topic, 0, false, publishData))
}

func registerMsg(device model.Device, d *model.Descriptor, slug string) model.RegisterMessage {
	name := fmt.Sprintf("%s %s", device.Model, device.SerialNumber)
	tmpl := "{{ value_json.value }}"
	if len(d.Options) > 0 {
		tmpl = "{{ value_json.label }}"
	}
	return model.RegisterMessage{
		Tilda:       fmt.Sprintf("%s/sensor/%s/%s", discoveryPrefix, device.ID, slug),
		Name:        d.Name,
		ID:          device.ID + "_" + slug,
		StateTopic:  "~/state",
		Unit:        d.Unit,
		DeviceClass: d.DeviceClass,
		StateClass:  d.StateClass,
		ValueTmpl:   tmpl,
		Device: model.RegisterDevice{
			Name:         name,
			Identifiers:  []string{device.ID},
			Model:        device.Model,
			Manufacturer: "SolaX Power",
			SwVersion:    device.FirmwareVersion,
			HwVersion:    device.HardwareVersion,
		},
	}
}

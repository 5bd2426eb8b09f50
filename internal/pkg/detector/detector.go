// Package detector decides which device model sits behind the endpoint.
package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
	"github.com/anicoll/solax-http-integration/internal/pkg/plugin"
)

var ErrNoResponse = errors.New("unable to read data from HTTP endpoint")

// DetectionError is returned when neither the serial pattern nor the runtime
// type resolves to a known device model.
type DetectionError struct {
	Serial      string
	RuntimeType string
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("unknown inverter type: serial=%s runtime_type=%s", e.Serial, e.RuntimeType)
}

type inverterFactory func(payload model.Payload, opts plugin.Options) plugin.Plugin

func newInverterG4(payload model.Payload, opts plugin.Options) plugin.Plugin {
	return plugin.NewInverterG4(payload, opts)
}

// inverterFactories maps runtime type codes to constructors.
var inverterFactories = lo.SliceToMap(plugin.InverterG4Types, func(code int) (int, inverterFactory) {
	return code, newInverterG4
})

// DetermineType decodes the charger bit flags embedded in a serial. It
// returns 0 when the serial does not belong to a charger.
func DetermineType(serial string) model.DeviceType {
	var t model.DeviceType
	switch {
	case strings.HasPrefix(serial, "C"):
		switch at(serial, 4) {
		case '0':
			t |= model.V10
		case '1':
			t |= model.V11
		}
		switch at(serial, 1) {
		case '1':
			t |= model.X1
		case '3':
			t |= model.X3
		}
		if len(serial) >= 4 {
			switch serial[2:4] {
			case "07":
				t |= model.Pow7
			case "11":
				t |= model.Pow11
			case "22":
				t |= model.Pow22
			}
		}
	case strings.HasPrefix(serial, "50"):
		t = model.V20
		switch at(serial, 2) {
		case '3':
			t |= model.X3
		case '2':
			t |= model.X1
		}
		switch at(serial, 4) {
		case 'B':
			t |= model.Pow11
		case 'M':
			t |= model.Pow22
		case '7':
			t |= model.Pow7
		}
	}
	return t
}

func at(s string, i int) byte {
	if i >= len(s) {
		return 0
	}
	return s[i]
}

// Detect instantiates the device model for an initial realtime payload.
// Charger serials win over the runtime type code.
func Detect(payload model.Payload, opts plugin.Options) (plugin.Plugin, error) {
	logger := zap.L()
	info := payload.Information()
	serial := info.String(2)

	if serial != "" {
		logger.Info("trying to determine device type from serial", zap.String("serial", serial))
	}
	t := DetermineType(serial)
	switch {
	case t.Has(model.V10 | model.V11):
		logger.Info("detected charger", zap.String("serial", serial), zap.Stringer("device_type", t))
		return plugin.NewChargerG1(serial, t, payload, opts), nil
	case t.Has(model.V20):
		logger.Info("detected charger", zap.String("serial", serial), zap.Stringer("device_type", t))
		return plugin.NewChargerG2(serial, t, payload, opts), nil
	}

	if code, ok := payload.RuntimeType(); ok {
		if factory, ok := inverterFactories[code]; ok {
			logger.Info("detected inverter via runtime type", zap.Int("runtime_type", code))
			return factory(payload, opts), nil
		}
	}

	return nil, &DetectionError{Serial: serial, RuntimeType: payload.RawType()}
}

// RealtimeReader is the single read Probe needs.
type RealtimeReader interface {
	ReadRealtime(ctx context.Context) (model.Payload, error)
}

// Probe performs the bring-up read and detects the device model from it.
func Probe(ctx context.Context, r RealtimeReader, opts plugin.Options) (plugin.Plugin, error) {
	payload, err := r.ReadRealtime(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	if len(payload) == 0 {
		return nil, ErrNoResponse
	}
	return Detect(payload, opts)
}

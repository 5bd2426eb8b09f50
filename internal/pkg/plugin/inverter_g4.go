package plugin

import (
	"github.com/anicoll/solax-http-integration/internal/pkg/decoder"
	"github.com/anicoll/solax-http-integration/internal/pkg/model"
)

const (
	runtimeTypeBoostG4 = 18
	runtimeTypeMiniG4  = 22
)

// InverterG4Types are the runtime type codes handled by InverterG4.
var InverterG4Types = []int{runtimeTypeBoostG4, runtimeTypeMiniG4}

var inverterG4Models = map[int]string{
	runtimeTypeBoostG4: "X1 Boost G4",
	runtimeTypeMiniG4:  "X1 Mini G4",
}

const genericInverterModel = "SolaX Inverter"

var inverterG4Sensors = []*model.Descriptor{
	{
		Key: "ac_power", Name: "AC Power", Kind: model.KindSensor,
		Source: model.SourceData, Index: 6, Precision: model.Digits(0),
		Unit: "W", DeviceClass: "power", StateClass: "measurement",
	},
	{
		Key: "pv1_power", Name: "PV1 Power", Kind: model.KindSensor,
		Source: model.SourceData, Index: 9, Factor: 0.1, Precision: model.Digits(0),
		Derive: decoder.Product(model.SourceData, 13, 0.1),
		Unit: "W", DeviceClass: "power", StateClass: "measurement",
	},
	{
		Key: "pv2_power", Name: "PV2 Power", Kind: model.KindSensor,
		Source: model.SourceData, Index: 12, Factor: 0.1, Precision: model.Digits(0),
		Derive: decoder.Product(model.SourceData, 14, 0.1),
		Unit: "W", DeviceClass: "power", StateClass: "measurement",
	},
	{
		Key: "grid_power", Name: "Grid Power", Kind: model.KindSensor,
		Source: model.SourceData, Index: 22, Precision: model.Digits(0),
		Signed16: true, InvertSign: true,
		Unit: "W", DeviceClass: "power", StateClass: "measurement",
	},
	{
		Key: "today_energy", Name: "Today Energy", Kind: model.KindSensor,
		Source: model.SourceData, Index: 21, Factor: 0.1, Precision: model.Digits(2),
		Unit: "kWh", DeviceClass: "energy", StateClass: "total_increasing",
	},
	{
		Key: "total_energy", Name: "Total Energy", Kind: model.KindSensor,
		Source: model.SourceData, Index: 55, Factor: 0.1, Precision: model.Digits(2),
		Unit: "kWh", DeviceClass: "energy", StateClass: "total_increasing",
	},
	{
		Key: "pv1_voltage", Name: "PV1 Voltage", Kind: model.KindSensor,
		Source: model.SourceData, Index: 9, Factor: 0.1, Precision: model.Digits(1),
		Unit: "V", DeviceClass: "voltage", StateClass: "measurement",
	},
	{
		Key: "pv1_current", Name: "PV1 Current", Kind: model.KindSensor,
		Source: model.SourceData, Index: 13, Factor: 0.1, Precision: model.Digits(1),
		Unit: "A", DeviceClass: "current", StateClass: "measurement",
	},
	{
		Key: "pv2_voltage", Name: "PV2 Voltage", Kind: model.KindSensor,
		Source: model.SourceData, Index: 12, Factor: 0.1, Precision: model.Digits(1),
		Unit: "V", DeviceClass: "voltage", StateClass: "measurement",
	},
	{
		Key: "pv2_current", Name: "PV2 Current", Kind: model.KindSensor,
		Source: model.SourceData, Index: 14, Factor: 0.1, Precision: model.Digits(1),
		Unit: "A", DeviceClass: "current", StateClass: "measurement",
	},
	{
		Key: "inverter_temperature", Name: "Inverter Temperature", Kind: model.KindSensor,
		Source: model.SourceData, Index: 101, Precision: model.Digits(0),
		Unit: "°C", DeviceClass: "temperature", StateClass: "measurement",
	},
	{
		Key: "runtime_type", Name: "Runtime Type", Kind: model.KindSensor,
		Source: model.SourcePayload, Field: "type", Index: -1,
	},
}

// InverterG4 decodes X1 Boost G4 and X1 Mini G4 inverters. They expose no
// writable registers.
type InverterG4 struct {
	*base
}

// NewInverterG4 builds the plugin and applies the detection payload, so the
// identity is known before the first poll.
func NewInverterG4(payload model.Payload, opts Options) *InverterG4 {
	// every supported runtime type is a single phase unit
	b := newBase("solax_inverter_g4_boostmini", inverterG4Sensors, model.X1, opts)
	b.modelName = func(id model.Identity) string {
		if id.RuntimeType == nil {
			return genericInverterModel
		}
		if name, ok := inverterG4Models[*id.RuntimeType]; ok {
			return name
		}
		return genericInverterModel
	}
	b.initial = payload
	if payload != nil {
		b.applyPayload(payload)
	}
	return &InverterG4{base: b}
}

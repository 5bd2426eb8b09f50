package plugin

import (
	"fmt"

	"github.com/anicoll/solax-http-integration/internal/pkg/decoder"
	"github.com/anicoll/solax-http-integration/internal/pkg/model"
)

const (
	regControlCommand = 0x627
	regChargeCurrent  = 0x628
	regWorkMode       = 0x60D
	regEcoGear        = 0x60E
)

var chargerStates = map[int]string{
	0: "Available",
	1: "Preparing",
	2: "Charging",
	3: "Finishing",
	4: "Faulted",
	5: "Unavailable",
	6: "Reserved",
	7: "SuspendedEV",
	8: "SuspendedEVSE",
}

var chargerWorkModes = map[int]string{
	0: "Stop",
	1: "Fast",
	2: "ECO",
	3: "Green",
}

var chargerEcoGears = map[int]string{
	1: "6A",
	2: "10A",
	3: "16A",
	4: "20A",
	5: "25A",
}

var phases = [3]struct {
	suffix  string
	label   string
	allowed model.DeviceType
}{
	{"l1", "L1", 0},
	{"l2", "L2", model.X3},
	{"l3", "L3", model.X3},
}

// chargerLayout places the shared charger measurements in the Data and set
// arrays of one generation.
type chargerLayout struct {
	status        int
	voltage       [3]int
	current       [3]int
	power         [3]int
	voltageFactor float64
	currentFactor float64
	chargePower   int
	sessionEnergy int
	totalLow      int
	totalHigh     int
	temperature   int

	setWorkMode       int
	setEcoGear        int
	setChargeCurrent  int
	chargeCurrentStep float64
	maxCurrent        float64
	startCommand      int
	stopCommand       int
}

func chargerTable(l chargerLayout) []*model.Descriptor {
	table := []*model.Descriptor{
		{
			Key: "charger_status", Name: "Charger Status", Kind: model.KindSensor,
			Source: model.SourceData, Index: l.status, Options: chargerStates,
			Icon: "mdi:ev-station",
		},
	}
	for i, ph := range phases {
		table = append(table,
			&model.Descriptor{
				Key: "voltage_" + ph.suffix, Name: "Voltage " + ph.label, Kind: model.KindSensor,
				Source: model.SourceData, Index: l.voltage[i], Factor: l.voltageFactor, Precision: model.Digits(1),
				Unit: "V", DeviceClass: "voltage", StateClass: "measurement", AllowedTypes: ph.allowed,
			},
			&model.Descriptor{
				Key: "current_" + ph.suffix, Name: "Current " + ph.label, Kind: model.KindSensor,
				Source: model.SourceData, Index: l.current[i], Factor: l.currentFactor, Precision: model.Digits(2),
				Unit: "A", DeviceClass: "current", StateClass: "measurement", AllowedTypes: ph.allowed,
			},
			&model.Descriptor{
				Key: "power_" + ph.suffix, Name: "Power " + ph.label, Kind: model.KindSensor,
				Source: model.SourceData, Index: l.power[i], Precision: model.Digits(0),
				Unit: "W", DeviceClass: "power", StateClass: "measurement", AllowedTypes: ph.allowed,
			},
		)
	}
	return append(table,
		&model.Descriptor{
			Key: "charge_power", Name: "Charge Power", Kind: model.KindSensor,
			Source: model.SourceData, Index: l.chargePower, Precision: model.Digits(0),
			Unit: "W", DeviceClass: "power", StateClass: "measurement",
		},
		&model.Descriptor{
			Key: "charge_added", Name: "Charge Added", Kind: model.KindSensor,
			Source: model.SourceData, Index: l.sessionEnergy, Factor: 0.1, Precision: model.Digits(1),
			Unit: "kWh", DeviceClass: "energy", StateClass: "total_increasing",
		},
		&model.Descriptor{
			Key: "total_charged", Name: "Total Charged", Kind: model.KindSensor,
			Source: model.SourceData, Index: l.totalLow, Factor: 0.1, Precision: model.Digits(1),
			Derive: decoder.HighWord(model.SourceData, l.totalHigh),
			Unit: "kWh", DeviceClass: "energy", StateClass: "total_increasing",
		},
		&model.Descriptor{
			Key: "charger_temperature", Name: "Charger Temperature", Kind: model.KindSensor,
			Source: model.SourceData, Index: l.temperature, Signed16: true, Precision: model.Digits(0),
			Unit: "°C", DeviceClass: "temperature", StateClass: "measurement",
		},
		&model.Descriptor{
			Key: "work_mode", Name: "Work Mode", Kind: model.KindSelect,
			Source: model.SourceSet, Index: l.setWorkMode, Register: regWorkMode, Options: chargerWorkModes,
		},
		&model.Descriptor{
			Key: "eco_gear", Name: "ECO Gear", Kind: model.KindSelect,
			Source: model.SourceSet, Index: l.setEcoGear, Register: regEcoGear, Options: chargerEcoGears,
		},
		&model.Descriptor{
			Key: "charge_current", Name: "Charge Current", Kind: model.KindNumber,
			Source: model.SourceSet, Index: l.setChargeCurrent, Factor: l.chargeCurrentStep, Precision: model.Digits(1),
			Register: regChargeCurrent, Limits: &model.Limits{Min: 6, Max: l.maxCurrent},
			Unit: "A", DeviceClass: "current",
		},
		&model.Descriptor{
			Key: "start_charging", Name: "Start Charging", Kind: model.KindButton,
			Index: -1, Register: regControlCommand, PressValue: l.startCommand,
		},
		&model.Descriptor{
			Key: "stop_charging", Name: "Stop Charging", Kind: model.KindButton,
			Index: -1, Register: regControlCommand, PressValue: l.stopCommand,
		},
	)
}

var chargerG1Layout = chargerLayout{
	status:        0,
	voltage:       [3]int{2, 3, 4},
	current:       [3]int{5, 6, 7},
	power:         [3]int{8, 9, 10},
	voltageFactor: 0.01,
	currentFactor: 0.01,
	chargePower:   11,
	sessionEnergy: 12,
	totalLow:      14,
	totalHigh:     15,
	temperature:   24,

	setWorkMode:       0,
	setEcoGear:        1,
	setChargeCurrent:  2,
	chargeCurrentStep: 0.01,
	maxCurrent:        32,
	startCommand:      1,
	stopCommand:       2,
}

var chargerG2Layout = chargerLayout{
	status:        0,
	voltage:       [3]int{2, 3, 4},
	current:       [3]int{5, 6, 7},
	power:         [3]int{8, 9, 10},
	voltageFactor: 0.01,
	currentFactor: 0.01,
	chargePower:   11,
	sessionEnergy: 12,
	totalLow:      16,
	totalHigh:     17,
	temperature:   22,

	setWorkMode:       1,
	setEcoGear:        2,
	setChargeCurrent:  5,
	chargeCurrentStep: 0.1,
	maxCurrent:        32,
	startCommand:      3,
	stopCommand:       4,
}

// ChargerG1 decodes first generation EV chargers (serials starting with "C").
type ChargerG1 struct {
	*base
}

// ChargerG2 decodes second generation chargers (serials starting with "50").
type ChargerG2 struct {
	*base
}

func NewChargerG1(serial string, deviceType model.DeviceType, payload model.Payload, opts Options) *ChargerG1 {
	return &ChargerG1{base: newCharger("solax_ev_charger", "EVC", chargerG1Layout, serial, deviceType, payload, opts)}
}

func NewChargerG2(serial string, deviceType model.DeviceType, payload model.Payload, opts Options) *ChargerG2 {
	return &ChargerG2{base: newCharger("solax_ev_charger_g2", "HAC", chargerG2Layout, serial, deviceType, payload, opts)}
}

func newCharger(name, family string, layout chargerLayout, serial string, deviceType model.DeviceType, payload model.Payload, opts Options) *base {
	b := newBase(name, chargerTable(layout), deviceType, opts)
	b.supportsSet = true
	b.identity.Merge(model.Identity{InfoSerial: serial})
	b.modelName = func(id model.Identity) string {
		return chargerModelName(family, id.DeviceType)
	}
	b.initial = payload
	if payload != nil {
		b.applyPayload(payload)
	}
	return b
}

func chargerModelName(family string, t model.DeviceType) string {
	phase := "X1"
	if t.Has(model.X3) {
		phase = "X3"
	}
	switch {
	case t.Has(model.Pow22):
		return fmt.Sprintf("%s-%s-22kW", phase, family)
	case t.Has(model.Pow11):
		return fmt.Sprintf("%s-%s-11kW", phase, family)
	case t.Has(model.Pow7):
		return fmt.Sprintf("%s-%s-7kW", phase, family)
	}
	return fmt.Sprintf("%s-%s", phase, family)
}

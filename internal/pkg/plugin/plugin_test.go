package plugin

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
)

func inverterPayload() model.Payload {
	data := make([]any, 102)
	for i := range data {
		data[i] = json.Number("0")
	}
	data[6] = json.Number("1520")
	data[9] = json.Number("3605")
	data[13] = json.Number("25")
	data[22] = json.Number("65236")
	data[21] = json.Number("123")
	data[101] = json.Number("41")
	data[55] = nil
	return model.Payload{
		"type":        json.Number("18"),
		"sn":          "SRABCDEF",
		"ver":         "3.006.04",
		"Data":        data,
		"Information": []any{json.Number("3.0"), json.Number("18"), "H1B3000000", "HW01", "1.02"},
	}
}

func TestInverterG4_Identity(t *testing.T) {
	p := NewInverterG4(inverterPayload(), Options{Registration: "SECRET"})

	require.True(t, p.Identified())
	id := p.Identity()
	assert.Equal(t, "SRABCDEF", id.SerialNumber)
	assert.Equal(t, "SRABCDEF", id.DeviceSerial)
	assert.Equal(t, "H1B3000000", id.InfoSerial)
	assert.Equal(t, "3.006.04", id.FirmwareVersion)
	assert.Equal(t, "HW01", id.HardwareVersion)
	assert.Equal(t, "X1 Boost G4", id.ModelName)
	assert.Equal(t, model.X1, id.DeviceType)
	require.NotNil(t, id.RuntimeType)
	assert.Equal(t, 18, *id.RuntimeType)
	assert.False(t, p.SupportsSetData())
}

func TestInverterG4_ApplyPayloadIsIdempotent(t *testing.T) {
	payload := inverterPayload()
	p := NewInverterG4(payload, Options{Registration: "SECRET"})
	first := p.Identity()

	p.Initialize(model.NewSnapshot(payload, nil))
	p.Initialize(model.NewSnapshot(payload, nil))

	assert.Equal(t, first, p.Identity())
}

func TestInverterG4_FirstValueWins(t *testing.T) {
	p := NewInverterG4(inverterPayload(), Options{})

	later := inverterPayload()
	later["ver"] = "9.9.9"
	later["sn"] = "OTHER"
	later["type"] = json.Number("22")
	p.Initialize(model.NewSnapshot(later, nil))

	id := p.Identity()
	assert.Equal(t, "3.006.04", id.FirmwareVersion)
	assert.Equal(t, "SRABCDEF", id.SerialNumber)
	assert.Equal(t, "X1 Boost G4", id.ModelName)
}

func TestInverterG4_SerialPreference(t *testing.T) {
	tests := map[string]struct {
		payload model.Payload
		opts    Options
		want    string
	}{
		"configured device serial first": {
			payload: inverterPayload(),
			opts:    Options{DeviceSerial: "CONFIGURED", Registration: "SECRET"},
			want:    "CONFIGURED",
		},
		"info serial without sn": {
			payload: model.Payload{"type": json.Number("22"), "Information": []any{"", "", "INFO1"}},
			opts:    Options{Registration: "SECRET"},
			want:    "INFO1",
		},
		"registration as last resort": {
			payload: model.Payload{"type": json.Number("22")},
			opts:    Options{Registration: "SECRET"},
			want:    "SECRET",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p := NewInverterG4(tt.payload, tt.opts)
			assert.Equal(t, tt.want, p.Identity().SerialNumber)
		})
	}
}

func TestInverterG4_ModelName(t *testing.T) {
	tests := map[string]struct {
		runtimeType any
		want        string
	}{
		"boost": {runtimeType: json.Number("18"), want: "X1 Boost G4"},
		"mini":  {runtimeType: "22", want: "X1 Mini G4"},
		"other": {runtimeType: json.Number("99"), want: "SolaX Inverter"},
		"none":  {runtimeType: nil, want: "SolaX Inverter"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p := NewInverterG4(model.Payload{"type": tt.runtimeType}, Options{})
			assert.Equal(t, tt.want, p.Identity().ModelName)
		})
	}
}

func TestInverterG4_Initialize(t *testing.T) {
	t.Run("no payload anywhere is a no-op", func(t *testing.T) {
		p := NewInverterG4(nil, Options{})
		p.Initialize(model.NewSnapshot(nil, nil))
		assert.False(t, p.Identified())
	})

	t.Run("snapshot payload", func(t *testing.T) {
		p := NewInverterG4(nil, Options{})
		p.Initialize(model.NewSnapshot(inverterPayload(), nil))
		assert.True(t, p.Identified())
		assert.Equal(t, "X1 Boost G4", p.Identity().ModelName)
	})

	t.Run("falls back to detection payload", func(t *testing.T) {
		p := NewInverterG4(inverterPayload(), Options{})
		p.Initialize(nil)
		assert.True(t, p.Identified())
	})
}

func TestInverterG4_Decode(t *testing.T) {
	payload := inverterPayload()
	p := NewInverterG4(payload, Options{})
	snap := model.NewSnapshot(payload, nil)

	tests := map[string]struct {
		key  string
		want float64
	}{
		"ac power":     {key: "ac_power", want: 1520},
		"pv1 power":    {key: "pv1_power", want: 901},
		"pv1 voltage":  {key: "pv1_voltage", want: 360.5},
		"pv1 current":  {key: "pv1_current", want: 2.5},
		"grid power":   {key: "grid_power", want: 300},
		"today energy": {key: "today_energy", want: 12.3},
		"temperature":  {key: "inverter_temperature", want: 41},
		"runtime type": {key: "runtime_type", want: 18},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d, ok := p.Descriptor(tt.key)
			require.True(t, ok)
			got := p.Decode(d, snap)
			require.True(t, got.Available())
			assert.InDelta(t, tt.want, got.Float64(), 1e-9)
		})
	}

	t.Run("null register is unavailable", func(t *testing.T) {
		d, ok := p.Descriptor("total_energy")
		require.True(t, ok)
		assert.False(t, p.Decode(d, snap).Available())
	})

	t.Run("cached payload without snapshot", func(t *testing.T) {
		d, _ := p.Descriptor("ac_power")
		got := p.Decode(d, nil)
		assert.Equal(t, int64(1520), got.Int64())
	})
}

func TestInverterG4_HasNoWrites(t *testing.T) {
	p := NewInverterG4(inverterPayload(), Options{})
	for _, d := range p.Descriptors() {
		_, ok := p.MapPayload(d, 1)
		assert.False(t, ok, d.Key)
	}
}

func TestCharger_Descriptors(t *testing.T) {
	single := NewChargerG1("C10700ABCD", model.V10|model.X1|model.Pow7, nil, Options{})
	three := NewChargerG2("5032M0001", model.V20|model.X3|model.Pow22, nil, Options{})

	_, ok := single.Descriptor("voltage_l2")
	assert.False(t, ok, "single phase charger hides L2")
	_, ok = single.Descriptor("voltage_l1")
	assert.True(t, ok)
	_, ok = three.Descriptor("voltage_l3")
	assert.True(t, ok)

	assert.True(t, single.SupportsSetData())
	assert.Equal(t, "C10700ABCD", single.Identity().InfoSerial)
}

func TestCharger_ModelName(t *testing.T) {
	p := NewChargerG1("C10700ABCD", model.V10|model.X1|model.Pow7, model.Payload{"Information": []any{"", "", "C10700ABCD"}}, Options{})
	assert.Equal(t, "X1-EVC-7kW", p.Identity().ModelName)
	assert.Equal(t, "C10700ABCD", p.Identity().SerialNumber)

	g2 := NewChargerG2("5032M0001", model.V20|model.X3|model.Pow22, model.Payload{"sn": "5032M0001"}, Options{})
	assert.Equal(t, "X3-HAC-22kW", g2.Identity().ModelName)
}

func TestCharger_MapPayload(t *testing.T) {
	g1 := NewChargerG1("C10700ABCD", model.V10|model.X1|model.Pow7, nil, Options{})
	g2 := NewChargerG2("5032M0001", model.V20|model.X3|model.Pow22, nil, Options{})

	tests := map[string]struct {
		plugin Plugin
		key    string
		value  float64
		want   model.WritePayload
	}{
		"g1 charge current": {plugin: g1, key: "charge_current", value: 16, want: model.WritePayload{{Reg: regChargeCurrent, Val: "1600"}}},
		"g2 charge current": {plugin: g2, key: "charge_current", value: 16, want: model.WritePayload{{Reg: regChargeCurrent, Val: "160"}}},
		"current too high":  {plugin: g1, key: "charge_current", value: 40},
		"current too low":   {plugin: g1, key: "charge_current", value: 2},
		"work mode":         {plugin: g1, key: "work_mode", value: 2, want: model.WritePayload{{Reg: regWorkMode, Val: "2"}}},
		"unknown option":    {plugin: g1, key: "work_mode", value: 9},
		"fractional option": {plugin: g1, key: "work_mode", value: 1.5},
		"start button":      {plugin: g1, key: "start_charging", value: 0, want: model.WritePayload{{Reg: regControlCommand, Val: "1"}}},
		"g2 stop button":    {plugin: g2, key: "stop_charging", value: 0, want: model.WritePayload{{Reg: regControlCommand, Val: "4"}}},
		"sensor":            {plugin: g1, key: "charge_power", value: 1},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d, ok := tt.plugin.Descriptor(tt.key)
			require.True(t, ok)
			got, ok := tt.plugin.MapPayload(d, tt.value)
			assert.Equal(t, tt.want != nil, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("descriptor of another device", func(t *testing.T) {
		foreign := &model.Descriptor{Key: "foreign", Kind: model.KindNumber, Register: 1}
		_, ok := g1.MapPayload(foreign, 1)
		assert.False(t, ok)
	})

	t.Run("payload wire format", func(t *testing.T) {
		d, _ := g1.Descriptor("charge_current")
		got, _ := g1.MapPayload(d, 10)
		raw, err := json.Marshal(got)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"reg":1576,"val":"1000"}]`, string(raw))
	})
}

func TestCharger_DecodeSetData(t *testing.T) {
	p := NewChargerG1("C10700ABCD", model.V10|model.X1|model.Pow7, nil, Options{})
	snap := model.NewSnapshot(model.Payload{"Data": []any{json.Number("2")}}, []any{json.Number("1"), json.Number("3"), json.Number("1600")})

	d, _ := p.Descriptor("charge_current")
	assert.Equal(t, 16.0, p.Decode(d, snap).Float64())

	d, _ = p.Descriptor("work_mode")
	assert.Equal(t, int64(1), p.Decode(d, snap).Int64())

	d, _ = p.Descriptor("charger_status")
	got := p.Decode(d, snap)
	label, ok := d.Option(int(got.Int64()))
	require.True(t, ok)
	assert.Equal(t, "Charging", label)
}

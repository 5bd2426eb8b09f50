package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
)

type fakeSink struct {
	mu          sync.Mutex
	writeErr    error
	registerErr error
	registers   int
	writes      [][]model.Record
	devices     []model.Device
	descriptors int
}

func (f *fakeSink) Write(_ context.Context, records []model.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, records)
	return nil
}

func (f *fakeSink) RegisterDevice(_ context.Context, device model.Device, descriptors []*model.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	if f.registerErr != nil {
		return f.registerErr
	}
	f.devices = append(f.devices, device)
	f.descriptors = len(descriptors)
	return nil
}

var (
	power = &model.Descriptor{Key: "charge_power", Name: "Charge Power", Kind: model.KindSensor, Unit: "W"}
	state = &model.Descriptor{Key: "charger_status", Name: "Charger Status", Kind: model.KindSensor, Options: map[int]string{2: "Charging"}}
	start = &model.Descriptor{Key: "start_charging", Name: "Start Charging", Kind: model.KindButton}
)

func identity() model.Identity {
	return model.Identity{SerialNumber: "C10700ABCD", ModelName: "X1-EVC-7kW", FirmwareVersion: "1.10"}
}

func newPublisher(t *testing.T) *Publisher {
	p := New()
	p.logger = zaptest.NewLogger(t)
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestPublish(t *testing.T) {
	p := newPublisher(t)
	sink := &fakeSink{}
	require.NoError(t, p.RegisterSink("fake", sink))

	readings := []model.Reading{
		{Descriptor: power, Value: model.Int(7200)},
		{Descriptor: state, Value: model.Int(2)},
		{Descriptor: start, Value: model.Unavailable()},
	}
	require.NoError(t, p.Publish(context.Background(), identity(), readings))

	require.Len(t, sink.devices, 1)
	assert.Equal(t, "x1_evc_7kw_c10700abcd", sink.devices[0].ID)
	assert.Equal(t, "1.10", sink.devices[0].FirmwareVersion)
	assert.Equal(t, 3, sink.descriptors)

	require.Len(t, sink.writes, 1)
	records := sink.writes[0]
	require.Len(t, records, 2, "buttons carry no state")
	assert.Equal(t, "charge_power", records[0].Slug)
	assert.Equal(t, "W", records[0].Unit)
	assert.Equal(t, "x1_evc_7kw_c10700abcd", records[0].Identifier)
	assert.Equal(t, "Charging", records[1].Label)
}

func TestPublish_SkipsUnchangedValues(t *testing.T) {
	p := newPublisher(t)
	sink := &fakeSink{}
	require.NoError(t, p.RegisterSink("fake", sink))

	first := []model.Reading{{Descriptor: power, Value: model.Int(100)}, {Descriptor: state, Value: model.Int(2)}}
	second := []model.Reading{{Descriptor: power, Value: model.Float(100)}, {Descriptor: state, Value: model.Int(3)}}
	third := []model.Reading{{Descriptor: power, Value: model.Float(100)}, {Descriptor: state, Value: model.Int(3)}}

	require.NoError(t, p.Publish(context.Background(), identity(), first))
	require.NoError(t, p.Publish(context.Background(), identity(), second))
	require.NoError(t, p.Publish(context.Background(), identity(), third))

	require.Len(t, sink.writes, 2, "nothing changed on the third publish")
	require.Len(t, sink.writes[1], 1)
	assert.Equal(t, "charger_status", sink.writes[1][0].Slug)
	assert.Len(t, sink.devices, 1, "device is registered once")
}

func TestPublish_SinkFailureDoesNotStopOthers(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := newPublisher(t)
	p.logger = zap.New(core)
	broken := &fakeSink{writeErr: errors.New("down")}
	healthy := &fakeSink{}
	require.NoError(t, p.RegisterSink("broken", broken))
	require.NoError(t, p.RegisterSink("healthy", healthy))

	err := p.Publish(context.Background(), identity(), []model.Reading{{Descriptor: power, Value: model.Int(1)}})

	assert.NoError(t, err)
	assert.Len(t, healthy.writes, 1)

	failures := logs.FilterMessage("failed to publish data").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "broken", failures[0].ContextMap()["publisher"])
}

func TestPublish_RetriesFailedRegistration(t *testing.T) {
	p := newPublisher(t)
	flaky := &fakeSink{registerErr: errors.New("broker unavailable")}
	healthy := &fakeSink{}
	require.NoError(t, p.RegisterSink("flaky", flaky))
	require.NoError(t, p.RegisterSink("healthy", healthy))

	require.NoError(t, p.Publish(context.Background(), identity(), []model.Reading{{Descriptor: power, Value: model.Int(1)}}))
	assert.Equal(t, 1, flaky.registers)
	assert.Empty(t, flaky.devices)

	flaky.mu.Lock()
	flaky.registerErr = nil
	flaky.mu.Unlock()

	require.NoError(t, p.Publish(context.Background(), identity(), []model.Reading{{Descriptor: power, Value: model.Int(2)}}))
	require.NoError(t, p.Publish(context.Background(), identity(), []model.Reading{{Descriptor: power, Value: model.Int(3)}}))

	assert.Equal(t, 2, flaky.registers, "registered again once, then left alone")
	require.Len(t, flaky.devices, 1)
	assert.Equal(t, "x1_evc_7kw_c10700abcd", flaky.devices[0].ID)
	assert.Equal(t, 1, healthy.registers, "accepted sinks are not asked again")
}

func TestRegisterSink_Duplicate(t *testing.T) {
	p := newPublisher(t)
	require.NoError(t, p.RegisterSink("fake", &fakeSink{}))
	assert.ErrorIs(t, p.RegisterSink("fake", &fakeSink{}), errAlreadyRegistered)
}

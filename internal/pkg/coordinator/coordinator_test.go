package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
	"github.com/anicoll/solax-http-integration/internal/pkg/plugin"
	"github.com/anicoll/solax-http-integration/internal/pkg/transport"
)

type fakeClient struct {
	mu       sync.Mutex
	realtime func(ctx context.Context) (model.Payload, error)
	set      func(ctx context.Context) (any, error)
	writeErr error

	reads    int
	setReads int
	writes   []model.WritePayload
}

func (f *fakeClient) ReadRealtime(ctx context.Context) (model.Payload, error) {
	f.mu.Lock()
	f.reads++
	fn := f.realtime
	f.mu.Unlock()
	if fn == nil {
		return nil, transport.ErrTransport
	}
	return fn(ctx)
}

func (f *fakeClient) ReadSetData(ctx context.Context) (any, error) {
	f.mu.Lock()
	f.setReads++
	fn := f.set
	f.mu.Unlock()
	if fn == nil {
		return nil, transport.ErrTransport
	}
	return fn(ctx)
}

func (f *fakeClient) WriteRegisters(_ context.Context, payload model.WritePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, payload)
	return nil
}

func (f *fakeClient) counts() (reads, setReads, writes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.setReads, len(f.writes)
}

func inverterRealtime() model.Payload {
	return model.Payload{
		"type":        json.Number("22"),
		"sn":          "SRMINI01",
		"Data":        []any{json.Number("0"), json.Number("0"), json.Number("0"), json.Number("0"), json.Number("0"), json.Number("0"), json.Number("812")},
		"Information": []any{json.Number("1.5"), json.Number("22"), "H1M1500000"},
	}
}

func chargerRealtime() model.Payload {
	return model.Payload{
		"sn":          "C10700ABCD",
		"Data":        []any{json.Number("2")},
		"Information": []any{json.Number("7.0"), json.Number("1"), "C10700ABCD"},
	}
}

func getKey(c *Coordinator, key string) (model.Value, bool) {
	d, ok := c.Descriptor(key)
	if !ok {
		return model.Unavailable(), false
	}
	return c.Get(d), true
}

func newCoordinator(t *testing.T, client Client, p plugin.Plugin, options ...func(*Coordinator)) *Coordinator {
	t.Helper()
	c := New(client, p, options...)
	c.logger = zaptest.NewLogger(t)
	t.Cleanup(c.Close)
	return c
}

func TestRefresh_InitializesAndPublishes(t *testing.T) {
	client := &fakeClient{realtime: func(context.Context) (model.Payload, error) {
		return inverterRealtime(), nil
	}}
	p := plugin.NewInverterG4(nil, plugin.Options{})
	c := newCoordinator(t, client, p)

	var published []*model.Snapshot
	c.Subscribe(func(s *model.Snapshot) { published = append(published, s) })

	require.Nil(t, c.Snapshot())
	snap, err := c.Refresh(context.Background())

	require.NoError(t, err)
	assert.Same(t, snap, c.Snapshot())
	assert.Equal(t, []*model.Snapshot{snap}, published)
	assert.True(t, p.Identified())
	assert.Equal(t, "X1 Mini G4", c.Identity().ModelName)

	v, ok := getKey(c, "ac_power")
	require.True(t, ok)
	assert.Equal(t, 812.0, v.Float64())

	_, setReads, _ := client.counts()
	assert.Zero(t, setReads, "inverters have no set data")
}

func TestRefresh_FailedReadGivesEmptySnapshot(t *testing.T) {
	client := &fakeClient{}
	p := plugin.NewInverterG4(nil, plugin.Options{})
	c := newCoordinator(t, client, p)

	snap, err := c.Refresh(context.Background())

	require.NoError(t, err)
	assert.True(t, snap.Empty())
	assert.Empty(t, snap.Data)
	assert.Empty(t, snap.Information)
	assert.False(t, p.Identified())

	v, ok := getKey(c, "ac_power")
	assert.True(t, ok)
	assert.False(t, v.Available())

	_, ok = getKey(c, "does_not_exist")
	assert.False(t, ok)
}

func TestRefresh_FailedReadFallsBackToDetectionPayload(t *testing.T) {
	client := &fakeClient{}
	p := plugin.NewInverterG4(inverterRealtime(), plugin.Options{})
	c := newCoordinator(t, client, p)

	_, err := c.Refresh(context.Background())

	require.NoError(t, err)
	assert.True(t, p.Identified())
	assert.Equal(t, "SRMINI01", c.Identity().SerialNumber)
}

func TestRefresh_DeadlineFailsCycle(t *testing.T) {
	client := &fakeClient{realtime: func(ctx context.Context) (model.Payload, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := newCoordinator(t, client, plugin.NewInverterG4(nil, plugin.Options{}), WithDeadline(20*time.Millisecond))

	var observed error
	c.observe = func(_ time.Duration, err error) { observed = err }

	snap, err := c.Refresh(context.Background())

	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, observed, context.DeadlineExceeded)
	assert.Nil(t, c.Snapshot())
}

func TestRefresh_PanicIsContained(t *testing.T) {
	client := &fakeClient{realtime: func(context.Context) (model.Payload, error) {
		panic("boom")
	}}
	c := newCoordinator(t, client, plugin.NewInverterG4(nil, plugin.Options{}))

	_, err := c.Refresh(context.Background())

	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.Contains(t, err.Error(), "boom")
}

func TestRefresh_ReadsSetDataForChargers(t *testing.T) {
	client := &fakeClient{
		realtime: func(context.Context) (model.Payload, error) { return chargerRealtime(), nil },
		set: func(context.Context) (any, error) {
			return []any{json.Number("1"), json.Number("3"), json.Number("1600")}, nil
		},
	}
	p := plugin.NewChargerG1("C10700ABCD", model.V10|model.X1|model.Pow7, nil, plugin.Options{})
	c := newCoordinator(t, client, p)

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	v, ok := getKey(c, "charge_current")
	require.True(t, ok)
	assert.Equal(t, 16.0, v.Float64())

	readings := c.Readings()
	assert.Len(t, readings, len(p.Descriptors()))
}

func TestRefresh_MissingSetDataIsEmpty(t *testing.T) {
	client := &fakeClient{realtime: func(context.Context) (model.Payload, error) { return chargerRealtime(), nil }}
	p := plugin.NewChargerG1("C10700ABCD", model.V10|model.X1|model.Pow7, nil, plugin.Options{})
	c := newCoordinator(t, client, p)

	snap, err := c.Refresh(context.Background())

	require.NoError(t, err)
	assert.Empty(t, snap.SetData)
	v, _ := getKey(c, "charge_current")
	assert.False(t, v.Available())
}

func chargerCoordinator(t *testing.T, client *fakeClient) (*Coordinator, plugin.Plugin) {
	t.Helper()
	client.realtime = func(context.Context) (model.Payload, error) { return chargerRealtime(), nil }
	client.set = func(context.Context) (any, error) {
		return []any{json.Number("1"), json.Number("3"), json.Number("1600")}, nil
	}
	p := plugin.NewChargerG1("C10700ABCD", model.V10|model.X1|model.Pow7, nil, plugin.Options{})
	return newCoordinator(t, client, p, WithCooldown(10*time.Millisecond)), p
}

func TestWriteRegister(t *testing.T) {
	tests := map[string]struct {
		key        string
		value      float64
		force      bool
		wantReads  int
		wantWrites []model.WritePayload
	}{
		"unchanged value is skipped": {
			key:       "charge_current",
			value:     16,
			wantReads: 1,
		},
		"changed value is written and read back": {
			key:        "charge_current",
			value:      20,
			wantReads:  2,
			wantWrites: []model.WritePayload{{{Reg: 0x628, Val: "2000"}}},
		},
		"unchanged select is skipped": {
			key:       "work_mode",
			value:     1,
			wantReads: 1,
		},
		"out of range is a no-op": {
			key:   "charge_current",
			value: 99,
		},
		"sensor is a no-op": {
			key:   "charge_power",
			value: 1,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			client := &fakeClient{}
			c, p := chargerCoordinator(t, client)
			d, ok := p.Descriptor(tt.key)
			require.True(t, ok)

			err := c.WriteRegister(context.Background(), d, tt.value, tt.force)

			require.NoError(t, err)
			reads, _, _ := client.counts()
			assert.Equal(t, tt.wantReads, reads)
			client.mu.Lock()
			assert.Equal(t, tt.wantWrites, client.writes)
			client.mu.Unlock()
		})
	}
}

func TestWriteRegister_PublishesAfterWrite(t *testing.T) {
	client := &fakeClient{}
	c, p := chargerCoordinator(t, client)
	var published atomic.Int32
	c.Subscribe(func(*model.Snapshot) { published.Add(1) })

	d, _ := p.Descriptor("charge_current")
	require.NoError(t, c.WriteRegister(context.Background(), d, 10, false))

	assert.Equal(t, int32(1), published.Load(), "only the read back is published")
}

func TestWriteRegister_ForceSkipsReadAndDebouncesRefresh(t *testing.T) {
	client := &fakeClient{}
	c, p := chargerCoordinator(t, client)
	d, _ := p.Descriptor("charge_current")

	require.NoError(t, c.WriteRegister(context.Background(), d, 16, true))
	require.NoError(t, c.WriteRegister(context.Background(), d, 16, true))

	reads, _, writes := client.counts()
	assert.Zero(t, reads)
	assert.Equal(t, 2, writes)

	assert.Eventually(t, func() bool {
		reads, _, _ := client.counts()
		return reads == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	reads, _, _ = client.counts()
	assert.Equal(t, 1, reads, "both writes share one trailing refresh")
}

func TestWriteRegister_ButtonIsAlwaysForced(t *testing.T) {
	client := &fakeClient{}
	c, p := chargerCoordinator(t, client)
	d, _ := p.Descriptor("start_charging")

	require.NoError(t, c.WriteRegister(context.Background(), d, 0, false))

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Zero(t, client.reads)
	assert.Equal(t, []model.WritePayload{{{Reg: 0x627, Val: "1"}}}, client.writes)
}

func TestWriteRegister_WriteFailure(t *testing.T) {
	cause := errors.New("rejected")
	client := &fakeClient{writeErr: cause}
	c, p := chargerCoordinator(t, client)
	d, _ := p.Descriptor("charge_current")

	err := c.WriteRegister(context.Background(), d, 20, false)

	assert.ErrorIs(t, err, cause)
	reads, _, _ := client.counts()
	assert.Equal(t, 1, reads, "no read back after a failed write")
}

func TestWriteRegister_InverterHasNoWrites(t *testing.T) {
	client := &fakeClient{}
	p := plugin.NewInverterG4(inverterRealtime(), plugin.Options{})
	c := newCoordinator(t, client, p)

	for _, d := range p.Descriptors() {
		require.NoError(t, c.WriteRegister(context.Background(), d, 1, false))
	}
	reads, _, writes := client.counts()
	assert.Zero(t, reads)
	assert.Zero(t, writes)
}

func TestRun(t *testing.T) {
	client := &fakeClient{realtime: func(context.Context) (model.Payload, error) {
		return inverterRealtime(), nil
	}}
	c := newCoordinator(t, client, plugin.NewInverterG4(nil, plugin.Options{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, time.Second)
	}()

	assert.Eventually(t, func() bool {
		reads, _, _ := client.counts()
		return reads >= 1
	}, time.Second, 5*time.Millisecond, "first poll runs immediately")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_InvalidInterval(t *testing.T) {
	c := newCoordinator(t, &fakeClient{}, plugin.NewInverterG4(nil, plugin.Options{}))
	for _, interval := range []time.Duration{0, 500 * time.Millisecond, 1500 * time.Millisecond} {
		assert.Error(t, c.Run(context.Background(), interval), interval.String())
	}
}

package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/rackhost/internal/param"
)

var fastCadence = Config{SampleRate: 1000, BlockSize: 1, InboxSize: 4}

func testBank(t *testing.T) *param.Bank {
	t.Helper()
	b := param.NewBank()
	for _, s := range []param.Spec{
		{ID: "vco.freq", Name: "Frequency", Min: -5, Max: 5, Default: 0},
		{ID: "vcf.cutoff", Name: "Cutoff", Min: 0, Max: 1, Default: 0.5},
	} {
		_, err := b.Add(s)
		require.NoError(t, err)
	}
	return b
}

func TestStartTwiceIsRejected(t *testing.T) {
	e, err := New(fastCadence, testBank(t), nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, e.Start())
	assert.ErrorIs(t, e.Start(), ErrAlreadyRunning)
	assert.Equal(t, Running, e.State())

	e.Stop()
	assert.Equal(t, Stopped, e.State())
	e.Stop()

	require.NoError(t, e.Start(), "engine must restart after Stop")
	e.Stop()
}

func TestProcessorSeesProposedValues(t *testing.T) {
	bank := testBank(t)
	var seen atomic.Uint64
	proc := ProcessorFunc(func(b *Block) {
		for i, id := range b.IDs {
			if id == "vcf.cutoff" && b.Values[i] == 0.8 {
				seen.Store(b.Index + 1)
			}
		}
	})
	e, err := New(fastCadence, bank, proc, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	defer e.Stop()

	p, ok := bank.Get("vcf.cutoff")
	require.True(t, ok)
	p.Slot.Propose(0.8)

	require.Eventually(t, func() bool { return seen.Load() > 0 }, 2*time.Second, time.Millisecond)
}

func TestStopJoinsProcessingGoroutine(t *testing.T) {
	var calls atomic.Int64
	e, err := New(fastCadence, testBank(t), ProcessorFunc(func(*Block) { calls.Add(1) }), nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Start())

	require.Eventually(t, func() bool { return calls.Load() > 3 }, 2*time.Second, time.Millisecond)
	e.Stop()

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "processor ran after Stop returned")
}

func TestDriveAppliesClampedValue(t *testing.T) {
	bank := testBank(t)
	e, err := New(fastCadence, bank, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	defer e.Stop()

	assert.False(t, e.Drive("missing", 1))
	require.True(t, e.Drive("vco.freq", 9))

	p, _ := bank.Get("vco.freq")
	require.Eventually(t, func() bool { return p.Slot.Read() == 5 }, 2*time.Second, time.Millisecond)
}

func TestDriveBeforeFreezeIsRefused(t *testing.T) {
	e, err := New(fastCadence, testBank(t), nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, e.Drive("vco.freq", 1))
}

func TestDriveDropsWhenInboxFull(t *testing.T) {
	bank := testBank(t)
	bank.Freeze()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	cfg := fastCadence
	cfg.InboxSize = 1
	e, err := New(cfg, bank, nil, m, nil)
	require.NoError(t, err)

	assert.True(t, e.Drive("vco.freq", 1))
	assert.False(t, e.Drive("vco.freq", 2))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped))
}

func TestMetricsCountBlocks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	e, err := New(fastCadence, testBank(t), nil, m, nil)
	require.NoError(t, err)

	require.NoError(t, e.Start())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Running))
	require.Eventually(t, func() bool { return testutil.ToFloat64(m.Blocks) >= 3 }, 2*time.Second, time.Millisecond)
	e.Stop()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Running))
}

func TestNewRejectsBadCadence(t *testing.T) {
	_, err := New(Config{SampleRate: 0, BlockSize: 256}, testBank(t), nil, nil, nil)
	assert.Error(t, err)
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, 5*time.Millisecond, Config{SampleRate: 51200, BlockSize: 256}.Period())
}

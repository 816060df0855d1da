package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/rackhost/internal/log"
	"github.com/mattjoyce/rackhost/internal/param"
)

// ErrAlreadyRunning is returned by Start when the engine has not been stopped.
var ErrAlreadyRunning = errors.New("engine already running")

// State is the engine lifecycle state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Processor computes one block. It runs on the engine goroutine and must not
// block, perform I/O, or wait on the UI.
type Processor interface {
	Process(b *Block)
}

// ProcessorFunc adapts a function into a Processor.
type ProcessorFunc func(b *Block)

func (f ProcessorFunc) Process(b *Block) { f(b) }

// Block is the per-quantum view handed to the processor. Values is refreshed
// from the parameter slots at the top of every block.
type Block struct {
	Index  uint64
	Frames int
	IDs    []string
	Values []float64

	params []*param.Param
}

// Write publishes an engine-side value for parameter i, clamped to its range.
func (b *Block) Write(i int, v float64) {
	p := b.params[i]
	v = p.Clamp(v)
	p.Slot.Store(v)
	b.Values[i] = v
}

type drive struct {
	p *param.Param
	v float64
}

// Config sets the block cadence.
type Config struct {
	SampleRate int
	BlockSize  int
	InboxSize  int
}

// Period returns the wall-clock duration of one block.
func (c Config) Period() time.Duration {
	return time.Duration(float64(time.Second) * float64(c.BlockSize) / float64(c.SampleRate))
}

// Engine runs the processing goroutine at a fixed block cadence.
type Engine struct {
	cfg     Config
	bank    *param.Bank
	proc    Processor
	metrics *Metrics
	logger  *slog.Logger
	inbox   chan drive

	// mu serialises Start/Stop; the processing goroutine never takes it.
	mu      sync.Mutex
	state   State
	stopCh  chan struct{}
	wg      sync.WaitGroup
	block   Block
	started time.Time
}

// New creates a stopped engine. A nil processor renders silence.
func New(cfg Config, bank *param.Bank, proc Processor, metrics *Metrics, logger *slog.Logger) (*Engine, error) {
	if cfg.SampleRate <= 0 || cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("invalid engine cadence: %d frames at %d Hz", cfg.BlockSize, cfg.SampleRate)
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	if proc == nil {
		proc = ProcessorFunc(func(*Block) {})
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = log.WithComponent("engine")
	}
	return &Engine{
		cfg:     cfg,
		bank:    bank,
		proc:    proc,
		metrics: metrics,
		logger:  logger,
		inbox:   make(chan drive, cfg.InboxSize),
	}, nil
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start freezes the parameter bank and launches the processing goroutine.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Running {
		return ErrAlreadyRunning
	}

	e.bank.Freeze()
	params := e.bank.All()
	e.block = Block{
		Frames: e.cfg.BlockSize,
		IDs:    make([]string, len(params)),
		Values: make([]float64, len(params)),
		params: params,
	}
	for i, p := range params {
		e.block.IDs[i] = p.ID
	}

	e.stopCh = make(chan struct{})
	e.wg.Add(1)
	go e.run(e.stopCh, &e.block)

	e.state = Running
	e.started = time.Now()
	e.metrics.Running.Set(1)
	e.logger.Info("engine started", "sample_rate", e.cfg.SampleRate, "block_size", e.cfg.BlockSize, "period", e.cfg.Period(), "params", len(params))
	return nil
}

// Stop asks the processing goroutine to finish its current block and waits
// for it to exit. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Running {
		return
	}
	close(e.stopCh)
	e.wg.Wait()
	e.state = Stopped
	e.metrics.Running.Set(0)
	e.logger.Info("engine stopped", "blocks", e.block.Index, "uptime", time.Since(e.started).Round(time.Millisecond))
}

// Drive queues an externally driven value for id; the engine applies it at the
// next block. It never blocks: when the inbox is full the value is dropped and
// false is returned.
func (e *Engine) Drive(id string, v float64) bool {
	if !e.bank.Frozen() {
		return false
	}
	p, ok := e.bank.Get(id)
	if !ok {
		return false
	}
	select {
	case e.inbox <- drive{p: p, v: v}:
		return true
	default:
		e.metrics.Dropped.Inc()
		return false
	}
}

func (e *Engine) run(stop <-chan struct{}, b *Block) {
	defer e.wg.Done()

	period := e.cfg.Period()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			begin := time.Now()
			e.processBlock(b)
			if time.Since(begin) > period {
				e.metrics.Overruns.Inc()
			}
		}
	}
}

func (e *Engine) processBlock(b *Block) {
	e.drainInbox()
	for i, p := range b.params {
		b.Values[i] = p.Slot.Read()
	}
	e.proc.Process(b)
	b.Index++
	e.metrics.Blocks.Inc()
}

func (e *Engine) drainInbox() {
	for {
		select {
		case d := <-e.inbox:
			d.p.Slot.Store(d.p.Clamp(d.v))
		default:
			return
		}
	}
}

package session

import (
	"bytes"
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"calorie-lens/api/internal/analysis"
	"calorie-lens/api/internal/auth"
)

// Preparer turns a raw image into a bounded payload.
type Preparer interface {
	Prepare(ctx context.Context, r io.Reader) (analysis.ImagePayload, error)
}

// Analyzer submits a payload and returns the normalized result.
type Analyzer interface {
	Analyze(ctx context.Context, img analysis.ImagePayload) (analysis.Result, error)
}

type Option func(*Machine)

// WithOnChange registers a callback invoked after every transition, in
// transition order. No lock is held while it runs, so it may call Snapshot or
// any other method. It can run on a goroutine other than the one that made the
// transition; calls never overlap.
func WithOnChange(fn func(Snapshot)) Option {
	return func(m *Machine) { m.onChange = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// Machine is safe for concurrent use. Decoding and analysis run in the
// background; results from superseded work are dropped.
type Machine struct {
	gate     *auth.Gate
	prep     Preparer
	analyzer Analyzer
	log      *zap.Logger
	onChange func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	state         State
	payload       analysis.ImagePayload
	result        analysis.Result
	err           error
	notice        string
	imageGen      uint64
	runGen        uint64
	preparing     bool
	cancelPrepare context.CancelFunc
	cancelRun     context.CancelFunc
	pending       []Snapshot
	delivering    bool
}

func New(gate *auth.Gate, prep Preparer, analyzer Analyzer, opts ...Option) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		gate:     gate,
		prep:     prep,
		analyzer: analyzer,
		log:      zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
		state:    Idle,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start picks the initial state from the stored credential.
func (m *Machine) Start(ctx context.Context) error {
	has, err := m.gate.HasCredential(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if has && m.state == Idle {
		m.state = AwaitingImage
	}
	m.commit()
	return nil
}

// SaveCredential stores the credential. From Idle it moves to AwaitingImage;
// in any other state it only replaces the credential.
func (m *Machine) SaveCredential(ctx context.Context, value string) error {
	if err := m.gate.SetCredential(ctx, value); err != nil {
		return err
	}
	m.mu.Lock()
	if m.state == Idle {
		m.state = AwaitingImage
	}
	m.commit()
	return nil
}

// SelectImage starts preparing data in the background and reports whether
// the selection was accepted. It is ignored in Idle. A later selection
// supersedes an earlier one still being prepared.
//
// On success the machine moves to ImageReady, discarding any shown result or
// error and cancelling an analysis still in flight. On failure the state is
// kept and Notice explains the problem.
func (m *Machine) SelectImage(data []byte) bool {
	m.mu.Lock()
	if m.state == Idle {
		m.mu.Unlock()
		return false
	}
	if m.cancelPrepare != nil {
		m.cancelPrepare()
	}
	m.imageGen++
	gen := m.imageGen
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelPrepare = cancel
	m.preparing = true
	m.notice = ""
	m.wg.Add(1)
	m.commit()

	go func() {
		defer m.wg.Done()
		defer cancel()
		payload, err := m.prep.Prepare(ctx, bytes.NewReader(data))
		m.finishPrepare(gen, payload, err)
	}()
	return true
}

func (m *Machine) finishPrepare(gen uint64, payload analysis.ImagePayload, err error) {
	m.mu.Lock()
	if gen != m.imageGen || m.ctx.Err() != nil {
		m.mu.Unlock()
		m.log.Debug("dropping superseded image", zap.Uint64("gen", gen))
		return
	}
	m.preparing = false
	m.cancelPrepare = nil
	if err != nil {
		m.notice = analysis.Describe(err)
		m.log.Info("image rejected", zap.Error(err))
		m.commit()
		return
	}
	if m.state == Analyzing && m.cancelRun != nil {
		m.cancelRun()
		m.cancelRun = nil
		m.runGen++
	}
	m.payload = payload
	m.result, m.err = nil, nil
	m.state = ImageReady
	m.commit()
}

// Analyze triggers analysis of the ready image. It is a no-op returning
// false unless the machine is in ImageReady.
func (m *Machine) Analyze() bool {
	m.mu.Lock()
	if m.state != ImageReady || m.payload.Empty() {
		m.mu.Unlock()
		return false
	}
	payload := m.payload
	m.payload = analysis.ImagePayload{}
	m.runGen++
	gen := m.runGen
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelRun = cancel
	m.state = Analyzing
	m.notice = ""
	m.wg.Add(1)
	m.commit()

	go func() {
		defer m.wg.Done()
		defer cancel()
		res, err := m.analyzer.Analyze(ctx, payload)
		m.finishRun(gen, res, err)
	}()
	return true
}

func (m *Machine) finishRun(gen uint64, res analysis.Result, err error) {
	m.mu.Lock()
	if gen != m.runGen || m.state != Analyzing || m.ctx.Err() != nil {
		m.mu.Unlock()
		m.log.Debug("dropping superseded analysis", zap.Uint64("gen", gen))
		return
	}
	m.cancelRun = nil
	if err != nil {
		m.state, m.err, m.result = ErrorShown, err, nil
		m.log.Info("analysis failed", zap.Error(err))
	} else {
		m.state, m.result, m.err = ResultShown, res, nil
	}
	m.commit()
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:     m.state,
		Result:    m.result,
		Err:       m.err,
		Notice:    m.notice,
		Preparing: m.preparing,
		Width:     m.payload.Width,
		Height:    m.payload.Height,
	}
}

// commit queues the current snapshot and releases mu. Whichever goroutine
// finds the queue idle drains it, calling onChange with mu released.
func (m *Machine) commit() {
	m.pending = append(m.pending, m.snapshotLocked())
	if m.delivering {
		m.mu.Unlock()
		return
	}
	m.delivering = true
	for len(m.pending) > 0 {
		snap := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()
		if m.onChange != nil {
			m.onChange(snap)
		}
		m.mu.Lock()
	}
	m.pending = nil
	m.delivering = false
	m.mu.Unlock()
}

// Wait blocks until no background work is running.
func (m *Machine) Wait() { m.wg.Wait() }

// Close cancels background work and waits for it to stop.
func (m *Machine) Close() {
	m.cancel()
	m.wg.Wait()
}

package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ironwatch/site/internal/queue"
)

var (
	// ErrTransitionInProgress is returned when PolicyReject refuses a request,
	// or when a control change is attempted mid-flight.
	ErrTransitionInProgress = errors.New("camera transition in progress")
	// ErrSuperseded is the result of a transition replaced by a newer one.
	ErrSuperseded = errors.New("camera transition superseded")
	// ErrCancelled is the result of a transition stopped before completion.
	ErrCancelled = errors.New("camera transition cancelled")
	// ErrNoPrevious means there is no recorded pose to return to.
	ErrNoPrevious = errors.New("no previous camera pose")
	// ErrClosed is returned by a coordinator after Close.
	ErrClosed = errors.New("camera coordinator closed")
)

// Policy decides what happens when a transition is requested while another
// is running.
type Policy int

const (
	// PolicySupersede stops the running transition where it is and starts the
	// new one from that pose.
	PolicySupersede Policy = iota
	// PolicyReject refuses the new request.
	PolicyReject
	// PolicyQueue runs requests one after another.
	PolicyQueue
)

func (p Policy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyQueue:
		return "queue"
	default:
		return "supersede"
	}
}

// ParsePolicy parses "supersede", "reject" or "queue".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "supersede":
		return PolicySupersede, nil
	case "reject":
		return PolicyReject, nil
	case "queue":
		return PolicyQueue, nil
	}
	return PolicySupersede, fmt.Errorf("unknown transition policy %q", s)
}

// Config configures a Coordinator.
type Config struct {
	Duration       time.Duration
	FrameInterval  time.Duration
	Policy         Policy
	DefaultPose    Pose
	DefaultControl ControlType
	Clock          Clock
	Logger         *slog.Logger
}

// DefaultConfig returns the stock timings: two second transitions at
// roughly sixty frames per second, starting in map control.
func DefaultConfig() Config {
	return Config{
		Duration:       2000 * time.Millisecond,
		FrameInterval:  16 * time.Millisecond,
		Policy:         PolicySupersede,
		DefaultControl: ControlMap,
	}
}

// Request describes one transition.
type Request struct {
	// From overrides the start pose. Nil starts from the current pose.
	From *Pose
	To   Pose
	// Duration overrides Config.Duration when positive.
	Duration time.Duration
	// Control is applied on completion. ControlUnset restores the mode that
	// was active before the transition began.
	Control ControlType
	// Phase is applied on completion. PhaseUnset restores the prior phase.
	Phase Phase
}

// Frame is one interpolated step of a transition.
type Frame struct {
	Transition uint64
	Pose       Pose
	Progress   float64
}

// Result is how a transition ended.
type Result struct {
	Transition uint64
	Pose       Pose
	Completed  bool
}

// Coordinator owns the camera state and runs at most one transition at a
// time. All methods are safe for concurrent use.
type Coordinator struct {
	cfg     Config
	clock   Clock
	logger  *slog.Logger
	metrics *metrics

	mu      sync.Mutex
	state   State
	active  *Transition
	pending *queue.Queue[*Transition]
	subs    map[int]chan Frame
	nextSub int
	nextID  uint64
	closed  bool
	wg      sync.WaitGroup
}

// NewCoordinator returns an idle coordinator at cfg.DefaultPose.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	def := DefaultConfig()
	if cfg.Duration <= 0 {
		cfg.Duration = def.Duration
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = def.FrameInterval
	}
	if cfg.DefaultControl == ControlUnset {
		cfg.DefaultControl = def.DefaultControl
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		cfg:     cfg,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		metrics: m,
		state: State{
			Pose:    cfg.DefaultPose,
			Control: cfg.DefaultControl,
			Phase:   PhaseMain,
		},
		pending: queue.New[*Transition](0),
		subs:    make(map[int]chan Frame),
	}, nil
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartTransition begins animating toward req.To. Control is disabled for
// the duration. Cancelling ctx cancels the transition.
func (c *Coordinator) StartTransition(ctx context.Context, req Request) (*Transition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	c.nextID++
	t := &Transition{
		id:   c.nextID,
		c:    c,
		ctx:  ctx,
		req:  req,
		done: make(chan struct{}),
	}
	t.duration = req.Duration
	if t.duration <= 0 {
		t.duration = c.cfg.Duration
	}

	var inherit *Transition
	if c.active != nil {
		switch c.cfg.Policy {
		case PolicyReject:
			c.metrics.outcome("rejected")
			return nil, ErrTransitionInProgress
		case PolicyQueue:
			c.pending.Push(t)
			c.logger.Debug("camera transition queued", "transition", t.id, "pending", c.pending.Len())
			return t, nil
		default:
			inherit = c.active
			c.stopLocked(inherit)
			inherit.finish(Result{Transition: inherit.id, Pose: c.state.Pose}, ErrSuperseded)
			c.metrics.outcome("superseded")
			c.logger.Debug("camera transition superseded", "transition", inherit.id, "by", t.id)
		}
	}

	c.beginLocked(t, inherit)
	return t, nil
}

// Reverse transitions back to the pose the last completed transition
// started from.
func (c *Coordinator) Reverse(ctx context.Context, phase Phase) (*Transition, error) {
	c.mu.Lock()
	if !c.state.HasPrevious {
		c.mu.Unlock()
		return nil, ErrNoPrevious
	}
	to := c.state.Previous
	c.mu.Unlock()

	return c.StartTransition(ctx, Request{To: to, Phase: phase})
}

// SetControl switches the user control mode. It fails while animating.
func (c *Coordinator) SetControl(mode ControlType) error {
	if mode == ControlUnset {
		return errors.New("set control: mode required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Animating {
		return ErrTransitionInProgress
	}
	c.state.Control = mode
	return nil
}

// FinishLoading clears the loading flag raised when a transition completes.
func (c *Coordinator) FinishLoading() {
	c.mu.Lock()
	c.state.Loading = false
	c.mu.Unlock()
}

// Subscribe returns a channel of frames. Slow subscribers miss frames rather
// than stall the animation. The channel is closed by the returned
// unsubscribe func or by Close, whichever comes first.
func (c *Coordinator) Subscribe(buffer int) (<-chan Frame, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Frame, buffer)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Close cancels running and queued transitions and waits for the frame
// loop to exit.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending.GetAndEmpty()
	active := c.active
	if active != nil {
		c.stopLocked(active)
	}
	pose := c.state.Pose
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	if active != nil {
		active.finish(Result{Transition: active.id, Pose: pose}, ErrCancelled)
	}
	for _, t := range pending {
		t.finish(Result{Transition: t.id, Pose: pose}, ErrCancelled)
	}
	c.wg.Wait()
}

// beginLocked starts t. When t supersedes a running transition, the control
// mode and phase to restore are carried over from it.
func (c *Coordinator) beginLocked(t *Transition, inherit *Transition) {
	if t.req.From != nil {
		t.from = *t.req.From
	} else {
		t.from = c.state.Pose
	}
	if inherit != nil {
		t.priorControl = inherit.priorControl
		t.priorPhase = inherit.priorPhase
	} else {
		t.priorControl = c.state.Control
		t.priorPhase = c.state.Phase
	}

	c.state.Pose = t.from
	c.state.Control = ControlDisabled
	c.state.Animating = true
	c.state.Phase = PhaseTransition
	c.active = t

	t.start = c.clock.Now()
	t.ticker = c.clock.NewTicker(c.cfg.FrameInterval)

	c.metrics.outcome("started")
	c.logger.Debug("camera transition started",
		"transition", t.id, "duration", t.duration, "policy", c.cfg.Policy.String())

	c.wg.Add(1)
	go c.run(t)
}

// stopLocked detaches t at the current pose and restores control.
func (c *Coordinator) stopLocked(t *Transition) {
	if c.active != t {
		return
	}
	c.active = nil
	c.state.Animating = false
	c.state.Control = t.priorControl
	c.state.Phase = t.priorPhase
}

func (c *Coordinator) run(t *Transition) {
	defer c.wg.Done()
	defer t.ticker.Stop()

	var ctxDone <-chan struct{}
	if t.ctx != nil {
		ctxDone = t.ctx.Done()
	}

	for {
		select {
		case <-t.done:
			return
		case <-ctxDone:
			c.cancel(t)
			return
		case now := <-t.ticker.C():
			if c.step(t, now) {
				return
			}
		}
	}
}

// step advances t to now. It reports whether the loop should exit.
func (c *Coordinator) step(t *Transition, now time.Time) bool {
	c.mu.Lock()
	if c.active != t {
		c.mu.Unlock()
		return true
	}

	progress := 1.0
	if t.duration > 0 {
		progress = float64(now.Sub(t.start)) / float64(t.duration)
	}
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}

	finished := progress >= 1
	if finished {
		c.completeLocked(t)
	} else {
		c.state.Pose = LerpPose(t.from, t.req.To, Ease(progress))
	}

	// Sends stay under mu so they never race a close.
	frame := Frame{Transition: t.id, Pose: c.state.Pose, Progress: progress}
	for _, ch := range c.subs {
		select {
		case ch <- frame:
		default:
		}
	}
	c.mu.Unlock()

	if !finished {
		return false
	}

	c.metrics.outcome("completed")
	c.metrics.duration.Record(context.Background(), float64(now.Sub(t.start).Milliseconds()))
	c.logger.Debug("camera transition completed", "transition", t.id)

	// The next queued transition is running before waiters wake.
	c.advanceQueue()
	t.finish(Result{Transition: t.id, Pose: t.req.To, Completed: true}, nil)
	return true
}

// completeLocked commits the end pose exactly and hands control back.
func (c *Coordinator) completeLocked(t *Transition) {
	c.active = nil
	c.state.Pose = t.req.To
	c.state.Previous = t.from
	c.state.HasPrevious = true
	c.state.Animating = false
	c.state.Loading = true

	c.state.Control = t.priorControl
	if t.req.Control != ControlUnset {
		c.state.Control = t.req.Control
	}
	c.state.Phase = t.priorPhase
	if t.req.Phase != PhaseUnset {
		c.state.Phase = t.req.Phase
	}
}

func (c *Coordinator) cancel(t *Transition) {
	c.mu.Lock()
	wasActive := c.active == t
	c.stopLocked(t)
	pose := c.state.Pose
	c.mu.Unlock()

	if wasActive {
		c.advanceQueue()
	}
	if t.finish(Result{Transition: t.id, Pose: pose}, ErrCancelled) {
		c.metrics.outcome("cancelled")
	}
}

func (c *Coordinator) advanceQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.active == nil && !c.closed {
		next, ok := c.pending.Pop()
		if !ok {
			return
		}
		if next.finished() {
			continue
		}
		c.beginLocked(next, nil)
	}
}

// Transition is a handle on a requested camera animation.
type Transition struct {
	id  uint64
	c   *Coordinator
	ctx context.Context
	req Request

	from         Pose
	duration     time.Duration
	start        time.Time
	ticker       Ticker
	priorControl ControlType
	priorPhase   Phase

	once   sync.Once
	done   chan struct{}
	result Result
	err    error
}

// ID identifies the transition in emitted frames.
func (t *Transition) ID() uint64 { return t.id }

// Done is closed once the transition has completed, been superseded, or
// been cancelled.
func (t *Transition) Done() <-chan struct{} { return t.done }

// Wait blocks until the transition ends or ctx is done. A nil error means
// the camera reached the requested pose.
func (t *Transition) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return Result{Transition: t.id}, ctx.Err()
	}
}

// Cancel stops the transition at its current pose. Cancelling a finished
// transition is a no-op.
func (t *Transition) Cancel() {
	if t.finished() {
		return
	}
	t.c.cancel(t)
}

func (t *Transition) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Transition) finish(res Result, err error) bool {
	first := false
	t.once.Do(func() {
		t.result = res
		t.err = err
		close(t.done)
		first = true
	})
	return first
}

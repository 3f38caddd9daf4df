package progress

import (
	"fmt"
	"log/slog"
	"math"
)

const (
	// Unbounded is the default cutoff: signals are emitted at any depth.
	Unbounded = math.MaxInt

	// Accumulate, passed as the offset to Step, adds the chunk to the
	// current progress instead of setting it.
	Accumulate int64 = -1
)

// portion is one level of the stack.
type portion struct {
	offset   int64 // where the span starts in the parent's units
	size     int64 // width of the span in the parent's units
	total    int64 // total in this level's own units
	progress int64 // current progress in this level's own units
	data     any
	label    string
}

// Level is a read-only view of one portion of the stack.
type Level struct {
	Offset   int64
	Size     int64
	Total    int64
	Progress int64
	Data     any
	Label    string
}

// Tracker reports the progress of nested operations.
// Use New to create one; the zero value has a cutoff of zero and
// never emits on its own.
type Tracker struct {
	// Configuration, kept across runs
	cutoff      int
	granularity int64
	userContext any
	simple      SimpleFunc
	observer    Observer
	logger      *slog.Logger

	// Run state; the last element of stack is the innermost portion
	stack        []portion
	label        string
	lastReported int64
	stop         bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCutoff sets the maximum depth at which signals are emitted.
// A cutoff of 0 disables all signals except forced ones.
func WithCutoff(depth int) Option {
	return func(t *Tracker) {
		t.cutoff = depth
	}
}

// WithGranularity sets the minimum advance of the overall progress
// required to emit a signal. Default is 1.
func WithGranularity(g int64) Option {
	return func(t *Tracker) {
		t.granularity = g
	}
}

// WithSimpleCallback registers a SimpleFunc.
func WithSimpleCallback(fn SimpleFunc) Option {
	return func(t *Tracker) {
		t.simple = fn
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(t *Tracker) {
		t.observer = o
	}
}

// WithUserContext sets the value passed as Signal.Context.
func WithUserContext(v any) Option {
	return func(t *Tracker) {
		t.userContext = v
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
	}
}

// New creates an uninitialized Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		cutoff:      Unbounded,
		granularity: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Init starts a new run with a single root portion.
// Any previous run is ended first. If total is not positive the tracker
// is left terminated and ErrInvalidTotal is returned.
func (t *Tracker) Init(title string, total int64) error {
	t.End()

	if total <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTotal, total)
	}

	t.stack = append(t.stack, portion{
		size:  total,
		total: total,
		label: title,
	})
	t.label = title
	t.lastReported = 0
	t.stop = false
	return nil
}

// End terminates the current run. It is safe to call at any time.
func (t *Tracker) End() {
	clear(t.stack)
	t.stack = t.stack[:0]
	t.stop = true
	t.label = ""
}

// IsInitialized tells whether a run is in progress.
func (t *Tracker) IsInitialized() bool {
	return len(t.stack) > 0
}

// Depth returns the number of portions on the stack.
func (t *Tracker) Depth() int {
	return len(t.stack)
}

// PortionOption configures a portion created by Enter.
type PortionOption func(*portionOptions)

type portionOptions struct {
	offset int64
	data   any
}

// AtOffset places the new portion at offset in its parent's units.
// By default a portion starts at the parent's current progress.
// Negative values are ignored.
func AtOffset(offset int64) PortionOption {
	return func(o *portionOptions) {
		o.offset = offset
	}
}

// WithData attaches data to the portion; observers see it as
// Signal.LevelData while the portion is innermost.
func WithData(v any) PortionOption {
	return func(o *portionOptions) {
		o.data = v
	}
}

// Enter starts a sub-task worth parentSize units of the current portion,
// reporting its own progress against total.
//
// If the tracker is not initialized, Enter initializes it with label and
// total instead and parentSize is ignored. It returns false if the
// operation should stop.
func (t *Tracker) Enter(parentSize int64, label string, total int64, opts ...PortionOption) bool {
	o := portionOptions{offset: -1}
	for _, opt := range opts {
		opt(&o)
	}

	if !t.IsInitialized() {
		if err := t.Init(label, total); err != nil {
			t.log().Debug("enter could not initialize", "err", err)
			return false
		}
		root := &t.stack[0]
		if o.offset >= 0 {
			root.offset = o.offset
		}
		root.data = o.data
		return !t.stop
	}

	p := portion{
		offset: o.offset,
		size:   parentSize,
		total:  total,
		data:   o.data,
		label:  label,
	}
	if p.offset < 0 {
		p.offset = t.current().progress
	}
	t.stack = append(t.stack, p)

	if label != "" {
		t.label = label
	}

	t.signal(false)
	return !t.stop
}

// Finish ends the current portion and moves the parent's progress to the
// end of the span the portion occupied. Finishing the root ends the run.
// It returns false if the tracker was not initialized or the operation
// should stop.
func (t *Tracker) Finish() bool {
	return t.finish(true)
}

// FinishKeepParent ends the current portion without changing the
// parent's progress.
func (t *Tracker) FinishKeepParent() bool {
	return t.finish(false)
}

func (t *Tracker) finish(updateParent bool) bool {
	if !t.IsInitialized() {
		return false
	}

	last := len(t.stack) - 1
	done := t.stack[last]
	t.stack[last] = portion{}
	t.stack = t.stack[:last]

	if done.label != "" {
		t.label = t.searchLabel()
	}

	if len(t.stack) == 0 {
		t.End()
	} else if updateParent {
		t.current().progress = done.offset + done.size
	}

	t.signal(false)
	return !t.stop
}

// Step advances the current portion by chunk. With offset set to
// Accumulate the chunk is added to the progress; otherwise the progress
// becomes offset + chunk.
//
// It returns false if the tracker is not initialized, chunk is negative,
// or the operation should stop.
func (t *Tracker) Step(chunk, offset int64) bool {
	if !t.IsInitialized() {
		t.log().Debug("step before init")
		return false
	}
	if chunk < 0 {
		t.log().Debug("negative chunk size", "chunk", chunk)
		return false
	}

	p := t.current()
	if offset < 0 {
		p.progress += chunk
	} else {
		p.progress = offset + chunk
	}

	t.signal(false)
	return !t.stop
}

// Increment advances the current portion by one.
func (t *Tracker) Increment() bool {
	return t.Step(1, Accumulate)
}

// Emit forces a signal, ignoring the cutoff and the granularity.
// It returns false if the tracker is not initialized or the operation
// should stop.
func (t *Tracker) Emit() bool {
	if !t.IsInitialized() {
		t.log().Debug("emit before init")
		return false
	}
	t.signal(true)
	return !t.stop
}

// SetLevel overwrites the total and progress of the current portion.
// It is meant for code that receives a tracker on which the caller
// already entered a portion and needs to adjust its scale.
func (t *Tracker) SetLevel(total, progress int64) {
	if !t.IsInitialized() {
		return
	}
	p := t.current()
	p.total = total
	p.progress = progress
}

// Overall returns the root's total and the overall progress,
// without emitting anything.
func (t *Tracker) Overall() (total, progress int64) {
	if !t.IsInitialized() {
		return 0, 0
	}
	return t.stack[0].total, t.fold()
}

// Levels returns a snapshot of the stack, innermost first.
func (t *Tracker) Levels() []Level {
	levels := make([]Level, 0, len(t.stack))
	for i := len(t.stack) - 1; i >= 0; i-- {
		p := t.stack[i]
		levels = append(levels, Level{
			Offset:   p.offset,
			Size:     p.size,
			Total:    p.total,
			Progress: p.progress,
			Data:     p.data,
			Label:    p.label,
		})
	}
	return levels
}

// Clone returns an independent copy of the tracker, including its
// configuration and observers.
func (t *Tracker) Clone() *Tracker {
	c := *t
	c.stack = append([]portion(nil), t.stack...)
	return &c
}

// Label returns the current label.
func (t *Tracker) Label() string { return t.label }

// LastReported returns the overall progress sent with the last signal.
func (t *Tracker) LastReported() int64 { return t.lastReported }

// Cutoff returns the maximum depth at which signals are emitted.
func (t *Tracker) Cutoff() int { return t.cutoff }

// SetCutoff sets the maximum depth at which signals are emitted.
func (t *Tracker) SetCutoff(depth int) { t.cutoff = depth }

// Granularity returns the minimum advance required to emit a signal.
func (t *Tracker) Granularity() int64 { return t.granularity }

// SetGranularity sets the minimum advance required to emit a signal.
func (t *Tracker) SetGranularity(g int64) { t.granularity = g }

// UserContext returns the value passed as Signal.Context.
func (t *Tracker) UserContext() any { return t.userContext }

// SetUserContext sets the value passed as Signal.Context.
func (t *Tracker) SetUserContext(v any) { t.userContext = v }

// SimpleCallback returns the registered SimpleFunc, if any.
func (t *Tracker) SimpleCallback() SimpleFunc { return t.simple }

// SetSimpleCallback registers fn; nil removes it.
func (t *Tracker) SetSimpleCallback(fn SimpleFunc) { t.simple = fn }

// Observer returns the registered Observer, if any.
func (t *Tracker) Observer() Observer { return t.observer }

// SetObserver registers o; nil removes it.
func (t *Tracker) SetObserver(o Observer) { t.observer = o }

// SetStop flags the operation to stop.
func (t *Tracker) SetStop() { t.stop = true }

// ResetStop clears the stop flag.
func (t *Tracker) ResetStop() { t.stop = false }

// ShouldStop tells whether the operation should stop.
func (t *Tracker) ShouldStop() bool { return t.stop }

func (t *Tracker) log() *slog.Logger {
	if t.logger == nil {
		return slog.Default()
	}
	return t.logger
}

// current returns the innermost portion. The stack must not be empty.
func (t *Tracker) current() *portion {
	return &t.stack[len(t.stack)-1]
}

// searchLabel returns the first non-empty label from the innermost
// portion outwards.
func (t *Tracker) searchLabel() string {
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i].label != "" {
			return t.stack[i].label
		}
	}
	return ""
}

// fold scales the innermost progress through every level and returns
// it in the root's units. Division truncates; a level with a zero
// total contributes only its offset.
func (t *Tracker) fold() int64 {
	value := t.current().progress
	for i := len(t.stack) - 1; i >= 0; i-- {
		p := t.stack[i]
		if p.total == 0 {
			value = p.offset
			continue
		}
		value = p.offset + value*p.size/p.total
	}
	return value
}

// signal computes the overall progress and notifies the observers.
func (t *Tracker) signal(bypass bool) {
	if !bypass && len(t.stack) > t.cutoff {
		t.log().Debug("drop signal", "reason", "cutoff", "depth", len(t.stack), "cutoff", t.cutoff)
		return
	}
	if len(t.stack) == 0 {
		return
	}

	value := t.fold()
	if !bypass && value-t.lastReported < t.granularity {
		t.log().Debug("drop signal", "reason", "granularity",
			"progress", value, "last", t.lastReported, "granularity", t.granularity)
		return
	}
	t.lastReported = value

	total := t.stack[0].total
	if t.simple != nil && !t.simple(total, value) {
		t.stop = true
	}
	if t.observer != nil {
		s := Signal{
			Total:     total,
			Progress:  value,
			Label:     t.label,
			LevelData: t.current().data,
			Context:   t.userContext,
		}
		if !t.observer.Observe(s) {
			t.stop = true
		}
	}
}

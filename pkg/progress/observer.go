package progress

// Signal is delivered to an Observer each time the tracker emits.
type Signal struct {
	// Total is the root portion's total size.
	Total int64

	// Progress is the overall progress, in the same units as Total.
	Progress int64

	// Label is the current label (may be empty).
	Label string

	// LevelData is the data attached to the innermost portion.
	LevelData any

	// Context is the tracker-wide user context.
	Context any
}

// Observer receives full progress signals.
// Returning false asks the tracked operation to stop.
type Observer interface {
	Observe(s Signal) bool
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(s Signal) bool

// Observe calls f(s).
func (f ObserverFunc) Observe(s Signal) bool {
	return f(s)
}

// SimpleFunc receives only the overall total and progress.
// Returning false asks the tracked operation to stop.
type SimpleFunc func(total, progress int64) bool

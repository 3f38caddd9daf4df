// Package progress reports the progress of nested operations.
//
// A Tracker keeps a stack of portions. The root portion describes the whole
// job; every call to Enter pushes a sub-task that occupies a span of its
// parent. Sub-tasks report progress in their own units and never need to know
// how large the overall job is: when a signal is emitted, the innermost
// progress is scaled through every level of the stack and the observers
// receive a value expressed in the root's units.
//
// # Usage
//
//	t := progress.New(progress.WithObserver(progress.ObserverFunc(
//	    func(s progress.Signal) bool {
//	        fmt.Printf("%d/%d %s\n", s.Progress, s.Total, s.Label)
//	        return true
//	    })))
//
//	_ = t.Init("copy", 100)
//	t.Enter(30, "scanning", int64(len(dirs)))
//	for range dirs {
//	    if !t.Increment() {
//	        return
//	    }
//	}
//	t.Finish() // the root is now at 30
//
// The label reported with a signal is the first non-empty label found from
// the innermost portion outwards, so a sub-task with an empty label shows the
// text of its parent.
//
// Emission is throttled two ways: signals are dropped while the stack is
// deeper than the cutoff, and while the overall progress has advanced by
// less than the granularity since the last signal. Emit bypasses both.
//
// Observers may ask for the operation to stop by returning false. The stop
// flag is sticky: it stays set until ResetStop or the next Init, and Step,
// Enter, Finish and Emit report it to the caller.
//
// A Tracker is not safe for concurrent use.
package progress

package respawn

// Operation names passed to an Observer.
const (
	OperationScaleOut  = "scale-out"
	OperationTerminate = "terminate"
)

// Observer is notified after every unsatisfied poll attempt of a blocking
// wait. It exists for progress reporting only and cannot influence control
// flow. attempt starts at 1 and resets for each wait.
type Observer interface {
	OnPoll(operation string, attempt int)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(operation string, attempt int)

// OnPoll calls f.
func (f ObserverFunc) OnPoll(operation string, attempt int) {
	f(operation, attempt)
}

// NopObserver returns an Observer that discards all notifications.
func NopObserver() Observer {
	return ObserverFunc(func(string, int) {})
}

package models

// Close reasons
const (
	CloseReasonOwner    = "owner"
	CloseReasonDeadline = "deadline"
)

// Lifecycle is either Open or Closed. Closed is terminal: nothing converts
// a Closed back into an Open.
type Lifecycle interface {
	isLifecycle()
}

type Open struct{}

type Closed struct {
	At     int64  `json:"at"`
	Reason string `json:"reason"`
}

func (Open) isLifecycle()   {}
func (Closed) isLifecycle() {}

// Close is the only transition out of Open.
func (Open) Close(at int64, reason string) Closed {
	return Closed{At: at, Reason: reason}
}

func IsOpen(l Lifecycle) bool {
	_, ok := l.(Open)
	return ok
}

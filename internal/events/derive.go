package events

import "time"

// BuildStart is emitted when a derivation cache starts visiting a type.
// Context carries the cache session.
type BuildStart struct {
	Application string
	Type        string
	Kind        string
}

// BuildFinish is emitted after the visit completes, successfully or not.
type BuildFinish struct {
	Application string
	Type        string
	Kind        string
	Placeholder bool
	Err         error
	Duration    time.Duration
}

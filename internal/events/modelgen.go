package events

import "time"

// ExploreStart is emitted before the model generator explores a type.
type ExploreStart struct {
	Type string
}

// ExploreFinish is emitted after exploration, whatever its status.
type ExploreFinish struct {
	Type     string
	Status   string
	Err      error
	Duration time.Duration
}

// GenerateStart is emitted before an emitter renders models.
type GenerateStart struct {
	Emitter string
	Models  int
}

// GenerateFinish is emitted after an emitter finishes.
type GenerateFinish struct {
	Emitter  string
	Files    int
	Err      error
	Duration time.Duration
}

package derive

import "errors"

var (
	// ErrSkip is returned by a visitor method when the type has nothing to
	// contribute to the application (for example, a struct with no
	// validation rules). The cache memoizes it as "no value".
	ErrSkip = errors.New("nothing to derive")

	// ErrConcurrentBuild is returned when a build is started on a cache that
	// is already building on another goroutine.
	ErrConcurrentBuild = errors.New("generator invoked concurrently")

	// ErrAlreadyCompleted is returned by Store for a completed entry unless
	// overwrite is requested.
	ErrAlreadyCompleted = errors.New("artifact already completed")

	// ErrInconsistentHandler reports a visitor result that contradicts its
	// status, such as a nil artifact without an error.
	ErrInconsistentHandler = errors.New("inconsistent handler result")

	// ErrNoArtifact is returned by Build when the root type produced no value.
	ErrNoArtifact = errors.New("no artifact")
)

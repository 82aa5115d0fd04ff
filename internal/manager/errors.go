package manager

// configError covers request-time configuration problems (no checkpoint
// selected, unresolvable name). Reported before any load is attempted; the
// resident context is never touched.
type configError struct{ msg string }

func (e configError) Error() string { return e.msg }

// ErrConfig constructs a configError.
func ErrConfig(msg string) error { return configError{msg: msg} }

// IsConfigError reports whether err is a configuration problem (map to 404/400).
func IsConfigError(err error) bool {
	_, ok := err.(configError)
	return ok
}

// loadError covers engine failures while constructing a context from
// resolved paths.
type loadError struct{ err error }

func (e loadError) Error() string { return "model load failed: " + e.err.Error() }
func (e loadError) Unwrap() error { return e.err }

// IsLoadError reports whether err occurred during context construction.
func IsLoadError(err error) bool {
	_, ok := err.(loadError)
	return ok
}

// generationError covers runs the engine abandoned, including interrupted
// ones. The loaded context stays valid.
type generationError struct {
	err         error
	interrupted bool
}

func (e generationError) Error() string { return "generation failed: " + e.err.Error() }
func (e generationError) Unwrap() error { return e.err }

// ErrGeneration constructs a generationError.
func ErrGeneration(err error) error { return generationError{err: err} }

// ErrInterrupted constructs an interrupted generationError.
func ErrInterrupted(err error) error { return generationError{err: err, interrupted: true} }

// IsGenerationError reports whether err is a failed or interrupted run.
func IsGenerationError(err error) bool {
	_, ok := err.(generationError)
	return ok
}

// IsInterrupted reports whether err is specifically an interrupted run.
func IsInterrupted(err error) bool {
	ge, ok := err.(generationError)
	return ok && ge.interrupted
}

// dependencyUnavailableError signals a missing native runtime so the HTTP
// layer can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}

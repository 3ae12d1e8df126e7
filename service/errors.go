package service

import "errors"

// Stage failure taxonomy. A stage either fully overwrites its target
// field on the case or leaves it exactly as it was; these errors always
// mean the field was left untouched.
var (
	// ErrCaseNotFound means the case does not exist.
	ErrCaseNotFound = errors.New("case not found")

	// ErrInputMissing means a stage precondition was not met, e.g. no
	// documents uploaded or no extracted facts yet.
	ErrInputMissing = errors.New("stage input missing")

	// ErrUpstreamUnavailable means the model or embedding service was
	// unreachable. The caller may retry the same stage; the stage itself
	// does not retry beyond its transport-level backoff.
	ErrUpstreamUnavailable = errors.New("upstream model service unavailable")

	// ErrMalformedResponse means the model replied but its output failed
	// schema validation. Retrying without changing the input is unlikely
	// to help.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrTemplateNotFound means the requested letter template does not exist.
	ErrTemplateNotFound = errors.New("template not found")
)

package core

import "github.com/pkg/errors"

// Kind classifies a failure the way §7 of the design distinguishes them, so
// callers can branch on what happened instead of matching error strings.
type Kind int

const (
	// KindUnknown is the zero value: an error with no assigned classification.
	KindUnknown Kind = iota
	// KindNotFound: the requested PR/commit is absent at the host.
	KindNotFound
	// KindTransient: network timeout, 5xx, or a rate limit that exhausted its retries.
	KindTransient
	// KindMalformed: unparseable diff input or a bad timestamp.
	KindMalformed
	// KindResourcePolicy: a bootstrap repo exceeded its size ceiling, or a clone failed.
	KindResourcePolicy
	// KindDBIO: a database write failed (a read failure is not an error - it degrades to an empty DB).
	KindDBIO
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed"
	case KindResourcePolicy:
		return "resource_policy"
	case KindDBIO:
		return "db_io"
	default:
		return "unknown"
	}
}

// classifiedError attaches a Kind to a wrapped error without changing its
// message or Unwrap chain.
type classifiedError struct {
	kind Kind
	err  error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }
func (e *classifiedError) Kind() Kind    { return e.kind }

// WithKind wraps err (via github.com/pkg/errors, preserving its stack) and
// tags it with kind. A nil err returns nil.
func WithKind(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: kind, err: errors.Wrap(err, msg)}
}

// WithKindf is WithKind with printf-style formatting.
func WithKindf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: kind, err: errors.Wrapf(err, format, args...)}
}

// ClassifyErr returns the Kind attached to err via WithKind/WithKindf, or
// KindUnknown if err was never classified.
func ClassifyErr(err error) Kind {
	var ce *classifiedError
	for err != nil {
		if c, ok := err.(*classifiedError); ok {
			ce = c
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ce == nil {
		return KindUnknown
	}
	return ce.kind
}

// IsKind reports whether err was classified as kind.
func IsKind(err error, kind Kind) bool {
	return ClassifyErr(err) == kind
}

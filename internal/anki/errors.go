package anki

import (
	"errors"
	"fmt"
)

// Sentinel errors for AnkiConnect operations.
var (
	// ErrUnavailable means AnkiConnect could not be reached at all. The
	// desktop app is probably closed or the add-on is not installed.
	ErrUnavailable = errors.New("anki: connect unavailable")

	// ErrMissingNoteID means an update was attempted for a card that has
	// never been created remotely.
	ErrMissingNoteID = errors.New("anki: card has no remote note id")
)

// TransportError wraps a network-level failure: connection refused, DNS,
// timeout. The request never produced an AnkiConnect response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("anki %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports ErrUnavailable for every transport failure so callers can
// detect "AnkiConnect is down" without inspecting the cause chain.
func (e *TransportError) Is(target error) bool { return target == ErrUnavailable }

// ProtocolError means AnkiConnect answered, but the response did not match
// the envelope contract: not valid JSON, wrong field set, or a result shape
// the action never produces.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("anki %s: protocol: %s", e.Op, e.Reason)
}

// RemoteError carries a non-null error field from an otherwise well-formed
// AnkiConnect response. The message text is AnkiConnect's own.
type RemoteError struct {
	Op      string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("anki %s: remote: %s", e.Op, e.Message)
}

// wrapTransport classifies a request execution failure.
func wrapTransport(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

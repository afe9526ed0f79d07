package sync

// Sync failure reason constants
const (
	// Establishment related reasons
	ReasonAnonymousPrincipal = "anonymous-principal"
	ReasonRemoteSubscribe    = "remote-subscribe-failed"
	ReasonLocalSubscribe     = "local-subscribe-failed"

	// Stream related reasons
	ReasonStreamClosed = "stream-closed"
)

// Error represents a structured sync failure with a machine-readable reason
type Error struct {
	Err     error
	Message string
	Reason  string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

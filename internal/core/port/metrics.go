package port

// AuthEventRecorder counts authentication outcomes.
type AuthEventRecorder interface {
	Record(event, outcome string)
}

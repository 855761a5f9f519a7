package relay

// State is the publisher connection lifecycle position.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateDeclaringTopics
	StateReady
	StatePublishing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateDeclaringTopics:
		return "declaringTopics"
	case StateReady:
		return "ready"
	case StatePublishing:
		return "publishing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

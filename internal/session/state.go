package session

// State is the lifecycle position of a call session.
type State int32

const (
	Connecting State = iota
	AwaitingReadiness
	Greeting
	Conversing
	Finalizing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case AwaitingReadiness:
		return "awaiting_readiness"
	case Greeting:
		return "greeting"
	case Conversing:
		return "conversing"
	case Finalizing:
		return "finalizing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// readinessGate joins "model configured" and "stream started". Whichever
// mark completes the join returns true; every other call returns false.
type readinessGate struct {
	configured bool
	streaming  bool
	fired      bool
}

func (g *readinessGate) markConfigured() bool {
	g.configured = true
	return g.fire()
}

func (g *readinessGate) markStreaming() bool {
	g.streaming = true
	return g.fire()
}

func (g *readinessGate) fire() bool {
	if g.fired || !g.configured || !g.streaming {
		return false
	}
	g.fired = true
	return true
}

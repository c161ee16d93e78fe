// ABOUTME: Playback session state enumeration
// ABOUTME: A single state value replaces separate playing and first-play flags
package playback

// State is where a playback session stands
type State int

const (
	// Idle means no session is running, or the last one was aborted
	Idle State = iota
	// Warming means buffers are being collected before the first play
	Warming
	// Playing means exactly one buffer is on the device
	Playing
	// Draining means the queue ran dry while the stream is still open
	Draining
	// Finished means the stream ended and every buffer has played
	Finished
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Warming:
		return "warming"
	case Playing:
		return "playing"
	case Draining:
		return "draining"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Active reports whether a session in this state is still running
func (s State) Active() bool {
	return s == Warming || s == Playing || s == Draining
}

// ParseState is the inverse of String
func ParseState(s string) (State, bool) {
	for st := Idle; st <= Finished; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return Idle, false
}

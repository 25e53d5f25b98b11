package dailyrecord

import "fmt"

// State is the phase of a sync pass.
type State int

const (
	Idle State = iota
	FetchingMetadata
	FetchingPage
	Merging
)

var stateNames = [...]string{"idle", "fetching_metadata", "fetching_page", "merging"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// transitions lists the legal next states of each state.
var transitions = map[State][]State{
	Idle:             {FetchingMetadata},
	FetchingMetadata: {FetchingPage, Idle},
	FetchingPage:     {Merging, Idle},
	Merging:          {FetchingPage, Idle},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

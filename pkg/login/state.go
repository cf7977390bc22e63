package login

import (
	"errors"
	"fmt"

	"github.com/mpapenbr/itslogin/pkg/model"
)

type State int

const (
	StateIdle State = iota
	StateFetchingConfig
	StateAwaitingRoleSelection
	StateAuthorizing
	StateDecodingToken
	StateVerifying
	StateRoutingSuccess
	StateFailed
)

// Snapshot is the read model for the rendering layer
type Snapshot struct {
	State     State
	Role      model.Role // empty unless a login is in progress or succeeded
	HasConfig bool       // true once the client id is cached
	LastAlert string
	AttemptID string
}

var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[State][]State{
	StateIdle:                  {StateFetchingConfig},
	StateFetchingConfig:        {StateAwaitingRoleSelection, StateAuthorizing, StateFailed},
	StateAwaitingRoleSelection: {StateFetchingConfig, StateAuthorizing},
	StateAuthorizing:           {StateDecodingToken, StateFailed},
	StateDecodingToken:         {StateVerifying, StateFailed},
	StateVerifying:             {StateRoutingSuccess, StateFailed},
	StateRoutingSuccess:        {StateAwaitingRoleSelection, StateFailed},
	StateFailed:                {StateAwaitingRoleSelection},
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateFetchingConfig:
		return "FetchingConfig"
	case StateAwaitingRoleSelection:
		return "AwaitingRoleSelection"
	case StateAuthorizing:
		return "Authorizing"
	case StateDecodingToken:
		return "DecodingToken"
	case StateVerifying:
		return "Verifying"
	case StateRoutingSuccess:
		return "RoutingSuccess"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// InFlight reports whether a login sequence is running in this state
func (s State) InFlight() bool {
	switch s {
	case StateAuthorizing, StateDecodingToken, StateVerifying:
		return true
	default:
		return false
	}
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

package wallet

import (
	"fmt"

	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

// State is the manager's connection state.
type State string

const (
	// StateDisconnected means no provider is active.
	StateDisconnected State = "disconnected"

	// StateConnecting means a connect or the startup restore is in flight.
	StateConnecting State = "connecting"

	// StateConnected means exactly one provider is active.
	StateConnected State = "connected"
)

// legalTransitions defines the allowed state transitions.
// A failed reconnect returns from connecting to connected with the previous
// provider still active.
var legalTransitions = map[State]map[State]bool{
	StateDisconnected: {
		StateConnecting: true,
	},
	StateConnecting: {
		StateConnected:    true,
		StateDisconnected: true,
	},
	StateConnected: {
		StateConnecting:   true,
		StateDisconnected: true,
	},
}

// validateTransition checks a transition against legalTransitions. Entering
// connecting while already connecting is reported as ALREADY_CONNECTING.
func validateTransition(from, to State) error {
	if from == StateConnecting && to == StateConnecting {
		return errors.NewWalletError(errors.ALREADY_CONNECTING, "a wallet connection is already in progress", nil)
	}

	validToStates, exists := legalTransitions[from]
	if !exists {
		return errors.NewWalletError(
			errors.TRANSITION_INVALID,
			fmt.Sprintf("unknown source state: %s", from),
			nil,
		)
	}

	if !validToStates[to] {
		return errors.NewWalletError(
			errors.TRANSITION_INVALID,
			fmt.Sprintf("illegal transition from %s to %s", from, to),
			nil,
		)
	}

	return nil
}

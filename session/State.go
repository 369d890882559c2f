/*
File Name:  State.go

Peer session state machine (§4.5). There is no teacher analogue for this
FSM — Peernet authenticates every UDP packet individually and has no
handshake — so the states and transitions are grounded directly on spec and
on original_source/QuantumGateLib/Core/Message.cpp's message-type-driven
phase dispatch.
*/

package session

// State is one stage of a peer session's lifetime.
type State uint8

const (
	StateUnknown State = iota
	StateInitialized
	StateHandshake
	StateSessionInit
	StateReady
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateInitialized:
		return "Initialized"
	case StateHandshake:
		return "Handshake"
	case StateSessionInit:
		return "SessionInit"
	case StateReady:
		return "Ready"
	case StateDisconnecting:
		return "Disconnecting"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Invalid"
	}
}

// DisconnectCause records why a session left the Ready/Handshake state.
type DisconnectCause uint8

const (
	CauseNone DisconnectCause = iota
	CauseTimedOut
	CauseLocalClose
	CauseRemoteClose
	CauseProtocolError
	CauseAuthenticationFailed
	CauseNoCommonAlgorithm
)

// validTransitions enumerates every allowed State -> State edge. A session
// that is asked to move outside this table stays where it is and reports
// an error, rather than silently skipping states.
var validTransitions = map[State]map[State]bool{
	StateUnknown:       {StateInitialized: true},
	StateInitialized:   {StateHandshake: true, StateDisconnected: true},
	StateHandshake:     {StateSessionInit: true, StateDisconnecting: true, StateDisconnected: true},
	StateSessionInit:   {StateReady: true, StateDisconnecting: true, StateDisconnected: true},
	StateReady:         {StateDisconnecting: true, StateDisconnected: true},
	StateDisconnecting: {StateDisconnected: true},
	StateDisconnected:  {},
}

// CanTransition reports whether moving from 'from' to 'to' is allowed.
func CanTransition(from, to State) bool {
	return validTransitions[from][to]
}

package server

import (
	"sync/atomic"

	"github.com/sirosfoundation/go-chat-backend/internal/metrics"
)

// State is a step of the server lifecycle. A server moves forward only:
//
//	Unstarted -> Binding -> Listening -> DatabaseConnecting
//	          -> DatabaseReady | DatabaseFailed -> Terminated
//
// Terminated is reachable from every state.
type State int32

const (
	Unstarted State = iota
	Binding
	Listening
	DatabaseConnecting
	DatabaseReady
	DatabaseFailed
	Terminated
)

var stateNames = []string{
	"Unstarted",
	"Binding",
	"Listening",
	"DatabaseConnecting",
	"DatabaseReady",
	"DatabaseFailed",
	"Terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// stateTracker holds the current state for concurrent readers
type stateTracker struct {
	v atomic.Int32
}

func (t *stateTracker) Load() State {
	return State(t.v.Load())
}

func (t *stateTracker) Store(s State) {
	t.v.Store(int32(s))
	metrics.SetServerState(s.String(), stateNames)
}

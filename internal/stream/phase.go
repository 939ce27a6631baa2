// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package stream

// Phase is the relay lifecycle state.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseStarting Phase = "starting"
	PhaseActive   Phase = "active"
	PhaseStopping Phase = "stopping"
)

type transition struct {
	From Phase
	To   Phase
}

// transitionsTable lists every allowed edge of the lifecycle.
var transitionsTable = []transition{
	// start path
	{From: PhaseIdle, To: PhaseStarting},
	{From: PhaseStarting, To: PhaseActive},

	// stop path
	{From: PhaseStarting, To: PhaseStopping},
	{From: PhaseActive, To: PhaseStopping},
	{From: PhaseStopping, To: PhaseIdle},

	// failures: resolution/launch error, process exit
	{From: PhaseStarting, To: PhaseIdle},
	{From: PhaseActive, To: PhaseIdle},
}

// allowed reports whether from -> to is a legal transition.
func allowed(from, to Phase) bool {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.To == to {
			return true
		}
	}
	return false
}

package chat

import (
	"github.com/addanuj/mcp-client/internal/memory"
)

// Phase is a step of the turn state machine.
type Phase string

const (
	PhaseClassifying           Phase = "classifying"
	PhaseAwaitingClarification Phase = "awaiting-clarification"
	PhaseAwaitingConfirmation  Phase = "awaiting-confirmation"
	PhaseDeclined              Phase = "declined"
	PhaseDeciding              Phase = "deciding"
	PhaseInvokingTool          Phase = "invoking-tool"
	PhaseFormatting            Phase = "formatting"
	PhaseDone                  Phase = "done"
	PhaseFailed                Phase = "failed"
)

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseDone, PhaseFailed, PhaseAwaitingClarification, PhaseAwaitingConfirmation, PhaseDeclined:
		return true
	}
	return false
}

// TurnState is the working state of one turn. It never outlives the turn.
type TurnState struct {
	Message string
	Phase   Phase
	History []Phase
	Rounds  int
	// Confirmed lets destructive calls run; the user approved them last turn.
	Confirmed   bool
	Invocations []*memory.ToolInvocation
	// lastRound indexes into Invocations where the latest tool round starts.
	lastRound int
	Answer    string
}

func newTurnState(message string) *TurnState {
	return &TurnState{Message: message, Phase: PhaseClassifying, History: []Phase{PhaseClassifying}}
}

func (s *TurnState) enter(p Phase) {
	if s.Phase.Terminal() || s.Phase == p {
		return
	}
	s.Phase = p
	s.History = append(s.History, p)
}

func (s *TurnState) startRound() {
	s.Rounds++
	s.lastRound = len(s.Invocations)
}

func (s *TurnState) lastRoundInvocations() []*memory.ToolInvocation {
	return s.Invocations[s.lastRound:]
}

func (s *TurnState) exchange(failed bool) memory.Exchange {
	invocations := make([]memory.ToolInvocation, len(s.Invocations))
	for i, inv := range s.Invocations {
		invocations[i] = *inv
	}
	return memory.Exchange{
		UserMessage: s.Message,
		Response:    s.Answer,
		Invocations: invocations,
		Failed:      failed,
	}
}

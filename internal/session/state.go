package session

import "fmt"

type State string

const (
	StateReceived            State = "received"
	StateLedgerApplied       State = "ledger_applied"
	StateStatsUpdated        State = "stats_updated"
	StateChallengesEvaluated State = "challenges_evaluated"
	StateLeaderboardUpdated  State = "leaderboard_updated"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

var next = map[State]State{
	StateReceived:            StateLedgerApplied,
	StateLedgerApplied:       StateStatsUpdated,
	StateStatsUpdated:        StateChallengesEvaluated,
	StateChallengesEvaluated: StateLeaderboardUpdated,
	StateLeaderboardUpdated:  StateDone,
}

// machine walks one event through the fixed step order.
type machine struct {
	state State
}

func newMachine() *machine {
	return &machine{state: StateReceived}
}

func (m *machine) advance(to State) error {
	if to == StateFailed {
		m.state = StateFailed
		return nil
	}
	if next[m.state] != to {
		return fmt.Errorf("illegal session state transition %s -> %s", m.state, to)
	}
	m.state = to
	return nil
}

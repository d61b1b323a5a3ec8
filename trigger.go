package session

// MatchType is a non-zero match code naming the edge or level a trigger
// match fires on (e.g. rising edge, falling edge, high, low). The zero
// value is deliberately invalid.
type MatchType int

// Match pairs a channel with the condition that must hold on it for a
// trigger stage to be satisfied.
type Match struct {
	Channel   *Channel
	MatchType MatchType
}

// Stage is one step of a multi-stage trigger: a set of matches that must
// all be satisfied, in order, before the stage advances.
type Stage struct {
	Matches []Match
}

// Trigger is a session's optional trigger specification: an ordered list
// of stages.
type Trigger struct {
	Stages []Stage
}

// Verify checks the trigger is well-formed: every stage must have at
// least one match, and every match must name a channel and carry a
// non-zero match type. Verify returns ErrInvalidTrigger on the first
// violation found. A nil trigger is trivially valid.
func (t *Trigger) Verify() error {
	if t == nil {
		return nil
	}
	for i, stage := range t.Stages {
		if len(stage.Matches) == 0 {
			return wrapf(CodeERR, ErrInvalidTrigger, "stage %d has no matches", i)
		}
		for j, m := range stage.Matches {
			if m.Channel == nil {
				return wrapf(CodeERR, ErrInvalidTrigger, "stage %d match %d has no channel", i, j)
			}
			if m.MatchType == 0 {
				return wrapf(CodeERR, ErrInvalidTrigger, "stage %d match %d has a zero match type", i, j)
			}
		}
	}
	return nil
}

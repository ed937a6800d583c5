package domain

// StageState is the lifecycle state of a stage. The zero value is not
// valid; stages are created as StageScheduled.
type StageState string

const (
	StageScheduled  StageState = "agendada"
	StageQualifying StageState = "em_andamento"
	StageBattles    StageState = "batalhas"
	StageFinished   StageState = "finalizada"
)

func (s StageState) Valid() bool {
	switch s {
	case StageScheduled, StageQualifying, StageBattles, StageFinished:
		return true
	}
	return false
}

// Terminal reports whether the state admits no further mutation on the
// stage or any of its child records.
func (s StageState) Terminal() bool {
	return s == StageFinished
}

// CanTransition reports whether the state machine allows moving from s
// to next. Force-cancel to StageFinished is allowed from any state and
// is handled by the caller with admin authority.
func (s StageState) CanTransition(next StageState) bool {
	switch s {
	case StageScheduled:
		return next == StageQualifying
	case StageQualifying:
		return next == StageBattles
	case StageBattles:
		return next == StageFinished
	}
	return false
}

package domain

// Status represents the lifecycle of a game
type Status string

const (
	StatusSetup    Status = "SETUP"    // Roster being built, no question yet
	StatusPlaying  Status = "PLAYING"  // A turn is in progress
	StatusFinished Status = "FINISHED" // Someone reached the win threshold
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if a transition from current status to target status is valid
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusSetup:
		return target == StatusPlaying
	case StatusPlaying:
		return target == StatusFinished
	}
	return false
}

// Stage represents the sub-state of a turn
type Stage string

const (
	StageDirect         Stage = "DIRECT"          // Free-text answer, 2 points
	StageMultipleChoice Stage = "MULTIPLE_CHOICE" // Pick one of the options, 1 point
	StageResult         Stage = "RESULT"          // Outcome shown, waiting for next turn
)

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// Timed reports whether a countdown runs during this stage
func (s Stage) Timed() bool {
	return s == StageDirect || s == StageMultipleChoice
}

// CanTransitionTo checks if a transition from current stage to target stage is valid.
// RESULT to DIRECT is only legal as the start of a new turn.
func (s Stage) CanTransitionTo(target Stage) bool {
	validTransitions := map[Stage][]Stage{
		StageDirect:         {StageMultipleChoice, StageResult},
		StageMultipleChoice: {StageResult},
		StageResult:         {StageDirect},
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, stage := range allowed {
		if stage == target {
			return true
		}
	}
	return false
}

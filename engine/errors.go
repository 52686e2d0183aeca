package engine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition    = errors.New("operation not allowed in current cycle state")
	ErrEmptyPlan            = errors.New("weekly plan has no active habits")
	ErrAssessmentLocked     = errors.New("assessment is locked until the strategy changes")
	ErrNoAreas              = errors.New("assessment has no areas")
	ErrIncompleteAssessment = errors.New("every area must be scored before submitting")
	ErrInvalidScore         = errors.New("score out of range")
	ErrUnknownDimension     = errors.New("unknown dimension")
	ErrInvalidStatus        = errors.New("unknown habit status")
	ErrHabitNotFound        = errors.New("habit not found")
	ErrAreaNotFound         = errors.New("assessment area not found")
	ErrUnknownDay           = errors.New("unknown day")
	ErrFutureDay            = errors.New("future days cannot be edited")
	ErrTaskNotFound         = errors.New("task not found")
	ErrNoProfile            = errors.New("no user profile")
)

// TransitionError is returned when an operation is attempted from a state
// that does not allow it.
type TransitionError struct {
	Op    string
	State CycleState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed while %s", e.Op, e.State)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

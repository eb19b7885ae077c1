package roster

import "fmt"

type Stage string

const (
	StagePrimary   Stage = "primary"
	StageSecondary Stage = "secondary"
)

const (
	PrimaryMaxGrade   = 8
	SecondaryMaxGrade = 4
)

func (s Stage) Valid() bool {
	return s == StagePrimary || s == StageSecondary
}

// MaxGrade is the highest grade a course of this stage can have.
func (s Stage) MaxGrade() int {
	switch s {
	case StagePrimary:
		return PrimaryMaxGrade
	case StageSecondary:
		return SecondaryMaxGrade
	default:
		return 0
	}
}

// Title is the display form used in row messages.
func (s Stage) Title() string {
	switch s {
	case StagePrimary:
		return "Primary"
	case StageSecondary:
		return "Secondary"
	default:
		return string(s)
	}
}

// Level is the canonical (stage, grade) of a course.
type Level struct {
	Stage Stage `json:"stage"`
	Grade int   `json:"grade"`
}

func (l Level) Valid() bool {
	return l.Stage.Valid() && l.Grade >= 1 && l.Grade <= l.Stage.MaxGrade()
}

func (l Level) String() string {
	return fmt.Sprintf("%s,%d", l.Stage.Title(), l.Grade)
}

// DefaultLevel is used when a level cannot be classified.
var DefaultLevel = Level{Stage: StagePrimary, Grade: 1}

// internal/domain/care/subject.go
package care

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ActionKind identifies one independent maintenance cycle on a subject.
type ActionKind string

const (
	ActionWater    ActionKind = "WATER"
	ActionNutrient ActionKind = "NUTRIENT"
)

// AllActionKinds returns the closed set of action kinds in evaluation order.
func AllActionKinds() []ActionKind {
	return []ActionKind{ActionWater, ActionNutrient}
}

func (k ActionKind) Valid() bool {
	switch k {
	case ActionWater, ActionNutrient:
		return true
	default:
		return false
	}
}

// ParseActionKind accepts the canonical names plus the verbs used in chat commands.
func ParseActionKind(s string) (ActionKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WATER", "W":
		return ActionWater, nil
	case "NUTRIENT", "FEED", "FERTILIZE", "N":
		return ActionNutrient, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownActionKind, s)
	}
}

// Subject is an owned entity with one or more recurring care cycles.
// Corresponds to the 'care_subjects' table.
type Subject struct {
	ID        int64
	OwnerID   int64
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cycle is the recurring interval for one action kind on one subject.
// Corresponds to the 'care_cycles' table.
type Cycle struct {
	SubjectID      int64
	Kind           ActionKind
	IntervalDays   int
	LastActionDate sql.NullTime // unknown until the first completion
	UpdatedAt      time.Time
}

package model

import (
	"fmt"
	"strings"
	"time"
)

// Step is the spacing between generated template reminders.
type Step string

const (
	StepFourHours  Step = "Four hours"
	StepThreeHours Step = "Three hours"
	StepTwoHours   Step = "Two hours"
	StepHour       Step = "Hour"
	StepHalfHour   Step = "30 minutes"
)

// Steps lists every step, largest first.
var Steps = []Step{StepFourHours, StepThreeHours, StepTwoHours, StepHour, StepHalfHour}

// Duration returns the increment, or 0 for an unknown step.
func (s Step) Duration() time.Duration {
	switch s {
	case StepFourHours:
		return 4 * time.Hour
	case StepThreeHours:
		return 3 * time.Hour
	case StepTwoHours:
		return 2 * time.Hour
	case StepHour:
		return time.Hour
	case StepHalfHour:
		return 30 * time.Minute
	}
	return 0
}

// ParseStep matches a label case-insensitively; durations like "2h" or
// "30m" are accepted too.
func ParseStep(s string) (Step, error) {
	s = strings.TrimSpace(s)
	for _, st := range Steps {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		for _, st := range Steps {
			if st.Duration() == d {
				return st, nil
			}
		}
	}
	return "", fmt.Errorf("invalid step %q", s)
}

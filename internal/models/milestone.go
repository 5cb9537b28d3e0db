package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMilestone возвращается при разборе неизвестного этапа напоминания.
var ErrUnknownMilestone = errors.New("unknown alert milestone")

// Milestone этап напоминания относительно даты платежа.
type Milestone string

const (
	MilestoneD7   Milestone = "D_7"
	MilestoneD3   Milestone = "D_3"
	MilestoneD1   Milestone = "D_1"
	MilestoneDDay Milestone = "D_DAY"
)

// Milestones все этапы в порядке генерации: от самого раннего к дню платежа.
var Milestones = []Milestone{MilestoneD7, MilestoneD3, MilestoneD1, MilestoneDDay}

// ParseMilestone разбирает строковое имя этапа.
func ParseMilestone(s string) (Milestone, error) {
	switch m := Milestone(s); m {
	case MilestoneD7, MilestoneD3, MilestoneD1, MilestoneDDay:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMilestone, s)
	}
}

// OffsetDays количество дней до платежа, за которое срабатывает этап.
func (m Milestone) OffsetDays() int {
	switch m {
	case MilestoneD7:
		return 7
	case MilestoneD3:
		return 3
	case MilestoneD1:
		return 1
	default:
		return 0
	}
}

// DisplayName человекочитаемое имя этапа для писем.
func (m Milestone) DisplayName() string {
	switch m {
	case MilestoneD7:
		return "D-7"
	case MilestoneD3:
		return "D-3"
	case MilestoneD1:
		return "D-1"
	case MilestoneDDay:
		return "D-Day"
	default:
		return string(m)
	}
}

// UnmarshalJSON не пропускает неизвестные этапы из очереди.
func (m *Milestone) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMilestone(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

package levels

import (
	"fmt"
	"strings"

	"github.com/2beens/gymtracker/internal/validation"

	"go.uber.org/multierr"
)

type WorkoutDayRequest struct {
	// ID is set for days that already exist; days without it are created.
	ID        *int   `json:"id" validate:"omitempty,min=1"`
	Name      string `json:"name" validate:"required,max=100"`
	DayNumber int    `json:"dayNumber" validate:"min=1,max=7"`
}

type LevelRequest struct {
	Name        string              `json:"name" validate:"required,max=100"`
	Description string              `json:"description" validate:"max=1000"`
	DaysPerWeek int                 `json:"daysPerWeek" validate:"min=1,max=7"`
	WorkoutDays []WorkoutDayRequest `json:"workoutDays" validate:"dive"`
}

// Validate normalizes the request and checks the tag rules together with the
// rules spanning several fields.
func (req *LevelRequest) Validate() error {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	for i := range req.WorkoutDays {
		req.WorkoutDays[i].Name = strings.TrimSpace(req.WorkoutDays[i].Name)
	}

	err := validation.Struct(req)

	if req.DaysPerWeek >= 1 && len(req.WorkoutDays) > req.DaysPerWeek {
		err = multierr.Append(err, validation.NewFieldError(
			"workoutDays", "must have at most %d days", req.DaysPerWeek,
		))
	}

	seenNumbers := make(map[int]bool)
	seenIDs := make(map[int]bool)
	for i, day := range req.WorkoutDays {
		if req.DaysPerWeek >= 1 && day.DayNumber > req.DaysPerWeek && day.DayNumber <= 7 {
			err = multierr.Append(err, validation.NewFieldError(
				fmt.Sprintf("workoutDays[%d].dayNumber", i), "must be at most %d", req.DaysPerWeek,
			))
		}
		if seenNumbers[day.DayNumber] {
			err = multierr.Append(err, validation.NewFieldError(
				fmt.Sprintf("workoutDays[%d].dayNumber", i), "is duplicated",
			))
		}
		seenNumbers[day.DayNumber] = true

		if day.ID != nil {
			if seenIDs[*day.ID] {
				err = multierr.Append(err, validation.NewFieldError(
					fmt.Sprintf("workoutDays[%d].id", i), "is duplicated",
				))
			}
			seenIDs[*day.ID] = true
		}
	}

	return err
}

func (req *LevelRequest) ToLevel() Level {
	level := Level{
		Name:        req.Name,
		Description: req.Description,
		DaysPerWeek: req.DaysPerWeek,
		WorkoutDays: make([]WorkoutDay, 0, len(req.WorkoutDays)),
	}
	for _, day := range req.WorkoutDays {
		wd := WorkoutDay{
			Name:      day.Name,
			DayNumber: day.DayNumber,
		}
		if day.ID != nil {
			wd.ID = *day.ID
		}
		level.WorkoutDays = append(level.WorkoutDays, wd)
	}
	return level
}

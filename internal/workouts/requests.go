package workouts

import (
	"fmt"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/validation"
)

type SetRequest struct {
	Reps       int     `json:"reps" validate:"min=0,max=1000"`
	Weight     float64 `json:"weight" validate:"min=0,max=2000"`
	WeightUnit string  `json:"weightUnit" validate:"omitempty,oneof=kg lbs"`
}

type ExerciseRequest struct {
	Name string       `json:"name" validate:"required,max=100"`
	Sets []SetRequest `json:"sets" validate:"required,min=1,dive"`
}

type WorkoutRequest struct {
	Date         string            `json:"date" validate:"required,datetime=2006-01-02"`
	Name         string            `json:"name" validate:"max=100"`
	Notes        string            `json:"notes" validate:"max=2000"`
	WorkoutDayID *int              `json:"workoutDayId" validate:"omitempty,min=1"`
	Exercises    []ExerciseRequest `json:"exercises" validate:"required,min=1,dive"`
}

func (req *WorkoutRequest) Validate() error {
	req.Date = strings.TrimSpace(req.Date)
	req.Name = strings.TrimSpace(req.Name)
	req.Notes = strings.TrimSpace(req.Notes)
	for i := range req.Exercises {
		ex := &req.Exercises[i]
		ex.Name = strings.TrimSpace(ex.Name)
		for j := range ex.Sets {
			ex.Sets[j].WeightUnit = strings.ToLower(strings.TrimSpace(ex.Sets[j].WeightUnit))
		}
	}
	return validation.Struct(req)
}

// ToWorkout builds the workout for userID. Exercises and sets are numbered
// in request order starting from 1.
func (req *WorkoutRequest) ToWorkout(userID int) (Workout, error) {
	date, err := time.Parse(DateLayout, req.Date)
	if err != nil {
		return Workout{}, fmt.Errorf("parse date: %w", err)
	}

	w := Workout{
		UserID:       userID,
		WorkoutDayID: req.WorkoutDayID,
		Name:         req.Name,
		Date:         date,
		Notes:        req.Notes,
		Exercises:    make([]Exercise, 0, len(req.Exercises)),
	}
	for i, exReq := range req.Exercises {
		ex := Exercise{
			Name:     exReq.Name,
			Position: i + 1,
			Sets:     make([]Set, 0, len(exReq.Sets)),
		}
		for j, setReq := range exReq.Sets {
			unit := WeightUnit(setReq.WeightUnit)
			if unit == "" {
				unit = UnitKg
			}
			ex.Sets = append(ex.Sets, Set{
				SetNumber:  j + 1,
				Reps:       setReq.Reps,
				Weight:     setReq.Weight,
				WeightUnit: unit,
			})
		}
		w.Exercises = append(w.Exercises, ex)
	}
	return w, nil
}

package workouts

import (
	"errors"
	"time"
)

var (
	ErrWorkoutNotFound      = errors.New("workout not found")
	ErrWorkoutDayNotInLevel = errors.New("workout day is not part of the user's level")
	ErrInvalidSet           = errors.New("invalid set values")
)

type WeightUnit string

const (
	UnitKg  WeightUnit = "kg"
	UnitLbs WeightUnit = "lbs"
)

// KilosPerPound converts pounds to kilograms.
const KilosPerPound = 0.45359237

const DateLayout = "2006-01-02"

const defaultWorkoutName = "Workout"

type Set struct {
	ID         int        `json:"id"`
	SetNumber  int        `json:"setNumber"`
	Reps       int        `json:"reps"`
	Weight     float64    `json:"weight"`
	WeightUnit WeightUnit `json:"weightUnit"`
}

func (s Set) WeightKg() float64 {
	if s.WeightUnit == UnitLbs {
		return s.Weight * KilosPerPound
	}
	return s.Weight
}

func (s Set) VolumeKg() float64 {
	return s.WeightKg() * float64(s.Reps)
}

type Exercise struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Sets     []Set  `json:"sets"`
}

func (e Exercise) VolumeKg() float64 {
	var volume float64
	for _, s := range e.Sets {
		volume += s.VolumeKg()
	}
	return volume
}

type Workout struct {
	ID             int        `json:"id"`
	UserID         int        `json:"userId"`
	WorkoutDayID   *int       `json:"workoutDayId"`
	WorkoutDayName string     `json:"workoutDayName,omitempty"`
	Name           string     `json:"name"`
	Date           time.Time  `json:"date"`
	Notes          string     `json:"notes"`
	Exercises      []Exercise `json:"exercises"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (w *Workout) SetsCount() int {
	var count int
	for _, e := range w.Exercises {
		count += len(e.Sets)
	}
	return count
}

func (w *Workout) VolumeKg() float64 {
	var volume float64
	for _, e := range w.Exercises {
		volume += e.VolumeKg()
	}
	return volume
}

// ListParams selects a page of one user's workouts. Zero From/To mean no bound.
type ListParams struct {
	UserID int
	From   time.Time
	To     time.Time
	Page   int
	Size   int
}

// ListAllParams selects workouts without paging. UserID 0 means every user.
type ListAllParams struct {
	UserID       int
	From         time.Time
	To           time.Time
	CreatedAfter time.Time
}

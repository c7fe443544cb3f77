package levels

import (
	"errors"
	"time"
)

var (
	ErrLevelNotFound      = errors.New("level not found")
	ErrLevelNameTaken     = errors.New("level name already taken")
	ErrWorkoutDayNotFound = errors.New("workout day does not belong to the level")
)

// Level is a training program an admin assigns to users.
type Level struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	DaysPerWeek int          `json:"daysPerWeek"`
	WorkoutDays []WorkoutDay `json:"workoutDays"`
	UsersCount  int          `json:"usersCount"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type WorkoutDay struct {
	ID        int    `json:"id"`
	LevelID   int    `json:"levelId"`
	Name      string `json:"name"`
	DayNumber int    `json:"dayNumber"`
}

// WorkoutDay returns the day with the given id, or nil.
func (l *Level) WorkoutDay(id int) *WorkoutDay {
	for i := range l.WorkoutDays {
		if l.WorkoutDays[i].ID == id {
			return &l.WorkoutDays[i]
		}
	}
	return nil
}

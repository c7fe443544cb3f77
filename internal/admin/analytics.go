package admin

import "time"

const (
	topExercisesLimit = 10
	overviewWeeks     = 12
	noLevelName       = "No level"
)

type UserCounts struct {
	Total       int `json:"total"`
	Admins      int `json:"admins"`
	NewThisWeek int `json:"newThisWeek"`
}

type WorkoutCounts struct {
	Total               int `json:"total"`
	ThisWeek            int `json:"thisWeek"`
	LastWeek            int `json:"lastWeek"`
	ActiveUsersThisWeek int `json:"activeUsersThisWeek"`
}

type LevelCount struct {
	Level string `json:"level"`
	Users int    `json:"users"`
}

type ExerciseCount struct {
	Exercise string `json:"exercise"`
	Workouts int    `json:"workouts"`
}

type WeekCount struct {
	WeekStart string `json:"weekStart"`
	Workouts  int    `json:"workouts"`
}

// Overview is the platform wide summary shown to admins.
type Overview struct {
	GeneratedAt     time.Time       `json:"generatedAt"`
	WeekStart       string          `json:"weekStart"`
	Users           UserCounts      `json:"users"`
	Workouts        WorkoutCounts   `json:"workouts"`
	UsersPerLevel   []LevelCount    `json:"usersPerLevel"`
	TopExercises    []ExerciseCount `json:"topExercises"`
	WorkoutsPerWeek []WeekCount     `json:"workoutsPerWeek"`
}

// UserActivity is one row of the admin activity table.
type UserActivity struct {
	UserID           int    `json:"userId"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	Level            string `json:"level"`
	TotalWorkouts    int    `json:"totalWorkouts"`
	WorkoutsThisWeek int    `json:"workoutsThisWeek"`
	CurrentStreak    int    `json:"currentStreak"`
	LastWorkoutDate  string `json:"lastWorkoutDate,omitempty"`
}

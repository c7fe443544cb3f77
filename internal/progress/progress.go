package progress

import (
	"math"
	"time"

	"github.com/2beens/gymtracker/internal/workouts"
)

const (
	recentWorkoutsCount = 5
	activityDays        = 84
	volumeWeeks         = 12
)

type WeekStats struct {
	Start            string  `json:"start"`
	End              string  `json:"end"`
	WorkoutsThisWeek int     `json:"workoutsThisWeek"`
	VolumeKg         float64 `json:"volumeKg"`
	WorkoutsLastWeek int     `json:"workoutsLastWeek"`
}

type LevelProgress struct {
	ID             int               `json:"id"`
	Name           string            `json:"name"`
	DaysPerWeek    int               `json:"daysPerWeek"`
	WorkoutDays    []LevelWorkoutDay `json:"workoutDays"`
	CompletedDays  []int             `json:"completedDays"`
	NextWorkoutDay *LevelWorkoutDay  `json:"nextWorkoutDay"`
	WeekCompletion int               `json:"weekCompletion"`
}

type LevelWorkoutDay struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	DayNumber int    `json:"dayNumber"`
	Completed bool   `json:"completed"`
}

type WorkoutSummary struct {
	ID             int     `json:"id"`
	Date           string  `json:"date"`
	Name           string  `json:"name"`
	ExercisesCount int     `json:"exercisesCount"`
	SetsCount      int     `json:"setsCount"`
	VolumeKg       float64 `json:"volumeKg"`
}

type DayActivity struct {
	Date     string `json:"date"`
	Workouts int    `json:"workouts"`
}

type Dashboard struct {
	UserID         int              `json:"userId"`
	Today          string           `json:"today"`
	CurrentStreak  int              `json:"currentStreak"`
	LongestStreak  int              `json:"longestStreak"`
	TotalWorkouts  int              `json:"totalWorkouts"`
	Week           WeekStats        `json:"week"`
	Level          *LevelProgress   `json:"level"`
	RecentWorkouts []WorkoutSummary `json:"recentWorkouts"`
	Activity       []DayActivity    `json:"activity"`
}

// ExercisePoint aggregates the sets of one exercise within one workout.
type ExercisePoint struct {
	WorkoutID     int     `json:"workoutId"`
	Date          string  `json:"date"`
	WorkoutName   string  `json:"workoutName"`
	MaxWeightKg   float64 `json:"maxWeightKg"`
	TotalReps     int     `json:"totalReps"`
	TotalVolumeKg float64 `json:"totalVolumeKg"`
	Sets          int     `json:"sets"`
}

type Aggregate struct {
	Workouts      int     `json:"workouts"`
	MaxWeightKg   float64 `json:"maxWeightKg"`
	TotalReps     int     `json:"totalReps"`
	TotalVolumeKg float64 `json:"totalVolumeKg"`
}

func (a Aggregate) Sub(other Aggregate) Aggregate {
	return Aggregate{
		Workouts:      a.Workouts - other.Workouts,
		MaxWeightKg:   round2(a.MaxWeightKg - other.MaxWeightKg),
		TotalReps:     a.TotalReps - other.TotalReps,
		TotalVolumeKg: round2(a.TotalVolumeKg - other.TotalVolumeKg),
	}
}

func (a *Aggregate) add(p ExercisePoint) {
	a.Workouts++
	a.MaxWeightKg = math.Max(a.MaxWeightKg, p.MaxWeightKg)
	a.TotalReps += p.TotalReps
	a.TotalVolumeKg = round2(a.TotalVolumeKg + p.TotalVolumeKg)
}

type WeekOverWeek struct {
	ThisWeek Aggregate `json:"thisWeek"`
	LastWeek Aggregate `json:"lastWeek"`
	Diff     Aggregate `json:"diff"`
}

type ExerciseProgress struct {
	Exercise       string          `json:"exercise"`
	From           string          `json:"from,omitempty"`
	To             string          `json:"to,omitempty"`
	Points         []ExercisePoint `json:"points"`
	PersonalBestKg float64         `json:"personalBestKg"`
	WeekOverWeek   WeekOverWeek    `json:"weekOverWeek"`
}

type ExerciseSummary struct {
	Exercise       string        `json:"exercise"`
	Workouts       int           `json:"workouts"`
	Latest         ExercisePoint `json:"latest"`
	PersonalBestKg float64       `json:"personalBestKg"`
	WeekOverWeek   WeekOverWeek  `json:"weekOverWeek"`
}

type WeekVolume struct {
	WeekStart string  `json:"weekStart"`
	Workouts  int     `json:"workouts"`
	VolumeKg  float64 `json:"volumeKg"`
}

func formatDate(t time.Time) string {
	return t.Format(workouts.DateLayout)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// exercisePoint sums the sets of every exercise in w named like name,
// ignoring letter case. ok is false when w has no such exercise.
func exercisePoint(w *workouts.Workout, name string) (point ExercisePoint, displayName string, ok bool) {
	point = ExercisePoint{
		WorkoutID:   w.ID,
		Date:        formatDate(w.Date),
		WorkoutName: w.Name,
	}
	for _, ex := range w.Exercises {
		if !sameExercise(ex.Name, name) {
			continue
		}
		ok = true
		displayName = ex.Name
		for _, s := range ex.Sets {
			point.MaxWeightKg = math.Max(point.MaxWeightKg, s.WeightKg())
			point.TotalReps += s.Reps
			point.TotalVolumeKg += s.VolumeKg()
			point.Sets++
		}
	}
	point.MaxWeightKg = round2(point.MaxWeightKg)
	point.TotalVolumeKg = round2(point.TotalVolumeKg)
	return point, displayName, ok
}

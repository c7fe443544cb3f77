// Package seed generates demo levels, users and workouts for local
// development.
package seed

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/levels"
	"github.com/2beens/gymtracker/internal/progress"
	"github.com/2beens/gymtracker/internal/users"
	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/brianvoe/gofakeit/v6"
)

const (
	DefaultWeeks    = 8
	DefaultPassword = "gymtracker123"
	// chance a scheduled workout day is actually trained
	attendance = 0.8
)

// day offsets from Monday for each day number of a level
var dayOffsets = map[int][]int{
	3: {0, 2, 4},
	4: {0, 1, 3, 4},
}

var dayExercises = map[string][]string{
	"Full Body A": {"Squat", "Bench Press", "Barbell Row"},
	"Full Body B": {"Deadlift", "Overhead Press", "Pull Up"},
	"Full Body C": {"Front Squat", "Incline Bench Press", "Dumbbell Row"},
	"Push":        {"Bench Press", "Overhead Press", "Triceps Dip"},
	"Pull":        {"Deadlift", "Pull Up", "Barbell Curl"},
	"Legs":        {"Squat", "Romanian Deadlift", "Leg Press"},
	"Upper A":     {"Bench Press", "Barbell Row", "Lateral Raise"},
	"Lower A":     {"Squat", "Romanian Deadlift", "Calf Raise"},
	"Upper B":     {"Overhead Press", "Pull Up", "Incline Bench Press"},
	"Lower B":     {"Deadlift", "Front Squat", "Leg Press"},
}

var startingWeightKg = map[string]float64{
	"Squat":               60,
	"Front Squat":         45,
	"Bench Press":         45,
	"Incline Bench Press": 37.5,
	"Barbell Row":         40,
	"Dumbbell Row":        20,
	"Deadlift":            80,
	"Romanian Deadlift":   60,
	"Overhead Press":      30,
	"Pull Up":             0,
	"Triceps Dip":         0,
	"Barbell Curl":        20,
	"Leg Press":           100,
	"Lateral Raise":       8,
	"Calf Raise":          40,
}

func level(name, description string, days ...string) levels.Level {
	l := levels.Level{
		Name:        name,
		Description: description,
		DaysPerWeek: len(days),
	}
	for i, d := range days {
		l.WorkoutDays = append(l.WorkoutDays, levels.WorkoutDay{Name: d, DayNumber: i + 1})
	}
	return l
}

// Levels returns the demo training programs.
func Levels() []levels.Level {
	return []levels.Level{
		level("Beginner Full Body", "Three full body sessions a week.", "Full Body A", "Full Body B", "Full Body C"),
		level("Push Pull Legs", "Classic three day split.", "Push", "Pull", "Legs"),
		level("Upper Lower", "Four day upper/lower split.", "Upper A", "Lower A", "Upper B", "Lower B"),
	}
}

type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator returns a generator; equal seeds give equal data.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Users returns count demo users with USER role. Emails are unique.
func (g *Generator) Users(count int, passwordHash string, now time.Time) []users.User {
	result := make([]users.User, 0, count)
	for i := 0; i < count; i++ {
		first, last := g.faker.FirstName(), g.faker.LastName()
		result = append(result, users.User{
			Name:         first + " " + last,
			Email:        users.NormalizeEmail(fmt.Sprintf("%s.%s.%d@gymtracker.test", first, last, i+1)),
			PasswordHash: passwordHash,
			Role:         auth.RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return result
}

// Workouts returns the workouts userID trained following level during the
// weeks before today, oldest first, never later than today.
func (g *Generator) Workouts(userID int, level levels.Level, today time.Time, weeks int) []workouts.Workout {
	today = progress.CivilDate(today)
	firstWeek := progress.WeekStart(today).AddDate(0, 0, -7*(weeks-1))
	offsets := dayOffsets[len(level.WorkoutDays)]
	strength := g.faker.Float64Range(0.7, 1.3)

	var result []workouts.Workout
	for week := 0; week < weeks; week++ {
		weekStart := firstWeek.AddDate(0, 0, 7*week)
		for i, day := range level.WorkoutDays {
			offset := i
			if i < len(offsets) {
				offset = offsets[i]
			}
			date := weekStart.AddDate(0, 0, offset)
			if date.After(today) || g.faker.Float64Range(0, 1) > attendance {
				continue
			}

			dayID := day.ID
			result = append(result, workouts.Workout{
				UserID:         userID,
				WorkoutDayID:   &dayID,
				WorkoutDayName: day.Name,
				Name:           day.Name,
				Date:           date,
				Notes:          g.notes(),
				Exercises:      g.exercises(day.Name, week, strength),
				CreatedAt:      date.Add(18 * time.Hour),
				UpdatedAt:      date.Add(18 * time.Hour),
			})
		}
	}
	return result
}

func (g *Generator) notes() string {
	if g.faker.Bool() {
		return ""
	}
	return strings.TrimSpace(g.faker.Sentence(6))
}

func (g *Generator) exercises(dayName string, week int, strength float64) []workouts.Exercise {
	names := dayExercises[dayName]
	result := make([]workouts.Exercise, 0, len(names))
	for i, name := range names {
		// linear progression, rounded to the closest 2.5 kg plate pair
		weight := math.Round((startingWeightKg[name]*strength+2.5*float64(week))/2.5) * 2.5
		setsCount := g.faker.Number(3, 4)
		exercise := workouts.Exercise{Name: name, Position: i + 1}
		for s := 1; s <= setsCount; s++ {
			exercise.Sets = append(exercise.Sets, workouts.Set{
				SetNumber:  s,
				Reps:       g.faker.Number(5, 10),
				Weight:     weight,
				WeightUnit: workouts.UnitKg,
			})
		}
		result = append(result, exercise)
	}
	return result
}

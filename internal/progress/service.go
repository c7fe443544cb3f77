package progress

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/levels"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workouts"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=progress_test

type workoutsRepo interface {
	List(ctx context.Context, params workouts.ListParams) ([]workouts.Workout, int, error)
	ListAll(ctx context.Context, params workouts.ListAllParams) ([]workouts.Workout, error)
	WorkoutDates(ctx context.Context, userID int) ([]time.Time, error)
	Count(ctx context.Context, userID int) (int, error)
}

type userLevelGetter interface {
	GetByUserID(ctx context.Context, userID int) (*levels.Level, error)
}

// Service aggregates logged workouts into dashboards and progress charts.
// Days and weeks are computed in the configured location.
type Service struct {
	workouts workoutsRepo
	levels   userLevelGetter
	location *time.Location
	NowFunc  func() time.Time
}

func NewService(workoutsRepo workoutsRepo, levels userLevelGetter, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		workouts: workoutsRepo,
		levels:   levels,
		location: location,
		NowFunc:  time.Now,
	}
}

// Today is the current calendar day in the service location.
func (s *Service) Today() time.Time {
	return CivilDate(s.NowFunc().In(s.location))
}

func sameExercise(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func inRange(day, from, to time.Time) bool {
	return (from.IsZero() || !day.Before(from)) && (to.IsZero() || !day.After(to))
}

func (s *Service) Dashboard(ctx context.Context, userID int) (_ *Dashboard, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.dashboard")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	today := s.Today()
	weekStart := WeekStart(today)
	weekEnd := weekStart.AddDate(0, 0, 6)
	activityStart := today.AddDate(0, 0, -(activityDays - 1))

	var (
		dates  []time.Time
		total  int
		recent []workouts.Workout
		window []workouts.Workout
		level  *levels.Level
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		dates, err = s.workouts.WorkoutDates(gCtx, userID)
		return err
	})
	g.Go(func() (err error) {
		total, err = s.workouts.Count(gCtx, userID)
		return err
	})
	g.Go(func() (err error) {
		recent, _, err = s.workouts.List(gCtx, workouts.ListParams{
			UserID: userID,
			Page:   1,
			Size:   recentWorkoutsCount,
		})
		return err
	})
	g.Go(func() (err error) {
		window, err = s.workouts.ListAll(gCtx, workouts.ListAllParams{
			UserID: userID,
			From:   activityStart,
			To:     weekEnd,
		})
		return err
	})
	g.Go(func() (err error) {
		level, err = s.levels.GetByUserID(gCtx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dashboard := &Dashboard{
		UserID:         userID,
		Today:          formatDate(today),
		CurrentStreak:  CurrentStreak(dates, today),
		LongestStreak:  LongestStreak(dates),
		TotalWorkouts:  total,
		Week:           weekStats(window, weekStart),
		Level:          levelProgress(level, window, weekStart),
		RecentWorkouts: make([]WorkoutSummary, 0, len(recent)),
		Activity:       activity(window, activityStart, today),
	}
	for i := range recent {
		w := &recent[i]
		dashboard.RecentWorkouts = append(dashboard.RecentWorkouts, WorkoutSummary{
			ID:             w.ID,
			Date:           formatDate(w.Date),
			Name:           w.Name,
			ExercisesCount: len(w.Exercises),
			SetsCount:      w.SetsCount(),
			VolumeKg:       round2(w.VolumeKg()),
		})
	}

	return dashboard, nil
}

func weekStats(window []workouts.Workout, weekStart time.Time) WeekStats {
	weekEnd := weekStart.AddDate(0, 0, 6)
	lastWeekStart := weekStart.AddDate(0, 0, -7)
	lastWeekEnd := weekStart.AddDate(0, 0, -1)

	stats := WeekStats{
		Start: formatDate(weekStart),
		End:   formatDate(weekEnd),
	}
	for i := range window {
		w := &window[i]
		day := CivilDate(w.Date)
		switch {
		case inRange(day, weekStart, weekEnd):
			stats.WorkoutsThisWeek++
			stats.VolumeKg += w.VolumeKg()
		case inRange(day, lastWeekStart, lastWeekEnd):
			stats.WorkoutsLastWeek++
		}
	}
	stats.VolumeKg = round2(stats.VolumeKg)
	return stats
}

func levelProgress(level *levels.Level, window []workouts.Workout, weekStart time.Time) *LevelProgress {
	if level == nil {
		return nil
	}
	weekEnd := weekStart.AddDate(0, 0, 6)

	completedIDs := make(map[int]bool)
	workoutsThisWeek := 0
	for i := range window {
		w := &window[i]
		if !inRange(CivilDate(w.Date), weekStart, weekEnd) {
			continue
		}
		workoutsThisWeek++
		if w.WorkoutDayID != nil {
			completedIDs[*w.WorkoutDayID] = true
		}
	}

	days := make([]levels.WorkoutDay, len(level.WorkoutDays))
	copy(days, level.WorkoutDays)
	sort.Slice(days, func(i, j int) bool {
		return days[i].DayNumber < days[j].DayNumber
	})

	lp := &LevelProgress{
		ID:            level.ID,
		Name:          level.Name,
		DaysPerWeek:   level.DaysPerWeek,
		WorkoutDays:   make([]LevelWorkoutDay, 0, len(days)),
		CompletedDays: make([]int, 0, len(days)),
	}
	for _, day := range days {
		wd := LevelWorkoutDay{
			ID:        day.ID,
			Name:      day.Name,
			DayNumber: day.DayNumber,
			Completed: completedIDs[day.ID],
		}
		lp.WorkoutDays = append(lp.WorkoutDays, wd)
		if wd.Completed {
			lp.CompletedDays = append(lp.CompletedDays, wd.DayNumber)
		} else if lp.NextWorkoutDay == nil {
			next := wd
			lp.NextWorkoutDay = &next
		}
	}

	// levels without named days are measured by plain workout count
	if len(days) > 0 {
		lp.WeekCompletion = len(lp.CompletedDays) * 100 / len(days)
	} else if level.DaysPerWeek > 0 {
		lp.WeekCompletion = min(workoutsThisWeek, level.DaysPerWeek) * 100 / level.DaysPerWeek
	}
	return lp
}

func activity(window []workouts.Workout, from, to time.Time) []DayActivity {
	counts := make(map[time.Time]int)
	for i := range window {
		counts[CivilDate(window[i].Date)]++
	}

	res := make([]DayActivity, 0, activityDays)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		res = append(res, DayActivity{
			Date:     formatDate(day),
			Workouts: counts[day],
		})
	}
	return res
}

// ExerciseProgress returns one point per workout containing the exercise,
// oldest first, limited to the optional from/to range. The week-over-week
// comparison and the personal best always consider the whole history.
func (s *Service) ExerciseProgress(ctx context.Context, userID int, exercise string, from, to time.Time) (_ *ExerciseProgress, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.exercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))
	span.SetAttributes(attribute.String("exercise", exercise))

	all, err := s.workouts.ListAll(ctx, workouts.ListAllParams{UserID: userID})
	if err != nil {
		return nil, err
	}

	weekStart := WeekStart(s.Today())
	progress := &ExerciseProgress{
		Exercise: strings.TrimSpace(exercise),
		Points:   make([]ExercisePoint, 0),
	}
	if !from.IsZero() {
		progress.From = formatDate(from)
	}
	if !to.IsZero() {
		progress.To = formatDate(to)
	}

	var thisWeek, lastWeek Aggregate
	for i := range all {
		w := &all[i]
		point, displayName, ok := exercisePoint(w, exercise)
		if !ok {
			continue
		}
		progress.Exercise = displayName
		progress.PersonalBestKg = math.Max(progress.PersonalBestKg, point.MaxWeightKg)

		day := CivilDate(w.Date)
		addToWeeks(&thisWeek, &lastWeek, point, day, weekStart)
		if inRange(day, from, to) {
			progress.Points = append(progress.Points, point)
		}
	}
	progress.WeekOverWeek = WeekOverWeek{
		ThisWeek: thisWeek,
		LastWeek: lastWeek,
		Diff:     thisWeek.Sub(lastWeek),
	}

	span.SetAttributes(attribute.Int("points", len(progress.Points)))
	return progress, nil
}

func addToWeeks(thisWeek, lastWeek *Aggregate, point ExercisePoint, day, weekStart time.Time) {
	switch {
	case inRange(day, weekStart, weekStart.AddDate(0, 0, 6)):
		thisWeek.add(point)
	case inRange(day, weekStart.AddDate(0, 0, -7), weekStart.AddDate(0, 0, -1)):
		lastWeek.add(point)
	}
}

type summaryState struct {
	summary  ExerciseSummary
	thisWeek Aggregate
	lastWeek Aggregate
}

// ExercisesSummary returns, for every exercise the user logged, the latest
// point, the personal best and the week-over-week comparison, ordered by name.
func (s *Service) ExercisesSummary(ctx context.Context, userID int) (_ []ExerciseSummary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.summary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	all, err := s.workouts.ListAll(ctx, workouts.ListAllParams{UserID: userID})
	if err != nil {
		return nil, err
	}

	weekStart := WeekStart(s.Today())
	states := make(map[string]*summaryState)
	for i := range all {
		w := &all[i]
		day := CivilDate(w.Date)

		seen := make(map[string]bool)
		for _, ex := range w.Exercises {
			key := strings.ToLower(strings.TrimSpace(ex.Name))
			if seen[key] {
				continue
			}
			seen[key] = true

			point, displayName, _ := exercisePoint(w, ex.Name)
			st, ok := states[key]
			if !ok {
				st = &summaryState{}
				states[key] = st
			}
			st.summary.Exercise = displayName
			st.summary.Workouts++
			st.summary.Latest = point
			st.summary.PersonalBestKg = math.Max(st.summary.PersonalBestKg, point.MaxWeightKg)
			addToWeeks(&st.thisWeek, &st.lastWeek, point, day, weekStart)
		}
	}

	summaries := make([]ExerciseSummary, 0, len(states))
	for _, st := range states {
		st.summary.WeekOverWeek = WeekOverWeek{
			ThisWeek: st.thisWeek,
			LastWeek: st.lastWeek,
			Diff:     st.thisWeek.Sub(st.lastWeek),
		}
		summaries = append(summaries, st.summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return strings.ToLower(summaries[i].Exercise) < strings.ToLower(summaries[j].Exercise)
	})
	return summaries, nil
}

// WeeklyVolume returns the workouts and volume of each of the last weeks,
// oldest first, the current week included.
func (s *Service) WeeklyVolume(ctx context.Context, userID int) (_ []WeekVolume, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.weeklyvolume")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	currentWeek := WeekStart(s.Today())
	first := currentWeek.AddDate(0, 0, -7*(volumeWeeks-1))

	window, err := s.workouts.ListAll(ctx, workouts.ListAllParams{
		UserID: userID,
		From:   first,
		To:     currentWeek.AddDate(0, 0, 6),
	})
	if err != nil {
		return nil, err
	}

	weeks := make([]WeekVolume, volumeWeeks)
	for i := range weeks {
		weeks[i].WeekStart = formatDate(first.AddDate(0, 0, 7*i))
	}
	for i := range window {
		w := &window[i]
		idx := int(WeekStart(w.Date).Sub(first).Hours() / (24 * 7))
		if idx < 0 || idx >= volumeWeeks {
			continue
		}
		weeks[idx].Workouts++
		weeks[idx].VolumeKg += w.VolumeKg()
	}
	for i := range weeks {
		weeks[i].VolumeKg = round2(weeks[i].VolumeKg)
	}
	return weeks, nil
}

package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo runs the aggregate queries behind the admin analytics.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) UserCounts(ctx context.Context, newSince time.Time) (_ UserCounts, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.admin.usercounts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var counts UserCounts
	err = r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE role = $1),
			COUNT(*) FILTER (WHERE created_at >= $2)
		FROM app_user
	`, string(auth.RoleAdmin), newSince).Scan(&counts.Total, &counts.Admins, &counts.NewThisWeek)
	if err != nil {
		return UserCounts{}, fmt.Errorf("count users: %w", err)
	}
	return counts, nil
}

// WorkoutCounts counts workouts overall, in the week starting at weekStart
// and in the week before it.
func (r *Repo) WorkoutCounts(ctx context.Context, weekStart time.Time) (_ WorkoutCounts, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.admin.workoutcounts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	weekEnd := weekStart.AddDate(0, 0, 6)
	lastWeekStart := weekStart.AddDate(0, 0, -7)
	lastWeekEnd := weekStart.AddDate(0, 0, -1)

	var counts WorkoutCounts
	err = r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE date BETWEEN $1 AND $2),
			COUNT(*) FILTER (WHERE date BETWEEN $3 AND $4),
			COUNT(DISTINCT user_id) FILTER (WHERE date BETWEEN $1 AND $2)
		FROM workout
	`, weekStart, weekEnd, lastWeekStart, lastWeekEnd).Scan(
		&counts.Total, &counts.ThisWeek, &counts.LastWeek, &counts.ActiveUsersThisWeek,
	)
	if err != nil {
		return WorkoutCounts{}, fmt.Errorf("count workouts: %w", err)
	}
	return counts, nil
}

// UsersPerLevel counts users of every level, users without one included.
func (r *Repo) UsersPerLevel(ctx context.Context) (_ []LevelCount, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.admin.usersperlevel")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT name, users FROM (
			SELECT l.name AS name, COUNT(u.id) AS users
			FROM level l
			LEFT JOIN app_user u ON u.level_id = l.id
			GROUP BY l.id, l.name
			UNION ALL
			SELECT $1::text AS name, COUNT(*) AS users
			FROM app_user
			WHERE level_id IS NULL
		) counts
		ORDER BY users DESC, name
	`, noLevelName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]LevelCount, 0)
	for rows.Next() {
		var c LevelCount
		if err := rows.Scan(&c.Level, &c.Users); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// TopExercises ranks exercises by the number of workouts containing them.
func (r *Repo) TopExercises(ctx context.Context, limit int) (_ []ExerciseCount, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.admin.topexercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT MIN(name), COUNT(DISTINCT workout_id) AS workouts
		FROM workout_exercise
		GROUP BY lower(name)
		ORDER BY workouts DESC, lower(name)
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]ExerciseCount, 0, limit)
	for rows.Next() {
		var c ExerciseCount
		if err := rows.Scan(&c.Exercise, &c.Workouts); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// WorkoutsPerWeek counts workouts between from and to grouped by the Monday
// of their week.
func (r *Repo) WorkoutsPerWeek(ctx context.Context, from, to time.Time) (_ map[time.Time]int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.admin.workoutsperweek")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT date_trunc('week', date)::date AS week, COUNT(*)
		FROM workout
		WHERE date BETWEEN $1 AND $2
		GROUP BY week
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perWeek := make(map[time.Time]int)
	for rows.Next() {
		var (
			week  time.Time
			count int
		)
		if err := rows.Scan(&week, &count); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		perWeek[week] = count
	}
	return perWeek, rows.Err()
}

// UserActivity returns one row per user. Streaks are filled in by the caller.
func (r *Repo) UserActivity(ctx context.Context, weekStart time.Time) (_ []UserActivity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.admin.useractivity")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT
			u.id, u.name, u.email, u.role, COALESCE(l.name, ''),
			COUNT(w.id),
			COUNT(w.id) FILTER (WHERE w.date BETWEEN $1 AND $2),
			MAX(w.date)
		FROM app_user u
		LEFT JOIN level l ON l.id = u.level_id
		LEFT JOIN workout w ON w.user_id = u.id
		GROUP BY u.id, l.name
	`, weekStart, weekStart.AddDate(0, 0, 6))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activity := make([]UserActivity, 0)
	for rows.Next() {
		var (
			a        UserActivity
			lastDate *time.Time
		)
		if err := rows.Scan(
			&a.UserID, &a.Name, &a.Email, &a.Role, &a.Level,
			&a.TotalWorkouts, &a.WorkoutsThisWeek, &lastDate,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		if lastDate != nil {
			a.LastWorkoutDate = lastDate.Format(workouts.DateLayout)
		}
		activity = append(activity, a)
	}
	return activity, rows.Err()
}

// WorkoutDates returns the distinct workout dates of every user, ascending.
func (r *Repo) WorkoutDates(ctx context.Context) (_ map[int][]time.Time, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.admin.workoutdates")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `SELECT DISTINCT user_id, date FROM workout ORDER BY user_id, date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := make(map[int][]time.Time)
	for rows.Next() {
		var (
			userID int
			date   time.Time
		)
		if err := rows.Scan(&userID, &date); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		dates[userID] = append(dates[userID], date)
	}
	return dates, rows.Err()
}

package workouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const workoutColumns = `w.id, w.user_id, w.workout_day_id, COALESCE(wd.name, ''), w.name, w.date, w.notes, w.created_at, w.updated_at`

const workoutFrom = `FROM workout w LEFT JOIN workout_day wd ON wd.id = w.workout_day_id`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	return fn(tx)
}

func mapWriteErr(err error) error {
	switch {
	case pkg.IsForeignKeyViolationError(err):
		return ErrWorkoutDayNotInLevel
	case pkg.IsCheckViolationError(err):
		return fmt.Errorf("%w: %s", ErrInvalidSet, pkg.ViolatedConstraint(err))
	default:
		return err
	}
}

// Add stores the workout with all its exercises and sets in one transaction.
func (r *Repo) Add(ctx context.Context, workout Workout) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if workout.CreatedAt.IsZero() {
		workout.CreatedAt = time.Now()
	}

	var id int
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO workout (user_id, workout_day_id, name, date, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			RETURNING id
		`,
			workout.UserID, workout.WorkoutDayID, workout.Name, workout.Date, workout.Notes, workout.CreatedAt,
		).Scan(&id); err != nil {
			return err
		}
		return insertExercises(ctx, tx, id, workout.Exercises)
	})
	if err != nil {
		return nil, mapWriteErr(err)
	}

	span.SetAttributes(attribute.Int("workout.id", id))
	return r.Get(ctx, id)
}

func insertExercises(ctx context.Context, tx pgx.Tx, workoutID int, exercises []Exercise) error {
	for _, ex := range exercises {
		var exerciseID int
		if err := tx.QueryRow(ctx, `
			INSERT INTO workout_exercise (workout_id, name, position)
			VALUES ($1, $2, $3)
			RETURNING id
		`, workoutID, ex.Name, ex.Position).Scan(&exerciseID); err != nil {
			return fmt.Errorf("insert exercise %s: %w", ex.Name, err)
		}

		batch := &pgx.Batch{}
		for _, s := range ex.Sets {
			batch.Queue(`
				INSERT INTO exercise_set (exercise_id, set_number, reps, weight, weight_unit)
				VALUES ($1, $2, $3, $4, $5)
			`, exerciseID, s.SetNumber, s.Reps, s.Weight, string(s.WeightUnit))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert sets of %s: %w", ex.Name, err)
		}
	}
	return nil
}

// Update replaces the workout fields and all of its exercises and sets.
func (r *Repo) Update(ctx context.Context, workout Workout) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workout.ID))

	err = r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE workout
			SET workout_day_id = $1, name = $2, date = $3, notes = $4, updated_at = now()
			WHERE id = $5
		`,
			workout.WorkoutDayID, workout.Name, workout.Date, workout.Notes, workout.ID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrWorkoutNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM workout_exercise WHERE workout_id = $1`, workout.ID); err != nil {
			return fmt.Errorf("delete exercises: %w", err)
		}
		return insertExercises(ctx, tx, workout.ID, workout.Exercises)
	})
	if err != nil {
		return nil, mapWriteErr(err)
	}

	return r.Get(ctx, workout.ID)
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", id))

	rows, err := r.db.Query(ctx, `SELECT `+workoutColumns+` `+workoutFrom+` WHERE w.id = $1`, id)
	if err != nil {
		return nil, err
	}
	workouts, err := rows2workouts(rows)
	if err != nil {
		return nil, err
	}
	if len(workouts) != 1 {
		return nil, ErrWorkoutNotFound
	}

	if err := r.attachExercises(ctx, workouts); err != nil {
		return nil, err
	}
	return &workouts[0], nil
}

// List returns a page of the user's workouts, newest first, and the total
// number of workouts matching the date range.
func (r *Repo) List(ctx context.Context, params ListParams) (_ []Workout, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", params.UserID))
	span.SetAttributes(attribute.Int("page", params.Page))
	span.SetAttributes(attribute.Int("size", params.Size))

	if params.Page < 1 {
		return nil, -1, errors.New("page must be greater than 0")
	}
	if params.Size < 1 {
		return nil, -1, errors.New("size must be greater than 0")
	}

	from, to := dateBound(params.From), dateBound(params.To)

	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM workout w
		WHERE w.user_id = $1
			AND ($2::date IS NULL OR w.date >= $2)
			AND ($3::date IS NULL OR w.date <= $3)
	`, params.UserID, from, to).Scan(&total); err != nil {
		return nil, -1, fmt.Errorf("count workouts: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+workoutColumns+` `+workoutFrom+`
		WHERE w.user_id = $1
			AND ($2::date IS NULL OR w.date >= $2)
			AND ($3::date IS NULL OR w.date <= $3)
		ORDER BY w.date DESC, w.id DESC
		LIMIT $4
		OFFSET $5
	`, params.UserID, from, to, params.Size, (params.Page-1)*params.Size)
	if err != nil {
		return nil, -1, err
	}
	workouts, err := rows2workouts(rows)
	if err != nil {
		return nil, -1, err
	}

	if err := r.attachExercises(ctx, workouts); err != nil {
		return nil, -1, err
	}
	if workouts == nil {
		workouts = make([]Workout, 0)
	}
	return workouts, total, nil
}

// ListAll returns every workout matching params, oldest first.
func (r *Repo) ListAll(ctx context.Context, params ListAllParams) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", params.UserID))

	var createdAfter *time.Time
	if !params.CreatedAfter.IsZero() {
		createdAfter = &params.CreatedAfter
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+workoutColumns+` `+workoutFrom+`
		WHERE ($1::int = 0 OR w.user_id = $1)
			AND ($2::date IS NULL OR w.date >= $2)
			AND ($3::date IS NULL OR w.date <= $3)
			AND ($4::timestamptz IS NULL OR w.created_at > $4)
		ORDER BY w.date, w.id
	`, params.UserID, dateBound(params.From), dateBound(params.To), createdAfter)
	if err != nil {
		return nil, err
	}
	workouts, err := rows2workouts(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachExercises(ctx, workouts); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("workouts.count", len(workouts)))
	return workouts, nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", id))

	tag, err := r.db.Exec(ctx, `DELETE FROM workout WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}

// ExerciseNames lists the distinct exercise names the user has logged,
// ignoring letter case.
func (r *Repo) ExerciseNames(ctx context.Context, userID int) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.exercisenames")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT ON (lower(e.name)) e.name
		FROM workout_exercise e
		JOIN workout w ON w.id = e.workout_id
		WHERE w.user_id = $1
		ORDER BY lower(e.name), e.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// WorkoutDates returns the distinct dates the user trained on, ascending.
func (r *Repo) WorkoutDates(ctx context.Context, userID int) (_ []time.Time, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.workoutdates")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	rows, err := r.db.Query(ctx, `SELECT DISTINCT date FROM workout WHERE user_id = $1 ORDER BY date`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := make([]time.Time, 0)
	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		dates = append(dates, date)
	}
	return dates, rows.Err()
}

func (r *Repo) Count(ctx context.Context, userID int) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM workout WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return -1, err
	}
	return count, nil
}

func (r *Repo) attachExercises(ctx context.Context, workouts []Workout) error {
	if len(workouts) == 0 {
		return nil
	}

	ids := make([]int, 0, len(workouts))
	idx := make(map[int]int, len(workouts))
	for i, w := range workouts {
		ids = append(ids, w.ID)
		idx[w.ID] = i
		workouts[i].Exercises = make([]Exercise, 0)
	}

	rows, err := r.db.Query(ctx, `
		SELECT e.workout_id, e.id, e.name, e.position,
			s.id, s.set_number, s.reps, s.weight, s.weight_unit
		FROM workout_exercise e
		JOIN exercise_set s ON s.exercise_id = e.id
		WHERE e.workout_id = ANY($1::int[])
		ORDER BY e.workout_id, e.position, s.set_number
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			workoutID int
			ex        Exercise
			s         Set
			unit      string
		)
		if err := rows.Scan(
			&workoutID, &ex.ID, &ex.Name, &ex.Position,
			&s.ID, &s.SetNumber, &s.Reps, &s.Weight, &unit,
		); err != nil {
			return fmt.Errorf("rows scan: %w", err)
		}
		s.WeightUnit = WeightUnit(unit)

		w := &workouts[idx[workoutID]]
		if n := len(w.Exercises); n == 0 || w.Exercises[n-1].ID != ex.ID {
			ex.Sets = make([]Set, 0, 4)
			w.Exercises = append(w.Exercises, ex)
		}
		last := &w.Exercises[len(w.Exercises)-1]
		last.Sets = append(last.Sets, s)
	}
	return rows.Err()
}

func rows2workouts(rows pgx.Rows) ([]Workout, error) {
	defer rows.Close()

	var workouts []Workout
	for rows.Next() {
		var w Workout
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.WorkoutDayID, &w.WorkoutDayName, &w.Name, &w.Date, &w.Notes,
			&w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return workouts, nil
}

// dateBound maps a zero time to a NULL query argument.
func dateBound(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

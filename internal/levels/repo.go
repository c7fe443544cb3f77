package levels

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const levelColumns = `l.id, l.name, l.description, l.days_per_week,
	(SELECT COUNT(*) FROM app_user u WHERE u.level_id = l.id),
	l.created_at, l.updated_at`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

const levelNameConstraint = "level_name_key"

func mapWriteErr(err error) error {
	if pkg.IsUniqueViolationError(err) && pkg.ViolatedConstraint(err) == levelNameConstraint {
		return ErrLevelNameTaken
	}
	return err
}

// inTx runs fn in a transaction that is committed when fn succeeds.
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

// Add stores the level together with its workout days.
func (r *Repo) Add(ctx context.Context, level Level) (_ *Level, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.levels.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var id int
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO level (name, description, days_per_week)
			VALUES ($1, $2, $3)
			RETURNING id
		`,
			level.Name, level.Description, level.DaysPerWeek,
		).Scan(&id); err != nil {
			return mapWriteErr(err)
		}

		for _, day := range level.WorkoutDays {
			if _, err := insertWorkoutDay(ctx, tx, id, day); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("level.id", id))
	return r.Get(ctx, id)
}

func insertWorkoutDay(ctx context.Context, tx pgx.Tx, levelID int, day WorkoutDay) (int, error) {
	var id int
	if err := tx.QueryRow(ctx, `
		INSERT INTO workout_day (level_id, name, day_number)
		VALUES ($1, $2, $3)
		RETURNING id
	`,
		levelID, day.Name, day.DayNumber,
	).Scan(&id); err != nil {
		return -1, fmt.Errorf("insert workout day %d: %w", day.DayNumber, err)
	}
	return id, nil
}

// Update changes the level and reconciles its workout days: days with an id
// are updated, days without one are inserted and the rest are removed.
func (r *Repo) Update(ctx context.Context, level Level) (_ *Level, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.levels.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("level.id", level.ID))

	err = r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE level
			SET name = $1, description = $2, days_per_week = $3, updated_at = now()
			WHERE id = $4
		`,
			level.Name, level.Description, level.DaysPerWeek, level.ID,
		)
		if err != nil {
			return mapWriteErr(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrLevelNotFound
		}

		existing, err := workoutDayIDs(ctx, tx, level.ID)
		if err != nil {
			return err
		}

		kept := make([]int, 0, len(level.WorkoutDays))
		for _, day := range level.WorkoutDays {
			if day.ID == 0 {
				continue
			}
			if !existing[day.ID] {
				return fmt.Errorf("%w: %d", ErrWorkoutDayNotFound, day.ID)
			}
			kept = append(kept, day.ID)
		}

		// workouts logged on removed days keep existing, unlinked
		if _, err := tx.Exec(ctx, `
			DELETE FROM workout_day
			WHERE level_id = $1 AND NOT (id = ANY($2::int[]))
		`, level.ID, kept); err != nil {
			return fmt.Errorf("delete workout days: %w", err)
		}

		for _, day := range level.WorkoutDays {
			if day.ID == 0 {
				if _, err := insertWorkoutDay(ctx, tx, level.ID, day); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.Exec(ctx, `
				UPDATE workout_day SET name = $1, day_number = $2
				WHERE id = $3 AND level_id = $4
			`, day.Name, day.DayNumber, day.ID, level.ID); err != nil {
				return fmt.Errorf("update workout day %d: %w", day.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, level.ID)
}

func workoutDayIDs(ctx context.Context, tx pgx.Tx, levelID int) (map[int]bool, error) {
	rows, err := tx.Query(ctx, `SELECT id FROM workout_day WHERE level_id = $1`, levelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// Delete removes the level. Users lose the assignment and logged workouts
// lose the link to its days.
func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.levels.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("level.id", id))

	tag, err := r.db.Exec(ctx, `DELETE FROM level WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLevelNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Level, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.levels.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("level.id", id))

	rows, err := r.db.Query(ctx, `SELECT `+levelColumns+` FROM level l WHERE l.id = $1`, id)
	if err != nil {
		return nil, err
	}
	levels, err := rows2levels(rows)
	if err != nil {
		return nil, err
	}
	if len(levels) != 1 {
		return nil, ErrLevelNotFound
	}

	if err := r.attachWorkoutDays(ctx, levels); err != nil {
		return nil, err
	}
	return &levels[0], nil
}

// List returns all levels ordered by name.
func (r *Repo) List(ctx context.Context) (_ []Level, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.levels.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `SELECT `+levelColumns+` FROM level l ORDER BY l.name, l.id`)
	if err != nil {
		return nil, err
	}
	levels, err := rows2levels(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachWorkoutDays(ctx, levels); err != nil {
		return nil, err
	}
	if levels == nil {
		levels = make([]Level, 0)
	}
	return levels, nil
}

// GetByUserID returns the level assigned to the user, or nil when there is none.
func (r *Repo) GetByUserID(ctx context.Context, userID int) (_ *Level, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.levels.getbyuserid")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	var levelID *int
	if err := r.db.QueryRow(ctx, `SELECT level_id FROM app_user WHERE id = $1`, userID).Scan(&levelID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if levelID == nil {
		return nil, nil
	}

	level, err := r.Get(ctx, *levelID)
	if errors.Is(err, ErrLevelNotFound) {
		return nil, nil
	}
	return level, err
}

func (r *Repo) attachWorkoutDays(ctx context.Context, levels []Level) error {
	if len(levels) == 0 {
		return nil
	}

	ids := make([]int, 0, len(levels))
	idx := make(map[int]int, len(levels))
	for i, l := range levels {
		ids = append(ids, l.ID)
		idx[l.ID] = i
		levels[i].WorkoutDays = make([]WorkoutDay, 0)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, level_id, name, day_number
		FROM workout_day
		WHERE level_id = ANY($1::int[])
		ORDER BY level_id, day_number
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var d WorkoutDay
		if err := rows.Scan(&d.ID, &d.LevelID, &d.Name, &d.DayNumber); err != nil {
			return fmt.Errorf("rows scan: %w", err)
		}
		i := idx[d.LevelID]
		levels[i].WorkoutDays = append(levels[i].WorkoutDays, d)
	}
	return rows.Err()
}

func rows2levels(rows pgx.Rows) ([]Level, error) {
	defer rows.Close()

	var levels []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Description, &l.DaysPerWeek, &l.UsersCount, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return levels, nil
}

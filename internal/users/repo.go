package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const userColumns = `u.id, u.name, u.email, u.password_hash, u.role, u.level_id,
	u.last_login_at, u.last_login_ip, u.last_login_location, u.created_at, u.updated_at`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func mapWriteErr(err error) error {
	switch {
	case pkg.IsUniqueViolationError(err):
		return ErrEmailTaken
	case pkg.IsForeignKeyViolationError(err):
		return ErrLevelNotFound
	default:
		return err
	}
}

func (r *Repo) Add(ctx context.Context, user User) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO app_user
				(name, email, password_hash, role, level_id, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id;`,
		user.Name, user.Email, user.PasswordHash, string(user.Role), user.LevelID, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, mapWriteErr(err)
		}
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("user.id", id))

	user.ID = id
	return &user, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM app_user u WHERE u.id = $1;`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.singleUser(rows)
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getbyemail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM app_user u WHERE u.email = $1;`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.singleUser(rows)
}

func (r *Repo) singleUser(rows pgx.Rows) (*User, error) {
	users, err := r.rows2users(rows)
	if err != nil {
		return nil, err
	}
	if len(users) != 1 {
		return nil, ErrUserNotFound
	}
	return &users[0], nil
}

// List returns a page of users with their workout stats, ordered by name.
func (r *Repo) List(ctx context.Context, params ListParams) (_ []UserWithStats, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("page", params.Page))
	span.SetAttributes(attribute.Int("size", params.Size))
	span.SetAttributes(attribute.String("role", string(params.Role)))

	if params.Page < 1 {
		return nil, -1, errors.New("page must be greater than 0")
	}
	if params.Size < 1 {
		return nil, -1, errors.New("size must be greater than 0")
	}

	countAll, err := r.Count(ctx, params)
	if err != nil {
		return nil, -1, err
	}
	span.SetAttributes(attribute.Int("count_all", countAll))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				`+userColumns+`,
				COALESCE(l.name, ''), COUNT(w.id), MAX(w.date)
			FROM app_user u
			LEFT JOIN level l ON l.id = u.level_id
			LEFT JOIN workout w ON w.user_id = u.id
				WHERE ($1::text = '' OR u.name ILIKE $1 OR u.email ILIKE $1)
				AND ($2::text = '' OR u.role = $2)
			GROUP BY u.id, l.name
			ORDER BY u.name, u.id
			LIMIT $3
			OFFSET $4;`,
		searchPattern(params.Search), string(params.Role),
		params.Size, (params.Page-1)*params.Size,
	)
	if err != nil {
		return nil, -1, err
	}
	defer rows.Close()

	var list []UserWithStats
	for rows.Next() {
		var u UserWithStats
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.LevelID,
			&u.LastLoginAt, &u.LastLoginIP, &u.LastLoginLocation, &u.CreatedAt, &u.UpdatedAt,
			&u.LevelName, &u.WorkoutsCount, &u.LastWorkoutDate,
		); err != nil {
			return nil, -1, fmt.Errorf("rows scan: %w", err)
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, -1, err
	}

	if list == nil {
		list = make([]UserWithStats, 0)
	}
	return list, countAll, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchPattern turns a search term into an ILIKE substring pattern, with
// the term's own wildcards matched literally.
func searchPattern(search string) string {
	if search == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(search) + "%"
}

func (r *Repo) Count(ctx context.Context, params ListParams) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM app_user u
			WHERE ($1::text = '' OR u.name ILIKE $1 OR u.email ILIKE $1)
			AND ($2::text = '' OR u.role = $2);
	`,
		searchPattern(params.Search), string(params.Role),
	).Scan(&count); err != nil {
		return -1, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (r *Repo) UpdateProfile(ctx context.Context, id int, name, email string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updateprofile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE app_user SET name = $1, email = $2, updated_at = now() WHERE id = $3;`,
		name, email, id,
	)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}

	return r.Get(ctx, id)
}

func (r *Repo) UpdatePassword(ctx context.Context, id int, passwordHash string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updatepassword")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	return r.execOne(ctx, `UPDATE app_user SET password_hash = $1, updated_at = now() WHERE id = $2;`, passwordHash, id)
}

func (r *Repo) UpdateRole(ctx context.Context, id int, role auth.Role) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updaterole")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))
	span.SetAttributes(attribute.String("role", string(role)))

	return r.execOne(ctx, `UPDATE app_user SET role = $1, updated_at = now() WHERE id = $2;`, string(role), id)
}

// AssignLevel sets the user's level; a nil levelID clears it.
func (r *Repo) AssignLevel(ctx context.Context, id int, levelID *int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.assignlevel")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	return r.execOne(ctx, `UPDATE app_user SET level_id = $1, updated_at = now() WHERE id = $2;`, levelID, id)
}

func (r *Repo) RecordLogin(ctx context.Context, id int, at time.Time, ip, location string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.recordlogin")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	return r.execOne(
		ctx,
		`UPDATE app_user SET last_login_at = $1, last_login_ip = $2, last_login_location = $3 WHERE id = $4;`,
		at, ip, location, id,
	)
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	return r.execOne(ctx, `DELETE FROM app_user WHERE id = $1;`, id)
}

func (r *Repo) CountByRole(ctx context.Context, role auth.Role) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.countbyrole")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM app_user WHERE role = $1;`, string(role)).Scan(&count); err != nil {
		return -1, err
	}
	return count, nil
}

func (r *Repo) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repo) rows2users(rows pgx.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.LevelID,
			&u.LastLoginAt, &u.LastLoginIP, &u.LastLoginLocation, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		u.Role = auth.Role(role)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

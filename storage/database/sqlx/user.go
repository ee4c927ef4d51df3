package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

var (
	userColumns    = []string{"id", "name", "username", "email", "is_active", "roles", "password_hash", "created_at", "updated_at", "last_login"}
	profileColumns = []string{"user_id", "bio", "level", "xp", "streak", "timezone", "weekly_quiz_enabled", "current_book_id", "current_chapter_id", "ai_mode", "created_at", "updated_at"}

	userOrderings = []string{"name", "username", "email", "created_at", "last_login"}
)

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     nullString(usr.Username),
		Email:        nullString(usr.Email),
		IsActive:     usr.IsActive,
		Roles:        pq.StringArray(usr.Roles),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    nullTime(usr.LastLogin),
	}
}

func (r userRow) user() user.User {
	roles := []string(r.Roles)
	if roles == nil {
		roles = []string{}
	}
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		Roles:        roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type profileRow struct {
	UserID            string      `db:"user_id"`
	Bio               string      `db:"bio"`
	Level             int         `db:"level"`
	XP                int         `db:"xp"`
	Streak            int         `db:"streak"`
	Timezone          string      `db:"timezone"`
	WeeklyQuizEnabled bool        `db:"weekly_quiz_enabled"`
	CurrentBookID     null.String `db:"current_book_id"`
	CurrentChapterID  null.String `db:"current_chapter_id"`
	AIMode            string      `db:"ai_mode"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	q := "SELECT username, email FROM users WHERE (username = $1 OR email = $2)"
	args := []interface{}{nullString(username), nullString(email)}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += " AND NOT " + inClause("id", 3, len(ids))
		args = append(args, stringArgs(ids)...)
	}

	var clashes []struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	if err := repo.db.SelectContext(ctx, &clashes, q+" LIMIT 2", args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, c := range clashes {
		if username != "" && c.Username.String == username {
			return user.ErrUsernameExists
		}
		if email != "" && c.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	if _, err := repo.db.NamedExecContext(ctx, insertQuery("users", userColumns), newUserRow(usr)); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			where = append(where, fmt.Sprintf("(name ILIKE %s OR username ILIKE %s OR email ILIKE %s)", p, p, p))
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roleConds := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roleConds = append(roleConds, "EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE "+arg(role+"%")+")")
			}
			where = append(where, "("+strings.Join(roleConds, " OR ")+")")
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = "+arg(*filter.IsActive))
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}

	q := "SELECT * FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	orderList := []string{}
	for _, ord := range core.SafeOrderings(ordering, userOrderings...) {
		orderList = append(orderList, ord.String())
	}
	orderList = append(orderList, "created_at ASC", "id ASC")
	q += " ORDER BY " + strings.Join(orderList, ", ")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		q    string
		args []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q, args = selectWhere("users", "id"), []interface{}{filter.ID}
	case filter.Username != "":
		q, args = selectWhere("users", "username"), []interface{}{filter.Username}
	case filter.Email != "":
		q, args = selectWhere("users", "email"), []interface{}{filter.Email}
	case len(filter.UsernameOrEmail) > 0 && filter.UsernameOrEmail[0] != "":
		uname, email := filter.UsernameOrEmail[0], filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) > 1 && filter.UsernameOrEmail[1] != "" {
			email = filter.UsernameOrEmail[1]
		}
		q, args = "SELECT * FROM users WHERE username = $1 OR email = $2", []interface{}{uname, email}
	default:
		return user.User{}, user.ErrNotFound
	}

	var r userRow
	if err := repo.db.GetContext(ctx, &r, q+" LIMIT 1", args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return r.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.db.NamedExecContext(ctx, updateQuery("users", userColumns[1:], []string{"id"}), newUserRow(usr))
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted users")
}

func (repo *userRepository) GetProfile(ctx context.Context, userID string) (user.Profile, error) {
	var r profileRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("profiles", "user_id"), userID); err != nil {
		return user.Profile{}, trapNoRowsErr(err, user.ErrNotFound, "getting profile")
	}
	return user.Profile{
		UserID:            r.UserID,
		Bio:               r.Bio,
		Level:             r.Level,
		XP:                r.XP,
		Streak:            r.Streak,
		Timezone:          r.Timezone,
		WeeklyQuizEnabled: r.WeeklyQuizEnabled,
		CurrentBookID:     r.CurrentBookID.String,
		CurrentChapterID:  r.CurrentChapterID.String,
		AIMode:            r.AIMode,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}, nil
}

func (repo *userRepository) SaveProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	r := profileRow{
		UserID:            p.UserID,
		Bio:               p.Bio,
		Level:             p.Level,
		XP:                p.XP,
		Streak:            p.Streak,
		Timezone:          p.Timezone,
		WeeklyQuizEnabled: p.WeeklyQuizEnabled,
		CurrentBookID:     nullString(p.CurrentBookID),
		CurrentChapterID:  nullString(p.CurrentChapterID),
		AIMode:            p.AIMode,
		CreatedAt:         p.CreatedAt.UTC(),
		UpdatedAt:         p.UpdatedAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, upsertQuery("profiles", profileColumns, []string{"user_id"}), r)
	return p, errors.Wrap(err, "saving profile")
}

package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core/skill"
)

var skillProfileColumns = []string{
	"user_id", "technical_score", "accuracy_score", "communication_score", "consistency_score",
	"confidence_score", "readiness_score", "behavior_score", "risk_level", "next_difficulty", "updated_at",
}

type skillProfileRow struct {
	UserID             string    `db:"user_id"`
	TechnicalScore     float64   `db:"technical_score"`
	AccuracyScore      float64   `db:"accuracy_score"`
	CommunicationScore float64   `db:"communication_score"`
	ConsistencyScore   float64   `db:"consistency_score"`
	ConfidenceScore    float64   `db:"confidence_score"`
	ReadinessScore     float64   `db:"readiness_score"`
	BehaviorScore      float64   `db:"behavior_score"`
	RiskLevel          string    `db:"risk_level"`
	NextDifficulty     string    `db:"next_difficulty"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r skillProfileRow) profile() skill.Profile {
	p := skill.Profile(r)
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p
}

type historyRow struct {
	UserID         string    `db:"user_id"`
	Date           time.Time `db:"day"`
	ReadinessScore float64   `db:"readiness_score"`
}

type skillRepository struct {
	db *sqlx.DB
}

var _ skill.Repository = (*skillRepository)(nil)

func NewSkillRepository(db *sqlx.DB) skill.Repository {
	return &skillRepository{db: db}
}

func (repo *skillRepository) GetProfile(ctx context.Context, userID string) (skill.Profile, error) {
	if !isUUID(userID) {
		return skill.Profile{}, skill.ErrNotFound
	}
	var r skillProfileRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("skill_profiles", "user_id"), userID); err != nil {
		return skill.Profile{}, trapNoRowsErr(err, skill.ErrNotFound, "getting skill profile")
	}
	return r.profile(), nil
}

func (repo *skillRepository) SaveProfile(ctx context.Context, p skill.Profile) (skill.Profile, error) {
	r := skillProfileRow(p)
	r.UpdatedAt = r.UpdatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx, upsertQuery("skill_profiles", skillProfileColumns, []string{"user_id"}), r)
	return p, errors.Wrap(err, "saving skill profile")
}

func (repo *skillRepository) QueryProfiles(ctx context.Context, filter *skill.ProfileFilter) ([]skill.Profile, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.UserIDs != nil {
			if len(filter.UserIDs) == 0 {
				return []skill.Profile{}, nil
			}
			where = append(where, inClause("user_id", len(args)+1, len(filter.UserIDs)))
			args = append(args, stringArgs(filter.UserIDs)...)
		}
		if filter.MinReadiness > 0 {
			args = append(args, filter.MinReadiness)
			where = append(where, fmt.Sprintf("readiness_score >= $%d", len(args)))
		}
		if len(filter.RiskLevels) > 0 {
			where = append(where, inClause("risk_level", len(args)+1, len(filter.RiskLevels)))
			args = append(args, stringArgs(filter.RiskLevels)...)
		}
	}

	q := "SELECT * FROM skill_profiles"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY readiness_score DESC, user_id"
	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []skillProfileRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying skill profiles")
	}
	profiles := make([]skill.Profile, 0, len(rows))
	for _, r := range rows {
		profiles = append(profiles, r.profile())
	}
	return profiles, nil
}

func (repo *skillRepository) InsertHistory(ctx context.Context, h skill.ReadinessHistory) (bool, error) {
	res, err := repo.db.NamedExecContext(ctx,
		upsertQuery("readiness_history", []string{"user_id", "day", "readiness_score"}, []string{"user_id", "day", "readiness_score"}),
		historyRow{UserID: h.UserID, Date: utcDate(h.Date), ReadinessScore: h.ReadinessScore})
	if err != nil {
		return false, errors.Wrap(err, "inserting readiness history")
	}
	n, err := res.RowsAffected()
	return n > 0, errors.Wrap(err, "inserting readiness history")
}

func (repo *skillRepository) QueryHistory(ctx context.Context, userID string, since time.Time) ([]skill.ReadinessHistory, error) {
	var rows []historyRow
	if err := repo.db.SelectContext(ctx, &rows,
		"SELECT * FROM readiness_history WHERE user_id = $1 AND day >= $2 ORDER BY day", userID, utcDate(since)); err != nil {
		return nil, errors.Wrap(err, "querying readiness history")
	}
	history := make([]skill.ReadinessHistory, 0, len(rows))
	for _, r := range rows {
		history = append(history, skill.ReadinessHistory{UserID: r.UserID, Date: utcDate(r.Date), ReadinessScore: r.ReadinessScore})
	}
	return history, nil
}

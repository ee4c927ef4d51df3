package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/NaveenRoman/AI-TUTor/core/institution"
)

var (
	institutionColumns = []string{
		"id", "name", "code", "admin_email", "plan", "is_active", "subscription_end",
		"student_limit", "invite_token", "monthly_price", "created_at",
	}
	membershipColumns = []string{"user_id", "institution_id", "role", "branch", "batch", "joined_at"}
	billingColumns    = []string{"id", "institution_id", "amount", "currency", "plan", "status", "order_id", "paid_on", "created_at"}
)

type institutionRow struct {
	ID              string      `db:"id"`
	Name            string      `db:"name"`
	Code            string      `db:"code"`
	AdminEmail      string      `db:"admin_email"`
	Plan            string      `db:"plan"`
	IsActive        bool        `db:"is_active"`
	SubscriptionEnd null.Time   `db:"subscription_end"`
	StudentLimit    int         `db:"student_limit"`
	InviteToken     null.String `db:"invite_token"`
	MonthlyPrice    int         `db:"monthly_price"`
	CreatedAt       time.Time   `db:"created_at"`
}

func newInstitutionRow(inst institution.Institution) institutionRow {
	end := null.Time{}
	if !inst.SubscriptionEnd.IsZero() {
		end = null.TimeFrom(utcDate(inst.SubscriptionEnd))
	}
	return institutionRow{
		ID:              inst.ID,
		Name:            inst.Name,
		Code:            inst.Code,
		AdminEmail:      inst.AdminEmail,
		Plan:            inst.Plan,
		IsActive:        inst.IsActive,
		SubscriptionEnd: end,
		StudentLimit:    inst.StudentLimit,
		InviteToken:     nullString(inst.InviteToken),
		MonthlyPrice:    inst.MonthlyPrice,
		CreatedAt:       inst.CreatedAt.UTC(),
	}
}

func (r institutionRow) institution() institution.Institution {
	inst := institution.Institution{
		ID:           r.ID,
		Name:         r.Name,
		Code:         r.Code,
		AdminEmail:   r.AdminEmail,
		Plan:         r.Plan,
		IsActive:     r.IsActive,
		StudentLimit: r.StudentLimit,
		InviteToken:  r.InviteToken.String,
		MonthlyPrice: r.MonthlyPrice,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.SubscriptionEnd.Valid {
		inst.SubscriptionEnd = utcDate(r.SubscriptionEnd.Time)
	}
	return inst
}

type membershipRow struct {
	UserID        string    `db:"user_id"`
	InstitutionID string    `db:"institution_id"`
	Role          string    `db:"role"`
	Branch        string    `db:"branch"`
	Batch         string    `db:"batch"`
	JoinedAt      time.Time `db:"joined_at"`
}

type billingRow struct {
	ID            string    `db:"id"`
	InstitutionID string    `db:"institution_id"`
	Amount        int       `db:"amount"`
	Currency      string    `db:"currency"`
	Plan          string    `db:"plan"`
	Status        string    `db:"status"`
	OrderID       string    `db:"order_id"`
	PaidOn        null.Time `db:"paid_on"`
	CreatedAt     time.Time `db:"created_at"`
}

func newBillingRow(br institution.BillingRecord) billingRow {
	return billingRow{
		ID:            br.ID,
		InstitutionID: br.InstitutionID,
		Amount:        br.Amount,
		Currency:      br.Currency,
		Plan:          br.Plan,
		Status:        br.Status,
		OrderID:       br.OrderID,
		PaidOn:        nullTime(br.PaidOn),
		CreatedAt:     br.CreatedAt.UTC(),
	}
}

func (r billingRow) record() institution.BillingRecord {
	return institution.BillingRecord{
		ID:            r.ID,
		InstitutionID: r.InstitutionID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		Plan:          r.Plan,
		Status:        r.Status,
		OrderID:       r.OrderID,
		PaidOn:        r.PaidOn.Time.UTC(),
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type institutionRepository struct {
	db *sqlx.DB
}

var _ institution.Repository = (*institutionRepository)(nil)

func NewInstitutionRepository(db *sqlx.DB) institution.Repository {
	return &institutionRepository{db: db}
}

func (repo *institutionRepository) CreateInstitution(ctx context.Context, inst institution.Institution) (institution.Institution, error) {
	if _, err := repo.db.NamedExecContext(ctx, insertQuery("institutions", institutionColumns), newInstitutionRow(inst)); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return institution.Institution{}, institution.ErrCodeExists
		}
		return institution.Institution{}, errors.Wrap(err, "inserting institution")
	}
	return inst, nil
}

func (repo *institutionRepository) UpdateInstitution(ctx context.Context, inst institution.Institution) (institution.Institution, error) {
	res, err := repo.db.NamedExecContext(ctx, updateQuery("institutions", institutionColumns[1:], []string{"id"}), newInstitutionRow(inst))
	if err != nil {
		return institution.Institution{}, errors.Wrap(err, "updating institution")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return institution.Institution{}, institution.ErrNotFound
	}
	return inst, nil
}

func (repo *institutionRepository) get(ctx context.Context, col string, val string) (institution.Institution, error) {
	var r institutionRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("institutions", col), val); err != nil {
		return institution.Institution{}, trapNoRowsErr(err, institution.ErrNotFound, "getting institution")
	}
	return r.institution(), nil
}

func (repo *institutionRepository) GetInstitution(ctx context.Context, id string) (institution.Institution, error) {
	if !isUUID(id) {
		return institution.Institution{}, institution.ErrNotFound
	}
	return repo.get(ctx, "id", id)
}

func (repo *institutionRepository) GetInstitutionByCode(ctx context.Context, code string) (institution.Institution, error) {
	return repo.get(ctx, "code", code)
}

func (repo *institutionRepository) GetInstitutionByInvite(ctx context.Context, token string) (institution.Institution, error) {
	if token == "" {
		return institution.Institution{}, institution.ErrNotFound
	}
	return repo.get(ctx, "invite_token", token)
}

func (repo *institutionRepository) QueryInstitutions(ctx context.Context) ([]institution.Institution, error) {
	var rows []institutionRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT * FROM institutions ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying institutions")
	}
	insts := make([]institution.Institution, 0, len(rows))
	for _, r := range rows {
		insts = append(insts, r.institution())
	}
	return insts, nil
}

func (repo *institutionRepository) SaveMembership(ctx context.Context, m institution.Membership) (institution.Membership, error) {
	r := membershipRow(m)
	r.JoinedAt = r.JoinedAt.UTC()
	// joined_at stays the one of the first join
	q := insertQuery("memberships", membershipColumns) +
		" ON CONFLICT (user_id, institution_id) DO UPDATE SET role = EXCLUDED.role, branch = EXCLUDED.branch, batch = EXCLUDED.batch" +
		" RETURNING *"
	q, args, err := repo.db.BindNamed(q, r)
	if err != nil {
		return institution.Membership{}, errors.Wrap(err, "binding membership")
	}
	if err = repo.db.GetContext(ctx, &r, q, args...); err != nil {
		return institution.Membership{}, errors.Wrap(err, "saving membership")
	}
	m = institution.Membership(r)
	m.JoinedAt = m.JoinedAt.UTC()
	return m, nil
}

func (repo *institutionRepository) queryMemberships(ctx context.Context, where []string, args []interface{}) ([]institution.Membership, error) {
	q := "SELECT * FROM memberships"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	var rows []membershipRow
	if err := repo.db.SelectContext(ctx, &rows, q+" ORDER BY joined_at, user_id", args...); err != nil {
		return nil, errors.Wrap(err, "querying memberships")
	}
	members := make([]institution.Membership, 0, len(rows))
	for _, r := range rows {
		m := institution.Membership(r)
		m.JoinedAt = m.JoinedAt.UTC()
		members = append(members, m)
	}
	return members, nil
}

func (repo *institutionRepository) QueryMemberships(ctx context.Context, filter institution.MemberFilter) ([]institution.Membership, error) {
	if filter.InstitutionID != "" && !isUUID(filter.InstitutionID) {
		return []institution.Membership{}, nil
	}
	var (
		where []string
		args  []interface{}
	)
	for _, cond := range [][2]string{
		{"institution_id", filter.InstitutionID},
		{"role", filter.Role},
		{"branch", filter.Branch},
		{"batch", filter.Batch},
	} {
		if cond[1] != "" {
			args = append(args, cond[1])
			where = append(where, fmt.Sprintf("%s = $%d", cond[0], len(args)))
		}
	}
	return repo.queryMemberships(ctx, where, args)
}

func (repo *institutionRepository) QueryUserMemberships(ctx context.Context, userID string) ([]institution.Membership, error) {
	if !isUUID(userID) {
		return []institution.Membership{}, nil
	}
	return repo.queryMemberships(ctx, []string{"user_id = $1"}, []interface{}{userID})
}

func (repo *institutionRepository) CreateBillingRecord(ctx context.Context, br institution.BillingRecord) (institution.BillingRecord, error) {
	_, err := repo.db.NamedExecContext(ctx, insertQuery("billing_records", billingColumns), newBillingRow(br))
	return br, errors.Wrap(err, "inserting billing record")
}

func (repo *institutionRepository) UpdateBillingRecord(ctx context.Context, br institution.BillingRecord) (institution.BillingRecord, error) {
	res, err := repo.db.NamedExecContext(ctx, updateQuery("billing_records", billingColumns[1:], []string{"order_id"}), newBillingRow(br))
	if err != nil {
		return institution.BillingRecord{}, errors.Wrap(err, "updating billing record")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return institution.BillingRecord{}, institution.ErrOrderNotFound
	}
	return br, nil
}

func (repo *institutionRepository) GetBillingRecord(ctx context.Context, orderID string) (institution.BillingRecord, error) {
	var r billingRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("billing_records", "order_id"), orderID); err != nil {
		return institution.BillingRecord{}, trapNoRowsErr(err, institution.ErrOrderNotFound, "getting billing record")
	}
	return r.record(), nil
}

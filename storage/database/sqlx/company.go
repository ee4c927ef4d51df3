package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core/company"
)

type companyRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Plan      string    `db:"plan"`
	CreatedAt time.Time `db:"created_at"`
}

type companyUserRow struct {
	UserID    string `db:"user_id"`
	CompanyID string `db:"company_id"`
}

type companyRepository struct {
	db *sqlx.DB
}

var _ company.Repository = (*companyRepository)(nil)

func NewCompanyRepository(db *sqlx.DB) company.Repository {
	return &companyRepository{db: db}
}

func (repo *companyRepository) CreateCompany(ctx context.Context, c company.Company) (company.Company, error) {
	r := companyRow(c)
	r.CreatedAt = r.CreatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx, insertQuery("companies", []string{"id", "name", "plan", "created_at"}), r)
	return c, errors.Wrap(err, "inserting company")
}

func (repo *companyRepository) GetCompany(ctx context.Context, id string) (company.Company, error) {
	if !isUUID(id) {
		return company.Company{}, company.ErrNotFound
	}
	var r companyRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("companies", "id"), id); err != nil {
		return company.Company{}, trapNoRowsErr(err, company.ErrNotFound, "getting company")
	}
	c := company.Company(r)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (repo *companyRepository) SaveCompanyUser(ctx context.Context, cu company.CompanyUser) error {
	_, err := repo.db.NamedExecContext(ctx,
		upsertQuery("company_users", []string{"user_id", "company_id"}, []string{"user_id"}), companyUserRow(cu))
	return errors.Wrap(err, "saving company user")
}

func (repo *companyRepository) GetCompanyUser(ctx context.Context, userID string) (company.CompanyUser, error) {
	if !isUUID(userID) {
		return company.CompanyUser{}, company.ErrNotFound
	}
	var r companyUserRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("company_users", "user_id"), userID); err != nil {
		return company.CompanyUser{}, trapNoRowsErr(err, company.ErrNotFound, "getting company user")
	}
	return company.CompanyUser(r), nil
}

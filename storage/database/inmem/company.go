package inmemdb

import (
	"context"

	"github.com/NaveenRoman/AI-TUTor/core/company"
)

type companyRepository struct {
	db *DB
}

var _ company.Repository = (*companyRepository)(nil)

func NewCompanyRepository(db *DB) company.Repository {
	return &companyRepository{db: db}
}

func (repo *companyRepository) CreateCompany(_ context.Context, c company.Company) (company.Company, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.companies[c.ID] = c
	return c, nil
}

func (repo *companyRepository) GetCompany(_ context.Context, id string) (company.Company, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.companies[id]; ok {
		return c, nil
	}
	return company.Company{}, company.ErrNotFound
}

func (repo *companyRepository) SaveCompanyUser(_ context.Context, cu company.CompanyUser) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.companyUsers[cu.UserID] = cu
	return nil
}

func (repo *companyRepository) GetCompanyUser(_ context.Context, userID string) (company.CompanyUser, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cu, ok := repo.db.companyUsers[userID]; ok {
		return cu, nil
	}
	return company.CompanyUser{}, company.ErrNotFound
}

package inmemdb

import (
	"context"
	"sort"

	"github.com/NaveenRoman/AI-TUTor/core/institution"
)

type institutionRepository struct {
	db *DB
}

var _ institution.Repository = (*institutionRepository)(nil)

func NewInstitutionRepository(db *DB) institution.Repository {
	return &institutionRepository{db: db}
}

func (repo *institutionRepository) CreateInstitution(_ context.Context, inst institution.Institution) (institution.Institution, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.institutions {
		if existing.Code == inst.Code {
			return institution.Institution{}, institution.ErrCodeExists
		}
	}
	repo.db.institutions[inst.ID] = inst
	return inst, nil
}

func (repo *institutionRepository) UpdateInstitution(_ context.Context, inst institution.Institution) (institution.Institution, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.institutions[inst.ID]; !ok {
		return institution.Institution{}, institution.ErrNotFound
	}
	repo.db.institutions[inst.ID] = inst
	return inst, nil
}

func (repo *institutionRepository) GetInstitution(_ context.Context, id string) (institution.Institution, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inst, ok := repo.db.institutions[id]; ok {
		return inst, nil
	}
	return institution.Institution{}, institution.ErrNotFound
}

func (repo *institutionRepository) find(match func(inst institution.Institution) bool) (institution.Institution, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, inst := range repo.db.institutions {
		if match(inst) {
			return inst, nil
		}
	}
	return institution.Institution{}, institution.ErrNotFound
}

func (repo *institutionRepository) GetInstitutionByCode(_ context.Context, code string) (institution.Institution, error) {
	return repo.find(func(inst institution.Institution) bool { return inst.Code == code })
}

func (repo *institutionRepository) GetInstitutionByInvite(_ context.Context, token string) (institution.Institution, error) {
	return repo.find(func(inst institution.Institution) bool { return token != "" && inst.InviteToken == token })
}

func (repo *institutionRepository) QueryInstitutions(_ context.Context) ([]institution.Institution, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	insts := make([]institution.Institution, 0, len(repo.db.institutions))
	for _, inst := range repo.db.institutions {
		insts = append(insts, inst)
	}
	sort.Slice(insts, func(i, j int) bool { return insts[i].Name < insts[j].Name })
	return insts, nil
}

func (repo *institutionRepository) SaveMembership(_ context.Context, m institution.Membership) (institution.Membership, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i, existing := range repo.db.memberships {
		if existing.UserID == m.UserID && existing.InstitutionID == m.InstitutionID {
			m.JoinedAt = existing.JoinedAt
			repo.db.memberships[i] = m
			return m, nil
		}
	}
	repo.db.memberships = append(repo.db.memberships, m)
	return m, nil
}

func (repo *institutionRepository) QueryMemberships(_ context.Context, filter institution.MemberFilter) ([]institution.Membership, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.memberships(filter.Match), nil
}

func (repo *institutionRepository) QueryUserMemberships(_ context.Context, userID string) ([]institution.Membership, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.memberships(func(m institution.Membership) bool { return m.UserID == userID }), nil
}

func (repo *institutionRepository) memberships(match func(m institution.Membership) bool) []institution.Membership {
	members := make([]institution.Membership, 0)
	for _, m := range repo.db.memberships {
		if match(m) {
			members = append(members, m)
		}
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members
}

func (repo *institutionRepository) CreateBillingRecord(_ context.Context, br institution.BillingRecord) (institution.BillingRecord, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.billing[br.OrderID] = br
	return br, nil
}

func (repo *institutionRepository) UpdateBillingRecord(_ context.Context, br institution.BillingRecord) (institution.BillingRecord, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.billing[br.OrderID]; !ok {
		return institution.BillingRecord{}, institution.ErrOrderNotFound
	}
	repo.db.billing[br.OrderID] = br
	return br, nil
}

func (repo *institutionRepository) GetBillingRecord(_ context.Context, orderID string) (institution.BillingRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if br, ok := repo.db.billing[orderID]; ok {
		return br, nil
	}
	return institution.BillingRecord{}, institution.ErrOrderNotFound
}

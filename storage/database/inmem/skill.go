package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/NaveenRoman/AI-TUTor/core/skill"
)

type skillRepository struct {
	db *DB
}

var _ skill.Repository = (*skillRepository)(nil)

func NewSkillRepository(db *DB) skill.Repository {
	return &skillRepository{db: db}
}

func (repo *skillRepository) GetProfile(_ context.Context, userID string) (skill.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.skillProfiles[userID]; ok {
		return p, nil
	}
	return skill.Profile{}, skill.ErrNotFound
}

func (repo *skillRepository) SaveProfile(_ context.Context, p skill.Profile) (skill.Profile, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.skillProfiles[p.UserID] = p
	return p, nil
}

func (repo *skillRepository) QueryProfiles(_ context.Context, filter *skill.ProfileFilter) ([]skill.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	profiles := make([]skill.Profile, 0)
	for _, p := range repo.db.skillProfiles {
		if filter.Match(p) {
			profiles = append(profiles, p)
		}
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].ReadinessScore != profiles[j].ReadinessScore {
			return profiles[i].ReadinessScore > profiles[j].ReadinessScore
		}
		return profiles[i].UserID < profiles[j].UserID
	})
	if filter != nil && filter.Limit > 0 && len(profiles) > filter.Limit {
		profiles = profiles[:filter.Limit]
	}
	return profiles, nil
}

func (repo *skillRepository) InsertHistory(_ context.Context, h skill.ReadinessHistory) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	k := key(h.UserID, dayKey(h.Date))
	if _, ok := repo.db.history[k]; ok {
		return false, nil
	}
	repo.db.history[k] = h
	return true, nil
}

func (repo *skillRepository) QueryHistory(_ context.Context, userID string, since time.Time) ([]skill.ReadinessHistory, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	history := make([]skill.ReadinessHistory, 0)
	for _, h := range repo.db.history {
		if h.UserID == userID && !h.Date.Before(since) {
			history = append(history, h)
		}
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Date.Before(history[j].Date) })
	return history, nil
}

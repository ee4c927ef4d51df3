package company

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/interview"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

const (
	maxCandidates       = 50
	defaultMinReadiness = 60
	riskAll             = "all"
)

// Plans
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

type PlanLimits struct {
	MaxFilters      int  `json:"max_filters"`
	ViewTranscripts bool `json:"view_transcripts"`
}

var planLimits = map[string]PlanLimits{
	PlanFree:       {MaxFilters: 5},
	PlanPro:        {MaxFilters: 50, ViewTranscripts: true},
	PlanEnterprise: {MaxFilters: 9999, ViewTranscripts: true},
}

// Limits returns the limits of plan, falling back to the free plan.
func Limits(plan string) PlanLimits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[PlanFree]
}

var (
	// errors
	ErrNotFound        = errors.New("company not found")
	ErrNotCompanyUser  = errors.New("not a company user")
	ErrCandidateAbsent = errors.New("candidate not found")
)

func init() {
	core.RegisterErrorStatus(http.StatusNotFound, ErrNotFound, ErrCandidateAbsent)
	core.RegisterErrorStatus(http.StatusForbidden, ErrNotCompanyUser)
}

type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Company) Limits() PlanLimits {
	return Limits(c.Plan)
}

type CompanyUser struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
}

type NewCompany struct {
	Name string `json:"name" validate:"required"`
	Plan string `json:"plan" validate:"omitempty,plan"`
}

func (nc *NewCompany) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Plan = core.CleanString(nc.Plan, true /* lower */)
	if nc.Plan == "" {
		nc.Plan = PlanFree
	}
	return validate.Struct(nc)
}

type CandidateFilter struct {
	MinReadiness   *float64 `query:"min_readiness"`
	Risk           string   `query:"risk"`
	MinProbability *float64 `query:"min_probability"`
}

func (cf *CandidateFilter) Clean() {
	cf.Risk = core.CleanString(cf.Risk, true /* lower */)
	if cf.Risk == "" {
		cf.Risk = riskAll
	}
}

type Candidate struct {
	UserID            string           `json:"user_id"`
	Username          string           `json:"username"`
	Name              string           `json:"name"`
	Profile           skill.Profile    `json:"profile"`
	Prediction        skill.Prediction `json:"prediction"`
	HiringProbability float64          `json:"hiring_probability"`
}

type CandidateDetail struct {
	Candidate
	Transcript []interview.Response `json:"transcript"`
}

type (
	Repository interface {
		CreateCompany(ctx context.Context, c Company) (Company, error)
		GetCompany(ctx context.Context, id string) (Company, error)
		// SaveCompanyUser attaches a user to a company; a user belongs to one company at most.
		SaveCompanyUser(ctx context.Context, cu CompanyUser) error
		GetCompanyUser(ctx context.Context, userID string) (CompanyUser, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewCompany) (Company, error)
		AddUser(ctx context.Context, companyID, userID string) error
		// Member returns the company of a user or ErrNotCompanyUser.
		Member(ctx context.Context, userID string) (Company, error)
		FilterCandidates(ctx context.Context, c Company, cf CandidateFilter) ([]Candidate, error)
		CandidateProfile(ctx context.Context, c Company, username string) (CandidateDetail, error)
	}

	service struct {
		repo         Repository
		userSvc      user.Service
		skillSvc     skill.Service
		interviewSvc interview.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc user.Service, skillSvc skill.Service, interviewSvc interview.Service) Service {
	return &service{
		repo:         repo,
		userSvc:      userSvc,
		skillSvc:     skillSvc,
		interviewSvc: interviewSvc,
	}
}

func (svc *service) Create(ctx context.Context, nc NewCompany) (Company, error) {
	c, err := svc.repo.CreateCompany(ctx, Company{
		ID:        uuid.NewString(),
		Name:      nc.Name,
		Plan:      nc.Plan,
		CreatedAt: core.Now(),
	})
	return c, errors.Wrap(err, "creating company")
}

func (svc *service) AddUser(ctx context.Context, companyID, userID string) error {
	if _, err := svc.repo.GetCompany(ctx, companyID); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.SaveCompanyUser(ctx, CompanyUser{UserID: userID, CompanyID: companyID}), "saving company user")
}

func (svc *service) Member(ctx context.Context, userID string) (Company, error) {
	cu, err := svc.repo.GetCompanyUser(ctx, userID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Company{}, ErrNotCompanyUser
		}
		return Company{}, errors.Wrap(err, "getting company user")
	}
	return svc.repo.GetCompany(ctx, cu.CompanyID)
}

// FilterCandidates lists the best prepared candidates matching cf, capped by the company plan.
func (svc *service) FilterCandidates(ctx context.Context, c Company, cf CandidateFilter) ([]Candidate, error) {
	cf.Clean()
	filter := &skill.ProfileFilter{MinReadiness: defaultMinReadiness}
	if cf.MinReadiness != nil {
		filter.MinReadiness = *cf.MinReadiness
	}
	if cf.Risk != riskAll {
		filter.RiskLevels = []string{cf.Risk}
	}
	limit := maxCandidates
	if max := c.Limits().MaxFilters; max < limit {
		limit = max
	}
	if cf.MinProbability == nil {
		filter.Limit = limit
	}

	profiles, err := svc.skillSvc.Profiles(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying skill profiles")
	}
	candidates := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		cand, err := svc.candidate(ctx, p)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				continue
			}
			return nil, err
		}
		if cf.MinProbability != nil && cand.HiringProbability < *cf.MinProbability {
			continue
		}
		candidates = append(candidates, cand)
		if len(candidates) == limit {
			break
		}
	}
	return candidates, nil
}

func (svc *service) candidate(ctx context.Context, p skill.Profile) (Candidate, error) {
	usr, err := svc.userSvc.GetByID(ctx, p.UserID)
	if err != nil {
		return Candidate{}, err
	}
	pred, err := svc.skillSvc.Predict(ctx, p)
	if err != nil {
		return Candidate{}, err
	}
	prob, err := svc.skillSvc.HiringProbability(ctx, p)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{
		UserID:            usr.ID,
		Username:          usr.Username,
		Name:              usr.Name,
		Profile:           p,
		Prediction:        pred,
		HiringProbability: prob,
	}, nil
}

func (svc *service) CandidateProfile(ctx context.Context, c Company, username string) (CandidateDetail, error) {
	if !c.Limits().ViewTranscripts {
		return CandidateDetail{}, core.ErrUpgradeRequired
	}
	usr, err := svc.userSvc.GetByUsername(ctx, username)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return CandidateDetail{}, ErrCandidateAbsent
		}
		return CandidateDetail{}, err
	}
	p, err := svc.skillSvc.Profile(ctx, usr.ID)
	if err != nil {
		return CandidateDetail{}, err
	}
	cand, err := svc.candidate(ctx, p)
	if err != nil {
		return CandidateDetail{}, err
	}
	transcript, err := svc.interviewSvc.Transcript(ctx, usr.ID)
	if err != nil {
		return CandidateDetail{}, errors.Wrap(err, "getting transcript")
	}
	return CandidateDetail{Candidate: cand, Transcript: transcript}, nil
}

package institution

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

const (
	adminPasswordLen  = 10
	adminPasswordChrs = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var (
	// errors
	ErrNotFound              = errors.New("institution not found")
	ErrCodeExists            = errors.New("an institution with this code already exists")
	ErrNotAdmin              = errors.New("not a college admin")
	ErrInvalidInvite         = errors.New("invalid invite link")
	ErrSubscriptionExpired   = errors.New("subscription expired")
	ErrStudentLimitReached   = errors.New("student limit reached")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderAlreadyConfirmed = errors.New("order already confirmed")
)

func init() {
	core.RegisterErrorStatus(http.StatusNotFound, ErrNotFound, ErrInvalidInvite, ErrOrderNotFound)
	core.RegisterErrorStatus(http.StatusForbidden, ErrNotAdmin, ErrStudentLimitReached)
	core.RegisterErrorStatus(http.StatusPaymentRequired, ErrSubscriptionExpired)
	core.RegisterErrorStatus(http.StatusConflict, ErrCodeExists, ErrOrderAlreadyConfirmed)
}

var randIntFunc = rand.Int // mockable

type (
	Repository interface {
		CreateInstitution(ctx context.Context, inst Institution) (Institution, error)
		UpdateInstitution(ctx context.Context, inst Institution) (Institution, error)
		GetInstitution(ctx context.Context, id string) (Institution, error)
		GetInstitutionByCode(ctx context.Context, code string) (Institution, error)
		GetInstitutionByInvite(ctx context.Context, token string) (Institution, error)
		QueryInstitutions(ctx context.Context) ([]Institution, error)

		// SaveMembership inserts or updates a Membership by (user, institution).
		SaveMembership(ctx context.Context, m Membership) (Membership, error)
		// QueryMemberships returns the memberships matching filter, oldest first.
		QueryMemberships(ctx context.Context, filter MemberFilter) ([]Membership, error)
		QueryUserMemberships(ctx context.Context, userID string) ([]Membership, error)

		CreateBillingRecord(ctx context.Context, br BillingRecord) (BillingRecord, error)
		UpdateBillingRecord(ctx context.Context, br BillingRecord) (BillingRecord, error)
		GetBillingRecord(ctx context.Context, orderID string) (BillingRecord, error)
	}

	Service interface {
		// Create stores a new institution and provisions its college admin account.
		Create(ctx context.Context, ni NewInstitution) (Institution, user.User, error)
		Get(ctx context.Context, id string) (Institution, error)
		List(ctx context.Context) ([]Institution, error)
		// AdminMembership returns the first college admin membership of a user.
		AdminMembership(ctx context.Context, userID string) (Membership, Institution, error)
		Members(ctx context.Context, filter MemberFilter) ([]Membership, error)
		GenerateInvite(ctx context.Context, adminID string) (Institution, error)
		Join(ctx context.Context, userID, token string, jr JoinRequest) (Membership, error)
		CreateOrder(ctx context.Context, institutionID string) (BillingRecord, error)
		// ConfirmPayment confirms an order of the institution institutionID. Orders of other institutions
		// are reported as ErrOrderNotFound.
		ConfirmPayment(ctx context.Context, institutionID string, cp ConfirmPayment) (Institution, error)
		UpdatePlan(ctx context.Context, id string, up UpdatePlan) (Institution, error)
		Deactivate(ctx context.Context, id string) (Institution, error)
		// ExpireSubscriptions deactivates the institutions whose subscription ended and returns them.
		ExpireSubscriptions(ctx context.Context) ([]Institution, error)
	}

	service struct {
		repo    Repository
		userSvc user.Service
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc user.Service, mailSvc core.EmailService, conf *core.Config, logger core.Logger) Service {
	return &service{
		repo:    repo,
		userSvc: userSvc,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *service) Create(ctx context.Context, ni NewInstitution) (Institution, user.User, error) {
	if _, err := svc.repo.GetInstitutionByCode(ctx, ni.Code); err == nil {
		return Institution{}, user.User{}, core.NewValidationError(ErrCodeExists, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return Institution{}, user.User{}, errors.Wrap(err, "checking institution code")
	}

	inst, err := svc.repo.CreateInstitution(ctx, Institution{
		ID:           uuid.NewString(),
		Name:         ni.Name,
		Code:         ni.Code,
		AdminEmail:   ni.AdminEmail,
		Plan:         ni.Plan,
		IsActive:     true,
		StudentLimit: ni.StudentLimit,
		MonthlyPrice: svc.conf.Billing.MonthlyPrice,
		CreatedAt:    core.Now(),
	})
	if err != nil {
		return Institution{}, user.User{}, errors.Wrap(err, "creating institution")
	}

	admin, pwd, err := svc.provisionAdmin(ctx, inst)
	if err != nil {
		return Institution{}, user.User{}, err
	}
	if _, err := svc.repo.SaveMembership(ctx, Membership{
		UserID:        admin.ID,
		InstitutionID: inst.ID,
		Role:          MemberCollegeAdmin,
		JoinedAt:      core.Now(),
	}); err != nil {
		return Institution{}, user.User{}, errors.Wrap(err, "creating admin membership")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{admin.MailAddress()},
		Subject:      "Your AI Tutor admin account",
		TemplateName: "institution_admin",
		TemplateData: map[string]string{
			"Institution": inst.Name,
			"Username":    admin.Username,
			"Password":    pwd,
		},
	})
	return inst, admin, nil
}

// provisionAdmin creates the college admin user with a generated password. An account already
// registered with the admin email keeps its password, is granted the college admin role and the
// returned password is empty.
func (svc *service) provisionAdmin(ctx context.Context, inst Institution) (user.User, string, error) {
	if usr, err := svc.userSvc.GetByEmail(ctx, inst.AdminEmail); err == nil {
		if usr.IsCollegeAdmin() {
			return usr, "", nil
		}
		usr, err = svc.userSvc.Update(ctx, usr.ID, user.UpdateUser{
			Name:     usr.Name,
			Username: usr.Username,
			Email:    usr.Email,
			Roles:    append(append([]string{}, usr.Roles...), user.RoleCollegeAdmin),
		})
		return usr, "", errors.Wrap(err, "granting college admin role")
	} else if errors.Cause(err) != user.ErrNotFound {
		return user.User{}, "", errors.Wrap(err, "getting admin user")
	}

	pwd, err := randomPassword(adminPasswordLen)
	if err != nil {
		return user.User{}, "", errors.Wrap(err, "generating admin password")
	}
	uname, err := svc.availableUsername(ctx, inst.AdminEmail)
	if err != nil {
		return user.User{}, "", err
	}
	usr, err := svc.userSvc.Create(ctx, user.NewUser{
		Name:            inst.Name + " Admin",
		Username:        uname,
		Email:           inst.AdminEmail,
		Password:        pwd,
		PasswordConfirm: pwd,
		Roles:           []string{user.RoleCollegeAdmin},
	})
	return usr, pwd, errors.Wrap(err, "creating admin user")
}

// availableUsername derives a username from the email local part, suffixed with `_<n>` until unique.
func (svc *service) availableUsername(ctx context.Context, email string) (string, error) {
	base := strings.ToLower(strings.SplitN(email, "@", 2)[0])
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, base)
	uname := base
	for n := 1; ; n++ {
		_, err := svc.userSvc.GetByUsername(ctx, uname)
		if errors.Cause(err) == user.ErrNotFound {
			return uname, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "checking username")
		}
		uname = base + "_" + strconv.Itoa(n)
	}
}

func randomPassword(n int) (string, error) {
	max := big.NewInt(int64(len(adminPasswordChrs)))
	b := make([]byte, n)
	for i := range b {
		idx, err := randIntFunc(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = adminPasswordChrs[idx.Int64()]
	}
	return string(b), nil
}

func (svc *service) Get(ctx context.Context, id string) (Institution, error) {
	return svc.repo.GetInstitution(ctx, id)
}

func (svc *service) List(ctx context.Context) ([]Institution, error) {
	return svc.repo.QueryInstitutions(ctx)
}

func (svc *service) AdminMembership(ctx context.Context, userID string) (Membership, Institution, error) {
	memberships, err := svc.repo.QueryUserMemberships(ctx, userID)
	if err != nil {
		return Membership{}, Institution{}, errors.Wrap(err, "querying memberships")
	}
	for _, m := range memberships {
		if m.Role != MemberCollegeAdmin {
			continue
		}
		inst, err := svc.repo.GetInstitution(ctx, m.InstitutionID)
		if err != nil {
			return Membership{}, Institution{}, errors.Wrap(err, "getting institution")
		}
		return m, inst, nil
	}
	return Membership{}, Institution{}, ErrNotAdmin
}

func (svc *service) Members(ctx context.Context, filter MemberFilter) ([]Membership, error) {
	return svc.repo.QueryMemberships(ctx, filter)
}

func (svc *service) GenerateInvite(ctx context.Context, adminID string) (Institution, error) {
	_, inst, err := svc.AdminMembership(ctx, adminID)
	if err != nil {
		return Institution{}, err
	}
	inst.InviteToken = strings.ReplaceAll(uuid.NewString(), "-", "")
	inst, err = svc.repo.UpdateInstitution(ctx, inst)
	return inst, errors.Wrap(err, "saving invite token")
}

// Join enrolls a student through an invite token. Joining twice only updates branch and batch.
func (svc *service) Join(ctx context.Context, userID, token string, jr JoinRequest) (Membership, error) {
	if token == "" {
		return Membership{}, ErrInvalidInvite
	}
	inst, err := svc.repo.GetInstitutionByInvite(ctx, token)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Membership{}, ErrInvalidInvite
		}
		return Membership{}, errors.Wrap(err, "getting institution")
	}
	if !inst.HasActiveSubscription() {
		return Membership{}, ErrSubscriptionExpired
	}

	students, err := svc.repo.QueryMemberships(ctx, MemberFilter{InstitutionID: inst.ID, Role: MemberStudent})
	if err != nil {
		return Membership{}, errors.Wrap(err, "querying memberships")
	}
	m := Membership{UserID: userID, InstitutionID: inst.ID, Role: MemberStudent, JoinedAt: core.Now()}
	var member bool
	for _, s := range students {
		if s.UserID == userID {
			m, member = s, true
			break
		}
	}
	if !member && inst.StudentLimit > 0 && len(students) >= inst.StudentLimit {
		return Membership{}, ErrStudentLimitReached
	}
	m.Branch, m.Batch = jr.Branch, jr.Batch
	m, err = svc.repo.SaveMembership(ctx, m)
	return m, errors.Wrap(err, "saving membership")
}

func (svc *service) CreateOrder(ctx context.Context, institutionID string) (BillingRecord, error) {
	inst, err := svc.repo.GetInstitution(ctx, institutionID)
	if err != nil {
		return BillingRecord{}, err
	}
	br, err := svc.repo.CreateBillingRecord(ctx, BillingRecord{
		ID:            uuid.NewString(),
		InstitutionID: inst.ID,
		Amount:        svc.conf.Billing.ProAmount,
		Currency:      svc.conf.Billing.Currency,
		Plan:          PlanPro,
		Status:        BillingCreated,
		OrderID:       "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		CreatedAt:     core.Now(),
	})
	return br, errors.Wrap(err, "creating billing record")
}

// ConfirmPayment marks an order paid and extends the subscription by one billing period, counted
// from today or from the current end when it is still ahead.
func (svc *service) ConfirmPayment(ctx context.Context, institutionID string, cp ConfirmPayment) (Institution, error) {
	br, err := svc.repo.GetBillingRecord(ctx, cp.OrderID)
	if err != nil {
		return Institution{}, err
	}
	if br.InstitutionID != institutionID {
		return Institution{}, ErrOrderNotFound
	}
	if br.Status == BillingPaid {
		return Institution{}, ErrOrderAlreadyConfirmed
	}
	inst, err := svc.repo.GetInstitution(ctx, br.InstitutionID)
	if err != nil {
		return Institution{}, errors.Wrap(err, "getting institution")
	}

	br.Status, br.PaidOn = BillingPaid, core.Now()
	if _, err := svc.repo.UpdateBillingRecord(ctx, br); err != nil {
		return Institution{}, errors.Wrap(err, "updating billing record")
	}

	start := core.Today()
	if end := core.TruncateDay(inst.SubscriptionEnd); !inst.SubscriptionEnd.IsZero() && end.After(start) {
		start = end
	}
	inst.Plan = br.Plan
	inst.IsActive = true
	inst.SubscriptionEnd = start.AddDate(0, 0, svc.conf.Billing.PeriodDays)
	inst, err = svc.repo.UpdateInstitution(ctx, inst)
	return inst, errors.Wrap(err, "updating institution")
}

func (svc *service) UpdatePlan(ctx context.Context, id string, up UpdatePlan) (Institution, error) {
	inst, err := svc.repo.GetInstitution(ctx, id)
	if err != nil {
		return Institution{}, err
	}
	inst.Plan = up.Plan
	if up.StudentLimit != nil {
		inst.StudentLimit = *up.StudentLimit
	}
	inst, err = svc.repo.UpdateInstitution(ctx, inst)
	return inst, errors.Wrap(err, "updating institution")
}

func (svc *service) Deactivate(ctx context.Context, id string) (Institution, error) {
	inst, err := svc.repo.GetInstitution(ctx, id)
	if err != nil {
		return Institution{}, err
	}
	inst.IsActive = false
	inst, err = svc.repo.UpdateInstitution(ctx, inst)
	return inst, errors.Wrap(err, "updating institution")
}

func (svc *service) ExpireSubscriptions(ctx context.Context) ([]Institution, error) {
	all, err := svc.repo.QueryInstitutions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying institutions")
	}
	today := core.Today()
	var expired []Institution
	for _, inst := range all {
		if !inst.IsActive || inst.SubscriptionEnd.IsZero() || !core.TruncateDay(inst.SubscriptionEnd).Before(today) {
			continue
		}
		inst.IsActive = false
		if inst, err = svc.repo.UpdateInstitution(ctx, inst); err != nil {
			return expired, errors.Wrap(err, "deactivating institution")
		}
		expired = append(expired, inst)
	}
	return expired, nil
}

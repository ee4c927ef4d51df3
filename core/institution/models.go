package institution

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/NaveenRoman/AI-TUTor/core"
)

// Plans
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Features
const (
	FeatureAdminDashboard      = "admin_dashboard"
	FeatureWeakTopics          = "weak_topics"
	FeaturePDFExport           = "pdf_export"
	FeatureBatchFiltering      = "batch_filtering"
	FeaturePlacementPrediction = "placement_prediction"
)

// Membership roles
const (
	MemberStudent      = "student"
	MemberCollegeAdmin = "college_admin"
)

// Billing statuses
const (
	BillingCreated = "created"
	BillingPaid    = "paid"
	BillingFailed  = "failed"
)

var (
	Plans = []string{PlanFree, PlanPro, PlanEnterprise}

	planFeatures = map[string][]string{
		FeatureAdminDashboard:      {PlanPro, PlanEnterprise},
		FeatureWeakTopics:          {PlanPro, PlanEnterprise},
		FeaturePDFExport:           {PlanPro, PlanEnterprise},
		FeatureBatchFiltering:      {PlanEnterprise},
		FeaturePlacementPrediction: {PlanEnterprise},
	}
)

// IsFeatureAllowed reports whether plan includes feature. Unknown features are never allowed.
func IsFeatureAllowed(plan, feature string) bool {
	for _, p := range planFeatures[feature] {
		if p == plan {
			return true
		}
	}
	return false
}

type Institution struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Code            string    `json:"code"`
	AdminEmail      string    `json:"admin_email"`
	Plan            string    `json:"plan"`
	IsActive        bool      `json:"is_active"`
	SubscriptionEnd time.Time `json:"subscription_end"` // date; zero when never subscribed
	StudentLimit    int       `json:"student_limit"`
	InviteToken     string    `json:"invite_token,omitempty"`
	MonthlyPrice    int       `json:"monthly_price"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasActiveSubscription reports whether the institution is active and its subscription did not end
// before today.
func (inst Institution) HasActiveSubscription() bool {
	if !inst.IsActive {
		return false
	}
	return inst.SubscriptionEnd.IsZero() || !core.TruncateDay(inst.SubscriptionEnd).Before(core.Today())
}

func (inst Institution) IsFeatureAllowed(feature string) bool {
	return IsFeatureAllowed(inst.Plan, feature)
}

type Membership struct {
	UserID        string    `json:"user_id"`
	InstitutionID string    `json:"institution_id"`
	Role          string    `json:"role"`
	Branch        string    `json:"branch"`
	Batch         string    `json:"batch"`
	JoinedAt      time.Time `json:"joined_at"`
}

type BillingRecord struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"institution_id"`
	Amount        int       `json:"amount"` // smallest currency unit
	Currency      string    `json:"currency"`
	Plan          string    `json:"plan"`
	Status        string    `json:"status"`
	OrderID       string    `json:"order_id"`
	PaidOn        time.Time `json:"paid_on"`
	CreatedAt     time.Time `json:"created_at"`
}

type NewInstitution struct {
	Name         string `json:"name" validate:"required"`
	Code         string `json:"code" validate:"required,alphanum_"`
	AdminEmail   string `json:"admin_email" validate:"required,email"`
	Plan         string `json:"plan" validate:"omitempty,plan"`
	StudentLimit int    `json:"student_limit" validate:"gte=0"`
}

func (ni *NewInstitution) Validate(validate *validator.Validate) error {
	ni.Name = core.CleanString(ni.Name)
	ni.Code = core.CleanString(ni.Code, true /* lower */)
	ni.AdminEmail = core.CleanString(ni.AdminEmail, true /* lower */)
	ni.Plan = core.CleanString(ni.Plan, true /* lower */)
	if ni.Plan == "" {
		ni.Plan = PlanFree
	}
	return validate.Struct(ni)
}

type JoinRequest struct {
	Branch string `json:"branch" validate:"max=100"`
	Batch  string `json:"batch" validate:"max=20"`
}

func (jr *JoinRequest) Validate(validate *validator.Validate) error {
	jr.Branch = core.CleanString(jr.Branch)
	jr.Batch = core.CleanString(jr.Batch)
	return validate.Struct(jr)
}

// ConfirmPayment confirms an order. The plan paid for is the one recorded on the order.
type ConfirmPayment struct {
	OrderID string `json:"order_id" validate:"required"`
}

func (cp *ConfirmPayment) Validate(validate *validator.Validate) error {
	cp.OrderID = core.CleanString(cp.OrderID)
	return validate.Struct(cp)
}

type UpdatePlan struct {
	Plan         string `json:"plan" validate:"required,plan"`
	StudentLimit *int   `json:"student_limit" validate:"omitempty,gte=0"`
}

func (up *UpdatePlan) Validate(validate *validator.Validate) error {
	up.Plan = core.CleanString(up.Plan, true /* lower */)
	return validate.Struct(up)
}

type MemberFilter struct {
	InstitutionID string
	Role          string
	Branch        string
	Batch         string
}

func (f MemberFilter) Match(m Membership) bool {
	return (f.InstitutionID == "" || m.InstitutionID == f.InstitutionID) &&
		(f.Role == "" || m.Role == f.Role) &&
		(f.Branch == "" || m.Branch == f.Branch) &&
		(f.Batch == "" || m.Batch == f.Batch)
}

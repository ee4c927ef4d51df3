package user

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/NaveenRoman/AI-TUTor/core"
)

// Roles
const (
	// Platform admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"

	// College admin
	RoleCollegeAdmin = "college_admin:"

	// Company recruiter
	RoleCompany = "company:"

	// Student
	RoleStudent = "student:"
)

// AI tutor modes
const (
	AIModeGlobal = "global"
	AIModeBook   = "book"
)

var (
	AdminRoles        = []string{RoleAdmin, RoleAdminOwner}
	CollegeAdminRoles = []string{RoleCollegeAdmin}
	CompanyRoles      = []string{RoleCompany}
	StudentRoles      = []string{RoleStudent}
	AllRoles          = getAllRoles()

	rolePriorities = map[string]int{
		// Platform admins: 30 - 21
		RoleAdminOwner: 30,
		RoleAdmin:      21,

		// College admins: 20 - 11
		RoleCollegeAdmin: 11,

		// Companies: 10 - 6
		RoleCompany: 6,

		// Students: 5 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Company", Value: RoleCompany},
		{Name: "College Admin", Value: RoleCollegeAdmin},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 5)
	all = append(all, AdminRoles...)
	all = append(all, CollegeAdminRoles...)
	all = append(all, CompanyRoles...)
	all = append(all, StudentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsCollegeAdmin() bool {
	return u.RoleStartsWith(RoleCollegeAdmin)
}

func (u *User) IsCompany() bool {
	return u.RoleStartsWith(RoleCompany)
}

func (u *User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

func (u *User) MailAddress() mail.Address {
	name := u.Name
	if name == "" {
		name = u.Username
	}
	return mail.Address{Name: name, Address: u.Email}
}

// Profile holds the learner's gamification state and tutor preferences. There is one per User.
type Profile struct {
	UserID            string    `json:"user_id"`
	Bio               string    `json:"bio"`
	Level             int       `json:"level"`
	XP                int       `json:"xp"`
	Streak            int       `json:"streak"`
	Timezone          string    `json:"timezone"`
	WeeklyQuizEnabled bool      `json:"weekly_quiz_enabled"`
	CurrentBookID     string    `json:"current_book_id"`
	CurrentChapterID  string    `json:"current_chapter_id"`
	AIMode            string    `json:"ai_mode"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func NewProfile(userID string, now time.Time) Profile {
	return Profile{
		UserID:            userID,
		Level:             1,
		Timezone:          "Asia/Kolkata",
		WeeklyQuizEnabled: true,
		AIMode:            AIModeGlobal,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// AddXP adds xp points and levels the profile up every 100 points.
func (p *Profile) AddXP(xp int) {
	p.XP += xp
	if p.XP < 0 {
		p.XP = 0
	}
	p.Level = 1 + p.XP/100
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Username, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

// UpdateProfile defines what a User may change on their own Profile.
type UpdateProfile struct {
	Bio               *string `json:"bio" validate:"omitempty,max=500"`
	Timezone          string  `json:"timezone"`
	WeeklyQuizEnabled *bool   `json:"weekly_quiz_enabled"`
	AIMode            string  `json:"ai_mode" validate:"omitempty,oneof=global book"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.Timezone = core.CleanString(up.Timezone)
	up.AIMode = core.CleanString(up.AIMode, true /* lower */)
	if err := validate.Struct(up); err != nil {
		return err
	}
	if up.Timezone != "" {
		if _, err := time.LoadLocation(up.Timezone); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "timezone", Error: "unknown time zone"})
		}
	}
	return nil
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Match reports whether usr satisfies every set field of the filter.
func (qf *QueryFilter) Match(usr User) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(usr.Name), s) ||
			strings.Contains(strings.ToLower(usr.Username), s) ||
			strings.Contains(strings.ToLower(usr.Email), s)) {
			return false
		}
	}
	if len(qf.Roles) > 0 {
		var found bool
		for _, role := range qf.Roles {
			if usr.RoleStartsWith(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.IsActive != nil && usr.IsActive != *qf.IsActive {
		return false
	}
	if !qf.CreatedFrom.IsZero() && usr.CreatedAt.Before(qf.CreatedFrom.UTC()) {
		return false
	}
	if !qf.CreatedTo.IsZero() && usr.CreatedAt.After(qf.CreatedTo.UTC()) {
		return false
	}
	return true
}

// GetFilter selects a single User. The first non-empty field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string
}

package user

import (
	"context"
	"net/http"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
)

var (
	// errors
	ErrNotFound        = errors.New("user not found")
	ErrUserExists      = errors.New("a user with this username or email already exists")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrUsernameExists  = errors.New("a user with this username already exists")
	ErrAccountInactive = errors.New("account deactivated")

	errInvalidValue = "invalid value"
)

func init() {
	core.RegisterErrorStatus(http.StatusNotFound, ErrNotFound)
	core.RegisterErrorStatus(http.StatusForbidden, ErrAccountInactive)
}

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) (int, error)

		GetProfile(ctx context.Context, userID string) (Profile, error)
		SaveProfile(ctx context.Context, p Profile) (Profile, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		ActiveStudents(ctx context.Context) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error

		Profile(ctx context.Context, userID string) (Profile, error)
		UpdateProfile(ctx context.Context, userID string, up UpdateProfile) (Profile, error)
		AddXP(ctx context.Context, userID string, xp int) (Profile, error)
		SetStreak(ctx context.Context, userID string, streak int) (Profile, error)
		SetCurrentChapter(ctx context.Context, userID, bookID, chapterID string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) Service {
	secretKey = []byte(conf.SecretKey)
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.Now()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	if _, err := svc.repo.SaveProfile(ctx, NewProfile(usr.ID, now)); err != nil {
		return User{}, errors.Wrap(err, "creating profile")
	}
	return usr, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) ActiveStudents(ctx context.Context) ([]User, error) {
	active := true
	return svc.repo.QueryUsers(ctx, &QueryFilter{Roles: StudentRoles, IsActive: &active}, nil)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{core.CleanString(uname, true /* lower */)}})
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids...)
	return err
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrAccountInactive
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := MakeToken(usr)
	if err != nil {
		svc.logger.Error("making password reset token", err, usr)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{usr.MailAddress()},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name": usr.MailAddress().Name,
			"Path": "/password-reset/" + EncodeUID(usr) + "/" + token,
		},
	})
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "uid", Error: errInvalidValue})
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "uid", Error: errInvalidValue})
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err := verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: errInvalidValue})
	}

	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.Now()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}

// Profile returns the User's Profile, creating the default one on first access.
func (svc *service) Profile(ctx context.Context, userID string) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Profile{}, errors.Wrap(err, "getting profile")
	}
	p, err = svc.repo.SaveProfile(ctx, NewProfile(userID, core.Now()))
	return p, errors.Wrap(err, "creating profile")
}

func (svc *service) UpdateProfile(ctx context.Context, userID string, up UpdateProfile) (Profile, error) {
	return svc.mutateProfile(ctx, userID, func(p *Profile) {
		if up.Bio != nil {
			p.Bio = core.CleanString(*up.Bio)
		}
		if up.Timezone != "" {
			p.Timezone = up.Timezone
		}
		if up.WeeklyQuizEnabled != nil {
			p.WeeklyQuizEnabled = *up.WeeklyQuizEnabled
		}
		if up.AIMode != "" {
			p.AIMode = up.AIMode
		}
	})
}

func (svc *service) AddXP(ctx context.Context, userID string, xp int) (Profile, error) {
	return svc.mutateProfile(ctx, userID, func(p *Profile) { p.AddXP(xp) })
}

func (svc *service) SetStreak(ctx context.Context, userID string, streak int) (Profile, error) {
	return svc.mutateProfile(ctx, userID, func(p *Profile) { p.Streak = streak })
}

func (svc *service) SetCurrentChapter(ctx context.Context, userID, bookID, chapterID string) error {
	_, err := svc.mutateProfile(ctx, userID, func(p *Profile) {
		p.CurrentBookID = bookID
		p.CurrentChapterID = chapterID
	})
	return err
}

func (svc *service) mutateProfile(ctx context.Context, userID string, mutate func(p *Profile)) (Profile, error) {
	p, err := svc.Profile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	mutate(&p)
	p.UpdatedAt = core.Now()
	p, err = svc.repo.SaveProfile(ctx, p)
	return p, errors.Wrap(err, "saving profile")
}

// used by the token generator; overwritten by NewService.
var passwordResetTimeoutDelta = 3 * 24 * time.Hour

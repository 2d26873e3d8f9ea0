package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrEmailExists    = errors.New("a user with this email already exists")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another user (not excludedID) holds them.
		CheckUniqueness(ctx context.Context, username, email, excludedID string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on the QueryFilter fields, ordered by name.
		QueryUsers(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUser(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Query(ctx context.Context, filter *QueryFilter) ([]User, error)
		Update(ctx context.Context, orig User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		// SetPassword validates pwd against the password policy before storing it.
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		Delete(ctx context.Context, id string) error
		// RequestPasswordReset mails a reset link to the active user owning email. Returns ErrNotFound otherwise.
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error)
	}

	service struct {
		repo     Repository
		validate *validator.Validate
		mailSvc  core.EmailService
		tokens   tokenGenerator
		appName  string
		resetURL string
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, validate *validator.Validate, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:     repo,
		validate: validate,
		mailSvc:  mailSvc,
		tokens:   tokenGenerator{secret: []byte(conf.SecretKey), timeout: conf.Server.PasswordResetTimeoutDelta},
		appName:  conf.AppName,
		resetURL: conf.FrontendURL + "/password-reset",
	}
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email, excludedID string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedID); err != nil {
		var field string
		switch err {
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
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email, ""); err != nil {
		return User{}, err
	}

	now := NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]User, error) {
	var qf QueryFilter
	if filter != nil {
		filter.Clean()
		qf = *filter
	}
	users, err := svc.repo.QueryUsers(ctx, qf)
	return users, errors.Wrap(err, "querying users")
}

func (svc *service) Update(ctx context.Context, orig User, uu UpdateUser) (User, error) {
	if err := uu.Validate(orig, svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, orig.Username, uu.Email, orig.ID); err != nil {
		return User{}, err
	}

	usr := orig
	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Roles = uu.Roles
	usr.IsActive = uu.IsActive
	usr.UpdatedAt = NowFunc().UTC()
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}

	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := NowFunc().UTC()
	usr.LastLogin = &now
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := svc.validate.Var(pwd, "required"); err != nil {
		return User{}, err
	}
	return svc.setPassword(ctx, usr, pwd)
}

func (svc *service) setPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if msg := CheckPasswordPolicy(pwd, usr.Name, usr.Username, usr.Email); msg != "" {
		return User{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "password", Error: msg})
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteUser(ctx, id)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)
	if err := svc.validate.Var(email, "required,email"); err != nil {
		return err
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: email})
	if err != nil {
		return err
	}
	if !usr.Active() || usr.Email != email {
		return ErrNotFound
	}

	link := fmt.Sprintf("%s/%s/%s", svc.resetURL, EncodeUID(usr), svc.tokens.makeToken(usr))
	body := fmt.Sprintf(
		"Olá %s,\n\nRecebemos um pedido para redefinir a sua senha no %s.\n"+
			"Para escolher uma nova senha, acesse: %s\n\n"+
			"Se você não fez este pedido, ignore esta mensagem.\n",
		usr.Name, svc.appName, link,
	)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:          []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:     "Redefinição de senha",
		TextContent: body,
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error) {
	if err := svc.validate.Struct(rp); err != nil {
		return User{}, err
	}

	invalid := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: "invalid or expired token"})
	id, err := decodeUID(rp.UID)
	if err != nil {
		return User{}, invalid
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if err == ErrNotFound {
			return User{}, invalid
		}
		return User{}, err
	}
	if !usr.Active() {
		return User{}, invalid
	}
	if err := svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return User{}, invalid
	}
	return svc.setPassword(ctx, usr, rp.Password)
}

package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/portal"
	"github.com/trezcool/agape/core/user"
)

const (
	staffAudience  = "staff"
	portalAudience = "portal"

	staffTokenKey  = "userToken"
	portalTokenKey = "portalToken"
	contextUserKey = "user"
)

// Claims represents the authorization claims of a staff member transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// PortalClaims binds a guardian portal session to one student.
type PortalClaims struct {
	jwt.StandardClaims
	GuardianID  string `json:"gid"`
	StudentName string `json:"student_name,omitempty"`
}

func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  staffAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		Roles:        usr.Roles,
	}
}

func GetPortalClaims(conf *core.Config, id portal.Identity) *PortalClaims {
	now := time.Now()
	return &PortalClaims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   id.StudentID,
			Audience:  portalAudience,
			ExpiresAt: now.Add(conf.Server.PortalSessionDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		GuardianID:  id.GuardianID,
		StudentName: id.StudentName,
	}
}

// GenerateToken generates a signed JWT token string representing the claims.
func GenerateToken(claims jwt.Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)

	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func jwtConfig(conf *core.Config, contextKey string, claims jwt.Claims) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextKey,
		Claims:        claims,
	}
}

// staffMiddleware authenticates staff members; portal tokens are rejected.
func staffMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return chain(
		middleware.JWTWithConfig(jwtConfig(conf, staffTokenKey, new(Claims))),
		audienceMiddleware(staffTokenKey, staffAudience),
	)
}

// portalMiddleware authenticates guardian portal sessions; staff tokens are rejected.
func portalMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return chain(
		middleware.JWTWithConfig(jwtConfig(conf, portalTokenKey, new(PortalClaims))),
		audienceMiddleware(portalTokenKey, portalAudience),
	)
}

func audienceMiddleware(contextKey, audience string) echo.MiddlewareFunc {
	type audienceVerifier interface {
		VerifyAudience(cmp string, req bool) bool
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if token, ok := ctx.Get(contextKey).(*jwt.Token); ok {
				if claims, ok := token.Claims.(audienceVerifier); ok && claims.VerifyAudience(audience, true) {
					return next(ctx)
				}
			}
			return errInvalidToken
		}
	}
}

func chain(mws ...echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

func authenticate(ctx context.Context, conf *core.Config, svc user.Service, uname, pwd string) (*Claims, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.Active() {
		return nil, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetUserClaims(conf, usr), nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(staffTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getPortalClaims(ctx echo.Context) (PortalClaims, error) {
	if token, ok := ctx.Get(portalTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*PortalClaims); ok {
			return *claims, nil
		}
	}
	return PortalClaims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func refreshToken(ctx echo.Context, conf *core.Config, svc user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.Active() {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(GetUserClaims(conf, usr, claims.OrigIssuedAt), conf.SecretKey)
	return token, errors.Wrap(err, "generating token")
}

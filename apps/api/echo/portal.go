package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/portal"
)

type portalApi struct {
	svc  portal.Service
	conf *core.Config
}

func registerPortalAPI(g *echo.Group, svc portal.Service, conf *core.Config) {
	api := portalApi{svc: svc, conf: conf}

	pg := g.Group("/portal")
	pg.POST("/login", api.login)
	pg.GET("/dashboard", api.dashboard, portalMiddleware(conf))
}

type PortalLoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Identity  portal.Identity `json:"identity"`
}

func (api *portalApi) login(ctx echo.Context) error {
	var data portal.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}

	id, err := api.svc.Login(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "logging into portal")
	}

	claims := GetPortalClaims(api.conf, id)
	token, err := GenerateToken(claims, api.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, PortalLoginResponse{
		Token:     token,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
		Identity:  id,
	})
}

func (api *portalApi) dashboard(ctx echo.Context) error {
	claims, err := getPortalClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting portal claims")
	}

	dash, err := api.svc.Dashboard(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "building portal dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/profile"
)

type profileApi struct {
	conf *core.Config
	svc  *profile.Service
}

func registerProfileAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, svc *profile.Service) {
	api := profileApi{conf: conf, svc: svc}

	// un-authed endpoints
	ag := g.Group("/auth")
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, jwt)
	g.GET("/me", api.me, jwt)
	g.PUT("/me", api.update, jwt)
}

type (
	LoginResponse struct {
		Token   string          `json:"token"`
		Profile profile.Profile `json:"profile"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}
)

func (api *profileApi) register(ctx echo.Context) error {
	var data profile.NewProfile
	if err := bindBody(ctx, &data, "NewProfile"); err != nil {
		return err
	}

	p, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering profile")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *profileApi) login(ctx echo.Context) error {
	var data profile.Credentials
	if err := bindBody(ctx, &data, "Credentials"); err != nil {
		return err
	}

	p, err := api.svc.Authenticate(ctx.Request().Context(), data)
	if err != nil {
		switch errors.Cause(err) {
		case profile.ErrAuthenticationFailed:
			return core.NewValidationError(err)
		case profile.ErrAccountDeactivated:
			return errAccountDeactivated
		}
		return errors.Wrap(err, "authenticating")
	}

	token, err := GenerateToken(api.conf, GetIdentityClaims(api.conf, p.Identity()))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Profile: p})
}

func (api *profileApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *profileApi) me(ctx echo.Context) error {
	p, err := api.svc.Me(ctx.Request().Context(), getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *profileApi) update(ctx echo.Context) error {
	var data profile.UpdateProfile
	if err := bindBody(ctx, &data, "UpdateProfile"); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), getContextIdentity(ctx), data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

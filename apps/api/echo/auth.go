package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/authz"
	"github.com/trezcool/coachdesk/core/profile"
)

const (
	tokenContextKey = "userToken"
	audience        = "Coaching"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64      `json:"oriat,omitempty"`
	Role         authz.Role `json:"role,omitempty"`
}

func (c Claims) Identity() authz.Identity {
	return authz.Identity{ID: c.Subject, Role: c.Role}
}

// GetIdentityClaims returns the claims of a fresh token for id.
// origIat is carried over on refresh so the refresh window is not extended.
func GetIdentityClaims(conf *core.Config, id authz.Identity, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   id.ID,
			Audience:  audience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Role:         id.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// jwtMiddleware authenticates requests carrying a token at lookup ("header:Authorization", "query:token").
func jwtMiddleware(conf *core.Config, lookup string) echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
		TokenLookup:   lookup,
	})
}

func getContextClaims(ctx echo.Context) (Claims, bool) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, true
		}
	}
	return Claims{}, false
}

// getContextIdentity returns the authenticated caller, or the zero Identity which every service rejects.
func getContextIdentity(ctx echo.Context) authz.Identity {
	if claims, ok := getContextClaims(ctx); ok {
		return claims.Identity()
	}
	return authz.Identity{}
}

func refreshToken(ctx echo.Context, conf *core.Config, svc *profile.Service) (string, error) {
	claims, ok := getContextClaims(ctx)
	if !ok {
		return "", core.NewAuthorizationError(core.ReasonUnauthenticated)
	}

	p, err := svc.Me(ctx.Request().Context(), claims.Identity())
	if err != nil {
		return "", errors.Wrap(err, "getting context profile")
	}

	// check if profile is still active
	if !p.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(conf, GetIdentityClaims(conf, p.Identity(), claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

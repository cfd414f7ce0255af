package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/askweb/internal/runtime"
)

const (
	minCookieAge     = 300 * time.Second
	defaultCookieAge = time.Hour
)

type AuthHandler struct {
	Secret       []byte
	CookieDomain string
	Secure       bool
	Logger       *zap.Logger
}

func (a *AuthHandler) Register(g *echo.Group) {
	g.GET("/sso", a.sso)
	g.POST("/logout", a.logout)
}

// sso accepts a token minted by another site, stores it in an HttpOnly
// cookie and redirects to next.
//
//	@Summary	Single sign-on
//	@Tags		auth
//	@Param		token	query	string	true	"JWT"
//	@Param		next	query	string	false	"Path to redirect to"
//	@Success	302
//	@Router		/api/auth/sso [get]
func (a *AuthHandler) sso(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		return c.Redirect(http.StatusFound, "/")
	}
	info, err := runtime.ParseJWT(token, a.Secret)
	if err != nil {
		if a.Logger != nil {
			a.Logger.Info("sso token rejected", zap.Error(err))
		}
		return c.Redirect(http.StatusFound, "/")
	}

	c.SetCookie(&http.Cookie{
		Name:     runtime.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		Domain:   a.CookieDomain,
		MaxAge:   cookieMaxAge(info.ExpiresAt, time.Now()),
		HttpOnly: true,
		Secure:   a.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, safeNext(c.QueryParam("next")))
}

// Logout
//
//	@Summary	Logout
//	@Tags		auth
//	@Success	200	{string}	string	"OK"
//	@Router		/api/auth/logout [post]
func (a *AuthHandler) logout(c echo.Context) error {
	for _, name := range []string{runtime.AccessTokenCookie, runtime.RefreshTokenCookie} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   a.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
	return c.NoContent(http.StatusOK)
}

func cookieMaxAge(exp, now time.Time) int {
	age := defaultCookieAge
	if !exp.IsZero() {
		age = exp.Sub(now)
	}
	if age < minCookieAge {
		age = minCookieAge
	}
	return int(age / time.Second)
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return "/"
	}
	if !strings.HasPrefix(next, "/") {
		next = "/" + next
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

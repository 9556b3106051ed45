// Package session resolves the signed session cookie to an AdminUser once
// per request and exposes it through the echo context. Handlers never touch
// the cookie themselves.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
)

const (
	CookieName = "session"
	TTL        = 12 * time.Hour

	userContextKey = "currentUser"
)

type Service struct {
	DB     *gorm.DB
	Secret []byte
}

func (s *Service) IssueCookie(userID uint, role string) (*http.Cookie, error) {
	exp := time.Now().Add(TTL)
	claims := jwt.MapClaims{
		"sub":  fmt.Sprint(userID),
		"role": role,
		"exp":  exp.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return nil, err
	}
	return CreateCookie(CookieName, token, "/", exp), nil
}

func (s *Service) ClearCookie() *http.Cookie {
	return CreateCookie(CookieName, "", "/", time.Unix(0, 0))
}

// RequireLogin loads the session user or rejects with the "please log in"
// signal.
func (s *Service) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := s.resolve(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "please log in")
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

// RequireAdmin additionally gates on the admin role; techs can record
// services but cannot mutate the fleet itself.
func (s *Service) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return s.RequireLogin(func(c echo.Context) error {
		if CurrentUser(c).Role != models.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}
		return next(c)
	})
}

// CurrentUser returns the request's resolved admin. Only valid behind
// RequireLogin/RequireAdmin.
func CurrentUser(c echo.Context) *models.AdminUser {
	user, _ := c.Get(userContextKey).(*models.AdminUser)
	return user
}

func (s *Service) resolve(c echo.Context) (*models.AdminUser, error) {
	cookie, err := c.Cookie(CookieName)
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse(cookie.Value, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.Secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("cannot parse claims")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}

	var user models.AdminUser
	if err := s.DB.Where("id = ?", sub).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func CreateCookie(name, value, path string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

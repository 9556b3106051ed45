package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
	"github.com/fleetkeeper/fleetkeeper/internal/hash"
	"github.com/fleetkeeper/fleetkeeper/internal/logging"
	"github.com/fleetkeeper/fleetkeeper/internal/middleware/session"
	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/mykafka"
	"github.com/fleetkeeper/fleetkeeper/internal/service/audit"
)

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *session.Service
	Producer *mykafka.Producer
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Email           string `json:"email" form:"email"`
		Password        string `json:"password" form:"password"`
		ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
		Address         string `json:"address" form:"address"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apperr.Validationf("invalid body"))
	}

	if req.Email == "" || req.Password == "" {
		return errorResponse(c, apperr.Validationf("email and password are required"))
	}
	if req.Password != req.ConfirmPassword {
		return errorResponse(c, apperr.Validationf("passwords do not match"))
	}

	var existing models.AdminUser
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		if err != nil {
			return errorResponse(c, err)
		}
		return errorResponse(c, fmt.Errorf("email %w", apperr.ErrDuplicate))
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return errorResponse(c, err)
	}

	user := models.AdminUser{
		Email:        req.Email,
		PasswordHash: pwHash,
		Role:         models.RoleAdmin,
		Address:      req.Address,
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return audit.Record(tx, &user.ID, "register", "admin_user", &user.ID, "")
	})
	if err != nil {
		return errorResponse(c, err)
	}

	publish(c, h.Producer, "user_events", fmt.Sprint(user.ID), map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apperr.Validationf("invalid body"))
	}

	var user models.AdminUser
	err := h.DB.Where("email = ?", req.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !hash.CheckPassword(user.PasswordHash, req.Password)) {
		l.Warn("login failed", "email", req.Email)
		return errorResponse(c, fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized))
	}
	if err != nil {
		return errorResponse(c, err)
	}

	cookie, err := h.Sessions.IssueCookie(user.ID, user.Role)
	if err != nil {
		return errorResponse(c, err)
	}
	c.SetCookie(cookie)

	if err := audit.Record(h.DB, &user.ID, "login", "admin_user", &user.ID, ""); err != nil {
		return errorResponse(c, err)
	}

	publish(c, h.Producer, "user_events", fmt.Sprint(user.ID), map[string]any{
		"type":   "user_logged_in",
		"userID": user.ID,
	})
	l.Info("login successful", "userID", user.ID)

	return c.JSON(http.StatusOK, echo.Map{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.Sessions.ClearCookie())
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, session.CurrentUser(c))
}

package handlers

import (
	"errors"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/pairchat/internal/auth"
	"github.com/yourorg/pairchat/internal/repository"
	"github.com/yourorg/pairchat/internal/services"
)

type UserHandler struct {
	svc *services.AuthService
}

func NewUserHandler(svc *services.AuthService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Signup expects a multipart form with the profile fields and a required
// "avatar" image file.
func (h *UserHandler) Signup(c *fiber.Ctx) error {
	in := services.SignupInput{
		FullName: c.FormValue("fullName"),
		Username: c.FormValue("username"),
		Email:    c.FormValue("email"),
		Phone:    c.FormValue("phone"),
		Password: c.FormValue("password"),
	}

	avatar, err := formAvatar(c)
	if err != nil {
		return err
	}
	if avatar == nil {
		return fiber.NewError(fiber.StatusBadRequest, "avatar is required")
	}

	u, err := h.svc.Signup(c.Context(), in, avatar)
	if err != nil {
		return mapAuthError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully.",
		"data":    u,
	})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandler) Login(c *fiber.Ctx) error {
	var req loginReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	u, token, exp, err := h.svc.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Expires:  exp,
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.JSON(fiber.Map{
		"message": "User logged in successfully.",
		"data":    fiber.Map{"user": u, "token": token},
	})
}

// Logout clears the session cookie. The client is expected to close its
// realtime connection, which fires the disconnect cleanup on the gateway.
func (h *UserHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.JSON(fiber.Map{"message": "User logged out successfully."})
}

func (h *UserHandler) Me(c *fiber.Ctx) error {
	userID := c.Locals(auth.LocalsUserID).(string)
	u, err := h.svc.CurrentUser(c.Context(), userID)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(fiber.Map{"message": "User fetched successfully.", "data": u})
}

// List returns all users except the caller, for the chat sidebar.
func (h *UserHandler) List(c *fiber.Ctx) error {
	userID := c.Locals(auth.LocalsUserID).(string)
	users, err := h.svc.ListUsers(c.Context(), userID)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(fiber.Map{"message": "Users fetched successfully.", "data": users})
}

// Search filters other users by name or username.
func (h *UserHandler) Search(c *fiber.Ctx) error {
	userID := c.Locals(auth.LocalsUserID).(string)
	users, err := h.svc.SearchUsers(c.Context(), userID, c.Query("query"))
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(fiber.Map{"message": "Users fetched successfully.", "data": users})
}

// UpdateProfile replaces the caller's profile fields via a multipart form. The
// "avatar" file is optional; leaving it out keeps the current image.
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	userID := c.Locals(auth.LocalsUserID).(string)
	in := services.UpdateProfileInput{
		FullName: c.FormValue("fullName"),
		Username: c.FormValue("username"),
		Email:    c.FormValue("email"),
		Phone:    c.FormValue("phone"),
	}
	avatar, err := formAvatar(c)
	if err != nil {
		return err
	}

	u, err := h.svc.UpdateProfile(c.Context(), userID, in, avatar)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(fiber.Map{"message": "Profile updated successfully.", "data": u})
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required,min=6,max=255"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=255"`
}

func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	userID := c.Locals(auth.LocalsUserID).(string)
	var req changePasswordReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return mapAuthError(err)
	}
	return c.JSON(fiber.Map{"message": "Password changed successfully."})
}

func (h *UserHandler) UpdateAvatar(c *fiber.Ctx) error {
	userID := c.Locals(auth.LocalsUserID).(string)
	avatar, err := formAvatar(c)
	if err != nil {
		return err
	}
	if avatar == nil {
		return fiber.NewError(fiber.StatusBadRequest, "avatar is required")
	}

	url, err := h.svc.UpdateAvatar(c.Context(), userID, avatar)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(fiber.Map{
		"message": "Avatar updated successfully.",
		"data":    fiber.Map{"avatarUrl": url},
	})
}

type forgotPasswordReq struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

func (h *UserHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	if err := h.svc.RequestPasswordReset(c.Context(), req.Email); err != nil {
		return mapAuthError(err)
	}
	return c.JSON(fiber.Map{"message": "Reset password email sent."})
}

type resetPasswordReq struct {
	NewPassword string `json:"newPassword" validate:"required,min=6,max=255"`
}

func (h *UserHandler) ResetPassword(c *fiber.Ctx) error {
	token := c.Params("token")
	var req resetPasswordReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	if err := h.svc.ResetPassword(c.Context(), token, req.NewPassword); err != nil {
		return mapAuthError(err)
	}
	return c.JSON(fiber.Map{"message": "Password reset successfully."})
}

// formAvatar reads the optional "avatar" form file. nil with no error means
// the file was not sent.
func formAvatar(c *fiber.Ctx) ([]byte, error) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "avatar is unreadable")
	}
	defer f.Close()
	avatar, err := io.ReadAll(f)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "avatar is unreadable")
	}
	return avatar, nil
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fiber.NewError(fiber.StatusBadRequest, verrs[0].Error())
		}
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	return nil
}

var validate = validator.New()

func mapAuthError(err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrPhoneTaken),
		errors.Is(err, services.ErrWrongPassword),
		errors.Is(err, services.ErrInvalidResetToken):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrUserNotFound):
		return fiber.NewError(fiber.StatusNotFound, "User does not exist.")
	default:
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fiber.NewError(fiber.StatusBadRequest, verrs[0].Error())
		}
		return err
	}
}

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/pairchat/internal/auth"
	"github.com/yourorg/pairchat/internal/models"
	"github.com/yourorg/pairchat/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrPhoneTaken         = errors.New("phone number already exists")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

var validate = validator.New()

const resetTokenPrefix = "reset_token:"

// EmailSender delivers transactional mail. Satisfied by the Brevo client.
type EmailSender interface {
	Send(ctx context.Context, toEmail, subject, html string) error
}

// AvatarStore keeps avatar images and hands back their public URL.
type AvatarStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type SignupInput struct {
	FullName string `json:"fullName" validate:"required,min=4,max=255"`
	Username string `json:"username" validate:"required,min=4,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Phone    string `json:"phone" validate:"required,len=10"`
	Password string `json:"password" validate:"required,min=6,max=255"`
}

type AuthConfig struct {
	PasswordHashCost int
	ResetTokenTTL    time.Duration
	PublicBaseURL    string
	RedisPrefix      string
}

type AuthService struct {
	users   repository.UserRepository
	redis   *redis.Client
	mail    EmailSender
	avatars AvatarStore
	tokens  *auth.Manager
	log     *zap.SugaredLogger
	cfg     AuthConfig
}

func NewAuthService(
	users repository.UserRepository,
	rdb *redis.Client,
	mail EmailSender,
	avatars AvatarStore,
	tokens *auth.Manager,
	log *zap.SugaredLogger,
	cfg AuthConfig,
) *AuthService {
	if cfg.PasswordHashCost == 0 {
		cfg.PasswordHashCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:   users,
		redis:   rdb,
		mail:    mail,
		avatars: avatars,
		tokens:  tokens,
		log:     log,
		cfg:     cfg,
	}
}

// Signup registers a new user. The avatar is required, resized to a square
// thumbnail and stored before the user document is created.
func (s *AuthService) Signup(ctx context.Context, in SignupInput, avatar []byte) (*models.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.users.FindByPhone(ctx, in.Phone); err == nil {
		return nil, ErrPhoneTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	avatarURL, err := s.storeAvatar(ctx, avatar)
	if err != nil {
		return nil, fmt.Errorf("store avatar: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.PasswordHashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		FullName:     in.FullName,
		Username:     in.Username,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: string(hash),
		AvatarURL:    avatarURL,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Infow("user registered", "userId", u.ID.Hex(), "username", u.Username)
	return u, nil
}

// Login checks credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, time.Time, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", time.Time{}, ErrInvalidCredentials
		}
		return nil, "", time.Time{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	token, exp, err := s.tokens.Generate(u.ID.Hex())
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return u, token, exp, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *AuthService) ListUsers(ctx context.Context, excludeID string) ([]*models.User, error) {
	return s.users.ListOthers(ctx, excludeID)
}

// SearchUsers matches other users by name or username.
func (s *AuthService) SearchUsers(ctx context.Context, excludeID, query string) ([]*models.User, error) {
	return s.users.Search(ctx, excludeID, query)
}

type UpdateProfileInput struct {
	FullName string `json:"fullName" validate:"required,min=4,max=255"`
	Username string `json:"username" validate:"required,min=4,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Phone    string `json:"phone" validate:"required,len=10"`
}

// UpdateProfile replaces the caller's profile fields. Uniqueness checks skip
// the caller's own record, so resubmitting current values is not a conflict.
// The avatar is optional here; absent means keep the current one.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput, avatar []byte) (*models.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if other, err := s.users.FindByUsername(ctx, in.Username); err == nil {
		if other.ID != u.ID {
			return nil, ErrUsernameTaken
		}
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if other, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		if other.ID != u.ID {
			return nil, ErrEmailTaken
		}
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if other, err := s.users.FindByPhone(ctx, in.Phone); err == nil {
		if other.ID != u.ID {
			return nil, ErrPhoneTaken
		}
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	if len(avatar) > 0 {
		url, err := s.storeAvatar(ctx, avatar)
		if err != nil {
			return nil, fmt.Errorf("store avatar: %w", err)
		}
		u.AvatarURL = url
	}

	u.FullName = in.FullName
	u.Username = in.Username
	u.Email = in.Email
	u.Phone = in.Phone
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.log.Infow("profile updated", "userId", u.ID.Hex())
	return u, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)) != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.PasswordHashCost)
	if err != nil {
		return err
	}
	return s.users.SetPasswordHash(ctx, userID, string(hash))
}

// UpdateAvatar replaces the caller's avatar image.
func (s *AuthService) UpdateAvatar(ctx context.Context, userID string, avatar []byte) (string, error) {
	url, err := s.storeAvatar(ctx, avatar)
	if err != nil {
		return "", err
	}
	if err := s.users.SetAvatarURL(ctx, userID, url); err != nil {
		return "", err
	}
	return url, nil
}

// RequestPasswordReset mails a single-use reset link. The token lives in
// Redis for the configured TTL and is consumed on first use.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	u, err := s.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}

	token := uuid.New().String()
	key := s.resetKey(token)
	if err := s.redis.Set(ctx, key, u.ID.Hex(), s.cfg.ResetTokenTTL).Err(); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.cfg.PublicBaseURL, token)
	html := fmt.Sprintf(`Hi %s,<br />
You requested to reset your password.<br />
Please click the link below to reset your password.<br />
<a href=%q>Reset Password</a>`, u.FullName, resetURL)

	if err := s.mail.Send(ctx, u.Email, "Reset Password", html); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	s.log.Infow("password reset requested", "userId", u.ID.Hex())
	return nil
}

// ResetPassword consumes the token and sets the new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	key := s.resetKey(token)
	userID, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrInvalidResetToken
		}
		return err
	}
	s.redis.Del(ctx, key)

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.PasswordHashCost)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, userID, string(hash)); err != nil {
		return err
	}
	s.log.Infow("password reset completed", "userId", userID)
	return nil
}

func (s *AuthService) resetKey(token string) string {
	return s.cfg.RedisPrefix + ":" + resetTokenPrefix + token
}

// storeAvatar normalizes the image to a 256px square JPEG and uploads it.
func (s *AuthService) storeAvatar(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("avatar is required")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode avatar: %w", err)
	}
	thumb := imaging.Fill(img, 256, 256, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("encode avatar: %w", err)
	}
	key := fmt.Sprintf("avatars/%s.jpg", uuid.New().String())
	return s.avatars.Upload(ctx, key, "image/jpeg", buf.Bytes())
}

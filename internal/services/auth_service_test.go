package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/pairchat/internal/auth"
	"github.com/yourorg/pairchat/internal/models"
	"github.com/yourorg/pairchat/internal/repository"
)

type fakeUserRepo struct {
	users   []*models.User
	updated *models.User
}

func (f *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	u.ID = primitive.NewObjectID()
	f.users = append(f.users, u)
	return nil
}

func (f *fakeUserRepo) findBy(match func(*models.User) bool) (*models.User, error) {
	for _, u := range f.users {
		if match(u) {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	return f.findBy(func(u *models.User) bool { return u.ID.Hex() == id })
}

func (f *fakeUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return f.findBy(func(u *models.User) bool { return u.Username == username })
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return f.findBy(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUserRepo) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	return f.findBy(func(u *models.User) bool { return u.Phone == phone })
}

func (f *fakeUserRepo) ListOthers(_ context.Context, excludeID string) ([]*models.User, error) {
	var out []*models.User
	for _, u := range f.users {
		if u.ID.Hex() != excludeID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Search(_ context.Context, excludeID, query string) ([]*models.User, error) {
	q := strings.ToLower(query)
	var out []*models.User
	for _, u := range f.users {
		if u.ID.Hex() == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.FullName), q) ||
			strings.Contains(strings.ToLower(u.Username), q) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Update(_ context.Context, u *models.User) error {
	f.updated = u
	return nil
}

func (f *fakeUserRepo) SetAvatarURL(_ context.Context, _, _ string) error    { return nil }
func (f *fakeUserRepo) SetPasswordHash(_ context.Context, _, _ string) error { return nil }

type fakeAvatarStore struct {
	uploads int
}

func (f *fakeAvatarStore) Upload(_ context.Context, key, _ string, _ []byte) (string, error) {
	f.uploads++
	return "https://cdn.test/" + key, nil
}

func avatarPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func newTestAuthService(repo *fakeUserRepo, avatars AvatarStore) *AuthService {
	return NewAuthService(repo, nil, nil, avatars, auth.NewManager("secret", time.Hour), zap.NewNop().Sugar(), AuthConfig{
		PasswordHashCost: bcrypt.MinCost,
		ResetTokenTTL:    15 * time.Minute,
		RedisPrefix:      "test",
	})
}

func seedUser(repo *fakeUserRepo, username, email, phone string) *models.User {
	u := &models.User{
		ID:       primitive.NewObjectID(),
		FullName: "Existing User",
		Username: username,
		Email:    email,
		Phone:    phone,
	}
	repo.users = append(repo.users, u)
	return u
}

func TestAuthService_Signup_Duplicates(t *testing.T) {
	input := func() SignupInput {
		return SignupInput{
			FullName: "New User",
			Username: "newuser",
			Email:    "new@example.com",
			Phone:    "0123456789",
			Password: "secret1",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*SignupInput)
		wantErr error
	}{
		{name: "duplicate username", mutate: func(in *SignupInput) { in.Username = "taken" }, wantErr: ErrUsernameTaken},
		{name: "duplicate email", mutate: func(in *SignupInput) { in.Email = "taken@example.com" }, wantErr: ErrEmailTaken},
		{name: "duplicate phone", mutate: func(in *SignupInput) { in.Phone = "9999999999" }, wantErr: ErrPhoneTaken},
		{name: "all fields unique", mutate: func(*SignupInput) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUserRepo{}
			seedUser(repo, "taken", "taken@example.com", "9999999999")
			svc := newTestAuthService(repo, &fakeAvatarStore{})

			in := input()
			tt.mutate(&in)
			u, err := svc.Signup(context.Background(), in, avatarPNG(t))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Len(t, repo.users, 1, "a rejected signup must not create a user")
				return
			}
			require.NoError(t, err)
			require.NotNil(t, u)
			assert.False(t, u.ID.IsZero())
		})
	}
}

func TestAuthService_UpdateProfile(t *testing.T) {
	input := func(u *models.User) UpdateProfileInput {
		return UpdateProfileInput{
			FullName: u.FullName,
			Username: u.Username,
			Email:    u.Email,
			Phone:    u.Phone,
		}
	}

	t.Run("resubmitting own values is not a conflict", func(t *testing.T) {
		repo := &fakeUserRepo{}
		me := seedUser(repo, "myself", "me@example.com", "0123456789")
		svc := newTestAuthService(repo, &fakeAvatarStore{})

		u, err := svc.UpdateProfile(context.Background(), me.ID.Hex(), input(me), nil)
		require.NoError(t, err)
		require.NotNil(t, repo.updated)
		assert.Equal(t, me.ID, u.ID)
	})

	t.Run("taking another user's identity fields is rejected", func(t *testing.T) {
		tests := []struct {
			name    string
			mutate  func(*UpdateProfileInput)
			wantErr error
		}{
			{name: "username", mutate: func(in *UpdateProfileInput) { in.Username = "taken" }, wantErr: ErrUsernameTaken},
			{name: "email", mutate: func(in *UpdateProfileInput) { in.Email = "taken@example.com" }, wantErr: ErrEmailTaken},
			{name: "phone", mutate: func(in *UpdateProfileInput) { in.Phone = "9999999999" }, wantErr: ErrPhoneTaken},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo := &fakeUserRepo{}
				seedUser(repo, "taken", "taken@example.com", "9999999999")
				me := seedUser(repo, "myself", "me@example.com", "0123456789")
				svc := newTestAuthService(repo, &fakeAvatarStore{})

				in := input(me)
				tt.mutate(&in)
				_, err := svc.UpdateProfile(context.Background(), me.ID.Hex(), in, nil)
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, repo.updated, "a rejected update must not persist")
			})
		}
	})

	t.Run("fields are persisted", func(t *testing.T) {
		repo := &fakeUserRepo{}
		me := seedUser(repo, "myself", "me@example.com", "0123456789")
		svc := newTestAuthService(repo, &fakeAvatarStore{})

		u, err := svc.UpdateProfile(context.Background(), me.ID.Hex(), UpdateProfileInput{
			FullName: "Renamed User",
			Username: "renamed",
			Email:    "renamed@example.com",
			Phone:    "0123456780",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Renamed User", u.FullName)
		assert.Equal(t, "renamed", u.Username)
		assert.Equal(t, "renamed@example.com", u.Email)
		assert.Equal(t, "0123456780", u.Phone)
		require.NotNil(t, repo.updated)
		assert.Equal(t, "renamed", repo.updated.Username)
	})

	t.Run("avatar is optional", func(t *testing.T) {
		repo := &fakeUserRepo{}
		me := seedUser(repo, "myself", "me@example.com", "0123456789")
		me.AvatarURL = "https://cdn.test/avatars/old.jpg"
		store := &fakeAvatarStore{}
		svc := newTestAuthService(repo, store)

		u, err := svc.UpdateProfile(context.Background(), me.ID.Hex(), input(me), nil)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.test/avatars/old.jpg", u.AvatarURL, "no file keeps the current avatar")
		assert.Zero(t, store.uploads)

		u, err = svc.UpdateProfile(context.Background(), me.ID.Hex(), input(me), avatarPNG(t))
		require.NoError(t, err)
		assert.NotEqual(t, "https://cdn.test/avatars/old.jpg", u.AvatarURL)
		assert.Equal(t, 1, store.uploads)
	})
}

func TestAuthService_SearchUsers_ExcludesCaller(t *testing.T) {
	repo := &fakeUserRepo{}
	me := seedUser(repo, "myself", "me@example.com", "0123456789")
	other := seedUser(repo, "myfriend", "friend@example.com", "9999999999")
	svc := newTestAuthService(repo, &fakeAvatarStore{})

	got, err := svc.SearchUsers(context.Background(), me.ID.Hex(), "my")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, other.ID, got[0].ID)
}

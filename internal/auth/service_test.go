package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/geodirectory-backend/pkg/auth"
	"github.com/angelmondragon/geodirectory-backend/pkg/config"
	"github.com/angelmondragon/geodirectory-backend/pkg/db/models"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/security"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "geodir",
	ExpirationMinutes: 30,
}

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestServiceLoginMintsRoleClaim(t *testing.T) {
	for _, role := range []enums.UserRole{enums.UserRoleUser, enums.UserRoleAdmin} {
		user := newTestUser(t, "owner@example.com", "hunter22", role)
		repo := &stubUserRepo{user: user}
		svc := mustService(t, repo)

		resp, err := svc.Login(context.Background(), LoginRequest{Email: " Owner@Example.com ", Password: "hunter22"})
		if err != nil {
			t.Fatalf("login: %v", err)
		}

		claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
		if err != nil {
			t.Fatalf("parse access token: %v", err)
		}
		if claims.Role != role {
			t.Fatalf("expected %s role claim, got %s", role, claims.Role)
		}
		if claims.UserID != user.ID {
			t.Fatalf("expected user id %s, got %s", user.ID, claims.UserID)
		}
		if resp.TokenType != "Bearer" || resp.ExpiresIn != 1800 {
			t.Fatalf("unexpected token metadata %+v", resp)
		}
		if repo.lastLogin.IsZero() {
			t.Fatalf("expected last login to be recorded")
		}
		if resp.User == nil || resp.User.LastLoginAt == nil {
			t.Fatalf("expected user dto with last login")
		}
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := newTestUser(t, "owner@example.com", "hunter22", enums.UserRoleUser)

	cases := map[string]struct {
		repo *stubUserRepo
		req  LoginRequest
	}{
		"unknown email":  {repo: &stubUserRepo{}, req: LoginRequest{Email: "nobody@example.com", Password: "hunter22"}},
		"wrong password": {repo: &stubUserRepo{user: user}, req: LoginRequest{Email: user.Email, Password: "nope"}},
		"blank email":    {repo: &stubUserRepo{user: user}, req: LoginRequest{Email: "  ", Password: "hunter22"}},
		"inactive user":  {repo: &stubUserRepo{user: inactive(user)}, req: LoginRequest{Email: user.Email, Password: "hunter22"}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := mustService(t, tc.repo)
			_, err := svc.Login(context.Background(), tc.req)
			if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
				t.Fatalf("expected unauthorized, got %v", err)
			}
			if !tc.repo.lastLogin.IsZero() {
				t.Fatalf("failed login must not touch last_login_at")
			}
		})
	}
}

func TestServiceLoginLookupFailureIsInternal(t *testing.T) {
	svc := mustService(t, &stubUserRepo{findErr: errors.New("connection reset")})
	_, err := svc.Login(context.Background(), LoginRequest{Email: "a@example.com", Password: "hunter22"})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestServiceLoginUpgradesStaleHash(t *testing.T) {
	user := newTestUser(t, "owner@example.com", "hunter22", enums.UserRoleUser)
	repo := &stubUserRepo{user: user}
	stronger := testPasswordConfig
	stronger.ArgonTime = 2

	svc, err := NewService(ServiceParams{UserRepo: repo, JWTConfig: testJWTConfig, PasswordConfig: &stronger})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "hunter22"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if repo.rehashed == "" || security.NeedsRehash(repo.rehashed, stronger) {
		t.Fatalf("expected hash upgraded to current costs, got %q", repo.rehashed)
	}

	current := &stubUserRepo{user: user}
	svc, _ = NewService(ServiceParams{UserRepo: current, JWTConfig: testJWTConfig, PasswordConfig: &testPasswordConfig})
	if _, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "hunter22"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if current.rehashed != "" {
		t.Fatalf("expected no rehash for current costs")
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	if _, err := NewService(ServiceParams{JWTConfig: testJWTConfig}); err == nil {
		t.Fatalf("expected error without user repository")
	}
}

func mustService(t *testing.T, repo *stubUserRepo) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{UserRepo: repo, JWTConfig: testJWTConfig})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func newTestUser(t *testing.T, email, password string, role enums.UserRole) *models.User {
	t.Helper()
	hashed, err := security.HashPassword(password, testPasswordConfig)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashed,
		DisplayName:  "Owner",
		Role:         role,
		IsActive:     true,
	}
}

func inactive(user *models.User) *models.User {
	clone := *user
	clone.IsActive = false
	return &clone
}

type stubUserRepo struct {
	user      *models.User
	findErr   error
	lastLogin time.Time
	rehashed  string
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.user
	return &clone, nil
}

func (s *stubUserRepo) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time, passwordHash string) error {
	s.lastLogin = at
	s.rehashed = passwordHash
	return nil
}

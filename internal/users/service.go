package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=users_test

type usersRepo interface {
	Add(ctx context.Context, user User) (*User, error)
	Get(ctx context.Context, id int) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, params ListParams) (_ []UserWithStats, total int, err error)
	UpdateProfile(ctx context.Context, id int, name, email string) (*User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	UpdateRole(ctx context.Context, id int, role auth.Role) error
	AssignLevel(ctx context.Context, id int, levelID *int) error
	RecordLogin(ctx context.Context, id int, at time.Time, ip, location string) error
	Delete(ctx context.Context, id int) error
	CountByRole(ctx context.Context, role auth.Role) (int, error)
}

type sessionManager interface {
	Login(ctx context.Context, userID int, role auth.Role, createdAt time.Time) (string, error)
	Logout(ctx context.Context, principal *auth.Principal) (bool, error)
	RevokeUserSessions(ctx context.Context, userID int) (int, error)
}

type ipLocator interface {
	Locate(ctx context.Context, ip string) (string, error)
}

type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// dummyHash keeps failed logins for unknown emails as slow as wrong passwords.
var dummyHash = sync.OnceValue(func() string {
	hash, _ := pkg.HashPassword("gymtracker-no-such-user")
	return hash
})

type Service struct {
	repo           usersRepo
	sessions       sessionManager
	locator        ipLocator
	metricsManager *metrics.Manager
	NowFunc        func() time.Time
}

func NewService(
	repo usersRepo,
	sessions sessionManager,
	locator ipLocator,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		repo:           repo,
		sessions:       sessions,
		locator:        locator,
		metricsManager: metricsManager,
		NowFunc:        time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.register")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	user, err := s.create(ctx, req.Name, req.Email, req.Password, auth.RoleUser, nil)
	if err != nil {
		return nil, err
	}

	s.metricsManager.CounterRegistrations.Inc()
	log.Infof("new user registered: %d", user.ID)
	return user, nil
}

func (s *Service) create(ctx context.Context, name, email, password string, role auth.Role, levelID *int) (*User, error) {
	passwordHash, err := pkg.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.NowFunc()
	return s.repo.Add(ctx, User{
		Name:         name,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
		LevelID:      levelID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// Login checks the credentials and opens a session. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req LoginRequest, clientIP string) (_ *LoginResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.login")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("get user by email: %w", err)
		}
		pkg.CheckPasswordHash(req.Password, dummyHash())
		s.metricsManager.CounterLogins.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}

	if !pkg.CheckPasswordHash(req.Password, user.PasswordHash) {
		s.metricsManager.CounterLogins.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}
	span.SetAttributes(attribute.Int("user.id", user.ID))

	if pkg.NeedsRehash(user.PasswordHash) {
		if hash, err := pkg.HashPassword(req.Password); err == nil {
			if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
				log.Warnf("rehash password of user %d: %s", user.ID, err)
			}
		}
	}

	now := s.NowFunc()
	token, err := s.sessions.Login(ctx, user.ID, user.Role, now)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	location, err := s.locator.Locate(ctx, clientIP)
	if err != nil {
		log.Warnf("locate login ip %s: %s", clientIP, err)
	}
	if err := s.repo.RecordLogin(ctx, user.ID, now, clientIP, location); err != nil {
		log.Errorf("record login of user %d: %s", user.ID, err)
	} else {
		user.LastLoginAt = &now
		user.LastLoginIP = clientIP
		user.LastLoginLocation = location
	}

	s.metricsManager.CounterLogins.WithLabelValues("success").Inc()
	return &LoginResult{
		Token: token,
		User:  user,
	}, nil
}

func (s *Service) Logout(ctx context.Context, principal *auth.Principal) error {
	loggedOut, err := s.sessions.Logout(ctx, principal)
	if err != nil {
		return err
	}
	if !loggedOut {
		log.Debugf("session %s of user %d was already logged out", principal.SessionID, principal.UserID)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int) (*User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id int, req ProfileRequest) (*User, error) {
	return s.repo.UpdateProfile(ctx, id, req.Name, NormalizeEmail(req.Email))
}

// ChangePassword replaces the password, ends every session of the user and
// returns a token for a fresh session.
func (s *Service) ChangePassword(ctx context.Context, principal *auth.Principal, req ChangePasswordRequest) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.changepassword")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	user, err := s.repo.Get(ctx, principal.UserID)
	if err != nil {
		return "", err
	}
	if !pkg.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		return "", ErrWrongPassword
	}

	passwordHash, err := pkg.HashPassword(req.NewPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return "", err
	}

	if _, err := s.sessions.RevokeUserSessions(ctx, user.ID); err != nil {
		return "", fmt.Errorf("revoke sessions: %w", err)
	}
	return s.sessions.Login(ctx, user.ID, user.Role, s.NowFunc())
}

func (s *Service) List(ctx context.Context, params ListParams) ([]UserWithStats, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	return s.create(ctx, req.Name, req.Email, req.Password, req.RoleOrDefault(), req.LevelID)
}

// SetRole changes the role of user id on behalf of actorID.
func (s *Service) SetRole(ctx context.Context, actorID, id int, role auth.Role) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.setrole")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if actorID == id {
		return ErrSelfModification
	}

	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == role {
		return nil
	}

	if user.IsAdmin() {
		if err := s.ensureNotLastAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return err
	}

	// tokens carry the role, so the old ones must go
	if _, err := s.sessions.RevokeUserSessions(ctx, id); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	log.Infof("user %d changed role of user %d to %s", actorID, id, role)
	return nil
}

func (s *Service) AssignLevel(ctx context.Context, id int, levelID *int) error {
	return s.repo.AssignLevel(ctx, id, levelID)
}

func (s *Service) Delete(ctx context.Context, actorID, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if actorID == id {
		return ErrSelfModification
	}

	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		if err := s.ensureNotLastAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if _, err := s.sessions.RevokeUserSessions(ctx, id); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	log.Infof("user %d deleted user %d", actorID, id)
	return nil
}

func (s *Service) ensureNotLastAdmin(ctx context.Context) error {
	admins, err := s.repo.CountByRole(ctx, auth.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin account unless the email is taken.
func (s *Service) EnsureAdmin(ctx context.Context, email, passwordHash string) error {
	if email == "" || passwordHash == "" {
		log.Debugln("no bootstrap admin configured")
		return nil
	}

	_, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("get admin by email: %w", err)
	}

	now := s.NowFunc()
	admin, err := s.repo.Add(ctx, User{
		Name:         "Admin",
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         auth.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("add admin: %w", err)
	}

	log.Infof("bootstrap admin created: %d", admin.ID)
	return nil
}

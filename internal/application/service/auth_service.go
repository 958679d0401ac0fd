package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
	"github.com/garyjia/reimbursement-tracker/pkg/utils"
)

const (
	msgUsernameRequired = "请提供用户名"
	msgNoSystemAccess   = "您没有权限访问系统，请联系管理员"
	msgBadCredentials   = "No active account found with the given credentials"
)

// RegisterInput is the public sign-up payload
type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	RealName string `json:"real_name"`
}

// UserFlags is a partial update of account flags
type UserFlags struct {
	IsStaff  *bool `json:"is_staff"`
	IsActive *bool `json:"is_active"`
}

// AuthService manages accounts and bearer tokens
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*entity.User, error)
	// CreateAdmin registers a staff account, optionally a superuser
	CreateAdmin(ctx context.Context, in RegisterInput, superuser bool) (*entity.User, error)
	Token(ctx context.Context, username, password string) (*port.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	// Authenticate resolves an access token to an active user
	Authenticate(ctx context.Context, accessToken string) (*entity.User, error)
	ListUsers(ctx context.Context) ([]*entity.User, error)
	UpdateFlags(ctx context.Context, actor *entity.User, id int64, flags UserFlags) (*entity.User, error)
}

type authServiceImpl struct {
	users  port.UserRepository
	hasher port.PasswordHasher
	tokens port.TokenIssuer
	logger Logger
	now    func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(users port.UserRepository, hasher port.PasswordHasher, tokens port.TokenIssuer, logger Logger) AuthService {
	return &authServiceImpl{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

func (s *authServiceImpl) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	return s.create(ctx, in, false, false)
}

func (s *authServiceImpl) CreateAdmin(ctx context.Context, in RegisterInput, superuser bool) (*entity.User, error) {
	return s.create(ctx, in, true, superuser)
}

func (s *authServiceImpl) create(ctx context.Context, in RegisterInput, staff, superuser bool) (*entity.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.RealName = strings.TrimSpace(in.RealName)

	verr := entity.NewValidationError()
	if err := utils.ValidateLength(in.Username, 150, true); err != nil {
		verr.Add("username", err.Error())
	}
	if len([]rune(in.Password)) < entity.MinPasswordLength {
		verr.Add("password", fmt.Sprintf("Ensure this field has at least %d characters.", entity.MinPasswordLength))
	}
	if in.Email != "" {
		if err := utils.ValidateEmail(in.Email); err != nil {
			verr.Add("email", "Enter a valid email address.")
		}
	}
	if err := utils.ValidateLength(in.RealName, entity.MaxRealNameLength, false); err != nil {
		verr.Add("real_name", err.Error())
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsStaff:      staff,
		IsSuperuser:  superuser,
		IsActive:     true,
		DateJoined:   s.now().UTC(),
	}
	user.LastName, user.FirstName = SplitRealName(in.RealName)

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", "user_id", user.ID, "username", user.Username, "staff", staff)
	return user, nil
}

// SplitRealName treats the first rune as the family name. A single rune is
// kept as the given name.
func SplitRealName(realName string) (lastName, firstName string) {
	runes := []rune(realName)
	switch {
	case len(runes) == 0:
		return "", ""
	case len(runes) == 1:
		return "", realName
	default:
		return string(runes[:1]), string(runes[1:])
	}
}

// Token logs in an administrator. Accounts without admin access are refused
// before the password is checked.
func (s *authServiceImpl) Token(ctx context.Context, username, password string) (*port.TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, entity.FieldError("username", msgUsernameRequired)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user != nil && !(user.IsSuperuser || user.IsStaff) {
		return nil, entity.Forbidden(msgNoSystemAccess)
	}
	if user == nil || !user.IsActive || !s.hasher.Compare(user.PasswordHash, password) {
		s.logger.Warn("Login failed", "username", username)
		return nil, fmt.Errorf("%w: %s", entity.ErrUnauthenticated, msgBadCredentials)
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Tokens issued", "user_id", user.ID)
	return pair, nil
}

func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (string, error) {
	return s.tokens.Refresh(refreshToken)
}

func (s *authServiceImpl) Authenticate(ctx context.Context, accessToken string) (*entity.User, error) {
	userID, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, fmt.Errorf("%w: user is inactive or deleted", entity.ErrUnauthenticated)
	}
	return user, nil
}

func (s *authServiceImpl) ListUsers(ctx context.Context) ([]*entity.User, error) {
	return s.users.List(ctx)
}

// UpdateFlags changes staff and active flags. Only superusers may do this,
// and never on their own account.
func (s *authServiceImpl) UpdateFlags(ctx context.Context, actor *entity.User, id int64, flags UserFlags) (*entity.User, error) {
	if !actor.IsSuperuser {
		return nil, entity.Forbidden("只有超级管理员可以管理用户。")
	}
	if actor.ID == id {
		return nil, entity.Forbidden("不能修改自己的账号权限。")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", id, entity.ErrNotFound)
	}

	if flags.IsStaff != nil {
		user.IsStaff = *flags.IsStaff
	}
	if flags.IsActive != nil {
		user.IsActive = *flags.IsActive
	}
	if err := s.users.UpdateFlags(ctx, id, user.IsStaff, user.IsActive); err != nil {
		return nil, err
	}

	s.logger.Info("User flags updated", "actor_id", actor.ID, "user_id", id, "is_staff", user.IsStaff, "is_active", user.IsActive)
	return user, nil
}

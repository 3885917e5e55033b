package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/dial-lab/dtrack/internal/crypto"
	"github.com/dial-lab/dtrack/internal/errs"
	"github.com/dial-lab/dtrack/internal/limiter"
	"github.com/dial-lab/dtrack/internal/model"
	"github.com/dial-lab/dtrack/internal/repository"
)

// Account lifecycle policy.
const (
	// MinPasswordLen is the minimum accepted password length.
	MinPasswordLen = 6
	// PasswordExpiry is the reset deadline stamped on user/admin credentials.
	PasswordExpiry = 90 * 24 * time.Hour
	// SubuserValidity is the hard validity window of a subuser account.
	SubuserValidity = 7 * 24 * time.Hour
)

// AuthService defines authentication and account lifecycle operations.
type AuthService interface {
	// Register creates a pending (unapproved) team account.
	Register(ctx context.Context, username, password string) error
	// Login authenticates and returns a signed session token. It never
	// mutates account state.
	Login(ctx context.Context, username, password string) (string, model.Session, error)
	// ParseSession validates a session token and returns the session.
	ParseSession(token string) (model.Session, error)
	// CreateUser creates an auto-approved user or admin account. Admin only.
	CreateUser(ctx context.Context, s model.Session, username, password string, role model.Role) error
	// CreateSubuser creates a 7-day subuser under parent. Users may only
	// create under themselves; admins must name the parent team.
	CreateSubuser(ctx context.Context, s model.Session, username, password, parent string) (*model.Account, error)
	// SetApproval flips the approval flag on a team account. Admin only.
	SetApproval(ctx context.Context, s model.Session, username string, approved bool) error
	// ResetPassword replaces a credential and restarts the 90-day expiry. Admin only.
	ResetPassword(ctx context.Context, s model.Session, username, newPassword string) error
	// ListAccounts returns all accounts. Admin only.
	ListAccounts(ctx context.Context, s model.Session) ([]model.Account, error)
	// ListSubusers returns subusers under a parent team.
	ListSubusers(ctx context.Context, s model.Session, parent string) ([]model.Account, error)
}

type AuthServiceImpl struct {
	accounts repository.AccountRepository
	lim      limiter.Limiter
	audit    *Auditor
	signKey  []byte
	ttl      time.Duration
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(accounts repository.AccountRepository, lim limiter.Limiter, audit *Auditor, signKey []byte, ttl time.Duration) *AuthServiceImpl {
	return &AuthServiceImpl{accounts: accounts, lim: lim, audit: audit, signKey: signKey, ttl: ttl}
}

// Register creates a user account awaiting admin approval.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) error {
	if username == "" {
		return fmt.Errorf("%w: username required", errs.ErrValidation)
	}
	if len(password) < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", errs.ErrValidation, MinPasswordLen)
	}
	a, err := s.newAccount(username, password, model.RoleUser, false)
	if err != nil {
		return err
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return err
	}
	s.audit.Record(ctx, username, "registered")
	return nil
}

// Login authenticates a caller. Outcomes are checked in a fixed order:
// rate limit, existence, approval, password, password expiry, account
// validity. No branch mutates account state.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, model.Session, error) {
	if username == "" || password == "" {
		return "", model.Session{}, fmt.Errorf("%w: username and password required", errs.ErrValidation)
	}

	allowed, _, err := s.lim.Allow(ctx, username)
	if err != nil {
		return "", model.Session{}, err
	}
	if !allowed {
		return "", model.Session{}, errs.ErrRateLimited
	}

	a, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		s.audit.Record(ctx, username, "login_failed_no_user")
		// Unknown usernames count against the limiter too, so name
		// probing is throttled the same as password guessing.
		if blocked, _, ferr := s.lim.Failure(ctx, username); ferr == nil && blocked {
			return "", model.Session{}, errs.ErrRateLimited
		}
		return "", model.Session{}, err
	}
	if !a.Approved {
		return "", model.Session{}, errs.ErrPendingApproval
	}
	if !pkgcrypto.VerifyPassword(password, a.Credential) {
		s.audit.Record(ctx, username, "login_failed_wrong_password")
		if blocked, _, ferr := s.lim.Failure(ctx, username); ferr == nil && blocked {
			return "", model.Session{}, errs.ErrRateLimited
		}
		return "", model.Session{}, errs.ErrUnauthorized
	}

	now := time.Now()
	if a.PasswordExpiry != nil && now.After(*a.PasswordExpiry) {
		return "", model.Session{}, errs.ErrPasswordExpired
	}
	if a.Role == model.RoleSubuser && a.ValidTill != nil && now.After(*a.ValidTill) {
		return "", model.Session{}, errs.ErrAccountExpired
	}

	// Reset counters (best-effort).
	_ = s.lim.Success(ctx, username)

	sess := model.Session{Username: a.Username, Role: a.Role, Parent: a.Parent}
	token, err := s.issueToken(sess, now)
	if err != nil {
		return "", model.Session{}, err
	}
	s.audit.Record(ctx, username, "login_success")
	return token, sess, nil
}

type sessionClaims struct {
	Role   string `json:"role"`
	Parent string `json:"parent,omitempty"`
	jwt.RegisteredClaims
}

// issueToken creates a signed HS256 token carrying the session.
func (s *AuthServiceImpl) issueToken(sess model.Session, now time.Time) (string, error) {
	claims := sessionClaims{
		Role:   string(sess.Role),
		Parent: sess.Parent,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
}

// ParseSession validates a token and reconstructs the session.
func (s *AuthServiceImpl) ParseSession(token string) (model.Session, error) {
	var claims sessionClaims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signKey, nil
	})
	if err != nil || !tok.Valid {
		return model.Session{}, errs.ErrUnauthorized
	}
	return model.Session{
		Username: claims.Subject,
		Role:     model.Role(claims.Role),
		Parent:   claims.Parent,
	}, nil
}

// CreateUser creates an auto-approved user or admin account.
func (s *AuthServiceImpl) CreateUser(ctx context.Context, sess model.Session, username, password string, role model.Role) error {
	if !sess.IsAdmin() {
		return errs.ErrUnauthorized
	}
	if username == "" {
		return fmt.Errorf("%w: username required", errs.ErrValidation)
	}
	if len(password) < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", errs.ErrValidation, MinPasswordLen)
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return fmt.Errorf("%w: role must be user or admin", errs.ErrValidation)
	}
	a, err := s.newAccount(username, password, role, true)
	if err != nil {
		return err
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return err
	}
	s.audit.Record(ctx, sess.Username, "create_user:"+username)
	return nil
}

// CreateSubuser creates a short-lived data-entry account under a parent team.
func (s *AuthServiceImpl) CreateSubuser(ctx context.Context, sess model.Session, username, password, parent string) (*model.Account, error) {
	switch sess.Role {
	case model.RoleUser:
		parent = sess.Username
	case model.RoleAdmin:
		if parent == "" {
			return nil, fmt.Errorf("%w: parent team required", errs.ErrValidation)
		}
	default:
		return nil, errs.ErrUnauthorized
	}
	if username == "" {
		return nil, fmt.Errorf("%w: username required", errs.ErrValidation)
	}
	if len(password) < MinPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", errs.ErrValidation, MinPasswordLen)
	}

	p, err := s.accounts.GetByUsername(ctx, parent)
	if err != nil {
		return nil, err
	}
	if p.Role != model.RoleUser || !p.Approved {
		return nil, fmt.Errorf("%w: parent must be an approved team account", errs.ErrValidation)
	}

	a, err := s.newAccount(username, password, model.RoleSubuser, true)
	if err != nil {
		return nil, err
	}
	validTill := time.Now().Add(SubuserValidity)
	a.ValidTill = &validTill
	a.PasswordExpiry = nil
	a.Parent = parent
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, sess.Username, "create_subuser:"+username+":"+parent)
	return a, nil
}

// SetApproval flips the approval flag on an account.
func (s *AuthServiceImpl) SetApproval(ctx context.Context, sess model.Session, username string, approved bool) error {
	if !sess.IsAdmin() {
		return errs.ErrUnauthorized
	}
	if err := s.accounts.SetApproved(ctx, username, approved); err != nil {
		return err
	}
	verb := "approve_user:"
	if !approved {
		verb = "disapprove_user:"
	}
	s.audit.Record(ctx, sess.Username, verb+username)
	return nil
}

// ResetPassword replaces the credential and restarts the 90-day expiry.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, sess model.Session, username, newPassword string) error {
	if !sess.IsAdmin() {
		return errs.ErrUnauthorized
	}
	if len(newPassword) < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", errs.ErrValidation, MinPasswordLen)
	}
	cred, err := pkgcrypto.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.SetCredential(ctx, username, cred, time.Now().Add(PasswordExpiry)); err != nil {
		return err
	}
	s.audit.Record(ctx, sess.Username, "reset_password:"+username)
	return nil
}

// ListAccounts returns every account.
func (s *AuthServiceImpl) ListAccounts(ctx context.Context, sess model.Session) ([]model.Account, error) {
	if !sess.IsAdmin() {
		return nil, errs.ErrUnauthorized
	}
	return s.accounts.List(ctx)
}

// ListSubusers returns the subusers under a parent team. Users see their
// own; admins see any team's.
func (s *AuthServiceImpl) ListSubusers(ctx context.Context, sess model.Session, parent string) ([]model.Account, error) {
	switch sess.Role {
	case model.RoleUser:
		parent = sess.Username
	case model.RoleAdmin:
	default:
		return nil, errs.ErrUnauthorized
	}
	return s.accounts.ListSubusers(ctx, parent)
}

// newAccount builds an account with a fresh credential and, for user/admin
// roles, a 90-day password expiry.
func (s *AuthServiceImpl) newAccount(username, password string, role model.Role, approved bool) (*model.Account, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	cred, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return nil, err
	}
	expiry := time.Now().Add(PasswordExpiry)
	return &model.Account{
		ID:             id,
		Username:       username,
		Credential:     cred,
		Role:           role,
		Approved:       approved,
		PasswordExpiry: &expiry,
	}, nil
}

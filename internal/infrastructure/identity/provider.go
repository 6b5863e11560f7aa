package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/logger"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/timeutil"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// ProfileCreator creates the progress profile for a freshly registered user.
type ProfileCreator interface {
	CreateProfile(ctx context.Context, userID, email, displayName string) error
}

// Config holds token and hashing settings.
type Config struct {
	// Secret signs HS256 tokens.
	Secret string

	// TokenTTL is the session lifetime.
	TokenTTL time.Duration

	// Issuer is written to the iss claim and required on verification.
	Issuer string

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Session is returned by SignUp and SignIn.
type Session struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the JWT claims issued for a session.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Provider implements sign-up, sign-in and token verification.
type Provider struct {
	accounts AccountStore
	profiles ProfileCreator
	clock    timeutil.Clock
	log      *logger.Logger
	cfg      Config
}

// NewProvider creates a Provider. profiles may be nil when only token
// verification is needed.
func NewProvider(cfg Config, accounts AccountStore, profiles ProfileCreator, clock timeutil.Clock, log *logger.Logger) (*Provider, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("identity: token secret must be at least 16 bytes")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if clock == nil {
		clock = timeutil.NewSystemClock(time.UTC)
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Provider{
		accounts: accounts,
		profiles: profiles,
		clock:    clock,
		log:      log.With(logger.Component("identity")),
		cfg:      cfg,
	}, nil
}

// SignUp registers an account, creates its progress profile and opens a session.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, shared.ErrWeakPassword
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	acc := &Account{
		UserID:       uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		CreatedAt:    p.clock.Now(),
	}
	if err := p.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}
	if err := p.ensureProfile(ctx, acc); err != nil {
		return nil, err
	}

	p.log.Info("user signed up", logger.UserID(acc.UserID), logger.Email(email))
	return p.issue(acc)
}

// SignIn verifies credentials and opens a session. Unknown emails and wrong
// passwords produce the same error. An account whose profile was never
// created gets it here.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, shared.ErrInvalidCredentials
	}

	acc, err := p.accounts.GetByEmail(ctx, email)
	if shared.IsNotFound(err) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		p.log.Debug("password mismatch", logger.Email(email))
		return nil, shared.ErrInvalidCredentials
	}
	if err := p.ensureProfile(ctx, acc); err != nil {
		return nil, err
	}
	return p.issue(acc)
}

// ensureProfile creates the progress profile for acc. An existing profile is fine.
func (p *Provider) ensureProfile(ctx context.Context, acc *Account) error {
	if p.profiles == nil {
		return nil
	}
	name := acc.DisplayName
	if name == "" {
		name = strings.SplitN(acc.Email, "@", 2)[0]
	}
	err := p.profiles.CreateProfile(ctx, acc.UserID, acc.Email, name)
	if err == nil || shared.IsAlreadyExists(err) {
		return nil
	}
	p.log.Error("profile creation failed",
		logger.UserID(acc.UserID), logger.Email(acc.Email), logger.Err(err))
	return err
}

// Authenticate verifies a token and returns the user id it was issued for.
func (p *Provider) Authenticate(token string) (string, error) {
	if token == "" {
		return "", shared.ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(p.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.clock.Now),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", shared.ErrInvalidToken.Wrap(err)
	}
	if claims.Subject == "" {
		return "", shared.ErrInvalidToken
	}
	return claims.Subject, nil
}

func (p *Provider) issue(acc *Account) (*Session, error) {
	now := p.clock.Now()
	expires := now.Add(p.cfg.TokenTTL)

	claims := Claims{
		Email: acc.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.UserID,
			Issuer:    p.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(p.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("identity: sign token: %w", err)
	}

	return &Session{UserID: acc.UserID, Token: signed, ExpiresAt: expires}, nil
}

func validateEmail(email string) error {
	if email == "" {
		return shared.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return shared.ErrInvalidEmail
	}
	return nil
}

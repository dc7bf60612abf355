package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/ghostauditor/backend/internal/models"
)

// ErrInvalidCredentials is returned for a wrong email or password; which
// field was wrong is never disclosed.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrAccountInactive is returned for administratively disabled accounts,
// before the credential comparison.
var ErrAccountInactive = errors.New("account inactive")

// ErrDuplicateEmail is returned when registering with an email that already exists.
var ErrDuplicateEmail = errors.New("email already registered")

// AccountStore is the minimal account repository interface for auth.
type AccountStore interface {
	Create(ctx context.Context, a *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// DeviceAuthorizer enforces the hardware lock during login.
type DeviceAuthorizer interface {
	Authorize(ctx context.Context, accountID uuid.UUID, hardwareID string) error
}

type Service struct {
	accounts AccountStore
	devices  DeviceAuthorizer
	secret   []byte
	tokenTTL time.Duration
}

func NewService(accounts AccountStore, devices DeviceAuthorizer, secret string, tokenTTL time.Duration) *Service {
	return &Service{accounts: accounts, devices: devices, secret: []byte(secret), tokenTTL: tokenTTL}
}

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Register provisions a new active user account with a zero balance.
func (s *Service) Register(ctx context.Context, email, password string) (*models.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return acc, nil
}

// Login authenticates the credentials, enforces the device lock, and issues
// a signed session token. Disabled accounts are rejected before the
// password comparison.
func (s *Service) Login(ctx context.Context, email, password, hardwareID string) (string, *models.Account, error) {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if acc.Status != models.StatusActive {
		return "", nil, ErrAccountInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := s.devices.Authorize(ctx, acc.ID, hardwareID); err != nil {
		return "", nil, err
	}
	token, err := s.issueToken(acc.ID, acc.Role)
	if err != nil {
		return "", nil, err
	}
	return token, acc, nil
}

func (s *Service) issueToken(accountID uuid.UUID, role string) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

// ValidateToken parses and verifies a session token, returning the account
// id and role. The token is opaque to callers; nothing else is derived from it.
func (s *Service) ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, c.Role, nil
}

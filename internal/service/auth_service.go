package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the email or password did not match.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken indicates an account already exists for the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidToken indicates the bearer token is malformed, expired or revoked.
	ErrInvalidToken = errors.New("invalid token")
	// ErrProfileNotFound indicates no profile exists for the identity.
	ErrProfileNotFound = errors.New("profile not found")
)

const defaultTokenTTL = 24 * time.Hour

// SignupRequest carries the fields needed to register an identity.
type SignupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,max=255"`
	Role        string `json:"role"`
}

// AuthSession is a signed-in identity with its bearer token.
type AuthSession struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	Profile   models.UserProfile `json:"profile"`
}

// TokenClaims is the verified content of a bearer token.
type TokenClaims struct {
	UID       string
	Email     string
	Role      models.Role
	TokenID   string
	ExpiresAt time.Time
}

// AuthService signs identities in and out and serves their profiles.
type AuthService interface {
	Signup(ctx context.Context, req SignupRequest) (AuthSession, error)
	Login(ctx context.Context, email, password string) (AuthSession, error)
	Logout(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (TokenClaims, error)
	Profile(ctx context.Context, claims TokenClaims) (models.UserProfile, error)
}

type authService struct {
	profiles  repository.ProfileRepository
	denylist  repository.TokenDenylist
	validator *validator.Validate
	secret    []byte
	ttl       time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

type jwtClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// NewAuthService constructs the auth service backed by the profile table.
func NewAuthService(profiles repository.ProfileRepository, denylist repository.TokenDenylist, validate *validator.Validate, secret string, ttl time.Duration, logger zerolog.Logger) AuthService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if denylist == nil {
		denylist = repository.NewMemoryDenylist()
	}

	return &authService{
		profiles:  profiles,
		denylist:  denylist,
		validator: validate,
		secret:    []byte(secret),
		ttl:       ttl,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       time.Now,
	}
}

// Signup registers a new identity. An unknown or empty role becomes teacher.
func (s *authService) Signup(ctx context.Context, req SignupRequest) (AuthSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return AuthSession{}, err
	}

	if _, err := s.profiles.GetByEmail(ctx, req.Email); err == nil {
		return AuthSession{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return AuthSession{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthSession{}, fmt.Errorf("hash password: %w", err)
	}

	profile := models.UserProfile{
		UID:          uuid.NewString(),
		Email:        req.Email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         string(models.ParseRole(req.Role)),
		PasswordHash: string(hash),
	}
	if err := s.profiles.Create(ctx, &profile); err != nil {
		return AuthSession{}, fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info().Str("uid", profile.UID).Str("role", profile.Role).Msg("account created")
	return s.issue(profile)
}

func (s *authService) Login(ctx context.Context, email, password string) (AuthSession, error) {
	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AuthSession{}, ErrInvalidCredentials
		}
		return AuthSession{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return AuthSession{}, ErrInvalidCredentials
	}

	s.logger.Info().Str("uid", profile.UID).Msg("signed in")
	return s.issue(profile)
}

// Logout revokes the token until it would have expired.
func (s *authService) Logout(ctx context.Context, token string) error {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return err
	}

	if err := s.denylist.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return err
	}

	s.logger.Info().Str("uid", claims.UID).Msg("signed out")
	return nil
}

func (s *authService) Verify(ctx context.Context, token string) (TokenClaims, error) {
	parsed := &jwtClaims{}
	_, err := jwt.ParseWithClaims(token, parsed, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if parsed.Subject == "" || parsed.ID == "" || parsed.ExpiresAt == nil {
		return TokenClaims{}, ErrInvalidToken
	}

	revoked, err := s.denylist.IsRevoked(ctx, parsed.ID)
	if err != nil {
		return TokenClaims{}, err
	}
	if revoked {
		return TokenClaims{}, fmt.Errorf("%w: token revoked", ErrInvalidToken)
	}

	return TokenClaims{
		UID:       parsed.Subject,
		Email:     parsed.Email,
		Role:      models.ParseRole(parsed.Role),
		TokenID:   parsed.ID,
		ExpiresAt: parsed.ExpiresAt.Time,
	}, nil
}

// Profile returns the identity's profile. A missing profile is recreated
// with the teacher role so a valid identity is never locked out.
func (s *authService) Profile(ctx context.Context, claims TokenClaims) (models.UserProfile, error) {
	profile, err := s.profiles.GetByUID(ctx, claims.UID)
	if err == nil {
		profile.Role = string(profile.EffectiveRole())
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserProfile{}, err
	}
	if claims.Email == "" {
		return models.UserProfile{}, ErrProfileNotFound
	}

	fallback := models.UserProfile{
		UID:         claims.UID,
		Email:       claims.Email,
		DisplayName: displayNameFromEmail(claims.Email),
		Role:        string(models.RoleTeacher),
	}
	if err := s.profiles.Create(ctx, &fallback); err != nil {
		return models.UserProfile{}, fmt.Errorf("create fallback profile: %w", err)
	}

	s.logger.Warn().Str("uid", claims.UID).Msg("profile missing, created teacher fallback")
	return fallback, nil
}

func (s *authService) issue(profile models.UserProfile) (AuthSession, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	role := profile.EffectiveRole()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Email: profile.Email,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.UID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return AuthSession{}, fmt.Errorf("sign token: %w", err)
	}

	profile.Role = string(role)
	return AuthSession{Token: signed, ExpiresAt: expiresAt, Profile: profile}, nil
}

func displayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return email
	}
	return local
}

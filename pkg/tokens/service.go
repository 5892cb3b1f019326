package tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/restaurant/pkg/roles"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every verification failure. Callers must not be
// able to tell an expired token from a forged one.
var ErrInvalidToken = errors.New("invalid token")

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type Service struct {
	cfg Config
	now func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Issued is a signed token together with its expiry.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

type Pair struct {
	Access  Issued
	Refresh Issued
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("tokens: access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("tokens: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("tokens: ttl must be positive")
	}

	s := &Service{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) AccessTTL() time.Duration  { return s.cfg.AccessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

func (s *Service) IssueAccessToken(id, email string, role roles.Role) (Issued, error) {
	return s.issue(Access, id, email, role)
}

func (s *Service) IssueRefreshToken(id, email string, role roles.Role) (Issued, error) {
	return s.issue(Refresh, id, email, role)
}

// IssuePair signs both tokens. Either both are returned or neither is.
func (s *Service) IssuePair(id, email string, role roles.Role) (Pair, error) {
	access, err := s.IssueAccessToken(id, email, role)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.IssueRefreshToken(id, email, role)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (s *Service) issue(class Class, id, email string, role roles.Role) (Issued, error) {
	if id == "" {
		return Issued{}, errors.New("tokens: subject is empty")
	}
	if !role.Valid() {
		return Issued{}, fmt.Errorf("tokens: %w", roles.ErrUnknownRole)
	}

	now := s.now().UTC()
	exp := now.Add(s.ttl(class))
	claims := Claims{
		Email: email,
		Role:  role,
		Type:  class,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret(class))
	if err != nil {
		return Issued{}, fmt.Errorf("tokens: sign %s: %w", class, err)
	}
	return Issued{Token: token, ExpiresAt: exp}, nil
}

// Verify checks signature, expiry and class of a token. It rejects
// anything it does not fully understand.
func (s *Service) Verify(tokenStr string, class Class) (*Claims, error) {
	secret := s.secret(class)
	if secret == nil || tokenStr == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Type != class {
		return nil, fmt.Errorf("%w: token class %q", ErrInvalidToken, claims.Type)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: token role %q", ErrInvalidToken, claims.Role)
	}

	return &claims, nil
}

func (s *Service) secret(class Class) []byte {
	switch class {
	case Access:
		return s.cfg.AccessSecret
	case Refresh:
		return s.cfg.RefreshSecret
	}
	return nil
}

func (s *Service) ttl(class Class) time.Duration {
	if class == Refresh {
		return s.cfg.RefreshTTL
	}
	return s.cfg.AccessTTL
}

// HashRefreshToken is the form a refresh token is stored and looked up in.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

package keys

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the capability a channel key grants.
type Role string

const (
	RoleRead  Role = "read"
	RoleWrite Role = "write"
)

// ErrTokenInvalid is returned by Parse for malformed, forged or expired keys.
var ErrTokenInvalid = errors.New("keys: invalid token")

// Claims is the payload of a channel key.
type Claims struct {
	jwt.RegisteredClaims
	Owner     string `json:"owner"`
	ChannelID string `json:"channel_id"`
	Role      Role   `json:"role"`
}

// IssuerConfig carries the process-wide key settings.
type IssuerConfig struct {
	// Secret is the HMAC signing secret.
	Secret string
	// TTL is the key lifetime. Zero issues keys without an expiry.
	TTL time.Duration
	// Now is the clock used for issuing and expiry checks. Nil means time.Now.
	Now func() time.Time
}

// Pair is a freshly minted read/write key pair. The raw values are only
// ever returned to the owner that requested issuance.
type Pair struct {
	ReadKey   string
	WriteKey  string
	ExpiresAt *time.Time
}

// ReadDigest returns Digest(ReadKey).
func (p Pair) ReadDigest() string { return Digest(p.ReadKey) }

// WriteDigest returns Digest(WriteKey).
func (p Pair) WriteDigest() string { return Digest(p.WriteKey) }

// Issuer mints channel keys.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("keys: signing secret is required")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("keys: ttl must not be negative")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: []byte(cfg.Secret), ttl: cfg.TTL, now: now}, nil
}

// IssuePair signs independent read and write keys for channelID.
// Every key carries a unique jti, so reissuing always yields new digests.
func (i *Issuer) IssuePair(channelID, owner string) (Pair, error) {
	now := i.now()
	var expiresAt *time.Time
	if i.ttl > 0 {
		exp := now.Add(i.ttl)
		expiresAt = &exp
	}

	read, err := i.sign(channelID, owner, RoleRead, now, expiresAt)
	if err != nil {
		return Pair{}, err
	}
	write, err := i.sign(channelID, owner, RoleWrite, now, expiresAt)
	if err != nil {
		return Pair{}, err
	}
	return Pair{ReadKey: read, WriteKey: write, ExpiresAt: expiresAt}, nil
}

func (i *Issuer) sign(channelID, owner string, role Role, now time.Time, expiresAt *time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  channelID,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
		Owner:     owner,
		ChannelID: channelID,
		Role:      role,
	}
	if expiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*expiresAt)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s key: %w", role, err)
	}
	return signed, nil
}

// Parse checks the signature and expiry of a raw key and returns its claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(_ *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.ChannelID == "" || (claims.Role != RoleRead && claims.Role != RoleWrite) {
		return nil, fmt.Errorf("%w: missing channel or role", ErrTokenInvalid)
	}
	return claims, nil
}

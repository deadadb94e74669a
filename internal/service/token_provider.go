package service

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

// TokenClaims son los claims emitidos para una identidad autenticada.
type TokenClaims struct {
	Auth   string   `json:"auth"`
	Groups []string `json:"groups"`
	jwt.RegisteredClaims
}

// TokenProvider firma y valida JWT RS256 con una clave privada cargada al inicio.
type TokenProvider struct {
	privateKey         *rsa.PrivateKey
	issuer             string
	validity           time.Duration
	rememberMeValidity time.Duration
	now                func() time.Time
}

func NewTokenProvider(privateKey *rsa.PrivateKey, issuer string, validity, rememberMeValidity time.Duration) (*TokenProvider, error) {
	if privateKey == nil {
		return nil, errors.New("private key is required")
	}
	if validity <= 0 {
		validity = 24 * time.Hour
	}
	if rememberMeValidity <= 0 {
		rememberMeValidity = 30 * 24 * time.Hour
	}
	return &TokenProvider{
		privateKey:         privateKey,
		issuer:             issuer,
		validity:           validity,
		rememberMeValidity: rememberMeValidity,
		now:                func() time.Time { return time.Now().UTC() },
	}, nil
}

// LoadRSAPrivateKey lee una clave PEM (PKCS#1 o PKCS#8).
func LoadRSAPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// CreateToken emite el JWT de la identidad; rememberMe usa la vigencia larga.
func (p *TokenProvider) CreateToken(identity Identity, rememberMe bool) (string, error) {
	now := p.now()
	validity := p.validity
	if rememberMe {
		validity = p.rememberMeValidity
	}
	groups := append([]string{}, identity.Roles...)
	claims := TokenClaims{
		Auth:   strings.Join(groups, ", "),
		Groups: groups,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   identity.Principal,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = uuid.NewString()
	return token.SignedString(p.privateKey)
}

// Parse valida firma, emisor y expiración, y devuelve los claims.
func (p *TokenProvider) Parse(tokenString string) (TokenClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return TokenClaims{}, ErrJWTInvalid
	}
	var claims TokenClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithTimeFunc(p.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return &p.privateKey.PublicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrJWTExpired
		}
		return TokenClaims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return TokenClaims{}, ErrJWTInvalid
	}
	return claims, nil
}

// Identity reconstruye la identidad contenida en los claims.
func (c TokenClaims) Identity() Identity {
	roles := c.Groups
	if len(roles) == 0 && c.Auth != "" {
		for _, r := range strings.Split(c.Auth, ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}
	}
	return Identity{Principal: c.Subject, Roles: roles}
}

// Package identity implements the IdentityVerifier port by validating JWT
// identity tokens issued by the external identity provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
	"github.com/ericfisherdev/opscenter/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IdentityVerifier = (*Verifier)(nil)

// Config selects how identity tokens are verified. Exactly one of HMACSecret
// or PublicKeyPEM must be set.
type Config struct {
	Issuer       string
	Audience     string
	HMACSecret   []byte
	PublicKeyPEM []byte
	Leeway       time.Duration
}

// Claims are the identity token claims the orchestrator reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates identity tokens and resolves them to operators.
type Verifier struct {
	parser  *jwt.Parser
	keyFunc jwt.Keyfunc
}

// NewVerifier creates a Verifier from cfg.
func NewVerifier(cfg Config) (*Verifier, error) {
	var (
		method string
		key    any
	)

	switch {
	case len(cfg.HMACSecret) > 0 && len(cfg.PublicKeyPEM) > 0:
		return nil, errors.New("identity: configure either an HMAC secret or a public key, not both")
	case len(cfg.HMACSecret) > 0:
		method = jwt.SigningMethodHS256.Alg()
		key = cfg.HMACSecret
	case len(cfg.PublicKeyPEM) > 0:
		pub, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("identity: parse public key: %w", err)
		}
		method = jwt.SigningMethodRS256.Alg()
		key = pub
	default:
		return nil, errors.New("identity: no verification key configured")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		parser: jwt.NewParser(options...),
		keyFunc: func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != method {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return key, nil
		},
	}, nil
}

// Verify validates rawToken and returns the operator it identifies.
func (v *Verifier) Verify(_ context.Context, rawToken string) (model.Operator, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return model.Operator{}, model.UnauthorizedError("missing identity token", nil)
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(rawToken, claims, v.keyFunc)
	if err != nil {
		return model.Operator{}, model.UnauthorizedError("identity token rejected", err)
	}
	if !token.Valid {
		return model.Operator{}, model.UnauthorizedError("identity token is invalid", nil)
	}
	if claims.Subject == "" {
		return model.Operator{}, model.UnauthorizedError("identity token has no subject", nil)
	}

	return model.Operator{
		UID:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}

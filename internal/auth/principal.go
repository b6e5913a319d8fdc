// Package auth exposes the signed-in user as an explicit capability. Identity
// is established elsewhere; this package only carries bearer tokens and the
// claims needed to display who is signed in.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNotAuthenticated is returned whenever a call needs a principal and there
// is none, or its token can no longer be used.
var ErrNotAuthenticated = errors.New("User not authenticated")

// Principal is the current authenticated user. Tokens are fetched on every
// call so a refreshing source is honoured.
type Principal struct {
	Subject string
	Email   string
	source  oauth2.TokenSource
}

// NewPrincipal wraps an arbitrary token source.
func NewPrincipal(src oauth2.TokenSource, subject, email string) *Principal {
	return &Principal{Subject: subject, Email: email, source: src}
}

// NewStaticPrincipal builds a principal from a pasted bearer token. When the
// token is a JWT its sub, email and exp claims are read without verification;
// the remote API does the verifying. Opaque tokens are accepted as-is.
func NewStaticPrincipal(raw string) (*Principal, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return nil, ErrNotAuthenticated
	}
	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	c := readClaims(raw)
	if !c.expiry.IsZero() {
		if time.Now().After(c.expiry) {
			return nil, fmt.Errorf("%w: token expired at %s", ErrNotAuthenticated, c.expiry.Format(time.RFC3339))
		}
		tok.Expiry = c.expiry
	}
	return NewPrincipal(oauth2.StaticTokenSource(tok), c.subject, c.email), nil
}

// ClientCredentials configures a machine principal.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// NewClientCredentialsPrincipal fetches a first token to learn the identity,
// then keeps refreshing through the oauth2 reuse cache.
func NewClientCredentialsPrincipal(ctx context.Context, cc ClientCredentials) (*Principal, error) {
	cfg := &clientcredentials.Config{
		ClientID:     cc.ClientID,
		ClientSecret: cc.ClientSecret,
		TokenURL:     cc.TokenURL,
		Scopes:       cc.Scopes,
	}
	src := cfg.TokenSource(ctx)
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	c := readClaims(tok.AccessToken)
	subject := c.subject
	if subject == "" {
		subject = cc.ClientID
	}
	return NewPrincipal(src, subject, c.email), nil
}

// Token returns a usable bearer token.
func (p *Principal) Token(ctx context.Context) (string, error) {
	if p == nil || p.source == nil {
		return "", ErrNotAuthenticated
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if !tok.Valid() {
		return "", ErrNotAuthenticated
	}
	return tok.AccessToken, nil
}

// Name is what the profile page shows.
func (p *Principal) Name() string {
	switch {
	case p == nil:
		return ""
	case p.Email != "":
		return p.Email
	case p.Subject != "":
		return p.Subject
	default:
		return "signed in"
	}
}

type claims struct {
	subject string
	email   string
	expiry  time.Time
}

func readClaims(raw string) claims {
	var c claims
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mc); err != nil {
		return c
	}
	c.subject, _ = mc.GetSubject()
	if email, ok := mc["email"].(string); ok {
		c.email = email
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.expiry = exp.Time
	}
	return c
}

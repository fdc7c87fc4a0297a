// Package line verifies LINE Login ID tokens against the LINE platform.
package line

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultVerifyURL is LINE's ID token verification endpoint.
const DefaultVerifyURL = "https://api.line.me/oauth2/v2.1/verify"

var (
	// ErrInvalidToken is returned when LINE rejects the token or the
	// response carries no subject.
	ErrInvalidToken = errors.New("invalid LINE ID token")
	// ErrUnavailable is returned when LINE could not be reached.
	ErrUnavailable = errors.New("LINE verification unavailable")
)

// Profile is the verified identity claims of an ID token.
type Profile struct {
	Subject  string `json:"sub"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
	Email    string `json:"email"`
	Audience string `json:"aud"`
	Expiry   int64  `json:"exp"`
}

// Verifier checks ID tokens issued for one LINE Login channel.
type Verifier struct {
	channelID string
	endpoint  string
	client    *http.Client
}

// Option customizes a Verifier.
type Option func(*Verifier)

// WithEndpoint points the Verifier at another verification URL.
func WithEndpoint(u string) Option { return func(v *Verifier) { v.endpoint = u } }

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(v *Verifier) { v.client = c } }

// NewVerifier returns a Verifier for channelID.
func NewVerifier(channelID string, opts ...Option) *Verifier {
	v := &Verifier{
		channelID: channelID,
		endpoint:  DefaultVerifyURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify posts idToken to LINE and returns its claims.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*Profile, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, ErrInvalidToken
	}
	form := url.Values{}
	form.Set("id_token", idToken)
	form.Set("client_id", v.channelID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", ErrInvalidToken, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", ErrUnavailable, err)
	}
	if p.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &p, nil
}

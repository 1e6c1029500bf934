package deviceflow

import (
	"time"

	"golang.org/x/oauth2"
)

// Protocol constants.
const (
	GrantType = "urn:ietf:params:oauth:grant-type:device_code"

	// MinPollInterval is the floor applied to the server-advertised interval.
	MinPollInterval = 5 * time.Second

	// SlowDownDelay is the extra wait added after a slow_down response.
	SlowDownDelay = 5 * time.Second
)

// Token endpoint error codes.
const (
	errAuthorizationPending = "authorization_pending"
	errSlowDown             = "slow_down"
	errExpiredToken         = "expired_token"
	errAccessDenied         = "access_denied"
)

// Grant is the state of one login attempt, created from the device-code response.
type Grant struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	ExpiresAt       time.Time
	PollInterval    time.Duration
}

// deviceCodeRequest is the device authorization request body.
type deviceCodeRequest struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope,omitempty"`
}

// deviceCodeResponse is the device authorization response body.
type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int64  `json:"expires_in"`
	Interval        int64  `json:"interval,omitempty"`
}

// newGrant converts a device-code response into a Grant issued at the given time.
func newGrant(resp deviceCodeResponse, issued time.Time) *Grant {
	interval := time.Duration(resp.Interval) * time.Second
	if interval < MinPollInterval {
		interval = MinPollInterval
	}

	return &Grant{
		DeviceCode:      resp.DeviceCode,
		UserCode:        resp.UserCode,
		VerificationURI: resp.VerificationURI,
		ExpiresAt:       issued.Add(time.Duration(resp.ExpiresIn) * time.Second),
		PollInterval:    interval,
	}
}

// tokenRequest is the token endpoint request body.
type tokenRequest struct {
	ClientID   string `json:"client_id"`
	DeviceCode string `json:"device_code"`
	GrantType  string `json:"grant_type"`
}

// tokenResponse is either a token or a protocol error.
type tokenResponse struct {
	oauth2.Token
	ErrorCode        string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// isProtocolError reports whether the response carries an error code this client acts on.
func (r *tokenResponse) isProtocolError() bool {
	switch r.ErrorCode {
	case errAuthorizationPending, errSlowDown, errExpiredToken, errAccessDenied:
		return true
	default:
		return false
	}
}

// failureReason prefers the human-readable description over the bare code.
func (r *tokenResponse) failureReason() string {
	if r.ErrorDescription != "" {
		return r.ErrorDescription
	}
	return r.ErrorCode
}

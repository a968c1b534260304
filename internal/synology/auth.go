package synology

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Session types recognized by the DSM auth API.
const (
	SessionFileStation     = "FileStation"
	SessionDownloadStation = "DownloadStation"
)

// apiVersions are tried newest-first; older DSM releases only speak the
// lower versions.
var apiVersions = []string{"7", "6", "3", "2"}

// Auth error codes that indicate a credential problem rather than a version
// mismatch, so version fallback must stop.
func isCredentialError(code int) bool {
	switch code {
	case 400, 402, 403, 404:
		return true
	}
	return false
}

// isSessionGone reports codes meaning the session already expired or never
// existed; logout treats these as success.
func isSessionGone(code int) bool {
	return code == 105 || code == 106
}

// ErrNoSession is returned by Logout when there is nothing to log out.
var ErrNoSession = errors.New("no session ID provided or available")

// Auth handles DSM authentication for one NAS host.
type Auth struct {
	client      *Client
	sessionID   string
	sessionType string
}

// NewAuth creates an authenticator bound to client.
func NewAuth(client *Client) *Auth {
	return &Auth{client: client, sessionType: SessionFileStation}
}

// loginData is the data payload of a successful login.
type loginData struct {
	SID string `json:"sid"`
}

// Login authenticates with the default FileStation session type and returns
// the session id.
func (a *Auth) Login(ctx context.Context, username, password string) (string, error) {
	return a.LoginWithSession(ctx, username, password, SessionFileStation)
}

// LoginWithSession authenticates using a specific session type, trying API
// versions newest-first. Credential errors abort the fallback immediately.
func (a *Auth) LoginWithSession(ctx context.Context, username, password, sessionType string) (string, error) {
	var lastErr error

	for _, version := range apiVersions {
		params := url.Values{}
		params.Set("api", "SYNO.API.Auth")
		params.Set("version", version)
		params.Set("method", "login")
		params.Set("account", username)
		params.Set("passwd", password)
		params.Set("session", sessionType)
		params.Set("format", "sid")

		var data loginData
		err := a.client.get(ctx, "/webapi/auth.cgi", params, nil, &data)
		if err == nil {
			a.sessionID = data.SID
			a.sessionType = sessionType
			return data.SID, nil
		}

		lastErr = err
		var apiErr *APIError
		if errors.As(err, &apiErr) && isCredentialError(apiErr.Code) {
			return "", fmt.Errorf("authentication failed: %w", err)
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("authentication failed: %w", lastErr)
	}
	return "", errors.New("authentication failed")
}

// Logout terminates a session. An empty sid logs out the current session.
// Already-expired sessions (codes 105/106) are not errors.
func (a *Auth) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		sid = a.sessionID
	}
	if sid == "" {
		return ErrNoSession
	}

	var lastErr error
	for _, version := range apiVersions {
		params := url.Values{}
		params.Set("api", "SYNO.API.Auth")
		params.Set("version", version)
		params.Set("method", "logout")
		params.Set("session", a.sessionType)
		params.Set("_sid", sid)

		err := a.client.get(ctx, "/webapi/auth.cgi", params, nil, nil)
		if err == nil {
			if sid == a.sessionID {
				a.sessionID = ""
				a.sessionType = SessionFileStation
			}
			return nil
		}

		lastErr = err
		var apiErr *APIError
		if errors.As(err, &apiErr) && isSessionGone(apiErr.Code) {
			// Session already invalid; clear local state and move on.
			if sid == a.sessionID {
				a.sessionID = ""
			}
			return nil
		}
	}

	return fmt.Errorf("logout failed: %w", lastErr)
}

// SessionID returns the current session id, empty when logged out.
func (a *Auth) SessionID() string {
	return a.sessionID
}

// SessionType returns the session type of the current session.
func (a *Auth) SessionType() string {
	return a.sessionType
}

// IsLoggedIn reports whether a session is held.
func (a *Auth) IsLoggedIn() bool {
	return a.sessionID != ""
}

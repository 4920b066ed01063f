package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/mail-sync/internal/model"
	"github.com/nhle/mail-sync/internal/session"
)

// Client is the single choke point for authenticated I/O against the
// mail backend. It attaches the session token as a bearer credential,
// translates failures into the FetchError taxonomy, and clears the
// session store on a 401 so that every later call short-circuits until
// the user authenticates again.
type Client struct {
	baseURL    string
	sessions   *session.Store
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for the API server at baseURL. The session
// store is consulted on every authenticated call.
func NewClient(baseURL string, sessions *session.Store, log zerolog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sessions: sessions,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// credentials is the request body shared by register and login.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the body of a successful login.
type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// Register creates a new user account. No session is required.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/register",
		credentials{Username: username, Password: password}, nil, false)
}

// Login authenticates and returns the access token on success. Storing
// the token is the caller's job; the session store stays the single
// writer of session state.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		credentials{Username: username, Password: password}, &resp, false)
	if err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Logout tells the server to revoke the current token.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, true)
}

// Me fetches the current user profile, including the linked-account
// collection in its Emails field.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &user, true)
	return user, err
}

// SearchEmails fetches one page of synced messages. The returned page
// carries both the records and the total count from the same response.
func (c *Client) SearchEmails(ctx context.Context, page, limit int) (model.EmailPage, error) {
	var result model.EmailPage
	path := fmt.Sprintf("/api/search/emails?page=%d&limit=%d", page, limit)
	err := c.do(ctx, http.MethodGet, path, nil, &result, true)
	return result, err
}

// TriggerSync asks the server to start a background mailbox sync.
func (c *Client) TriggerSync(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/ms-auth/sync-emails", nil, nil, true)
}

// ProviderLinkURL returns the browser URL that begins the third-party
// mailbox linking flow for the given user. The flow completes outside
// this program; the caller refetches the profile on return.
func (c *Client) ProviderLinkURL(userID string) string {
	return c.baseURL + "/api/ms-auth/login?userId=" + url.QueryEscape(userID)
}

// do builds the request, attaches auth, and maps the outcome onto the
// FetchError taxonomy. result may be nil when no body is expected.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
	authed bool,
) error {
	op := method + " " + path

	var token string
	if authed {
		sess, ok := c.sessions.Get()
		if !ok {
			// No valid session means no network call at all.
			return &FetchError{Kind: KindUnauthorized, Op: op}
		}
		token = sess.Token
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Str("op", op).Str("request_id", reqID).Err(err).
			Msg("transport failure")
		return &FetchError{Kind: KindNetwork, Op: op, Err: err}
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return &FetchError{Kind: KindNetwork, Op: op, Err: readErr}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Force re-authentication everywhere. The cleared store makes
		// every subsequent authenticated call fail fast.
		if clearErr := c.sessions.Clear(); clearErr != nil {
			c.log.Warn().Err(clearErr).Msg("clearing session after 401")
		}
		c.log.Info().Str("op", op).Str("request_id", reqID).
			Msg("session rejected by server")
		return &FetchError{Kind: KindUnauthorized, Status: resp.StatusCode, Op: op}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debug().Str("op", op).Str("request_id", reqID).
			Int("status", resp.StatusCode).Msg("server error")
		return &FetchError{Kind: KindServer, Status: resp.StatusCode, Op: op}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &FetchError{Kind: KindServer, Status: resp.StatusCode, Op: op, Err: err}
	}

	return nil
}

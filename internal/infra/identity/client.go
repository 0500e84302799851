// Package identity talks to the GoTrue admin API that stores accounts and
// their app/user metadata.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"membergate/internal/domain/users"
)

var (
	ErrNotConfigured = errors.New("identity admin api not configured")
	ErrNotFound      = errors.New("identity user not found")
	ErrUnauthorized  = errors.New("identity request unauthorized")
	// ErrConflict means the stored record changed between read and write.
	ErrConflict = errors.New("identity user changed concurrently")
)

// APIError carries a non-2xx response from the identity service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity request failed (%d %s): %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Patch is the body of an admin user update. Nil maps are omitted so the
// provider keeps what it has.
type Patch struct {
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

type Client struct {
	baseURL string
	admin   *http.Client
	plain   *http.Client
}

// New builds a client whose admin calls carry the static admin bearer token.
func New(baseURL, adminToken string) *Client {
	plain := &http.Client{Timeout: 10 * time.Second}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, plain)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: adminToken, TokenType: "Bearer"})
	admin := oauth2.NewClient(ctx, src)
	admin.Timeout = plain.Timeout
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		admin:   admin,
		plain:   plain,
	}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail returns ErrNotFound when the provider lists no match.
func (c *Client) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	var list []users.User
	if err := c.do(ctx, true, http.MethodGet, "/admin/users?email="+url.QueryEscape(email), "", nil, &list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	for i := range list {
		if NormalizeEmail(list[i].Email) == email {
			return &list[i], nil
		}
	}
	return &list[0], nil
}

func (c *Client) GetByID(ctx context.Context, id string) (*users.User, error) {
	if id == "" {
		return nil, errors.New("user id is required")
	}
	var u users.User
	if err := c.do(ctx, true, http.MethodGet, "/admin/users/"+url.PathEscape(id), "", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Update(ctx context.Context, id string, patch Patch) (*users.User, error) {
	if id == "" {
		return nil, errors.New("user id is required")
	}
	var u users.User
	if err := c.do(ctx, true, http.MethodPut, "/admin/users/"+url.PathEscape(id), "", patch, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateIfUnchanged re-reads the record and writes only when its version still
// matches the one the patch was computed from.
func (c *Client) UpdateIfUnchanged(ctx context.Context, base users.User, patch Patch) (*users.User, error) {
	current, err := c.GetByID(ctx, base.ID)
	if err != nil {
		return nil, err
	}
	if current.Version() != base.Version() {
		return nil, ErrConflict
	}
	return c.Update(ctx, base.ID, patch)
}

// CurrentUser resolves the account behind a user access token.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*users.User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrUnauthorized
	}
	var u users.User
	if err := c.do(ctx, false, http.MethodGet, "/user", accessToken, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) do(ctx context.Context, asAdmin bool, method, path, bearer string, body, out any) error {
	if c == nil || c.baseURL == "" {
		return ErrNotConfigured
	}
	hc := c.plain
	if asAdmin {
		hc = c.admin
	}
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode identity request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("identity %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read identity response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || res.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if list, ok := out.(*[]users.User); ok {
		return decodeUserList(raw, list)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}

// decodeUserList accepts a bare array or the {"users": [...]} envelope newer
// GoTrue versions return.
func decodeUserList(raw []byte, out *[]users.User) error {
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode identity users: %w", err)
		}
		return nil
	}
	var wrapped struct {
		Users []users.User `json:"users"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return fmt.Errorf("decode identity users: %w", err)
	}
	*out = wrapped.Users
	return nil
}

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"
)

// APIClient is an IdentityProvider speaking to the forum HTTP API.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// NewAPIClient targets baseURL (scheme and host, no trailing /api). A nil client gets a 10s timeout.
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *Identity `json:"user"`
}

// Authenticate calls POST /api/auth/login. A 401 maps to INVALID_CREDENTIALS.
func (c *APIClient) Authenticate(ctx context.Context, username, password string) (AuthResult, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return AuthResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return AuthResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return AuthResult{}, fmt.Errorf("login request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return AuthResult{}, models.NewInvalidCredentialsError()
	}
	if resp.StatusCode != http.StatusOK {
		return AuthResult{}, statusError("login", resp)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return AuthResult{}, fmt.Errorf("decode login response: %w", err)
	}
	return AuthResult{Token: lr.Token, ExpiresAt: lr.ExpiresAt, User: lr.User}, nil
}

// WhoAmI calls GET /api/users/me. A 401 maps to UNAUTHENTICATED.
func (c *APIClient) WhoAmI(ctx context.Context, token string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/users/me", nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("who-am-i request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return Identity{}, models.NewUnauthenticatedError("Session is no longer valid")
	}
	if resp.StatusCode != http.StatusOK {
		return Identity{}, statusError("who-am-i", resp)
	}

	var ident Identity
	if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil {
		return Identity{}, fmt.Errorf("decode user: %w", err)
	}
	return ident, nil
}

func statusError(op string, resp *http.Response) error {
	var er models.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		return fmt.Errorf("%s failed: status %d: %s", op, resp.StatusCode, er.Error)
	}
	return fmt.Errorf("%s failed: status %d", op, resp.StatusCode)
}

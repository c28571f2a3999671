// Package api is the typed client for the file service REST endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/webstorage/storectl/internal/config"
	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/events"
	apihttp "github.com/webstorage/storectl/internal/http"
	"github.com/webstorage/storectl/internal/logging"
	"github.com/webstorage/storectl/internal/models"
	"github.com/webstorage/storectl/internal/session"
	"github.com/webstorage/storectl/internal/version"
)

// Endpoint paths.
const (
	PathLogin    = "/api/pub/login"
	PathSignup   = "/api/pub/signup"
	PathFiles    = "/api/auth/files"
	PathUpload   = "/api/auth/upload"
	PathRename   = "/api/auth/rename"
	PathDownload = "/api/auth/download"
	PathDelete   = "/api/auth/delete"
)

// ErrEmptyBaseURL is returned by NewClient when no server URL is configured.
var ErrEmptyBaseURL = errors.New("server URL is empty")

// ProgressFunc receives bytes transferred so far and the expected total.
// total is -1 when the size is unknown.
type ProgressFunc func(done, total int64)

// Client talks to the file service. Authenticated calls go through a
// session.Gate; login and signup use the public doer directly.
type Client struct {
	baseURL   string
	gate      *session.Gate // JSON calls
	transfers *session.Gate // uploads and downloads, never retried
	public    session.Doer
	logger    *logging.Logger
}

// NewClient assembles a client from already-built gates.
func NewClient(baseURL string, gate, transfers *session.Gate, public session.Doer, logger *logging.Logger) (*Client, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if transfers == nil {
		transfers = gate
	}
	return &Client{
		baseURL:   baseURL,
		gate:      gate,
		transfers: transfers,
		public:    public,
		logger:    logger,
	}, nil
}

// NewClientFromConfig builds the HTTP stack described by cfg and gates both
// clients on sess. Session-ended events go to bus.
func NewClientFromConfig(cfg *config.Config, sess *session.Session, bus *events.EventBus, logger *logging.Logger) (*Client, error) {
	apiClient, err := apihttp.NewAPIClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	transferClient, err := apihttp.NewTransferClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure transfer client: %w", err)
	}
	return NewClient(
		cfg.ServerURL,
		session.NewGate(sess, apiClient, bus, logger),
		session.NewGate(sess, transferClient, bus, logger),
		apiClient,
		logger,
	)
}

// BaseURL returns the server URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*nethttp.Request, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := nethttp.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("%s/%s", constants.AppName, version.Version))
	return req, nil
}

// doAuthJSON sends an authenticated JSON request and decodes the 2xx body into out.
func (c *Client) doAuthJSON(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.gate.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, path, out)
}

// doPublicJSON sends an unauthenticated JSON request. Non-2xx statuses become
// RequestErrors but never touch the session.
func (c *Client) doPublicJSON(ctx context.Context, path string, body, out interface{}) error {
	req, err := c.newRequest(ctx, "POST", path, nil, body)
	if err != nil {
		return err
	}
	resp, err := c.public.Do(req)
	if err != nil {
		return apihttp.Transport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apihttp.FromResponse(resp)
	}
	return decode(resp, path, out)
}

func decode(resp *nethttp.Response, path string, out interface{}) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apihttp.Transport(fmt.Errorf("decode %s response: %w", path, err))
	}
	return nil
}

// Login exchanges credentials for a token. The caller stores the token.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error) {
	var result models.LoginResponse
	if err := c.doPublicJSON(ctx, PathLogin, creds, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, apihttp.Transport(errors.New("login response carried no token"))
	}
	return &result, nil
}

// Signup registers a new account and returns the server's message.
func (c *Client) Signup(ctx context.Context, creds models.Credentials) (string, error) {
	var result models.MessageResponse
	if err := c.doPublicJSON(ctx, PathSignup, creds, &result); err != nil {
		return "", err
	}
	return result.Message, nil
}

// ListFiles fetches the file set ordered by the server according to sort.
// The returned slice is in server order.
func (c *Client) ListFiles(ctx context.Context, sort models.SortState) ([]models.FileEntry, error) {
	query := url.Values{}
	query.Set("ord", string(sort.Direction))
	query.Set("col", sort.Column.WireName())

	var result models.FileList
	if err := c.doAuthJSON(ctx, "GET", PathFiles, query, nil, &result); err != nil {
		return nil, err
	}
	if result.Files == nil {
		result.Files = []models.FileEntry{}
	}
	return result.Files, nil
}

// Rename renames file id to name, keeping extension.
func (c *Client) Rename(ctx context.Context, id models.FileID, name, extension string) (string, error) {
	var result models.MessageResponse
	body := models.RenameRequest{ID: id, Name: name, Extension: extension}
	if err := c.doAuthJSON(ctx, "POST", PathRename, nil, body, &result); err != nil {
		return "", err
	}
	return result.Message, nil
}

// Delete removes file id.
func (c *Client) Delete(ctx context.Context, id models.FileID) (string, error) {
	var result models.MessageResponse
	if err := c.doAuthJSON(ctx, "POST", PathDelete, nil, models.DeleteRequest{ID: id}, &result); err != nil {
		return "", err
	}
	return result.Message, nil
}

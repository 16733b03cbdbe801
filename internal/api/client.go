package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"HibiscusGuard/internal/models"
	"HibiscusGuard/pkg/errors"
	"HibiscusGuard/pkg/metrics"
)

// TokenSource supplies the bearer token for authenticated calls. The
// session store implements it; the client never persists credentials.
type TokenSource interface {
	Token() (string, error)
}

// Client is the thin typed wrapper around the alerting REST API. The
// API's business logic lives server-side; this client only moves the
// fixed contract shapes.
type Client struct {
	base  string
	token TokenSource
	http  *http.Client
}

// NewClient creates a client for the API at base.
func NewClient(base string, token TokenSource) *Client {
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

// mutationResult is the envelope of write endpoints.
type mutationResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Alert   *models.Alert `json:"alert,omitempty"`
}

// OpenAlerts fetches the currently open alerts for the initial seed.
func (c *Client) OpenAlerts(ctx context.Context) ([]models.Alert, error) {
	var out []models.Alert
	err := c.get(ctx, "/alerts/open", &out)
	return out, err
}

// RecentAlerts fetches recently created alerts.
func (c *Client) RecentAlerts(ctx context.Context) ([]models.Alert, error) {
	var out []models.Alert
	err := c.get(ctx, "/alerts/recent", &out)
	return out, err
}

// UserDashboard fetches the caller's dashboard alert view.
func (c *Client) UserDashboard(ctx context.Context) ([]models.Alert, error) {
	var out []models.Alert
	err := c.get(ctx, "/alerts/user/dashboard", &out)
	return out, err
}

// UserRecentAlerts fetches the caller's own recent alerts.
func (c *Client) UserRecentAlerts(ctx context.Context) ([]models.Alert, error) {
	var out []models.Alert
	err := c.get(ctx, "/alerts/user/recent", &out)
	return out, err
}

// ActiveResponders fetches the active responder set for the seed.
func (c *Client) ActiveResponders(ctx context.Context) ([]models.Responder, error) {
	var out []models.Responder
	err := c.get(ctx, "/responders/active", &out)
	return out, err
}

// CreateAlert submits a new alert.
func (c *Client) CreateAlert(ctx context.Context, alert models.Alert) (*models.Alert, error) {
	var res mutationResult
	if err := c.send(ctx, http.MethodPost, "/alerts", alert, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, errors.Errorf("create alert rejected: %s", res.Message)
	}
	return res.Alert, nil
}

// UploadMedia attaches one media file to an alert.
func (c *Client) UploadMedia(ctx context.Context, alertID, filename string, data io.Reader) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	path := fmt.Sprintf("/alerts/%s/media", alertID)
	req, err := c.newRequest(ctx, http.MethodPost, path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var res mutationResult
	return c.do(req, path, &res)
}

// MarkDone marks an alert done.
func (c *Client) MarkDone(ctx context.Context, alertID string) error {
	var res mutationResult
	path := fmt.Sprintf("/alerts/%s/mark-done", alertID)
	if err := c.send(ctx, http.MethodPut, path, nil, &res); err != nil {
		return err
	}
	if !res.Success {
		return errors.Errorf("mark-done rejected: %s", res.Message)
	}
	return nil
}

// Heartbeat reports the device's current position.
func (c *Client) Heartbeat(ctx context.Context, fix models.Fix) error {
	return c.send(ctx, http.MethodPost, "/responders/heartbeat", fix, nil)
}

// AcceptAlert accepts an assignment as responder responderID.
func (c *Client) AcceptAlert(ctx context.Context, responderID, alertID string) error {
	path := fmt.Sprintf("/responders/%s/accept", responderID)
	return c.send(ctx, http.MethodPost, path, map[string]string{"alert_id": alertID}, nil)
}

// DeclineAlert declines an assignment as responder responderID.
func (c *Client) DeclineAlert(ctx context.Context, responderID, alertID string) error {
	path := fmt.Sprintf("/responders/%s/decline", responderID)
	return c.send(ctx, http.MethodPost, path, map[string]string{"alert_id": alertID}, nil)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, path, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	token, err := c.token.Token()
	if err != nil {
		return nil, errors.Wrap(err, "resolve bearer token")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (c *Client) do(req *http.Request, path string, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if mt := metrics.Global(); mt != nil {
			mt.RecordRESTRequest(path, "error")
		}
		return errors.Wrapf(err, "%s %s", req.Method, path)
	}
	defer resp.Body.Close()

	if mt := metrics.Global(); mt != nil {
		mt.RecordRESTRequest(path, strconv.Itoa(resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("%s %s: unexpected status %d", req.Method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Package backend is the HTTP client for the upstream cab-booking REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/models"
)

var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Is matches ErrUnauthorized for 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Client calls the backend on behalf of a signed-in user. Every call that
// needs authentication takes the user's bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the API rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TripsByDriver returns the raw trips assigned to a driver.
func (c *Client) TripsByDriver(ctx context.Context, token, driverID string) ([]map[string]any, error) {
	return c.trips(ctx, token, "/trips/driver/"+url.PathEscape(driverID))
}

// TripsByCustomer returns the raw trips booked by a customer.
func (c *Client) TripsByCustomer(ctx context.Context, token, customerID string) ([]map[string]any, error) {
	return c.trips(ctx, token, "/trips/customer/"+url.PathEscape(customerID))
}

// TripsByDate returns the raw trips starting on the given day.
func (c *Client) TripsByDate(ctx context.Context, token string, day time.Time) ([]map[string]any, error) {
	return c.trips(ctx, token, "/trips/date/"+day.Format("2006-01-02"))
}

// AllTrips returns every trip. Admin only.
func (c *Client) AllTrips(ctx context.Context, token string) ([]map[string]any, error) {
	return c.trips(ctx, token, "/trips")
}

func (c *Client) trips(ctx context.Context, token, path string) ([]map[string]any, error) {
	var raws []map[string]any
	if err := c.do(ctx, http.MethodGet, path, token, nil, &raws); err != nil {
		return nil, err
	}
	if raws == nil {
		raws = []map[string]any{}
	}
	return raws, nil
}

// UpdateTripStatus moves a trip through accept, start, complete or cancel.
func (c *Client) UpdateTripStatus(ctx context.Context, token, tripID, action string) (*models.StatusUpdate, error) {
	var resp models.StatusUpdate
	path := fmt.Sprintf("/trips/%s/%s", url.PathEscape(tripID), url.PathEscape(action))
	if err := c.do(ctx, http.MethodPut, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RateTrip records the passenger's rating for a completed trip.
func (c *Client) RateTrip(ctx context.Context, token, tripID string, rating float64) error {
	body := map[string]float64{"rating": rating}
	return c.do(ctx, http.MethodPut, "/trips/"+url.PathEscape(tripID)+"/rating", token, body, nil)
}

// BookTrip requests a new trip and returns the raw booking.
func (c *Client) BookTrip(ctx context.Context, token string, req models.BookRequest) (map[string]any, error) {
	var raw map[string]any
	if err := c.do(ctx, http.MethodPost, "/trips", token, req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// UpdateCab changes the driver-editable details of a cab.
func (c *Client) UpdateCab(ctx context.Context, token, cabID string, update models.CabUpdate) (*models.Cab, error) {
	var cab models.Cab
	if err := c.do(ctx, http.MethodPut, "/cabs/"+url.PathEscape(cabID), token, update, &cab); err != nil {
		return nil, err
	}
	return &cab, nil
}

// UploadCabImage adds a photo to a cab as a multipart "image" part.
func (c *Client) UploadCabImage(ctx context.Context, token, cabID, filename string, image io.Reader) (*models.Cab, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/cabs/"+url.PathEscape(cabID)+"/images", token, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var cab models.Cab
	if err := c.send(req, &cab); err != nil {
		return nil, err
	}
	return &cab, nil
}

// DeleteCabImage removes a photo from a cab.
func (c *Client) DeleteCabImage(ctx context.Context, token, cabID, name string) error {
	path := fmt.Sprintf("/cabs/%s/images/%s", url.PathEscape(cabID), url.PathEscape(name))
	return c.do(ctx, http.MethodDelete, path, token, nil, nil)
}

// PendingVerifications lists driver verifications awaiting review.
func (c *Client) PendingVerifications(ctx context.Context, token string) ([]models.Verification, error) {
	var out []models.Verification
	if err := c.do(ctx, http.MethodGet, "/admin/verifications", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Verify approves or rejects a driver verification.
func (c *Client) Verify(ctx context.Context, token, id string, approve bool, note string) (*models.Verification, error) {
	body := struct {
		Approve bool   `json:"approve"`
		Note    string `json:"note,omitempty"`
	}{approve, note}
	var v models.Verification
	if err := c.do(ctx, http.MethodPut, "/admin/verifications/"+url.PathEscape(id), token, body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, token, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	log.WithFields(log.Fields{
		"method":  req.Method,
		"path":    req.URL.Path,
		"status":  resp.StatusCode,
		"latency": time.Since(start),
	}).Debug("Backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// errorMessage pulls "error" or "message" out of a JSON body, falling back
// to the trimmed text.
func errorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(data))
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"bookflow/internal/config"
	"bookflow/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// APIError carries the backend's HTTP status and detail message so callers
// can surface it verbatim.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// Client is the HTTP client for the booking backend's REST surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

func NewClient(cfg config.BackendConfig, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger.With().Str("component", "backend").Logger(),
	}
}

// UseRedisCache enables a read-through cache for the public GET endpoints.
// Cache errors fall through to HTTP silently.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// ListBookingTypes returns the workspace's bookable services.
func (c *Client) ListBookingTypes(ctx context.Context, workspaceID string) ([]models.BookingType, error) {
	endpoint := fmt.Sprintf("%s/public/%s/booking-types", c.baseURL, url.PathEscape(workspaceID))
	cacheKey := fmt.Sprintf("booking_types:%s", workspaceID)

	var types []models.BookingType
	if c.readCache(ctx, cacheKey, &types) {
		return types, nil
	}

	if err := c.doGet(ctx, endpoint, &types); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, types)
	return types, nil
}

// DateAvailability returns the civil dates (YYYY-MM-DD) with at least one
// free slot in [fromDate, toDate].
func (c *Client) DateAvailability(ctx context.Context, workspaceID, slug, fromDate, toDate string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/public/%s/booking-types/%s/availability-range?from_date=%s&to_date=%s",
		c.baseURL, url.PathEscape(workspaceID), url.PathEscape(slug),
		url.QueryEscape(fromDate), url.QueryEscape(toDate))
	cacheKey := fmt.Sprintf("availability_range:%s:%s:%s:%s", workspaceID, slug, fromDate, toDate)

	var dates []string
	if c.readCache(ctx, cacheKey, &dates) {
		return dates, nil
	}

	if err := c.doGet(ctx, endpoint, &dates); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, dates)
	return dates, nil
}

// SlotAvailability returns the day's slots in the backend's chronological
// order.
func (c *Client) SlotAvailability(ctx context.Context, workspaceID, slug, day string) ([]models.AvailabilitySlot, error) {
	endpoint := fmt.Sprintf("%s/public/%s/booking-types/%s/availability?day=%s",
		c.baseURL, url.PathEscape(workspaceID), url.PathEscape(slug), url.QueryEscape(day))
	cacheKey := fmt.Sprintf("availability:%s:%s:%s", workspaceID, slug, day)

	var slots []models.AvailabilitySlot
	if c.readCache(ctx, cacheKey, &slots) {
		return slots, nil
	}

	if err := c.doGet(ctx, endpoint, &slots); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, slots)
	return slots, nil
}

// CreateBooking submits the booking. Timestamps in req must be UTC. Never
// cached, never retried.
func (c *Client) CreateBooking(ctx context.Context, workspaceID string, req models.CreateBookingRequest) (*models.Booking, error) {
	endpoint := fmt.Sprintf("%s/public/%s/bookings", c.baseURL, url.PathEscape(workspaceID))

	var resp struct {
		Booking        models.Booking `json:"booking"`
		MessageChannel string         `json:"message_channel"`
	}
	if err := c.doPost(ctx, endpoint, req, &resp); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("booking_id", resp.Booking.ID).
		Str("message_channel", resp.MessageChannel).
		Msg("Booking created")

	return &resp.Booking, nil
}

// FormLink returns the form template id linked to the booking's service, or
// empty when none is linked.
func (c *Client) FormLink(ctx context.Context, workspaceID, bookingID string) (string, error) {
	endpoint := fmt.Sprintf("%s/public/%s/bookings/%s/form-link",
		c.baseURL, url.PathEscape(workspaceID), url.PathEscape(bookingID))

	var resp struct {
		FormTemplateID string `json:"form_template_id"`
	}
	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return "", err
	}
	return resp.FormTemplateID, nil
}

// UpdateStatus writes the booking status with the caller's bearer token and
// returns the status the backend persisted.
func (c *Client) UpdateStatus(ctx context.Context, workspaceID, bookingID, status, bearerToken string) (string, error) {
	endpoint := fmt.Sprintf("%s/workspaces/%s/bookings/%s/status",
		c.baseURL, url.PathEscape(workspaceID), url.PathEscape(bookingID))

	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(out)
}

// readDetail pulls the backend's {"detail": "..."} error body when present.
func readDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil || parsed.Detail == "" {
		return string(bytes.TrimSpace(data))
	}
	return parsed.Detail
}

// Package directory resolves contract parties and listed properties from the
// platform's internal user and listing APIs. The signing service stores only
// IDs; everything displayable is fetched here on demand.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/rentline-backend/internal/platform/envutil"
	"github.com/yungbote/rentline-backend/internal/platform/httpx"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
	"github.com/yungbote/rentline-backend/internal/services"
)

type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFromEnv() (Config, error) {
	baseURL := strings.TrimSpace(os.Getenv("PLATFORM_API_BASE_URL"))
	if baseURL == "" {
		return Config{}, fmt.Errorf("missing env var PLATFORM_API_BASE_URL")
	}
	return Config{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      strings.TrimSpace(os.Getenv("PLATFORM_API_TOKEN")),
		Timeout:    time.Duration(envutil.Int("PLATFORM_API_TIMEOUT_SECONDS", 10)) * time.Second,
		MaxRetries: envutil.Int("PLATFORM_API_MAX_RETRIES", 3),
	}, nil
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func NewFromEnv(log *logger.Logger) (services.PartyDirectory, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(log, cfg), nil
}

func New(log *logger.Logger, cfg Config) services.PartyDirectory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &client{
		log:  log.With("client", "DirectoryClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type partyPayload struct {
	ID               uuid.UUID `json:"id"`
	FullName         string    `json:"full_name"`
	IDNumber         string    `json:"id_number"`
	IDIssuedBy       string    `json:"id_issued_by"`
	IDIssuedAt       time.Time `json:"id_issued_at"`
	BirthDate        time.Time `json:"birth_date"`
	PermanentAddress string    `json:"permanent_address"`
	ContactAddress   string    `json:"contact_address"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email"`
	ConsentRecorded  bool      `json:"econtract_consent"`
}

type propertyPayload struct {
	Ref        string   `json:"ref"`
	Address    string   `json:"address"`
	Purpose    string   `json:"purpose"`
	HouseRules []string `json:"house_rules"`
}

func (c *client) GetParty(ctx context.Context, id uuid.UUID) (*services.PartyProfile, error) {
	var payload partyPayload
	if err := c.getJSON(ctx, fmt.Sprintf("/internal/users/%s", id), &payload); err != nil {
		return nil, err
	}
	return &services.PartyProfile{
		UserID:           payload.ID,
		FullName:         payload.FullName,
		IDNumber:         payload.IDNumber,
		IDIssuedBy:       payload.IDIssuedBy,
		IDIssuedAt:       payload.IDIssuedAt,
		BirthDate:        payload.BirthDate,
		PermanentAddress: payload.PermanentAddress,
		ContactAddress:   payload.ContactAddress,
		Phone:            payload.Phone,
		Email:            payload.Email,
		ConsentRecorded:  payload.ConsentRecorded,
	}, nil
}

func (c *client) GetProperty(ctx context.Context, ref string) (*services.PropertyInfo, error) {
	var payload propertyPayload
	if err := c.getJSON(ctx, fmt.Sprintf("/internal/listings/%s", ref), &payload); err != nil {
		return nil, err
	}
	return &services.PropertyInfo{
		Ref:        payload.Ref,
		Address:    payload.Address,
		Purpose:    payload.Purpose,
		HouseRules: payload.HouseRules,
	}, nil
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error
	backoff := 300 * time.Millisecond

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(httpx.JitterSleep(backoff)):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if httpx.IsRetryableError(err) {
				lastErr = err
				continue
			}
			return err
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return json.Unmarshal(body, out)
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("directory: %s not found", path)
		}
		lastErr = fmt.Errorf("directory: %s returned %d", path, resp.StatusCode)
		if !httpx.IsRetryableHTTPStatus(resp.StatusCode) {
			return lastErr
		}
	}
	return fmt.Errorf("directory request failed after %d retries: %w", c.cfg.MaxRetries, lastErr)
}

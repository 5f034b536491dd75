package renewmartsdk

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
)

// Client is a minimal RenewMart HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Land represents the API land model.
type Land struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	Title       string   `json:"title"`
	Location    string   `json:"location,omitempty"`
	EnergyType  string   `json:"energy_type"`
	CapacityMW  *float64 `json:"capacity_mw,omitempty"`
	AskingPrice *float64 `json:"asking_price,omitempty"`
	Status      string   `json:"status"`
	PublishedAt *string  `json:"published_at,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID           string `json:"id"`
	LandID       string `json:"land_id"`
	AssignedRole string `json:"assigned_role,omitempty"`
	Title        string `json:"title"`
	Status       string `json:"status"`
}

// Document represents the API document model (partial).
type Document struct {
	ID            string `json:"id"`
	LandID        string `json:"land_id"`
	DocumentType  string `json:"document_type"`
	DocSlot       string `json:"doc_slot,omitempty"`
	Status        string `json:"status"`
	VersionNumber int    `json:"version_number"`
}

// Interest represents a registered investor interest.
type Interest struct {
	ID         string `json:"id"`
	LandID     string `json:"land_id"`
	InvestorID string `json:"investor_id"`
	Message    string `json:"message,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// RoleProgress is one role's slice of a progress snapshot.
type RoleProgress struct {
	Role           string `json:"role"`
	Percentage     int    `json:"percentage"`
	CompletedCount int    `json:"completed_count"`
	TotalCount     int    `json:"total_count"`
}

// ProgressSnapshot is the assembled review dashboard state for a land.
type ProgressSnapshot struct {
	Land        Land                    `json:"land"`
	State       string                  `json:"state"`
	RoleResults map[string]RoleProgress `json:"role_results"`
	OverallPct  int                     `json:"overall_pct"`
	WeightedPct int                     `json:"weighted_pct"`
	GeneratedAt string                  `json:"generated_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	LandID     string         `json:"land_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedLands wraps land listings with cursors.
type PaginatedLands struct {
	Items      []Land `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// CreateLand lists a new land project.
func (c *Client) CreateLand(ctx context.Context, title, energyType, location string) (Land, error) {
	body := map[string]any{
		"title":       title,
		"energy_type": energyType,
		"location":    location,
	}
	var resp Land
	err := c.do(ctx, http.MethodPost, "v1/lands", body, &resp)
	return resp, err
}

// GetLand fetches a land by id.
func (c *Client) GetLand(ctx context.Context, id string) (Land, error) {
	var resp Land
	err := c.do(ctx, http.MethodGet, "v1/lands/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SetLandStatus moves a listing through its lifecycle.
func (c *Client) SetLandStatus(ctx context.Context, id, status string) (Land, error) {
	var resp Land
	err := c.do(ctx, http.MethodPost, "v1/lands/"+url.PathEscape(id)+"/status", map[string]any{"status": status}, &resp)
	return resp, err
}

// CreateTask creates a review task; role resolution applies when role is empty.
func (c *Client) CreateTask(ctx context.Context, landID, title, role string) (Task, error) {
	body := map[string]any{
		"title":         title,
		"assigned_role": role,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v1/lands/"+url.PathEscape(landID)+"/tasks", body, &resp)
	return resp, err
}

// RecordDocument registers uploaded document metadata.
func (c *Client) RecordDocument(ctx context.Context, landID, docType, slot, fileName string) (Document, error) {
	body := map[string]any{
		"document_type": docType,
		"doc_slot":      slot,
		"file_name":     fileName,
	}
	var resp Document
	err := c.do(ctx, http.MethodPost, "v1/lands/"+url.PathEscape(landID)+"/documents", body, &resp)
	return resp, err
}

// Progress fetches the review progress snapshot for a land.
func (c *Client) Progress(ctx context.Context, landID string) (ProgressSnapshot, error) {
	var resp ProgressSnapshot
	err := c.do(ctx, http.MethodGet, "v1/lands/"+url.PathEscape(landID)+"/progress", nil, &resp)
	return resp, err
}

// Marketplace returns published listings.
func (c *Client) Marketplace(ctx context.Context, energyType string, limit int) ([]Land, error) {
	page, err := c.MarketplacePage(ctx, energyType, limit, "")
	return page.Items, err
}

// MarketplacePage returns a paginated marketplace listing.
func (c *Client) MarketplacePage(ctx context.Context, energyType string, limit int, cursor string) (PaginatedLands, error) {
	endpoint := "v1/marketplace/lands"
	params := url.Values{}
	if energyType != "" {
		params.Set("energy_type", energyType)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var resp PaginatedLands
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RegisterInterest registers investor interest in a published land.
func (c *Client) RegisterInterest(ctx context.Context, landID, message string) (Interest, error) {
	var resp Interest
	err := c.do(ctx, http.MethodPost, "v1/lands/"+url.PathEscape(landID)+"/interests", map[string]any{"message": message}, &resp)
	return resp, err
}

// VisibleDocumentTypes returns the document types a role may see for a land.
func (c *Client) VisibleDocumentTypes(ctx context.Context, landID, role string) ([]string, error) {
	var resp struct {
		DocumentTypes []string `json:"document_types"`
	}
	endpoint := "v1/lands/" + url.PathEscape(landID) + "/document-types?role=" + url.QueryEscape(role)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.DocumentTypes, err
}

// Events returns recent audit events.
func (c *Client) Events(ctx context.Context, landID string, limit int) ([]Event, error) {
	endpoint := "v1/events"
	params := url.Values{}
	if landID != "" {
		params.Set("land_id", landID)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// one retry for idempotent reads; writes surface the error as-is
		if method != http.MethodGet || ctx.Err() != nil {
			return err
		}
		retry, rerr := http.NewRequestWithContext(ctx, method, url, nil)
		if rerr != nil {
			return err
		}
		retry.Header = req.Header.Clone()
		resp, err = c.HTTPClient.Do(retry)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/dtos"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// Profile backend endpoints, relative to the configured base URL.
const (
	PathHealth               = "/health"
	PathCreateKnownTime      = "/api/v1/profiles/birth-details"
	PathCreateUnknownTime    = "/api/v1/profiles/birth-details/unknown-time"
	PathPhotoUploadURLFormat = "/api/v1/profiles/%s/photo/upload-url"
	PathPhotoConfirmFormat   = "/api/v1/profiles/%s/photo/confirm"
	PathPhotoFormat          = "/api/v1/profiles/%s/photo"
	PathUsageFormat          = "/api/v1/usage/%s"
)

// subjectIDFields are checked in priority order; the backend is not
// consistent about which one it returns.
var subjectIDFields = []string{"_id", "userId", "id"}

var (
	ErrMissingSubjectID  = errors.New("missing_subject_id")
	ErrInvalidResourceID = errors.New("invalid_resource_id")
)

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error (%d): %s", e.StatusCode, e.Message)
}

// ProfileBackendClient talks to the profile backend over JSON. It never
// retries; every failure goes back to the caller once.
type ProfileBackendClient struct {
	BaseURL    *url.URL
	HTTPClient *http.Client
}

func NewProfileBackendClient(baseURL string, httpClient *http.Client) (*ProfileBackendClient, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid baseURL: %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.ProfileBackendClientTimeout}
	}
	return &ProfileBackendClient{BaseURL: parsed, HTTPClient: httpClient}, nil
}

// resourcePath fills format with id as a single escaped path segment.
func resourcePath(format, id string) (string, error) {
	switch strings.TrimSpace(id) {
	case "", ".", "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidResourceID, id)
	}
	return fmt.Sprintf(format, url.PathEscape(id)), nil
}

// doRequest performs a single JSON request against the backend.
func (c *ProfileBackendClient) doRequest(ctx context.Context, method, reqPath string, body any, out any) error {
	u := *c.BaseURL
	u.RawPath = path.Join(c.BaseURL.EscapedPath(), reqPath)
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return fmt.Errorf("invalid request path: %w", err)
	}
	u.Path = unescaped

	var reqBody io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if tok := utils.AccessTokenFromContext(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleHTTPError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// handleHTTPError reads the backend's { "message": ... } or
// { "error": ... } body into an HTTPError.
func handleHTTPError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := strings.TrimSpace(string(bodyBytes))
	if err := json.Unmarshal(bodyBytes, &apiErr); err == nil {
		if apiErr.Message != "" {
			msg = apiErr.Message
		} else if apiErr.Error != "" {
			msg = apiErr.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
}

func (c *ProfileBackendClient) Ping(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, PathHealth, nil, nil)
}

// CreateSubjectKnownTime creates a profile whose birth time is known.
func (c *ProfileBackendClient) CreateSubjectKnownTime(ctx context.Context, req dtos.CreateSubjectRequest) (string, error) {
	return c.createSubject(ctx, PathCreateKnownTime, req)
}

// CreateSubjectUnknownTime creates a profile without a birth time.
func (c *ProfileBackendClient) CreateSubjectUnknownTime(ctx context.Context, req dtos.CreateSubjectRequest) (string, error) {
	return c.createSubject(ctx, PathCreateUnknownTime, req)
}

func (c *ProfileBackendClient) createSubject(ctx context.Context, endpoint string, req dtos.CreateSubjectRequest) (string, error) {
	var raw map[string]json.RawMessage
	if err := c.doRequest(ctx, http.MethodPost, endpoint, req, &raw); err != nil {
		return "", fmt.Errorf("create subject: %w", err)
	}
	id, err := SubjectIDFromResponse(raw)
	if err != nil {
		return "", fmt.Errorf("create subject: %w", err)
	}
	return id, nil
}

// SubjectIDFromResponse picks the created id out of a creation response,
// trying _id, then userId, then id. String and numeric ids are accepted.
func SubjectIDFromResponse(raw map[string]json.RawMessage) (string, error) {
	for _, field := range subjectIDFields {
		v, ok := raw[field]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if s != "" {
				return s, nil
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil && n.String() != "" {
			return n.String(), nil
		}
	}
	return "", ErrMissingSubjectID
}

// RequestUploadTicket asks for a one-shot direct upload URL.
func (c *ProfileBackendClient) RequestUploadTicket(ctx context.Context, subjectID, mimeType string) (models.UploadTicket, error) {
	var resp dtos.UploadTicketResponse
	endpoint, err := resourcePath(PathPhotoUploadURLFormat, subjectID)
	if err != nil {
		return models.UploadTicket{}, fmt.Errorf("request upload ticket: %w", err)
	}
	if err := c.doRequest(ctx, http.MethodPost, endpoint, dtos.UploadTicketRequest{MimeType: mimeType}, &resp); err != nil {
		return models.UploadTicket{}, fmt.Errorf("request upload ticket: %w", err)
	}
	if resp.UploadURL == "" || resp.PhotoKey == "" {
		return models.UploadTicket{}, fmt.Errorf("request upload ticket: incomplete ticket")
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = mimeType
	}
	return models.UploadTicket{
		SubjectID:   subjectID,
		ObjectKey:   resp.PhotoKey,
		UploadURL:   resp.UploadURL,
		ContentType: contentType,
	}, nil
}

// PutObject sends body to the ticket's upload URL. Only a 2xx status
// counts as success.
func (c *ProfileBackendClient) PutObject(ctx context.Context, ticket models.UploadTicket, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, ticket.UploadURL, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", ticket.ContentType)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleHTTPError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ConfirmPhotoUpload tells the backend the object is in place.
func (c *ProfileBackendClient) ConfirmPhotoUpload(ctx context.Context, subjectID, photoKey string) (models.PhotoUpload, error) {
	var resp dtos.ConfirmPhotoResponse
	endpoint, err := resourcePath(PathPhotoConfirmFormat, subjectID)
	if err != nil {
		return models.PhotoUpload{}, fmt.Errorf("confirm photo upload: %w", err)
	}
	if err := c.doRequest(ctx, http.MethodPost, endpoint, dtos.ConfirmPhotoRequest{PhotoKey: photoKey}, &resp); err != nil {
		return models.PhotoUpload{}, fmt.Errorf("confirm photo upload: %w", err)
	}
	return models.PhotoUpload{URL: resp.ProfilePhotoURL, Key: resp.ProfilePhotoKey}, nil
}

func (c *ProfileBackendClient) RemovePhoto(ctx context.Context, subjectID string) error {
	endpoint, err := resourcePath(PathPhotoFormat, subjectID)
	if err != nil {
		return fmt.Errorf("remove photo: %w", err)
	}
	if err := c.doRequest(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("remove photo: %w", err)
	}
	return nil
}

// CheckQuota reads the caller's usage counters for action.
func (c *ProfileBackendClient) CheckQuota(ctx context.Context, action string) (dtos.QuotaResponse, error) {
	var resp dtos.QuotaResponse
	endpoint, err := resourcePath(PathUsageFormat, action)
	if err != nil {
		return dtos.QuotaResponse{}, fmt.Errorf("check quota: %w", err)
	}
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return dtos.QuotaResponse{}, fmt.Errorf("check quota: %w", err)
	}
	return resp, nil
}

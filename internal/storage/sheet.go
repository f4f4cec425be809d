package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SheetStorage talks to a spreadsheet-backed script endpoint that answers
//
//	GET ?action=get&id=…           -> "YYYY-MM-DD" or empty body
//	GET ?action=upsert&id=…&date=… -> ack
//
// Without a base URL or secret every call is a no-op.
type SheetStorage struct {
	baseURL string
	secret  string
	client  *http.Client
	logger  *zap.Logger
}

// maxSheetResponse bounds how much of a response body is read.
const maxSheetResponse = 64 << 10

func NewSheetStorage(baseURL, secret string, timeout time.Duration, logger *zap.Logger) *SheetStorage {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &SheetStorage{
		baseURL: strings.TrimSpace(baseURL),
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
	if !s.Configured() {
		logger.Warn("Sheet storage not configured, durable state disabled")
	}
	return s
}

func (s *SheetStorage) Configured() bool {
	return s.baseURL != "" && s.secret != ""
}

func (s *SheetStorage) GetStartDate(ctx context.Context, conversationID string) (string, bool, error) {
	if !s.Configured() {
		return "", false, nil
	}

	body, err := s.call(ctx, url.Values{
		"action": {"get"},
		"id":     {conversationID},
	})
	if err != nil {
		return "", false, err
	}

	date := parseSheetDate(body)
	if date == "" {
		return "", false, nil
	}
	return date, true, nil
}

func (s *SheetStorage) SaveStartDate(ctx context.Context, conversationID, date string) error {
	if !s.Configured() {
		return nil
	}

	_, err := s.call(ctx, url.Values{
		"action": {"upsert"},
		"id":     {conversationID},
		"date":   {date},
	})
	return err
}

func (s *SheetStorage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *SheetStorage) call(ctx context.Context, params url.Values) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid sheet url: %w", err)
	}
	params.Set("token", s.secret)
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build sheet request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sheet %s request: %w", params.Get("action"), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSheetResponse))
	if err != nil {
		return "", fmt.Errorf("read sheet response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sheet %s: unexpected status %d", params.Get("action"), resp.StatusCode)
	}

	return strings.TrimSpace(string(data)), nil
}

// parseSheetDate accepts a bare date or a {"date": "..."} object.
func parseSheetDate(body string) string {
	if strings.HasPrefix(body, "{") {
		var payload struct {
			Date string `json:"date"`
		}
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			return ""
		}
		return strings.TrimSpace(payload.Date)
	}
	return strings.Trim(body, `"`)
}

package dispatch

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

	"github.com/contactd/contactd/internal/config"
	"github.com/contactd/contactd/internal/core"
)

const (
	indexDispatcherName = "index"
	maxErrorBodyBytes   = 512
	maxResponseBytes    = 4 << 20
)

// StatusError reports a non-success response from the index backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("index backend returned %d: %s", e.StatusCode, e.Body)
}

// IndexDispatcher stores submissions as documents in an Elasticsearch or
// OpenSearch compatible index and relays queries against it.
type IndexDispatcher struct {
	BaseURL  string
	Index    string
	Username string
	Password string
	Client   *http.Client
	Clock    func() time.Time
}

// NewIndexDispatcher builds an IndexDispatcher from configuration.
func NewIndexDispatcher(cfg config.IndexConfig, client *http.Client) *IndexDispatcher {
	return &IndexDispatcher{
		BaseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		Index:    cfg.Name,
		Username: cfg.Username,
		Password: cfg.Password,
		Client:   client,
	}
}

type indexDocument struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
	ClientID  string `json:"ip"`
	Timestamp string `json:"timestamp"`
}

type indexResponse struct {
	ID     string `json:"_id"`
	Result string `json:"result"`
}

// Name identifies the dispatcher in logs and metrics.
func (d *IndexDispatcher) Name() string { return indexDispatcherName }

// Dispatch indexes sub as a new document; the document id is the ack.
func (d *IndexDispatcher) Dispatch(ctx context.Context, sub core.Submission) core.DispatchResult {
	submitted := sub.SubmittedAt
	if submitted.IsZero() {
		submitted = d.now()
	}

	doc := indexDocument{
		Name:      sub.Name,
		Email:     sub.Email,
		Message:   sub.Message,
		ClientID:  sub.ClientID,
		Timestamp: submitted.UTC().Format(time.RFC3339Nano),
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return core.Failed("encode document", err)
	}

	body, err := d.do(ctx, http.MethodPost, d.indexPath("_doc"), payload)
	if err != nil {
		return core.Failed("index document", err)
	}

	var resp indexResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Failed("decode index response", err)
	}
	if resp.ID == "" {
		return core.Failed("index response missing document id", nil)
	}
	return core.Delivered(resp.ID)
}

// Search runs a full-text query over name, email and message and returns
// the backend's raw response.
func (d *IndexDispatcher) Search(ctx context.Context, query string) (json.RawMessage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, core.ErrMissingQuery
	}

	payload, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"name", "email", "message"},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	body, err := d.do(ctx, http.MethodPost, d.indexPath("_search"), payload)
	if err != nil {
		return nil, err
	}
	return rawJSON(body)
}

// Health returns the backend's cluster health document.
func (d *IndexDispatcher) Health(ctx context.Context) (json.RawMessage, error) {
	body, err := d.do(ctx, http.MethodGet, "/_cluster/health", nil)
	if err != nil {
		return nil, err
	}
	return rawJSON(body)
}

func (d *IndexDispatcher) indexPath(action string) string {
	return "/" + url.PathEscape(d.Index) + "/" + action
}

func (d *IndexDispatcher) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if d.BaseURL == "" || d.Index == "" {
		return nil, errors.New("index dispatcher is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.Username != "" {
		req.SetBasicAuth(d.Username, d.Password)
	}

	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

func (d *IndexDispatcher) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now().UTC()
}

func rawJSON(body []byte) (json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, errors.New("index backend returned invalid JSON")
	}
	return json.RawMessage(body), nil
}

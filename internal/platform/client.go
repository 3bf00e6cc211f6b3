package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/flowctl/internal/domain"
	"github.com/shaiso/flowctl/internal/telemetry"
)

const defaultTimeout = 30 * time.Second

// Config — конфигурация клиента.
type Config struct {
	BaseURL     string        // адрес платформы, например http://tapdata:3030
	AccessToken string        // статический access token
	Timeout     time.Duration // default: 30s
	HTTPClient  *http.Client  // если nil, создаётся с Timeout
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
}

// Client — HTTP-клиент платформы репликации.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	metrics     *telemetry.Metrics
	logger      *slog.Logger
}

// NewClient создаёт клиент платформы.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		httpClient:  httpClient,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// --- Wire types ---

// Task — задача на платформе.
type Task struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Status domain.FlowStatus `json:"status"`
	Attrs  TaskAttrs         `json:"attrs"`
}

// TaskAttrs — служебные атрибуты задачи.
type TaskAttrs struct {
	Milestone *domain.Milestones `json:"milestone,omitempty"`
}

// State возвращает состояние задачи для вывода событий.
func (t *Task) State() *domain.FlowState {
	return &domain.FlowState{
		Status:    t.Status,
		Milestone: t.Attrs.Milestone,
	}
}

// taskRequest — тело создания/сохранения задачи.
type taskRequest struct {
	Name string          `json:"name"`
	Dag  json.RawMessage `json:"dag,omitempty"`
}

// envelope — конверт ответа платформы.
type envelope struct {
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// --- Tasks ---

// CreateTask создаёт задачу с определением пайплайна.
func (c *Client) CreateTask(ctx context.Context, name string, definition json.RawMessage) (*Task, error) {
	var task Task
	err := c.doData(ctx, http.MethodPost, "/api/Task", nil, taskRequest{Name: name, Dag: definition}, &task)
	if err != nil {
		return nil, err
	}
	if task.ID == "" {
		return nil, fmt.Errorf("%w: created task has no id", ErrMalformedResponse)
	}
	return &task, nil
}

// UpdateTask сохраняет определение существующей задачи.
func (c *Client) UpdateTask(ctx context.Context, id, name string, definition json.RawMessage) error {
	return c.doData(ctx, http.MethodPatch, "/api/Task/"+url.PathEscape(id), nil,
		taskRequest{Name: name, Dag: definition}, nil)
}

// StartTask запускает задачу.
func (c *Client) StartTask(ctx context.Context, id string) error {
	return c.doData(ctx, http.MethodPut, "/api/Task/batchStart", batchParams(id), nil, nil)
}

// StopTask останавливает задачу.
func (c *Client) StopTask(ctx context.Context, id string) error {
	return c.doData(ctx, http.MethodPut, "/api/Task/batchStop", batchParams(id), nil, nil)
}

// DeleteTask удаляет задачу.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.doData(ctx, http.MethodDelete, "/api/Task/batchDelete", batchParams(id), nil, nil)
}

// GetTask возвращает задачу по ID.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := c.doData(ctx, http.MethodGet, "/api/Task/"+url.PathEscape(id), nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// FindTask ищет задачу по имени.
// Возвращает ErrTaskNotFound, если задачи нет.
func (c *Client) FindTask(ctx context.Context, name string) (*Task, error) {
	filter, err := json.Marshal(map[string]any{
		"where": map[string]string{"name": name},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}

	params := url.Values{}
	params.Set("filter", string(filter))

	var page struct {
		Items []Task `json:"items"`
	}
	if err := c.doData(ctx, http.MethodGet, "/api/Task", params, nil, &page); err != nil {
		return nil, err
	}

	for i := range page.Items {
		if page.Items[i].Name == name {
			return &page.Items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
}

func batchParams(id string) url.Values {
	params := url.Values{}
	params.Set("taskIds", id)
	return params
}

// --- HTTP helpers ---

func (c *Client) doData(ctx context.Context, method, path string, params url.Values, body, result any) error {
	resp, err := c.do(ctx, method, path, params, body)
	if err != nil {
		c.metrics.PlatformRequest(method, 0)
		return err
	}
	defer resp.Body.Close()

	c.metrics.PlatformRequest(method, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode, Message: truncate(string(data), 200)}
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if resp.StatusCode >= 400 || env.Code != "ok" {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	if result == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	if params == nil {
		params = url.Values{}
	}
	if c.accessToken != "" {
		params.Set("access_token", c.accessToken)
	}

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("platform request", "method", method, "path", path)

	return c.httpClient.Do(req)
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

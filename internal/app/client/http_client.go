package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/domain/record"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRemote       = errors.New("remote api error")
)

// Delta - ответ delta API для одной коллекции
type Delta struct {
	Updated []*record.Record
	Deleted []*record.Record
	// Cursor - время сервера на момент выборки, если сервер его сообщил
	Cursor *time.Time
}

// DeltaSource - потребитель GET /sync/{resource}
type DeltaSource interface {
	FetchDelta(ctx context.Context, collection record.Collection, since *time.Time) (*Delta, error)
}

type deltaPayload struct {
	Updated    []*record.Record `json:"updated"`
	Deleted    []*record.Record `json:"deleted"`
	ServerTime string           `json:"serverTime,omitempty"`
}

// deltaResponse покрывает обе формы ответа: {success, data:{...}} и плоскую {success, updated, deleted}.
type deltaResponse struct {
	Success *bool         `json:"success"`
	Message string        `json:"message"`
	Error   string        `json:"error"`
	Data    *deltaPayload `json:"data"`
	deltaPayload
}

type httpClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	userAgent string

	// token меняется при логине, пока планировщик шлет запросы
	mu    sync.RWMutex
	token string
}

func NewHTTPClient(baseURL string, timeout time.Duration, log *slog.Logger) *httpClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &httpClient{
		client:    client,
		log:       log.With("component", "http"),
		baseURL:   baseURL,
		userAgent: "possync-client/1.0",
	}
}

// SetToken устанавливает токен аутентификации
func (h *httpClient) SetToken(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

func (h *httpClient) authToken() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("сервер недоступен: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервер вернул статус: %d", resp.StatusCode)
	}
	return nil
}

// FetchDelta запрашивает изменения коллекции. since=nil - полная выборка.
func (h *httpClient) FetchDelta(ctx context.Context, collection record.Collection, since *time.Time) (*Delta, error) {
	resource := collection.Resource()
	if resource == "" {
		return nil, fmt.Errorf("%w: %s", record.ErrUnknownCollection, collection)
	}

	path := "/sync/" + resource
	if since != nil {
		path += "?since=" + url.QueryEscape(record.FormatTime(*since))
	}

	resp, err := h.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var out deltaResponse
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	if out.Success == nil || !*out.Success {
		msg := out.Message
		if msg == "" {
			msg = out.Error
		}
		if msg == "" {
			msg = "success flag not set"
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrRemote, resource, msg)
	}

	payload := out.deltaPayload
	if out.Data != nil {
		payload = *out.Data
	}

	delta := &Delta{Updated: payload.Updated, Deleted: payload.Deleted}
	if payload.ServerTime != "" {
		ts, err := record.ParseTime(payload.ServerTime)
		if err != nil {
			return nil, fmt.Errorf("%w: bad serverTime %q", ErrRemote, payload.ServerTime)
		}
		delta.Cursor = &ts
	}
	return delta, nil
}

type pushRequest struct {
	Records []*record.Record `json:"records"`
}

type pushResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Records []*record.Record `json:"records"`
}

// PushRecords отправляет локальные изменения. Сервер возвращает записи
// с выданными _id и своим updatedAt.
func (h *httpClient) PushRecords(ctx context.Context, collection record.Collection, recs []*record.Record) ([]*record.Record, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/sync/"+collection.Resource(), pushRequest{Records: recs})
	if err != nil {
		return nil, err
	}

	var out pushResponse
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: %s", ErrRemote, out.Message)
	}
	return out.Records, nil
}

type credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login получает токен продавца.
func (h *httpClient) Login(ctx context.Context, login, password string) (string, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/sellers/login", credentials{Login: login, Password: password})
	if err != nil {
		return "", err
	}

	var out struct {
		Token  string `json:"token"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := h.parseResponse(resp, &out); err != nil {
		return "", err
	}
	if out.Status != "Ok" || out.Token == "" {
		return "", fmt.Errorf("%w: %s", ErrUnauthorized, out.Error)
	}

	h.SetToken(out.Token)
	return out.Token, nil
}

// Register регистрирует продавца.
func (h *httpClient) Register(ctx context.Context, login, password string) (string, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/sellers/register", credentials{Login: login, Password: password})
	if err != nil {
		return "", err
	}

	var out struct {
		ID     string `json:"seller_id"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := h.parseResponse(resp, &out); err != nil {
		return "", err
	}
	if out.Status != "Ok" {
		return "", fmt.Errorf("%w: %s", ErrRemote, out.Error)
	}
	return out.ID, nil
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	if token := h.authToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	return resp, nil
}

func (h *httpClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"bytes", len(body),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Detail  string `json:"detail"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil {
			for _, m := range []string{errResp.Message, errResp.Error, errResp.Detail} {
				if m != "" {
					return fmt.Errorf("%w: статус %d: %s", ErrRemote, resp.StatusCode, m)
				}
			}
		}
		return fmt.Errorf("%w: статус %d", ErrRemote, resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}
	return nil
}

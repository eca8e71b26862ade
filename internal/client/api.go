package client

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

	"github.com/chatsync/internal/model"
)

// APIError — ответ сервера не 2xx: код и текст тела.
type APIError struct {
	Status int
	Text   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Text)
}

// API — HTTP-клиент сервера chatsync с сессией token.
type API struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewAPI(baseURL, token string) *API {
	return &API{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WSURL — адрес /ws для DialWS.
func (a *API) WSURL() string {
	u := a.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func (a *API) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Text: apiErrorText(raw)}
	}
	return raw, nil
}

// apiErrorText: мутации отвечают текстом, чтения — {"error": "..."}.
func apiErrorText(raw []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}

func (a *API) getJSON(ctx context.Context, path string, v any) error {
	raw, err := a.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("api %s decode: %w", path, err)
	}
	return nil
}

func (a *API) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := a.getJSON(ctx, "/api/users/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (a *API) Friends(ctx context.Context) ([]model.Friend, error) {
	var out []model.Friend
	if err := a.getJSON(ctx, "/api/friends", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Requests — входящие заявки и снимок счётчика.
func (a *API) Requests(ctx context.Context) ([]model.IncomingFriendRequest, int64, error) {
	var out struct {
		Count    int64                         `json:"count"`
		Requests []model.IncomingFriendRequest `json:"requests"`
	}
	if err := a.getJSON(ctx, "/api/friends/requests", &out); err != nil {
		return nil, 0, err
	}
	return out.Requests, out.Count, nil
}

func (a *API) RecentChats(ctx context.Context) ([]model.ChatPreview, error) {
	var out []model.ChatPreview
	if err := a.getJSON(ctx, "/api/chats", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) History(ctx context.Context, chatID string) ([]model.Message, error) {
	var out []model.Message
	if err := a.getJSON(ctx, "/api/chats/"+url.PathEscape(chatID)+"/messages", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) AddFriend(ctx context.Context, email string) error {
	_, err := a.do(ctx, http.MethodPost, "/api/friends/add", map[string]string{"email": email})
	return err
}

func (a *API) AcceptFriend(ctx context.Context, id string) error {
	_, err := a.do(ctx, http.MethodPost, "/api/friends/accept", map[string]string{"id": id})
	return err
}

func (a *API) DenyFriend(ctx context.Context, id string) error {
	_, err := a.do(ctx, http.MethodPost, "/api/friends/deny", map[string]string{"id": id})
	return err
}

func (a *API) Send(ctx context.Context, chatID, text string) error {
	_, err := a.do(ctx, http.MethodPost, "/api/message/send", map[string]string{"text": text, "chatId": chatID})
	return err
}

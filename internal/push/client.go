package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/protocol"
)

// Client вызывает push-сервис из api. Если URL пустой — методы no-op.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewClient создаёт клиент. baseURL пустой — пуши отключены.
func NewClient(baseURL, internalSecret string) *Client {
	if baseURL == "" {
		return &Client{}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  internalSecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Enabled() bool { return c.baseURL != "" }

func (c *Client) do(ctx context.Context, method, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("X-Internal-Secret", c.secret)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("push %s %s: %d", method, path, resp.StatusCode)
	}
	return nil
}

// Subscribe сохраняет подписку для userID на push-сервисе.
func (c *Client) Subscribe(ctx context.Context, userID string, sub Subscription) error {
	if !c.Enabled() {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/api/subscribe", SubscribeRequest{UserID: userID, Subscription: sub})
}

// Unsubscribe удаляет подписку по endpoint.
func (c *Client) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	if !c.Enabled() {
		return nil
	}
	return c.do(ctx, http.MethodDelete, "/api/subscribe", UnsubscribeRequest{UserID: userID, Endpoint: endpoint})
}

// Notify отправляет пуш пользователю.
func (c *Client) Notify(ctx context.Context, userID, title, body string, data map[string]string) error {
	if !c.Enabled() {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/api/notify", NotifyRequest{UserID: userID, Title: title, Body: body, Data: data})
}

// NotifyMessage — пуш о новом сообщении: заголовок — имя отправителя, ссылка — на переписку.
func (c *Client) NotifyMessage(ctx context.Context, recipientID string, msg model.UnseenMessage) error {
	cid := protocol.ConversationID(recipientID, msg.SenderID)
	return c.Notify(ctx, recipientID, msg.SenderName, msg.Text, map[string]string{
		"chatId": cid,
		"url":    "/dashboard/chat/" + cid,
		"icon":   msg.SenderImage,
	})
}

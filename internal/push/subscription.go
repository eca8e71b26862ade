package push

// Subscription — подписка из браузера (PushManager.subscribe()).
type Subscription struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     Keys   `json:"keys"`
}

type Keys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}

// SubscribeRequest — тело POST /api/subscribe push-сервиса.
type SubscribeRequest struct {
	UserID       string       `json:"user_id" validate:"required"`
	Subscription Subscription `json:"subscription"`
}

// UnsubscribeRequest — тело DELETE /api/subscribe push-сервиса.
type UnsubscribeRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Endpoint string `json:"endpoint" validate:"required"`
}

// NotifyRequest — запрос на отправку уведомления пользователю.
type NotifyRequest struct {
	UserID string            `json:"user_id" validate:"required"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

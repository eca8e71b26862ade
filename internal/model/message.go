package model

// DefaultMaxMessageLength — лимит длины текста сообщения (в символах), если не задан в конфиге.
const DefaultMaxMessageLength = 2000

// Message неизменяемо после записи в лог чата.
type Message struct {
	ID        string `json:"id" validate:"required"`
	SenderID  string `json:"senderId" validate:"required"`
	Text      string `json:"text" validate:"required"`
	Timestamp int64  `json:"timestamp" validate:"gt=0"` // epoch millis, score в sorted set
}

// UnseenMessage — сообщение для бейджа в сайдбаре получателя: само сообщение плюс поля отправителя.
type UnseenMessage struct {
	Message
	SenderName  string `json:"senderName"`
	SenderImage string `json:"senderImg"`
}

// ChatPreview — друг и последнее сообщение переписки с ним (страница "Recent chats").
type ChatPreview struct {
	Friend      Friend   `json:"friend"`
	ChatID      string   `json:"chatId"`
	LastMessage *Message `json:"lastMessage,omitempty"`
}

package model

// User — запись пользователя в хранилище (ключ user:<id>, JSON).
type User struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
	Image string `json:"image"`
}

// Friend — публичный профиль, который получает собеседник в событии new_friend.
type Friend struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image"`
}

func (u *User) ToFriend() Friend {
	return Friend{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}
}

// IncomingFriendRequest — входящая заявка в друзья (членство senderId в user:<id>:incoming_friend_requests).
type IncomingFriendRequest struct {
	SenderID    string `json:"senderId"`
	SenderEmail string `json:"senderEmail"`
}

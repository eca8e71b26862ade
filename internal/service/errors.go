package service

import (
	"errors"
	"fmt"
)

// Kind — класс ошибки сервиса; обработчики переводят его в HTTP-статус.
type Kind int

const (
	KindUpstream Kind = iota
	KindValidation
	KindUnauthorized
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindConflict:
		return "CONFLICT"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "UPSTREAM"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает по Kind и Msg, чтобы errors.Is(err, ErrAlreadyFriends) работал и для обёрнутых копий.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

var (
	ErrUnknownRecipient = newError(KindConflict, "This person does not exist")
	ErrSelfRequest      = newError(KindConflict, "You cannot add yourself as a friend")
	ErrAlreadyRequested = newError(KindConflict, "Already sent request to add this user")
	ErrAlreadyFriends   = newError(KindConflict, "Already friends with this user")
	ErrNoSuchRequest    = newError(KindConflict, "No friend request")

	ErrUnauthorized = newError(KindUnauthorized, "Unauthorized")
	ErrNotFound     = newError(KindNotFound, "Not found")
)

// Validation — ошибка входных данных (422).
func Validation(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Err: err}
}

// Upstream — сбой хранилища или шины.
func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: err}
}

// KindOf возвращает класс ошибки; ошибки без *Error считаются Upstream.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUpstream
}

// Message — текст для ответа клиенту.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Msg
	}
	return "Internal Server Error"
}

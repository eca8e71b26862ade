package middleware

import "strings"

// MaskSessionID маскирует токен сессии в логах (полный токен не светить).
func MaskSessionID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "***" + s[len(s)-2:]
}

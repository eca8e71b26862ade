// Package logger — логирование с префиксом сервиса и асинхронной записью,
// чтобы публикации и запросы к хранилищу не ждали вывода в лог.
// Поддерживается логирование времени выполнения функций.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const asyncBufferSize = 8192

// SlowThreshold — на уровне info LogDuration пишет только вызовы дольше этого порога.
const SlowThreshold = 100 * time.Millisecond

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

var (
	prefix   atomic.Value
	logLevel atomic.Int32
	ch       chan string
	once     sync.Once
	dropped  atomic.Int64
)

func init() {
	logLevel.Store(int32(ParseLevel(os.Getenv("LOG_LEVEL"))))
}

// ParseLevel: debug|trace, info (по умолчанию), error.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel меняет уровень (например, из config.LogLevel после загрузки YAML).
func SetLevel(l Level) { logLevel.Store(int32(l)) }

func enabled(l Level) bool { return Level(logLevel.Load()) <= l }

func initWorker() {
	ch = make(chan string, asyncBufferSize)
	go func() {
		for msg := range ch {
			log.Print(msg)
		}
	}()
}

func enqueue(msg string) {
	once.Do(initWorker)
	select {
	case ch <- msg:
	default:
		// Буфер полон — не блокируем, теряем лог
		dropped.Add(1)
	}
}

// Flush ждёт, пока очередь опустеет, но не дольше timeout. Вызывается перед os.Exit.
func Flush(timeout time.Duration) {
	once.Do(initWorker)
	deadline := time.Now().Add(timeout)
	for len(ch) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

// Dropped — сколько строк потеряно из-за переполнения буфера.
func Dropped() int64 { return dropped.Load() }

// SetPrefix задаёт префикс для всех последующих логов (например "api", "push").
func SetPrefix(p string) {
	prefix.Store(p)
}

func tag() string {
	p, _ := prefix.Load().(string)
	if p == "" {
		return ""
	}
	return "[" + p + "] "
}

func Debugf(format string, v ...any) {
	if enabled(LevelDebug) {
		enqueue(tag() + "DEBUG: " + fmt.Sprintf(format, v...))
	}
}

// Info пишет в log с префиксом (асинхронно).
func Info(v ...any) {
	if enabled(LevelInfo) {
		enqueue(tag() + fmt.Sprint(v...))
	}
}

// Infof форматирует и пишет с префиксом (асинхронно).
func Infof(format string, v ...any) {
	if enabled(LevelInfo) {
		enqueue(tag() + fmt.Sprintf(format, v...))
	}
}

// Error пишет ошибку с префиксом (асинхронно). Ошибки пишутся на любом уровне.
func Error(v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprint(v...))
}

// Errorf форматирует ошибку с префиксом (асинхронно).
func Errorf(format string, v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprintf(format, v...))
}

// LogDuration логирует имя функции и время выполнения в миллисекундах (асинхронно).
// При LOG_LEVEL=info логирует только вызовы дольше SlowThreshold; при LOG_LEVEL=debug — все.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if enabled(LevelDebug) || (enabled(LevelInfo) && elapsed >= SlowThreshold) {
		enqueue(fmt.Sprintf("%sfn=%s duration_ms=%d", tag(), fn, elapsed.Milliseconds()))
	}
}

// DeferLogDuration возвращает функцию для вызова в defer: defer logger.DeferLogDuration("friend.Accept", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}

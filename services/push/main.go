// Микросервис пуш-уведомлений (Web Push): подписки в общем хранилище, отправка через VAPID.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/chatsync/internal/config"
	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/push"
	"github.com/chatsync/internal/startup"
	"github.com/chatsync/internal/storage"
	storagememory "github.com/chatsync/internal/storage/memory"
)

func main() {
	logger.SetPrefix("push")
	defer logger.Flush(time.Second)
	genVAPID := flag.Bool("gen-vapid", false, "print a new VAPID key pair and exit")
	dev := flag.Bool("dev", false, "in-memory subscription store (no Redis required)")
	flag.Parse()

	if *genVAPID {
		priv, pub, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			logger.Errorf("generate VAPID: %v", err)
			exit(1)
		}
		logger.Infof("PUSH_VAPID_PUBLIC_KEY=%s", pub)
		logger.Infof("PUSH_VAPID_PRIVATE_KEY=%s", priv)
		return
	}

	logger.Info("starting push service")
	cfg := config.Load()
	keys := loadKeys(cfg)

	var store storage.Store
	if *dev {
		store = storagememory.New()
	} else {
		cli, err := startup.ConnectStoreWithRetry(context.Background(), cfg.Store.URL, cfg.Store.Token, 60*time.Second, "push: ")
		if err != nil {
			logger.Errorf("%v", err)
			exit(1)
		}
		store = cli
		logger.Info("store connected")
	}
	defer store.Close()

	if cfg.InternalSecret == "" {
		logger.Info("INTERNAL_SECRET не задан — /api доступен только из внутренней сети")
	}
	s := push.NewServer(store, keys, cfg.PushSubscriber)

	srv := &http.Server{
		Addr:         cfg.PushAddr,
		Handler:      s.Routes(cfg.InternalSecret),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("push server listening on %s", cfg.PushAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("push server: %v", err)
			exit(1)
		}
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	logger.Info("push server stopped")
}

// loadKeys: ключи из env, иначе из VAPID_KEYS_FILE (генерируются при отсутствии). nil — отправка отключена.
func loadKeys(cfg *config.Config) *push.VAPIDKeys {
	if cfg.PushVAPIDPublicKey != "" && cfg.PushVAPIDPrivateKey != "" {
		return &push.VAPIDKeys{PublicKey: cfg.PushVAPIDPublicKey, PrivateKey: cfg.PushVAPIDPrivateKey}
	}
	keys, err := push.EnsureVAPIDKeys(cfg.VAPIDKeysFile)
	if err != nil {
		logger.Infof("VAPID: не удалось загрузить/сгенерировать ключи: %v — push-уведомления отключены (подписки сохраняются, отправка не выполняется)", err)
		return nil
	}
	return keys
}

func exit(code int) {
	logger.Flush(time.Second)
	os.Exit(code)
}

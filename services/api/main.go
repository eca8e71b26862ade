package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chatsync/internal/bus"
	busmemory "github.com/chatsync/internal/bus/memory"
	busredis "github.com/chatsync/internal/bus/redis"
	"github.com/chatsync/internal/config"
	"github.com/chatsync/internal/handler"
	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/protocol"
	"github.com/chatsync/internal/push"
	"github.com/chatsync/internal/repository"
	"github.com/chatsync/internal/service"
	"github.com/chatsync/internal/startup"
	"github.com/chatsync/internal/storage"
	storagememory "github.com/chatsync/internal/storage/memory"
	"github.com/chatsync/internal/ws"
)

func main() {
	logger.SetPrefix("api")
	defer logger.Flush(time.Second)
	dev := flag.Bool("dev", false, "in-memory store and bus, dev register endpoint (no Redis required)")
	repair := flag.String("repair-friendship", "", "complete a half friend edge \"<id>,<id>\" and exit")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	store, events, closeBackends := openBackends(cfg, *dev)
	defer closeBackends()

	channels := protocol.NewChannels(cfg.Bus.Namespace)
	userRepo := repository.NewUserRepository(store)
	sessionRepo := repository.NewSessionRepository(store)
	graph := repository.NewSocialGraph(store)
	msgLog := repository.NewMessageLog(store)

	friendSvc := service.NewFriendService(userRepo, graph, events, channels)
	chatSvc := service.NewChatService(userRepo, graph, msgLog, events, channels, cfg.MaxMessageLength)
	pushClient := push.NewClient(cfg.PushServiceURL, cfg.InternalSecret)
	if pushClient.Enabled() {
		chatSvc.SetNotifier(pushClient)
		logger.Infof("push notifications via %s", cfg.PushServiceURL)
	}

	if *repair != "" {
		runRepair(friendSvc, *repair)
		return
	}

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(events, channels, ws.Options{
		MaxConns:       cfg.MaxWSConnections,
		SendBufSize:    cfg.WSSendBufferSize,
		WriteWait:      cfg.WSWriteTimeout,
		PongWait:       cfg.WSPongTimeout,
		MaxMessageSize: cfg.WSMaxMessageSize,
	})
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		if err := hub.Run(hubCtx); err != nil {
			logger.Errorf("hub: %v", err)
		}
	}()

	rt := &handler.Router{
		Sessions:           sessionRepo,
		Friends:            handler.NewFriendHandler(friendSvc, userRepo),
		Messages:           handler.NewMessageHandler(chatSvc, userRepo),
		Users:              handler.NewUserHandler(userRepo),
		Config:             handler.NewConfigHandler(cfg, channels),
		Push:               handler.NewPushHandler(pushClient),
		WS:                 handler.NewWSHandler(hub, cfg.CORSAllowedOrigins),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerIP:     cfg.RateLimitPerIP,
		RateLimitPerUser:   cfg.RateLimitPerUser,
	}
	if *dev {
		rt.Dev = handler.NewDevHandler(userRepo, sessionRepo)
		logger.Info("dev mode: POST /api/dev/register enabled")
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      rt.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server error: %v", err)
			hubCancel()
			closeBackends()
			exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

// openBackends: -dev — всё в памяти процесса; иначе Redis для хранилища и шины (шина может быть отдельным Redis).
func openBackends(cfg *config.Config, dev bool) (storage.Store, bus.Bus, func()) {
	if dev {
		logger.Info("dev mode: in-memory store and bus")
		return storagememory.New(), busmemory.New(), func() {}
	}

	ctx := context.Background()
	storeCli, err := startup.ConnectStoreWithRetry(ctx, cfg.Store.URL, cfg.Store.Token, 60*time.Second, "api: ")
	if err != nil {
		logger.Errorf("%v", err)
		exit(1)
	}
	busCli := storeCli
	if cfg.BusURL() != cfg.Store.URL || cfg.BusToken() != cfg.Store.Token {
		busCli, err = startup.ConnectStoreWithRetry(ctx, cfg.BusURL(), cfg.BusToken(), 60*time.Second, "api bus: ")
		if err != nil {
			logger.Errorf("%v", err)
			storeCli.Close()
			exit(1)
		}
	}
	logger.Info("store and bus connected")

	var once sync.Once
	return storeCli, busredis.New(busCli.Raw()), func() {
		once.Do(func() {
			if busCli != storeCli {
				if err := busCli.Close(); err != nil {
					logger.Errorf("bus close: %v", err)
				}
			}
			if err := storeCli.Close(); err != nil {
				logger.Errorf("store close: %v", err)
			}
		})
	}
}

func runRepair(friends *service.FriendService, pair string) {
	a, b, ok := strings.Cut(pair, ",")
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if !ok || a == "" || b == "" {
		logger.Errorf("repair-friendship: expected \"<id>,<id>\", got %q", pair)
		exit(2)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	repaired, err := friends.RepairFriendship(ctx, a, b)
	if err != nil {
		logger.Errorf("repair-friendship %s %s: %v", a, b, err)
		exit(1)
	}
	if repaired {
		logger.Infof("repair-friendship: %s <-> %s completed", a, b)
	} else {
		logger.Infof("repair-friendship: %s and %s need no repair", a, b)
	}
}

func exit(code int) {
	logger.Flush(time.Second)
	os.Exit(code)
}

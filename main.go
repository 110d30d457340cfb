package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	wccache "github.com/silenceper/wechat/v2/cache"

	"wxrelay/global/config"
	"wxrelay/logger"
	"wxrelay/module/chatproxy"
	goodssrv "wxrelay/module/goods/service"
	ordersrv "wxrelay/module/order/service"
	usersrv "wxrelay/module/user/service"
	"wxrelay/module/wechat"
	"wxrelay/server"
	"wxrelay/service/mgo"
	"wxrelay/service/storage"
	storageredis "wxrelay/service/storage/redis"
	"wxrelay/tools/safe"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := mgo.Connect(ctx, mgo.Config{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDatabase,
		MaxPoolSize: 20,
	})
	if err != nil {
		logger.Fatalf("mongo connect: %v", err)
	}

	// Redis 挂了降级为单机内存：去重和 access_token 缓存都跟着降级，不拦启动
	var deduper storage.Deduper
	var tokenCache wccache.Cache
	if err := storageredis.Init(storageredis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}); err != nil {
		logger.Warnf("redis init failed, fallback to memory: %v", err)
		deduper = storage.NewMemoryDeduper()
		tokenCache = wccache.NewMemory()
	} else {
		deduper = storage.NewRedisDeduper(storageredis.Get())
		tokenCache = wccache.NewRedis(ctx, &wccache.RedisOpts{
			Host:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Database: cfg.RedisDB,
		})
		defer storageredis.Close()
	}

	userStore := usersrv.NewStore(db)
	gate := usersrv.NewGate(userStore)
	goodsStore := goodssrv.NewStore(db)
	orderStore := ordersrv.NewStore(db)

	sessions := chatproxy.NewSessionStore()
	creds := chatproxy.NewCredentialStore()
	chat := chatproxy.NewClient(cfg.ChatBaseURL, cfg.ChatModel, cfg.HTTPTimeout, sessions, creds)

	api := wechat.NewAPIClient(cfg.WxAppID, cfg.WxAppSecret, cfg.WxVerifyToken, tokenCache, cfg.HTTPTimeout)
	qrCache := wechat.NewQrTicketCache(wechat.DefaultQrCacheSize)
	dispatcher := wechat.NewDispatcher()

	router := wechat.NewRouter(api, chat, userStore, gate, qrCache, dispatcher)
	verifier := wechat.NewSignatureVerifier(cfg.WxVerifyToken)

	srv := server.New(server.Deps{
		Cfg:      cfg,
		Verifier: verifier,
		Router:   router,
		Platform: api,
		API:      api,
		QrCache:  qrCache,
		Deduper:  deduper,
		Users:    userStore,
		Gate:     gate,
		Goods:    goodsStore,
		Orders:   orderStore,
	})

	e := gin.New()
	e.Use(gin.Recovery())
	srv.Register(e)

	// 自定义菜单启动时覆盖式同步，失败不拦服务（下次重启再试）
	safe.Go("menu-sync", func() {
		if err := api.EnsureMenu(wechat.MenuItems()); err != nil {
			logger.Warnf("menu sync failed: %v", err)
		}
	})

	hs := &http.Server{Addr: srv.Addr(), Handler: e}
	safe.Go("http", func() {
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	})
	logger.Infof("wxrelay listening on %s", srv.Addr())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	// 先停收新请求，再等异步任务清空，顺序不能反：
	// 在途请求还可能往 dispatcher 里塞任务
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	dispatcher.Close()
}

package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/seojunpark/carpool-backend/internal/config"
	"github.com/seojunpark/carpool-backend/internal/database"
	"github.com/seojunpark/carpool-backend/internal/handler"
	"github.com/seojunpark/carpool-backend/internal/middleware"
	"github.com/seojunpark/carpool-backend/internal/queue"
	"github.com/seojunpark/carpool-backend/internal/realtime"
	"github.com/seojunpark/carpool-backend/internal/repository"
	"github.com/seojunpark/carpool-backend/internal/router"
	"github.com/seojunpark/carpool-backend/internal/service"
	"github.com/seojunpark/carpool-backend/internal/utils"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	cipher, err := utils.NewAccountCipher(cfg.AccountEncKey)
	if err != nil {
		log.Fatalf("account cipher: %v", err)
	}

	// Repositories and the transactional store.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	rooms := repository.NewRoomRepo(db)
	members := repository.NewMembershipRepo(db)
	messages := repository.NewMessageRepo(db)
	accounts := repository.NewAccountRepo(db)
	store := repository.NewStore(db, rooms, members)
	msgStore := repository.NewMessageStore(messages)

	// Services. The presence registry doubles as the live-delivery half of
	// the notifier; the RabbitMQ publisher is the push half.
	chatSvc := service.NewChatService(msgStore, members, users)
	registry := realtime.NewRegistry(chatSvc)
	publisher := queue.NewPublisher(cfg.AMQPURL)
	notifier := service.NewNotifier(store, registry, publisher)
	roomSvc := service.NewRoomService(store, chatSvc, notifier, users)
	settleSvc := service.NewSettlementService(store, accounts, cipher, chatSvc, notifier, users)

	// Push delivery worker. Runs for the lifetime of the process and
	// reconnects on broker failures.
	go func() {
		if err := queue.StartPushConsumer(cfg.AMQPURL); err != nil {
			log.Printf("push consumer stopped: %v", err)
		}
	}()

	e := echo.New()

	// Redis-backed rate limiting and room-browse caching. Both degrade to
	// no-ops when Redis is unreachable at startup.
	rdb := config.NewRedisClient()
	if rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	} else {
		log.Println("redis unavailable; rate limiting and browse cache disabled")
	}
	var browseCache echo.MiddlewareFunc
	if rdb != nil {
		browseCache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterRooms(e, cfg.JWTSecret,
		handler.NewRoomHandler(roomSvc),
		handler.NewSettlementHandler(settleSvc),
		handler.NewChatHandler(chatSvc, roomSvc, notifier),
		handler.NewAccountHandler(accounts, cipher),
		browseCache,
	)
	router.RegisterWS(e, cfg.JWTSecret, handler.NewWSHandler(registry, roomSvc))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

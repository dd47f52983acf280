package main

import (
	"context"
	"os"

	"officeshop/internal/config"
	"officeshop/internal/handler"
	"officeshop/internal/infra/cache"
	"officeshop/internal/infra/db"
	infraRepo "officeshop/internal/infra/repository"
	"officeshop/internal/logger"
	"officeshop/internal/server"
	"officeshop/internal/usecase"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	//.envは無くてもよい（環境変数だけで動かす場合）
	_ = godotenv.Load("../.env", ".env")

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal("db migrate failed", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("db handle failed", zap.Error(err))
	}

	checks := map[string]handler.HealthCheck{
		"database": sqlDB.PingContext,
	}

	//Redisは任意。無ければ商品キャッシュなし
	var productCache usecase.ProductCache = usecase.NopProductCache{}
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pc := cache.NewProductCache(redisClient, cfg.ProductCacheTTL)
		productCache = pc
		checks["redis"] = pc.Ping
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	reviewRepo := infraRepo.NewReviewGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	reservations, err := infraRepo.NewReservationRepository(gormDB, cfg.ReservationMode)
	if err != nil {
		log.Fatal("reservation repository", zap.Error(err))
	}
	tm := infraRepo.NewTxManagerGorm(gormDB, cfg.ReservationMode)

	//Usecase生成
	cartUC := usecase.NewCartUsecase(tm, cartRepo, cartRepo, productRepo, reservations)
	productUC := usecase.NewProductUsecase(tm, productRepo, auditRepo, productCache, log)
	reviewUC := usecase.NewReviewUsecase(tm, reviewRepo, productRepo, productCache, log)
	sweeper := usecase.NewCartSweeper(tm, cartRepo, cfg.CartTTL, log)

	//Handler生成
	e := server.New(log)
	server.RegisterRoutes(e, cfg, userRepo, server.Handlers{
		Health:       handler.NewHealthHandler(checks),
		Product:      handler.NewProductHandler(productUC, cartUC),
		Review:       handler.NewReviewHandler(reviewUC),
		Cart:         handler.NewCartHandler(cartUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
	})

	//放置カートの解放（CART_TTL>0のときだけ）
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	if sweeper.Enabled() {
		go func() {
			defer close(sweepDone)
			sweeper.Run(sweepCtx, cfg.CartSweepInterval)
		}()
	} else {
		close(sweepDone)
	}

	//Server起動
	addr := ":" + cfg.Port
	log.Info("server starting",
		zap.String("addr", addr),
		zap.String("reservation_mode", cfg.ReservationMode),
		zap.Duration("cart_ttl", cfg.CartTTL),
		zap.Bool("cache", redisClient != nil),
	)
	serverErr := server.Start(e, addr)
	go func() {
		if err, ok := <-serverErr; ok && err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	ops := map[string]gfshutdown.Operation{
		"http": e.Shutdown,
		"sweeper": func(ctx context.Context) error {
			stopSweep()
			select {
			case <-sweepDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		"database": func(context.Context) error {
			return sqlDB.Close()
		},
	}
	if redisClient != nil {
		ops["redis"] = func(context.Context) error {
			return redisClient.Close()
		}
	}

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, ops)
	code := <-wait
	log.Info("server exited", zap.Int("code", code))
	os.Exit(code)
}

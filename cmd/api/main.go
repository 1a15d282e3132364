package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shop/internal/config"
	"shop/internal/handler"
	"shop/internal/infra/db"
	"shop/internal/infra/lock"
	"shop/internal/infra/mail"
	"shop/internal/infra/mongodb"
	"shop/internal/infra/pdf"
	infraredis "shop/internal/infra/redis"
	infraRepo "shop/internal/infra/repository"
	"shop/internal/infra/storage"
	"shop/internal/repository"
	"shop/internal/server"
	"shop/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	//.envは無くてもよい（環境変数だけで動かす場合）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)

	//カートの保存先
	var cartRepo repository.CartRepository = infraRepo.NewCartGormRepository(gormDB)
	if cfg.CartStore == config.CartStoreMongo {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		mdb, err := mongodb.Connect(connectCtx, cfg.MongoURI, cfg.MongoDBName)
		cancel()
		if err != nil {
			return err
		}
		defer func() { _ = mdb.Client().Disconnect(context.Background()) }()
		cartRepo = mongodb.NewCartRepository(mdb)
		log.Info("cart store: mongodb", zap.String("db", cfg.MongoDBName))
	}

	//ロックとキャッシュ（Redisがあれば複数インスタンス対応）
	var locker repository.UserLocker = lock.NewKeyedMutex()
	var cartCache repository.CartCache
	if cfg.RedisAddr != "" {
		rdb, err := infraredis.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		locker = infraredis.NewLocker(rdb)
		cartCache = infraredis.NewCartCache(rdb)
		log.Info("redis enabled", zap.String("addr", cfg.RedisAddr))
	}

	//メール
	var mailer usecase.Mailer = mail.NewLogMailer(log)
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	}

	images, err := storage.NewLocalImageStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	//Usecase生成
	cartUC := usecase.NewCartUsecase(cartRepo, productRepo, locker, cartCache, log)
	orderUC := usecase.NewOrderUsecase(cartUC, orderRepo, log)
	invoiceUC := usecase.NewInvoiceUsecase(orderUC, pdf.NewInvoiceEncoder())
	productUC := usecase.NewProductUsecase(productRepo, auditRepo, images, cfg.ProductsPerPage, log)
	authUC := usecase.NewAuthUsecase(cfg, userRepo, cartRepo, mailer, log)

	//Handler生成
	h := server.Handlers{
		Auth:         handler.NewAuthHandler(authUC, log),
		Product:      handler.NewProductHandler(productUC, log),
		AdminProduct: handler.NewAdminProductHandler(productUC, log),
		Cart:         handler.NewCartHandler(cartUC, log),
		Order:        handler.NewOrderHandler(orderUC, invoiceUC, log),
	}

	e := server.New(cfg, log, userRepo, h)
	return server.Start(ctx, e, listenAddr(cfg.Port), log)
}

// "8080" も ":8080" も受け付ける
func listenAddr(port string) string {
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProd() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

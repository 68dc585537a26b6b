package main

import (
	"context"
	"log"
	"strings"

	"tenant-payment-service/config"
	"tenant-payment-service/controllers"
	"tenant-payment-service/database"
	"tenant-payment-service/kafka"
	"tenant-payment-service/logger"
	"tenant-payment-service/models"
	"tenant-payment-service/providers"
	"tenant-payment-service/repository"
	"tenant-payment-service/routes"
	"tenant-payment-service/services"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[TenantPaymentService] failed to load config:", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("[TenantPaymentService] failed to connect to DB:", err)
	}
	if err := db.AutoMigrate(&models.Invoice{}, &models.Payment{}); err != nil {
		log.Fatal("[TenantPaymentService] failed to migrate models:", err)
	}

	zlog := logger.New(cfg.Environment)
	defer zlog.Sync()

	redisClient := database.NewRedisClient(cfg.RedisURL)

	paymentRepo := repository.NewGormPaymentRepo(db)
	invoiceRepo := repository.NewGormInvoiceRepo(db)

	var provider providers.PaymentProvider
	switch cfg.GatewayProvider {
	case "stripe":
		provider = providers.NewStripeProvider(cfg.StripeSecretKey, cfg.PaymentRedirectBase)
	default:
		provider = providers.NewMidtransProvider(cfg.MidtransBaseURL, cfg.MidtransServerKey)
	}

	var proofStore services.ProofStore
	if cfg.ProofBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatal("[TenantPaymentService] failed to load AWS config:", err)
		}
		proofStore = services.NewS3ProofStore(s3.NewFromConfig(awsCfg), cfg.ProofBucket)
	}

	producer := kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.PaymentEventTopic)
	defer producer.Close()

	guard := services.NewPendingPaymentGuard(invoiceRepo, paymentRepo, zlog)
	submitter := services.NewManualProofSubmitter(paymentRepo, guard, proofStore, zlog)
	windows := services.NewRedirectWindowController(zlog)
	locker := services.NewRedisInvoiceLock(redisClient)

	sessions := services.NewPaymentSessionManager(
		provider,
		invoiceRepo,
		paymentRepo,
		guard,
		submitter,
		windows,
		locker,
		producer,
		zlog,
		cfg.PollInterval,
		cfg.CountdownBudget,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(logger.RequestLogger(zlog))

	pc := &controllers.PaymentController{
		Sessions:    sessions,
		PaymentRepo: paymentRepo,
		InvoiceRepo: invoiceRepo,
		ServerKey:   cfg.MidtransServerKey,
		Logger:      zlog,
	}
	routes.RegisterPaymentRoutes(r, pc, cfg.JWTSecret, cfg.GatewayProvider != "stripe")

	zlog.Info("Tenant payment service running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("[TenantPaymentService] server failed:", err)
	}
}

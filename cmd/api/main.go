package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"neighborly/internal/adapter/api"
	"neighborly/internal/adapter/api/handler"
	apimiddleware "neighborly/internal/adapter/api/middleware"
	"neighborly/internal/adapter/api/router"
	"neighborly/internal/adapter/repository"
	"neighborly/internal/adapter/repository/memory"
	domainrepo "neighborly/internal/domain/repository"
	"neighborly/internal/infrastructure/auth"
	"neighborly/internal/infrastructure/firebase"
	"neighborly/internal/infrastructure/geocoding"
	"neighborly/internal/infrastructure/kafka"
	"neighborly/internal/infrastructure/push"
	"neighborly/internal/infrastructure/ratelimit"
	"neighborly/internal/infrastructure/storage"
	"neighborly/internal/infrastructure/websocket"
	"neighborly/internal/usecase"
	"neighborly/internal/worker"
	"neighborly/pkg/config"
	"neighborly/pkg/logger"
)

type repositories struct {
	users         domainrepo.UserRepository
	requests      domainrepo.ServiceRequestRepository
	bookings      domainrepo.BookingRepository
	chats         domainrepo.ChatRepository
	notifications domainrepo.NotificationRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opt option.ClientOption
	if cfg.FirebaseCredentialsJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON))
	} else if cfg.FirebaseCredentialsPath != "" {
		if _, err := os.Stat(cfg.FirebaseCredentialsPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", cfg.FirebaseCredentialsPath)
		}
		log.Printf("Using Firebase service account from file: %s", cfg.FirebaseCredentialsPath)
		opt = option.WithCredentialsFile(cfg.FirebaseCredentialsPath)
	}
	clientOptions := []option.ClientOption{}
	if opt != nil {
		clientOptions = append(clientOptions, opt)
	}

	var firebaseApp *fbapp.App
	if cfg.StoreDriver == "firestore" || cfg.AuthMode == "firebase" {
		firebaseApp, err = fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, clientOptions...)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
	}

	var repos repositories
	switch cfg.StoreDriver {
	case "firestore":
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, clientOptions...)
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()

		repos = repositories{
			users:         repository.NewFirestoreUserRepository(firestoreClient),
			requests:      repository.NewFirestoreServiceRequestRepository(firestoreClient),
			bookings:      repository.NewFirestoreBookingRepository(firestoreClient),
			chats:         repository.NewFirestoreChatRepository(firestoreClient),
			notifications: repository.NewFirestoreNotificationRepository(firestoreClient),
		}
	case "memory":
		log.Printf("Using in-memory store; data is lost on restart")
		repos = repositories{
			users:         memory.NewUserRepository(),
			requests:      memory.NewServiceRequestRepository(),
			bookings:      memory.NewBookingRepository(),
			chats:         memory.NewChatRepository(),
			notifications: memory.NewNotificationRepository(),
		}
	default:
		log.Fatalf("Unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	var verifier apimiddleware.TokenVerifier
	switch cfg.AuthMode {
	case "firebase":
		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}
		verifier = firebase.NewFirebaseAuthClient(authClient, !cfg.IsDevelopment())
	case "jwt":
		if cfg.JWKSURL != "" {
			jwks, err := auth.NewJWKSVerifier(cfg.JWKSURL)
			if err != nil {
				log.Fatalf("Failed to load JWKS: %v", err)
			}
			defer jwks.Close()
			verifier = jwks
		} else {
			if cfg.JWTSecret == "" {
				log.Fatalf("JWT_SECRET or JWKS_URL is required when AUTH_MODE=jwt")
			}
			verifier = auth.NewHMACVerifier(cfg.JWTSecret)
		}
	default:
		log.Fatalf("Unknown AUTH_MODE %q", cfg.AuthMode)
	}

	var relay websocket.Relay
	if cfg.RedisURL != "" {
		redisClient, err := websocket.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, int(cfg.RedisDB))
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		relay = websocket.NewRedisRelay(redisClient, cfg.RedisChannel)
		log.Printf("Realtime relay enabled on %s", cfg.RedisChannel)
	}
	wsManager := websocket.NewManager(relay)
	wsManager.Start(ctx)

	var events usecase.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		events = producer
	}

	var emailSender push.EmailSender
	var mailer *push.SMTPClient
	if cfg.SMTPHost != "" {
		mailer = push.NewSMTPClient(cfg.SMTPHost, int(cfg.SMTPPort), cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		emailSender = mailer
	}
	var telegramSender push.TelegramSender
	if cfg.TelegramToken != "" {
		bot, err := push.NewTelegramBot(cfg.TelegramToken)
		if err != nil {
			log.Fatalf("Failed to initialize Telegram bot: %v", err)
		}
		telegramSender = bot
	}
	var pushNotifier usecase.PushNotifier
	if emailSender != nil || telegramSender != nil {
		pushNotifier = push.NewDispatcher(emailSender, telegramSender)
	}

	var geocoder usecase.Geocoder
	if cfg.GeocoderURL != "" {
		geocoder = geocoding.NewNominatimClient(cfg.GeocoderURL, cfg.GeocoderTimeout)
	}

	var media usecase.MediaStore
	if cfg.StorageBucket != "" {
		storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize Cloud Storage: %v", err)
		}
		defer storageClient.Close()
		media = storageClient
	}

	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	notificationUseCase := usecase.NewNotificationUseCase(repos.notifications, repos.users, wsManager, pushNotifier)
	chatUseCase := usecase.NewChatUseCase(repos.chats, notificationUseCase, wsManager, rateLimiter)
	matchingUseCase := usecase.NewMatchingUseCase(repos.users)
	requestUseCase := usecase.NewServiceRequestUseCase(
		repos.requests,
		repos.bookings,
		repos.users,
		matchingUseCase,
		chatUseCase,
		notificationUseCase,
		wsManager,
		events,
		geocoder,
		rateLimiter,
		cfg.OfferTTL,
	)
	userUseCase := usecase.NewUserUseCase(repos.users, repos.requests, notificationUseCase)
	bookingUseCase := usecase.NewBookingUseCase(repos.bookings, repos.users, media, notificationUseCase)
	sweepUseCase := usecase.NewOfferSweepUseCase(repos.requests, notificationUseCase, cfg.OfferTTL)

	wsManager.Bind(requestUseCase, chatUseCase, rateLimiter)

	if len(cfg.KafkaBrokers) > 0 && mailer != nil {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		defer consumer.Close()
		receipts := worker.NewReceiptWorker(consumer, repos.users, repos.bookings, mailer, cfg.ReceiptRetry)
		go receipts.Run(ctx, int(cfg.ReceiptWorkers))
	}

	sweepUseCase.StartSweepJob(ctx, cfg.OfferSweepInterval)

	handler.Setup(requestUseCase, chatUseCase, notificationUseCase, userUseCase, bookingUseCase)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(apimiddleware.GeneralRateLimit())
	apimiddleware.GeneralLimiter.StartCleanupRoutine()

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier, repos.users)
	wsHandler := handler.NewWebSocketHandler(wsManager, authMiddleware, cfg.AllowedOrigins)
	healthHandler := handler.NewHealthHandler(wsManager, cfg.StoreDriver)

	router.Setup(e, authMiddleware, wsHandler, healthHandler)

	go func() {
		log.Printf("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil {
			logger.Info("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

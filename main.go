package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"direct-chat/internal/cache"
	"direct-chat/internal/config"
	"direct-chat/internal/db"
	"direct-chat/internal/handlers"
	"direct-chat/internal/middleware"
	"direct-chat/internal/observability"
	"direct-chat/internal/rabbitmq"
	"direct-chat/internal/repositories"
	"direct-chat/internal/services"
	"direct-chat/internal/storage"
	"direct-chat/internal/telemetry"
	"direct-chat/internal/ws"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	var (
		chats    repositories.ChatRepository
		messages repositories.MessageRepository
		profiles repositories.ProfileDirectory
	)
	if cfg.DatabaseDSN != "" {
		database, err := db.Connect(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		defer database.Close()
		chats = repositories.NewChatRepo(database)
		messages = repositories.NewMessageRepo(database)
		profiles = repositories.NewProfileRepo(database)
		log.Printf("storage mode=postgres")
	} else {
		mem := repositories.NewMemoryStore()
		chats, messages, profiles = mem, mem, mem
		log.Printf("storage mode=memory reason=empty DB_DSN")
	}

	var profileCache *cache.ProfileCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("redis unreachable addr=%s err=%v, profile cache degrades to direct lookups", cfg.RedisAddr, err)
		}
		profileCache = cache.NewProfileCache(profiles, rdb, cfg.ProfileCacheTTL)
		profiles = profileCache
		log.Printf("profile cache enabled addr=%s ttl=%s", cfg.RedisAddr, cfg.ProfileCacheTTL)
	}

	var blobs storage.BlobStore
	if cfg.BlobEndpoint != "" {
		store, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:      cfg.BlobEndpoint,
			AccessKey:     cfg.BlobAccessKey,
			SecretKey:     cfg.BlobSecretKey,
			UseSSL:        cfg.BlobUseSSL,
			PublicBaseURL: cfg.BlobPublicBaseURL,
		})
		if err != nil {
			log.Fatalf("failed to init blob storage: %v", err)
		}
		blobs = store
		log.Printf("blob storage mode=s3 endpoint=%s", cfg.BlobEndpoint)
	} else {
		blobs = storage.NewMemoryStore(cfg.BlobPublicBaseURL)
		log.Printf("blob storage mode=memory reason=empty BLOB_ENDPOINT")
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", cfg.ServiceName, cfg.Environment)

	hub := ws.NewHub()
	if cfg.NATSURL != "" {
		relay, err := ws.NewNATSRelay(ws.NATSRelayConfig{URL: cfg.NATSURL, Name: cfg.ServiceName})
		if err != nil {
			log.Printf("nats relay disabled, websocket fan-out is local only: %v", err)
		} else if err := relay.Attach(hub); err != nil {
			log.Printf("nats relay disabled, websocket fan-out is local only: %v", err)
			relay.Close()
		} else {
			defer relay.Close()
			if profileCache != nil {
				if err := relay.OnProfileUpdated(func(userID string) {
					if err := profileCache.Invalidate(context.Background(), userID); err != nil {
						log.Printf("profile cache invalidate failed user_id=%s err=%v", userID, err)
					}
				}); err != nil {
					log.Printf("profile cache invalidation disabled, entries expire after ttl=%s: %v", cfg.ProfileCacheTTL, err)
				}
			}
		}
	}

	svc := services.NewChatService(chats, messages, profiles, blobs,
		services.WithPublisher(publisher),
		services.WithBroadcaster(hub),
		services.WithBuckets(services.Buckets{Images: cfg.BucketImages, Files: cfg.BucketFiles, Avatars: cfg.BucketAvatars}),
		services.WithMaxPageLimit(cfg.MessagesPageLimitMax),
		services.WithMaxUploadBytes(cfg.MaxUploadBytes),
	)

	chatHandler := handlers.NewChatHandler(svc, audit, cfg.MaxUploadBytes)
	chatWS := ws.NewChatWebSocketHandler(hub, chats)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestID(uuid.NewString))
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	chatHandler.Register(router.Group("", middleware.AuthMiddleware()))
	router.GET("/ws/chats/:chat_id", chatWS.Handle)
	handlers.RegisterDebugRoutes(router, audit, publisher, cfg.Environment != "production")

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		log.Fatalf("failed to listen grpc health port=%s: %v", cfg.GRPCHealthPort, err)
	}
	go func() {
		log.Printf("grpc health listening port=%s", cfg.GRPCHealthPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("grpc server stopped: %v", err)
		}
	}()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("http listening port=%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("tracer shutdown: %v", err)
	}
}

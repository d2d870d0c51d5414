package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/petvoice/chat-service/internal/blob"
	"github.com/petvoice/chat-service/internal/config"
	"github.com/petvoice/chat-service/internal/db"
	"github.com/petvoice/chat-service/internal/feed"
	"github.com/petvoice/chat-service/internal/grpcserver"
	"github.com/petvoice/chat-service/internal/handlers"
	"github.com/petvoice/chat-service/internal/logger"
	"github.com/petvoice/chat-service/internal/middleware"
	"github.com/petvoice/chat-service/internal/notify"
	"github.com/petvoice/chat-service/internal/observability"
	"github.com/petvoice/chat-service/internal/rabbitmq"
	"github.com/petvoice/chat-service/internal/readmodel"
	"github.com/petvoice/chat-service/internal/repositories"
	"github.com/petvoice/chat-service/internal/telemetry"
	"github.com/petvoice/chat-service/internal/ws"
)

const serviceName = "petvoice-chat"

func main() {
	cfg := config.Load()
	logger.Init(cfg.Environment)

	ctx := context.Background()
	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracer init failed")
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)

	auditEmitter := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)
	sink := notify.NewAMQPSink(publisher, cfg.NotifyRoutingKey)

	blobStore, err := blob.NewFSStore(cfg.BlobDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("blob store init failed")
	}

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	channelRepo := repositories.NewChannelMessageRepo(database)
	profileRepo := repositories.NewProfileRepo(database)

	bus := feed.NewBus()
	hub := ws.NewHub()
	hub.AttachFeed(bus)

	rm := readmodel.New(chatRepo, messageRepo, channelRepo, profileRepo)

	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, rm, bus, blobStore, sink, auditEmitter)
	channelHandler := handlers.NewChannelHandler(channelRepo, rm, bus)
	bulkHandler := handlers.NewBulkDeleteHandler(chatRepo, messageRepo, bus)

	chatWS := ws.NewChatWebSocketHandler(hub, chatRepo, cfg.JWTSecret)
	channelWS := ws.NewChannelWebSocketHandler(hub, cfg.JWTSecret)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/blobs", blobStore.Dir())

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.POST("/chats/start", authMiddleware, chatHandler.StartChat)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.POST("/chats/:chat_id/messages", authMiddleware, chatHandler.PostChatMessage)
	router.POST("/chats/:chat_id/messages/bulk-delete", authMiddleware, bulkHandler.BulkDelete)
	router.PATCH("/messages/:message_id", authMiddleware, chatHandler.EditMessage)
	router.DELETE("/messages/:message_id", authMiddleware, chatHandler.DeleteMessage)
	router.DELETE("/chats/:chat_id", authMiddleware, chatHandler.DeleteChat)

	router.GET("/channels/:channel_id/messages", authMiddleware, channelHandler.GetChannelMessages)
	router.POST("/channels/:channel_id/messages", authMiddleware, channelHandler.PostChannelMessage)
	router.DELETE("/channels/messages/:message_id", authMiddleware, channelHandler.DeleteChannelMessage)

	router.GET("/ws/chats/:chat_id", chatWS.Handle)
	router.GET("/ws/channels/:channel_id", channelWS.Handle)

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	go func() {
		if err := grpcserver.Serve(cfg.GRPCPort); err != nil {
			logger.Fatal().Err(err).Msg("grpc server failed")
		}
	}()

	logger.Info().Str("port", cfg.HTTPPort).Str("env", cfg.Environment).Msg("http server listening")
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

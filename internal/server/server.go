package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"wacrm/internal/config"
	"wacrm/internal/engine"
	"wacrm/internal/handler"
	"wacrm/internal/repository"
)

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	eng    *engine.Engine
	cfg    *config.Config
	logger *zap.Logger
}

func NewServer(db *sqlx.DB, eng *engine.Engine, cfg *config.Config, logger *zap.Logger) *Server {
	router := gin.Default()

	s := &Server{
		router: router,
		db:     db,
		eng:    eng,
		cfg:    cfg,
		logger: logger,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	phoneRepo := repository.NewPhoneRepository(s.db, s.logger)
	clientRepo := repository.NewClientRepository(s.db, s.logger)
	conversationRepo := repository.NewConversationRepository(s.db, s.logger)
	messageRepo := repository.NewMessageRepository(s.db, s.logger)
	mediaRepo := repository.NewMediaRepository(s.db, s.logger)

	phoneHandler := handler.NewPhoneHandler(phoneRepo, s.eng, s.logger)
	clientHandler := handler.NewClientHandler(clientRepo, s.logger)
	conversationHandler := handler.NewConversationHandler(conversationRepo, s.eng, s.cfg.Engine.ClosedListLimit, s.logger)
	messageHandler := handler.NewMessageHandler(messageRepo, conversationRepo, phoneRepo, s.eng, s.logger)
	mediaHandler := handler.NewMediaHandler(mediaRepo, s.logger)
	stateHandler := handler.NewStateHandler(s.eng)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	api := s.router.Group("/api")
	{
		api.GET("/state", stateHandler.GetState)

		api.GET("/phones", phoneHandler.GetAllPhones)
		api.POST("/phones", phoneHandler.CreatePhone)
		api.POST("/phones/select", phoneHandler.SelectPhone)
		api.GET("/phones/:id", phoneHandler.GetPhoneByID)
		api.PUT("/phones/:id", phoneHandler.UpdatePhone)
		api.DELETE("/phones/:id", phoneHandler.DeletePhone)
		api.PUT("/phones/:id/default", phoneHandler.SetDefaultPhone)

		api.GET("/conversations", conversationHandler.GetConversations)
		api.GET("/conversations/:id", conversationHandler.GetConversationByID)
		api.POST("/conversations/:id/open", conversationHandler.OpenConversation)
		api.POST("/conversations/:id/close", conversationHandler.CloseConversation)
		api.POST("/conversations/:id/reopen", conversationHandler.ReopenConversation)
		api.GET("/conversations/:id/messages", messageHandler.GetMessages)
		api.POST("/conversations/:id/messages", messageHandler.SendMessage)

		api.GET("/clients/:id", clientHandler.GetClientByID)
		api.PUT("/clients/:id", clientHandler.UpdateClient)
		api.GET("/clients/:id/messages", messageHandler.GetClientMessages)

		api.PUT("/media/:id/feedback", mediaHandler.UpdateFeedback)
	}
}

func (s *Server) Run(addr string) {
	s.logger.Info("Server starting", zap.String("addr", addr))
	if err := s.router.Run(addr); err != nil {
		s.logger.Fatal("Server failed to start", zap.Error(err))
	}
}

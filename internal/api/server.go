package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/adapters/smtp"
	"github.com/mikey/onebox/internal/core"
)

// Server exposes the HTTP API over the indexed mailbox.
type Server struct {
	index    core.IndexStore
	replies  *core.ReplyService
	sender   *smtp.Sender
	accounts []core.AccountConfig
	logger   *zap.Logger
	srv      *http.Server
}

// NewServer creates a new API server
func NewServer(index core.IndexStore, replies *core.ReplyService, sender *smtp.Sender, accounts []core.AccountConfig, listenAddress string, logger *zap.Logger) *Server {
	s := &Server{
		index:    index,
		replies:  replies,
		sender:   sender,
		accounts: accounts,
		logger:   logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/accounts", s.handleAccounts)
		apiGroup.GET("/emails", s.handleSearch)
		apiGroup.POST("/emails/:id/suggest-reply", s.handleSuggestReply)
		apiGroup.POST("/emails/:id/send-reply", s.handleSendReply)
	}

	s.srv = &http.Server{
		Addr:    listenAddress,
		Handler: router,
	}
	return s
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start begins serving in a background goroutine
func (s *Server) Start() {
	go func() {
		s.logger.Info("API server listening", zap.String("address", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type accountView struct {
	AccountID string   `json:"accountId"`
	Host      string   `json:"host"`
	User      string   `json:"user"`
	Folders   []string `json:"folders"`
}

func (s *Server) handleAccounts(c *gin.Context) {
	views := make([]accountView, 0, len(s.accounts))
	for _, account := range s.accounts {
		views = append(views, accountView{
			AccountID: account.AccountID,
			Host:      account.Host,
			User:      account.User,
			Folders:   account.Folders,
		})
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleSearch(c *gin.Context) {
	query := core.SearchQuery{
		Query:     c.Query("q"),
		AccountID: c.Query("accountId"),
		Folder:    c.Query("folder"),
	}
	if size, err := strconv.Atoi(c.Query("size")); err == nil && size > 0 {
		query.Size = size
	}
	if days, err := strconv.Atoi(c.Query("days")); err == nil && days > 0 {
		query.SinceDays = days
	}

	docs, err := s.index.Search(c.Request.Context(), query)
	if err != nil {
		// Search degrades to an empty result set rather than surfacing
		// backend outages to every client.
		s.logger.Error("Search failed", zap.Error(err))
		c.JSON(http.StatusOK, []*core.EmailDocument{})
		return
	}
	if docs == nil {
		docs = []*core.EmailDocument{}
	}
	c.JSON(http.StatusOK, docs)
}

func (s *Server) handleSuggestReply(c *gin.Context) {
	doc, err := s.index.GetEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.Error("Failed to load email", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load email"})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
		return
	}

	reply := s.replies.SuggestReply(c.Request.Context(), doc)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (s *Server) handleSendReply(c *gin.Context) {
	if s.sender == nil || !s.sender.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "smtp delivery is not configured"})
		return
	}

	doc, err := s.index.GetEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.Error("Failed to load email", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load email"})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
		return
	}

	// Request body is optional, an empty body falls back to a suggestion.
	var req struct {
		Body string `json:"body"`
	}
	_ = c.ShouldBindJSON(&req)
	body := req.Body
	if body == "" {
		body = s.replies.SuggestReply(c.Request.Context(), doc)
	}

	subject := "Re: " + doc.Subject
	if err := s.sender.Send(c.Request.Context(), doc.From, subject, body); err != nil {
		s.logger.Error("Failed to send reply", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send reply"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent", "to": doc.From})
}

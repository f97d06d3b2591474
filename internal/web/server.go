// Package web exposes the flashcards service as a JSON API.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/conorfennell/flashdeck/internal/flashcards"
)

const userKey = "user"

// Server holds the dependencies for the HTTP server.
type Server struct {
	svc        *flashcards.Service
	router     *gin.Engine
	userHeader string
}

// NewServer creates a server whose callers are identified by userHeader.
func NewServer(svc *flashcards.Service, userHeader string) *Server {
	s := &Server{
		svc:        svc,
		router:     gin.New(),
		userHeader: userHeader,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(gin.Recovery(), requestLogger())

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api", s.identify())
	{
		api.GET("/decks", s.handleListDecks)
		api.POST("/decks", s.handleCreateDeck)
		api.GET("/decks/:deckId", s.handleGetDeck)
		api.PUT("/decks/:deckId", s.handleUpdateDeck)
		api.DELETE("/decks/:deckId", s.handleDeleteDeck)

		api.GET("/decks/:deckId/cards", s.handleListCards)
		api.POST("/decks/:deckId/cards", s.handleCreateCard)
		api.GET("/decks/:deckId/due", s.handleDueCards)
		api.GET("/decks/:deckId/stats", s.handleDeckStats)

		api.POST("/cards/:cardId/review", s.handleReviewCard)
		api.DELETE("/cards/:cardId", s.handleDeleteCard)
	}
}

// identify rejects requests without the identity header set by the proxy.
func (s *Server) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(s.userHeader))
		if user == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func user(c *gin.Context) string {
	return c.GetString(userKey)
}

// fail writes err as {"error": message} with the matching status.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, flashcards.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, flashcards.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, flashcards.ErrConflict):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		msg = "Internal Server Error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
}

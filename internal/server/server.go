package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Server is the reference implementation of the remote store contract the
// sync engine talks to: bearer-token identity, fetch, batch upsert, soft
// delete.
type Server struct {
	db     *gorm.DB
	router *gin.Engine
	tokens map[string]string
}

// NewServer wires routes over an open database. tokens maps bearer tokens
// to user ids.
func NewServer(db *gorm.DB, tokens map[string]string) *Server {
	router := gin.Default()

	s := &Server{
		db:     db,
		router: router,
		tokens: tokens,
	}

	api := router.Group("/api/v1", s.requireAuth)
	{
		api.GET("/me", s.handleMe)
		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks/batch", s.handleUpsertBatch)
		api.DELETE("/tasks/:id", s.handleSoftDelete)
	}

	return s
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requireAuth(c *gin.Context) {
	raw := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	userID, ok := s.tokens[token]
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown token"})
		return
	}
	c.Set("user_id", userID)
	c.Next()
}

func currentUser(c *gin.Context) string {
	return c.GetString("user_id")
}

// OpenDB opens the server-side sqlite database and migrates the schema.
func OpenDB(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, errors.New("server: database path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("server: create db dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("server: open db: %w", err)
	}
	if err := db.AutoMigrate(&RemoteTask{}); err != nil {
		return nil, fmt.Errorf("server: migrate db: %w", err)
	}
	return db, nil
}

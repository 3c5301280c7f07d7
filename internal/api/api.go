// Package api exposes the ClipQuery contract (spec.md §6) over HTTP,
// grounded on mattdees-guitartutor's gin + gin-contrib/cors backend.
package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/leafo/patterncorpus/internal/model"
	"github.com/leafo/patterncorpus/internal/store"
)

// Server wraps the gin engine and its store dependency.
type Server struct {
	engine *gin.Engine
	db     *store.DB
}

// New builds a Server with CORS enabled and routes registered.
func New(db *store.DB) *Server {
	r := gin.Default()

	originsEnv := os.Getenv("CORS_ORIGINS")
	if originsEnv == "" {
		originsEnv = "*"
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins: strings.Split(originsEnv, ","),
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	s := &Server{engine: r, db: db}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/patterns", s.queryPatterns)
	}

	return s
}

// Run starts the HTTP server on addr.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// queryPatterns implements GET /api/patterns?role=&genre=&artist=&meter=&min_length_bars=&max_length_bars=&limit=&offset=
func (s *Server) queryPatterns(c *gin.Context) {
	q := store.ClipQuery{
		Role:   model.Role(c.Query("role")),
		Genre:  c.Query("genre"),
		Artist: c.Query("artist"),
		Meter:  c.Query("meter"),
		Limit:  atoiDefault(c.Query("limit"), 100),
		Offset: atoiDefault(c.Query("offset"), 0),
	}
	if v := c.Query("min_length_bars"); v != "" {
		q.MinLengthBars = atoiDefault(v, 0)
	}
	if v := c.Query("max_length_bars"); v != "" {
		q.MaxLengthBars = atoiDefault(v, 0)
	}

	results, err := s.db.Query(q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": results})
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

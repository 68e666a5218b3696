package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/logsift/internal/analyzer"
	"github.com/tinytelemetry/logsift/internal/discover"
	"github.com/tinytelemetry/logsift/internal/filter"
	"github.com/tinytelemetry/logsift/internal/model"
	"go.uber.org/zap"
)

// Analyzer runs one analysis over resolved file paths.
type Analyzer interface {
	Analyze(ctx context.Context, paths []string, filters filter.Filters) (model.Report, error)
}

// Server provides an HTTP API over the latest analysis report.
type Server struct {
	addr      string
	store     *ReportStore
	analyzer  Analyzer
	log       *zap.Logger
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time

	// running serializes on-demand analyses.
	running sync.Mutex
}

// NewServer creates a new HTTP API server. analyzer may be nil, in which
// case POST /api/analyze is not available.
func NewServer(addr string, store *ReportStore, a Analyzer, logger *zap.Logger) *Server {
	if addr == "" {
		addr = "127.0.0.1:3000"
	}
	if store == nil {
		store = NewReportStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:     addr,
		store:    store,
		analyzer: a,
		log:      logger.Named("http"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/report", s.handleReport)
	r.GET("/api/report/files", s.handleFiles)
	r.POST("/api/analyze", s.handleAnalyze)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()
	s.log.Info("api listening", zap.String("addr", listener.Addr().String()))

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("api shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	latest, ok := s.store.Latest()
	body := gin.H{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).String(),
		"has_report": ok,
	}
	if ok {
		body["last_run_id"] = latest.RunID
		body["analyzed_at"] = latest.AnalyzedAt
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleReport(c *gin.Context) {
	latest, ok := s.store.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report available yet"})
		return
	}
	c.JSON(http.StatusOK, latest)
}

type fileSummary struct {
	Path          string          `json:"path"`
	Format        string          `json:"format"`
	State         model.FileState `json:"state"`
	Error         string          `json:"error,omitempty"`
	TotalRequests int64           `json:"total_requests"`
	SkippedLines  int64           `json:"skipped_lines"`
}

func (s *Server) handleFiles(c *gin.Context) {
	latest, ok := s.store.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report available yet"})
		return
	}

	state := model.FileState(c.Query("state"))
	switch state {
	case "", model.FilePending, model.FileProcessing, model.FileCompleted, model.FileFailed, model.FileCancelled:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown state filter: " + string(state)})
		return
	}

	files := make([]fileSummary, 0, len(latest.Files))
	for _, f := range latest.Files {
		if state != "" && f.State != state {
			continue
		}
		files = append(files, fileSummary{
			Path:          f.Path,
			Format:        f.Format,
			State:         f.State,
			Error:         f.Error,
			TotalRequests: f.Metrics.TotalRequests,
			SkippedLines:  f.Metrics.SkippedLines,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id": latest.RunID,
		"count":  len(files),
		"files":  files,
	})
}

type analyzeRequest struct {
	Paths     []string `json:"paths" binding:"required,min=1"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	StatusMin int      `json:"status_min"`
	StatusMax int      `json:"status_max"`
	Endpoint  string   `json:"endpoint"`
	AllowIPs  string   `json:"allow_ip"`
	DenyIPs   string   `json:"deny_ip"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	if s.analyzer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "on-demand analysis is disabled"})
		return
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing paths field"})
		return
	}
	for _, p := range req.Paths {
		if p == model.StdinPath {
			c.JSON(http.StatusBadRequest, gin.H{"error": "standard input cannot be analyzed over HTTP"})
			return
		}
	}

	filters, err := filter.New(filter.Options{
		From:      req.From,
		To:        req.To,
		MinStatus: req.StatusMin,
		MaxStatus: req.StatusMax,
		Endpoint:  req.Endpoint,
		AllowIPs:  req.AllowIPs,
		DenyIPs:   req.DenyIPs,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	paths, err := discover.Files(req.Paths, discover.Options{})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(paths) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no log files found"})
		return
	}

	if !s.running.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "an analysis is already running"})
		return
	}
	defer s.running.Unlock()

	report, err := s.analyzer.Analyze(c.Request.Context(), paths, filters)
	switch {
	case err == nil:
		s.store.Set(report)
		c.JSON(http.StatusOK, report)
	case errors.Is(err, analyzer.ErrAllFilesFailed):
		s.store.Set(report)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "report": report})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis cancelled"})
	default:
		s.log.Warn("analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

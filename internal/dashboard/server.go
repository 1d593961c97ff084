package dashboard

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cryptodash/config"
	"cryptodash/internal/metrics"
	"cryptodash/internal/panel"
	"cryptodash/logger"
)

//go:embed templates/*.tmpl assets/*
var embeddedFS embed.FS

const requestIDHeader = "X-Request-ID"

// Options carries what the dashboard renders besides its own config.
type Options struct {
	AppName     string
	Attribution string
	Location    *time.Location
	Panels      []panel.Panel
	Metrics     http.Handler
}

// Server hosts the Gin-powered price dashboard. It only reads cached panel
// state; page requests never reach the price API.
type Server struct {
	cfg               config.DashboardConfig
	opts              Options
	log               *logger.Log
	panels            map[string]panel.Panel
	order             []string
	events            *eventFeed
	logStore          *logStore
	subscription      metrics.SubscriptionID
	httpServer        *http.Server
	refreshIntervalMs int
}

// NewServer constructs a dashboard server when the dashboard feature is enabled.
// When the dashboard is disabled the returned server will be nil.
func NewServer(cfg config.DashboardConfig, opts Options, log *logger.Log) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if log == nil {
		log = logger.GetLogger()
	}

	cfg.Address = normalizeAddress(cfg.Address)

	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.AppName == "" {
		opts.AppName = "cryptodash"
	}

	panels := make(map[string]panel.Panel, len(opts.Panels))
	order := make([]string, 0, len(opts.Panels))
	for _, p := range opts.Panels {
		if _, dup := panels[p.ID()]; dup {
			return nil, errors.New("duplicate panel id " + p.ID())
		}
		panels[p.ID()] = p
		order = append(order, p.ID())
	}

	events := newEventFeed(cfg.EventHistory)
	subscription := metrics.Subscribe(events.handle)

	logStore := newLogStore(cfg.LogHistory)
	log.AddHook(logStore)

	return &Server{
		cfg:               cfg,
		opts:              opts,
		log:               log,
		panels:            panels,
		order:             order,
		events:            events,
		logStore:          logStore,
		subscription:      subscription,
		refreshIntervalMs: int(cfg.RefreshInterval / time.Millisecond),
	}, nil
}

// Run starts the dashboard HTTP server and blocks until the provided context is
// cancelled or the underlying HTTP server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}

	defer s.cleanup()

	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithComponent("dashboard").WithField("address", s.cfg.Address).Info("dashboard listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

func (s *Server) cleanup() {
	metrics.Unsubscribe(s.subscription)
	if s.logStore != nil {
		s.logStore.close()
	}
}

// Address reports the network address the dashboard server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	tmpl := template.Must(template.New("dashboard").ParseFS(embeddedFS, "templates/*.tmpl"))
	router.SetHTMLTemplate(tmpl)

	if assetsFS, err := fsSub("assets"); err == nil {
		router.StaticFS("/assets", http.FS(assetsFS))
	}

	router.GET("/", func(c *gin.Context) {
		pages := make([]panelPage, 0, len(s.order))
		for _, id := range s.order {
			pages = append(pages, s.page(s.panels[id]))
		}
		c.HTML(http.StatusOK, "index.tmpl", gin.H{
			"AppName":           s.opts.AppName,
			"Attribution":       s.opts.Attribution,
			"RefreshIntervalMs": s.refreshIntervalMs,
			"Panels":            pages,
		})
	})

	router.GET("/panels/:id", func(c *gin.Context) {
		p, ok := s.panels[c.Param("id")]
		if !ok {
			c.String(http.StatusNotFound, "unknown panel")
			return
		}
		c.HTML(http.StatusOK, "panel", s.page(p))
	})

	router.GET("/api/panels", func(c *gin.Context) {
		views := make([]panel.View, 0, len(s.order))
		for _, id := range s.order {
			views = append(views, s.panels[id].View())
		}
		c.JSON(http.StatusOK, gin.H{"panels": views})
	})

	router.GET("/api/panels/:id", func(c *gin.Context) {
		p, ok := s.panels[c.Param("id")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown panel"})
			return
		}
		c.JSON(http.StatusOK, p.View())
	})

	router.GET("/api/events", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"events": s.events.snapshot()})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"logs": s.logStore.snapshot()})
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "panels": len(s.order)})
	})

	if s.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}

	return router, nil
}

// requestLogger tags each request with an id and logs its duration.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		entry := s.log.WithComponent("dashboard").WithField("request_id", id)
		logger.LogPerformanceEntry(entry, "dashboard", "http_request", time.Since(start), logger.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		})
	}
}

func fsSub(path string) (fs.FS, error) {
	sub, err := fs.Sub(embeddedFS, path)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}

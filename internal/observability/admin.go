package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// ClientStatus is the DDP client view reported by /health and /ready.
type ClientStatus struct {
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	Session   string `json:"session,omitempty"`
}

// StatusFunc snapshots client status per request.
type StatusFunc func() ClientStatus

// NewAdminRouter serves /health, /ready and /metrics for one process.
// Browser origins listed in corsOrigins may GET the status routes.
func NewAdminRouter(node string, corsOrigins []string, status StatusFunc) *gin.Engine {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	started := time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.With().Str("component", "admin").Logger()))
	r.Use(RequestMetricsMiddleware(node))
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: corsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(started).String(),
			"component": node,
			"client":    status(),
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		st := status()
		code := http.StatusOK
		if !st.Connected {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready":  st.Connected,
			"client": st,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// ServeAdmin runs handler on addr until ctx ends.
func ServeAdmin(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("admin listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

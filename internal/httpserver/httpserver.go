// Package httpserver exposes registered frames and sandboxed query
// execution over HTTP.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"

	"github.com/akhildatla/tabular/pkg/table"
)

type Config struct {
	QueryTimeout time.Duration
	MaxSteps     int64
	// MaxRows caps the rows returned by a query regardless of its limit.
	MaxRows int
	// AllowedPaths are the files queries may load.
	AllowedPaths []string
	// ShutdownTimeout bounds graceful shutdown. Default 10s.
	ShutdownTimeout time.Duration
}

type HTTPServer struct {
	Echo   *echo.Echo
	cfg    Config
	frames map[string]*table.Table
	logger zerolog.Logger
}

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// New builds the server. frames are shared read-only by every request.
func New(cfg Config, frames map[string]*table.Table, logger zerolog.Logger) *HTTPServer {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 1000
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if frames == nil {
		frames = map[string]*table.Table{}
	}

	s := &HTTPServer{
		Echo:   echo.New(),
		cfg:    cfg,
		frames: frames,
		logger: logger,
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.JSONSerializer = &JSONSerializer{}
	s.Echo.Validator = &CustomValidator{validator: validator.New()}

	s.Echo.Use(s.CreateReqContext)
	s.Echo.Use(LoggerMiddleware)
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.CORS())

	// technical - no auth
	s.Echo.GET("/hc", s.HealthCheck)

	s.Echo.GET("/frames", ccHandler(s.FramesHandler))
	s.Echo.POST("/query", ccHandler(s.QueryHandler))

	return s
}

// Serve runs an h2c server on ln until ctx is done, then shuts down
// gracefully.
func (s *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	s.Echo.Listener = ln
	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Msg("starting h2c server on " + ln.Addr().String())
		errc <- s.Echo.StartH2CServer("", &http2.Server{})
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *HTTPServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func ValidateRequest(c echo.Context, s interface{}) error {
	if err := c.Bind(s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(s); err != nil {
		return err
	}
	return nil
}

func (*HTTPServer) HealthCheck(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		stop := time.Since(start)
		logger := zerolog.Ctx(c.Request().Context())
		req := c.Request()
		res := c.Response()

		p := req.URL.Path
		if p == "" {
			p = "/"
		}

		cl := req.Header.Get(echo.HeaderContentLength)
		if cl == "" {
			cl = "0"
		}
		logger.Debug().Str("method", req.Method).Str("remote_ip", c.RealIP()).Str("req_uri", req.RequestURI).Str("handler_path", c.Path()).Str("path", p).Int("status", res.Status).Int64("latency_ns", int64(stop)).Str("protocol", req.Proto).Str("bytes_in", cl).Int64("bytes_out", res.Size).Msg("req received")
		return nil
	}
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/df07/go-wgpu-pathtracer/pkg/config"
	"github.com/df07/go-wgpu-pathtracer/pkg/imageio"
	"github.com/df07/go-wgpu-pathtracer/pkg/log"
	"github.com/df07/go-wgpu-pathtracer/pkg/renderer"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

var logger = log.New("server")

// errorBackoff is how long the frame loop waits after a failed frame
const errorBackoff = 500 * time.Millisecond

// Options configures the control server
type Options struct {
	ScenePath    string        // scene file or built-in ID reloaded by /api/reload-scene
	SettingsPath string        // settings file reloaded by /api/reload-settings
	Output       string        // image path written by /api/save
	ScenesDir    string        // directory listed by /api/scenes
	Seed         int64         // seed for randomised built-in scenes
	FrameDelay   time.Duration // pause between frames, zero renders flat out
	Console      *Console      // optional captured log output
}

// Server exposes a renderer over HTTP while a background loop keeps
// accumulating frames. Every renderer call is serialised by mu.
type Server struct {
	mu        sync.Mutex
	renderer  *renderer.Renderer
	lastError error
	saves     int

	opts Options
	echo *echo.Echo

	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewServer creates a server for an initialised renderer
func NewServer(r *renderer.Renderer, opts Options) *Server {
	if opts.ScenesDir == "" {
		opts.ScenesDir = "scenes"
	}

	s := &Server{
		renderer: r,
		opts:     opts,
		echo:     echo.New(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(requestLogger(), corsMiddleware())

	api := s.echo.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)
	api.GET("/scenes", s.handleScenes)
	api.GET("/console", s.handleConsole)
	api.GET("/events", s.handleEvents)
	api.GET("/preview", s.handlePreview)
	api.GET("/inspect", s.handleInspect)
	api.POST("/reload-scene", s.handleReloadScene)
	api.POST("/reload-settings", s.handleReloadSettings)
	api.POST("/camera", s.handleCamera)
	api.POST("/resize", s.handleResize)
	api.POST("/save", s.handleSave)
	return s
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start runs the frame loop and serves HTTP on addr until Shutdown
func (s *Server) Start(addr string) error {
	s.StartFrameLoop()
	logger.Noticef("Control server listening on http://%s", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown stops the frame loop and the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.StopFrameLoop()
	return s.echo.Shutdown(ctx)
}

// StartFrameLoop starts rendering frames in the background
func (s *Server) StartFrameLoop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.frameLoop(s.stop, s.done)
}

// StopFrameLoop stops the background loop and waits for it to exit
func (s *Server) StopFrameLoop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()
	<-done
}

func (s *Server) frameLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		wait := s.opts.FrameDelay
		if err := s.RenderFrame(); err != nil {
			logger.Errorf("Frame failed: %v", err)
			wait = errorBackoff
		}
		if wait > 0 {
			select {
			case <-stop:
				return
			case <-time.After(wait):
			}
		}
	}
}

// RenderFrame renders one frame under the server lock
func (s *Server) RenderFrame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.renderer.RenderFrame()
	s.lastError = err
	return err
}

// Status is the JSON body of /api/status
type Status struct {
	Frames           int32                `json:"frames"`
	Samples          int64                `json:"samples"`
	Dirty            bool                 `json:"dirty"`
	Width            uint32               `json:"width"`
	Height           uint32               `json:"height"`
	Clears           int                  `json:"clears"`
	ElapsedMs        int64                `json:"elapsedMs"`
	FramesPerSecond  float64              `json:"framesPerSecond"`
	SamplesPerSecond float64              `json:"samplesPerSecond"`
	Spheres          int                  `json:"spheres"`
	Nodes            int                  `json:"nodes"`
	Saves            int                  `json:"saves"`
	Camera           scene.CameraSettings `json:"camera"`
	Settings         config.Settings      `json:"settings"`
	LastError        string               `json:"lastError,omitempty"`
}

func (s *Server) status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.renderer.Stats()
	status := Status{
		Frames:           stats.Frames,
		Samples:          stats.TotalSamples,
		Dirty:            stats.Dirty,
		Width:            stats.Width,
		Height:           stats.Height,
		Clears:           stats.Clears,
		ElapsedMs:        stats.Elapsed.Milliseconds(),
		FramesPerSecond:  stats.FramesPerSecond(),
		SamplesPerSecond: stats.SamplesPerSecond(),
		Spheres:          len(s.renderer.Scene().Spheres),
		Nodes:            len(s.renderer.Buffers().Nodes),
		Saves:            s.saves,
		Camera:           s.renderer.Camera(),
		Settings:         s.renderer.Settings(),
	}
	if s.lastError != nil {
		status.LastError = s.lastError.Error()
	}
	return status
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.status())
}

func (s *Server) handleScenes(c echo.Context) error {
	scenes, err := scene.ListAllScenes(s.opts.ScenesDir)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, scenes)
}

func (s *Server) handleConsole(c echo.Context) error {
	if s.opts.Console == nil {
		return c.JSON(http.StatusOK, []ConsoleMessage{})
	}
	return c.JSON(http.StatusOK, s.opts.Console.Messages())
}

func (s *Server) handleReloadScene(c echo.Context) error {
	if s.opts.ScenePath == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "no scene file configured")
	}
	sc, err := scene.Open(s.opts.ScenePath, s.opts.Seed)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	err = s.renderer.ReloadScene(sc)
	s.mu.Unlock()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	logger.Noticef("Reloaded scene %s (%d spheres)", s.opts.ScenePath, len(sc.Spheres))
	return c.JSON(http.StatusOK, s.status())
}

func (s *Server) handleReloadSettings(c echo.Context) error {
	if s.opts.SettingsPath == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "no settings file configured")
	}
	settings, err := config.LoadSettings(s.opts.SettingsPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	err = s.renderer.ReloadSettings(settings)
	s.mu.Unlock()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s.status())
}

func (s *Server) handleCamera(c echo.Context) error {
	var camera scene.CameraSettings
	if err := c.Bind(&camera); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid camera: "+err.Error())
	}
	if camera.VFov <= 0 || camera.VFov >= 180 {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("vfov must be in (0, 180), got %v", camera.VFov))
	}

	s.mu.Lock()
	s.renderer.SetCamera(camera)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, s.status())
}

// ResizeRequest is the JSON body of /api/resize
type ResizeRequest struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// maxDimension bounds resize requests
const maxDimension = 8192

func (s *Server) handleResize(c echo.Context) error {
	var req ResizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid size: "+err.Error())
	}
	if req.Width == 0 || req.Height == 0 || req.Width > maxDimension || req.Height > maxDimension {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("width and height must be between 1 and %d, got %dx%d", maxDimension, req.Width, req.Height))
	}

	s.mu.Lock()
	err := s.renderer.Resize(req.Width, req.Height)
	s.mu.Unlock()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s.status())
}

// startSave issues the copy under the lock; callers wait on the handle without it
func (s *Server) startSave() (*renderer.SaveHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderer.StartSave()
}

func saveError(err error) error {
	if errors.Is(err, renderer.ErrNoSamples) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// savePath resolves the optional ?name= override to a file next to the
// configured output. Names that leave that directory are rejected.
func (s *Server) savePath(name string) (string, error) {
	if s.opts.Output == "" {
		return "", errors.New("no output path configured")
	}
	if name == "" {
		return s.opts.Output, nil
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("save name %q must be a relative path inside the output directory", name)
	}
	path := filepath.Join(filepath.Dir(s.opts.Output), name)
	if !imageio.Supported(path) {
		return "", fmt.Errorf("unsupported image format %q", filepath.Ext(name))
	}
	return path, nil
}

func (s *Server) handleSave(c echo.Context) error {
	path, err := s.savePath(c.QueryParam("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	handle, err := s.startSave()
	if err != nil {
		return saveError(err)
	}
	if err := handle.Finish(handle.TotalSamples(), path); err != nil {
		return saveError(err)
	}

	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"path":    path,
		"samples": handle.TotalSamples(),
	})
}

// requestLogger logs every request at debug level
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debugf("%s %s %d (%s)", v.Method, v.URIPath, v.Status, v.Latency.Round(time.Microsecond))
			return nil
		},
	})
}

func corsMiddleware() echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
	})
}

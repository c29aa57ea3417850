package web

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"thirdcoast.systems/thumbwatch/cmd/web/handlers/api/fileserver"
	"thirdcoast.systems/thumbwatch/cmd/web/handlers/api/item_api"
	"thirdcoast.systems/thumbwatch/cmd/web/handlers/common"
)

// Deps are the collaborators the HTTP boundary needs.
type Deps struct {
	Items     item_api.ItemReader
	Submitter item_api.Submitter
	Assets    fileserver.AssetReader
}

type Webserver struct {
	*echo.Echo
	deps Deps
}

func NewWebserver(deps Deps) *Webserver {
	e := echo.New()
	e.Validator = common.NewRequestValidator()

	webserver := &Webserver{
		Echo: e,
		deps: deps,
	}

	webserver.setupMiddleware()
	webserver.registerRoutes()

	return webserver
}

func (s *Webserver) setupMiddleware() {
	s.HideBanner = true
	s.HidePort = true
	s.Use(middleware.BodyLimit("64K"))
	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		// JPEGs don't compress and ETags must match the stored bytes.
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/assets/")
		},
	}))
	s.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/healthz"
		},
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			slog.Info("request", fields...)
			return nil
		},
	}))
}

// markdownCORS lets any origin (browser extensions, bookmarklets) submit URLs.
var markdownCORS = middleware.CORSWithConfig(middleware.CORSConfig{
	AllowOrigins: []string{"*"},
	AllowMethods: []string{http.MethodPost, http.MethodOptions},
	AllowHeaders: []string{echo.HeaderContentType},
})

func (s *Webserver) registerRoutes() {
	apiGroup := s.Group("/api")
	apiGroup.POST("/markdown", item_api.HandleMarkdown(s.deps.Submitter), markdownCORS)
	apiGroup.OPTIONS("/markdown", item_api.HandlePreflight(), markdownCORS)
	apiGroup.GET("/items", item_api.HandleIndex(s.deps.Items))
	apiGroup.GET("/items/:id", item_api.HandleShow(s.deps.Items))

	s.GET("/assets/:key", fileserver.HandleAsset(s.deps.Assets))

	s.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

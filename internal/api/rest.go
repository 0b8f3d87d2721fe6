package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rovercam/rovercam/pkg/logger"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr    string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8000"`
		EnableCORS  bool   `yaml:"enable_cors" env:"API_ENABLE_CORS" env-default:"true"`
		MaxUploadMB int    `yaml:"max_upload_mb" env:"API_MAX_UPLOAD_MB" env-default:"200" validate:"gt=0"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// The RestGateway is a thin wrapper around the Echo HTTP router. Its sole
	// responsibility is to create the routes the service exposes and apply
	// the cross-cutting middleware (logging, recovery, CORS, upload cap).
	RestGateway struct {
		config            *RestConfig
		ec                *echo.Echo
		videoController   controller
		controlController controller
	}

	requestValidator struct {
		validate *validator.Validate
	}
)

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}

// NewRestGateway constructs the Echo router and populates it with the
// routes defined by the video and control controllers.
func NewRestGateway(config *RestConfig, videoController controller, controlController controller) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true
	ec.Validator = &requestValidator{validate: validator.New()}

	gateway := &RestGateway{
		config:            config,
		ec:                ec,
		videoController:   videoController,
		controlController: controlController,
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Use(middleware.BodyLimit(fmt.Sprintf("%dM", config.MaxUploadMB)))
	if config.EnableCORS {
		ec.Use(middleware.CORS())
	}

	api := ec.Group("/api")
	gateway.videoController.SetRoutes(api)
	gateway.controlController.SetRoutes(api)

	return gateway
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

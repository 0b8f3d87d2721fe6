package controls

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rovercam/rovercam/internal/control"
	"github.com/rovercam/rovercam/pkg/logger"
)

var log = logger.Get("ControlAPI")

type ControlController struct {
	publisher control.Publisher
}

func New(publisher control.Publisher) *ControlController {
	return &ControlController{publisher: publisher}
}

func (controller *ControlController) SetRoutes(eg *echo.Group) {
	eg.GET("/direction/:direction", controller.direction)
	eg.POST("/record", controller.command(control.CommandRecord))
	eg.POST("/stop-record", controller.command(control.CommandStopRecord))
	eg.POST("/track", controller.command(control.CommandTrack))
	eg.POST("/stop-track", controller.command(control.CommandStopTrack))
}

// direction relays a raw driving instruction (e.g. LEFT, RIGHT, FORWARD)
// to the rover. The message content is opaque to this service.
func (controller *ControlController) direction(ec echo.Context) error {
	return controller.publish(ec, ec.Param("direction"))
}

func (controller *ControlController) command(message string) echo.HandlerFunc {
	return func(ec echo.Context) error {
		return controller.publish(ec, message)
	}
}

// publish is fire-and-forget: the rover control channel offers no
// delivery guarantee, so a failed publish is logged and the client still
// receives a success response.
func (controller *ControlController) publish(ec echo.Context, message string) error {
	if err := controller.publisher.Publish(ec.Request().Context(), message); err != nil {
		log.Emit(logger.WARNING, "Failed to publish rover command %q: %s\n", message, err.Error())
	}

	return ec.NoContent(http.StatusNoContent)
}

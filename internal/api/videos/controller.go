package videos

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rovercam/rovercam/internal/blob"
	"github.com/rovercam/rovercam/internal/media"
	"github.com/rovercam/rovercam/internal/stream"
	"github.com/rovercam/rovercam/pkg/logger"
)

var log = logger.Get("VideoAPI")

type (
	// Store is the catalog surface this controller requires; the concrete
	// implementation binds the media store to a database connection.
	Store interface {
		CreateVideo(slug string, origName string, mime string, sizeBytes int64) (*media.Video, error)
		GetVideo(slug string) (*media.Video, error)
		ListVideos() ([]*media.Video, error)
		SetVideoTitle(slug string, title string) (*media.Video, error)
		DeleteVideo(slug string) error
	}

	Blobs interface {
		Put(slug string, ext string, r io.Reader) (int64, error)
		Delete(slug string, ext string) error
	}

	Streamer interface {
		Serve(video *media.Video, rangeHeader string) (*stream.Response, error)
	}

	VideoController struct {
		store    Store
		blobs    Blobs
		streamer Streamer
	}

	updateTitleRequest struct {
		Title string `json:"title" validate:"required"`
	}
)

func New(store Store, blobs Blobs, streamer Streamer) *VideoController {
	return &VideoController{store: store, blobs: blobs, streamer: streamer}
}

func (controller *VideoController) SetRoutes(eg *echo.Group) {
	eg.POST("/upload", controller.upload)
	eg.GET("/videos", controller.list)
	eg.GET("/video/:slug/stream", controller.stream)
	eg.GET("/video/:slug/download", controller.download)
	eg.PATCH("/video/:slug/title", controller.setTitle)
	eg.DELETE("/video/:slug", controller.delete)
}

// upload accepts a multipart form with a single 'file' field. The blob is
// written to disk first; only once the content is durable is the catalog
// record created, so a storage failure can never leave a visible record
// pointing at a missing blob. The reverse (a record-insert failure after a
// successful blob write) leaves an invisible orphaned blob, which is
// reclaimed later by the sweeper.
func (controller *VideoController) upload(ec echo.Context) error {
	fileHeader, err := ec.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no file part")
	}
	if fileHeader.Filename == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty filename")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to open file part: %v", err))
	}
	defer src.Close()

	slug := media.NewSlug()
	ext := blob.SanitizeExtension(media.ExtensionOf(fileHeader.Filename))

	size, err := controller.blobs.Put(slug, ext, src)
	if err != nil {
		log.Emit(logger.ERROR, "Failed to store uploaded blob: %s\n", err.Error())
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store uploaded content")
	}

	video, err := controller.store.CreateVideo(slug, fileHeader.Filename, detectMime(fileHeader), size)
	if err != nil {
		log.Emit(logger.ERROR, "Failed to create video record for blob %s: %s\n", slug, err.Error())
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create video record")
	}

	return ec.JSON(http.StatusCreated, newDto(video))
}

func (controller *VideoController) list(ec echo.Context) error {
	videos, err := controller.store.ListVideos()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ec.JSON(http.StatusOK, newDtos(videos))
}

// stream serves the clip's content in full, or from a client supplied
// offset through to end of file when a bytes range header is present.
func (controller *VideoController) stream(ec echo.Context) error {
	video, err := controller.store.GetVideo(ec.Param("slug"))
	if err != nil {
		return mapStoreError(err)
	}

	response, err := controller.streamer.Serve(video, ec.Request().Header.Get("Range"))
	if err != nil {
		var unsatisfiable *stream.UnsatisfiableRangeError
		if errors.As(err, &unsatisfiable) {
			ec.Response().Header().Set("Content-Range", unsatisfiable.ContentRange())
			return echo.NewHTTPError(http.StatusRequestedRangeNotSatisfiable, err.Error())
		}
		if errors.Is(err, blob.ErrNotFound) {
			return echo.ErrNotFound
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if response.ContentRange != "" {
		ec.Response().Header().Set("Content-Range", response.ContentRange)
	}
	ec.Response().Header().Set("Accept-Ranges", response.AcceptRanges)

	return ec.Blob(response.Status, response.ContentType, response.Body)
}

func (controller *VideoController) download(ec echo.Context) error {
	video, err := controller.store.GetVideo(ec.Param("slug"))
	if err != nil {
		return mapStoreError(err)
	}

	// Full-content serve, framed as an attachment under the original name.
	response, err := controller.streamer.Serve(video, "")
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return echo.ErrNotFound
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ec.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", video.OrigName))
	return ec.Blob(http.StatusOK, response.ContentType, response.Body)
}

func (controller *VideoController) setTitle(ec echo.Context) error {
	var request updateTitleRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := ec.Validate(&request); err != nil {
		return err
	}

	video, err := controller.store.SetVideoTitle(ec.Param("slug"), request.Title)
	if err != nil {
		return mapStoreError(err)
	}

	return ec.JSON(http.StatusOK, newDto(video))
}

// delete removes the blob first (best-effort; an already-absent blob is
// fine) and then the record, so a failure part-way can only ever leave an
// orphaned blob, never a visible record without content.
func (controller *VideoController) delete(ec echo.Context) error {
	video, err := controller.store.GetVideo(ec.Param("slug"))
	if err != nil {
		return mapStoreError(err)
	}

	if err := controller.blobs.Delete(video.Slug, video.Extension()); err != nil {
		log.Emit(logger.WARNING, "Failed to delete blob for video %s: %s\n", video.Slug, err.Error())
	}

	if err := controller.store.DeleteVideo(video.Slug); err != nil {
		return mapStoreError(err)
	}

	return ec.NoContent(http.StatusNoContent)
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, media.ErrVideoNotFound):
		return echo.ErrNotFound
	case errors.Is(err, media.ErrBlankTitle):
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// Package stream implements the byte-range serving logic used when a clip
// is played back. It understands the single open-ended range form that
// video players emit when seeking ('bytes=<start>-'); multi-part ranges
// and explicit range ends are deliberately unsupported, and an explicit
// end is ignored with the span served through to end of file.
package stream

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rovercam/rovercam/internal/media"
)

const rangeUnitPrefix = "bytes="

type (
	// Blobs is the view of the blob store the streamer requires.
	Blobs interface {
		SizeOf(slug string, ext string) (int64, error)
		ReadRange(slug string, ext string, start int64, end int64) ([]byte, error)
	}

	// Response is a fully framed full-content or partial-content reply,
	// ready to be written to the transport by the caller.
	Response struct {
		Status       int
		ContentType  string
		ContentRange string
		AcceptRanges string
		Body         []byte
	}

	// UnsatisfiableRangeError reports a range whose start lies at or
	// beyond the blob's current size. It carries the size so callers can
	// frame the 'Content-Range: bytes */<size>' response the protocol
	// requires alongside a 416 status.
	UnsatisfiableRangeError struct {
		Size int64
	}

	Streamer struct {
		blobs Blobs
	}
)

func (err *UnsatisfiableRangeError) Error() string {
	return fmt.Sprintf("requested range is not satisfiable against blob of size %d", err.Size)
}

// ContentRange returns the header value a 416 response must carry.
func (err *UnsatisfiableRangeError) ContentRange() string {
	return fmt.Sprintf("bytes */%d", err.Size)
}

func New(blobs Blobs) *Streamer {
	return &Streamer{blobs: blobs}
}

// Serve resolves the provided video against the blob store and frames
// either a full-content or partial-content response depending on the
// client supplied Range header (which may be empty).
//
// A Range header using a unit other than bytes is ignored and the full
// content served. A bytes range whose start is unparseable, negative, or
// at/beyond the blob size yields an UnsatisfiableRangeError. A missing
// blob yields blob.ErrNotFound via the store.
func (streamer *Streamer) Serve(video *media.Video, rangeHeader string) (*Response, error) {
	slug, ext := video.Slug, video.Extension()

	size, err := streamer.blobs.SizeOf(slug, ext)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(rangeHeader, rangeUnitPrefix) {
		return streamer.serveFull(video, size)
	}

	start, ok := parseRangeStart(rangeHeader)
	if !ok || start >= size {
		return nil, &UnsatisfiableRangeError{Size: size}
	}

	body, err := streamer.blobs.ReadRange(slug, ext, start, -1)
	if err != nil {
		return nil, err
	}

	return &Response{
		Status:       http.StatusPartialContent,
		ContentType:  video.Mime,
		ContentRange: fmt.Sprintf("bytes %d-%d/%d", start, size-1, size),
		AcceptRanges: "bytes",
		Body:         body,
	}, nil
}

func (streamer *Streamer) serveFull(video *media.Video, size int64) (*Response, error) {
	body := []byte{}
	if size > 0 {
		var err error
		body, err = streamer.blobs.ReadRange(video.Slug, video.Extension(), 0, -1)
		if err != nil {
			return nil, err
		}
	}

	return &Response{
		Status:       http.StatusOK,
		ContentType:  video.Mime,
		AcceptRanges: "bytes",
		Body:         body,
	}, nil
}

// parseRangeStart extracts the integer between 'bytes=' and the first '-'.
// Any explicit end value after the dash is ignored.
func parseRangeStart(rangeHeader string) (int64, bool) {
	spec := strings.TrimPrefix(rangeHeader, rangeUnitPrefix)
	startRaw, _, _ := strings.Cut(spec, "-")

	start, err := strconv.ParseInt(strings.TrimSpace(startRaw), 10, 64)
	if err != nil || start < 0 {
		return 0, false
	}

	return start, true
}

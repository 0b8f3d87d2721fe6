package stream_test

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/gommon/random"
	"github.com/rovercam/rovercam/internal/blob"
	"github.com/rovercam/rovercam/internal/media"
	"github.com/rovercam/rovercam/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storedVideo writes the provided content into a fresh blob store and
// returns a catalog record pointing at it alongside a streamer over
// that store.
func storedVideo(t *testing.T, content []byte) (*stream.Streamer, *media.Video) {
	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)

	video := &media.Video{
		Slug:      strings.ToLower(random.String(32, random.Alphanumeric)),
		OrigName:  "clip.mp4",
		Mime:      "video/mp4",
		SizeBytes: int64(len(content)),
	}

	_, err = blobs.Put(video.Slug, video.Extension(), bytes.NewReader(content))
	require.NoError(t, err)

	return stream.New(blobs), video
}

func Test_Serve_FullContentWithoutRangeHeader(t *testing.T) {
	content := []byte("the full ten")
	streamer, video := storedVideo(t, content)

	response, err := streamer.Serve(video, "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.Status)
	assert.Equal(t, "video/mp4", response.ContentType)
	assert.Empty(t, response.ContentRange)
	assert.Equal(t, "bytes", response.AcceptRanges)
	assert.Equal(t, content, response.Body)
}

func Test_Serve_OpenEndedRanges(t *testing.T) {
	content := []byte("0123456789")
	streamer, video := storedVideo(t, content)

	tests := []struct {
		summary      string
		rangeHeader  string
		expectedBody string
	}{
		{"range from zero equals full content", "bytes=0-", "0123456789"},
		{"range from offset", "bytes=4-", "456789"},
		{"range of final byte", "bytes=9-", "9"},
		{"explicit end is ignored and span served to EOF", "bytes=2-5", "23456789"},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			response, err := streamer.Serve(video, tt.rangeHeader)
			require.NoError(t, err)

			start := int64(10 - len(tt.expectedBody))
			assert.Equal(t, http.StatusPartialContent, response.Status)
			assert.Equal(t, fmt.Sprintf("bytes %d-9/10", start), response.ContentRange)
			assert.Equal(t, "bytes", response.AcceptRanges)
			assert.Equal(t, tt.expectedBody, string(response.Body))
		})
	}
}

func Test_Serve_FirstByteOfSpanMatchesOffset(t *testing.T) {
	content := []byte("abcdefghij")
	streamer, video := storedVideo(t, content)

	for offset := 0; offset < len(content); offset++ {
		response, err := streamer.Serve(video, fmt.Sprintf("bytes=%d-", offset))
		require.NoError(t, err)

		assert.Len(t, response.Body, len(content)-offset)
		assert.Equal(t, content[offset], response.Body[0])
	}
}

func Test_Serve_UnsatisfiableRanges(t *testing.T) {
	streamer, video := storedVideo(t, []byte("0123456789"))

	tests := []struct {
		summary     string
		rangeHeader string
	}{
		{"start equal to size", "bytes=10-"},
		{"start beyond size", "bytes=15-"},
		{"unparseable start", "bytes=abc-"},
		{"negative start", "bytes=-5-"},
		{"empty start", "bytes=-"},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			_, err := streamer.Serve(video, tt.rangeHeader)

			var unsatisfiable *stream.UnsatisfiableRangeError
			require.ErrorAs(t, err, &unsatisfiable)
			assert.Equal(t, "bytes */10", unsatisfiable.ContentRange())
		})
	}
}

func Test_Serve_UnknownRangeUnitIgnored(t *testing.T) {
	content := []byte("0123456789")
	streamer, video := storedVideo(t, content)

	response, err := streamer.Serve(video, "items=4-")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.Status)
	assert.Equal(t, content, response.Body)
}

func Test_Serve_EmptyBlobFullContent(t *testing.T) {
	streamer, video := storedVideo(t, []byte{})

	response, err := streamer.Serve(video, "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.Status)
	assert.Empty(t, response.Body)
}

func Test_Serve_MissingBlob(t *testing.T) {
	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)

	video := &media.Video{Slug: "missing", OrigName: "clip.mp4", Mime: "video/mp4"}
	_, err = stream.New(blobs).Serve(video, "bytes=0-")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

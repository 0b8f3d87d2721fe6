package integration_test

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"

	"github.com/rovercam/rovercam/tests/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestVideo_UploadAndListing covers the create/list half of the video
// lifecycle against a real database.
func TestVideo_UploadAndListing(t *testing.T) {
	srv := helpers.RequireService(t, "video_upload_test")
	t.Parallel()

	client := srv.NewClient(t)
	assert.Empty(t, client.ListVideos(t), "a fresh database should list no videos")

	content := bytes.Repeat([]byte("a"), 10_000)
	first := client.Upload(t, "clip.mp4", content)

	assert.Len(t, first.Slug, 32)
	assert.Equal(t, "clip.mp4", first.OrigName)
	assert.Equal(t, "video/mp4", first.Mime)
	assert.Equal(t, int64(10_000), first.Size, "recorded size must equal the uploaded byte count")
	assert.Empty(t, first.Title)

	second := client.Upload(t, "clip.mp4", []byte("short"))
	assert.NotEqual(t, first.Slug, second.Slug, "two uploads of the same filename must receive distinct slugs")

	third := client.Upload(t, "latest.webm", []byte("newest"))

	list := client.ListVideos(t)
	require.Len(t, list, 3)
	assert.Equal(t, third.Slug, list[0].Slug, "listing must be newest first")
	assert.Equal(t, second.Slug, list[1].Slug)
	assert.Equal(t, first.Slug, list[2].Slug)

	// Uploads without a file part never reach the catalog
	resp := client.UploadWithResponse(t, "", []byte("rejected"))
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, client.ListVideos(t), 3)
}

func TestVideo_Streaming(t *testing.T) {
	srv := helpers.RequireService(t, "video_stream_test")
	t.Parallel()

	client := srv.NewClient(t)
	content := []byte("0123456789")
	video := client.Upload(t, "clip.mp4", content)

	// No Range header serves the entire blob
	resp, body := client.Stream(t, video.Slug, "", http.StatusOK)
	assert.Equal(t, content, body)
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))

	// Every open-ended offset serves the suffix starting at that byte
	for offset := 0; offset < len(content); offset++ {
		resp, body := client.Stream(t, video.Slug, fmt.Sprintf("bytes=%d-", offset), http.StatusPartialContent)
		assert.Equal(t, content[offset:], body)
		assert.Equal(t, fmt.Sprintf("bytes %d-9/10", offset), resp.Header.Get("Content-Range"))
	}

	// The worked example: a 10000 byte clip requested from byte 9000
	large := client.Upload(t, "large.mp4", bytes.Repeat([]byte("a"), 10_000))
	resp, body = client.Stream(t, large.Slug, "bytes=9000-", http.StatusPartialContent)
	assert.Len(t, body, 1000)
	assert.Equal(t, "bytes 9000-9999/10000", resp.Header.Get("Content-Range"))
}

func TestVideo_UnsatisfiableRanges(t *testing.T) {
	srv := helpers.RequireService(t, "video_range_test")
	t.Parallel()

	client := srv.NewClient(t)
	video := client.Upload(t, "clip.mp4", []byte("0123456789"))

	for _, rangeHeader := range []string{"bytes=10-", "bytes=99999-", "bytes=bogus-"} {
		resp, _ := client.Stream(t, video.Slug, rangeHeader, http.StatusRequestedRangeNotSatisfiable)
		assert.Equalf(t, "bytes */10", resp.Header.Get("Content-Range"), "rejection of %q should advertise the blob size", rangeHeader)
	}

	// An unrecognised range unit is ignored rather than rejected
	_, body := client.Stream(t, video.Slug, "items=4-", http.StatusOK)
	assert.Len(t, body, 10)

	resp := client.StreamWithResponse(t, "doesnotexist", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVideo_Download(t *testing.T) {
	srv := helpers.RequireService(t, "video_download_test")
	t.Parallel()

	client := srv.NewClient(t)
	content := []byte("uploaded bytes come back identical")
	video := client.Upload(t, "rover run.mp4", content)

	resp, body := client.Download(t, video.Slug)
	assert.Equal(t, content, body)
	assert.Equal(t, `attachment; filename="rover run.mp4"`, resp.Header.Get("Content-Disposition"))
}

func TestVideo_TitleUpdates(t *testing.T) {
	srv := helpers.RequireService(t, "video_title_test")
	t.Parallel()

	client := srv.NewClient(t)
	video := client.Upload(t, "clip.mp4", []byte("content"))

	updated := client.SetTitle(t, video.Slug, "  Morning patrol  ")
	assert.Equal(t, "Morning patrol", updated.Title, "title should be stored trimmed")

	list := client.ListVideos(t)
	require.Len(t, list, 1)
	assert.Equal(t, "Morning patrol", list[0].Title, "updated title must be visible on subsequent listings")

	// Blank titles are rejected and leave the stored title untouched
	for _, blank := range []string{"", "   "} {
		resp := client.SetTitleWithResponse(t, video.Slug, blank)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
	assert.Equal(t, "Morning patrol", client.ListVideos(t)[0].Title)

	resp := client.SetTitleWithResponse(t, "doesnotexist", "anything")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVideo_Deletion(t *testing.T) {
	srv := helpers.RequireService(t, "video_delete_test")
	t.Parallel()

	client := srv.NewClient(t)
	video := client.Upload(t, "clip.mp4", []byte("content"))
	keeper := client.Upload(t, "keep.mp4", []byte("content"))

	client.DeleteVideo(t, video.Slug)

	list := client.ListVideos(t)
	require.Len(t, list, 1)
	assert.Equal(t, keeper.Slug, list[0].Slug, "unrelated videos must survive a delete")

	resp := client.StreamWithResponse(t, video.Slug, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "deleted video must no longer stream")

	resp = client.DeleteVideoWithResponse(t, video.Slug)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "second delete should report the record as gone")
}

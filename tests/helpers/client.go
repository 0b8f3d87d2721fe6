package helpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Video mirrors the JSON representation of a catalog entry as served
// by the API.
type Video struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	OrigName  string `json:"orig_name"`
	Title     string `json:"title"`
	Mime      string `json:"mime"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
}

// Client is a thin HTTP client over a provisioned TestService. The
// happy-path methods fail the test on unexpected status codes; the
// *WithResponse variants hand the raw response back for tests which
// assert on error behaviour.
type Client struct {
	base string
	http *http.Client
}

func (service *TestService) NewClient(_ *testing.T) *Client {
	return &Client{
		base: service.GetServerBasePath(),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (client *Client) do(method string, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequest(method, client.base+path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return client.http.Do(req)
}

func (client *Client) doJSON(t *testing.T, method string, path string, body io.Reader, headers map[string]string, expectedStatus int, out any) {
	resp, err := client.do(method, path, body, headers)
	require.NoErrorf(t, err, "%s %s failed", method, path)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equalf(t, expectedStatus, resp.StatusCode, "%s %s returned unexpected status (body %s)", method, path, payload)

	if out != nil {
		require.NoErrorf(t, json.Unmarshal(payload, out), "%s %s returned malformed JSON: %s", method, path, payload)
	}
}

func (client *Client) UploadWithResponse(t *testing.T, filename string, content []byte) *http.Response {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := client.do(http.MethodPost, "upload", body, map[string]string{"Content-Type": writer.FormDataContentType()})
	require.NoError(t, err, "upload request failed")
	return resp
}

func (client *Client) Upload(t *testing.T, filename string, content []byte) Video {
	resp := client.UploadWithResponse(t, filename, content)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equalf(t, http.StatusCreated, resp.StatusCode, "upload of %s rejected (body %s)", filename, payload)

	var video Video
	require.NoError(t, json.Unmarshal(payload, &video))
	return video
}

func (client *Client) ListVideos(t *testing.T) []Video {
	var list []Video
	client.doJSON(t, http.MethodGet, "videos", nil, nil, http.StatusOK, &list)
	return list
}

// StreamWithResponse requests the streaming endpoint, optionally with a
// Range header (pass an empty string for none). The caller owns the
// response body.
func (client *Client) StreamWithResponse(t *testing.T, slug string, rangeHeader string) *http.Response {
	headers := map[string]string{}
	if rangeHeader != "" {
		headers["Range"] = rangeHeader
	}

	resp, err := client.do(http.MethodGet, fmt.Sprintf("video/%s/stream", slug), nil, headers)
	require.NoError(t, err, "stream request failed")
	return resp
}

func (client *Client) Stream(t *testing.T, slug string, rangeHeader string, expectedStatus int) (*http.Response, []byte) {
	resp := client.StreamWithResponse(t, slug, rangeHeader)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equalf(t, expectedStatus, resp.StatusCode, "stream of %s (range %q) returned unexpected status", slug, rangeHeader)
	return resp, payload
}

func (client *Client) Download(t *testing.T, slug string) (*http.Response, []byte) {
	resp, err := client.do(http.MethodGet, fmt.Sprintf("video/%s/download", slug), nil, nil)
	require.NoError(t, err, "download request failed")
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equalf(t, http.StatusOK, resp.StatusCode, "download of %s failed (body %s)", slug, payload)
	return resp, payload
}

func (client *Client) SetTitleWithResponse(t *testing.T, slug string, title string) *http.Response {
	body, err := json.Marshal(map[string]string{"title": title})
	require.NoError(t, err)

	resp, err := client.do(http.MethodPatch, fmt.Sprintf("video/%s/title", slug), bytes.NewReader(body), map[string]string{"Content-Type": "application/json"})
	require.NoError(t, err, "title update request failed")
	return resp
}

func (client *Client) SetTitle(t *testing.T, slug string, title string) Video {
	resp := client.SetTitleWithResponse(t, slug, title)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equalf(t, http.StatusOK, resp.StatusCode, "title update of %s rejected (body %s)", slug, payload)

	var video Video
	require.NoError(t, json.Unmarshal(payload, &video))
	return video
}

func (client *Client) DeleteVideoWithResponse(t *testing.T, slug string) *http.Response {
	resp, err := client.do(http.MethodDelete, fmt.Sprintf("video/%s", slug), nil, nil)
	require.NoError(t, err, "delete request failed")
	return resp
}

func (client *Client) DeleteVideo(t *testing.T, slug string) {
	resp := client.DeleteVideoWithResponse(t, slug)
	defer resp.Body.Close()
	require.Equalf(t, http.StatusNoContent, resp.StatusCode, "delete of %s failed", slug)
}

package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shrinkray/compression-backend/internal/compression/domain"
	"github.com/shrinkray/compression-backend/internal/compression/engine"
	"github.com/shrinkray/compression-backend/internal/compression/transformer"
	"github.com/shrinkray/compression-backend/pkg/httputil"
	"github.com/shrinkray/compression-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	log := logger.New("test", "development")

	jobs := engine.NewJobStore()
	t.Cleanup(jobs.Close)

	registry := transformer.NewRegistry(
		transformer.NewTextTransformer(log),
		transformer.NewImageTransformer(log),
		transformer.NewPassthrough(),
	)
	eng := engine.NewEngine(registry, jobs, nil, nil, nil, log)

	h := NewHandler(eng, nil, 10<<20, log)
	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, eng
}

func multipartUpload(t *testing.T, files map[string][]byte, options string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	if options != "" {
		require.NoError(t, writer.WriteField("options", options))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeResponse(t *testing.T, resp *http.Response, data any) httputil.Response {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope httputil.Response
	require.NoError(t, json.Unmarshal(raw, &envelope))
	if data != nil && envelope.Data != nil {
		rawData, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(rawData, data))
	}
	return envelope
}

func waitForJob(t *testing.T, server *httptest.Server, jobID string) domain.Job {
	t.Helper()
	var job domain.Job
	require.Eventually(t, func() bool {
		resp, err := http.Get(server.URL + "/api/v1/jobs/" + jobID)
		if err != nil {
			return false
		}
		decodeResponse(t, resp, &job)
		return job.Status != domain.StatusProcessing
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestHandler_CompressBatch(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartUpload(t, map[string][]byte{
		"notes.txt": []byte("hello   world\n\n\n\nmore   text"),
	}, "")

	resp, err := http.Post(server.URL+"/api/v1/compress", contentType, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var job domain.Job
	envelope := decodeResponse(t, resp, &job)
	assert.True(t, envelope.Success)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, 1, job.TotalFiles)

	final := waitForJob(t, server, job.ID)
	assert.Equal(t, domain.StatusCompleted, final.Status)
	require.Len(t, final.Results, 1)
	assert.True(t, final.Results[0].Success)
	assert.Equal(t, 100.0, final.Progress)
}

func TestHandler_CompressWithOptions(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartUpload(t, map[string][]byte{
		"data.json": []byte(`{"a": 1}`),
	}, `{"text":{"method":"minify","remove_comments":true,"remove_extra_whitespace":true,"remove_empty_lines":true}}`)

	resp, err := http.Post(server.URL+"/api/v1/compress", contentType, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var job domain.Job
	decodeResponse(t, resp, &job)
	final := waitForJob(t, server, job.ID)
	require.Len(t, final.Results, 1)
	assert.True(t, final.Results[0].Success)
}

func TestHandler_CompressRejectsInvalidOptions(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartUpload(t, map[string][]byte{
		"a.txt": []byte("x"),
	}, `{"text":{"method":"shrink-hard"}}`)

	resp, err := http.Post(server.URL+"/api/v1/compress", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_CompressRequiresFiles(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartUpload(t, nil, "")

	resp, err := http.Post(server.URL+"/api/v1/compress", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_GetJobNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/jobs/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_CancelFinishedJobFails(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartUpload(t, map[string][]byte{"a.txt": []byte("text")}, "")
	resp, err := http.Post(server.URL+"/api/v1/compress", contentType, body)
	require.NoError(t, err)

	var job domain.Job
	decodeResponse(t, resp, &job)
	waitForJob(t, server, job.ID)

	cancelResp, err := http.Post(server.URL+"/api/v1/jobs/"+job.ID+"/cancel", "application/json", nil)
	require.NoError(t, err)
	defer cancelResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, cancelResp.StatusCode)
}

func TestHandler_DownloadFile(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartUpload(t, map[string][]byte{
		"notes.txt": []byte("some   text   with   gaps"),
	}, "")
	resp, err := http.Post(server.URL+"/api/v1/compress", contentType, body)
	require.NoError(t, err)

	var job domain.Job
	decodeResponse(t, resp, &job)
	waitForJob(t, server, job.ID)

	download, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/files/0", server.URL, job.ID))
	require.NoError(t, err)
	defer download.Body.Close()

	assert.Equal(t, http.StatusOK, download.StatusCode)
	assert.Contains(t, download.Header.Get("Content-Disposition"), "compressed_notes.txt")

	data, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Equal(t, "some text with gaps", string(data))
}

func TestHandler_DownloadFileBadIndex(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartUpload(t, map[string][]byte{"a.txt": []byte("text")}, "")
	resp, err := http.Post(server.URL+"/api/v1/compress", contentType, body)
	require.NoError(t, err)

	var job domain.Job
	decodeResponse(t, resp, &job)
	waitForJob(t, server, job.ID)

	download, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/files/9", server.URL, job.ID))
	require.NoError(t, err)
	defer download.Body.Close()
	assert.Equal(t, http.StatusBadRequest, download.StatusCode)
}

func TestHandler_Formats(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/formats")
	require.NoError(t, err)

	var formats []struct {
		Category   string   `json:"category"`
		Extensions []string `json:"extensions"`
	}
	envelope := decodeResponse(t, resp, &formats)
	assert.True(t, envelope.Success)
	require.NotEmpty(t, formats)

	categories := make(map[string]bool)
	for _, f := range formats {
		categories[f.Category] = true
		assert.NotEmpty(t, f.Extensions)
	}
	assert.True(t, categories["pdf"])
	assert.True(t, categories["image"])
	assert.True(t, categories["text"])
}

func TestHandler_Analyze(t *testing.T) {
	server, _ := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("one two three"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(server.URL+"/api/v1/analyze", writer.FormDataContentType(), body)
	require.NoError(t, err)

	var analysis struct {
		Category        string   `json:"category"`
		Supported       bool     `json:"supported"`
		Recommendations []string `json:"recommendations"`
	}
	decodeResponse(t, resp, &analysis)
	assert.Equal(t, "text", analysis.Category)
	assert.True(t, analysis.Supported)
	assert.NotEmpty(t, analysis.Recommendations)
}

func TestHandler_HistoryUnconfigured(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

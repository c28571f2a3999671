package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apihttp "github.com/webstorage/storectl/internal/http"
	"github.com/webstorage/storectl/internal/models"
)

func writeTempFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0644))
	return path
}

type progressLog struct {
	done  []int64
	total int64
}

func (p *progressLog) record(done, total int64) {
	p.done = append(p.done, done)
	p.total = total
}

func (p *progressLog) assertMonotonic(t *testing.T) {
	t.Helper()
	for i := 1; i < len(p.done); i++ {
		if p.done[i] < p.done[i-1] {
			t.Fatalf("progress went backwards: %v", p.done)
		}
	}
}

func TestUploadMultipart(t *testing.T) {
	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.txt", 3000)
	b := writeTempFile(t, dir, "b.bin", 70000)

	var gotNames []string
	var gotLength int64
	client, _ := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, PathUpload, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		gotLength = r.ContentLength
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		for _, fh := range r.MultipartForm.File[UploadField] {
			gotNames = append(gotNames, fh.Filename)
		}
		w.Write([]byte(`{"message":"Loaded files: a.txt b.bin"}`))
	}))

	var progress progressLog
	msg, err := client.Upload(context.Background(), []string{a, b}, progress.record)
	require.NoError(t, err)

	assert.Equal(t, "Loaded files: a.txt b.bin", msg)
	assert.Equal(t, []string{"a.txt", "b.bin"}, gotNames)
	require.NotEmpty(t, progress.done)
	progress.assertMonotonic(t)
	assert.Equal(t, gotLength, progress.total)
	assert.Equal(t, progress.total, progress.done[len(progress.done)-1])
}

func TestUploadConflictCarriesSummary(t *testing.T) {
	dir := t.TempDir()
	a := writeTempFile(t, dir, "dup.txt", 10)

	client, _ := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		io.Copy(io.Discard, r.Body)
		writeJSON(w, nethttp.StatusConflict, map[string]string{"message": "Loaded files: dup.txt FAILED!"})
	}))

	_, err := client.Upload(context.Background(), []string{a}, nil)
	assert.Equal(t, apihttp.KindValidation, apihttp.KindOf(err))
	assert.Equal(t, "Loaded files: dup.txt FAILED!", apihttp.UserMessage(err, ""))
}

func TestUploadRejectsMissingFile(t *testing.T) {
	client, _ := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		t.Error("no request expected")
	}))

	_, err := client.Upload(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}, nil)
	assert.Error(t, err)

	_, err = client.Upload(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestUploadWithoutSessionDoesNotLeak(t *testing.T) {
	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.txt", 1<<20)

	client, sess := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {}))
	require.NoError(t, sess.Clear())

	_, err := client.Upload(context.Background(), []string{a}, nil)
	assert.True(t, apihttp.IsAuthorization(err))
}

// memorySink collects a download body and records the declared length.
type memorySink struct {
	buf   bytes.Buffer
	total int64
	calls int
}

func (m *memorySink) open(total int64) (io.Writer, error) {
	m.calls++
	m.total = total
	return &m.buf, nil
}

func TestDownload(t *testing.T) {
	payload := strings.Repeat("data", 50000)
	client, _ := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, PathDownload, r.URL.Path)
		assert.Equal(t, "4", r.URL.Query().Get("id"))
		assert.Equal(t, "notes.txt", r.URL.Query().Get("file"))
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		io.WriteString(w, payload)
	}))

	var progress progressLog
	var sink memorySink
	n, err := client.Download(context.Background(), 4, "notes.txt", sink.open, progress.record)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, sink.buf.String())
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, int64(len(payload)), sink.total)
	progress.assertMonotonic(t)
	assert.Equal(t, int64(len(payload)), progress.total)
	assert.Equal(t, int64(len(payload)), progress.done[len(progress.done)-1])
}

func TestDownloadTruncatedBodyIsTransportError(t *testing.T) {
	client, _ := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Length", "1000")
		io.WriteString(w, "short")
	}))

	var sink memorySink
	_, err := client.Download(context.Background(), 1, "x.bin", sink.open, nil)
	assert.Equal(t, apihttp.KindTransport, apihttp.KindOf(err))
}

func TestDownloadHugeDeclaredLengthDoesNotPreallocate(t *testing.T) {
	client, _ := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Length", "9000000000000")
		io.WriteString(w, "short")
	}))

	var sink memorySink
	_, err := client.Download(context.Background(), 1, "x.bin", sink.open, nil)
	assert.Equal(t, apihttp.KindTransport, apihttp.KindOf(err))
	assert.Equal(t, int64(9000000000000), sink.total)
	assert.Equal(t, "short", sink.buf.String())
}

func TestDownloadOpenErrorStopsBeforeReading(t *testing.T) {
	client, _ := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Length", "5")
		io.WriteString(w, "hello")
	}))

	refused := errors.New("no room")
	var progress progressLog
	n, err := client.Download(context.Background(), 1, "x.bin", func(total int64) (io.Writer, error) {
		return nil, refused
	}, progress.record)
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, int64(0), n)
	assert.Empty(t, progress.done)
}

func TestDownloadMissingEntry(t *testing.T) {
	client, _ := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusBadRequest, map[string]string{"message": "Can't find an entry."})
	}))

	var sink memorySink
	_, err := client.Download(context.Background(), models.FileID(99), "gone.txt", sink.open, nil)
	assert.Equal(t, apihttp.KindValidation, apihttp.KindOf(err))
	assert.Zero(t, sink.calls)
}

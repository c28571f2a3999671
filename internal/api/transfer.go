package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	apihttp "github.com/webstorage/storectl/internal/http"
	"github.com/webstorage/storectl/internal/models"
	"github.com/webstorage/storectl/internal/util/buffers"
)

// UploadField is the multipart field every uploaded file is sent under.
const UploadField = "files"

// ErrNoFiles is returned by Upload when called with an empty file set.
var ErrNoFiles = errors.New("no files selected")

// progressReader wraps an io.Reader and reports cumulative bytes read.
type progressReader struct {
	reader  io.Reader
	total   int64
	current int64
	report  ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		if pr.report != nil {
			pr.report(pr.current, pr.total)
		}
	}
	return n, err
}

type byteCounter struct{ n int64 }

func (c *byteCounter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

type uploadFile struct {
	path string
	name string
	size int64
	file *os.File
}

// multipartLength returns the exact encoded size of files under boundary.
// Part headers depend only on names and order, so the framing is measured
// with empty parts and the content sizes are added.
func multipartLength(boundary string, files []uploadFile) (int64, error) {
	counter := &byteCounter{}
	mw := multipart.NewWriter(counter)
	if err := mw.SetBoundary(boundary); err != nil {
		return 0, err
	}
	var content int64
	for _, f := range files {
		if _, err := mw.CreateFormFile(UploadField, f.name); err != nil {
			return 0, err
		}
		content += f.size
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}
	return counter.n + content, nil
}

func openUploads(paths []string) ([]uploadFile, error) {
	files := make([]uploadFile, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeUploads(files)
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			closeUploads(files)
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			f.Close()
			closeUploads(files)
			return nil, fmt.Errorf("%s is a directory", p)
		}
		files = append(files, uploadFile{path: p, name: filepath.Base(p), size: info.Size(), file: f})
	}
	return files, nil
}

func closeUploads(files []uploadFile) {
	for _, f := range files {
		f.file.Close()
	}
}

// Upload streams paths as one multipart request and returns the server's
// summary message. progress sees bytes of the encoded body written to the
// connection against the exact body length.
//
// A rejected upload still carries the server's summary in the returned
// *http.RequestError's Message.
func (c *Client) Upload(ctx context.Context, paths []string, progress ProgressFunc) (string, error) {
	if len(paths) == 0 {
		return "", ErrNoFiles
	}
	files, err := openUploads(paths)
	if err != nil {
		return "", err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	total, err := multipartLength(mw.Boundary(), files)
	if err != nil {
		closeUploads(files)
		return "", fmt.Errorf("size multipart body: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer closeUploads(files)
		pw.CloseWithError(writeParts(mw, files))
	}()
	// Unblocks the writer if the request ends before the body is drained.
	defer func() {
		pr.Close()
		wg.Wait()
	}()

	req, err := c.newRequest(ctx, "POST", PathUpload, nil, nil)
	if err != nil {
		return "", err
	}
	req.Body = io.NopCloser(&progressReader{reader: pr, total: total, report: progress})
	req.ContentLength = total
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Debug().Int("files", len(files)).Int64("bytes", total).Msg("Uploading")

	resp, err := c.transfers.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result models.MessageResponse
	if err := decode(resp, PathUpload, &result); err != nil {
		return "", err
	}
	return result.Message, nil
}

func writeParts(mw *multipart.Writer, files []uploadFile) error {
	buf := buffers.GetCopyBuffer()
	defer buffers.PutCopyBuffer(buf)

	for _, f := range files {
		part, err := mw.CreateFormFile(UploadField, f.name)
		if err != nil {
			return err
		}
		if _, err := io.CopyBuffer(part, f.file, *buf); err != nil {
			return fmt.Errorf("read %s: %w", f.path, err)
		}
	}
	return mw.Close()
}

// OpenFunc is called once the download response headers arrive. total is
// the declared length, or -1 when the server did not send one. The returned
// writer receives the body; an error aborts before any byte is read.
type OpenFunc func(total int64) (io.Writer, error)

// Download streams the content of file id into the writer returned by open.
// name is the suggested filename the server expects alongside the id. A body
// shorter or longer than the declared length is a transport error; the
// caller discards whatever it wrote in that case.
func (c *Client) Download(ctx context.Context, id models.FileID, name string, open OpenFunc, progress ProgressFunc) (int64, error) {
	query := url.Values{}
	query.Set("id", id.String())
	query.Set("file", name)

	req, err := c.newRequest(ctx, "GET", PathDownload, query, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.transfers.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	total := resp.ContentLength
	dst, err := open(total)
	if err != nil {
		return 0, err
	}

	buf := buffers.GetCopyBuffer()
	defer buffers.PutCopyBuffer(buf)

	reader := &progressReader{reader: resp.Body, total: total, report: progress}
	n, err := io.CopyBuffer(dst, reader, *buf)
	if err != nil {
		return n, apihttp.Transport(fmt.Errorf("read download body: %w", err))
	}
	if total >= 0 && n != total {
		return n, apihttp.Transport(fmt.Errorf("download truncated: got %d of %d bytes", n, total))
	}
	return n, nil
}

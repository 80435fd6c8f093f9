// internal/upload/upload.go
//
// Multipart upload buffering.
//
// Context
// -------
// Single(field, maxBytes) reads a multipart/form-data body, buffers the
// part named field entirely in memory, sniffs its content type, and
// attaches it as Request.Files[field].  Ordinary form values land in the
// body map so validators can see them.  A missing part is not an error
// here; the handler decides what "no file" means.
//
// Notes
// -----
// • The whole request is capped at maxBytes.  Exceeding it fails with 413.
// • Content type comes from the bytes, not the client's claim.
// • Oxford commas, two spaces after periods.

package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yanizio/relay/internal/metrics"
	"github.com/yanizio/relay/internal/pipeline"
)

// DefaultMaxBytes caps uploads when no limit is configured.
const DefaultMaxBytes int64 = 10 << 20

// maxFormValue caps each non-file form value.
const maxFormValue = 64 << 10

var errTooLarge = errors.New("upload exceeds limit")

// Single returns the buffering stage.
func Single(field string, maxBytes int64) pipeline.Stage {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return pipeline.Func("upload-"+field, func(req *pipeline.Request) pipeline.Result {
		r := req.HTTP()
		if r == nil {
			return pipeline.Next()
		}
		mt, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "multipart/form-data" || params["boundary"] == "" {
			return pipeline.Next()
		}

		limited := &countingReader{r: r.Body, left: maxBytes}
		r.Body = io.NopCloser(limited)
		mr, err := r.MultipartReader()
		if err != nil {
			return pipeline.Fail(pipeline.BadRequest("Malformed multipart body"))
		}

		body := req.Object()
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return failRead(err, limited, maxBytes)
			}

			name := part.FormName()
			if part.FileName() == "" {
				val, err := io.ReadAll(io.LimitReader(part, maxFormValue))
				part.Close()
				if err != nil {
					return failRead(err, limited, maxBytes)
				}
				if name != "" {
					body[name] = string(val)
				}
				continue
			}

			if name != field || req.Files[field] != nil {
				// Drain parts we do not keep.
				_, err := io.Copy(io.Discard, part)
				part.Close()
				if err != nil {
					return failRead(err, limited, maxBytes)
				}
				continue
			}

			data, err := io.ReadAll(part)
			part.Close()
			if err != nil {
				return failRead(err, limited, maxBytes)
			}
			req.Files[field] = &pipeline.File{
				Field:       field,
				Filename:    sanitizeName(part.FileName()),
				ContentType: mimetype.Detect(data).String(),
				Size:        int64(len(data)),
				Data:        data,
			}
			metrics.UploadBytes.Add(float64(len(data)))
		}
		return pipeline.Next()
	})
}

func failRead(err error, cr *countingReader, max int64) pipeline.Result {
	if errors.Is(err, errTooLarge) || cr.exceeded {
		return pipeline.Fail(pipeline.Errorf(http.StatusRequestEntityTooLarge, "Upload exceeds %d bytes", max))
	}
	return pipeline.Fail(pipeline.BadRequest(fmt.Sprintf("Malformed multipart body: %v", err)))
}

// sanitizeName keeps only the base name a client supplied.
func sanitizeName(n string) string {
	if i := strings.LastIndexAny(n, `/\`); i >= 0 {
		n = n[i+1:]
	}
	return n
}

// countingReader fails once the stream proves longer than left bytes.
type countingReader struct {
	r        io.Reader
	left     int64
	exceeded bool
}

func (c *countingReader) Read(p []byte) (int, error) {
	if c.left <= 0 {
		var probe [1]byte
		n, err := c.r.Read(probe[:])
		if n == 0 {
			return 0, err
		}
		c.exceeded = true
		return 0, errTooLarge
	}
	if int64(len(p)) > c.left {
		p = p[:c.left]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	return n, err
}

// components/upload/upload.go
//
// Upload component – POST /upload buffers the multipart part named
// "myFile" in memory and reports what arrived.  Nothing is written to disk.

package upload

import (
	"net/http"

	"github.com/yanizio/relay/internal/component"
	"github.com/yanizio/relay/internal/pipeline"
	"github.com/yanizio/relay/internal/routing"
	iupload "github.com/yanizio/relay/internal/upload"
)

// Field is the multipart field name the route reads.
const Field = "myFile"

var _ component.Component = (*Component)(nil)

// Component mounts /upload.
type Component struct{}

func (c *Component) Name() string { return "upload" }

func init() { component.Register(&Component{}) }

// Mount registers the upload route.  The size cap comes from
// upload.max_bytes.
func (c *Component) Mount(r routing.Registrar, env *component.Env) error {
	max := iupload.DefaultMaxBytes
	if env.Config != nil && env.Config.Upload.MaxBytes > 0 {
		max = env.Config.Upload.MaxBytes
	}
	r.Register(http.MethodPost, "/upload", iupload.Single(Field, max), pipeline.Handle("upload", received))
	return nil
}

// Reply describes the buffered file.
type Reply struct {
	Message     string `json:"message"`
	Filename    string `json:"filename"`
	SizeInBytes int64  `json:"size_in_bytes"`
	ContentType string `json:"content_type"`
}

func received(req *pipeline.Request) (pipeline.Response, error) {
	f := req.Files[Field]
	if f == nil {
		return pipeline.Text(http.StatusBadRequest, "No file was uploaded."), nil
	}
	return pipeline.JSON(http.StatusOK, Reply{
		Message:     "File uploaded to memory successfully!",
		Filename:    f.Filename,
		SizeInBytes: f.Size,
		ContentType: f.ContentType,
	}), nil
}

package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-matcher/internal/constants"
)

// errBadUpload marks client mistakes in a multipart upload.
var errBadUpload = errors.New("bad upload")

// upload is a file received from a client and written to the upload directory.
type upload struct {
	Path     string // location on disk, uuid-prefixed
	Filename string // client-supplied base name, used as the stored key
}

func (u *upload) Remove() {
	if u != nil {
		_ = os.Remove(u.Path)
	}
}

// saveUploadedFile copies the multipart "file" field into dir under a unique name.
func saveUploadedFile(r *http.Request, dir string) (*upload, error) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, fmt.Errorf("%w: failed to parse multipart form", errBadUpload)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: file is required", errBadUpload)
	}
	defer file.Close()

	safeName := filepath.Base(header.Filename)
	if safeName == "." || safeName == string(filepath.Separator) || strings.TrimSpace(safeName) == "" {
		return nil, fmt.Errorf("%w: file name is required", errBadUpload)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	tempPath := filepath.Join(dir, uuid.NewString()+"-"+safeName)
	out, err := os.Create(tempPath) //nolint:gosec // filename sanitized via filepath.Base
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("save upload: %w", err)
	}

	return &upload{Path: tempPath, Filename: safeName}, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

const uploadField = "file"

// readUpload returns the bytes of the multipart "file" field.
func readUpload(r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, constants.MaxUploadSize)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, "", fmt.Errorf("missing %q upload: %w", uploadField, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	return data, filepath.Base(header.Filename), nil
}

// saveUploadToTemp streams the multipart "file" field into a temp file that
// decoders needing a path (ffmpeg, gocv) can open. The caller removes the directory.
func saveUploadToTemp(r *http.Request) (path, dir string, err error) {
	r.Body = http.MaxBytesReader(nil, r.Body, constants.MaxUploadSize)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return "", "", fmt.Errorf("missing %q upload: %w", uploadField, err)
	}
	defer file.Close()

	dir, err = os.MkdirTemp("", "face-attendance-upload-*")
	if err != nil {
		return "", "", errors.New("failed to create temp directory")
	}

	safeName := filepath.Base(header.Filename)
	if safeName == "." || safeName == string(filepath.Separator) {
		safeName = "upload"
	}
	path = filepath.Join(dir, safeName)
	out, err := os.Create(path) //nolint:gosec // filename sanitized via filepath.Base
	if err != nil {
		os.RemoveAll(dir)
		return "", "", errors.New("failed to create temp file")
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.RemoveAll(dir)
		return "", "", errors.New("failed to save file")
	}
	if err := out.Close(); err != nil {
		os.RemoveAll(dir)
		return "", "", errors.New("failed to save file")
	}
	return path, dir, nil
}

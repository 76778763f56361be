package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"mockupstudio/internal/domain"
)

const (
	defaultMaxUploadBytes = 10 << 20
	multipartMemory       = 32 << 20
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// parseMultipart bounds the whole body to room for maxFiles uploads.
func (a *App) parseMultipart(w http.ResponseWriter, r *http.Request, maxFiles int) error {
	limit := a.maxUpload()*int64(maxFiles) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return invalid("request body too large")
		}
		return invalid("invalid multipart form")
	}
	return nil
}

func (a *App) maxUpload() int64 {
	if a.MaxUploadBytes > 0 {
		return a.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

// formImage returns the single image in field, or nil when absent.
func (a *App) formImage(r *http.Request, field string) (*domain.Upload, error) {
	files := r.MultipartForm.File[field]
	switch len(files) {
	case 0:
		return nil, nil
	case 1:
		up, err := a.readImage(field, files[0])
		if err != nil {
			return nil, err
		}
		return &up, nil
	default:
		return nil, invalid(fmt.Sprintf("%s accepts a single file", field))
	}
}

// formImages returns up to max images from field.
func (a *App) formImages(r *http.Request, field string, max int) ([]domain.Upload, error) {
	files := r.MultipartForm.File[field]
	if len(files) > max {
		return nil, invalid(fmt.Sprintf("%s accepts at most %d files", field, max))
	}
	out := make([]domain.Upload, 0, len(files))
	for _, fh := range files {
		up, err := a.readImage(field, fh)
		if err != nil {
			return nil, err
		}
		out = append(out, up)
	}
	return out, nil
}

// readImage loads the file and checks its content type by sniffing, not by
// the client-declared header.
func (a *App) readImage(field string, fh *multipart.FileHeader) (domain.Upload, error) {
	if fh.Size > a.maxUpload() {
		return domain.Upload{}, invalid(fmt.Sprintf("%s: %s exceeds %d bytes", field, fh.Filename, a.maxUpload()))
	}
	f, err := fh.Open()
	if err != nil {
		return domain.Upload{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, a.maxUpload()+1))
	if err != nil {
		return domain.Upload{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	if int64(len(data)) > a.maxUpload() {
		return domain.Upload{}, invalid(fmt.Sprintf("%s: %s exceeds %d bytes", field, fh.Filename, a.maxUpload()))
	}
	if len(data) == 0 {
		return domain.Upload{}, invalid(fmt.Sprintf("%s: %s is empty", field, fh.Filename))
	}
	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return domain.Upload{}, invalid(fmt.Sprintf("%s: only jpeg, png, webp and gif images are accepted", field))
	}
	return domain.Upload{Filename: fh.Filename, MIME: mt.String(), Data: data}, nil
}

// formValue returns the trimmed value and whether the field was sent at all.
func formValue(r *http.Request, field string) (string, bool) {
	values, ok := r.MultipartForm.Value[field]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}

// parseIDList accepts a JSON array, repeated fields or a comma separated list.
func parseIDList(values []string, field string) ([]int64, error) {
	var ids []int64
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "[") {
			var list []int64
			if err := json.Unmarshal([]byte(raw), &list); err != nil {
				return nil, invalid(field + " must be a list of ids")
			}
			ids = append(ids, list...)
			continue
		}
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, invalid(field + " must be a list of ids")
			}
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		if id <= 0 {
			return nil, invalid(field + " must contain positive ids")
		}
	}
	return ids, nil
}

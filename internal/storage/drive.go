package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	driveFolderMIME = "application/vnd.google-apps.folder"
	folderLookupTTL = 30 * time.Second
)

// DriveAPI is the subset of the Drive v3 service used by DriveStore.
type DriveAPI interface {
	FindFolder(ctx context.Context, parentID, name string) (string, error)
	CreateFolder(ctx context.Context, parentID, name string) (string, error)
	Upload(ctx context.Context, folderID, name, mime string, data []byte) (string, error)
	Share(ctx context.Context, fileID string) error
	Download(ctx context.Context, fileID string) ([]byte, error)
	Exists(ctx context.Context, fileID string) (bool, error)
	Delete(ctx context.Context, fileID string) error
}

// DriveOptions configures the remote drive backend.
type DriveOptions struct {
	CredentialsJSON string
	CredentialsFile string
	ParentFolderID  string
}

func (o DriveOptions) configured() bool {
	return o.ParentFolderID != "" && (o.CredentialsJSON != "" || o.CredentialsFile != "")
}

// DriveStore keeps files in per-category folders below a parent folder.
// References look like "gdrive:<category>/<fileId>".
type DriveStore struct {
	api      DriveAPI
	parentID string

	mu      sync.RWMutex
	folders map[string]string
	group   singleflight.Group
}

// NewDriveStore authenticates with a service account.
func NewDriveStore(ctx context.Context, opts DriveOptions) (*DriveStore, error) {
	if !opts.configured() {
		return nil, fmt.Errorf("%w: drive credentials or parent folder missing", ErrUnavailable)
	}
	var cred option.ClientOption
	if opts.CredentialsJSON != "" {
		cred = option.WithCredentialsJSON([]byte(opts.CredentialsJSON))
	} else {
		cred = option.WithCredentialsFile(opts.CredentialsFile)
	}
	svc, err := drive.NewService(ctx, cred, option.WithScopes(drive.DriveScope))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return NewDriveStoreWithAPI(driveAPI{svc: svc}, opts.ParentFolderID), nil
}

// NewDriveStoreWithAPI builds the backend on top of an existing client.
func NewDriveStoreWithAPI(api DriveAPI, parentID string) *DriveStore {
	return &DriveStore{api: api, parentID: parentID, folders: make(map[string]string)}
}

func (s *DriveStore) Kind() Kind { return KindDrive }

// Put uploads into the folder named after the key's category and returns
// "<category>/<fileId>".
func (s *DriveStore) Put(ctx context.Context, key string, data []byte, mime string) (string, error) {
	category, name, ok := strings.Cut(key, "/")
	if !ok || category == "" || name == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, key)
	}
	folderID, err := s.folderID(ctx, category)
	if err != nil {
		return "", err
	}
	fileID, err := s.api.Upload(ctx, folderID, name, mime, data)
	if err != nil {
		return "", err
	}
	// The view link only works for files readable without a session.
	if err := s.api.Share(ctx, fileID); err != nil {
		if derr := s.api.Delete(context.WithoutCancel(ctx), fileID); derr != nil {
			return "", fmt.Errorf("%w (cleanup of %s: %v)", err, fileID, derr)
		}
		return "", err
	}
	return category + "/" + fileID, nil
}

func (s *DriveStore) Get(ctx context.Context, key string) ([]byte, error) {
	id, err := driveFileID(key)
	if err != nil {
		return nil, err
	}
	return s.api.Download(ctx, id)
}

func (s *DriveStore) Exists(ctx context.Context, key string) (bool, error) {
	id, err := driveFileID(key)
	if err != nil {
		return false, err
	}
	return s.api.Exists(ctx, id)
}

func (s *DriveStore) Remove(ctx context.Context, key string) error {
	id, err := driveFileID(key)
	if err != nil {
		return err
	}
	return s.api.Delete(ctx, id)
}

// URL is a pure string transform to the public view link.
func (s *DriveStore) URL(key string) (string, error) {
	id, err := driveFileID(key)
	if err != nil {
		return "", err
	}
	return "https://drive.google.com/uc?export=view&id=" + url.QueryEscape(id), nil
}

func (s *DriveStore) folderID(ctx context.Context, category string) (string, error) {
	s.mu.RLock()
	id, ok := s.folders[category]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	// Concurrent uploads share one lookup, which must outlive any single
	// caller's context.
	ch := s.group.DoChan(category, func() (any, error) {
		s.mu.RLock()
		existing, ok := s.folders[category]
		s.mu.RUnlock()
		if ok {
			return existing, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), folderLookupTTL)
		defer cancel()
		found, err := s.api.FindFolder(fctx, s.parentID, category)
		if err != nil {
			return "", fmt.Errorf("find folder %q: %w", category, err)
		}
		if found == "" {
			found, err = s.api.CreateFolder(fctx, s.parentID, category)
			if err != nil {
				return "", fmt.Errorf("create folder %q: %w", category, err)
			}
		}
		s.mu.Lock()
		s.folders[category] = found
		s.mu.Unlock()
		return found, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func driveFileID(key string) (string, error) {
	id := key
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		id = key[i+1:]
	}
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, key)
	}
	return id, nil
}

// driveAPI adapts *drive.Service to DriveAPI.
type driveAPI struct {
	svc *drive.Service
}

func (d driveAPI) FindFolder(ctx context.Context, parentID, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
		escapeDriveQuery(name), driveFolderMIME, escapeDriveQuery(parentID))
	list, err := d.svc.Files.List().
		Q(q).
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (d driveAPI) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	f, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: driveFolderMIME,
		Parents:  []string{parentID},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return f.Id, nil
}

func (d driveAPI) Upload(ctx context.Context, folderID, name, mime string, data []byte) (string, error) {
	f, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: mime,
		Parents:  []string{folderID},
	}).Media(bytes.NewReader(data), googleapi.ContentType(mime)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive upload: %w", err)
	}
	return f.Id, nil
}

func (d driveAPI) Share(ctx context.Context, fileID string) error {
	_, err := d.svc.Permissions.Create(fileID, &drive.Permission{Type: "anyone", Role: "reader"}).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("drive share %s: %w", fileID, err)
	}
	return nil
}

func (d driveAPI) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := d.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, mapDriveError(err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (d driveAPI) Exists(ctx context.Context, fileID string) (bool, error) {
	f, err := d.svc.Files.Get(fileID).Fields("id, trashed").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		if err := mapDriveError(err); errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return !f.Trashed, nil
}

func (d driveAPI) Delete(ctx context.Context, fileID string) error {
	if err := d.svc.Files.Delete(fileID).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return mapDriveError(err)
	}
	return nil
}

func mapDriveError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, gerr.Message)
	}
	return err
}

func escapeDriveQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

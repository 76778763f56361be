package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Kind identifies a storage backend. Kinds other than KindLocal double as the
// reference prefix, so they must never look like the start of a local path.
type Kind string

const (
	KindLocal  Kind = "local"
	KindObject Kind = "s3"
	KindDrive  Kind = "gdrive"
)

// Categories group stored files by purpose.
const (
	CategoryBaseProducts = "base-products"
	CategoryReferences   = "references"
	CategoryLogos        = "logos"
	CategoryUserImages   = "user-images"
	CategoryGenerated    = "generated"
)

var (
	ErrNotFound       = errors.New("storage: object not found")
	ErrUnavailable    = errors.New("storage: backend unavailable")
	ErrInvalidRef     = errors.New("storage: invalid reference")
	ErrUnknownBackend = errors.New("storage: unknown backend tag")
)

// Error carries the failing operation, backend and reference of a storage
// failure. Match the cause with errors.Is against the sentinels above.
type Error struct {
	Op      string
	Backend Kind
	Ref     string
	Err     error
}

func (e *Error) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("storage %s (%s): %v", e.Op, e.Backend, e.Err)
	}
	return fmt.Sprintf("storage %s %q (%s): %v", e.Op, e.Ref, e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Backend is implemented by every storage variant. Keys are backend-local
// locators without the reference prefix.
type Backend interface {
	Kind() Kind
	// Put writes data under key and returns the final locator. Backends that
	// assign their own identifiers return a locator different from key.
	Put(ctx context.Context, key string, data []byte, mime string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
	URL(key string) (string, error)
}

// Store routes writes to one configured backend and reads to whichever
// backend produced the reference.
type Store struct {
	writer  Backend
	readers map[Kind]Backend
}

// NewStore creates a router writing to writer. Additional backends are
// registered for reads only.
func NewStore(writer Backend, readers ...Backend) *Store {
	s := &Store{writer: writer, readers: make(map[Kind]Backend, len(readers)+1)}
	s.readers[writer.Kind()] = writer
	for _, r := range readers {
		if r == nil {
			continue
		}
		if _, ok := s.readers[r.Kind()]; !ok {
			s.readers[r.Kind()] = r
		}
	}
	return s
}

// Kind reports the backend used for new writes.
func (s *Store) Kind() Kind {
	return s.writer.Kind()
}

// Store persists data under a fresh unique name inside category and returns
// the backend-tagged reference. Only the extension of suggestedName is used.
func (s *Store) Store(ctx context.Context, data []byte, category, suggestedName, mime string) (string, error) {
	kind := s.writer.Kind()
	if !categoryPattern.MatchString(category) {
		return "", &Error{Op: "store", Backend: kind, Err: fmt.Errorf("%w: category %q", ErrInvalidRef, category)}
	}
	if len(data) == 0 {
		return "", &Error{Op: "store", Backend: kind, Err: errors.New("empty payload")}
	}
	if mime == "" {
		mime = DetectMIME(data)
	}
	key := category + "/" + NewFileName(suggestedName, mime)
	locator, err := s.writer.Put(ctx, key, data, mime)
	if err != nil {
		return "", wrap("store", kind, key, err)
	}
	return FormatRef(kind, locator), nil
}

// Fetch returns the bytes behind ref.
func (s *Store) Fetch(ctx context.Context, ref string) ([]byte, error) {
	b, key, err := s.route("fetch", ref)
	if err != nil {
		return nil, err
	}
	data, err := b.Get(ctx, key)
	if err != nil {
		return nil, wrap("fetch", b.Kind(), ref, err)
	}
	return data, nil
}

// Exists reports whether ref points at stored bytes.
func (s *Store) Exists(ctx context.Context, ref string) (bool, error) {
	b, key, err := s.route("exists", ref)
	if err != nil {
		return false, err
	}
	ok, err := b.Exists(ctx, key)
	if err != nil {
		return false, wrap("exists", b.Kind(), ref, err)
	}
	return ok, nil
}

// Delete removes ref. Deleting a missing object is not an error.
func (s *Store) Delete(ctx context.Context, ref string) error {
	b, key, err := s.route("delete", ref)
	if err != nil {
		return err
	}
	if err := b.Remove(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return wrap("delete", b.Kind(), ref, err)
	}
	return nil
}

// URLFor returns a client-facing URL for ref. Local, drive and object
// backends with a public base URL compute it without I/O; object backends
// without one presign, which may contact the endpoint.
func (s *Store) URLFor(ref string) (string, error) {
	b, key, err := s.route("url", ref)
	if err != nil {
		return "", err
	}
	u, err := b.URL(key)
	if err != nil {
		return "", wrap("url", b.Kind(), ref, err)
	}
	return u, nil
}

func (s *Store) route(op, ref string) (Backend, string, error) {
	kind, key, err := ParseRef(ref)
	if err != nil {
		return nil, "", &Error{Op: op, Backend: kind, Ref: ref, Err: err}
	}
	b, ok := s.readers[kind]
	if !ok {
		return nil, "", &Error{Op: op, Backend: kind, Ref: ref, Err: ErrUnavailable}
	}
	return b, key, nil
}

// ParseRef splits a reference into its backend kind and locator.
func ParseRef(ref string) (Kind, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", ErrInvalidRef
	}
	tag, locator, tagged := strings.Cut(ref, ":")
	if !tagged {
		key, err := sanitizeKey(ref)
		if err != nil {
			return KindLocal, "", err
		}
		return KindLocal, key, nil
	}
	switch Kind(tag) {
	case KindObject, KindDrive:
		if strings.TrimSpace(locator) == "" {
			return Kind(tag), "", ErrInvalidRef
		}
		return Kind(tag), locator, nil
	default:
		return Kind(tag), "", ErrUnknownBackend
	}
}

// FormatRef is the inverse of ParseRef.
func FormatRef(kind Kind, locator string) string {
	if kind == KindLocal {
		return locator
	}
	return string(kind) + ":" + locator
}

// NewFileName returns "<uuid><ext>" where ext comes from suggestedName or,
// failing that, from mime.
func NewFileName(suggestedName, mime string) string {
	return uuid.NewString() + extensionFor(suggestedName, mime)
}

// DetectMIME sniffs the media type of data.
func DetectMIME(data []byte) string {
	m := mimetype.Detect(data).String()
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m)
}

var (
	categoryPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	extPattern      = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)
)

func extensionFor(suggestedName, mime string) string {
	if ext := strings.ToLower(filepath.Ext(strings.TrimSpace(suggestedName))); extPattern.MatchString(ext) {
		if ext == ".jpeg" {
			return ".jpg"
		}
		return ext
	}
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if m := mimetype.Lookup(strings.ToLower(mime)); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".bin"
}

func wrap(op string, kind Kind, ref string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Backend: kind, Ref: ref, Err: err}
}

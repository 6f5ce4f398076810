package gallery

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// ImageRef points to one enrollment image.
type ImageRef struct {
	Name string // identity, taken from the directory name
	Path string
}

// Store holds enrollment images grouped by identity.
type Store interface {
	// List returns every enrollment image, ordered by name then file name.
	List(ctx context.Context) ([]ImageRef, error)
	Read(ctx context.Context, ref ImageRef) ([]byte, error)
	Save(ctx context.Context, name string, frame *imaging.Frame, suffix string) (ImageRef, error)
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// DirStore is a Store backed by a <root>/<name>/<image> directory tree.
type DirStore struct {
	root string
	now  func() time.Time
}

// NewDirStore creates a store rooted at dir. The directory is created on first save.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir, now: time.Now}
}

func (s *DirStore) Root() string { return s.root }

// List walks the tree. A missing root is an empty store.
func (s *DirStore) List(ctx context.Context) ([]ImageRef, error) {
	dirs, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read enrollment dir: %w", err)
	}

	var refs []ImageRef
	for _, d := range dirs {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		files, err := os.ReadDir(filepath.Join(s.root, d.Name()))
		if err != nil {
			return nil, fmt.Errorf("read enrollment dir %s: %w", d.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			refs = append(refs, ImageRef{
				Name: d.Name(),
				Path: filepath.Join(s.root, d.Name(), f.Name()),
			})
		}
	}

	// os.ReadDir already sorts, this keeps the order explicit.
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].Path < refs[j].Path
	})
	return refs, nil
}

func (s *DirStore) Read(ctx context.Context, ref ImageRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(ref.Path) //nolint:gosec // path comes from List
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref.Path, err)
	}
	return data, nil
}

// Save writes frame as <root>/<name>/<name>_<YYYYMMDD_HHMMSS>_<suffix>.png.
func (s *DirStore) Save(ctx context.Context, name string, frame *imaging.Frame, suffix string) (ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return ImageRef{}, err
	}
	if err := ValidateName(name); err != nil {
		return ImageRef{}, err
	}

	dir := filepath.Join(s.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ImageRef{}, fmt.Errorf("create enrollment folder: %w", err)
	}

	file := fmt.Sprintf("%s_%s_%s.png", name, s.now().Format("20060102_150405"), suffix)
	path := filepath.Join(dir, file)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // name is validated
	if err != nil {
		return ImageRef{}, fmt.Errorf("create enrollment image: %w", err)
	}
	if err := png.Encode(f, frame); err != nil {
		f.Close()
		os.Remove(path)
		return ImageRef{}, fmt.Errorf("encode enrollment image: %w", err)
	}
	if err := f.Close(); err != nil {
		return ImageRef{}, fmt.Errorf("close enrollment image: %w", err)
	}
	return ImageRef{Name: name, Path: path}, nil
}

// ValidateName rejects names that cannot be used as a single directory component.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return errors.New("name is required")
	case trimmed != name:
		return fmt.Errorf("name %q has leading or trailing whitespace", name)
	case name == "." || name == "..":
		return fmt.Errorf("invalid name %q", name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("name %q must not contain path separators", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("name %q must not start with a dot", name)
	}
	return nil
}

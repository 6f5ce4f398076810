package gallery

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/provider/mock"
)

func solidFrame(c color.RGBA) *imaging.Frame {
	f := imaging.NewFrame(8, 8, imaging.RGB)
	for y := range 8 {
		for x := range 8 {
			f.Set(x, y, c)
		}
	}
	return f
}

// colorProvider derives the face from the frame color: black frames have no
// face, blue frames give a 3-dim embedding, everything else a 2-dim one.
func colorProvider() *mock.MockProvider {
	p := mock.NewMockProvider()
	p.FacesFunc = func(call int, f *imaging.Frame) []mock.Face {
		c := f.At(0, 0).(color.RGBA)
		box := image.Rect(0, 0, 4, 4)
		switch {
		case c.R == 0 && c.G == 0 && c.B == 0:
			return nil
		case c.B > 0:
			return []mock.Face{{Box: box, Embedding: facematch.Embedding{1, 1, 1}}}
		default:
			return []mock.Face{{Box: box, Embedding: facematch.Embedding{float32(c.R) / 255, float32(c.G) / 255}}}
		}
	}
	return p
}

type memCache struct {
	mu    sync.Mutex
	items map[string]facematch.Embedding
	gets  int
	saves int
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string]facematch.Embedding)}
}

func (c *memCache) GetEmbedding(ctx context.Context, hash, model string) (facematch.Embedding, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	emb, ok := c.items[hash+"/"+model]
	return emb, ok, nil
}

func (c *memCache) SaveEmbedding(ctx context.Context, hash, model, name, path string, emb facematch.Embedding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	c.items[hash+"/"+model] = emb
	return nil
}

func saveFrame(t *testing.T, store *DirStore, name string, f *imaging.Frame, suffix string) ImageRef {
	t.Helper()
	ref, err := store.Save(context.Background(), name, f, suffix)
	if err != nil {
		t.Fatalf("Save(%s): %v", name, err)
	}
	return ref
}

func TestDirStore_SaveAndList(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir)
	store.now = func() time.Time { return time.Date(2024, 9, 1, 8, 30, 5, 0, time.UTC) }

	ref := saveFrame(t, store, "Bob", solidFrame(color.RGBA{R: 255, A: 255}), "upload")
	saveFrame(t, store, "Alice", solidFrame(color.RGBA{G: 255, A: 255}), "0")

	expected := filepath.Join(dir, "Bob", "Bob_20240901_083005_upload.png")
	if ref.Path != expected {
		t.Errorf("expected path %s, got %s", expected, ref.Path)
	}

	// Non-image files and hidden dirs are ignored.
	os.WriteFile(filepath.Join(dir, "Bob", "notes.txt"), []byte("x"), 0o600)
	os.MkdirAll(filepath.Join(dir, ".cache"), 0o755)

	refs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 images, got %d: %v", len(refs), refs)
	}
	if refs[0].Name != "Alice" || refs[1].Name != "Bob" {
		t.Errorf("expected sorted names, got %v", refs)
	}
}

func TestDirStore_ListMissingRoot(t *testing.T) {
	store := NewDirStore(filepath.Join(t.TempDir(), "missing"))

	refs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("expected missing root to be empty, got %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected no images, got %d", len(refs))
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"Alice", true},
		{"Jan Novák", true},
		{"", false},
		{"  ", false},
		{" Alice", false},
		{"..", false},
		{"a/b", false},
		{`a\b`, false},
		{".hidden", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if (err == nil) != tt.valid {
				t.Errorf("ValidateName(%q) error = %v, want valid=%v", tt.name, err, tt.valid)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir)

	saveFrame(t, store, "Alice", solidFrame(color.RGBA{R: 255, A: 255}), "0")
	saveFrame(t, store, "Bob", solidFrame(color.RGBA{G: 255, A: 255}), "0")
	saveFrame(t, store, "Carol", solidFrame(color.RGBA{A: 255}), "0")        // no face
	saveFrame(t, store, "Dave", solidFrame(color.RGBA{B: 255, A: 255}), "0") // wrong dimension
	os.MkdirAll(filepath.Join(dir, "Eve"), 0o755)
	os.WriteFile(filepath.Join(dir, "Eve", "broken.jpg"), []byte("garbage"), 0o600)

	g, report, err := Load(context.Background(), store, colorProvider(), LoadOptions{Model: "hog"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if g.Len() != 2 || report.Loaded != 2 {
		t.Fatalf("expected 2 loaded entries, got %d (report %d)", g.Len(), report.Loaded)
	}
	names := g.Names()
	if names[0] != "Alice" || names[1] != "Bob" {
		t.Errorf("expected [Alice Bob], got %v", names)
	}
	if g.Dim() != 2 {
		t.Errorf("expected dim 2, got %d", g.Dim())
	}

	skipped := map[string]string{}
	for _, s := range report.Skipped {
		skipped[s.Name] = s.Reason
	}
	if len(skipped) != 3 {
		t.Fatalf("expected 3 skipped images, got %v", report.Skipped)
	}
	if !strings.Contains(skipped["Carol"], "no face") {
		t.Errorf("expected Carol skipped for no face, got %q", skipped["Carol"])
	}
	if !strings.Contains(skipped["Dave"], "dimension") {
		t.Errorf("expected Dave skipped for dimension, got %q", skipped["Dave"])
	}
	if skipped["Eve"] == "" {
		t.Error("expected Eve skipped for undecodable image")
	}
}

func TestLoad_EmptyStore(t *testing.T) {
	g, report, err := Load(context.Background(), NewDirStore(t.TempDir()), colorProvider(), LoadOptions{})
	if err != nil {
		t.Fatalf("expected empty store to load, got %v", err)
	}
	if g.Len() != 0 || report.Loaded != 0 {
		t.Errorf("expected empty gallery, got %d", g.Len())
	}
	if m := g.Match(facematch.Embedding{0, 0}, 0.55); m.Matched {
		t.Error("expected empty gallery to never match")
	}
}

func TestLoad_ProviderErrorSkipsImage(t *testing.T) {
	store := NewDirStore(t.TempDir())
	saveFrame(t, store, "Alice", solidFrame(color.RGBA{R: 255, A: 255}), "0")

	p := colorProvider()
	p.DetectError = errors.New("embedding server down")

	g, report, err := Load(context.Background(), store, p, LoadOptions{})
	if err != nil {
		t.Fatalf("expected provider failure to be an exclusion, got %v", err)
	}
	if g.Len() != 0 || len(report.Skipped) != 1 {
		t.Errorf("expected Alice skipped, got len=%d skipped=%v", g.Len(), report.Skipped)
	}
}

func TestLoad_UsesCache(t *testing.T) {
	store := NewDirStore(t.TempDir())
	saveFrame(t, store, "Alice", solidFrame(color.RGBA{R: 255, A: 255}), "0")
	cache := newMemCache()

	p := colorProvider()
	if _, _, err := Load(context.Background(), store, p, LoadOptions{Model: "hog", Cache: cache}); err != nil {
		t.Fatal(err)
	}
	if cache.saves != 1 || p.DetectCalls != 1 {
		t.Fatalf("expected one provider call and one cache save, got %d/%d", p.DetectCalls, cache.saves)
	}

	g, report, err := Load(context.Background(), store, p, LoadOptions{Model: "hog", Cache: cache})
	if err != nil {
		t.Fatal(err)
	}
	if p.DetectCalls != 1 {
		t.Errorf("expected cached load to skip the provider, got %d calls", p.DetectCalls)
	}
	if report.Cached != 1 || g.Len() != 1 {
		t.Errorf("expected 1 cached entry, got cached=%d len=%d", report.Cached, g.Len())
	}

	// A different model misses the cache.
	if _, _, err := Load(context.Background(), store, p, LoadOptions{Model: "cnn", Cache: cache}); err != nil {
		t.Fatal(err)
	}
	if p.DetectCalls != 2 {
		t.Errorf("expected model change to re-embed, got %d calls", p.DetectCalls)
	}
}

func TestLoad_Cancelled(t *testing.T) {
	store := NewDirStore(t.TempDir())
	saveFrame(t, store, "Alice", solidFrame(color.RGBA{R: 255, A: 255}), "0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := Load(ctx, store, colorProvider(), LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNew_RejectsMismatchedDimensions(t *testing.T) {
	g, rejected := New([]Entry{
		{Name: "a", Embedding: facematch.Embedding{1, 2}},
		{Name: "b", Embedding: facematch.Embedding{1, 2, 3}},
		{Name: "c", Embedding: nil},
		{Name: "a", Embedding: facematch.Embedding{3, 4}},
	})

	if g.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", g.Len())
	}
	if len(rejected) != 2 {
		t.Errorf("expected 2 rejected entries, got %d", len(rejected))
	}

	ids := g.Identities()
	if len(ids) != 1 || ids[0].Name != "a" || ids[0].Images != 2 {
		t.Errorf("expected one identity with 2 images, got %v", ids)
	}
}

func TestNew_RejectsNonFiniteEmbeddings(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	g, rejected := New([]Entry{
		{Name: "Broken", Embedding: facematch.Embedding{nan, 0}},
		{Name: "Huge", Embedding: facematch.Embedding{0, inf, 0}},
		{Name: "Alice", Embedding: facematch.Embedding{0, 0}},
	})

	if len(rejected) != 2 || g.Len() != 1 || g.Dim() != 2 {
		t.Fatalf("expected only Alice with dim 2, got len %d dim %d rejected %v", g.Len(), g.Dim(), rejected)
	}
	if reason := g.RejectReason(rejected[0]); !strings.Contains(reason, "NaN") {
		t.Errorf("unexpected reason %q", reason)
	}

	got := g.Match(facematch.Embedding{0, 0}, 0.6)
	if !got.Matched || got.Name != "Alice" {
		t.Errorf("expected exact match for Alice, got %+v", got)
	}
}

func TestLoad_SkipsNonFiniteEmbedding(t *testing.T) {
	store := NewDirStore(t.TempDir())
	saveFrame(t, store, "Alice", solidFrame(color.RGBA{R: 255, A: 255}), "0")
	saveFrame(t, store, "Bob", solidFrame(color.RGBA{G: 255, A: 255}), "0")

	p := mock.NewMockProvider()
	p.FacesFunc = func(call int, f *imaging.Frame) []mock.Face {
		emb := facematch.Embedding{0, 0}
		if f.At(0, 0).(color.RGBA).R > 0 {
			emb = facematch.Embedding{float32(math.NaN()), 0}
		}
		return []mock.Face{{Box: image.Rect(0, 0, 4, 4), Embedding: emb}}
	}

	g, report, err := Load(context.Background(), store, p, LoadOptions{Model: "hog"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g.Len() != 1 || g.Names()[0] != "Bob" {
		t.Fatalf("expected only Bob, got %v", g.Names())
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Name != "Alice" || !strings.Contains(report.Skipped[0].Reason, "NaN") {
		t.Errorf("expected Alice skipped for NaN, got %+v", report.Skipped)
	}
	if got := g.Match(facematch.Embedding{0, 0}, 0.6); got.Name != "Bob" {
		t.Errorf("expected Bob to match, got %+v", got)
	}
}

func TestHolder_Reload(t *testing.T) {
	first, _ := New([]Entry{{Name: "Alice", Embedding: facematch.Embedding{0, 0}}})
	h := NewHolder(first)

	session := h.Get()

	second, _ := New([]Entry{{Name: "Bob", Embedding: facematch.Embedding{0, 0}}})
	report, err := h.Reload(context.Background(), func(ctx context.Context) (*Gallery, LoadReport, error) {
		return second, LoadReport{Loaded: 1}, nil
	})
	if err != nil || report.Loaded != 1 {
		t.Fatalf("Reload: %v, %+v", err, report)
	}

	if h.Get().Names()[0] != "Bob" {
		t.Error("expected new sessions to see the reloaded gallery")
	}
	if session.Names()[0] != "Alice" {
		t.Error("expected a running session to keep its gallery")
	}
}

func TestHolder_ReloadErrorKeepsGallery(t *testing.T) {
	h := NewHolder(nil)
	if h.Get() == nil || h.Get().Len() != 0 {
		t.Fatal("expected empty initial gallery")
	}

	_, err := h.Reload(context.Background(), func(ctx context.Context) (*Gallery, LoadReport, error) {
		return nil, LoadReport{}, errors.New("store unreadable")
	})
	if err == nil {
		t.Fatal("expected reload error")
	}
	if h.Get() == nil {
		t.Error("expected previous gallery to be kept")
	}
}

func TestIndex_Conflicts(t *testing.T) {
	g, _ := New([]Entry{
		{Name: "Alice", Embedding: facematch.Embedding{0, 0}},
		{Name: "Bob", Embedding: facematch.Embedding{0.3, 0}},
		{Name: "Carol", Embedding: facematch.Embedding{5, 5}},
	})
	idx := NewIndex(g)

	neighbors, err := idx.Nearest(facematch.Embedding{0, 0}, 2)
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if len(neighbors) != 2 || neighbors[0].Entry.Name != "Alice" || neighbors[1].Entry.Name != "Bob" {
		t.Errorf("unexpected neighbors %v", neighbors)
	}

	// Enrolling "alice" again only conflicts with Bob.
	conflicts, err := idx.Conflicts("alice", facematch.Embedding{0.1, 0}, 3, 0.55)
	if err != nil {
		t.Fatalf("Conflicts: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].Entry.Name != "Bob" {
		t.Errorf("expected conflict with Bob, got %v", conflicts)
	}
}

func TestIndex_Empty(t *testing.T) {
	idx := NewIndex(Empty())

	neighbors, err := idx.Nearest(facematch.Embedding{1, 2}, 3)
	if err != nil || len(neighbors) != 0 {
		t.Errorf("expected no neighbors from empty index, got %v, %v", neighbors, err)
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	g, _ := New([]Entry{{Name: "Alice", Embedding: facematch.Embedding{0, 0}}})

	if _, err := NewIndex(g).Nearest(facematch.Embedding{0, 0, 0}, 1); err == nil {
		t.Error("expected error for mismatched query")
	}
}

func TestEnroll(t *testing.T) {
	store := NewDirStore(t.TempDir())
	p := colorProvider()

	existing, _ := New([]Entry{
		{Name: "Bob", Embedding: facematch.Embedding{1, 0}},
	})

	// Red frame embeds to {1, 0}, right on top of Bob.
	res, err := Enroll(context.Background(), store, p, existing, "Alice", solidFrame(color.RGBA{R: 255, A: 255}), "upload", 0.55)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if res.Image.Name != "Alice" || !strings.HasSuffix(res.Image.Path, "_upload.png") {
		t.Errorf("unexpected image %+v", res.Image)
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0].Entry.Name != "Bob" {
		t.Errorf("expected conflict with Bob, got %v", res.Conflicts)
	}

	refs, err := store.List(context.Background())
	if err != nil || len(refs) != 1 {
		t.Fatalf("expected saved image, got %v, %v", refs, err)
	}
}

func TestEnroll_NoFace(t *testing.T) {
	store := NewDirStore(t.TempDir())

	_, err := Enroll(context.Background(), store, colorProvider(), nil, "Alice", solidFrame(color.RGBA{A: 255}), "upload", 0.55)
	if err == nil {
		t.Fatal("expected error for frame without a face")
	}
	refs, _ := store.List(context.Background())
	if len(refs) != 0 {
		t.Errorf("nothing should be saved, got %v", refs)
	}
}

func TestEnroll_InvalidName(t *testing.T) {
	p := colorProvider()
	if _, err := Enroll(context.Background(), NewDirStore(t.TempDir()), p, nil, "../x", solidFrame(color.RGBA{R: 255, A: 255}), "upload", 0.55); err == nil {
		t.Error("expected invalid name error")
	}
	if p.DetectCalls != 0 {
		t.Error("provider should not be called for an invalid name")
	}
}

func TestEnroll_ReportsDuplicatePhoto(t *testing.T) {
	store := NewDirStore(t.TempDir())
	tick := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	p := colorProvider()
	red := solidFrame(color.RGBA{R: 255, A: 255})

	first, err := Enroll(context.Background(), store, p, nil, "Alice", red, "upload", 0.55)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if len(first.Duplicates) != 0 {
		t.Errorf("first photo has no duplicates, got %v", first.Duplicates)
	}

	second, err := Enroll(context.Background(), store, p, nil, "Alice", red, "upload", 0.55)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if len(second.Duplicates) != 1 || second.Duplicates[0] != first.Image.Path {
		t.Errorf("expected duplicate of %s, got %v", first.Image.Path, second.Duplicates)
	}

	other, err := Enroll(context.Background(), store, p, nil, "Bob", red, "upload", 0.55)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if len(other.Duplicates) != 0 {
		t.Errorf("photos of other people are not duplicates, got %v", other.Duplicates)
	}
}

package capture

import (
	"context"
	"fmt"
	"sort"
)

// VideoOpener opens a video file as a frame source.
type VideoOpener func(ctx context.Context, path string) (Source, error)

var videoBackends = map[string]VideoOpener{
	"ffmpeg": func(ctx context.Context, path string) (Source, error) {
		return OpenVideo(ctx, path)
	},
}

// RegisterVideoBackend adds a video decoder. Backends behind build tags call this from init.
func RegisterVideoBackend(name string, open VideoOpener) {
	videoBackends[name] = open
}

// VideoBackends lists the registered decoder names.
func VideoBackends() []string {
	names := make([]string, 0, len(videoBackends))
	for name := range videoBackends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenVideoFile opens path with the named backend ("ffmpeg" when empty).
func OpenVideoFile(ctx context.Context, backend, path string) (Source, error) {
	if backend == "" {
		backend = "ffmpeg"
	}
	open, ok := videoBackends[backend]
	if !ok {
		return nil, fmt.Errorf("unknown video backend %q (available: %v)", backend, VideoBackends())
	}
	return open(ctx, path)
}

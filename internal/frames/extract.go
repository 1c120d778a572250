package frames

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"sentryvision/internal/model"
)

// Extractor turns a video file into an ordered sequence of still frames.
// The pipeline depends only on this contract; the concrete decoder is a
// process boundary.
type Extractor interface {
	Extract(ctx context.Context, videoPath string, fps float64, maxSeconds int) ([]model.FrameRef, error)
}

// FFmpegExtractor shells out to ffmpeg. Frame files are prefixed with a fresh
// UUID per invocation so concurrent extractions into the same directory
// cannot collide.
type FFmpegExtractor struct {
	Bin string
	Dir string
}

func NewFFmpegExtractor(bin, dir string) (*FFmpegExtractor, error) {
	if bin == "" {
		bin = "ffmpeg"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FFmpegExtractor{Bin: bin, Dir: dir}, nil
}

func (e *FFmpegExtractor) Extract(ctx context.Context, videoPath string, fps float64, maxSeconds int) ([]model.FrameRef, error) {
	if fps <= 0 {
		fps = 1
	}
	if maxSeconds <= 0 {
		maxSeconds = 60
	}
	uid := uuid.NewString()
	pattern := filepath.Join(e.Dir, uid+"-%04d.jpg")
	args := extractArgs(videoPath, fps, maxSeconds, pattern)

	cmd := exec.CommandContext(ctx, e.Bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg %s: %w: %s", videoPath, err, strings.TrimSpace(string(out)))
	}

	entries, err := os.ReadDir(e.Dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, 64)
	for _, ent := range entries {
		name := ent.Name()
		if strings.HasPrefix(name, uid) && strings.HasSuffix(name, ".jpg") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	refs := make([]model.FrameRef, 0, len(names))
	for i, name := range names {
		refs = append(refs, model.FrameRef{Index: i, Path: filepath.Join(e.Dir, name)})
	}
	return refs, nil
}

func extractArgs(videoPath string, fps float64, maxSeconds int, outPattern string) []string {
	maxFrames := int(math.Ceil(fps * float64(maxSeconds)))
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%g", fps),
		"-frames:v", fmt.Sprintf("%d", maxFrames),
		outPattern,
	}
}

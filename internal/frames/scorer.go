package frames

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/sync/errgroup"

	"sentryvision/internal/model"
)

// Scorer computes a scalar motion magnitude for each adjacent frame pair:
// both frames are downsampled to a fixed width, converted to grayscale, and
// compared by mean absolute per-pixel intensity difference.
type Scorer struct {
	width       int
	concurrency int
	logger      *slog.Logger
}

func NewScorer(downsampleWidth, concurrency int, logger *slog.Logger) *Scorer {
	if downsampleWidth <= 0 {
		downsampleWidth = 320
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Scorer{width: downsampleWidth, concurrency: concurrency, logger: logger}
}

type grayFrame struct {
	pix  []uint8
	w, h int
}

// Score returns one MotionScore per adjacent pair, ordered by index. Fewer
// than two frames yields an empty result. A frame that fails to decode drops
// only the pairs touching it; the rest of the clip is still scored.
func (s *Scorer) Score(ctx context.Context, refs []model.FrameRef) ([]model.MotionScore, error) {
	if len(refs) < 2 {
		return nil, nil
	}

	grays := make([]*grayFrame, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range refs {
		ref := refs[i]
		idx := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gf, err := s.loadGray(ref.Path)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("frame decode failed, skipping", "index", ref.Index, "path", ref.Path, "err", err)
				}
				return nil
			}
			grays[idx] = gf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	decoded := 0
	for _, gf := range grays {
		if gf != nil {
			decoded++
		}
	}
	if decoded < 2 {
		return nil, fmt.Errorf("fewer than two readable frames out of %d", len(refs))
	}

	scores := make([]model.MotionScore, 0, len(refs)-1)
	for i := 1; i < len(refs); i++ {
		prev, cur := grays[i-1], grays[i]
		if prev == nil || cur == nil {
			continue
		}
		scores = append(scores, model.MotionScore{
			Index:     refs[i].Index,
			Magnitude: meanAbsDiff(prev, cur),
		})
	}
	return scores, nil
}

func (s *Scorer) loadGray(path string) (*grayFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return downsampleGray(img, s.width), nil
}

// downsampleGray resamples by nearest neighbour to the target width, keeping
// aspect ratio, then reduces to 8-bit luminance.
func downsampleGray(img image.Image, width int) *grayFrame {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW <= 0 || srcH <= 0 {
		return &grayFrame{}
	}
	w := width
	if srcW < w {
		w = srcW
	}
	h := srcH * w / srcW
	if h < 1 {
		h = 1
	}
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		sy := b.Min.Y + y*srcH/h
		for x := 0; x < w; x++ {
			sx := b.Min.X + x*srcW/w
			r, g, bl, _ := img.At(sx, sy).RGBA()
			// BT.601 luma on 16-bit channels, scaled back to 8 bits.
			lum := (299*r + 587*g + 114*bl) / 1000
			pix[y*w+x] = uint8(lum >> 8)
		}
	}
	return &grayFrame{pix: pix, w: w, h: h}
}

func meanAbsDiff(a, b *grayFrame) float64 {
	w := a.w
	if b.w < w {
		w = b.w
	}
	h := a.h
	if b.h < h {
		h = b.h
	}
	if w == 0 || h == 0 {
		return 0
	}
	var sum float64
	for y := 0; y < h; y++ {
		ra := a.pix[y*a.w : y*a.w+w]
		rb := b.pix[y*b.w : y*b.w+w]
		for x := 0; x < w; x++ {
			sum += math.Abs(float64(ra[x]) - float64(rb[x]))
		}
	}
	return sum / float64(w*h)
}

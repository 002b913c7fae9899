package camera

import (
	"context"
	"image"
	"image/color"
	"strconv"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"camfs/internal/model"
)

var bars = []color.RGBA{
	{0xc0, 0xc0, 0xc0, 0xff},
	{0xc0, 0xc0, 0x00, 0xff},
	{0x00, 0xc0, 0xc0, 0xff},
	{0x00, 0xc0, 0x00, 0xff},
	{0xc0, 0x00, 0xc0, 0xff},
	{0xc0, 0x00, 0x00, 0xff},
	{0x00, 0x00, 0xc0, 0xff},
}

// Pattern renders colour bars with a sweeping marker and a frame counter
// stamped with the capture time.
type Pattern struct {
	width   int
	height  int
	quality int
	label   string
	now     func() time.Time

	mu    sync.Mutex
	count uint64
}

var _ model.Camera = (*Pattern)(nil)

func NewPattern(width int, height int, label string) *Pattern {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Pattern{
		width:   width,
		height:  height,
		quality: DefaultQuality,
		label:   label,
		now:     time.Now,
	}
}

func (pattern *Pattern) Capture(ctx context.Context) (*model.Frame, error) {
	pattern.mu.Lock()
	pattern.count++
	count := pattern.count
	pattern.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, pattern.width, pattern.height))
	step := (pattern.width + len(bars) - 1) / len(bars)
	for i, bar := range bars {
		rect := image.Rect(i*step, 0, min((i+1)*step, pattern.width), pattern.height)
		draw.Draw(img, rect, &image.Uniform{C: bar}, image.Point{}, draw.Src)
	}

	sweep := int(count % uint64(pattern.width))
	draw.Draw(img, image.Rect(sweep, 0, min(sweep+4, pattern.width), pattern.height), image.White, image.Point{}, draw.Src)

	banner := image.Rect(0, pattern.height-20, pattern.width, pattern.height)
	draw.Draw(img, banner, image.Black, image.Point{}, draw.Src)
	drawer := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, pattern.height-6),
	}
	drawer.DrawString(pattern.label + ` ` + pattern.now().Format(`2006-01-02 15:04:05.000`) + ` #` + strconv.FormatUint(count, 10))

	return encode(ctx, img, pattern.quality)
}

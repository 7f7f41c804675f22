package loaders

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"github.com/spaghettifunk/anima-resources/engine/resources"
)

const ImageVersion uint32 = 1

/**
 * @brief A structure to hold image resource data.
 */
type ImageResourceData struct {
	/** @brief The number of channels. */
	ChannelCount uint8
	/** @brief The width of the image. */
	Width uint32
	/** @brief The height of the image. */
	Height uint32
	/** @brief The pixel data of the image, RGBA, rows top to bottom. */
	Pixels []uint8
}

// ImageLoader decodes PNG, JPEG and BMP payloads into RGBA pixels held
// in allocator memory.
type ImageLoader struct {
	/** @brief Indicates if the image should be flipped on the y-axis when loaded. */
	FlipY bool
}

func (il *ImageLoader) Load(f resources.File, a resources.Allocator) (any, error) {
	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", f.ID(), err)
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	pixels := a.Allocate(w * h * 4)
	dst := &image.RGBA{Pix: pixels, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	draw.Draw(dst, dst.Rect, src, bounds.Min, draw.Src)

	if il.FlipY {
		flipRows(pixels, w*4, h)
	}
	return &ImageResourceData{
		ChannelCount: 4,
		Width:        uint32(w),
		Height:       uint32(h),
		Pixels:       pixels,
	}, nil
}

func flipRows(pixels []uint8, stride, rows int) {
	tmp := make([]uint8, stride)
	for top, bottom := 0, rows-1; top < bottom; top, bottom = top+1, bottom-1 {
		t := pixels[top*stride : (top+1)*stride]
		b := pixels[bottom*stride : (bottom+1)*stride]
		copy(tmp, t)
		copy(t, b)
		copy(b, tmp)
	}
}

func (il *ImageLoader) Unload(a resources.Allocator, data any) {
	if img, ok := data.(*ImageResourceData); ok {
		a.Deallocate(img.Pixels)
	}
}

func (il *ImageLoader) Online(name resources.StringID, m resources.Manager) {}

func (il *ImageLoader) Offline(name resources.StringID, m resources.Manager) {}

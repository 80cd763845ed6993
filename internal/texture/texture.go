// Package texture decodes blend map images and converts them to NRGBA.
//
// Decoding dispatches on magic bytes rather than image.Decode: the TGA decoder
// registers with an empty magic and would otherwise claim every input. TGA is
// chosen by file name instead.
package texture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrUnknownFormat is returned when no decoder accepts the data.
var ErrUnknownFormat = errors.New("unknown image format")

// Extensions lists the file extensions Load accepts, lowercase with dot.
var Extensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tga", ".webp"}

type format struct {
	name   string
	match  func(head []byte) bool
	decode func(io.Reader) (image.Image, error)
}

var formats = []format{
	{"png", prefix("\x89PNG\r\n\x1a\n"), png.Decode},
	{"jpeg", prefix("\xff\xd8"), jpeg.Decode},
	{"bmp", prefix("BM"), bmp.Decode},
	{"webp", func(h []byte) bool {
		return len(h) >= 12 && string(h[:4]) == "RIFF" && string(h[8:12]) == "WEBP"
	}, nativewebp.Decode},
}

func prefix(magic string) func([]byte) bool {
	return func(h []byte) bool { return bytes.HasPrefix(h, []byte(magic)) }
}

// Decode decodes a PNG, JPEG, BMP or WebP image from r and returns it as
// NRGBA along with the format name.
func Decode(r io.Reader) (*image.NRGBA, string, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(12)
	for _, f := range formats {
		if !f.match(head) {
			continue
		}
		img, err := f.decode(br)
		if err != nil {
			return nil, f.name, fmt.Errorf("decode %s: %w", f.name, err)
		}
		return ToNRGBA(img), f.name, nil
	}
	return nil, "", ErrUnknownFormat
}

// DecodeBytes decodes an image held in memory. hint is a file name or
// extension; a .tga hint selects the TGA decoder.
func DecodeBytes(data []byte, hint string) (*image.NRGBA, string, error) {
	if strings.EqualFold(filepath.Ext(hint), ".tga") || strings.EqualFold(hint, "tga") {
		img, err := tga.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "tga", fmt.Errorf("decode tga: %w", err)
		}
		return ToNRGBA(img), "tga", nil
	}
	return Decode(bytes.NewReader(data))
}

// Load reads and decodes the image at path.
func Load(path string) (*image.NRGBA, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texture: read %s: %w", path, err)
	}
	img, _, err := DecodeBytes(data, path)
	if err != nil {
		return nil, fmt.Errorf("texture: %s: %w", path, err)
	}
	return img, nil
}

// Supported reports whether path has an extension Load accepts.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ToNRGBA converts any image to NRGBA, rebased to a (0,0) origin.
func ToNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Resize scales img to w x h with Catmull-Rom filtering on premultiplied
// color, so transparent texels do not darken their neighbours.
func Resize(img *image.NRGBA, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}

	premul := image.NewRGBA(b)
	draw.Draw(premul, b, img, b.Min, draw.Src)

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), premul, b, draw.Src, nil)

	out := image.NewNRGBA(scaled.Bounds())
	draw.Draw(out, out.Bounds(), scaled, image.Point{}, draw.Src)
	return out
}

package media

import (
	"bytes"
	"image"

	// Feeds increasingly serve WebP; register its decoder for imaging.Decode.
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

// Transcoder turns a source image into JPEG variants.
type Transcoder struct {
	Quality    int
	BaseMax    int // longest side of the base variant
	MediumSize int
	SmallSize  int
}

// Transcode decodes data (JPEG, PNG, GIF or WebP, EXIF orientation applied)
// and returns every variant encoded as JPEG. Images smaller than a variant
// size are not upscaled.
func (t Transcoder) Transcode(data []byte) (map[Variant][]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}

	sizes := map[Variant]int{
		VariantBase:   t.BaseMax,
		VariantMedium: t.MediumSize,
		VariantSmall:  t.SmallSize,
	}
	out := make(map[Variant][]byte, len(sizes))
	for _, v := range Variants {
		encoded, err := t.encode(fit(img, sizes[v]))
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s variant", v)
		}
		out[v] = encoded
	}
	return out, nil
}

func (t Transcoder) encode(img image.Image) ([]byte, error) {
	quality := t.Quality
	if quality <= 0 || quality > 100 {
		quality = 82
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fit(img image.Image, size int) image.Image {
	if size <= 0 {
		return img
	}
	return imaging.Fit(img, size, size, imaging.Lanczos)
}

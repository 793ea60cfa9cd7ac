package akaze

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/philippefoubert/akaze/utils"
	"golang.org/x/image/bmp"
)

// DecodeImage decodes an image file to type image.Image.
func DecodeImage(src string) (image.Image, error) {
	file, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("could not open the source file: %v", err)
	}
	defer file.Close()

	ctype, err := utils.DetectContentType(file.Name())
	if err != nil {
		return nil, err
	}

	if !strings.Contains(ctype.(string), "image") {
		return nil, fmt.Errorf("the source should be an image file")
	}

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("could not decode the source file: %v", err)
	}

	return img, nil
}

// EncodeImage encodes an image to a destination of type io.Writer,
// picking the codec from the file extension and defaulting to JPEG for
// generic writers like pipes.
func EncodeImage(w io.Writer, img image.Image) error {
	if f, ok := w.(*os.File); ok {
		switch filepath.Ext(f.Name()) {
		case "", ".jpg", ".jpeg":
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
		case ".png":
			return png.Encode(w, img)
		case ".bmp":
			return bmp.Encode(w, img)
		default:
			return errors.New("unsupported image format")
		}
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
}

// DrawKeypoints renders the keypoints over a copy of the source image,
// a circle per keypoint with the radius showing the feature scale and a
// tick showing the dominant orientation.
func DrawKeypoints(src image.Image, kpts []Keypoint, c color.NRGBA) *image.NRGBA {
	dst := imgToNRGBA(src)

	for _, kpt := range kpts {
		cx := fRound(kpt.X)
		cy := fRound(kpt.Y)
		radius := fRound(0.5 * kpt.Size)
		if radius < 1 {
			radius = 1
		}
		drawCircle(dst, cx, cy, radius, c)

		angle := float64(kpt.Angle) * math.Pi / 180.0
		drawTick(dst, cx, cy, radius, angle, c)
	}
	return dst
}

// drawCircle plots the circle outline with the midpoint algorithm.
func drawCircle(dst *image.NRGBA, cx, cy, r int, c color.NRGBA) {
	x, y := r, 0
	err := 1 - r

	for x >= y {
		setPix(dst, cx+x, cy+y, c)
		setPix(dst, cx+y, cy+x, c)
		setPix(dst, cx-y, cy+x, c)
		setPix(dst, cx-x, cy+y, c)
		setPix(dst, cx-x, cy-y, c)
		setPix(dst, cx-y, cy-x, c)
		setPix(dst, cx+y, cy-x, c)
		setPix(dst, cx+x, cy-y, c)

		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
}

// drawTick plots the orientation segment from the center to the circle.
func drawTick(dst *image.NRGBA, cx, cy, r int, angle float64, c color.NRGBA) {
	dx := math.Cos(angle)
	dy := math.Sin(angle)
	for t := 0; t <= r; t++ {
		setPix(dst, cx+int(dx*float64(t)), cy+int(dy*float64(t)), c)
	}
}

func setPix(dst *image.NRGBA, x, y int, c color.NRGBA) {
	if image.Pt(x, y).In(dst.Bounds()) {
		dst.SetNRGBA(x, y, c)
	}
}

// imgToNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
func imgToNRGBA(img image.Image) *image.NRGBA {
	srcBounds := img.Bounds()
	srcMinX := srcBounds.Min.X
	srcMinY := srcBounds.Min.Y

	dstBounds := srcBounds.Sub(srcBounds.Min)
	dstW := dstBounds.Dx()
	dstH := dstBounds.Dy()
	dst := image.NewNRGBA(dstBounds)

	switch src := img.(type) {
	case *image.NRGBA:
		rowSize := srcBounds.Dx() * 4
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			si := src.PixOffset(srcMinX, srcMinY+dstY)
			copy(dst.Pix[di:di+rowSize], src.Pix[si:si+rowSize])
		}
	case *image.YCbCr:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				srcX := srcMinX + dstX
				srcY := srcMinY + dstY
				siy := src.YOffset(srcX, srcY)
				sic := src.COffset(srcX, srcY)
				r, g, b := color.YCbCrToRGB(src.Y[siy], src.Cb[sic], src.Cr[sic])
				dst.Pix[di+0] = r
				dst.Pix[di+1] = g
				dst.Pix[di+2] = b
				dst.Pix[di+3] = 0xff
				di += 4
			}
		}
	default:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				c := color.NRGBAModel.Convert(img.At(srcMinX+dstX, srcMinY+dstY)).(color.NRGBA)
				dst.Pix[di+0] = c.R
				dst.Pix[di+1] = c.G
				dst.Pix[di+2] = c.B
				dst.Pix[di+3] = c.A
				di += 4
			}
		}
	}

	return dst
}

// Package imaging turns a rasterized proto.Frame into on-disk forms: a
// single-page PNG and a multi-frame PDF, adapted from a JPEG/TIFF
// page-combining PDF writer to the single-channel 16-bit grids this device
// produces.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/go-pdf/fpdf"

	"github.com/zavinator/cr35drv/internal/proto"
)

// DefaultDPI is used when a caller does not know the device's physical
// resolution.
const DefaultDPI = 300

// ToImage converts a Frame into a standard library Gray16 image, big-endian
// per image.Gray16's convention (matching the device's own word order once
// decoded from little-endian wire bytes).
func ToImage(f *proto.Frame) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		row := f.Pixels[y*f.Width : (y+1)*f.Width]
		for x, v := range row {
			img.SetGray16(x, y, color.Gray16{Y: v})
		}
	}
	return img
}

// EncodePNG encodes f as a grayscale PNG.
func EncodePNG(f *proto.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, ToImage(f)); err != nil {
		return nil, fmt.Errorf("encode frame PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// WritePNG writes f to path as a grayscale PNG.
func WritePNG(f *proto.Frame, path string) error {
	data, err := EncodePNG(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GenerateSeriesPDF combines frames (one page each, in order) into a PDF in
// memory, sized from each frame's pixel dimensions at dpi.
func GenerateSeriesPDF(frames []*proto.Frame, dpi int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to write")
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	pdf := fpdf.New("P", "mm", "", "")
	pdf.SetAutoPageBreak(false, 0)

	for i, f := range frames {
		widthMM := float64(f.Width) / float64(dpi) * 25.4
		heightMM := float64(f.Height) / float64(dpi) * 25.4

		pdf.AddPageFormat("P", fpdf.SizeType{Wd: widthMM, Ht: heightMM})

		pngData, err := EncodePNG(f)
		if err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", i+1, err)
		}
		name := fmt.Sprintf("frame%d", i)
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(pngData))
		pdf.ImageOptions(name, 0, 0, widthMM, heightMM, false, fpdf.ImageOptions{}, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("generate PDF: %w", err)
	}
	return out.Bytes(), nil
}

// WriteSeriesPDF writes the combined PDF for frames to outputPath.
func WriteSeriesPDF(frames []*proto.Frame, dpi int, outputPath string) error {
	data, err := GenerateSeriesPDF(frames, dpi)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}

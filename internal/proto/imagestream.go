package proto

import (
	"encoding/binary"
	"encoding/json"
	"log/slog"
)

// Control markers in the little-endian pixel-word stream. Any word
// ≥ markerThreshold is a marker, not a pixel sample.
const (
	markerThreshold uint16 = 0xFFF9
	markerImageEnd  uint16 = 0xFFFB
	markerConfig    uint16 = 0xFFFC
	markerNop       uint16 = 0xFFFD
	markerLineStart uint16 = 0xFFFE
	markerGap       uint16 = 0xFFFF
)

// Segment is a contiguous run of pixels within a ScanLine, tagged with its
// starting column. Pixels holds decoded copies of the sample words, so a
// Segment stays valid after the byte slice passed to Parse is cleared.
type Segment struct {
	XStart int
	Pixels []uint16
}

// Line is an ordered list of Segments plus the logical end column (which
// includes any trailing gap).
type Line struct {
	Segments []Segment
	EndX     int
}

// Frame is the dense, owned rectangular pixel grid produced by rasterizing a
// parsed image. It is disjoint from the ImageBuffer that produced it — safe
// to retain after the buffer is cleared.
type Frame struct {
	Width  int
	Height int
	Pixels []uint16 // row-major, len == Width*Height
}

// ScanInfo holds the fields of the embedded JSON config consumed or logged
// by the parser.
type ScanInfo struct {
	PixLine            int    // AdditionalScanInfo.PixLine; -1 when unknown
	SlotCount          int    // AdditionalScanInfo.SlotCount; logging only
	ManufacturerModel  string // ManufacturerModelName; logging only
	BitsStored         int    // BitsStored; logging only
}

type scanInfoJSON struct {
	ManufacturerModelName string `json:"ManufacturerModelName"`
	BitsStored            int    `json:"BitsStored"`
	AdditionalScanInfo    struct {
		PixLine   int `json:"PixLine"`
		SlotCount int `json:"SlotCount"`
	} `json:"AdditionalScanInfo"`
}

// assembler accumulates Lines while walking the word stream.
type assembler struct {
	lines   []Line
	curLine Line
	curSeg  Segment
	inLine  bool
	x       int
}

func (a *assembler) flushSegment() {
	if len(a.curSeg.Pixels) > 0 {
		a.curLine.Segments = append(a.curLine.Segments, a.curSeg)
	}
	a.curSeg = Segment{}
}

func (a *assembler) flushLine() {
	if !a.inLine {
		return
	}
	a.flushSegment()
	a.curLine.EndX = a.x
	if len(a.curLine.Segments) > 0 {
		a.lines = append(a.lines, a.curLine)
	}
	a.curLine = Line{}
	a.inLine = false
	a.x = 0
}

// Parse walks buf as a sequence of little-endian 16-bit words, interprets
// control markers, and assembles ScanLines. It returns the
// assembled lines and the ScanInfo parsed from the last Config marker seen
// (PixLine == -1 if none was present or it failed to parse).
func Parse(buf []byte) ([]Line, ScanInfo) {
	info := ScanInfo{PixLine: -1}
	a := &assembler{}
	parsingPixels := false

	offset := 0
	for offset+2 <= len(buf) {
		word := binary.LittleEndian.Uint16(buf[offset : offset+2])
		wordOffset := offset
		offset += 2

		if word < markerThreshold {
			if parsingPixels && a.inLine {
				if len(a.curSeg.Pixels) == 0 {
					a.curSeg.XStart = a.x
				}
				a.curSeg.Pixels = append(a.curSeg.Pixels, word)
				a.x++
			}
			continue
		}

		switch word {
		case markerLineStart:
			if offset+2 > len(buf) {
				return a.lines, info // truncated operand: terminate parsing here
			}
			leftX := binary.LittleEndian.Uint16(buf[offset : offset+2])
			offset += 2

			a.flushLine()
			a.curLine = Line{}
			a.curSeg = Segment{}
			a.inLine = true
			a.x = int(leftX)
			parsingPixels = true

		case markerGap:
			if offset+2 > len(buf) {
				return a.lines, info
			}
			skip := binary.LittleEndian.Uint16(buf[offset : offset+2])
			offset += 2

			if a.inLine {
				a.flushSegment()
				a.x += int(skip)
				parsingPixels = true
			}

		case markerConfig:
			if offset+2 > len(buf) {
				return a.lines, info
			}
			n := int(binary.LittleEndian.Uint16(buf[offset : offset+2]))
			offset += 2
			if offset+n > len(buf) {
				return a.lines, info // truncated JSON body: terminate here
			}
			body := buf[offset : offset+n]
			offset += n
			info = parseScanInfo(body)

		case markerNop:
			// no effect

		case markerImageEnd:
			a.flushLine()
			parsingPixels = false

		default:
			slog.Warn("unknown image stream marker", "word", word, "offset", wordOffset)
		}
	}

	a.flushLine()
	return a.lines, info
}

// parseScanInfo decodes the N bytes following a Config marker as Latin-1
// JSON (minus its trailing NUL).
func parseScanInfo(body []byte) ScanInfo {
	if n := len(body); n > 0 && body[n-1] == 0x00 {
		body = body[:n-1]
	}
	utf8 := latin1ToUTF8(body)

	var raw scanInfoJSON
	info := ScanInfo{PixLine: -1}
	if err := json.Unmarshal(utf8, &raw); err != nil {
		slog.Warn("image config JSON parse failed", "err", err)
		return info
	}
	info.ManufacturerModel = raw.ManufacturerModelName
	info.BitsStored = raw.BitsStored
	info.SlotCount = raw.AdditionalScanInfo.SlotCount
	if raw.AdditionalScanInfo.PixLine != 0 {
		info.PixLine = raw.AdditionalScanInfo.PixLine
	}
	slog.Debug("image config parsed",
		"model", info.ManufacturerModel, "bitsStored", info.BitsStored,
		"pixLine", info.PixLine, "slotCount", info.SlotCount)
	return info
}

// latin1ToUTF8 re-encodes a Latin-1 byte string as UTF-8, since the device
// emits 8-bit JSON text that is not valid UTF-8 on its own.
func latin1ToUTF8(b []byte) []byte {
	out := make([]rune, len(b))
	for i, c := range b {
		out[i] = rune(c)
	}
	return []byte(string(out))
}

// Rasterize computes the bounding box across all non-empty segments and
// composites a dense Frame, white (0xFFFF) where no segment covers a pixel.
// It returns a nil Frame when no pixels were found at all.
// If info.PixLine is known, a line whose EndX differs from it is logged as a
// diagnostic warning but still rasterized.
func Rasterize(lines []Line, info ScanInfo) *Frame {
	minLeft := int(^uint(0) >> 1) // max int
	maxRight := 0

	for _, line := range lines {
		for _, seg := range line.Segments {
			if len(seg.Pixels) == 0 {
				continue
			}
			if seg.XStart < minLeft {
				minLeft = seg.XStart
			}
			if right := seg.XStart + len(seg.Pixels); right > maxRight {
				maxRight = right
			}
		}
	}

	if maxRight == 0 {
		return nil
	}

	width := maxRight - minLeft
	height := len(lines)
	pixels := make([]uint16, width*height)
	for i := range pixels {
		pixels[i] = 0xFFFF
	}

	for y, line := range lines {
		if info.PixLine > 0 && line.EndX != info.PixLine {
			slog.Warn("scanline width mismatch", "line", y, "endX", line.EndX, "pixLine", info.PixLine, "segments", len(line.Segments))
		}

		row := pixels[y*width : (y+1)*width]
		for _, seg := range line.Segments {
			if len(seg.Pixels) == 0 {
				continue
			}
			offset := seg.XStart - minLeft
			if offset < 0 {
				continue
			}
			n := len(seg.Pixels)
			if n > width-offset {
				n = width - offset
			}
			if n > 0 {
				copy(row[offset:offset+n], seg.Pixels[:n])
			}
		}
	}

	return &Frame{Width: width, Height: height, Pixels: pixels}
}

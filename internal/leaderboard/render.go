// Package leaderboard renders quiz rankings as a shareable PNG.
package leaderboard

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Entry is one leaderboard line.
type Entry struct {
	Rank      int
	Name      string
	Group     string
	Score     int
	Total     int
	TimeTaken *int
}

// Options controls the rendered image.
type Options struct {
	Title    string
	Subtitle string
	MaxRows  int
	Scale    int
}

const (
	baseWidth  = 420
	rowHeight  = 20
	headHeight = 56
	padding    = 10
	nameChars  = 24
	groupChars = 10
)

var (
	background = color.RGBA{0xF8, 0xF9, 0xFB, 0xFF}
	ink        = color.RGBA{0x1F, 0x29, 0x37, 0xFF}
	muted      = color.RGBA{0x6B, 0x72, 0x80, 0xFF}
	stripe     = color.RGBA{0xEE, 0xF1, 0xF5, 0xFF}
	podium     = [3]color.RGBA{
		{0xFF, 0xD7, 0x00, 0xFF},
		{0xC0, 0xC0, 0xC0, 0xFF},
		{0xCD, 0x7F, 0x32, 0xFF},
	}
)

// Render draws entries into a PNG. Ranks 1 to 3 get gold, silver and bronze rows.
func Render(entries []Entry, opts Options) ([]byte, error) {
	if opts.MaxRows > 0 && len(entries) > opts.MaxRows {
		entries = entries[:opts.MaxRows]
	}
	if opts.Scale < 1 {
		opts.Scale = 2
	}

	rows := len(entries)
	if rows == 0 {
		rows = 1
	}
	height := headHeight + rows*rowHeight + padding
	canvas := image.NewRGBA(image.Rect(0, 0, baseWidth, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	text(canvas, face, ink, padding, 18, truncate(opts.Title, 56))
	if opts.Subtitle != "" {
		text(canvas, face, muted, padding, 34, truncate(opts.Subtitle, 56))
	}
	header := headHeight - 6
	text(canvas, face, muted, padding, header, "#")
	text(canvas, face, muted, padding+30, header, "Student")
	text(canvas, face, muted, padding+210, header, "Group")
	text(canvas, face, muted, padding+290, header, "Score")
	text(canvas, face, muted, padding+350, header, "Time")

	if len(entries) == 0 {
		text(canvas, face, muted, padding, headHeight+14, "No finished attempts yet")
	}

	for i, e := range entries {
		top := headHeight + i*rowHeight
		if bg, ok := rowColor(e.Rank, i); ok {
			draw.Draw(canvas, image.Rect(0, top, baseWidth, top+rowHeight), image.NewUniform(bg), image.Point{}, draw.Src)
		}
		baseline := top + 14
		rank := "-"
		if e.Rank > 0 {
			rank = strconv.Itoa(e.Rank)
		}
		text(canvas, face, ink, padding, baseline, rank)
		text(canvas, face, ink, padding+30, baseline, truncate(e.Name, nameChars))
		text(canvas, face, ink, padding+210, baseline, truncate(e.Group, groupChars))
		text(canvas, face, ink, padding+290, baseline, fmt.Sprintf("%d/%d", e.Score, e.Total))
		text(canvas, face, ink, padding+350, baseline, formatDuration(e.TimeTaken))
	}

	out := canvas
	if opts.Scale > 1 {
		b := canvas.Bounds()
		out = image.NewRGBA(image.Rect(0, 0, b.Dx()*opts.Scale, b.Dy()*opts.Scale))
		draw.NearestNeighbor.Scale(out, out.Bounds(), canvas, b, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func rowColor(rank, index int) (color.RGBA, bool) {
	if rank >= 1 && rank <= 3 {
		return podium[rank-1], true
	}
	if index%2 == 1 {
		return stripe, true
	}
	return color.RGBA{}, false
}

func text(dst draw.Image, face font.Face, c color.Color, x, y int, s string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// truncate shortens s to at most n runes, marking the cut with "..".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-2]) + ".."
}

func formatDuration(secs *int) string {
	if secs == nil {
		return "-"
	}
	return fmt.Sprintf("%d:%02d", *secs/60, *secs%60)
}

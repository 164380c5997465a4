// Package summary renders the category by status heatmap as a PNG and
// builds the weekly digest sent to Telegram.
package summary

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"cdash/internal/aggregate"
	"cdash/internal/format"
)

// Heatmap styling constants, rendered at 2x scale for Telegram clarity
const (
	cellPaddingX  = 20
	cellWidth     = 190
	rowHeight     = 64
	headerHeight  = 88
	labelWidth    = 360
	fontSize      = 24
	headerFontSz  = 22
	titleFontSz   = 36
	titlePadding  = 110
	legendHeight  = 70
	footerPadding = 70
	margin        = 40
	labelBudget   = 24
)

// Light theme colors
var (
	bgColor         = color.RGBA{R: 245, G: 247, B: 250, A: 255} // Light gray bg
	titleColor      = color.RGBA{R: 30, G: 41, B: 59, A: 255}    // Dark slate
	headerBgColor   = color.RGBA{R: 37, G: 99, B: 235, A: 255}   // Blue
	headerTextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255} // White
	textColor       = color.RGBA{R: 30, G: 41, B: 59, A: 255}    // Dark slate
	borderColor     = color.RGBA{R: 203, G: 213, B: 225, A: 255} // Slate border
	footerColor     = color.RGBA{R: 100, G: 116, B: 139, A: 255} // Muted slate
)

// intensityColors maps heatmap buckets 0..5 from empty to hottest.
var intensityColors = [aggregate.IntensityLevels + 1]color.RGBA{
	{R: 255, G: 255, B: 255, A: 255},
	{R: 254, G: 226, B: 226, A: 255},
	{R: 254, G: 202, B: 202, A: 255},
	{R: 252, G: 165, B: 165, A: 255},
	{R: 248, G: 113, B: 113, A: 255},
	{R: 220, G: 38, B: 38, A: 255},
}

// tierColors gives each tier the badge color of the web dashboard.
var tierColors = map[format.Tier]color.RGBA{
	format.Red:    {R: 220, G: 38, B: 38, A: 255},
	format.Amber:  {R: 217, G: 119, B: 6, A: 255},
	format.Green:  {R: 22, G: 163, B: 74, A: 255},
	format.Blue:   {R: 37, G: 99, B: 235, A: 255},
	format.Orange: {R: 234, G: 88, B: 12, A: 255},
	format.Purple: {R: 147, G: 51, B: 234, A: 255},
	format.Teal:   {R: 13, G: 148, B: 136, A: 255},
	format.Pink:   {R: 219, G: 39, B: 119, A: 255},
	format.Cyan:   {R: 8, G: 145, B: 178, A: 255},
	format.Yellow: {R: 202, G: 138, B: 4, A: 255},
	format.Indigo: {R: 79, G: 70, B: 229, A: 255},
	format.Gray:   {R: 100, G: 116, B: 139, A: 255},
}

// TierColor returns the RGBA color of a tier, gray when unknown.
func TierColor(t format.Tier) color.RGBA {
	if c, ok := tierColors[t]; ok {
		return c
	}
	return tierColors[format.Gray]
}

// findFont locates a font file across Linux and Windows paths. An empty
// result means no system font was found.
func findFont(bold bool) string {
	var candidates []string
	if runtime.GOOS == "windows" {
		winRoot := os.Getenv("WINDIR")
		if winRoot == "" {
			winRoot = `C:\Windows`
		}
		if bold {
			candidates = []string{winRoot + `\Fonts\arialbd.ttf`}
		} else {
			candidates = []string{winRoot + `\Fonts\arial.ttf`}
		}
	} else {
		if bold {
			candidates = []string{
				"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
				"/usr/share/fonts/TTF/DejaVuSans-Bold.ttf",
			}
		} else {
			candidates = []string{
				"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
				"/usr/share/fonts/TTF/DejaVuSans.ttf",
			}
		}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// setFont loads a system font, falling back to the built-in bitmap face so
// rendering works on hosts without fonts installed.
func setFont(dc *gg.Context, path string, size float64) {
	if path != "" {
		if err := dc.LoadFontFace(path, size); err == nil {
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

// RenderHeatmap draws the matrix as a table whose cells are shaded by
// intensity, and returns PNG bytes.
//
// Layout:
//   - Title with the generation time
//   - Header row: "Categoria" then one column per status, colored by tier
//   - One row per category with its count in every status cell
//   - Legend of the intensity buckets and a footer with the totals
//
// Parameters:
//   - m: matrix to draw, must have at least one row
//   - title: heading drawn above the table
//   - now: time printed next to the title
func RenderHeatmap(m aggregate.Matrix, title string, now time.Time) ([]byte, error) {
	if m.Empty() {
		return nil, fmt.Errorf("no data to render")
	}

	boldFont := findFont(true)
	regularFont := findFont(false)

	tableWidth := float64(labelWidth + cellWidth*len(m.Columns))
	tableHeight := float64(headerHeight + rowHeight*len(m.Rows))
	canvasWidth := tableWidth + margin*2
	canvasHeight := float64(titlePadding) + tableHeight + legendHeight + footerPadding

	dc := gg.NewContext(int(canvasWidth), int(canvasHeight))
	dc.SetColor(bgColor)
	dc.Clear()

	// Title
	setFont(dc, boldFont, titleFontSz)
	dc.SetColor(titleColor)
	heading := fmt.Sprintf("%s  -  %s", title, now.Format("02/01/2006 15:04"))
	dc.DrawStringAnchored(heading, canvasWidth/2, float64(titlePadding)/2, 0.5, 0.5)

	tableX := float64(margin)
	tableY := float64(titlePadding)

	// Header row
	dc.SetColor(headerBgColor)
	dc.DrawRoundedRectangle(tableX, tableY, tableWidth, headerHeight, 16)
	dc.Fill()

	setFont(dc, boldFont, headerFontSz)
	dc.SetColor(headerTextColor)
	dc.DrawStringAnchored("Categoria", tableX+cellPaddingX, tableY+headerHeight/2, 0, 0.5)
	for j, col := range m.Columns {
		cx := tableX + labelWidth + float64(cellWidth*j)
		dc.SetColor(TierColor(format.StatusTier(col)))
		dc.DrawRoundedRectangle(cx+8, tableY+headerHeight-14, cellWidth-16, 6, 3)
		dc.Fill()
		dc.SetColor(headerTextColor)
		dc.DrawStringAnchored(format.Truncate(col, 14), cx+cellWidth/2, tableY+headerHeight/2-4, 0.5, 0.5)
	}

	// Data rows
	peak := m.Max()
	setFont(dc, regularFont, fontSize)
	curY := tableY + headerHeight
	for _, row := range m.Rows {
		dc.SetColor(color.White)
		dc.DrawRectangle(tableX, curY, labelWidth, rowHeight)
		dc.Fill()
		dc.SetColor(textColor)
		label := fmt.Sprintf("%s (%d)", truncate(row, labelBudget), m.RowTotal(row))
		dc.DrawStringAnchored(label, tableX+cellPaddingX, curY+rowHeight/2, 0, 0.5)

		for j, col := range m.Columns {
			n := m.Count(row, col)
			level := aggregate.Intensity(n, peak)
			cx := tableX + labelWidth + float64(cellWidth*j)
			dc.SetColor(intensityColors[level])
			dc.DrawRectangle(cx, curY, cellWidth, rowHeight)
			dc.Fill()

			if n > 0 {
				if level >= 4 {
					dc.SetColor(headerTextColor)
				} else {
					dc.SetColor(textColor)
				}
				dc.DrawStringAnchored(fmt.Sprintf("%d", n), cx+cellWidth/2, curY+rowHeight/2, 0.5, 0.5)
			}
		}

		dc.SetColor(borderColor)
		dc.SetLineWidth(0.5)
		dc.DrawLine(tableX, curY+rowHeight, tableX+tableWidth, curY+rowHeight)
		dc.Stroke()
		curY += rowHeight
	}

	// Outer border and column separators
	dc.SetColor(borderColor)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(tableX, tableY, tableWidth, tableHeight, 16)
	dc.Stroke()
	dc.SetLineWidth(0.5)
	for j := 0; j < len(m.Columns); j++ {
		x := tableX + labelWidth + float64(cellWidth*j)
		dc.DrawLine(x, tableY+headerHeight, x, tableY+tableHeight)
		dc.Stroke()
	}

	// Legend
	legendY := tableY + tableHeight + 24
	dc.SetColor(footerColor)
	dc.DrawStringAnchored("Menos", tableX, legendY+14, 0, 0.5)
	for i, c := range intensityColors {
		x := tableX + 100 + float64(i*36)
		dc.SetColor(c)
		dc.DrawRectangle(x, legendY, 28, 28)
		dc.Fill()
		dc.SetColor(borderColor)
		dc.DrawRectangle(x, legendY, 28, 28)
		dc.Stroke()
	}
	dc.SetColor(footerColor)
	dc.DrawStringAnchored("Mais", tableX+100+float64(len(intensityColors)*36)+8, legendY+14, 0, 0.5)

	// Footer
	total := 0
	for _, row := range m.Rows {
		total += m.RowTotal(row)
	}
	footer := fmt.Sprintf("Total: %d ocorrências em %d categorias", total, len(m.Rows))
	dc.DrawStringAnchored(footer, canvasWidth/2, canvasHeight-30, 0.5, 0.5)

	return encodeImage(dc.Image())
}

func encodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// truncate flattens newlines and shortens s for a table cell.
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return format.Truncate(strings.TrimSpace(s), maxLen)
}

package document

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strings"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	surfaceWidthPx = 744 // 4 px per printable mm
	surfacePadPx   = 16
	lineHeightPx   = 18

	productCols = 58
	qtyCols     = 8
	priceCols   = 16
)

type surfaceLine struct {
	text string
	rule bool
}

// RasterStrategy draws the order onto a bitmap surface and places it on A4
// pages one band at a time.
type RasterStrategy struct{}

func (RasterStrategy) Name() string { return "raster" }

func (RasterStrategy) Render(snap *domain.OrderSnapshot) ([]byte, error) {
	if snap == nil || len(snap.Items) == 0 {
		return nil, ErrEmptySnapshot
	}
	img := drawSurface(snap)

	pxPerMM := float64(img.Bounds().Dx()) / printableWidthMM
	pageHeightPx := int(math.Floor(printableHeightMM * pxPerMM))
	bands, err := Paginate(img.Bounds().Dy(), pageHeightPx)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("{nb}")
	pdf.SetCreationDate(snap.CreatedAt)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-8)
		pdf.SetFont(fontFamily, "", 8)
		pdf.CellFormat(0, 4, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	for i, b := range bands {
		var buf bytes.Buffer
		band := img.SubImage(image.Rect(0, b.Offset, img.Bounds().Dx(), b.Offset+b.Height))
		if err := png.Encode(&buf, band); err != nil {
			return nil, fmt.Errorf("encode band %d: %w", i, err)
		}
		name := fmt.Sprintf("band-%d", i)
		pdf.AddPage()
		pdf.RegisterImageOptionsReader(name, opts, &buf)
		pdf.ImageOptions(name, marginMM, marginMM, printableWidthMM, float64(b.Height)/pxPerMM, false, opts, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return out.Bytes(), nil
}

// drawSurface renders the order preview as a white bitmap sized to its
// content.
func drawSurface(snap *domain.OrderSnapshot) *image.RGBA {
	lines := surfaceLines(snap)
	height := 2*surfacePadPx + len(lines)*lineHeightPx

	img := image.NewRGBA(image.Rect(0, 0, surfaceWidthPx, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: face}
	rule := image.NewUniform(color.Gray{Y: 200})

	for i, l := range lines {
		top := surfacePadPx + i*lineHeightPx
		if l.rule {
			y := top + lineHeightPx/2
			draw.Draw(img, image.Rect(surfacePadPx, y, surfaceWidthPx-surfacePadPx, y+1), rule, image.Point{}, draw.Src)
			continue
		}
		d.Dot = fixed.P(surfacePadPx, top+face.Ascent+(lineHeightPx-face.Height)/2)
		d.DrawString(l.text)
	}
	return img
}

func surfaceLines(snap *domain.OrderSnapshot) []surfaceLine {
	var lines []surfaceLine
	add := func(s string) { lines = append(lines, surfaceLine{text: s}) }

	seller := sellerLines(snap.CompanyInfo)
	add(padRight(seller[0], productCols) + alignRight(docTitle, qtyCols+2*priceCols))
	add(padRight(lineAt(seller, 1), productCols) + alignRight("Date: "+snap.CreatedAt.Format(dateLayout), qtyCols+2*priceCols))
	for _, s := range seller[2:] {
		add(s)
	}
	lines = append(lines, surfaceLine{rule: true})

	add(tableLine(colProduct, colQty, colUnitPrice, colLineTotal))
	lines = append(lines, surfaceLine{rule: true})
	for _, r := range tableRows(snap) {
		wrapped := wrap(r.product, productCols-2)
		add(tableLine(wrapped[0], r.qty, r.unitPrice, r.lineTotal))
		for _, w := range wrapped[1:] {
			add(w)
		}
	}
	lines = append(lines, surfaceLine{rule: true})

	add(alignRight("TOTAL: "+money(snap.Total.StringFixed(2)), productCols+qtyCols+2*priceCols))
	add(alignRight(paymentNote, productCols+qtyCols+2*priceCols))
	return lines
}

func tableLine(product, qty, unit, total string) string {
	return padRight(product, productCols) + center(qty, qtyCols) + alignRight(unit, priceCols) + alignRight(total, priceCols)
}

func lineAt(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}

func padRight(s string, n int) string {
	r := []rune(s)
	if len(r) >= n {
		return string(r[:n])
	}
	return s + strings.Repeat(" ", n-len(r))
}

func alignRight(s string, n int) string {
	r := []rune(s)
	if len(r) >= n {
		return string(r[:n])
	}
	return strings.Repeat(" ", n-len(r)) + s
}

func center(s string, n int) string {
	r := []rune(s)
	if len(r) >= n {
		return string(r[:n])
	}
	left := (n - len(r)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", n-len(r)-left)
}

// wrap breaks s on spaces into lines of at most width runes. Words longer
// than width are split.
func wrap(s string, width int) []string {
	var out []string
	var cur []rune
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > width {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = nil
			}
			out = append(out, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(cur) == 0:
			cur = w
		case len(cur)+1+len(w) <= width:
			cur = append(append(cur, ' '), w...)
		default:
			out = append(out, string(cur))
			cur = w
		}
	}
	if len(cur) > 0 || len(out) == 0 {
		out = append(out, string(cur))
	}
	return out
}

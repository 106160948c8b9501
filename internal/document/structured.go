package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-pdf/fpdf"
)

const (
	fontFamily  = "Helvetica"
	rowLineMM   = 5.0
	headerRowMM = 7.0
	footerY     = -8.0
)

var colWidths = [4]float64{96, 20, 35, 35}

// StructuredStrategy builds the PDF from text and table primitives. The item
// table breaks across pages with its header repeated, and every page carries
// a "Page N of M" footer.
type StructuredStrategy struct{}

func (StructuredStrategy) Name() string { return "structured" }

func (s StructuredStrategy) Render(snap *domain.OrderSnapshot) ([]byte, error) {
	pdf, err := s.build(snap)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (StructuredStrategy) build(snap *domain.OrderSnapshot) (*fpdf.Fpdf, error) {
	if snap == nil || len(snap.Items) == 0 {
		return nil, ErrEmptySnapshot
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(false, marginMM)
	pdf.AliasNbPages("{nb}")
	pdf.SetCreationDate(snap.CreatedAt)
	pdf.SetTitle(docTitle+" "+snap.ID.String(), true)
	pdf.SetCreator(snap.CompanyInfo.Name, true)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(latin1(s)) }

	pdf.SetFooterFunc(func() {
		pdf.SetY(footerY)
		pdf.SetFont(fontFamily, "", 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(0, 4, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	drawSellerHeader(pdf, snap, text)
	drawTableHeader(pdf, text)

	bottom := pageHeightMM - marginMM - 6
	for i, r := range tableRows(snap) {
		pdf.SetFont(fontFamily, "", 9)
		lines := pdf.SplitText(latin1(r.product), colWidths[0])
		if len(lines) == 0 {
			lines = []string{""}
		}
		h := float64(len(lines))*rowLineMM + 2

		if pdf.GetY()+h > bottom {
			pdf.AddPage()
			drawTableHeader(pdf, text)
			pdf.SetFont(fontFamily, "", 9)
		}
		drawRow(pdf, r, lines, h, i%2 == 1, text)
	}

	if pdf.GetY()+24 > bottom {
		pdf.AddPage()
	}
	drawTotals(pdf, snap, text)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	return pdf, nil
}

func drawSellerHeader(pdf *fpdf.Fpdf, snap *domain.OrderSnapshot, text func(string) string) {
	top := pdf.GetY()
	left := sellerLines(snap.CompanyInfo)

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont(fontFamily, "B", 14)
	pdf.CellFormat(120, 7, text(left[0]), "", 2, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 9)
	for _, l := range left[1:] {
		pdf.CellFormat(120, 5, text(l), "", 2, "L", false, 0, "")
	}
	afterLeft := pdf.GetY()

	pdf.SetXY(marginMM+120, top)
	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(printableWidthMM-120, 8, docTitle, "", 2, "R", false, 0, "")
	pdf.SetFont(fontFamily, "", 9)
	pdf.CellFormat(printableWidthMM-120, 5, "Date: "+snap.CreatedAt.Format(dateLayout), "", 2, "R", false, 0, "")
	pdf.CellFormat(printableWidthMM-120, 5, "No. "+shortID(snap), "", 2, "R", false, 0, "")

	pdf.SetXY(marginMM, max(afterLeft, pdf.GetY())+3)
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(marginMM, pdf.GetY(), pageWidthMM-marginMM, pdf.GetY())
	pdf.Ln(4)
}

func drawTableHeader(pdf *fpdf.Fpdf, text func(string) string) {
	pdf.SetFont(fontFamily, "B", 9)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetDrawColor(200, 200, 200)
	titles := [4]string{colProduct, colQty, colUnitPrice, colLineTotal}
	aligns := [4]string{"L", "C", "R", "R"}
	for i, t := range titles {
		pdf.CellFormat(colWidths[i], headerRowMM, text(t), "1", 0, aligns[i], true, 0, "")
	}
	pdf.Ln(-1)
}

func drawRow(pdf *fpdf.Fpdf, r row, productLines []string, h float64, shaded bool, text func(string) string) {
	x, y := pdf.GetXY()
	if shaded {
		pdf.SetFillColor(250, 250, 250)
		pdf.Rect(x, y, printableWidthMM, h, "F")
	}

	pdf.SetXY(x, y+1)
	for _, l := range productLines {
		pdf.CellFormat(colWidths[0], rowLineMM, text(l), "", 2, "L", false, 0, "")
	}

	cx := x + colWidths[0]
	for i, v := range [3]string{r.qty, r.unitPrice, r.lineTotal} {
		align := "R"
		if i == 0 {
			align = "C"
		}
		pdf.SetXY(cx, y+1)
		pdf.CellFormat(colWidths[i+1], rowLineMM, text(v), "", 0, align, false, 0, "")
		cx += colWidths[i+1]
	}

	cx = x
	for _, w := range colWidths {
		pdf.Rect(cx, y, w, h, "D")
		cx += w
	}
	pdf.SetXY(x, y+h)
}

func drawTotals(pdf *fpdf.Fpdf, snap *domain.OrderSnapshot, text func(string) string) {
	pdf.Ln(6)
	pdf.SetFont(fontFamily, "B", 12)
	pdf.SetTextColor(20, 20, 20)
	pdf.CellFormat(0, 7, text("TOTAL: "+money(snap.Total.StringFixed(2))), "", 1, "R", false, 0, "")
	pdf.SetFont(fontFamily, "I", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 5, text(paymentNote), "", 1, "R", false, 0, "")
}

func shortID(snap *domain.OrderSnapshot) string {
	return strings.ToUpper(snap.ID.String()[:8])
}

// latin1 replaces runes the core PDF fonts cannot measure or encode.
func latin1(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFF {
			return '?'
		}
		return r
	}, s)
}

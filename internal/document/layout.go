// Package document renders order snapshots as printable PDF documents.
package document

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/fjod/go_storefront/internal/domain"
)

// A4 portrait, millimetres.
const (
	pageWidthMM  = 210.0
	pageHeightMM = 297.0
	marginMM     = 12.0

	printableWidthMM  = pageWidthMM - 2*marginMM
	printableHeightMM = pageHeightMM - 2*marginMM
)

const (
	docTitle       = "ORDER"
	dateLayout     = "02/01/2006"
	paymentNote    = "Payment on delivery."
	colProduct     = "Product"
	colQty         = "Qty"
	colUnitPrice   = "Unit Price"
	colLineTotal   = "Total"
	defaultDocName = "document"
)

// FileName derives the download name from the seller name, replacing each
// run of whitespace with "_".
func FileName(seller string) string {
	name := strings.Join(strings.FieldsFunc(seller, unicode.IsSpace), "_")
	if name == "" {
		name = defaultDocName
	}
	return "order-" + name + ".pdf"
}

// row is one table line as displayed.
type row struct {
	product   string
	qty       string
	unitPrice string
	lineTotal string
}

func tableRows(snap *domain.OrderSnapshot) []row {
	rows := make([]row, 0, len(snap.Items))
	for _, it := range snap.Items {
		name := it.Name
		if it.VariantName != "" {
			name += " (" + it.VariantName + ")"
		}
		rows = append(rows, row{
			product:   name,
			qty:       strconv.Itoa(it.Quantity),
			unitPrice: money(it.Price.StringFixed(2)),
			lineTotal: money(it.LineTotal().StringFixed(2)),
		})
	}
	return rows
}

func money(s string) string { return "$" + s }

func sellerLines(info domain.CompanyInfo) []string {
	lines := []string{info.Name}
	if info.Address != "" {
		lines = append(lines, info.Address)
	}
	var contact []string
	if info.Email != "" {
		contact = append(contact, info.Email)
	}
	if info.Phone != "" {
		contact = append(contact, info.Phone)
	}
	if len(contact) > 0 {
		lines = append(lines, strings.Join(contact, " | "))
	}
	return lines
}

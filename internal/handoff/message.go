// Package handoff prepares the prefilled message a buyer sends to the seller
// over a messaging deep link, and publishes handoff requests.
package handoff

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/fjod/go_storefront/internal/domain"
)

var ErrNoPhone = errors.New("seller phone has no digits")

// FormatMessage renders the order as the chat message sent to the seller.
func FormatMessage(snap *domain.OrderSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s! 👋\n\nI would like to place the following order:\n\n", snap.CompanyInfo.Name)
	for _, it := range snap.Items {
		fmt.Fprintf(&b, "*%s*", it.Name)
		if it.VariantName != "" {
			fmt.Fprintf(&b, " (%s)", it.VariantName)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "   - Quantity: %d\n", it.Quantity)
		fmt.Fprintf(&b, "   - Unit price: $%s\n", it.Price.StringFixed(2))
		fmt.Fprintf(&b, "   - Line total: $%s\n\n", it.LineTotal().StringFixed(2))
	}
	fmt.Fprintf(&b, "*Order total: $%s*\n\n", snap.Total.StringFixed(2))
	b.WriteString("Thank you, I look forward to your confirmation.")
	return b.String()
}

// Link builds https://<host>/<digits>?text=<message>. Everything but digits
// is stripped from phone.
func Link(host, phone, message string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return "", ErrNoPhone
	}
	return fmt.Sprintf("%s/%s?text=%s", strings.TrimRight(host, "/"), digits, encodeComponent(message)), nil
}

// encodeComponent escapes s like a URI component: spaces become %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

package payments

import (
	"fmt"
	"strconv"
	"strings"
)

const invoicePrefix = "tote_"

// Invoice is the payment reference embedded in a transfer comment:
// tote_<draw>_<user>_<nonce>_<combos>.
type Invoice struct {
	DrawID int64
	UserID int64
	Nonce  string
	Combos int64
}

func (i Invoice) String() string {
	return fmt.Sprintf("%s%d_%d_%s_%d", invoicePrefix, i.DrawID, i.UserID, i.Nonce, i.Combos)
}

// ExtractInvoice pulls the invoice reference out of a transfer comment. The
// comment may carry surrounding text; the first tote_ token wins.
func ExtractInvoice(comment string) (Invoice, string, bool) {
	idx := strings.Index(comment, invoicePrefix)
	if idx < 0 {
		return Invoice{}, "", false
	}
	token := comment[idx:]
	if end := strings.IndexFunc(token, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}); end >= 0 {
		token = token[:end]
	}

	parts := strings.Split(strings.TrimPrefix(token, invoicePrefix), "_")
	if len(parts) != 4 {
		return Invoice{}, "", false
	}
	drawID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Invoice{}, "", false
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Invoice{}, "", false
	}
	combos, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || parts[2] == "" {
		return Invoice{}, "", false
	}

	inv := Invoice{DrawID: drawID, UserID: userID, Nonce: parts[2], Combos: combos}
	return inv, token, true
}

package solana

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

// PaymentURL renders a solana: payment request URL that wallets can scan
// or open. The amount is in SOL, the reference is the correlation key the
// wallet must attach to the transfer.
func PaymentURL(merchant string, amount decimal.Decimal, reference, label, message string) string {
	params := url.Values{}
	params.Set("amount", amount.String())
	params.Set("reference", reference)
	if label != "" {
		params.Set("label", label)
	}
	if message != "" {
		params.Set("message", message)
	}
	return fmt.Sprintf("solana:%s?%s", merchant, params.Encode())
}

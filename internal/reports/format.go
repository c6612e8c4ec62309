package reports

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatIDR renders an amount as Indonesian rupiah, e.g. "Rp 1.500,00".
func FormatIDR(d decimal.Decimal) string {
	return idPrinter.Sprintf("Rp %v", number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
}

func formatSummary(s Summary) map[string]string {
	return map[string]string{
		"gross_sales":         FormatIDR(s.GrossSales),
		"discounts":           FormatIDR(s.Discounts),
		"net_sales":           FormatIDR(s.NetSales),
		"tax":                 FormatIDR(s.Tax),
		"revenue":             FormatIDR(s.Revenue),
		"cogs":                FormatIDR(s.COGS),
		"gross_profit":        FormatIDR(s.GrossProfit),
		"average_transaction": FormatIDR(s.AverageTransaction),
	}
}

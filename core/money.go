package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

type moneyFormat struct {
	symbol   string
	thousand string
	decimal  string
}

var moneyFormats = map[string]moneyFormat{
	"BRL": {symbol: "R$", thousand: ".", decimal: ","},
	"EUR": {symbol: "€", thousand: ".", decimal: ","},
	"USD": {symbol: "$", thousand: ",", decimal: "."},
}

// FormatMoney renders `amount` the way `currency` is usually written ("R$ 1.234,50").
// Unknown currencies fall back to "<CODE> 1,234.50".
func FormatMoney(amount decimal.Decimal, currency string) string {
	f, ok := moneyFormats[strings.ToUpper(currency)]
	if !ok {
		f = moneyFormat{symbol: strings.ToUpper(currency), thousand: ",", decimal: "."}
	}

	neg := amount.IsNegative()
	s := amount.Abs().StringFixed(2)
	intPart, fracPart := s[:len(s)-3], s[len(s)-2:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(f.thousand)
		}
		b.WriteRune(r)
	}

	out := f.symbol + " " + b.String() + f.decimal + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// Package money formats prices for display.
package money

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// Format renders amount in US dollars with two decimals and thousands
// separators, e.g. "$1,234.50". Negative amounts render as "-$3.00".
func Format(amount float64) string {
	if amount < 0 {
		return "-" + Format(-amount)
	}
	return printer.Sprintf("$%.2f", Round(amount))
}

// Round rounds amount to whole cents, halves away from zero.
func Round(amount float64) float64 {
	return math.Round(amount*100) / 100
}

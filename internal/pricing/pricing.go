// Package pricing decomposes GST-inclusive prices into tax and subtotal parts.
// All arithmetic is carried in decimal; rounding to paise happens only when a
// value leaves the package through Money.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Slabs are the GST rates a product may carry, as plain percentages.
var Slabs = []float64{0, 5, 12, 18, 28}

var hundred = decimal.NewFromInt(100)

type Line struct {
	Price   float64
	Qty     int
	GSTRate float64
}

type Breakdown struct {
	LineTotal  decimal.Decimal
	GSTPortion decimal.Decimal
	Subtotal   decimal.Decimal
}

type Totals struct {
	SubTotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
}

// Decompose splits price*qty, which already includes GST at gstRate percent.
func Decompose(price float64, qty int, gstRate float64) Breakdown {
	lineTotal := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty)))
	divisor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(gstRate).Div(hundred))
	net := lineTotal.Div(divisor)
	gst := lineTotal.Sub(net)
	return Breakdown{
		LineTotal:  lineTotal,
		GSTPortion: gst,
		Subtotal:   lineTotal.Sub(gst),
	}
}

// Summarize aggregates lines into cart totals. SubTotal is derived as
// TotalAmount - TaxAmount so the three figures always reconcile.
func Summarize(lines []Line) Totals {
	total := decimal.Zero
	tax := decimal.Zero
	for _, line := range lines {
		b := Decompose(line.Price, line.Qty, line.GSTRate)
		total = total.Add(b.LineTotal)
		tax = tax.Add(b.GSTPortion)
	}
	return Totals{
		SubTotal:    total.Sub(tax),
		TaxAmount:   tax,
		TotalAmount: total,
	}
}

// Rounded returns the totals rounded to two places, keeping
// SubTotal + TaxAmount == TotalAmount exactly after rounding.
func (t Totals) Rounded() (subTotal, taxAmount, totalAmount float64) {
	total := t.TotalAmount.Round(2)
	tax := t.TaxAmount.Round(2)
	return total.Sub(tax).InexactFloat64(), tax.InexactFloat64(), total.InexactFloat64()
}

// Money rounds d to two decimal places for persistence or display.
func Money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// IsMoney reports whether v is already expressed in whole paise.
func IsMoney(v float64) bool {
	d := decimal.NewFromFloat(v)
	return d.Equal(d.Round(2))
}

// WithinTolerance reports whether got is within tolerance of want.
func WithinTolerance(want decimal.Decimal, got, tolerance float64) bool {
	diff := want.Round(2).Sub(decimal.NewFromFloat(got)).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(tolerance))
}

func IsValidSlab(rate float64) bool {
	for _, slab := range Slabs {
		if rate == slab {
			return true
		}
	}
	return false
}

func ValidateSlab(rate float64) error {
	if !IsValidSlab(rate) {
		return fmt.Errorf("gst must be one of %v", Slabs)
	}
	return nil
}

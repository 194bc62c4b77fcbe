// Package pricing computes guest-facing booking quotes.
package pricing

import (
	"fmt"
	"math"
)

const (
	// ChildPriceFactor is the share of the base price charged per child.
	ChildPriceFactor = 0.7
	// ServiceFeeRate is applied to the subtotal; only the resulting fee is rounded.
	ServiceFeeRate = 0.1
)

type Quote struct {
	BasePrice     float64 `json:"basePrice"`
	Adults        int     `json:"adults"`
	Children      int     `json:"children"`
	AdultsAmount  float64 `json:"adultsAmount"`
	ChildrenPrice float64 `json:"childrenPrice"`
	ChildrenTotal float64 `json:"childrenAmount"`
	Subtotal      float64 `json:"subtotal"`
	ServiceFee    float64 `json:"serviceFee"`
	Total         float64 `json:"total"`
}

// Calculate prices a party. Infants are free and never passed in.
func Calculate(basePrice float64, adults, children int) Quote {
	if adults < 0 {
		adults = 0
	}
	if children < 0 {
		children = 0
	}

	adultsAmount := float64(adults) * basePrice
	childPrice := basePrice * ChildPriceFactor
	childrenAmount := float64(children) * childPrice
	subtotal := adultsAmount + childrenAmount
	fee := math.Round(subtotal * ServiceFeeRate)

	return Quote{
		BasePrice:     basePrice,
		Adults:        adults,
		Children:      children,
		AdultsAmount:  adultsAmount,
		ChildrenPrice: childPrice,
		ChildrenTotal: childrenAmount,
		Subtotal:      subtotal,
		ServiceFee:    fee,
		Total:         subtotal + fee,
	}
}

// Lines returns display rows for a quote, omitting the children row when empty.
func (q Quote) Lines(currency string) []string {
	lines := []string{
		fmt.Sprintf("%d x adult @ %s = %s", q.Adults, FormatAmount(q.BasePrice, currency), FormatAmount(q.AdultsAmount, currency)),
	}
	if q.Children > 0 {
		lines = append(lines, fmt.Sprintf("%d x child @ %s = %s", q.Children, FormatAmount(q.ChildrenPrice, currency), FormatAmount(q.ChildrenTotal, currency)))
	}
	lines = append(lines,
		fmt.Sprintf("Service fee: %s", FormatAmount(q.ServiceFee, currency)),
		fmt.Sprintf("Total: %s", FormatAmount(q.Total, currency)),
	)
	return lines
}

func FormatAmount(amount float64, currency string) string {
	switch currency {
	case "", "USD":
		return fmt.Sprintf("$%.2f", amount)
	case "EUR":
		return fmt.Sprintf("€%.2f", amount)
	case "GBP":
		return fmt.Sprintf("£%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

package checkout

import (
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
)

const (
	MaxLines       = 50
	MaxLineQty     = 99
	DefaultVariant = "default"
)

// LineInput is one requested cart line before pricing.
type LineInput struct {
	ProductID  string `json:"productId"`
	VariantKey string `json:"variantKey"`
	Quantity   int    `json:"quantity"`
}

// Key identifies the product variant the line refers to.
func (l LineInput) Key() string {
	return l.ProductID + "/" + l.VariantKey
}

// LineViolationDetail exposes the data returned to callers when a validation fails.
type LineViolationDetail struct {
	Index      int    `json:"index"`
	ProductID  string `json:"product_id,omitempty"`
	VariantKey string `json:"variant_key,omitempty"`
	Reason     string `json:"reason"`
}

// NormalizeLines trims identifiers, defaults empty variants and merges
// duplicate variants so each appears once.
func NormalizeLines(lines []LineInput) []LineInput {
	out := make([]LineInput, 0, len(lines))
	index := map[string]int{}
	for _, line := range lines {
		line.ProductID = strings.TrimSpace(line.ProductID)
		line.VariantKey = strings.TrimSpace(line.VariantKey)
		if line.VariantKey == "" {
			line.VariantKey = DefaultVariant
		}
		if pos, ok := index[line.Key()]; ok {
			out[pos].Quantity += line.Quantity
			continue
		}
		index[line.Key()] = len(out)
		out = append(out, line)
	}
	return out
}

// ValidateLines checks the cart shape: at least one line, bounded line count
// and per-line quantity.
func ValidateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	if len(lines) > MaxLines {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d line items are allowed", MaxLines))
	}

	var violations []LineViolationDetail
	for i, line := range lines {
		switch {
		case line.ProductID == "":
			violations = append(violations, LineViolationDetail{Index: i, Reason: "product id is required"})
		case line.Quantity <= 0:
			violations = append(violations, LineViolationDetail{Index: i, ProductID: line.ProductID, VariantKey: line.VariantKey, Reason: "quantity must be positive"})
		case line.Quantity > MaxLineQty:
			violations = append(violations, LineViolationDetail{Index: i, ProductID: line.ProductID, VariantKey: line.VariantKey, Reason: fmt.Sprintf("quantity must not exceed %d", MaxLineQty)})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%d line item(s) are invalid", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

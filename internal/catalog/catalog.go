package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
)

// DefaultVariantKey is used for products sold in a single form.
const DefaultVariantKey = "default"

// Variant is the priced, sellable form of a product.
type Variant struct {
	ProductID      string
	VariantKey     string
	Name           string
	UnitPriceCents int
}

// Catalog resolves product variants to their current name and price.
type Catalog interface {
	Lookup(ctx context.Context, productID, variantKey string) (Variant, error)
}

type priceFile struct {
	Products []priceEntry `json:"products"`
}

type priceEntry struct {
	ProductID  string          `json:"productId"`
	VariantKey string          `json:"variantKey"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
}

// StaticCatalog is an in-memory price table.
type StaticCatalog struct {
	variants map[string]Variant
}

var hundred = decimal.NewFromInt(100)

// LoadFile reads a JSON price table.
func LoadFile(path string) (*StaticCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a catalog from a JSON price table. Prices are decimal amounts
// in the store currency and are rounded to whole cents.
func Parse(raw []byte) (*StaticCatalog, error) {
	var file priceFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode price file: %w", err)
	}
	variants := make([]Variant, 0, len(file.Products))
	for i, entry := range file.Products {
		if strings.TrimSpace(entry.ProductID) == "" {
			return nil, fmt.Errorf("price entry %d: productId required", i)
		}
		if entry.Price.IsNegative() {
			return nil, fmt.Errorf("price entry %d: negative price", i)
		}
		variants = append(variants, Variant{
			ProductID:      strings.TrimSpace(entry.ProductID),
			VariantKey:     entry.VariantKey,
			Name:           entry.Name,
			UnitPriceCents: int(entry.Price.Mul(hundred).Round(0).IntPart()),
		})
	}
	return NewStatic(variants)
}

// NewStatic builds a catalog from explicit variants.
func NewStatic(variants []Variant) (*StaticCatalog, error) {
	out := &StaticCatalog{variants: make(map[string]Variant, len(variants))}
	for _, v := range variants {
		v.VariantKey = normalizeVariant(v.VariantKey)
		if v.Name == "" {
			v.Name = v.ProductID
		}
		k := key(v.ProductID, v.VariantKey)
		if _, dup := out.variants[k]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %s", k)
		}
		out.variants[k] = v
	}
	return out, nil
}

// Lookup implements Catalog.
func (c *StaticCatalog) Lookup(_ context.Context, productID, variantKey string) (Variant, error) {
	variantKey = normalizeVariant(variantKey)
	v, ok := c.variants[key(productID, variantKey)]
	if !ok {
		return Variant{}, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
			WithDetails(map[string]any{"productId": productID, "variantKey": variantKey})
	}
	return v, nil
}

// Len reports how many variants are loaded.
func (c *StaticCatalog) Len() int {
	return len(c.variants)
}

func normalizeVariant(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultVariantKey
	}
	return v
}

func key(productID, variantKey string) string {
	return productID + "|" + variantKey
}

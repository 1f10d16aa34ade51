package integration

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Option names used for product attributes
const (
	OptionColor  = "Color"
	OptionFabric = "Fabric"
	OptionSize   = "Size"
)

// The storefront gives option-less products a single "Title: Default Title"
// option. It carries no identity and is dropped during normalization.
const (
	defaultOptionName  = "Title"
	defaultOptionValue = "Default Title"
)

// OptionValue is one option selection of a variant, e.g. Size=M
type OptionValue struct {
	Name  string
	Value string
}

// NormalizeOptions returns a sorted copy of opts with names title-cased,
// whitespace collapsed and empty or placeholder selections removed.
func NormalizeOptions(opts []OptionValue) []OptionValue {
	caser := cases.Title(language.Und)
	out := make([]OptionValue, 0, len(opts))
	for _, o := range opts {
		name := caser.String(collapseSpace(o.Name))
		value := collapseSpace(o.Value)
		if name == "" || value == "" {
			continue
		}
		if name == defaultOptionName && value == defaultOptionValue {
			continue
		}
		out = append(out, OptionValue{Name: name, Value: value})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// CanonicalKey renders opts as Name:Value pairs sorted by name and joined
// with "|". Permutations of the same selections yield the same key.
func CanonicalKey(opts []OptionValue) string {
	normalized := NormalizeOptions(opts)
	parts := make([]string, len(normalized))
	for i, o := range normalized {
		parts[i] = o.Name + ":" + o.Value
	}
	return strings.Join(parts, "|")
}

// MatchKey is the case-folded canonical key used for lookups, so "red" and
// "Red" select the same remote variant.
func MatchKey(opts []OptionValue) string {
	return cases.Fold().String(CanonicalKey(opts))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// VariantSpec describes a variant to be created on the storefront
type VariantSpec struct {
	Key     string
	Options []OptionValue
	SKU     string
	Price   decimal.Decimal
	Barcode string
}

// VariantUpdate refreshes the mutable fields of an existing remote variant.
// Option values are never changed through a variant update.
type VariantUpdate struct {
	Key             string
	VariantID       string
	InventoryItemID string
	SKU             string
	Price           decimal.Decimal
	Barcode         string
}

// RemoteVariant is a variant as currently stored on the storefront
type RemoteVariant struct {
	ID              string
	SKU             string
	Price           decimal.Decimal
	Barcode         string
	InventoryItemID string
	Options         []OptionValue
}

// Key returns the canonical key of the variant's option selections
func (v RemoteVariant) Key() string {
	return CanonicalKey(v.Options)
}

// RemoteOption is a product-level option and its allowed values
type RemoteOption struct {
	ID     string
	Name   string
	Values []string
}

// OptionSpec describes a product-level option to create
type OptionSpec struct {
	Name   string
	Values []string
}

// ProductSpec describes a product to create on the storefront
type ProductSpec struct {
	Title       string
	Vendor      string
	Description string
	Visible     bool
	Options     []OptionSpec
}

// Location is a storefront fulfillment location
type Location struct {
	ID       string
	Name     string
	IsActive bool
}

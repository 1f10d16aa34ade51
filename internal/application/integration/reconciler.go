package integration

import (
	"strings"

	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/domain/shared"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ReconcilePlan is the set of variant operations that brings the storefront
// in line with a product
type ReconcilePlan struct {
	ToCreate []integration.VariantSpec
	ToUpdate []integration.VariantUpdate
	// Unchanged remote variants already match the product
	Unchanged []integration.RemoteVariant
	// Stale remote variants match no desired variant. They are only deleted
	// when the product's option values changed.
	Stale []integration.RemoteVariant
}

// Empty returns true if no create or update is needed
func (p *ReconcilePlan) Empty() bool {
	return len(p.ToCreate) == 0 && len(p.ToUpdate) == 0
}

// Survivors is the number of existing variants the plan keeps
func (p *ReconcilePlan) Survivors() int {
	return len(p.ToUpdate) + len(p.Unchanged)
}

// OptionChange is a product-level option edit that must be visible on the
// storefront before variants using the new values can be created. Remove
// drops a storefront option the product no longer has.
type OptionChange struct {
	OptionID string
	Name     string
	Values   []string
	Create   bool
	Remove   bool
}

// VariantReconciler plans variant operations. It holds no state and never
// talks to the storefront.
type VariantReconciler struct{}

// NewVariantReconciler creates a new VariantReconciler
func NewVariantReconciler() *VariantReconciler {
	return &VariantReconciler{}
}

// Desired builds one variant per size, or a single variant when the product
// has no sizes. Color and fabric are shared by every variant.
func (r *VariantReconciler) Desired(p *catalog.Product) ([]integration.VariantSpec, error) {
	var common []integration.OptionValue
	if p.Color.Name != "" {
		common = append(common, integration.OptionValue{Name: integration.OptionColor, Value: p.Color.Name})
	}
	if p.Fabric != "" {
		common = append(common, integration.OptionValue{Name: integration.OptionFabric, Value: p.Fabric})
	}

	build := func(sku string, opts []integration.OptionValue) integration.VariantSpec {
		return integration.VariantSpec{
			Key:     integration.CanonicalKey(opts),
			Options: opts,
			SKU:     sku,
			Price:   p.Price,
			Barcode: p.Barcode,
		}
	}

	var specs []integration.VariantSpec
	if len(p.Sizes) == 0 {
		specs = append(specs, build(p.SKU, common))
	} else {
		for _, size := range p.Sizes {
			opts := make([]integration.OptionValue, 0, len(common)+1)
			opts = append(opts, common...)
			opts = append(opts, integration.OptionValue{Name: integration.OptionSize, Value: size})
			specs = append(specs, build(p.SKU+"-"+size, opts))
		}
	}

	skus := make(map[string]struct{}, len(specs))
	keys := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		sku := strings.ToLower(s.SKU)
		if _, dup := skus[sku]; dup {
			return nil, shared.WithMessage(integration.ErrDuplicateSKU, "integration: duplicate variant SKU "+s.SKU)
		}
		skus[sku] = struct{}{}

		key := integration.MatchKey(s.Options)
		if _, dup := keys[key]; dup {
			return nil, shared.WithMessage(integration.ErrDuplicateVariant, "integration: duplicate variant "+s.Key)
		}
		keys[key] = struct{}{}
	}
	return specs, nil
}

// Reconcile diffs the desired variants of p against the storefront's
// current variants. Matching is by canonical key; a second run against the
// result of the first yields an empty plan.
func (r *VariantReconciler) Reconcile(p *catalog.Product, existing []integration.RemoteVariant) (*ReconcilePlan, error) {
	desired, err := r.Desired(p)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]integration.RemoteVariant, len(existing))
	plan := &ReconcilePlan{}
	for _, v := range existing {
		key := integration.MatchKey(v.Options)
		if _, dup := byKey[key]; dup {
			plan.Stale = append(plan.Stale, v)
			continue
		}
		byKey[key] = v
	}

	matched := make(map[string]struct{}, len(desired))
	for _, spec := range desired {
		key := integration.MatchKey(spec.Options)
		current, ok := byKey[key]
		if !ok {
			plan.ToCreate = append(plan.ToCreate, spec)
			continue
		}
		matched[key] = struct{}{}
		if variantUpToDate(current, spec) {
			plan.Unchanged = append(plan.Unchanged, current)
			continue
		}
		plan.ToUpdate = append(plan.ToUpdate, integration.VariantUpdate{
			Key:             spec.Key,
			VariantID:       current.ID,
			InventoryItemID: current.InventoryItemID,
			SKU:             spec.SKU,
			Price:           spec.Price,
			Barcode:         spec.Barcode,
		})
	}

	for _, v := range existing {
		key := integration.MatchKey(v.Options)
		if _, ok := matched[key]; ok {
			continue
		}
		if byKey[key].ID == v.ID {
			plan.Stale = append(plan.Stale, v)
		}
	}
	return plan, nil
}

// PlanOptions compares the product's option values with the storefront's
// options. Removals come first: a storefront option without a matching
// product attribute (cleared sizes, dropped fabric) is planned for deletion.
func (r *VariantReconciler) PlanOptions(p *catalog.Product, remote []integration.RemoteOption) []OptionChange {
	desired := desiredOptions(p)
	caser := cases.Title(language.Und)

	var changes []OptionChange
	remoteByName := make(map[string]integration.RemoteOption, len(remote))
	for _, o := range r.UnwantedOptions(p, remote) {
		changes = append(changes, OptionChange{OptionID: o.ID, Name: caser.String(strings.TrimSpace(o.Name)), Remove: true})
	}
	for _, o := range remote {
		name := caser.String(strings.TrimSpace(o.Name))
		if _, wanted := desired[name]; wanted {
			remoteByName[name] = o
		}
	}

	for _, name := range []string{integration.OptionColor, integration.OptionFabric, integration.OptionSize} {
		values, wanted := desired[name]
		if !wanted {
			continue
		}
		current, exists := remoteByName[name]
		switch {
		case !exists:
			changes = append(changes, OptionChange{Name: name, Values: values, Create: true})
		case !sameValues(current.Values, values):
			changes = append(changes, OptionChange{OptionID: current.ID, Name: name, Values: values})
		}
	}
	return changes
}

// UnwantedOptions returns the storefront options with no matching product
// attribute. The storefront's placeholder option is never unwanted.
func (r *VariantReconciler) UnwantedOptions(p *catalog.Product, remote []integration.RemoteOption) []integration.RemoteOption {
	desired := desiredOptions(p)
	caser := cases.Title(language.Und)
	var out []integration.RemoteOption
	for _, o := range remote {
		name := caser.String(strings.TrimSpace(o.Name))
		if isDefaultOption(name, o.Values) {
			continue
		}
		if _, wanted := desired[name]; !wanted {
			out = append(out, o)
		}
	}
	return out
}

// MissingOptionValues reports whether any desired option value is absent
// from the storefront. Extra values do not count; they are pruned after
// stale variants are gone.
func (r *VariantReconciler) MissingOptionValues(p *catalog.Product, remote []integration.RemoteOption) bool {
	caser := cases.Title(language.Und)
	present := make(map[string]map[string]struct{}, len(remote))
	for _, o := range remote {
		name := caser.String(strings.TrimSpace(o.Name))
		set := make(map[string]struct{}, len(o.Values))
		for _, v := range o.Values {
			set[strings.ToLower(strings.Join(strings.Fields(v), " "))] = struct{}{}
		}
		present[name] = set
	}
	for name, values := range desiredOptions(p) {
		set, ok := present[name]
		if !ok {
			return true
		}
		for _, v := range values {
			if _, ok := set[strings.ToLower(v)]; !ok {
				return true
			}
		}
	}
	return false
}

// ProductOptions lists the product-level options in storefront order
func (r *VariantReconciler) ProductOptions(p *catalog.Product) []integration.OptionSpec {
	desired := desiredOptions(p)
	var specs []integration.OptionSpec
	for _, name := range []string{integration.OptionColor, integration.OptionFabric, integration.OptionSize} {
		if values, ok := desired[name]; ok {
			specs = append(specs, integration.OptionSpec{Name: name, Values: values})
		}
	}
	return specs
}

func desiredOptions(p *catalog.Product) map[string][]string {
	out := make(map[string][]string, 3)
	if p.Color.Name != "" {
		out[integration.OptionColor] = []string{normalizeValue(p.Color.Name)}
	}
	if p.Fabric != "" {
		out[integration.OptionFabric] = []string{normalizeValue(p.Fabric)}
	}
	if len(p.Sizes) > 0 {
		sizes := make([]string, len(p.Sizes))
		for i, s := range p.Sizes {
			sizes[i] = normalizeValue(s)
		}
		out[integration.OptionSize] = sizes
	}
	return out
}

func isDefaultOption(name string, values []string) bool {
	return name == "Title" && len(values) == 1 && values[0] == "Default Title"
}

func normalizeValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

func sameValues(current, desired []string) bool {
	if len(current) != len(desired) {
		return false
	}
	for i := range current {
		if normalizeValue(current[i]) != desired[i] {
			return false
		}
	}
	return true
}

func variantUpToDate(current integration.RemoteVariant, spec integration.VariantSpec) bool {
	return current.SKU == spec.SKU &&
		current.Barcode == spec.Barcode &&
		current.Price.Equal(spec.Price)
}

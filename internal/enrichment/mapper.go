package enrichment

import (
	"fmt"
	"strconv"
	"strings"

	"catalog-service/internal/rowsource"
)

// CanonicalProduct is the normalized representation of one catalog row.
// Optional fields are nil when no source column provided a usable value.
type CanonicalProduct struct {
	Name        string
	Description string
	Category    *string
	Brand       *string
	SKU         *string
	UPC         *string
	Price       *float64
	Currency    string
	Quantity    *int
	Unit        string
	MainImage   *string
	Images      []string
}

// fieldAliases lists the known source-column names per canonical field, in
// priority order. The first present, non-empty value wins.
var fieldAliases = map[string][]string{
	"name":        {"Style Name", "name", "product_name", "item_name", "title", "product_title"},
	"description": {"description", "product_description", "item_description", "details"},
	"category":    {"Category", "Subcategory", "Division", "category", "product_category", "item_category", "type", "product_type"},
	"brand":       {"brand", "product_brand", "item_brand", "manufacturer", "make"},
	"sku":         {"SKU", "sku", "product_sku", "item_sku", "product_code", "item_code"},
	"upc":         {"UPC", "upc", "product_upc", "item_upc", "barcode", "ean"},
	"price":       {"Offer Price", "Wholesale", "RRP", "price", "product_price", "item_price", "cost", "unit_price"},
	"currency":    {"Currency", "currency", "product_currency", "item_currency"},
	"quantity":    {"Quantity Available", "quantity", "product_quantity", "item_quantity", "qty", "stock"},
	"unit":        {"unit", "product_unit", "item_unit", "uom", "measurement_unit"},
}

// descriptionParts are the descriptive columns joined into a synthesized
// description when the row has no description column of its own.
var descriptionParts = []struct {
	Label  string
	Column string
}{
	{"Color", "Color Name"},
	{"Size", "Size"},
	{"Alt Size", "Alt Size"},
	{"Category", "Category"},
	{"Subcategory", "Subcategory"},
	{"Division", "Division"},
}

// Mapper turns raw catalog rows into canonical products. Mapping is a pure
// function: missing or unparseable fields degrade to nil or a default, never
// to an error.
type Mapper struct{}

func NewMapper() *Mapper {
	return &Mapper{}
}

// Map derives a CanonicalProduct from a raw row. index is the row's position
// in the catalog, used for the name placeholder.
func (m *Mapper) Map(row rowsource.RawRow, index int) CanonicalProduct {
	name, ok := stringField(row, fieldAliases["name"])
	if !ok {
		name = fmt.Sprintf("Item %d", index)
	}

	currency, ok := stringField(row, fieldAliases["currency"])
	if !ok {
		currency = "USD"
	}

	unit, ok := stringField(row, fieldAliases["unit"])
	if !ok {
		unit = "piece"
	}

	var quantity *int
	if qty := numericField(row, fieldAliases["quantity"]); qty != nil {
		q := int(*qty)
		quantity = &q
	}

	return CanonicalProduct{
		Name:        name,
		Description: m.description(row),
		Category:    optionalField(row, fieldAliases["category"]),
		Brand:       optionalField(row, fieldAliases["brand"]),
		SKU:         optionalField(row, fieldAliases["sku"]),
		UPC:         optionalField(row, fieldAliases["upc"]),
		Price:       numericField(row, fieldAliases["price"]),
		Currency:    currency,
		Quantity:    quantity,
		Unit:        unit,
	}
}

// description prefers an explicit description column, then synthesizes one
// from the row's descriptive attributes.
func (m *Mapper) description(row rowsource.RawRow) string {
	if desc, ok := stringField(row, fieldAliases["description"]); ok {
		return desc
	}

	var parts []string
	for _, part := range descriptionParts {
		if value, ok := presentValue(row[part.Column]); ok {
			parts = append(parts, fmt.Sprintf("%s: %s", part.Label, value))
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " | ")
	}
	return "Product from catalog"
}

// stringField returns the first present, non-empty value for the alias list
func stringField(row rowsource.RawRow, aliases []string) (string, bool) {
	for _, alias := range aliases {
		if value, ok := presentValue(row[alias]); ok {
			return value, true
		}
	}
	return "", false
}

func optionalField(row rowsource.RawRow, aliases []string) *string {
	if value, ok := stringField(row, aliases); ok {
		return &value
	}
	return nil
}

// numericField returns the first parseable numeric value for the alias list.
// Currency symbols and thousands separators are stripped; unparseable values
// are skipped, not reported.
func numericField(row rowsource.RawRow, aliases []string) *float64 {
	for _, alias := range aliases {
		value, exists := row[alias]
		if !exists || value == nil {
			continue
		}

		switch v := value.(type) {
		case float64:
			result := v
			return &result
		case float32:
			result := float64(v)
			return &result
		case int:
			result := float64(v)
			return &result
		case int64:
			result := float64(v)
			return &result
		case string:
			cleaned := strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(v)
			if cleaned == "" {
				continue
			}
			parsed, err := strconv.ParseFloat(cleaned, 64)
			if err != nil {
				continue
			}
			return &parsed
		}
	}
	return nil
}

// presentValue renders a row value as a string, reporting whether it counts
// as present. Empty strings and the pandas "nan" artifact count as absent.
func presentValue(value interface{}) (string, bool) {
	if value == nil {
		return "", false
	}

	var s string
	switch v := value.(type) {
	case string:
		s = strings.TrimSpace(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		if !v {
			return "", false
		}
		s = "true"
	default:
		s = strings.TrimSpace(fmt.Sprintf("%v", v))
	}

	if s == "" || strings.EqualFold(s, "nan") {
		return "", false
	}
	return s, true
}

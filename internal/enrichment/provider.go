package enrichment

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"catalog-service/internal/models"
)

// Outcome is the result of one enrichment attempt for one item
type Outcome struct {
	Source     string
	Status     models.EnrichmentStatus
	Data       map[string]interface{}
	Errors     []string
	EnrichedAt time.Time
}

// Provider augments a canonical product with external catalog data
type Provider interface {
	Name() string
	EnrichItem(ctx context.Context, product CanonicalProduct) Outcome
}

// Registry holds the configured enrichment providers. Providers are
// registered at construction time; the set is closed afterwards.
type Registry struct {
	providers map[string]Provider
	names     []string
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if _, exists := r.providers[p.Name()]; exists {
			continue
		}
		r.providers[p.Name()] = p
		r.names = append(r.names, p.Name())
	}
	return r
}

// Get returns the provider registered under name
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// searchTerm derives a provider search term from a canonical product. The
// chain guarantees a non-empty term even for degenerate input: name, then
// description, then sku, then the remaining descriptive fields, then a
// deterministic placeholder from the record's hash.
func searchTerm(product CanonicalProduct) string {
	if product.Name != "" {
		return product.Name
	}

	if product.Description != "" {
		if len(product.Description) > 100 {
			return product.Description[:100]
		}
		return product.Description
	}

	if product.SKU != nil && *product.SKU != "" {
		return *product.SKU
	}

	var fields []string
	for _, v := range []*string{product.Brand, product.Category, product.UPC} {
		if v != nil && *v != "" {
			fields = append(fields, *v)
		}
		if len(fields) == 3 {
			break
		}
	}
	if len(fields) > 0 {
		return strings.Join(fields, " ")
	}

	return fmt.Sprintf("Product %d", recordHash(product))
}

// termHash maps a search term to a stable small number for mock identifiers
func termHash(term string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(term))
	return h.Sum32() % 1000000
}

// recordHash hashes the record's field values so identical rows always map
// to the same placeholder term
func recordHash(product CanonicalProduct) uint32 {
	parts := []string{product.Name, product.Description, product.Currency, product.Unit}
	for _, v := range []*string{product.Category, product.Brand, product.SKU, product.UPC, product.MainImage} {
		if v != nil {
			parts = append(parts, *v)
		}
	}
	if product.Price != nil {
		parts = append(parts, strconv.FormatFloat(*product.Price, 'f', -1, 64))
	}
	if product.Quantity != nil {
		parts = append(parts, strconv.Itoa(*product.Quantity))
	}
	parts = append(parts, product.Images...)
	return termHash(strings.Join(parts, "|"))
}

package enrichment

import (
	"context"
	"fmt"
	"time"

	"catalog-service/internal/models"
)

const amazonSource = "amazon_api"

// AmazonProvider is a simulated Amazon catalog-data provider. The payload is
// deterministic per search term so repeated runs stay comparable.
type AmazonProvider struct{}

func NewAmazonProvider() *AmazonProvider {
	return &AmazonProvider{}
}

func (p *AmazonProvider) Name() string {
	return "amazon"
}

func (p *AmazonProvider) EnrichItem(ctx context.Context, product CanonicalProduct) Outcome {
	term := searchTerm(product)
	h := termHash(term)

	return Outcome{
		Source: amazonSource,
		Status: models.EnrichmentStatusCompleted,
		Data: map[string]interface{}{
			"amazon_product_id":   fmt.Sprintf("AMZ_%d", h),
			"amazon_price":        99.99,
			"amazon_rating":       4.5,
			"amazon_review_count": 1250,
			"amazon_category":     "Electronics",
			"amazon_brand":        "Generic Brand",
			"amazon_features":     []string{"Wireless", "Bluetooth", "Noise Cancelling"},
			"amazon_images":       []string{"https://example.com/image1.jpg"},
			"amazon_url":          fmt.Sprintf("https://amazon.com/product/%d", h),
		},
		EnrichedAt: time.Now().UTC(),
	}
}

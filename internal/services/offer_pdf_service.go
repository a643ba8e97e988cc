package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"catalog-service/internal/models"
)

// OfferSheetService renders a printable PDF sheet for a generated offer
type OfferSheetService struct{}

func NewOfferSheetService() *OfferSheetService {
	return &OfferSheetService{}
}

// GenerateSheet renders the offer as a PDF and returns the bytes and a
// download filename
func (s *OfferSheetService) GenerateSheet(offer *models.Offer) ([]byte, string, error) {
	var items []models.OfferItem
	if len(offer.Items) > 0 {
		if err := json.Unmarshal(offer.Items, &items); err != nil {
			return nil, "", fmt.Errorf("failed to decode offer items: %w", err)
		}
	}

	cfg := config.NewBuilder().
		WithPageNumber().
		WithLeftMargin(10).
		WithTopMargin(15).
		WithRightMargin(10).
		Build()

	m := maroto.New(cfg)

	s.addHeader(m, offer)
	s.addValidity(m, offer)
	s.addItemsTable(m, items)
	s.addTotals(m, offer)
	s.addFooter(m, offer)

	doc, err := m.Generate()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate PDF: %w", err)
	}

	filename := fmt.Sprintf("offer-%s.pdf", offer.ID.String())
	return doc.GetBytes(), filename, nil
}

func (s *OfferSheetService) addHeader(m core.Maroto, offer *models.Offer) {
	m.AddRow(25,
		col.New(7).Add(
			text.New(offer.Name, props.Text{
				Size:  16,
				Style: fontstyle.Bold,
				Align: align.Left,
			}),
			text.New(offerDescription(offer), props.Text{
				Size:  9,
				Top:   9,
				Align: align.Left,
			}),
		),
		col.New(5).Add(
			text.New(strings.ToUpper(string(offer.OfferType))+" OFFER", props.Text{
				Size:  14,
				Style: fontstyle.Bold,
				Align: align.Right,
			}),
			text.New(fmt.Sprintf("# %s", offer.ID.String()), props.Text{
				Size:  8,
				Top:   8,
				Align: align.Right,
			}),
		),
	)

	m.AddRow(5, line.NewCol(12))
}

func (s *OfferSheetService) addValidity(m core.Maroto, offer *models.Offer) {
	status := "INACTIVE"
	if offer.IsActive && time.Now().Before(offer.ValidUntil) {
		status = "ACTIVE"
	}

	m.AddRow(15,
		col.New(6).Add(
			text.New(fmt.Sprintf("Valid from: %s", offer.ValidFrom.Format("Jan 02, 2006 15:04")), props.Text{
				Size:  10,
				Align: align.Left,
			}),
			text.New(fmt.Sprintf("Valid until: %s", offer.ValidUntil.Format("Jan 02, 2006 15:04")), props.Text{
				Size:  10,
				Top:   5,
				Align: align.Left,
			}),
		),
		col.New(6).Add(
			text.New(fmt.Sprintf("Status: %s", status), props.Text{
				Size:  10,
				Align: align.Right,
			}),
			text.New(fmt.Sprintf("Score: %.1f / 10", offer.OfferScore), props.Text{
				Size:  10,
				Top:   5,
				Align: align.Right,
			}),
		),
	)
}

func (s *OfferSheetService) addItemsTable(m core.Maroto, items []models.OfferItem) {
	m.AddRow(8,
		col.New(5).Add(
			text.New("Product", props.Text{
				Size:  10,
				Style: fontstyle.Bold,
				Align: align.Left,
			}),
		),
		col.New(2).Add(
			text.New("List Price", props.Text{
				Size:  10,
				Style: fontstyle.Bold,
				Align: align.Right,
			}),
		),
		col.New(2).Add(
			text.New("Offer Price", props.Text{
				Size:  10,
				Style: fontstyle.Bold,
				Align: align.Right,
			}),
		),
		col.New(2).Add(
			text.New("Discount", props.Text{
				Size:  10,
				Style: fontstyle.Bold,
				Align: align.Right,
			}),
		),
		col.New(1).Add(
			text.New("Max", props.Text{
				Size:  10,
				Style: fontstyle.Bold,
				Align: align.Center,
			}),
		),
	)

	m.AddRow(2, line.NewCol(12))

	for _, item := range items {
		m.AddRow(8,
			col.New(5).Add(
				text.New(item.ProductName, props.Text{
					Size:  9,
					Align: align.Left,
				}),
			),
			col.New(2).Add(
				text.New(fmt.Sprintf("$%.2f", item.OriginalPrice), props.Text{
					Size:  9,
					Align: align.Right,
				}),
			),
			col.New(2).Add(
				text.New(fmt.Sprintf("$%.2f", item.OfferPrice), props.Text{
					Size:  9,
					Align: align.Right,
				}),
			),
			col.New(2).Add(
				text.New(fmt.Sprintf("%.1f%%", item.DiscountPercentage), props.Text{
					Size:  9,
					Align: align.Right,
				}),
			),
			col.New(1).Add(
				text.New(fmt.Sprintf("%d", item.MaxQuantity), props.Text{
					Size:  9,
					Align: align.Center,
				}),
			),
		)
	}

	m.AddRow(3, line.NewCol(12))
}

func (s *OfferSheetService) addTotals(m core.Maroto, offer *models.Offer) {
	m.AddRow(6,
		col.New(8),
		col.New(2).Add(
			text.New("Total discount:", props.Text{
				Size:  10,
				Align: align.Right,
			}),
		),
		col.New(2).Add(
			text.New(fmt.Sprintf("%.2f%%", offer.TotalDiscount), props.Text{
				Size:  10,
				Align: align.Right,
			}),
		),
	)

	m.AddRow(2, col.New(8), line.NewCol(4))
	m.AddRow(8,
		col.New(8),
		col.New(2).Add(
			text.New("YOU SAVE:", props.Text{
				Size:  12,
				Style: fontstyle.Bold,
				Align: align.Right,
			}),
		),
		col.New(2).Add(
			text.New(fmt.Sprintf("$%.2f", offer.TotalSavings), props.Text{
				Size:  12,
				Style: fontstyle.Bold,
				Align: align.Right,
			}),
		),
	)
}

func (s *OfferSheetService) addFooter(m core.Maroto, offer *models.Offer) {
	m.AddRow(10)
	m.AddRow(10,
		col.New(12).Add(
			text.New(fmt.Sprintf("Generated on %s", time.Now().Format("Jan 02, 2006 15:04 MST")), props.Text{
				Size:  8,
				Align: align.Center,
				Color: &props.Color{Red: 128, Green: 128, Blue: 128},
			}),
		),
	)
}

func offerDescription(offer *models.Offer) string {
	if offer.Description != nil {
		return *offer.Description
	}
	return ""
}

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/models"
)

// Event subjects
const (
	SubjectCatalogUploaded = "catalog.uploaded"
	SubjectCatalogEnriched = "catalog.enriched"
	SubjectOfferGenerated  = "offer.generated"
)

// Event is the envelope published for catalog lifecycle events
type Event struct {
	EventID    string                 `json:"eventId"`
	EventType  string                 `json:"eventType"`
	OccurredAt time.Time              `json:"occurredAt"`
	UserID     string                 `json:"userId"`
	Data       map[string]interface{} `json:"data"`
}

// Publisher publishes catalog lifecycle events to NATS. A nil Publisher is
// valid and publishes nothing, so callers don't have to branch on whether
// events are configured.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects to NATS. Returns nil when natsURL is empty.
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	if natsURL == "" {
		return nil, nil
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("catalog-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		conn:   conn,
		logger: logger.WithField("component", "catalog-events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}

// PublishCatalogUploaded publishes a catalog.uploaded event
func (p *Publisher) PublishCatalogUploaded(catalog *models.Catalog) {
	if p == nil {
		return
	}
	p.publish(SubjectCatalogUploaded, catalog.UserID.String(), map[string]interface{}{
		"catalogId":  catalog.ID.String(),
		"name":       catalog.Name,
		"fileName":   catalog.FileName,
		"totalItems": catalog.TotalItems,
	})
}

// PublishCatalogEnriched publishes a catalog.enriched event after a run finishes
func (p *Publisher) PublishCatalogEnriched(userID string, catalogID string, status models.CatalogStatus, enrichedItems, failedItems int, provider string) {
	if p == nil {
		return
	}
	p.publish(SubjectCatalogEnriched, userID, map[string]interface{}{
		"catalogId":     catalogID,
		"status":        status,
		"enrichedItems": enrichedItems,
		"failedItems":   failedItems,
		"provider":      provider,
	})
}

// PublishOfferGenerated publishes an offer.generated event
func (p *Publisher) PublishOfferGenerated(offer *models.Offer) {
	if p == nil {
		return
	}
	p.publish(SubjectOfferGenerated, offer.UserID.String(), map[string]interface{}{
		"offerId":   offer.ID.String(),
		"catalogId": offer.CatalogID.String(),
		"offerType": offer.OfferType,
		"name":      offer.Name,
	})
}

// publish sends the event asynchronously so callers never block on NATS
func (p *Publisher) publish(subject, userID string, data map[string]interface{}) {
	event := Event{
		EventID:    uuid.New().String(),
		EventType:  subject,
		OccurredAt: time.Now().UTC(),
		UserID:     userID,
		Data:       data,
	}

	go func() {
		payload, err := json.Marshal(event)
		if err != nil {
			p.logger.WithError(err).Error("Failed to marshal event")
			return
		}

		if err := p.conn.Publish(subject, payload); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"userId":    event.UserID,
			}).WithError(err).Error("Failed to publish event")
			return
		}

		p.logger.WithFields(logrus.Fields{
			"eventType": event.EventType,
			"userId":    event.UserID,
		}).Info("Event published successfully")
	}()
}

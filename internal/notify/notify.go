// Package notify queues outbound participant notifications. Delivery is
// handled elsewhere; from the engine's perspective this is fire-and-forget.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gratipay/payday/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Notification template names used by the settlement engine.
const (
	TemplateChargeSucceeded = "charge_succeeded"
	TemplateChargeFailed    = "charge_failed"
)

// Notifier queues a message for a participant.
type Notifier interface {
	Notify(ctx context.Context, participantID uint64, template string, templateContext map[string]any) error
}

// GormNotifier appends notification rows for an external sender to drain.
type GormNotifier struct {
	db *gorm.DB
}

// NewGormNotifier returns a Notifier backed by the given connection.
func NewGormNotifier(conn *gorm.DB) *GormNotifier {
	return &GormNotifier{db: conn}
}

// Notify queues one notification row.
func (n *GormNotifier) Notify(ctx context.Context, participantID uint64, template string, templateContext map[string]any) error {
	if n == nil || n.db == nil {
		return errors.New("notify: nil notifier")
	}
	if participantID == 0 {
		return errors.New("notify: participant id is required")
	}

	payload, errMarshal := json.Marshal(templateContext)
	if errMarshal != nil {
		return fmt.Errorf("notify: marshal context: %w", errMarshal)
	}

	row := models.Notification{
		ParticipantID: participantID,
		Template:      template,
		Context:       payload,
	}
	if errCreate := n.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return fmt.Errorf("notify: queue %s for participant %d: %w", template, participantID, errCreate)
	}

	log.WithFields(log.Fields{
		"participant": participantID,
		"template":    template,
	}).Debug("notification queued")
	return nil
}

// Package conversion reports scheduled appointments to the ad platform,
// exactly once per tracking event id.
package conversion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lead_routing_backend/internal/events"
	"lead_routing_backend/internal/leads/domain"
	"lead_routing_backend/internal/leads/ports"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/platform/logger"
	"lead_routing_backend/platform/phone"
)

const (
	component = "conversion_dedup"

	EventSchedule      = "Schedule"
	StatusScheduled    = "scheduled"
	ContentCategory    = "Vivienda Nueva"
	DefaultContentName = "Conversion"
	DefaultCurrency    = "MXN"

	defaultGuardTTL = 7 * 24 * time.Hour
)

// Guard claims a key once across workers.
type Guard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Settings are the static parts of every payload.
type Settings struct {
	SourceURL   string
	Currency    string
	PhoneRegion string
	GuardTTL    time.Duration
}

// Deduplicator emits one Schedule event per new tracking event id.
type Deduplicator struct {
	tracking ports.TrackingService
	guard    Guard
	settings Settings
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// New builds the deduplicator. guard may be nil, in which case only the
// before/after comparison suppresses repeats.
func New(tracking ports.TrackingService, guard Guard, settings Settings, m *metrics.Metrics, log *logger.Logger) *Deduplicator {
	if settings.Currency == "" {
		settings.Currency = DefaultCurrency
	}
	if settings.PhoneRegion == "" {
		settings.PhoneRegion = phone.DefaultRegion
	}
	if settings.GuardTTL <= 0 {
		settings.GuardTTL = defaultGuardTTL
	}
	return &Deduplicator{
		tracking: tracking,
		guard:    guard,
		settings: settings,
		metrics:  m,
		log:      log.WithComponent(component),
	}
}

// Handle inspects one lead update. Delivery failures are logged only.
func (d *Deduplicator) Handle(ctx context.Context, event events.Event) error {
	written, ok := event.(events.LeadWritten)
	if !ok || written.IsCreate() {
		return nil
	}
	log := d.log.WithContext(ctx)

	trackingID := written.After.TrackingID()
	if trackingID == "" {
		log.Debug("no tracking event id, conversion skipped", "lead_id", written.LeadID)
		return nil
	}
	if trackingID == written.Before.TrackingID() {
		return nil
	}
	if d.tracking == nil {
		d.metrics.RecordConversion("disabled")
		return nil
	}

	key := GuardKey(trackingID)
	if d.guard != nil {
		won, err := d.guard.Claim(ctx, key, d.settings.GuardTTL)
		if err != nil {
			d.metrics.RecordHandlerError(component)
			log.HandlerError(component, fmt.Errorf("claim conversion guard: %w", err), "lead_id", written.LeadID)
			return nil
		}
		if !won {
			d.metrics.RecordConversion("suppressed")
			log.Info("conversion already sent", "lead_id", written.LeadID, "tracking_event_id", trackingID)
			return nil
		}
	}

	if err := d.tracking.SendEvent(ctx, d.BuildEvent(written.After)); err != nil {
		if d.guard != nil {
			if relErr := d.guard.Release(context.WithoutCancel(ctx), key); relErr != nil {
				log.Warn("failed to release conversion guard", "key", key, "error", relErr)
			}
		}
		d.metrics.RecordConversion("failed")
		log.HandlerError(component, fmt.Errorf("send conversion: %w", err), "lead_id", written.LeadID)
		return nil
	}

	d.metrics.RecordConversion("sent")
	log.Info("conversion sent", "lead_id", written.LeadID, "tracking_event_id", trackingID)
	return nil
}

// GuardKey is the Redis key that marks a tracking id as reported.
func GuardKey(trackingID string) string {
	return "lead:" + trackingID
}

// BuildEvent maps a lead onto the Schedule payload.
func (d *Deduplicator) BuildEvent(lead domain.Lead) ports.TrackingEvent {
	first, last := domain.SplitName(lead.Client.Name)

	var phoneNumber string
	if lead.Client.Phone != nil {
		phoneNumber = clean(phone.NormalizeE164(*lead.Client.Phone, d.settings.PhoneRegion))
	}

	contentName := strings.TrimSpace(lead.DevelopmentName)
	if contentName == "" {
		contentName = DefaultContentName
	}

	sourceURL := deref(lead.Attribution.SourceURL)
	if sourceURL == "" {
		sourceURL = d.settings.SourceURL
	}

	return ports.TrackingEvent{
		Name:      EventSchedule,
		EventID:   lead.TrackingID(),
		SourceURL: sourceURL,
		UserData: ports.TrackingUserData{
			Email:     lead.ClientEmail(),
			Phone:     phoneNumber,
			FirstName: clean(first),
			LastName:  clean(last),
			ZipCode:   clean(deref(lead.Attribution.ZipCode)),
			ClientIP:  deref(lead.Attribution.ClientIP),
			UserAgent: deref(lead.Attribution.UserAgent),
			FBC:       deref(lead.Attribution.FBC),
			FBP:       deref(lead.Attribution.FBP),
		},
		CustomData: ports.TrackingCustomData{
			ContentName:     contentName,
			ContentCategory: ContentCategory,
			Currency:        d.settings.Currency,
			Value:           0,
			Status:          StatusScheduled,
		},
	}
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

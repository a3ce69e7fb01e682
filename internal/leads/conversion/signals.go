package conversion

import (
	"context"
	"strings"

	"lead_routing_backend/internal/leads/domain"
	"lead_routing_backend/internal/leads/ports"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/platform/logger"
	"lead_routing_backend/platform/phone"
)

const (
	EventContact     = "Contact"
	EventViewContent = "ViewContent"

	signalsComponent = "funnel_signals"
)

// Signal is a funnel step the browser reports before a lead exists, such as
// opening the scheduler or tapping a contact button. The browser generates
// EventID and reuses it for its own pixel so the platform can merge both.
type Signal struct {
	Event           string
	EventID         string
	Name            string
	Email           string
	Phone           string
	DevelopmentName string
	SourceURL       string
	ZipCode         string
	FBC             string
	FBP             string
	ClientIP        string
	UserAgent       string
	Value           float64
	Currency        string
}

// Reporter forwards funnel signals straight to the tracking service. There is
// no stored document behind a signal, so nothing is deduplicated here.
type Reporter struct {
	tracking ports.TrackingService
	settings Settings
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewReporter builds a reporter. tracking may be nil; signals are then
// accepted and dropped.
func NewReporter(tracking ports.TrackingService, settings Settings, m *metrics.Metrics, log *logger.Logger) *Reporter {
	if settings.Currency == "" {
		settings.Currency = DefaultCurrency
	}
	if settings.PhoneRegion == "" {
		settings.PhoneRegion = phone.DefaultRegion
	}
	return &Reporter{
		tracking: tracking,
		settings: settings,
		metrics:  m,
		log:      log.WithComponent(signalsComponent),
	}
}

// Report sends one signal and reports whether it reached the platform.
// Delivery failures are logged only.
func (r *Reporter) Report(ctx context.Context, s Signal) bool {
	if r == nil || r.tracking == nil {
		return false
	}
	log := r.log.WithContext(ctx)

	if err := r.tracking.SendEvent(ctx, r.BuildEvent(s)); err != nil {
		r.metrics.RecordConversion("signal_failed")
		log.HandlerError(signalsComponent, err, "event", s.Event, "event_id", s.EventID)
		return false
	}

	r.metrics.RecordConversion("signal_sent")
	log.Info("funnel signal sent", "event", s.Event, "event_id", s.EventID)
	return true
}

// BuildEvent maps a signal onto the tracking payload. Contact carries no
// value; ViewContent carries the listing value when the browser has one.
func (r *Reporter) BuildEvent(s Signal) ports.TrackingEvent {
	first, last := domain.SplitName(s.Name)

	var phoneNumber string
	if p := strings.TrimSpace(s.Phone); p != "" {
		phoneNumber = clean(phone.NormalizeE164(p, r.settings.PhoneRegion))
	}

	contentName := strings.TrimSpace(s.DevelopmentName)
	if contentName == "" {
		contentName = DefaultContentName
	}

	sourceURL := strings.TrimSpace(s.SourceURL)
	if sourceURL == "" {
		sourceURL = r.settings.SourceURL
	}

	custom := ports.TrackingCustomData{
		ContentName:     contentName,
		ContentCategory: ContentCategory,
	}
	if s.Event == EventViewContent {
		custom.Value = s.Value
		custom.Currency = strings.ToUpper(strings.TrimSpace(s.Currency))
		if custom.Currency == "" {
			custom.Currency = r.settings.Currency
		}
	}

	return ports.TrackingEvent{
		Name:      s.Event,
		EventID:   strings.TrimSpace(s.EventID),
		SourceURL: sourceURL,
		UserData: ports.TrackingUserData{
			Email:     clean(s.Email),
			Phone:     phoneNumber,
			FirstName: clean(first),
			LastName:  clean(last),
			ZipCode:   clean(s.ZipCode),
			ClientIP:  strings.TrimSpace(s.ClientIP),
			UserAgent: strings.TrimSpace(s.UserAgent),
			FBC:       strings.TrimSpace(s.FBC),
			FBP:       strings.TrimSpace(s.FBP),
		},
		CustomData: custom,
	}
}

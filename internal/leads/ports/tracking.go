package ports

import "context"

// TrackingUserData must arrive trimmed and lowercased; the tracking service
// is responsible for hashing.
type TrackingUserData struct {
	Email     string
	Phone     string
	FirstName string
	LastName  string
	ZipCode   string
	ClientIP  string
	UserAgent string
	FBC       string
	FBP       string
}

// TrackingCustomData describes the conversion itself.
type TrackingCustomData struct {
	ContentName     string  `json:"content_name"`
	ContentCategory string  `json:"content_category"`
	Currency        string  `json:"currency,omitempty"`
	Value           float64 `json:"value"`
	Status          string  `json:"status,omitempty"`
}

// TrackingEvent is one server-side conversion event.
type TrackingEvent struct {
	Name       string
	EventID    string
	SourceURL  string
	UserData   TrackingUserData
	CustomData TrackingCustomData
}

// TrackingService reports conversions to the ad platform.
type TrackingService interface {
	SendEvent(ctx context.Context, event TrackingEvent) error
}

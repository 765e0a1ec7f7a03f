package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"triviacast-service/internal/domain"
	"triviacast-service/internal/farcaster"

	"go.uber.org/zap"
)

// NotificationStore keeps the notification targets registered per FID.
type NotificationStore interface {
	Save(ctx context.Context, details domain.NotificationDetails) error
	Get(ctx context.Context, fid int64) (domain.NotificationDetails, bool, error)
	Delete(ctx context.Context, fid int64) error
}

// AppKeyChecker reports whether key is an active signer for fid.
type AppKeyChecker interface {
	IsActiveSigner(ctx context.Context, fid int64, keyHex string) (bool, error)
}

// WebhookService handles Farcaster mini-app lifecycle events.
type WebhookService struct {
	store   NotificationStore
	checker AppKeyChecker
	now     func() time.Time
	log     *zap.Logger
}

func NewWebhookService(store NotificationStore, checker AppKeyChecker, log *zap.Logger) *WebhookService {
	return &WebhookService{store: store, checker: checker, now: time.Now, log: log.Named("webhook")}
}

// Handle verifies a raw webhook body and applies the event. Without an
// AppKeyChecker every event is refused.
func (s *WebhookService) Handle(ctx context.Context, body []byte) (farcaster.Event, error) {
	verified, err := farcaster.ParseEnvelope(body)
	if err != nil {
		return farcaster.Event{}, err
	}

	// a valid signature only proves key possession; the key must belong to the FID
	if s.checker == nil {
		return farcaster.Event{}, domain.ErrAppKeyUnchecked
	}
	ok, err := s.checker.IsActiveSigner(ctx, verified.Header.FID, "0x"+hex.EncodeToString(verified.AppKey))
	if err != nil {
		return farcaster.Event{}, fmt.Errorf("%w: verify app key: %v", domain.ErrUpstream, err)
	}
	if !ok {
		return farcaster.Event{}, fmt.Errorf("%w: app key not registered for fid", domain.ErrInvalidSignature)
	}

	fid := verified.Header.FID
	event := verified.Event
	switch event.Event {
	case farcaster.EventAdded, farcaster.EventNotificationsEnabled:
		if event.NotificationDetails == nil {
			// added without notifications
			break
		}
		err = s.store.Save(ctx, domain.NotificationDetails{
			FID:       fid,
			URL:       event.NotificationDetails.URL,
			Token:     event.NotificationDetails.Token,
			Enabled:   true,
			UpdatedAt: s.now(),
		})
	case farcaster.EventNotificationsDisabled:
		var current domain.NotificationDetails
		var found bool
		current, found, err = s.store.Get(ctx, fid)
		if err == nil && found {
			current.Enabled = false
			current.UpdatedAt = s.now()
			err = s.store.Save(ctx, current)
		}
	case farcaster.EventRemoved:
		err = s.store.Delete(ctx, fid)
	default:
		return farcaster.Event{}, fmt.Errorf("%w: unknown event %q", domain.ErrInvalidQuery, event.Event)
	}
	if err != nil {
		return farcaster.Event{}, fmt.Errorf("store notification details: %w", err)
	}

	s.log.Info("mini-app event", zap.Int64("fid", fid), zap.String("event", event.Event))
	return event, nil
}

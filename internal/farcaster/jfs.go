// Package farcaster verifies Farcaster mini-app webhooks and Quick Auth tokens.
package farcaster

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"triviacast-service/internal/domain"
)

// Envelope is a JSON Farcaster Signature as posted to webhooks.
type Envelope struct {
	Header    string `json:"header"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// Header identifies the signing app key.
type Header struct {
	FID  int64  `json:"fid"`
	Type string `json:"type"`
	Key  string `json:"key"`
}

const (
	EventAdded                 = "miniapp_added"
	EventRemoved               = "miniapp_removed"
	EventNotificationsEnabled  = "notifications_enabled"
	EventNotificationsDisabled = "notifications_disabled"
)

// legacy names sent by older clients
var eventAliases = map[string]string{
	"frame_added":   EventAdded,
	"frame_removed": EventRemoved,
}

// NotificationTarget is where notifications for a FID are delivered.
type NotificationTarget struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// Event is the decoded webhook payload.
type Event struct {
	Event               string              `json:"event"`
	NotificationDetails *NotificationTarget `json:"notificationDetails,omitempty"`
}

// Verified is a webhook whose signature checked out.
type Verified struct {
	Header Header
	AppKey ed25519.PublicKey
	Event  Event
}

// ParseEnvelope decodes and verifies the Ed25519 signature of a webhook body.
// It does not check that the key belongs to the FID.
func ParseEnvelope(body []byte) (Verified, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Verified{}, fmt.Errorf("%w: malformed envelope", domain.ErrInvalidSignature)
	}
	if env.Header == "" || env.Payload == "" || env.Signature == "" {
		return Verified{}, fmt.Errorf("%w: incomplete envelope", domain.ErrInvalidSignature)
	}

	var header Header
	if err := decodeJSONSegment(env.Header, &header); err != nil {
		return Verified{}, fmt.Errorf("%w: header: %v", domain.ErrInvalidSignature, err)
	}
	if header.Type != "app_key" || header.FID <= 0 {
		return Verified{}, fmt.Errorf("%w: unsupported header", domain.ErrInvalidSignature)
	}

	key, err := hex.DecodeString(strings.TrimPrefix(header.Key, "0x"))
	if err != nil || len(key) != ed25519.PublicKeySize {
		return Verified{}, fmt.Errorf("%w: bad app key", domain.ErrInvalidSignature)
	}
	sig, err := decodeSegment(env.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return Verified{}, fmt.Errorf("%w: bad signature encoding", domain.ErrInvalidSignature)
	}
	if !ed25519.Verify(key, []byte(env.Header+"."+env.Payload), sig) {
		return Verified{}, domain.ErrInvalidSignature
	}

	var event Event
	if err := decodeJSONSegment(env.Payload, &event); err != nil {
		return Verified{}, fmt.Errorf("%w: payload: %v", domain.ErrInvalidSignature, err)
	}
	if alias, ok := eventAliases[event.Event]; ok {
		event.Event = alias
	}
	return Verified{Header: header, AppKey: key, Event: event}, nil
}

// SignEnvelope builds a signed envelope. Used by tests and local tooling.
func SignEnvelope(priv ed25519.PrivateKey, fid int64, event Event) (Envelope, error) {
	pub := priv.Public().(ed25519.PublicKey)
	header, err := json.Marshal(Header{FID: fid, Type: "app_key", Key: "0x" + hex.EncodeToString(pub)})
	if err != nil {
		return Envelope{}, err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{
		Header:  base64.RawURLEncoding.EncodeToString(header),
		Payload: base64.RawURLEncoding.EncodeToString(payload),
	}
	env.Signature = base64.RawURLEncoding.EncodeToString(ed25519.Sign(priv, []byte(env.Header+"."+env.Payload)))
	return env, nil
}

func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func decodeJSONSegment(s string, v any) error {
	raw, err := decodeSegment(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

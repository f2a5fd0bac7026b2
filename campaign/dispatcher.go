package campaign

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Dispatcher starts an outbound call to one normalized number. It returns
// once the call was placed; the conversation itself runs elsewhere.
type Dispatcher interface {
	Dispatch(ctx context.Context, phone string) error
}

type DispatcherFunc func(ctx context.Context, phone string) error

func (f DispatcherFunc) Dispatch(ctx context.Context, phone string) error {
	return f(ctx, phone)
}

// RoomPrefix names the rooms of outbound planning calls.
const RoomPrefix = "travel-planning-"

// NewRoomName returns a unique room name, also used as conversation ID.
func NewRoomName() string {
	return RoomPrefix + uuid.NewString()
}

type CallRequest struct {
	PhoneNumber string `json:"phone_number"`
	RoomName    string `json:"room_name"`
	SIPTrunkID  string `json:"sip_trunk_id,omitempty"`
}

// WebhookDispatcher asks a SIP gateway to dial the number into a fresh room.
type WebhookDispatcher struct {
	url     string
	trunkID string
	client  *http.Client
}

func NewWebhookDispatcher(url, trunkID string, timeout time.Duration) *WebhookDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookDispatcher{
		url:     url,
		trunkID: trunkID,
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, phone string) error {
	body, err := sonic.Marshal(CallRequest{
		PhoneNumber: phone,
		RoomName:    NewRoomName(),
		SIPTrunkID:  d.trunkID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal call request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to dispatch call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway rejected call: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

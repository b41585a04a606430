package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/noachFrank/CarServiceServer/internal/observability"
)

const expoTokenPrefix = "ExponentPushToken"

// ExpoPushClient posts notifications to Expo's push API, which fans out to
// APNs/FCM on our behalf. The push token itself authenticates the request.
type ExpoPushClient struct {
	Endpoint string
	Client   *http.Client
	logger   *slog.Logger
}

func NewExpoPushClient(endpoint string, logger *slog.Logger) *ExpoPushClient {
	return &ExpoPushClient{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
	}
}

type expoMessage struct {
	To        string         `json:"to"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	Sound     string         `json:"sound"`
	Priority  string         `json:"priority"`
	ChannelID string         `json:"channelId"`
}

func toExpoMessage(n PushNotification) expoMessage {
	return expoMessage{
		To:        n.Token,
		Title:     n.Title,
		Body:      n.Body,
		Data:      n.Data,
		Sound:     "default",
		Priority:  "high",
		ChannelID: "default",
	}
}

func validToken(token string) bool {
	return strings.HasPrefix(token, expoTokenPrefix)
}

// SendPush delivers a single notification. Invalid tokens are dropped
// without an error: push is best-effort by contract.
func (e *ExpoPushClient) SendPush(n PushNotification) error {
	if !validToken(n.Token) {
		e.logger.Warn("push skipped, invalid token format")
		return nil
	}
	return e.post([]expoMessage{toExpoMessage(n)}, 1)
}

// SendPushBatch delivers many notifications in one request.
func (e *ExpoPushClient) SendPushBatch(ns []PushNotification) error {
	msgs := make([]expoMessage, 0, len(ns))
	for _, n := range ns {
		if !validToken(n.Token) {
			continue
		}
		msgs = append(msgs, toExpoMessage(n))
	}
	if len(msgs) == 0 {
		return nil
	}
	return e.post(msgs, len(msgs))
}

func (e *ExpoPushClient) post(msgs []expoMessage, count int) error {
	var body any = msgs
	if len(msgs) == 1 {
		body = msgs[0]
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := e.Client.Post(e.Endpoint, "application/json", bytes.NewReader(b))
	if err != nil {
		observability.PushFailed.Add(float64(count))
		e.logger.Error("push delivery failed", "count", count, "error", err)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		observability.PushFailed.Add(float64(count))
		e.logger.Error("push provider rejected request", "status", resp.StatusCode, "count", count)
		return fmt.Errorf("notify: push provider status %d", resp.StatusCode)
	}
	observability.PushSent.Add(float64(count))
	return nil
}

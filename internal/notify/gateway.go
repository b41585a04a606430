// Package notify delivers events to clients: real-time over websocket
// sessions, best-effort push for everyone else. Delivery is never allowed to
// affect committed state; failures are logged and surfaced via metrics only.
package notify

import "errors"

// ErrNoSession is returned when the target connection is not registered.
var ErrNoSession = errors.New("notify: no session for connection")

// PushNotification is one push message addressed by provider token.
type PushNotification struct {
	Token string         `json:"token"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Gateway is everything the coordinator needs to reach clients.
type Gateway interface {
	SendToConnection(connectionID, event string, payload any) error
	SendToGroup(group, event string, payload any) error
	SendPush(n PushNotification) error
	SendPushBatch(ns []PushNotification) error
}

// Notifier composes the websocket and push halves into one Gateway.
type Notifier struct {
	*WSGateway
	*ExpoPushClient
}

func NewNotifier(ws *WSGateway, push *ExpoPushClient) *Notifier {
	return &Notifier{WSGateway: ws, ExpoPushClient: push}
}

// Package messaging carries the dispatch <-> driver conversation: direct
// messages, fleet-wide broadcasts and read receipts. Every message is
// persisted before any delivery attempt, so a driver who is offline still
// finds it in their thread.
package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/noachFrank/CarServiceServer/internal/models"
	"github.com/noachFrank/CarServiceServer/internal/notify"
	"github.com/noachFrank/CarServiceServer/internal/storage"
)

// Outbound event names for the messaging wire contract.
const (
	EventMessageReceived = "ReceiveMessage"
	EventMessageSent     = "MessageSent" // echo to the other dispatchers
	EventBroadcastSent   = "BroadcastSent"
	EventMessagesRead    = "MessagesRead"
)

// ErrEmptyMessage rejects messages with no body.
var ErrEmptyMessage = errors.New("message body is empty")

// Presence is the connection view messaging needs for real-time delivery.
type Presence interface {
	ConnectionID(driverID string) (string, bool)
	DispatcherConnectionIDs() []string
}

// ThreadMessage is the wire payload for delivered messages.
type ThreadMessage struct {
	ID         string    `json:"id"`
	DriverID   string    `json:"driver_id"`
	DriverName string    `json:"driver_name,omitempty"`
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	Broadcast  bool      `json:"broadcast,omitempty"`
	SentAt     time.Time `json:"sent_at"`
	Read       bool      `json:"read"`
}

// ReadReceipt tells the sending side their messages were seen.
type ReadReceipt struct {
	MessageIDs []string  `json:"message_ids"`
	ReadBy     string    `json:"read_by"`
	Timestamp  time.Time `json:"timestamp"`
}

// BroadcastNotice is the confirmation echoed to the other dispatchers.
type BroadcastNotice struct {
	Body           string    `json:"body"`
	RecipientCount int       `json:"recipient_count"`
	Timestamp      time.Time `json:"timestamp"`
}

// Service routes messages between the dispatch desk and drivers.
type Service struct {
	store    storage.MessageStore
	drivers  storage.DriverStore
	presence Presence
	gateway  notify.Gateway
	group    string
	logger   *slog.Logger
	now      func() time.Time
}

func New(store storage.MessageStore, drivers storage.DriverStore, pres Presence, gw notify.Gateway, group string, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		drivers:  drivers,
		presence: pres,
		gateway:  gw,
		group:    group,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SendToDriver stores a dispatcher's message and delivers it: real-time if
// the driver is connected, and always by push so a backgrounded app still
// shows the notification. The other dispatchers hear an echo.
func (s *Service) SendToDriver(fromConnID, driverID, body string) (*models.Message, error) {
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if driverID == "" {
		return nil, fmt.Errorf("messaging: driver id is required")
	}

	msg := &models.Message{
		ID:       uuid.NewString(),
		DriverID: driverID,
		Sender:   models.SenderDispatcher,
		Body:     body,
		SentAt:   s.now(),
	}
	if err := s.store.CreateMessage(msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if connID, ok := s.presence.ConnectionID(driverID); ok {
		_ = s.gateway.SendToConnection(connID, EventMessageReceived, threadPayload(msg, "", false))
	}
	s.pushToDriver(driverID, msg)
	s.echoToOtherDispatchers(fromConnID, EventMessageSent, threadPayload(msg, "", false))

	s.logger.Info("message sent to driver", "driver_id", driverID, "message_id", msg.ID)
	return msg, nil
}

// SendToDispatchers stores a driver's message and delivers it to every
// connected dispatcher, with the driver's name attached for the panel.
func (s *Service) SendToDispatchers(driverID, body string) (*models.Message, error) {
	if body == "" {
		return nil, ErrEmptyMessage
	}

	msg := &models.Message{
		ID:       uuid.NewString(),
		DriverID: driverID,
		Sender:   models.SenderDriver,
		Body:     body,
		SentAt:   s.now(),
	}
	if err := s.store.CreateMessage(msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	name := driverID
	if d, err := s.drivers.GetDriver(driverID); err == nil {
		name = d.Name
	}
	_ = s.gateway.SendToGroup(s.group, EventMessageReceived, threadPayload(msg, name, false))

	s.logger.Info("message sent to dispatch", "driver_id", driverID, "message_id", msg.ID)
	return msg, nil
}

// Broadcast stores one copy of the message per driver and fans it out:
// real-time to the connected, push to everyone with a token. Returns the
// recipient count.
func (s *Service) Broadcast(fromConnID, body string) (int, error) {
	if body == "" {
		return 0, ErrEmptyMessage
	}

	all, err := s.drivers.GetAllDrivers()
	if err != nil {
		return 0, fmt.Errorf("list drivers for broadcast: %w", err)
	}
	if len(all) == 0 {
		return 0, nil
	}

	stamped := "[BROADCAST] " + body
	ts := s.now()
	ids := make([]string, 0, len(all))
	for _, d := range all {
		msg := &models.Message{
			ID:       uuid.NewString(),
			DriverID: d.ID,
			Sender:   models.SenderBroadcast,
			Body:     stamped,
			SentAt:   ts,
		}
		if err := s.store.CreateMessage(msg); err != nil {
			s.logger.Error("failed to persist broadcast copy", "driver_id", d.ID, "error", err)
			continue
		}
		ids = append(ids, d.ID)
		if connID, ok := s.presence.ConnectionID(d.ID); ok {
			_ = s.gateway.SendToConnection(connID, EventMessageReceived, threadPayload(msg, "", true))
		}
	}

	tokens, err := s.drivers.GetPushTokens(ids)
	if err != nil {
		s.logger.Error("push token lookup failed for broadcast", "error", err)
	} else {
		batch := make([]notify.PushNotification, 0, len(tokens))
		for _, token := range tokens {
			batch = append(batch, notify.PushNotification{
				Token: token,
				Title: "New message from dispatch",
				Body:  preview(stamped),
				Data:  map[string]any{"event": EventMessageReceived, "broadcast": true},
			})
		}
		if err := s.gateway.SendPushBatch(batch); err != nil {
			s.logger.Warn("broadcast push failed", "error", err)
		}
	}

	s.echoToOtherDispatchers(fromConnID, EventBroadcastSent, BroadcastNotice{
		Body:           stamped,
		RecipientCount: len(ids),
		Timestamp:      ts,
	})
	s.logger.Info("broadcast sent", "recipients", len(ids))
	return len(ids), nil
}

// MarkRead flags the messages read and tells the sending side. Driver
// messages read at the desk produce a receipt to that driver; dispatch and
// broadcast messages read on the road produce one receipt to the desk.
func (s *Service) MarkRead(messageIDs []string, readBy string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	byDriver := make(map[string][]string)
	var toDesk []string
	for _, id := range messageIDs {
		if err := s.store.MarkMessageRead(id); err != nil {
			s.logger.Warn("failed to mark message read", "message_id", id, "error", err)
			continue
		}
		msg, err := s.store.GetMessage(id)
		if err != nil {
			continue
		}
		if msg.Sender == models.SenderDriver {
			byDriver[msg.DriverID] = append(byDriver[msg.DriverID], id)
		} else {
			toDesk = append(toDesk, id)
		}
	}

	ts := s.now()
	for driverID, ids := range byDriver {
		if connID, ok := s.presence.ConnectionID(driverID); ok {
			_ = s.gateway.SendToConnection(connID, EventMessagesRead, ReadReceipt{
				MessageIDs: ids, ReadBy: readBy, Timestamp: ts,
			})
		}
	}
	if len(toDesk) > 0 {
		_ = s.gateway.SendToGroup(s.group, EventMessagesRead, ReadReceipt{
			MessageIDs: toDesk, ReadBy: readBy, Timestamp: ts,
		})
	}
	return nil
}

// History returns the driver's full thread in send order.
func (s *Service) History(driverID string) ([]*models.Message, error) {
	return s.store.MessagesForDriver(driverID)
}

func (s *Service) pushToDriver(driverID string, msg *models.Message) {
	token, err := s.drivers.GetPushToken(driverID)
	if err != nil || token == "" {
		return
	}
	_ = s.gateway.SendPush(notify.PushNotification{
		Token: token,
		Title: "New message from dispatch",
		Body:  preview(msg.Body),
		Data:  map[string]any{"message_id": msg.ID, "event": EventMessageReceived},
	})
}

func (s *Service) echoToOtherDispatchers(excludeConnID, event string, payload any) {
	for _, connID := range s.presence.DispatcherConnectionIDs() {
		if connID == excludeConnID {
			continue
		}
		_ = s.gateway.SendToConnection(connID, event, payload)
	}
}

func threadPayload(msg *models.Message, driverName string, broadcast bool) ThreadMessage {
	return ThreadMessage{
		ID:         msg.ID,
		DriverID:   msg.DriverID,
		DriverName: driverName,
		Sender:     msg.Sender,
		Body:       msg.Body,
		Broadcast:  broadcast,
		SentAt:     msg.SentAt,
		Read:       msg.Read,
	}
}

// preview shortens a message body for the notification tray.
func preview(body string) string {
	if len(body) <= 100 {
		return body
	}
	return body[:97] + "..."
}

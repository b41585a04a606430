package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noachFrank/CarServiceServer/internal/availability"
	"github.com/noachFrank/CarServiceServer/internal/coordinator"
	"github.com/noachFrank/CarServiceServer/internal/messaging"
	"github.com/noachFrank/CarServiceServer/internal/models"
	"github.com/noachFrank/CarServiceServer/internal/notify"
	"github.com/noachFrank/CarServiceServer/internal/presence"
	"github.com/noachFrank/CarServiceServer/internal/storage"
	"github.com/noachFrank/CarServiceServer/internal/tracking"
	"github.com/noachFrank/CarServiceServer/internal/traveltime"
)

type serverFixture struct {
	srv      *Server
	rides    *storage.MemoryRideStore
	drivers  *storage.MemoryDriverStore
	registry *presence.Registry
	tracker  *tracking.Tracker
	messages *messaging.Service
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rides := storage.NewMemoryRideStore()
	drivers := storage.NewMemoryDriverStore()
	registry := presence.NewRegistry(15*time.Minute, drivers, logger)
	gateway := notify.NewWSGateway(logger)
	push := notify.NewExpoPushClient("http://127.0.0.1:0", logger)
	notifier := notify.NewNotifier(gateway, push)

	travel := traveltime.ProviderFunc(func(from, to string) (int, error) { return 15, nil })
	engine := availability.NewEngine(rides, travel, availability.Config{
		DefaultTravelMinutes:     20,
		BaseGraceMinutes:         30,
		LongCallThresholdMinutes: 45,
		ScalingEnabled:           true,
	}, logger)

	coord := coordinator.New(rides, drivers, registry, engine, notifier, logger)
	coord.SetSpawn(func(f func()) { f() })
	tracker := tracking.NewTracker(coordinator.DispatcherGroup, gateway, nil, logger)
	messages := messaging.New(storage.NewMemoryMessageStore(), drivers, registry, notifier, coordinator.DispatcherGroup, logger)

	return &serverFixture{
		srv:      NewServer(logger, registry, gateway, coord, tracker, messages, rides),
		rides:    rides,
		drivers:  drivers,
		registry: registry,
		tracker:  tracker,
		messages: messages,
	}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) seedDriver(id string) {
	f.drivers.PutDriver(&models.Driver{ID: id, Name: "Driver " + id})
	f.drivers.PutPrimaryVehicle(&models.Vehicle{
		ID: "v-" + id, DriverID: id, Class: models.ClassVan15, Seats: 15, Primary: true,
	})
}

func callBody() map[string]any {
	return map[string]any{
		"call": map[string]any{
			"customer_name": "Ada",
			"scheduled_for": "2026-03-02T14:00:00Z",
			"route": map[string]any{
				"pickup":             "123 Main St",
				"dropoff":            "456 Oak Ave",
				"estimated_duration": int64(30 * time.Minute),
			},
			"vehicle_class": "suv",
			"passengers":    2,
		},
	}
}

func TestCreateCallEndpoint(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/calls", callBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Call
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	stored, err := f.rides.GetByID(created.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada", stored.CustomerName)
}

func TestCreateCallEndpointRejectsInvalid(t *testing.T) {
	f := newServerFixture(t)

	body := callBody()
	body["call"].(map[string]any)["vehicle_class"] = "hovercraft"
	rec := f.do(t, http.MethodPost, "/api/v1/calls", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCallEndpoint(t *testing.T) {
	f := newServerFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/calls", callBody())
	var created models.Call
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.do(t, http.MethodGet, "/api/v1/calls/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "open", got.Status)

	rec = f.do(t, http.MethodGet, "/api/v1/calls/ghost", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssignEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.seedDriver("d1")
	f.seedDriver("d2")

	rec := f.do(t, http.MethodPost, "/api/v1/calls", callBody())
	var created models.Call
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/calls/%s/assign", created.ID), map[string]string{"driver_id": "d1"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Losing driver gets a conflict naming the winner.
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/calls/%s/assign", created.ID), map[string]string{"driver_id": "d2"})
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict struct {
		AssignedToID string `json:"assigned_to_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflict))
	require.Equal(t, "d1", conflict.AssignedToID)

	rec = f.do(t, http.MethodPost, "/api/v1/calls/ghost/assign", map[string]string{"driver_id": "d1"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/calls/%s/assign", created.ID), map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnassignAndCancelEndpoints(t *testing.T) {
	f := newServerFixture(t)
	f.seedDriver("d1")

	rec := f.do(t, http.MethodPost, "/api/v1/calls", callBody())
	var created models.Call
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Unassign before anyone holds it.
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/calls/%s/unassign", created.ID), nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/calls/%s/assign", created.ID), map[string]string{"driver_id": "d1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/calls/%s/unassign", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/calls/%s/cancel", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Assigning a canceled call reports it gone.
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/calls/%s/assign", created.ID), map[string]string{"driver_id": "d1"})
	require.Equal(t, http.StatusGone, rec.Code)
}

func TestResetPickupEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.seedDriver("d1")

	rec := f.do(t, http.MethodPost, "/api/v1/calls", callBody())
	var created models.Call
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/calls/%s/reset-pickup", created.ID), nil)
	require.Equal(t, http.StatusConflict, rec.Code, "no assignee yet")

	f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/calls/%s/assign", created.ID), map[string]string{"driver_id": "d1"})

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/calls/%s/reset-pickup", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDriverPresenceEndpoints(t *testing.T) {
	f := newServerFixture(t)
	f.seedDriver("d1")
	f.registry.RegisterDriver("d1", "conn-1")

	rec := f.do(t, http.MethodGet, "/api/v1/drivers/online", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var online struct {
		DriverIDs []string `json:"driver_ids"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &online))
	require.Equal(t, []string{"d1"}, online.DriverIDs)

	rec = f.do(t, http.MethodGet, "/api/v1/drivers/active-count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
	require.Equal(t, 1, count.Count)
}

func TestDriverMessagesEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.seedDriver("d1")

	_, err := f.messages.SendToDriver("desk-conn", "d1", "Customer is waiting outside")
	require.NoError(t, err)
	_, err = f.messages.SendToDispatchers("d1", "On my way")
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/v1/drivers/d1/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Messages, 2)
	require.Equal(t, models.SenderDispatcher, got.Messages[0].Sender)
	require.Equal(t, models.SenderDriver, got.Messages[1].Sender)

	rec = f.do(t, http.MethodGet, "/api/v1/drivers/ghost/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code, "an empty thread is not an error")
}

func TestHealthz(t *testing.T) {
	f := newServerFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

package coordinator

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noachFrank/CarServiceServer/internal/availability"
	"github.com/noachFrank/CarServiceServer/internal/models"
	"github.com/noachFrank/CarServiceServer/internal/notify"
	"github.com/noachFrank/CarServiceServer/internal/storage"
	"github.com/noachFrank/CarServiceServer/internal/traveltime"
)

type fakePresence struct {
	mu     sync.RWMutex
	online map[string]bool
	conns  map[string]string
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: make(map[string]bool), conns: make(map[string]string)}
}

func (p *fakePresence) IsOnline(driverID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online[driverID]
}

func (p *fakePresence) ConnectionID(driverID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.conns[driverID]
	return conn, ok
}

func (p *fakePresence) DriverConnectionIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.conns))
	for _, conn := range p.conns {
		out = append(out, conn)
	}
	return out
}

type sentEvent struct {
	target  string // connection id, or "group:" + group name
	event   string
	payload any
}

type fakeGateway struct {
	mu     sync.Mutex
	events []sentEvent
	pushes []notify.PushNotification
}

func (g *fakeGateway) SendToConnection(connectionID, event string, payload any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, sentEvent{connectionID, event, payload})
	return nil
}

func (g *fakeGateway) SendToGroup(group, event string, payload any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, sentEvent{"group:" + group, event, payload})
	return nil
}

func (g *fakeGateway) SendPush(n notify.PushNotification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushes = append(g.pushes, n)
	return nil
}

func (g *fakeGateway) SendPushBatch(ns []notify.PushNotification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushes = append(g.pushes, ns...)
	return nil
}

func (g *fakeGateway) eventsTo(target string) []sentEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []sentEvent
	for _, e := range g.events {
		if e.target == target {
			out = append(out, e)
		}
	}
	return out
}

func (g *fakeGateway) eventsNamed(event string) []sentEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []sentEvent
	for _, e := range g.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (g *fakeGateway) pushTokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.pushes))
	for _, p := range g.pushes {
		out = append(out, p.Token)
	}
	return out
}

type fixture struct {
	rides   *storage.MemoryRideStore
	drivers *storage.MemoryDriverStore
	pres    *fakePresence
	gw      *fakeGateway
	coord   *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rides := storage.NewMemoryRideStore()
	drivers := storage.NewMemoryDriverStore()
	pres := newFakePresence()
	gw := &fakeGateway{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	travel := traveltime.ProviderFunc(func(from, to string) (int, error) { return 15, nil })
	engine := availability.NewEngine(rides, travel, availability.Config{
		DefaultTravelMinutes:     20,
		BaseGraceMinutes:         30,
		LongCallThresholdMinutes: 45,
		ScalingEnabled:           true,
	}, logger)

	coord := New(rides, drivers, pres, engine, gw, logger)
	coord.SetSpawn(func(f func()) { f() })
	return &fixture{rides: rides, drivers: drivers, pres: pres, gw: gw, coord: coord}
}

func (f *fixture) seedDriver(id string, class models.VehicleClass, seats int, online bool) {
	f.drivers.PutDriver(&models.Driver{
		ID:        id,
		Name:      "Driver " + id,
		PushToken: fmt.Sprintf("ExponentPushToken[%s]", id),
	})
	f.drivers.PutPrimaryVehicle(&models.Vehicle{
		ID: "v-" + id, DriverID: id, Class: class, Seats: seats, Primary: true,
	})
	if online {
		f.pres.online[id] = true
		f.pres.conns[id] = "conn-" + id
	}
}

func openCall(class models.VehicleClass, passengers int) *models.Call {
	return &models.Call{
		ID:           "call-1",
		CustomerName: "Ada",
		ScheduledFor: time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
		Route: models.Route{
			Pickup:            "123 Main St",
			Dropoff:           "456 Oak Ave",
			EstimatedDuration: 30 * time.Minute,
		},
		VehicleClass: class,
		Passengers:   passengers,
	}
}

func TestCreateCallBroadcastsToEligibleSet(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)  // online, capable
	f.seedDriver("d2", models.ClassVan15, 15, false) // offline, capable
	f.seedDriver("d3", models.ClassSedan, 4, true)   // online, wrong vehicle

	created, err := f.coord.CreateCall(openCall(models.ClassSUV, 3), nil)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	// Real-time only to the online, connected, capable driver.
	offers := f.gw.eventsNamed(EventNewCallAvailable)
	require.Len(t, offers, 1)
	require.Equal(t, "conn-d1", offers[0].target)

	// Push to the full eligible set, connected or not.
	require.ElementsMatch(t,
		[]string{"ExponentPushToken[d1]", "ExponentPushToken[d2]"},
		f.gw.pushTokens())
}

func TestCreateCallOnlineButScheduleBusy(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)

	first := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(first))
	require.NoError(t, f.rides.Assign(first.ID, "d1"))

	// Same time slot: d1's schedule is occupied, so nobody hears about it.
	second := openCall(models.ClassSUV, 2)
	second.ID = "call-2"
	_, err := f.coord.CreateCall(second, nil)
	require.NoError(t, err)

	require.Empty(t, f.gw.eventsNamed(EventNewCallAvailable))
	require.Empty(t, f.gw.pushTokens())
}

func TestCreateCallPreAssigned(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)
	f.seedDriver("d2", models.ClassVan15, 15, true)

	call := openCall(models.ClassSUV, 2)
	d1 := "d1"
	call.AssignedToID = &d1

	_, err := f.coord.CreateCall(call, nil)
	require.NoError(t, err)

	offers := f.gw.eventsNamed(EventNewCallAvailable)
	require.Len(t, offers, 1, "pre-assigned calls are offered to their driver only")
	require.Equal(t, "conn-d1", offers[0].target)
	require.Empty(t, f.gw.pushTokens(), "a connected driver needs no push")
}

func TestCreateCallValidation(t *testing.T) {
	f := newFixture(t)

	bad := openCall("hovercraft", 2)
	_, err := f.coord.CreateCall(bad, nil)
	require.ErrorIs(t, err, ErrInvalidCall)

	noPassengers := openCall(models.ClassSedan, 0)
	_, err = f.coord.CreateCall(noPassengers, nil)
	require.ErrorIs(t, err, ErrInvalidCall)
}

func TestCreateCallPersistsRecurrence(t *testing.T) {
	f := newFixture(t)

	rule := &models.RecurrenceRule{
		Weekday:   1,
		TimeOfDay: "14:00",
		EndDate:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	created, err := f.coord.CreateCall(openCall(models.ClassSedan, 1), rule)
	require.NoError(t, err)
	require.NotNil(t, created.RecurrenceID)

	stored, err := f.rides.GetRecurrence(*created.RecurrenceID)
	require.NoError(t, err)
	require.Equal(t, "14:00", stored.TimeOfDay)
}

func TestAssignCall(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)
	f.seedDriver("d2", models.ClassVan15, 15, true)

	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))

	require.NoError(t, f.coord.AssignCall(call.ID, "d1"))

	stored, err := f.rides.GetByID(call.ID)
	require.NoError(t, err)
	winner, ok := stored.EffectiveDriverID()
	require.True(t, ok)
	require.Equal(t, "d1", winner)
	require.Equal(t, models.StatusAssigned, stored.Status())

	// Winner hears success; the other connected driver gets the retraction.
	success := f.gw.eventsNamed(EventCallAssignmentSuccess)
	require.Len(t, success, 1)
	require.Equal(t, "conn-d1", success[0].target)

	retractions := f.gw.eventsNamed(EventCallAssigned)
	targets := make([]string, 0, len(retractions))
	for _, e := range retractions {
		targets = append(targets, e.target)
	}
	require.Contains(t, targets, "conn-d2")
	require.NotContains(t, targets, "conn-d1")
	require.Contains(t, targets, "group:"+DispatcherGroup)

	drivers, err := f.drivers.GetAllDrivers()
	require.NoError(t, err)
	for _, d := range drivers {
		if d.ID == "d1" {
			require.True(t, d.OnJob, "assignment flags the driver on-job")
		}
	}
}

func TestAssignCallConflict(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)
	f.seedDriver("d2", models.ClassVan15, 15, true)

	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))
	require.NoError(t, f.coord.AssignCall(call.ID, "d1"))

	err := f.coord.AssignCall(call.ID, "d2")
	var conflict *AlreadyAssignedError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "d1", conflict.AssignedToID)

	rejections := f.gw.eventsTo("conn-d2")
	var found bool
	for _, e := range rejections {
		if e.event == EventCallAlreadyAssigned {
			notice, ok := e.payload.(CallNotice)
			require.True(t, ok)
			require.Equal(t, "d1", notice.AssignedToID)
			found = true
		}
	}
	require.True(t, found, "loser must receive CallAlreadyAssigned")

	// Losing the race never steals the assignment.
	stored, _ := f.rides.GetByID(call.ID)
	winner, _ := stored.EffectiveDriverID()
	require.Equal(t, "d1", winner)
}

func TestAssignCallNotFound(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)

	err := f.coord.AssignCall("ghost", "d1")
	require.ErrorIs(t, err, ErrCallNotFound)

	events := f.gw.eventsTo("conn-d1")
	require.Len(t, events, 1)
	require.Equal(t, EventCallAlreadyAssigned, events[0].event)
}

func TestAssignCallConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	const contenders = 8
	for i := 0; i < contenders; i++ {
		f.seedDriver(fmt.Sprintf("d%d", i), models.ClassVan15, 15, true)
	}

	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.coord.AssignCall(call.ID, fmt.Sprintf("d%d", i))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var conflict *AlreadyAssignedError
		require.ErrorAs(t, err, &conflict)
	}
	require.Equal(t, 1, wins, "exactly one contender wins the race")

	stored, err := f.rides.GetByID(call.ID)
	require.NoError(t, err)
	_, assigned := stored.EffectiveDriverID()
	require.True(t, assigned)
}

func TestUnassignDriverReopensCall(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)
	f.seedDriver("d2", models.ClassVan15, 15, true)

	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))
	require.NoError(t, f.coord.AssignCall(call.ID, "d1"))

	require.NoError(t, f.coord.UnassignDriver(call.ID))

	stored, err := f.rides.GetByID(call.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusReassignmentPending, stored.Status())
	_, assigned := stored.EffectiveDriverID()
	require.False(t, assigned)

	// The removed driver hears it directly, dispatchers hear it, and the
	// reopened call is re-broadcast. With this call off d1's schedule they
	// are eligible again themselves.
	unassigned := f.gw.eventsNamed(EventCallUnassigned)
	targets := make([]string, 0, len(unassigned))
	for _, e := range unassigned {
		targets = append(targets, e.target)
	}
	require.Contains(t, targets, "conn-d1")
	require.Contains(t, targets, "group:"+DispatcherGroup)

	again := f.gw.eventsNamed(EventCallAvailableAgain)
	againTargets := make([]string, 0, len(again))
	for _, e := range again {
		againTargets = append(againTargets, e.target)
	}
	require.ElementsMatch(t, []string{"conn-d1", "conn-d2"}, againTargets)

	// The next assignment lands in the reassignment slot.
	require.NoError(t, f.coord.AssignCall(call.ID, "d2"))
	stored, _ = f.rides.GetByID(call.ID)
	winner, ok := stored.EffectiveDriverID()
	require.True(t, ok)
	require.Equal(t, "d2", winner)
	require.True(t, stored.Reassigned)
	require.NotNil(t, stored.AssignedToID)
	require.Equal(t, "d1", *stored.AssignedToID, "the original assignee is kept for history")
}

func TestUnassignSkipsDriverBusyElsewhere(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)
	f.seedDriver("d2", models.ClassVan15, 15, true)

	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))
	require.NoError(t, f.coord.AssignCall(call.ID, "d1"))

	// A second call in the same slot keeps d1's schedule full even after
	// they lose the first one.
	blocker := openCall(models.ClassSUV, 2)
	blocker.ID = "call-2"
	require.NoError(t, f.rides.CreateCall(blocker))
	require.NoError(t, f.rides.Assign(blocker.ID, "d1"))

	require.NoError(t, f.coord.UnassignDriver(call.ID))

	again := f.gw.eventsNamed(EventCallAvailableAgain)
	targets := make([]string, 0, len(again))
	for _, e := range again {
		targets = append(targets, e.target)
	}
	require.Contains(t, targets, "conn-d2")
	require.NotContains(t, targets, "conn-d1", "a driver busy elsewhere is not re-offered the call")

	require.ElementsMatch(t, []string{"ExponentPushToken[d2]"}, f.gw.pushTokens(),
		"push reaches the eligible set only")
}

func TestUnassignDriverWithoutAssignee(t *testing.T) {
	f := newFixture(t)
	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))

	require.ErrorIs(t, f.coord.UnassignDriver(call.ID), ErrNoActiveAssignee)
}

func TestCancelCall(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)
	f.seedDriver("d2", models.ClassVan15, 15, true)

	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))
	require.NoError(t, f.coord.AssignCall(call.ID, "d1"))

	require.NoError(t, f.coord.CancelCall(call.ID))

	stored, err := f.rides.GetByID(call.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCanceled, stored.Status())

	canceled := f.gw.eventsNamed(EventCallCanceled)
	targets := make([]string, 0, len(canceled))
	for _, e := range canceled {
		targets = append(targets, e.target)
	}
	require.Contains(t, targets, "conn-d1", "the assignee hears the cancellation")
	require.Contains(t, targets, "conn-d2", "other connected drivers get the retraction")
	require.Contains(t, targets, "group:"+DispatcherGroup)

	// Cancellation is terminal and idempotent.
	require.NoError(t, f.coord.CancelCall(call.ID))
	require.ErrorIs(t, f.coord.AssignCall(call.ID, "d2"), ErrCallClosed)
}

func TestCancelAfterCancelKeepsState(t *testing.T) {
	f := newFixture(t)
	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))
	require.NoError(t, f.coord.CancelCall(call.ID))

	before := len(f.gw.eventsNamed(EventCallCanceled))
	require.NoError(t, f.coord.CancelCall(call.ID))
	require.Equal(t, before, len(f.gw.eventsNamed(EventCallCanceled)), "second cancel is a no-op")
}

func TestMarkPickedUpAndDroppedOff(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)

	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))
	require.NoError(t, f.coord.AssignCall(call.ID, "d1"))

	require.NoError(t, f.coord.MarkPickedUp(call.ID))
	stored, _ := f.rides.GetByID(call.ID)
	require.Equal(t, models.StatusPickedUp, stored.Status())

	require.NoError(t, f.coord.MarkDroppedOff(call.ID))
	stored, _ = f.rides.GetByID(call.ID)
	require.Equal(t, models.StatusDroppedOff, stored.Status())

	completions := f.gw.eventsNamed(EventRideCompleted)
	require.Len(t, completions, 1)
	require.Equal(t, "group:"+DispatcherGroup, completions[0].target)

	drivers, _ := f.drivers.GetAllDrivers()
	require.False(t, drivers[0].OnJob, "dropoff frees the driver")

	// Dropoff is idempotent, pickup after dropoff is rejected.
	require.NoError(t, f.coord.MarkDroppedOff(call.ID))
	require.Error(t, f.coord.MarkPickedUp(call.ID))
}

func TestMarkPickedUpOnCanceledCall(t *testing.T) {
	f := newFixture(t)
	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))
	require.NoError(t, f.coord.CancelCall(call.ID))

	require.Error(t, f.coord.MarkPickedUp(call.ID))
}

func TestResetPickupTime(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)

	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))
	require.NoError(t, f.coord.AssignCall(call.ID, "d1"))
	require.NoError(t, f.coord.MarkPickedUp(call.ID))

	require.NoError(t, f.coord.ResetPickupTime(call.ID))

	stored, _ := f.rides.GetByID(call.ID)
	require.Nil(t, stored.PickupTime)
	require.Equal(t, models.StatusAssigned, stored.Status())

	resets := f.gw.eventsNamed(EventPickupTimeReset)
	targets := make([]string, 0, len(resets))
	for _, e := range resets {
		targets = append(targets, e.target)
	}
	require.Contains(t, targets, "conn-d1")
	require.Contains(t, targets, "group:"+DispatcherGroup)
}

func TestResetPickupTimeWithoutAssignee(t *testing.T) {
	f := newFixture(t)
	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))

	require.ErrorIs(t, f.coord.ResetPickupTime(call.ID), ErrNoActiveAssignee)
}

func recurringCall(f *fixture, t *testing.T, endDate time.Time) *models.Call {
	t.Helper()
	rule := &models.RecurrenceRule{ID: "rule-1", Weekday: 1, TimeOfDay: "14:00", EndDate: endDate}
	require.NoError(t, f.rides.CreateRecurrence(rule))

	call := openCall(models.ClassSUV, 2)
	call.RecurrenceID = &rule.ID
	call.Cost = 80
	call.Tip = 12
	call.WaitTimeAmount = 5
	require.NoError(t, f.rides.CreateCall(call))
	return call
}

func TestRecurrenceSuccessorOnDropoff(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)

	call := recurringCall(f, t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, f.coord.AssignCall(call.ID, "d1"))
	require.NoError(t, f.coord.MarkDroppedOff(call.ID))

	// The successor is broadcast as a fresh open call; grab it off the wire.
	offers := f.gw.eventsNamed(EventNewCallAvailable)
	require.Len(t, offers, 1)
	successor, ok := offers[0].payload.(*models.Call)
	require.True(t, ok)

	require.Equal(t, call.ScheduledFor.AddDate(0, 0, 7), successor.ScheduledFor)
	require.Equal(t, models.StatusOpen, successor.Status(), "successors spawn unassigned")
	require.Equal(t, call.Cost, successor.Cost)
	require.Zero(t, successor.Tip, "tip belongs to the completed occurrence")
	require.Zero(t, successor.WaitTimeAmount, "wait charges belong to the completed occurrence")
	require.Equal(t, call.RecurrenceID, successor.RecurrenceID)
	require.NotEqual(t, call.ID, successor.ID)

	stored, err := f.rides.GetByID(successor.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOpen, stored.Status())
}

func TestRecurrenceSuccessorOnCancel(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)

	call := recurringCall(f, t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, f.coord.CancelCall(call.ID))

	offers := f.gw.eventsNamed(EventNewCallAvailable)
	require.Len(t, offers, 1, "cancellation also advances the recurrence")
	successor := offers[0].payload.(*models.Call)
	require.Equal(t, call.ScheduledFor.AddDate(0, 0, 7), successor.ScheduledFor)
}

func TestRecurrenceStopsAtEndDate(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)

	// End date falls before the next occurrence.
	call := recurringCall(f, t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, f.coord.AssignCall(call.ID, "d1"))
	require.NoError(t, f.coord.MarkDroppedOff(call.ID))

	require.Empty(t, f.gw.eventsNamed(EventNewCallAvailable), "no successor past the end date")
}

func TestNonRecurringCallSpawnsNothing(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)

	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))
	require.NoError(t, f.coord.AssignCall(call.ID, "d1"))
	require.NoError(t, f.coord.MarkDroppedOff(call.ID))

	require.Empty(t, f.gw.eventsNamed(EventNewCallAvailable))
}

func TestAssignAfterCancelIsRejected(t *testing.T) {
	f := newFixture(t)
	f.seedDriver("d1", models.ClassVan15, 15, true)

	call := openCall(models.ClassSUV, 2)
	require.NoError(t, f.rides.CreateCall(call))
	require.NoError(t, f.coord.CancelCall(call.ID))

	require.ErrorIs(t, f.coord.AssignCall(call.ID, "d1"), ErrCallClosed)
}

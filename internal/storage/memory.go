package storage

import (
	"sync"
	"time"

	"github.com/noachFrank/CarServiceServer/internal/models"
)

// MemoryRideStore is the in-process RideStore used when no database is
// configured, and the reference implementation for tests. All conditional
// writes happen under the store lock.
type MemoryRideStore struct {
	mu          sync.RWMutex
	calls       map[string]*models.Call
	recurrences map[string]*models.RecurrenceRule
}

func NewMemoryRideStore() *MemoryRideStore {
	return &MemoryRideStore{
		calls:       make(map[string]*models.Call),
		recurrences: make(map[string]*models.RecurrenceRule),
	}
}

func (m *MemoryRideStore) GetByID(id string) (*models.Call, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryRideStore) GetActiveCallsForDriver(driverID string) ([]*models.Call, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Call
	for _, c := range m.calls {
		if !c.Active() {
			continue
		}
		if id, ok := c.EffectiveDriverID(); ok && id == driverID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryRideStore) CreateCall(c *models.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.calls[c.ID] = &cp
	return nil
}

func (m *MemoryRideStore) CreateRecurrence(r *models.RecurrenceRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rp := *r
	m.recurrences[r.ID] = &rp
	return nil
}

func (m *MemoryRideStore) GetRecurrence(id string) (*models.RecurrenceRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recurrences[id]
	if !ok {
		return nil, ErrNotFound
	}
	rp := *r
	return &rp, nil
}

// Assign is the conditional commit: the check and the write share one
// critical section, so two racing attempts can never both succeed.
func (m *MemoryRideStore) Assign(callID, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return ErrNotFound
	}
	if _, taken := c.EffectiveDriverID(); taken {
		return ErrAlreadyAssigned
	}
	id := driverID
	if c.Reassigned {
		c.ReassignedToID = &id
	} else {
		c.AssignedToID = &id
	}
	return nil
}

func (m *MemoryRideStore) SetReassignmentPending(callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return ErrNotFound
	}
	if c.Reassigned {
		c.ReassignedToID = nil
	}
	c.Reassigned = true
	return nil
}

func (m *MemoryRideStore) Cancel(callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return ErrNotFound
	}
	c.Canceled = true
	return nil
}

func (m *MemoryRideStore) SetPickupTime(callID string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return ErrNotFound
	}
	ts := t
	c.PickupTime = &ts
	return nil
}

func (m *MemoryRideStore) ClearPickupTime(callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return ErrNotFound
	}
	c.PickupTime = nil
	return nil
}

func (m *MemoryRideStore) SetDropoffTime(callID string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return ErrNotFound
	}
	ts := t
	c.DropoffTime = &ts
	return nil
}

// MemoryDriverStore is the in-process DriverStore counterpart.
type MemoryDriverStore struct {
	mu       sync.RWMutex
	drivers  map[string]*models.Driver
	vehicles map[string]*models.Vehicle // keyed by driver id, primary vehicle only
}

func NewMemoryDriverStore() *MemoryDriverStore {
	return &MemoryDriverStore{
		drivers:  make(map[string]*models.Driver),
		vehicles: make(map[string]*models.Vehicle),
	}
}

// PutDriver seeds or replaces a driver record.
func (m *MemoryDriverStore) PutDriver(d *models.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dp := *d
	m.drivers[d.ID] = &dp
}

// PutPrimaryVehicle seeds or replaces a driver's primary vehicle.
func (m *MemoryDriverStore) PutPrimaryVehicle(v *models.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vp := *v
	m.vehicles[v.DriverID] = &vp
}

func (m *MemoryDriverStore) GetAllDrivers() ([]*models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		dp := *d
		out = append(out, &dp)
	}
	return out, nil
}

func (m *MemoryDriverStore) GetDriver(driverID string) (*models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return nil, ErrNotFound
	}
	dp := *d
	return &dp, nil
}

func (m *MemoryDriverStore) GetPrimaryVehicle(driverID string) (*models.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[driverID]
	if !ok {
		return nil, nil
	}
	vp := *v
	return &vp, nil
}

func (m *MemoryDriverStore) SetActiveStatus(driverID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return ErrNotFound
	}
	d.Active = active
	return nil
}

func (m *MemoryDriverStore) SetOnJob(driverID string, onJob bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return ErrNotFound
	}
	d.OnJob = onJob
	return nil
}

func (m *MemoryDriverStore) GetPushToken(driverID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return "", ErrNotFound
	}
	return d.PushToken, nil
}

func (m *MemoryDriverStore) GetPushTokens(driverIDs []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(driverIDs))
	for _, id := range driverIDs {
		if d, ok := m.drivers[id]; ok && d.PushToken != "" {
			out[id] = d.PushToken
		}
	}
	return out, nil
}

// MemoryMessageStore is the in-process MessageStore counterpart. Messages are
// kept in insertion order, which is send order for a single process.
type MemoryMessageStore struct {
	mu       sync.RWMutex
	messages []*models.Message
	byID     map[string]*models.Message
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{byID: make(map[string]*models.Message)}
}

func (m *MemoryMessageStore) CreateMessage(msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp := *msg
	m.messages = append(m.messages, &mp)
	m.byID[msg.ID] = &mp
	return nil
}

func (m *MemoryMessageStore) GetMessage(id string) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	mp := *msg
	return &mp, nil
}

func (m *MemoryMessageStore) MessagesForDriver(driverID string) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Message
	for _, msg := range m.messages {
		if msg.DriverID == driverID {
			mp := *msg
			out = append(out, &mp)
		}
	}
	return out, nil
}

func (m *MemoryMessageStore) MarkMessageRead(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	msg.Read = true
	return nil
}

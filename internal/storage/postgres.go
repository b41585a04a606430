package storage

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/noachFrank/CarServiceServer/internal/models"
)

// PostgresRideStore is a thin RideStore adapter over a postgres database.
// The Assign guard lives in the UPDATE's WHERE clause, so exclusivity holds
// even across multiple server processes sharing one database.
type PostgresRideStore struct {
	db *sql.DB
}

func NewPostgresRideStore(dsn string) (*PostgresRideStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresRideStore{db: db}, nil
}

// DB exposes the underlying handle so the driver store can share it.
func (p *PostgresRideStore) DB() *sql.DB { return p.db }

const callColumns = `id, customer_name, customer_phone, call_time, scheduled_for, pickup_time, dropoff_time,
	pickup, dropoff, round_trip, estimated_duration_minutes, vehicle_class, passengers, car_seat,
	cost, tip, wait_time_amount, assigned_to_id, reassigned_to_id, reassigned, canceled,
	recurrence_id, dispatcher_id, notes`

func scanCall(row interface{ Scan(...any) error }) (*models.Call, error) {
	var c models.Call
	var durationMinutes int
	err := row.Scan(&c.ID, &c.CustomerName, &c.CustomerPhone, &c.CallTime, &c.ScheduledFor,
		&c.PickupTime, &c.DropoffTime, &c.Route.Pickup, &c.Route.Dropoff, &c.Route.RoundTrip,
		&durationMinutes, &c.VehicleClass, &c.Passengers, &c.CarSeat,
		&c.Cost, &c.Tip, &c.WaitTimeAmount, &c.AssignedToID, &c.ReassignedToID,
		&c.Reassigned, &c.Canceled, &c.RecurrenceID, &c.DispatcherID, &c.Notes)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Route.EstimatedDuration = time.Duration(durationMinutes) * time.Minute
	return &c, nil
}

func (p *PostgresRideStore) GetByID(id string) (*models.Call, error) {
	row := p.db.QueryRow(`SELECT `+callColumns+` FROM calls WHERE id=$1`, id)
	return scanCall(row)
}

func (p *PostgresRideStore) GetActiveCallsForDriver(driverID string) ([]*models.Call, error) {
	rows, err := p.db.Query(`SELECT `+callColumns+` FROM calls
		WHERE dropoff_time IS NULL AND NOT canceled
		AND ((NOT reassigned AND assigned_to_id=$1) OR (reassigned AND reassigned_to_id=$1))`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresRideStore) CreateCall(c *models.Call) error {
	_, err := p.db.Exec(`INSERT INTO calls(`+callColumns+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		c.ID, c.CustomerName, c.CustomerPhone, c.CallTime, c.ScheduledFor, c.PickupTime, c.DropoffTime,
		c.Route.Pickup, c.Route.Dropoff, c.Route.RoundTrip, int(c.Route.EstimatedDuration.Minutes()),
		c.VehicleClass, c.Passengers, c.CarSeat, c.Cost, c.Tip, c.WaitTimeAmount,
		c.AssignedToID, c.ReassignedToID, c.Reassigned, c.Canceled, c.RecurrenceID, c.DispatcherID, c.Notes)
	return err
}

func (p *PostgresRideStore) CreateRecurrence(r *models.RecurrenceRule) error {
	_, err := p.db.Exec(`INSERT INTO recurrences(id, weekday, time_of_day, end_date) VALUES($1,$2,$3,$4)`,
		r.ID, r.Weekday, r.TimeOfDay, r.EndDate)
	return err
}

func (p *PostgresRideStore) GetRecurrence(id string) (*models.RecurrenceRule, error) {
	var r models.RecurrenceRule
	err := p.db.QueryRow(`SELECT id, weekday, time_of_day, end_date FROM recurrences WHERE id=$1`, id).
		Scan(&r.ID, &r.Weekday, &r.TimeOfDay, &r.EndDate)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *PostgresRideStore) Assign(callID, driverID string) error {
	res, err := p.db.Exec(`UPDATE calls SET
			assigned_to_id   = CASE WHEN reassigned THEN assigned_to_id ELSE $2 END,
			reassigned_to_id = CASE WHEN reassigned THEN $2 ELSE reassigned_to_id END
		WHERE id=$1
		AND ((NOT reassigned AND assigned_to_id IS NULL) OR (reassigned AND reassigned_to_id IS NULL))`,
		callID, driverID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing call from a lost race.
		var exists bool
		if err := p.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM calls WHERE id=$1)`, callID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrAlreadyAssigned
	}
	return nil
}

func (p *PostgresRideStore) SetReassignmentPending(callID string) error {
	return p.exec1(`UPDATE calls SET reassigned_to_id=NULL, reassigned=TRUE WHERE id=$1`, callID)
}

func (p *PostgresRideStore) Cancel(callID string) error {
	return p.exec1(`UPDATE calls SET canceled=TRUE WHERE id=$1`, callID)
}

func (p *PostgresRideStore) SetPickupTime(callID string, t time.Time) error {
	return p.exec1(`UPDATE calls SET pickup_time=$2 WHERE id=$1`, callID, t)
}

func (p *PostgresRideStore) ClearPickupTime(callID string) error {
	return p.exec1(`UPDATE calls SET pickup_time=NULL WHERE id=$1`, callID)
}

func (p *PostgresRideStore) SetDropoffTime(callID string, t time.Time) error {
	return p.exec1(`UPDATE calls SET dropoff_time=$2 WHERE id=$1`, callID, t)
}

func (p *PostgresRideStore) exec1(query string, args ...any) error {
	res, err := p.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresDriverStore adapts the drivers and vehicles tables.
type PostgresDriverStore struct {
	db *sql.DB
}

func NewPostgresDriverStore(db *sql.DB) *PostgresDriverStore {
	return &PostgresDriverStore{db: db}
}

func (p *PostgresDriverStore) GetAllDrivers() ([]*models.Driver, error) {
	rows, err := p.db.Query(`SELECT id, name, active, on_job, COALESCE(push_token,'') FROM drivers WHERE end_date IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Driver
	for rows.Next() {
		var d models.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Active, &d.OnJob, &d.PushToken); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (p *PostgresDriverStore) GetDriver(driverID string) (*models.Driver, error) {
	var d models.Driver
	err := p.db.QueryRow(`SELECT id, name, active, on_job, COALESCE(push_token,'') FROM drivers WHERE id=$1`, driverID).
		Scan(&d.ID, &d.Name, &d.Active, &d.OnJob, &d.PushToken)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (p *PostgresDriverStore) GetPrimaryVehicle(driverID string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := p.db.QueryRow(`SELECT id, driver_id, class, seats, is_primary FROM vehicles WHERE driver_id=$1 AND is_primary`, driverID).
		Scan(&v.ID, &v.DriverID, &v.Class, &v.Seats, &v.Primary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (p *PostgresDriverStore) SetActiveStatus(driverID string, active bool) error {
	_, err := p.db.Exec(`UPDATE drivers SET active=$2 WHERE id=$1`, driverID, active)
	return err
}

func (p *PostgresDriverStore) SetOnJob(driverID string, onJob bool) error {
	_, err := p.db.Exec(`UPDATE drivers SET on_job=$2 WHERE id=$1`, driverID, onJob)
	return err
}

func (p *PostgresDriverStore) GetPushToken(driverID string) (string, error) {
	var token string
	err := p.db.QueryRow(`SELECT COALESCE(push_token,'') FROM drivers WHERE id=$1`, driverID).Scan(&token)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return token, err
}

func (p *PostgresDriverStore) GetPushTokens(driverIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(driverIDs))
	if len(driverIDs) == 0 {
		return out, nil
	}
	rows, err := p.db.Query(`SELECT id, push_token FROM drivers WHERE id = ANY($1) AND push_token IS NOT NULL AND push_token <> ''`, pq.Array(driverIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, token string
		if err := rows.Scan(&id, &token); err != nil {
			return nil, err
		}
		out[id] = token
	}
	return out, rows.Err()
}

// PostgresMessageStore adapts the messages table.
type PostgresMessageStore struct {
	db *sql.DB
}

func NewPostgresMessageStore(db *sql.DB) *PostgresMessageStore {
	return &PostgresMessageStore{db: db}
}

func (p *PostgresMessageStore) CreateMessage(m *models.Message) error {
	_, err := p.db.Exec(`INSERT INTO messages(id, driver_id, sender, body, sent_at, read) VALUES($1,$2,$3,$4,$5,$6)`,
		m.ID, m.DriverID, m.Sender, m.Body, m.SentAt, m.Read)
	return err
}

func (p *PostgresMessageStore) GetMessage(id string) (*models.Message, error) {
	var m models.Message
	err := p.db.QueryRow(`SELECT id, driver_id, sender, body, sent_at, read FROM messages WHERE id=$1`, id).
		Scan(&m.ID, &m.DriverID, &m.Sender, &m.Body, &m.SentAt, &m.Read)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *PostgresMessageStore) MessagesForDriver(driverID string) ([]*models.Message, error) {
	rows, err := p.db.Query(`SELECT id, driver_id, sender, body, sent_at, read FROM messages WHERE driver_id=$1 ORDER BY sent_at`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.DriverID, &m.Sender, &m.Body, &m.SentAt, &m.Read); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (p *PostgresMessageStore) MarkMessageRead(id string) error {
	res, err := p.db.Exec(`UPDATE messages SET read=TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

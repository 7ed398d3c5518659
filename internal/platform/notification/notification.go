// Package notification delivers appointment events to patients and to other
// systems. Delivery is best-effort: the Dispatcher runs senders in the
// background and failures are logged and counted, never returned.
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/platform/metrics"
)

type Kind string

const (
	KindBooked        Kind = "appointment.booked"
	KindStatusChanged Kind = "appointment.status_changed"
)

// Event is a snapshot of an appointment at the moment something happened to
// it. It carries display values so senders need no database access.
type Event struct {
	ID             uuid.UUID `json:"id"`
	Kind           Kind      `json:"kind"`
	AppointmentID  uuid.UUID `json:"appointment_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	RecipientEmail string    `json:"-"`
	PatientName    string    `json:"patient_name"`
	DoctorName     string    `json:"doctor_name"`
	Specialization string    `json:"specialization"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	Fee            float64   `json:"fee"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Sender delivers an event over one channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to every sender on background goroutines.
type Dispatcher struct {
	senders []Sender
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(logger zerolog.Logger, timeout time.Duration, senders ...Sender) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{senders: senders, timeout: timeout, log: logger}
}

// Notify schedules delivery of ev and returns immediately.
func (d *Dispatcher) Notify(ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	for _, s := range d.senders {
		d.wg.Add(1)
		go d.deliver(s, ev)
	}
}

func (d *Dispatcher) deliver(s Sender, ev Event) {
	defer d.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sender panic: %v", r)
			}
		}()
		return s.Send(ctx, ev)
	}()

	if err != nil {
		metrics.Notifications.WithLabelValues(s.Channel(), "failed").Inc()
		d.log.Warn().Err(err).Str("channel", s.Channel()).Str("kind", string(ev.Kind)).
			Str("appointment_id", ev.AppointmentID.String()).Msg("notification delivery failed")
		return
	}
	metrics.Notifications.WithLabelValues(s.Channel(), "sent").Inc()
	d.log.Debug().Str("channel", s.Channel()).Str("kind", string(ev.Kind)).
		Str("appointment_id", ev.AppointmentID.String()).Msg("notification sent")
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSender writes events to the application log. It stands in for email
// when no SMTP server is configured.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{log: logger}
}

func (l *LogSender) Channel() string { return "log" }

func (l *LogSender) Send(_ context.Context, ev Event) error {
	l.log.Info().
		Str("kind", string(ev.Kind)).
		Str("appointment_id", ev.AppointmentID.String()).
		Str("status", ev.Status).
		Str("recipient", ev.RecipientEmail).
		Str("doctor", ev.DoctorName).
		Str("date", ev.Date).
		Str("start_time", ev.StartTime).
		Msg("appointment notification")
	return nil
}

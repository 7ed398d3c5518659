package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/carebook/internal/domain/scheduling"
	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/db"
)

// activeSlotKey is the partial unique index that allows one live appointment
// per slot (migrations/004_appointments.sql).
const activeSlotKey = "appointments_active_slot_key"

func translate(err error) error {
	if err == nil {
		return nil
	}
	if db.IsNoRows(err) {
		return apperr.NotFound("appointment")
	}
	if name, ok := db.UniqueViolation(err); ok {
		if name == activeSlotKey {
			return apperr.SlotUnavailable("this slot is already booked")
		}
		return apperr.Conflict("duplicate appointment")
	}
	if db.OutOfRange(err) {
		return apperr.Validation("appointment_fee", "must not exceed 99999999.99")
	}
	return err
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const selectAppointment = `
	SELECT a.id, a.user_id, a.patient_id, a.doctor_id, a.slot_id, a.symptoms, a.additional_notes,
		a.status, a.fee, a.created_at, a.updated_at,
		p.title, p.first_name, p.last_name,
		d.first_name, d.last_name, d.specialization, d.user_id,
		s.slot_date, s.start_time, s.end_time
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id
	JOIN availability_slots s ON s.id = a.slot_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a                    Appointment
		title, pFirst, pLast string
		dFirst, dLast        string
		spec                 scheduling.Specialization
	)
	err := row.Scan(&a.ID, &a.UserID, &a.PatientID, &a.DoctorID, &a.SlotID, &a.Symptoms, &a.Notes,
		&a.Status, &a.Fee, &a.CreatedAt, &a.UpdatedAt,
		&title, &pFirst, &pLast,
		&dFirst, &dLast, &spec, &a.DoctorUserID,
		&a.Date, &a.StartTime, &a.EndTime)
	if err != nil {
		return nil, translate(err)
	}
	a.PatientName = strings.TrimSpace(pFirst + " " + pLast)
	if title != "" {
		a.PatientName = title + ". " + a.PatientName
	}
	a.DoctorName = "Dr. " + dFirst + " " + dLast
	a.DoctorSpecialization = spec.Label()
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, user_id, patient_id, doctor_id, slot_id, symptoms, additional_notes, status, fee)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		a.ID, a.UserID, a.PatientID, a.DoctorID, a.SlotID, a.Symptoms, a.Notes, a.Status, a.Fee,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return translate(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, selectAppointment+` WHERE a.id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, selectAppointment+` WHERE a.id = $1 FOR UPDATE OF a`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET symptoms=$2, additional_notes=$3, status=$4, fee=$5, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Symptoms, a.Notes, a.Status, a.Fee,
	).Scan(&a.UpdatedAt)
	return translate(err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Visible != nil {
		add(`(a.user_id = $%[1]d OR d.user_id = $%[1]d)`, *f.Visible)
	}
	if f.Status != "" {
		add(`a.status = $%d`, f.Status)
	}
	if f.DoctorID != nil {
		add(`a.doctor_id = $%d`, *f.DoctorID)
	}
	if f.PatientID != nil {
		add(`a.patient_id = $%d`, *f.PatientID)
	}
	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, ` AND `)
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM appointments a JOIN doctors d ON d.id = a.doctor_id` + where
	if err := r.conn(ctx).QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`%s%s ORDER BY a.created_at DESC, a.id LIMIT $%d OFFSET $%d`,
		selectAppointment, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, selectAppointment+` WHERE a.patient_id = $1 ORDER BY a.created_at FOR UPDATE OF a`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

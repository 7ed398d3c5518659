package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/db"
	"github.com/carebook/carebook/pkg/civil"
)

// constraint names from migrations/002_scheduling.sql
var uniqueFields = map[string][2]string{
	"doctors_email_key":                  {"email", "a doctor with this email already exists"},
	"doctors_license_number_key":         {"license_number", "a doctor with this license number already exists"},
	"doctors_user_id_key":                {"user_id", "this user is already linked to a doctor"},
	"availability_slots_doctor_start_key": {"start_time", "the doctor already has a slot starting at this time"},
}

func translate(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if db.IsNoRows(err) {
		return apperr.NotFound(notFound)
	}
	if name, ok := db.UniqueViolation(err); ok {
		if f, known := uniqueFields[name]; known {
			return apperr.Validation(f[0], f[1])
		}
		return apperr.Conflict("duplicate " + notFound)
	}
	if db.OutOfRange(err) {
		return apperr.Validation("consultation_fee", "must not exceed 99999999.99")
	}
	return err
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const doctorCols = `id, user_id, first_name, last_name, email, phone, specialization, qualification,
	license_number, experience_years, age, consultation_fee, is_active, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.Specialization,
		&d.Qualification, &d.LicenseNumber, &d.ExperienceYears, &d.Age, &d.ConsultationFee, &d.IsActive,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, translate(err, "doctor")
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, user_id, first_name, last_name, email, phone, specialization, qualification,
			license_number, experience_years, age, consultation_fee, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.FirstName, d.LastName, d.Email, d.Phone, d.Specialization, d.Qualification,
		d.LicenseNumber, d.ExperienceYears, d.Age, d.ConsultationFee, d.IsActive,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return translate(err, "doctor")
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1 FOR UPDATE`, id))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET user_id=$2, first_name=$3, last_name=$4, email=$5, phone=$6, specialization=$7,
			qualification=$8, license_number=$9, experience_years=$10, age=$11, consultation_fee=$12,
			is_active=$13, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.UserID, d.FirstName, d.LastName, d.Email, d.Phone, d.Specialization,
		d.Qualification, d.LicenseNumber, d.ExperienceYears, d.Age, d.ConsultationFee, d.IsActive,
	).Scan(&d.UpdatedAt)
	return translate(err, "doctor")
}

func (r *doctorRepoPG) ListActive(ctx context.Context, spec Specialization, limit, offset int) ([]*Doctor, int, error) {
	where := ` WHERE is_active`
	args := []any{}
	if spec != "" {
		where += ` AND specialization = $1`
		args = append(args, spec)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM doctors%s ORDER BY last_name, first_name, id LIMIT $%d OFFSET $%d`,
		doctorCols, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

func (r *slotRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const slotCols = `id, doctor_id, slot_date, start_time, end_time, is_available, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.DoctorID, &s.Date, &s.StartTime, &s.EndTime, &s.IsAvailable, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, translate(err, "availability slot")
	}
	return &s, nil
}

func (r *slotRepoPG) Create(ctx context.Context, s *Slot) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO availability_slots (id, doctor_id, slot_date, start_time, end_time, is_available)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		s.ID, s.DoctorID, s.Date, s.StartTime, s.EndTime, s.IsAvailable,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return translate(err, "availability slot")
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM availability_slots WHERE id = $1`, id))
}

func (r *slotRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM availability_slots WHERE id = $1 FOR UPDATE`, id))
}

func (r *slotRepoPG) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date civil.Date) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+slotCols+` FROM availability_slots
		WHERE doctor_id = $1 AND slot_date = $2 ORDER BY start_time`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *slotRepoPG) SearchAvailable(ctx context.Context, f SlotFilter, limit, offset int) ([]*Slot, int, error) {
	where := ` WHERE is_available AND (slot_date > $1 OR (slot_date = $1 AND start_time >= $2)) AND slot_date <= $3`
	args := []any{f.From, f.FromTime, f.To}
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		where += fmt.Sprintf(` AND doctor_id = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM availability_slots`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM availability_slots%s ORDER BY slot_date, start_time, id LIMIT $%d OFFSET $%d`,
		slotCols, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *slotRepoPG) SetAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE availability_slots SET is_available = $2, updated_at = NOW() WHERE id = $1`, id, available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("availability slot")
	}
	return nil
}

package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const cols = `id, user_id, title, first_name, last_name, relation, gender, age, medical_history, created_at, updated_at`

func translate(err error) error {
	if err == nil {
		return nil
	}
	if db.IsNoRows(err) {
		return apperr.NotFound("patient")
	}
	if name, ok := db.UniqueViolation(err); ok && name == "patients_user_relation_key" {
		return apperr.Validation("relation", "you already have a patient with this relation")
	}
	return err
}

func scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.FirstName, &p.LastName, &p.Relation, &p.Gender,
		&p.Age, &p.MedicalHistory, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, user_id, title, first_name, last_name, relation, gender, age, medical_history)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.Title, p.FirstName, p.LastName, p.Relation, p.Gender, p.Age, p.MedicalHistory,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return translate(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scan(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET title=$2, first_name=$3, last_name=$4, relation=$5, gender=$6, age=$7,
			medical_history=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Title, p.FirstName, p.LastName, p.Relation, p.Gender, p.Age, p.MedicalHistory,
	).Scan(&p.UpdatedAt)
	return translate(err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient")
	}
	return nil
}

func (r *repoPG) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE user_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+cols+` FROM patients WHERE user_id = $1
		ORDER BY created_at, id LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) LockOwner(ctx context.Context, ownerID uuid.UUID) ([]Relation, error) {
	var id uuid.UUID
	if err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, ownerID).Scan(&id); err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.Forbidden("account is not registered")
		}
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT relation FROM patients WHERE user_id = $1`, ownerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[Relation])
}

package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/db"
)

// constraint names from migrations/001_accounts.sql
var uniqueFields = map[string][2]string{
	"users_email_key":        {"email", "user with this email already exists"},
	"users_phone_number_key": {"phone_number", "user with this phone number already exists"},
	"user_profiles_pkey":     {"user_id", "user already has a profile"},
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if db.IsNoRows(err) {
		return apperr.NotFound("user")
	}
	if name, ok := db.UniqueViolation(err); ok {
		if f, known := uniqueFields[name]; known {
			return apperr.Validation(f[0], f[1])
		}
		return apperr.Conflict("duplicate user")
	}
	return err
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *repoPG) CreateUser(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, email, first_name, last_name, phone_number, is_staff, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Phone, u.IsStaff, u.IsActive,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return translate(err)
}

func (r *repoPG) CreateProfile(ctx context.Context, p *Profile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO user_profiles (user_id, role) VALUES ($1,$2)
		RETURNING created_at, updated_at`,
		p.UserID, p.Role,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return translate(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	var a Account
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT u.id, u.email, u.first_name, u.last_name, u.phone_number, u.is_staff, u.is_active,
			u.created_at, u.updated_at, p.role
		FROM users u JOIN user_profiles p ON p.user_id = u.id
		WHERE u.id = $1`, id,
	).Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.Phone, &a.IsStaff, &a.IsActive,
		&a.CreatedAt, &a.UpdatedAt, &a.Role)
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

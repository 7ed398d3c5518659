package account

import (
	"context"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/db"
)

var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

type Service struct {
	repo Repository
	tx   db.Transactor
	log  zerolog.Logger
}

func NewService(repo Repository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, log: logger}
}

func normalize(n *NewUser) error {
	fields := map[string]string{}
	n.Email = strings.ToLower(strings.TrimSpace(n.Email))
	n.FirstName = strings.TrimSpace(n.FirstName)
	n.LastName = strings.TrimSpace(n.LastName)
	n.Phone = strings.TrimSpace(n.Phone)

	if _, err := mail.ParseAddress(n.Email); err != nil || n.Email == "" {
		fields["email"] = "must be a valid email address"
	}
	if n.Phone != "" && !phonePattern.MatchString(n.Phone) {
		fields["phone_number"] = "phone number must be entered in the format: '+999999999'. Up to 15 digits allowed."
	}
	if n.Role == "" {
		n.Role = auth.RolePatient
	}
	if _, err := auth.ParseRole(string(n.Role)); err != nil {
		fields["role"] = "must be one of: admin, doctor, patient"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

// Register creates the user and its role profile in one transaction. It
// performs no access check; Create is the guarded entry point.
func (s *Service) Register(ctx context.Context, n NewUser) (*Account, error) {
	if err := normalize(&n); err != nil {
		return nil, err
	}
	acct := &Account{
		User: User{
			Email:     n.Email,
			FirstName: n.FirstName,
			LastName:  n.LastName,
			IsStaff:   n.Staff,
			IsActive:  true,
		},
		Role: n.Role,
	}
	if n.Phone != "" {
		acct.Phone = &n.Phone
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateUser(ctx, &acct.User); err != nil {
			return err
		}
		return s.repo.CreateProfile(ctx, &Profile{UserID: acct.ID, Role: acct.Role})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", acct.ID.String()).Str("role", string(acct.Role)).Msg("user registered")
	return acct, nil
}

// Create registers a user on behalf of an administrator.
func (s *Service) Create(ctx context.Context, actor auth.Actor, n NewUser) (*Account, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("only administrators may create users")
	}
	return s.Register(ctx, n)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// Email returns the address notifications for the user are sent to.
func (s *Service) Email(ctx context.Context, userID uuid.UUID) (string, error) {
	a, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return a.Email, nil
}

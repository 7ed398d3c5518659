package account

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
)

type mockRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*User
	profiles map[uuid.UUID]*Profile
	failProf bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: make(map[uuid.UUID]*User), profiles: make(map[uuid.UUID]*Profile)}
}

func (m *mockRepo) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.users {
		if other.Email == u.Email {
			return apperr.Validation("email", "user with this email already exists")
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockRepo) CreateProfile(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failProf {
		return errors.New("insert profile failed")
	}
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	p, hasProfile := m.profiles[id]
	if !ok || !hasProfile {
		return nil, apperr.NotFound("user")
	}
	return &Account{User: *u, Role: p.Role}, nil
}

// rollbackTx discards users created by a failed unit of work, like a real
// transaction would.
type rollbackTx struct{ repo *mockRepo }

func (r rollbackTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.repo.mu.Lock()
	before := make(map[uuid.UUID]*User, len(r.repo.users))
	for k, v := range r.repo.users {
		before[k] = v
	}
	r.repo.mu.Unlock()

	if err := fn(ctx); err != nil {
		r.repo.mu.Lock()
		r.repo.users = before
		r.repo.mu.Unlock()
		return err
	}
	return nil
}

var admin = auth.Actor{UserID: uuid.New(), Role: auth.RoleAdmin}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, rollbackTx{repo: repo}, zerolog.Nop()), repo
}

func TestService_Register_CreatesProfile(t *testing.T) {
	svc, repo := newTestService()
	acct, err := svc.Register(context.Background(), NewUser{Email: " Ana@Clinic.TEST ", FirstName: "Ana", Role: auth.RoleDoctor})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acct.Email != "ana@clinic.test" {
		t.Errorf("expected normalized email, got %q", acct.Email)
	}
	p, ok := repo.profiles[acct.ID]
	if !ok || p.Role != auth.RoleDoctor {
		t.Fatalf("expected doctor profile, got %+v", p)
	}
	got, err := svc.Get(context.Background(), acct.ID)
	if err != nil || got.Role != auth.RoleDoctor {
		t.Errorf("Get: %+v %v", got, err)
	}
}

func TestService_Register_DefaultRole(t *testing.T) {
	svc, _ := newTestService()
	acct, err := svc.Register(context.Background(), NewUser{Email: "p@x.test"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acct.Role != auth.RolePatient {
		t.Errorf("expected patient role, got %s", acct.Role)
	}
	if acct.Actor().Role != auth.RolePatient || acct.Actor().UserID != acct.ID {
		t.Errorf("unexpected actor: %+v", acct.Actor())
	}
}

func TestService_Register_Validation(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), NewUser{Email: "nope", Phone: "12", Role: "root"})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, f := range []string{"email", "phone_number", "role"} {
		if _, ok := ae.Fields[f]; !ok {
			t.Errorf("expected error for %s, got %v", f, ae.Fields)
		}
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Register(context.Background(), NewUser{Email: "dup@x.test"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(context.Background(), NewUser{Email: "DUP@x.test"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_Register_ProfileFailureRollsBack(t *testing.T) {
	svc, repo := newTestService()
	repo.failProf = true
	if _, err := svc.Register(context.Background(), NewUser{Email: "a@x.test"}); err == nil {
		t.Fatal("expected error")
	}
	if len(repo.users) != 0 {
		t.Error("user must not survive without a profile")
	}
}

func TestService_Create_AdminOnly(t *testing.T) {
	svc, _ := newTestService()
	doctor := auth.Actor{UserID: uuid.New(), Role: auth.RoleDoctor, Staff: true}
	if _, err := svc.Create(context.Background(), doctor, NewUser{Email: "a@x.test"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if _, err := svc.Create(context.Background(), admin, NewUser{Email: "a@x.test"}); err != nil {
		t.Errorf("admin Create: %v", err)
	}
}

func TestService_Email(t *testing.T) {
	svc, _ := newTestService()
	acct, err := svc.Register(context.Background(), NewUser{Email: "mail@x.test"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := svc.Email(context.Background(), acct.ID)
	if err != nil || got != "mail@x.test" {
		t.Errorf("Email = %q, %v", got, err)
	}
	if _, err := svc.Email(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

package patient

import (
	"time"

	"github.com/google/uuid"
)

// MaxPerOwner caps the number of patient profiles one account may hold.
const MaxPerOwner = 4

type Relation string

const (
	RelationSelf     Relation = "self"
	RelationFather   Relation = "father"
	RelationMother   Relation = "mother"
	RelationSpouse   Relation = "spouse"
	RelationSon      Relation = "son"
	RelationDaughter Relation = "daughter"
	RelationBrother  Relation = "brother"
	RelationSister   Relation = "sister"
	RelationOther    Relation = "other"
)

var relations = map[Relation]bool{
	RelationSelf: true, RelationFather: true, RelationMother: true, RelationSpouse: true, RelationSon: true,
	RelationDaughter: true, RelationBrother: true, RelationSister: true, RelationOther: true,
}

func (r Relation) Valid() bool { return relations[r] }

var titles = map[string]bool{"Mr": true, "Mrs": true, "Ms": true, "Dr": true, "Prof": true}

var genders = map[string]bool{"male": true, "female": true, "other": true}

type Patient struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	Title          string    `db:"title" json:"title"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Relation       Relation  `db:"relation" json:"relation"`
	Gender         string    `db:"gender" json:"gender"`
	Age            int       `db:"age" json:"age"`
	MedicalHistory string    `db:"medical_history" json:"medical_history"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Patient) OwnerID() uuid.UUID { return p.UserID }

func (p *Patient) FullName() string {
	if p.Title != "" {
		return p.Title + ". " + p.FirstName + " " + p.LastName
	}
	return p.FirstName + " " + p.LastName
}

// Patch carries a partial update; nil fields are left unchanged.
type Patch struct {
	Title          *string
	FirstName      *string
	LastName       *string
	Relation       *Relation
	Gender         *string
	Age            *int
	MedicalHistory *string
}

func (p *Patient) apply(patch Patch) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.FirstName != nil {
		p.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		p.LastName = *patch.LastName
	}
	if patch.Relation != nil {
		p.Relation = *patch.Relation
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	if patch.Age != nil {
		p.Age = *patch.Age
	}
	if patch.MedicalHistory != nil {
		p.MedicalHistory = *patch.MedicalHistory
	}
}

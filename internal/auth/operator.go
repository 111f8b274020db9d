package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
)

var ErrInvalidCredentials = apperror.New(http.StatusUnauthorized, apperror.KindUnauthorized, "invalid email or password")

// Role scopes what an operator may do.
type Role string

const (
	RoleManager   Role = "manager"
	RoleFrontDesk Role = "front_desk"
)

func (r Role) Valid() bool {
	return r == RoleManager || r == RoleFrontDesk
}

// Operator is a staff account allowed to use the API.
type Operator struct {
	ID           string
	Email        string
	Role         Role
	PasswordHash string
}

// Directory holds the configured operators. It is read-only after construction.
type Directory struct {
	hasher    PasswordHasher
	operators map[string]*Operator // keyed by lowercase email
}

// NewDirectory indexes operators by email. Operators without an ID get a
// stable one derived from their email; an unknown role falls back to front desk.
func NewDirectory(hasher PasswordHasher, operators ...Operator) *Directory {
	d := &Directory{
		hasher:    hasher,
		operators: make(map[string]*Operator, len(operators)),
	}
	for _, op := range operators {
		email := strings.ToLower(strings.TrimSpace(op.Email))
		if email == "" || op.PasswordHash == "" {
			continue
		}
		if op.ID == "" {
			op.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
		}
		if !op.Role.Valid() {
			op.Role = RoleFrontDesk
		}
		op.Email = email
		cp := op
		d.operators[email] = &cp
	}
	return d
}

// Len returns the number of operators that can log in.
func (d *Directory) Len() int {
	return len(d.operators)
}

// Authenticate checks an email and password pair.
func (d *Directory) Authenticate(email, password string) (*Operator, error) {
	op, ok := d.operators[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := d.hasher.Compare(op.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	cp := *op
	cp.PasswordHash = ""
	return &cp, nil
}

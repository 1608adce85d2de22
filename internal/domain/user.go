package domain

import "time"

const (
	RoleAdmin     = "ADMIN"
	RoleUser      = "USER"
	RoleAnonymous = "ANONYMOUS"

	UnknownOwner = "unknown"
)

// User es el usuario interno asociado a un sujeto externo (sub del token).
type User struct {
	ID         string    `json:"userId"`
	FirstName  string    `json:"vorname,omitempty"`
	LastName   string    `json:"nachname,omitempty"`
	Name       string    `json:"name,omitempty"`
	ExternalID string    `json:"externalIdentifer"`
	Email      string    `json:"mail,omitempty"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// CallerIdentity es la identidad ya resuelta de quien hace la peticion.
type CallerIdentity struct {
	ID   string
	Role string
}

func UnknownCaller() CallerIdentity {
	return CallerIdentity{ID: UnknownOwner, Role: RoleAnonymous}
}

func (c CallerIdentity) Resolved() bool {
	return c.ID != "" && c.ID != UnknownOwner
}

func (c CallerIdentity) IsAdmin() bool {
	return c.Role == RoleAdmin
}

package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Request is a hosting service request as persisted. Status is owned by the
// lifecycle rules in internal/lifecycle; the store never invents one.
type Request struct {
	ID                          string
	UserID                      string
	Name                        string
	Email                       string
	Whatsapp                    string
	ProjectName                 string
	ProjectType                 string
	OtherProjectTypeDescription string
	Subdomain                   string
	HasProjectFiles             bool
	ProjectLink                 string
	NewProjectDescription       string
	Status                      string
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
	LastViewedByClient          *time.Time
}

// Comment rows are append-only; there is no update or delete path.
type Comment struct {
	ID        int64
	RequestID string
	Author    string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

// RequestDetails are the fields an admin may edit on an existing request.
type RequestDetails struct {
	ProjectName string
	Subdomain   string
	ProjectType string
}

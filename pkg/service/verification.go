package service

import (
	"context"
)

// VerificationAPI is the project data gateway of the remote conversion
// service.
type VerificationAPI interface {
	FetchProject(ctx context.Context, projectKey string) (*Project, error)
	SaveTable(ctx context.Context, projectKey, tableName, description string, columns []Column) error
	VerifyTable(ctx context.Context, projectKey, tableName string) error
}

type VerificationService interface {
	// Open returns the verification state for the project, loading it from
	// the gateway when no session exists yet or reload is set.
	Open(ctx context.Context, projectKey string, reload bool) (*VerificationState, error)
	State(ctx context.Context, projectKey string) (*VerificationState, error)
	EditDescription(ctx context.Context, projectKey, text string) (*VerificationState, error)
	EditColumnDescription(ctx context.Context, projectKey string, index int, text string) (*VerificationState, error)
	Save(ctx context.Context, projectKey string) (*VerificationState, error)
	Verify(ctx context.Context, projectKey string) (*VerificationState, error)
	NavigateTo(ctx context.Context, projectKey string, index int, discard bool) (*VerificationState, error)
	Close(ctx context.Context, projectKey string) error
}

type Project struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Tables []Table `json:"tables"`
}

func (p *Project) Copy() *Project {
	if p == nil {
		return nil
	}

	cp := &Project{
		ID:     p.ID,
		Name:   p.Name,
		Tables: make([]Table, len(p.Tables)),
	}

	for i, t := range p.Tables {
		cp.Tables[i] = t.Copy()
	}

	return cp
}

type Table struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
	Verified    bool     `json:"verified"`
}

func (t Table) Copy() Table {
	t.Columns = CopyColumns(t.Columns)

	return t
}

type Column struct {
	Name        string `json:"column_name"`
	Description string `json:"description"`
}

func CopyColumns(columns []Column) []Column {
	if columns == nil {
		return nil
	}

	cp := make([]Column, len(columns))
	copy(cp, columns)

	return cp
}

// VerificationState is a point in time snapshot of a verification session.
type VerificationState struct {
	ProjectKey      string             `json:"projectKey"`
	Project         *Project           `json:"project,omitempty"`
	CurrentIndex    *int               `json:"currentIndex,omitempty"`
	Buffer          EditBuffer         `json:"buffer"`
	Loading         bool               `json:"loading"`
	Saving          bool               `json:"saving"`
	Error           *VerificationError `json:"error,omitempty"`
	UnverifiedCount int                `json:"unverifiedCount"`
	ProgressPercent int                `json:"progressPercent"`
	AllVerified     bool               `json:"allVerified"`
	Completed       bool               `json:"completed"`
	RedirectAfterMs int                `json:"redirectAfterMs,omitempty"`
}

type EditBuffer struct {
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
	Dirty       bool     `json:"dirty"`
}

type VerificationError struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

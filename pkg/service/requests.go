package service

import (
	"context"
	"time"
)

const (
	RequestStatusNeedVerification = "need-verification"
	RequestStatusProcessing       = "processing"
	RequestStatusFailed           = "failed"
	RequestStatusVerified         = "verified"
)

const (
	DBTypePostgreSQL = "postgresql"
	DBTypeMySQL      = "mysql"
	DBTypeSQLite     = "sqlite"
)

type RequestsAPI interface {
	ListRequests(ctx context.Context, userID string) ([]ProjectRequest, error)
	GetProgress(ctx context.Context, name, id string) (*Progress, error)
	SubmitRequest(ctx context.Context, req *SubmitRequest) (*ProjectRequest, error)
}

type RequestService interface {
	ListProjects(ctx context.Context, user *User) (*ProjectList, error)
	SubmitProject(ctx context.Context, user *User, in *NewProject) (*ProjectRequest, error)
}

// ProjectRequest is a conversion request as the remote service reports it.
type ProjectRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DBType        string `json:"dbType"`
	UserID        string `json:"userid"`
	Status        string `json:"status"`
	Description   string `json:"description"`
	Verified      bool   `json:"verified"`
	SubmittedDate string `json:"submittedDate"`
}

type Progress struct {
	RequestID      string `json:"request_id"`
	DatabaseName   string `json:"database_name"`
	VerifiedTables int    `json:"verified_tables"`
	TotalTables    int    `json:"total_tables"`
}

func (p *Progress) Percent() int {
	return Percent(p.VerifiedTables, p.TotalTables)
}

// Percent is round(100*part/total), and 0 when total is 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}

	return (200*part + total) / (2 * total)
}

// SubmitRequest is the wire body of a new conversion request. CredentialDoc
// is sent base64 encoded.
type SubmitRequest struct {
	Name          string `json:"name"`
	DBType        string `json:"dbType"`
	UserID        string `json:"userid"`
	Status        string `json:"status"`
	Description   string `json:"description"`
	Verified      bool   `json:"verified"`
	CredentialDoc []byte `json:"credentialDoc"`
	SubmittedDate string `json:"submittedDate"`
}

type NewProject struct {
	Name          string
	DBType        string
	Description   string
	CredentialDoc []byte
	Filename      string
	Submitted     time.Time
}

type ProjectSummary struct {
	ProjectRequest
	Progress *Progress `json:"progress,omitempty"`
	Percent  int       `json:"percent"`
}

type ProjectList struct {
	Projects []ProjectSummary `json:"projects"`
	Counts   StatusCounts     `json:"counts"`
}

type StatusCounts struct {
	Verified         int `json:"verified"`
	Processing       int `json:"processing"`
	NeedVerification int `json:"needVerification"`
	Failed           int `json:"failed"`
}

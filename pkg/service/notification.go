package service

import (
	"context"
)

const (
	ToastVariantDefault     = "default"
	ToastVariantDestructive = "destructive"
)

type Toast struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

// Notifier queues toasts for the browser session identified by key.
type Notifier interface {
	Notify(key string, toast Toast)
	Drain(key string) []Toast
}

type SlackAPI interface {
	SendMessage(ctx context.Context, text string) error
}

// TeamNotifier tells the team behind the portal about project events.
type TeamNotifier interface {
	ProjectSubmitted(ctx context.Context, user *User, req *ProjectRequest) error
	VerificationCompleted(ctx context.Context, user *User, project *Project) error
}

// CredentialsChecker checks that a credentials document reaches a database
// and returns the tables it can see.
type CredentialsChecker interface {
	Check(ctx context.Context, dbType string, doc []byte) ([]string, error)
}

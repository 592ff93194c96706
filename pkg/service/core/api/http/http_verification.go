package http

import (
	"context"

	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/remote"
	"github.com/tablewise/portal/pkg/service"
)

var _ service.VerificationAPI = &verificationAPI{}

type verificationAPI struct {
	fetcher remote.Fetcher
}

func (a *verificationAPI) FetchProject(ctx context.Context, projectKey string) (*service.Project, error) {
	const op errs.Op = "verificationAPI.FetchProject"

	p, err := a.fetcher.GetProjectVerification(ctx, projectKey)
	if err != nil {
		return nil, remoteError(op, errs.Parameter("project"), err)
	}

	project := &service.Project{
		ID:     p.ID,
		Name:   p.Name,
		Tables: make([]service.Table, len(p.Tables)),
	}

	for i, t := range p.Tables {
		project.Tables[i] = service.Table{
			Name:        t.Name,
			Description: t.Description,
			Columns:     columnsFromRemote(t.Columns),
			Verified:    t.Verified,
		}
	}

	return project, nil
}

func (a *verificationAPI) SaveTable(ctx context.Context, projectKey, tableName, description string, columns []service.Column) error {
	const op errs.Op = "verificationAPI.SaveTable"

	err := a.fetcher.UpdateTable(ctx, projectKey, tableName, &remote.TableUpdate{
		Description: description,
		Columns:     columnsToRemote(columns),
	})
	if err != nil {
		return remoteError(op, errs.Parameter("table"), err)
	}

	return nil
}

func (a *verificationAPI) VerifyTable(ctx context.Context, projectKey, tableName string) error {
	const op errs.Op = "verificationAPI.VerifyTable"

	err := a.fetcher.VerifyTable(ctx, projectKey, tableName)
	if err != nil {
		return remoteError(op, errs.Parameter("table"), err)
	}

	return nil
}

func columnsFromRemote(columns []remote.Column) []service.Column {
	out := make([]service.Column, len(columns))

	for i, c := range columns {
		out[i] = service.Column{
			Name:        c.ColumnName,
			Description: c.Description,
		}
	}

	return out
}

func columnsToRemote(columns []service.Column) []remote.Column {
	out := make([]remote.Column, len(columns))

	for i, c := range columns {
		out[i] = remote.Column{
			ColumnName:  c.Name,
			Description: c.Description,
		}
	}

	return out
}

func NewVerificationAPI(fetcher remote.Fetcher) *verificationAPI {
	return &verificationAPI{
		fetcher: fetcher,
	}
}

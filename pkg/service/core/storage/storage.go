package storage

import (
	"github.com/tablewise/portal/pkg/database"
	"github.com/tablewise/portal/pkg/service"
	"github.com/tablewise/portal/pkg/service/core/storage/postgres"
)

type Stores struct {
	SessionStorage service.SessionStorage
}

func NewStores(db *database.Repo) *Stores {
	return &Stores{
		SessionStorage: postgres.NewSessionStorage(db.Querier),
	}
}

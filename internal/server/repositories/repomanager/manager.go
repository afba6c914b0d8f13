package repomanager

import (
	"context"
	"database/sql"

	"casesync/internal/dbx"
	"casesync/internal/server/repositories/cases"
	"casesync/internal/server/repositories/dictionaries"
	"casesync/internal/server/repositories/synchistory"
	"casesync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Dictionaries(db dbx.DBTX) dictionaries.Repository
	Cases(db dbx.DBTX) cases.Repository
	SyncHistory(db dbx.DBTX) synchistory.Repository
}

package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/credengine/internal/server/repositories/directory"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Directory() directory.Repository
}

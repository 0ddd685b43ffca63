// Package all registers every storage backend with the storage factory.
package all

import (
	_ "github.com/donlluque/bbdd-txt-to-mysql/internal/storage/mssql"
	_ "github.com/donlluque/bbdd-txt-to-mysql/internal/storage/mysql"
	_ "github.com/donlluque/bbdd-txt-to-mysql/internal/storage/postgres"
	_ "github.com/donlluque/bbdd-txt-to-mysql/internal/storage/sqlite"
)

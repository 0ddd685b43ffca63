package postgres

import "github.com/donlluque/bbdd-txt-to-mysql/internal/storage"

func init() {
	storage.Register("postgres", New)
}

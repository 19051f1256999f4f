package audit

import (
	"discord-moderator/model"
	"discord-moderator/utils/database"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store is the sqlite-backed audit log.
type Store struct {
	db *sqlx.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := database.InitAuditDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) InsertAuditEntries(entries []model.AuditEntry) error {
	return database.InsertAuditEntries(s.db, entries)
}

func (s *Store) Query(q model.AuditQuery) ([]model.AuditEntry, error) {
	return database.QueryAuditEntries(s.db, q)
}

func (s *Store) Stats(since time.Time) (model.AuditStats, error) {
	return database.GetAuditStats(s.db, since, 10)
}

// Prune removes entries older than retention.
func (s *Store) Prune(retention time.Duration) (int64, error) {
	return database.PruneAuditEntries(s.db, time.Now().Add(-retention))
}

func (s *Store) Close() error {
	return s.db.Close()
}

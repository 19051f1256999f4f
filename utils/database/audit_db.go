package database

import (
	"discord-moderator/model"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const defaultAuditLimit = 100

// auditRow is the storage shape of model.AuditEntry; timestamps are unix milliseconds.
type auditRow struct {
	ID         string  `db:"id"`
	Type       string  `db:"type"`
	Timestamp  int64   `db:"timestamp"`
	GuildID    string  `db:"guild_id"`
	ChannelID  string  `db:"channel_id"`
	UserID     string  `db:"user_id"`
	Username   string  `db:"username"`
	Action     string  `db:"action"`
	RuleID     string  `db:"rule_id"`
	Reason     string  `db:"reason"`
	Confidence float64 `db:"confidence"`
	Duration   int64   `db:"duration"`
	Message    string  `db:"message"`
	Details    string  `db:"details"`
}

func toRow(e model.AuditEntry) auditRow {
	return auditRow{
		ID:         e.ID,
		Type:       string(e.Type),
		Timestamp:  e.Timestamp.UnixMilli(),
		GuildID:    e.GuildID,
		ChannelID:  e.ChannelID,
		UserID:     e.UserID,
		Username:   e.Username,
		Action:     e.Action,
		RuleID:     e.RuleID,
		Reason:     e.Reason,
		Confidence: e.Confidence,
		Duration:   e.Duration,
		Message:    e.Message,
		Details:    e.Details,
	}
}

func (r auditRow) entry() model.AuditEntry {
	return model.AuditEntry{
		ID:         r.ID,
		Type:       model.AuditType(r.Type),
		Timestamp:  time.UnixMilli(r.Timestamp),
		GuildID:    r.GuildID,
		ChannelID:  r.ChannelID,
		UserID:     r.UserID,
		Username:   r.Username,
		Action:     r.Action,
		RuleID:     r.RuleID,
		Reason:     r.Reason,
		Confidence: r.Confidence,
		Duration:   r.Duration,
		Message:    r.Message,
		Details:    r.Details,
	}
}

// InitAuditDB opens the audit database and ensures the table exists.
func InitAuditDB(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	schema := `CREATE TABLE IF NOT EXISTS audit_log (
	          id TEXT PRIMARY KEY,
	          type TEXT NOT NULL,
	          timestamp INTEGER NOT NULL,
	          guild_id TEXT NOT NULL DEFAULT '',
	          channel_id TEXT NOT NULL DEFAULT '',
	          user_id TEXT NOT NULL DEFAULT '',
	          username TEXT NOT NULL DEFAULT '',
	          action TEXT NOT NULL DEFAULT '',
	          rule_id TEXT NOT NULL DEFAULT '',
	          reason TEXT NOT NULL DEFAULT '',
	          confidence REAL NOT NULL DEFAULT 0,
	          duration INTEGER NOT NULL DEFAULT 0,
	          message TEXT NOT NULL DEFAULT '',
	          details TEXT NOT NULL DEFAULT '{}'
	      );
	      CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log (timestamp);
	      CREATE INDEX IF NOT EXISTS idx_audit_log_user ON audit_log (user_id);`
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit_log table: %w", err)
	}
	return db, nil
}

// InsertAuditEntries writes a batch of entries in one transaction.
func InsertAuditEntries(db *sqlx.DB, entries []model.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	query := `INSERT INTO audit_log (id, type, timestamp, guild_id, channel_id, user_id, username, action, rule_id, reason, confidence, duration, message, details)
	          VALUES (:id, :type, :timestamp, :guild_id, :channel_id, :user_id, :username, :action, :rule_id, :reason, :confidence, :duration, :message, :details)`
	for _, e := range entries {
		if _, err := tx.NamedExec(query, toRow(e)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert audit entry %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit entries: %w", err)
	}
	return nil
}

// QueryAuditEntries returns entries matching q, newest first.
func QueryAuditEntries(db *sqlx.DB, q model.AuditQuery) ([]model.AuditEntry, error) {
	var where []string
	var args []interface{}
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(q.Type))
	}
	if q.GuildID != "" {
		where = append(where, "guild_id = ?")
		args = append(args, q.GuildID)
	}
	if q.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, q.UserID)
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.Since.UnixMilli())
	}

	query := "SELECT * FROM audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	query += " ORDER BY timestamp DESC, id LIMIT ?"
	args = append(args, limit)

	var rows []auditRow
	if err := db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	entries := make([]model.AuditEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

type countRow struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

// GetAuditStats aggregates entries recorded since the given time.
func GetAuditStats(db *sqlx.DB, since time.Time, topUsers int) (model.AuditStats, error) {
	stats := model.AuditStats{
		ByType:   map[string]int{},
		ByAction: map[string]int{},
		TopUsers: map[string]int{},
		Since:    since,
	}
	sinceMs := since.UnixMilli()

	var byType []countRow
	if err := db.Select(&byType, "SELECT type AS key, COUNT(*) AS count FROM audit_log WHERE timestamp >= ? GROUP BY type", sinceMs); err != nil {
		return stats, fmt.Errorf("failed to count audit entries by type: %w", err)
	}
	for _, r := range byType {
		stats.ByType[r.Key] = r.Count
		stats.Total += r.Count
	}

	var byAction []countRow
	if err := db.Select(&byAction, "SELECT action AS key, COUNT(*) AS count FROM audit_log WHERE type = ? AND timestamp >= ? GROUP BY action", string(model.AuditModAction), sinceMs); err != nil {
		return stats, fmt.Errorf("failed to count audit entries by action: %w", err)
	}
	for _, r := range byAction {
		stats.ByAction[r.Key] = r.Count
	}

	if topUsers <= 0 {
		topUsers = 10
	}
	var users []countRow
	query := `SELECT user_id AS key, COUNT(*) AS count FROM audit_log
	          WHERE type = ? AND timestamp >= ? AND user_id != ''
	          GROUP BY user_id ORDER BY count DESC, user_id LIMIT ?`
	if err := db.Select(&users, query, string(model.AuditModAction), sinceMs, topUsers); err != nil {
		return stats, fmt.Errorf("failed to rank users: %w", err)
	}
	for _, r := range users {
		stats.TopUsers[r.Key] = r.Count
	}
	return stats, nil
}

// PruneAuditEntries deletes entries older than before and returns how many were removed.
func PruneAuditEntries(db *sqlx.DB, before time.Time) (int64, error) {
	result, err := db.Exec("DELETE FROM audit_log WHERE timestamp < ?", before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected for prune: %w", err)
	}
	return n, nil
}

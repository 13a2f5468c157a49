package store

import (
	"database/sql"
	"fmt"

	"github.com/bunkhouselabs/bunkhouse/internal/model"
)

type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Record(actor, action, details, ipAddress string) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_events (actor, action, details, ip_address) VALUES (?, ?, ?, ?)`,
		actor, action, details, ipAddress,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *AuditStore) ListRecent(limit int) ([]*model.AuditEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, actor, action, details, ip_address, created_at FROM audit_events ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []*model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Details, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

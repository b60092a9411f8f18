package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, e *Event) error {
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.Fields == nil {
		e.Fields = map[string]interface{}{}
	}
	fieldsJSON, err := json.Marshal(e.Fields)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO audit_events (kind, user_id, provider, tags, fields, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	row := s.db.QueryRowContext(ctx, q,
		string(e.Kind),
		e.UserID,
		e.Provider,
		pq.Array(e.Tags),
		string(fieldsJSON),
		time.Now().UTC(),
	)
	return row.Scan(&e.ID, &e.CreatedAt)
}

func (s *Store) List(ctx context.Context, f Filter) ([]Event, error) {
	clauses := []string{"1=1"}
	args := []interface{}{}
	argIdx := 1

	if f.UserID != "" {
		clauses = append(clauses, "user_id = $"+itoa(argIdx))
		args = append(args, f.UserID)
		argIdx++
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind = $"+itoa(argIdx))
		args = append(args, string(f.Kind))
		argIdx++
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "created_at >= $"+itoa(argIdx))
		args = append(args, f.Since)
		argIdx++
	}
	if !f.Until.IsZero() {
		clauses = append(clauses, "created_at <= $"+itoa(argIdx))
		args = append(args, f.Until)
		argIdx++
	}

	limit := f.Limit
	switch {
	case limit <= 0:
		limit = 200
	case limit > 1000:
		limit = 1000
	}

	query := "SELECT id, kind, user_id, provider, tags, fields, created_at FROM audit_events WHERE " +
		strings.Join(clauses, " AND ") + " ORDER BY created_at DESC LIMIT " + itoa(limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		var e Event
		var tags pq.StringArray
		var fieldsJSON []byte
		if err := rows.Scan(&e.ID, &e.Kind, &e.UserID, &e.Provider, &tags, &fieldsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Tags = []string(tags)
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, err
			}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

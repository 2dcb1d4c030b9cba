package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Spok95/school-attendance/internal/models"
)

// InsertNotifications вставляет всю пачку одним INSERT. Пустая пачка: no-op.
func InsertNotifications(ctx context.Context, q Querier, schoolID string, ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO notifications (id, school_id, target, type, title, message) VALUES `)
	args := make([]any, 0, len(ns)*6)
	for i, n := range ns {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		id := n.ID
		if id == "" {
			id = uuid.NewString()
		}
		args = append(args, id, schoolID, n.Target, string(n.Type), n.Title, n.Message)
	}
	if _, err := q.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}

// ListNotifications: уведомления адресата и широковещательные, от новых к старым.
func ListNotifications(ctx context.Context, q Querier, schoolID, target string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id, school_id, target, type, title, message, is_read, created_at
		FROM notifications
		WHERE school_id = $1 AND (target = $2 OR target = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, schoolID, target, models.TargetAll, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.SchoolID, &n.Target, &typ, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = models.NotificationType(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead: единственная допустимая мутация уведомления.
func MarkNotificationRead(ctx context.Context, q Querier, schoolID, id string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE notifications SET is_read = true
		WHERE school_id = $1 AND id = $2
	`, schoolID, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

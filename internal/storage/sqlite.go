package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "fitfeed/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- Settings ----

func (s *sqliteStore) PutSettings(ctx context.Context, set NotificationSettings) error {
	if set.UpdatedAt.IsZero() {
		set.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_settings(
		     user_id, notifications_enabled, quiet_hours_enabled,
		     quiet_hours_start, quiet_hours_end,
		     following_digest_enabled, following_digest_frequency,
		     digest_time, workout_reminders_enabled, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     notifications_enabled=excluded.notifications_enabled,
		     quiet_hours_enabled=excluded.quiet_hours_enabled,
		     quiet_hours_start=excluded.quiet_hours_start,
		     quiet_hours_end=excluded.quiet_hours_end,
		     following_digest_enabled=excluded.following_digest_enabled,
		     following_digest_frequency=excluded.following_digest_frequency,
		     digest_time=excluded.digest_time,
		     workout_reminders_enabled=excluded.workout_reminders_enabled,
		     updated_at=excluded.updated_at`,
		set.UserID, set.NotificationsEnabled, set.QuietHoursEnabled,
		set.QuietHoursStart, set.QuietHoursEnd,
		set.FollowingDigestEnabled, string(set.FollowingDigestFrequency),
		set.DigestTime, set.WorkoutRemindersEnabled,
		set.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

const settingsColumns = `user_id, notifications_enabled, quiet_hours_enabled,
    quiet_hours_start, quiet_hours_end, following_digest_enabled,
    following_digest_frequency, digest_time, workout_reminders_enabled, updated_at`

func scanSettings(row interface{ Scan(...any) error }) (NotificationSettings, error) {
	var set NotificationSettings
	var freq, updated string
	err := row.Scan(&set.UserID, &set.NotificationsEnabled, &set.QuietHoursEnabled,
		&set.QuietHoursStart, &set.QuietHoursEnd, &set.FollowingDigestEnabled,
		&freq, &set.DigestTime, &set.WorkoutRemindersEnabled, &updated)
	if err != nil {
		return NotificationSettings{}, err
	}
	set.FollowingDigestFrequency = DigestFrequency(freq)
	if t, perr := time.Parse(time.RFC3339Nano, updated); perr == nil {
		set.UpdatedAt = t
	}
	return set, nil
}

func (s *sqliteStore) Settings(ctx context.Context, userID string) (NotificationSettings, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM notification_settings WHERE user_id = ?`, userID)
	set, err := scanSettings(row)
	if errors.Is(err, sql.ErrNoRows) {
		return NotificationSettings{}, false, nil
	}
	if err != nil {
		return NotificationSettings{}, false, err
	}
	return set, true, nil
}

func (s *sqliteStore) querySettings(ctx context.Context, where string, args ...any) ([]NotificationSettings, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+settingsColumns+` FROM notification_settings WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NotificationSettings
	for rows.Next() {
		set, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, set)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SettingsByQuietEnd(ctx context.Context, hhmm string) ([]NotificationSettings, error) {
	return s.querySettings(ctx,
		`notifications_enabled = 1 AND quiet_hours_enabled = 1 AND quiet_hours_end = ?`, hhmm)
}

func (s *sqliteStore) SettingsByDigestHour(ctx context.Context, hhmm string) ([]NotificationSettings, error) {
	return s.querySettings(ctx,
		`notifications_enabled = 1 AND following_digest_enabled = 1
		 AND following_digest_frequency != ? AND digest_time = ?`,
		string(FrequencyOff), hhmm)
}

func (s *sqliteStore) ReminderRecipients(ctx context.Context) ([]NotificationSettings, error) {
	return s.querySettings(ctx, `notifications_enabled = 1 AND workout_reminders_enabled = 1`)
}

func (s *sqliteStore) PushRecipients(ctx context.Context) ([]NotificationSettings, error) {
	return s.querySettings(ctx, `notifications_enabled = 1`)
}

// ---- Follow graph + activity log ----

func (s *sqliteStore) PutFollow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO follows(follower_id, followee_id, created_at) VALUES(?,?,?)
		 ON CONFLICT(follower_id, followee_id) DO NOTHING`,
		followerID, followeeID, time.Now().UnixMilli())
	return err
}

func (s *sqliteStore) Following(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT followee_id FROM follows WHERE follower_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *sqliteStore) InsertEvent(ctx context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(id, actor_id, type, created_at) VALUES(?,?,?,?)`,
		e.ID, e.ActorID, string(e.Type), e.CreatedAt.UnixMilli())
	return err
}

func (s *sqliteStore) CountEventsByActors(ctx context.Context, et EventType, actorIDs []string, from, to time.Time) (int, error) {
	if len(actorIDs) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(actorIDs)+3)
	args = append(args, string(et))
	ph := make([]string, len(actorIDs))
	for i, id := range actorIDs {
		ph[i] = "?"
		args = append(args, id)
	}
	args = append(args, from.UnixMilli(), to.UnixMilli())

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events
		 WHERE type = ? AND actor_id IN (`+strings.Join(ph, ",")+`)
		   AND created_at >= ? AND created_at < ?`, args...).Scan(&n)
	return n, err
}

// ---- Notifications ----

func (s *sqliteStore) InsertNotification(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	var meta any
	if len(n.Metadata) > 0 {
		b, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		meta = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(id, user_id, type, title, body, created_at,
		     read_at, group_key, delivered_push_at, metadata)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Body, n.CreatedAt.UnixMilli(),
		nullMilli(n.ReadAt), nullStr(n.GroupKey), nullMilli(n.DeliveredPushAt), meta,
	)
	return err
}

const notificationColumns = `id, user_id, type, title, body, created_at,
    read_at, group_key, delivered_push_at, metadata`

func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var n Notification
	var typ string
	var created int64
	var readAt, pushedAt sql.NullInt64
	var groupKey, meta sql.NullString
	err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Body, &created,
		&readAt, &groupKey, &pushedAt, &meta)
	if err != nil {
		return Notification{}, err
	}
	n.Type = NotificationType(typ)
	n.CreatedAt = time.UnixMilli(created)
	n.ReadAt = milliTime(readAt)
	n.GroupKey = groupKey.String
	n.DeliveredPushAt = milliTime(pushedAt)
	if meta.Valid && meta.String != "" {
		_ = json.Unmarshal([]byte(meta.String), &n.Metadata)
	}
	return n, nil
}

func (s *sqliteStore) NotificationByID(ctx context.Context, id string) (Notification, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, false, nil
	}
	if err != nil {
		return Notification{}, false, err
	}
	return n, true, nil
}

func (s *sqliteStore) UnreadCountsByType(ctx context.Context, userID string, from, to time.Time, exclude NotificationType) (map[NotificationType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM notifications
		 WHERE user_id = ? AND read_at IS NULL AND type != ?
		   AND created_at >= ? AND created_at < ?
		 GROUP BY type`,
		userID, string(exclude), from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[NotificationType]int{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		out[NotificationType(typ)] = n
	}
	return out, rows.Err()
}

func (s *sqliteStore) PendingFollowNotifications(ctx context.Context, since time.Time) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE type = ? AND group_key IS NULL AND delivered_push_at IS NULL
		   AND created_at >= ?
		 ORDER BY created_at ASC`,
		string(TypeFollow), since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SetGroupKey(ctx context.Context, ids []string, key string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, key)
	ph := make([]string, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET group_key = ? WHERE id IN (`+strings.Join(ph, ",")+`)`, args...)
	return err
}

func (s *sqliteStore) MarkPushDelivered(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET delivered_push_at = ? WHERE id = ?`,
		at.UnixMilli(), id)
	return err
}

func (s *sqliteStore) MarkRead(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = ? WHERE id = ? AND read_at IS NULL`,
		at.UnixMilli(), id)
	return err
}

func (s *sqliteStore) PruneNotifications(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE created_at < ?`,
		olderThan.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullMilli(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func milliTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

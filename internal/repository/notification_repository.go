package repository

import (
	"database/sql"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"

	"arbitrage/internal/models"
)

var notifJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotificationNotFound возвращается, когда уведомление с указанным ID отсутствует
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository - работа с таблицей notifications
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create создает новое уведомление
func (r *NotificationRepository) Create(n *models.Notification) error {
	metaJSON, err := marshalMeta(n.Meta)
	if err != nil {
		return err
	}

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	query := `
		INSERT INTO notifications (timestamp, type, severity, pair_id, message, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return r.db.QueryRow(query, n.Timestamp, n.Type, n.Severity, n.PairID, n.Message, metaJSON).Scan(&n.ID)
}

const notificationColumns = `id, timestamp, type, severity, pair_id, message, meta`

// GetByID возвращает уведомление по ID
func (r *NotificationRepository) GetByID(id int) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	return r.scanOne(r.db.QueryRow(query, id))
}

func (r *NotificationRepository) scanOne(row *sql.Row) (*models.Notification, error) {
	n := &models.Notification{}
	var metaJSON []byte
	err := row.Scan(&n.ID, &n.Timestamp, &n.Type, &n.Severity, &n.PairID, &n.Message, &metaJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	if err := unmarshalMeta(n, metaJSON); err != nil {
		return nil, err
	}
	return n, nil
}

// GetRecent возвращает последние N уведомлений
func (r *NotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications ORDER BY timestamp DESC LIMIT $1`
	return r.queryMany(query, limit)
}

// GetByPairID возвращает последние N уведомлений по паре
func (r *NotificationRepository) GetByPairID(pairID, limit int) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE pair_id = $1 ORDER BY timestamp DESC LIMIT $2`
	return r.queryMany(query, pairID, limit)
}

// GetBySeverity возвращает последние N уведомлений заданной важности
func (r *NotificationRepository) GetBySeverity(severity string, limit int) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE severity = $1 ORDER BY timestamp DESC LIMIT $2`
	return r.queryMany(query, severity, limit)
}

// GetByTypes возвращает последние N уведомлений указанных типов
func (r *NotificationRepository) GetByTypes(types []string, limit int) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE type = ANY($1) ORDER BY timestamp DESC LIMIT $2`
	return r.queryMany(query, pq.Array(types), limit)
}

// GetInTimeRange возвращает до limit уведомлений в заданном временном окне
func (r *NotificationRepository) GetInTimeRange(from, to time.Time, limit int) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE timestamp >= $1 AND timestamp <= $2 ORDER BY timestamp DESC LIMIT $3`
	return r.queryMany(query, from, to, limit)
}

func (r *NotificationRepository) queryMany(query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var metaJSON []byte
		if err := rows.Scan(&n.ID, &n.Timestamp, &n.Type, &n.Severity, &n.PairID, &n.Message, &metaJSON); err != nil {
			return nil, err
		}
		if err := unmarshalMeta(n, metaJSON); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// DeleteAll очищает журнал уведомлений целиком
func (r *NotificationRepository) DeleteAll() error {
	_, err := r.db.Exec(`DELETE FROM notifications`)
	return err
}

// DeleteOlderThan удаляет уведомления старше указанного момента
func (r *NotificationRepository) DeleteOlderThan(threshold time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM notifications WHERE timestamp < $1`, threshold)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteByPairID удаляет все уведомления, относящиеся к паре
func (r *NotificationRepository) DeleteByPairID(pairID int) error {
	_, err := r.db.Exec(`DELETE FROM notifications WHERE pair_id = $1`, pairID)
	return err
}

// KeepRecent оставляет только keep последних уведомлений, остальные удаляет
func (r *NotificationRepository) KeepRecent(keep int) (int64, error) {
	query := `
		DELETE FROM notifications WHERE id NOT IN (
			SELECT id FROM notifications ORDER BY timestamp DESC LIMIT $1
		)`

	result, err := r.db.Exec(query, keep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Count возвращает общее количество уведомлений
func (r *NotificationRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM notifications`).Scan(&count)
	return count, err
}

// CountByType возвращает количество уведомлений заданного типа
func (r *NotificationRepository) CountByType(notifType string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE type = $1`, notifType).Scan(&count)
	return count, err
}

// CountBySeverity возвращает количество уведомлений заданной важности
func (r *NotificationRepository) CountBySeverity(severity string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE severity = $1`, severity).Scan(&count)
	return count, err
}

func marshalMeta(meta map[string]interface{}) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	return notifJSON.Marshal(meta)
}

func unmarshalMeta(n *models.Notification, metaJSON []byte) error {
	if len(metaJSON) == 0 {
		return nil
	}
	return notifJSON.Unmarshal(metaJSON, &n.Meta)
}

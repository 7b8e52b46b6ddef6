package repository

import (
	"database/sql"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"arbitrage/internal/models"
)

var settingsJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrSettingsNotFound возвращается, когда строка настроек отсутствует
var ErrSettingsNotFound = errors.New("settings not found")

// SettingsRepository - работа с единственной строкой таблицы settings (id=1)
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get возвращает текущие настройки. Если строка ещё не создана, заводит её со
// значениями по умолчанию.
func (r *SettingsRepository) Get() (*models.Settings, error) {
	query := `SELECT id, consider_funding, max_concurrent_trades, notification_prefs, updated_at FROM settings WHERE id = 1`

	s := &models.Settings{}
	var prefsJSON []byte
	err := r.db.QueryRow(query).Scan(&s.ID, &s.ConsiderFunding, &s.MaxConcurrentTrades, &prefsJSON, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.createDefault()
		}
		return nil, err
	}

	if len(prefsJSON) > 0 {
		if err := settingsJSON.Unmarshal(prefsJSON, &s.NotificationPrefs); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (r *SettingsRepository) createDefault() (*models.Settings, error) {
	s := &models.Settings{
		ID:                1,
		ConsiderFunding:   false,
		NotificationPrefs: defaultNotificationPrefs(),
		UpdatedAt:         time.Now(),
	}

	prefsJSON, err := settingsJSON.Marshal(s.NotificationPrefs)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO settings (consider_funding, max_concurrent_trades, notification_prefs, updated_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.Exec(query, s.ConsiderFunding, s.MaxConcurrentTrades, prefsJSON, s.UpdatedAt); err != nil {
		return nil, err
	}

	return s, nil
}

// Update сохраняет полный набор настроек
func (r *SettingsRepository) Update(s *models.Settings) error {
	prefsJSON, err := settingsJSON.Marshal(s.NotificationPrefs)
	if err != nil {
		return err
	}

	s.UpdatedAt = time.Now()

	query := `UPDATE settings SET consider_funding = $1, max_concurrent_trades = $2, notification_prefs = $3, updated_at = $4 WHERE id = 1`
	result, err := r.db.Exec(query, s.ConsiderFunding, s.MaxConcurrentTrades, prefsJSON, s.UpdatedAt)
	if err != nil {
		return err
	}

	return checkRowsAffected(result, ErrSettingsNotFound)
}

// UpdateNotificationPrefs обновляет только preferences уведомлений
func (r *SettingsRepository) UpdateNotificationPrefs(prefs models.NotificationPreferences) error {
	prefsJSON, err := settingsJSON.Marshal(prefs)
	if err != nil {
		return err
	}

	query := `UPDATE settings SET notification_prefs = $1, updated_at = $2 WHERE id = 1`
	_, err = r.db.Exec(query, prefsJSON, time.Now())
	return err
}

// UpdateConsiderFunding переключает учёт фандинг-рейтов
func (r *SettingsRepository) UpdateConsiderFunding(consider bool) error {
	query := `UPDATE settings SET consider_funding = $1, updated_at = $2 WHERE id = 1`
	_, err := r.db.Exec(query, consider, time.Now())
	return err
}

// UpdateMaxConcurrentTrades обновляет лимит одновременных арбитражей (nil = без ограничений)
func (r *SettingsRepository) UpdateMaxConcurrentTrades(max *int) error {
	query := `UPDATE settings SET max_concurrent_trades = $1, updated_at = $2 WHERE id = 1`
	_, err := r.db.Exec(query, max, time.Now())
	return err
}

// GetNotificationPrefs возвращает текущие preferences уведомлений, либо значения по умолчанию
func (r *SettingsRepository) GetNotificationPrefs() (*models.NotificationPreferences, error) {
	var prefsJSON []byte
	err := r.db.QueryRow(`SELECT notification_prefs FROM settings WHERE id = 1`).Scan(&prefsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			prefs := defaultNotificationPrefs()
			return &prefs, nil
		}
		return nil, err
	}

	if len(prefsJSON) == 0 {
		prefs := defaultNotificationPrefs()
		return &prefs, nil
	}

	prefs := &models.NotificationPreferences{}
	if err := settingsJSON.Unmarshal(prefsJSON, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// GetMaxConcurrentTrades возвращает текущий лимит одновременных арбитражей
func (r *SettingsRepository) GetMaxConcurrentTrades() (*int, error) {
	var max *int
	err := r.db.QueryRow(`SELECT max_concurrent_trades FROM settings WHERE id = 1`).Scan(&max)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return max, nil
}

// ResetToDefaults сбрасывает настройки до значений по умолчанию
func (r *SettingsRepository) ResetToDefaults() error {
	prefs := defaultNotificationPrefs()
	prefsJSON, err := settingsJSON.Marshal(prefs)
	if err != nil {
		return err
	}

	query := `UPDATE settings SET consider_funding = $1, max_concurrent_trades = $2, notification_prefs = $3, updated_at = $4 WHERE id = 1`
	_, err = r.db.Exec(query, false, (*int)(nil), prefsJSON, time.Now())
	return err
}

// defaultNotificationPrefs возвращает preferences со всеми типами уведомлений включёнными
func defaultNotificationPrefs() models.NotificationPreferences {
	return models.NotificationPreferences{
		Open:          true,
		Close:         true,
		StopLoss:      true,
		Liquidation:   true,
		APIError:      true,
		Margin:        true,
		Pause:         true,
		SecondLegFail: true,
	}
}

package bot

import (
	"fmt"
	"sync"
	"time"

	"arbitrage/internal/models"
)

// minTradesForRollbackAudit - минимальное количество закрытых сделок,
// необходимое для запуска аудита отката конфигурации.
const minTradesForRollbackAudit = 10

// ConfigBackupStore абстрагирует файловую/БД-операцию над снимками конфигурации,
// чтобы ConfigRollbackManager не знал о формате хранения.
type ConfigBackupStore interface {
	// SaveEmergencyBackup сохраняет текущую живую конфигурацию как emergency_backup
	SaveEmergencyBackup() (path string, err error)
	// RestoreNewestBackup копирует самый свежий config_backup_* поверх живой конфигурации
	RestoreNewestBackup() (restoredFrom string, err error)
}

// ConfigRollbackManager откатывает конфигурацию на последний бэкап, если
// недавняя серия сделок показывает деградацию (просадка, низкий win-rate,
// избыточный дневной убыток). Гасит повторные срабатывания cooldown-окном.
type ConfigRollbackManager struct {
	mu sync.Mutex

	store    ConfigBackupStore
	history  []models.ConfigRollbackRecord
	cooldown time.Duration
	lastFire time.Time

	persistFn func(models.ConfigRollbackRecord)
}

// NewConfigRollbackManager создаёт менеджер отката с заданным cooldown
// между срабатываниями (по умолчанию спецификации - 1 час)
func NewConfigRollbackManager(store ConfigBackupStore, cooldown time.Duration, persistFn func(models.ConfigRollbackRecord)) *ConfigRollbackManager {
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &ConfigRollbackManager{
		store:     store,
		cooldown:  cooldown,
		persistFn: persistFn,
	}
}

// RollbackAudit суммирует метрики серии сделок, использованные для решения об откате
type RollbackAudit struct {
	WinRate        float64
	CumulativePnl  float64
	MaxDrawdownPct float64
	Triggered      bool
	Trigger        string
	Skipped        string // причина, по которой аудит не проводился (слишком мало сделок, cooldown)
}

// Evaluate анализирует последние закрытые сделки и откатывает конфигурацию
// при срабатывании любого из трёх триггеров. trades должны быть в хронологическом порядке.
func (m *ConfigRollbackManager) Evaluate(trades []*models.ArbitrageTrade, dailyStartBalance float64) (RollbackAudit, error) {
	if len(trades) < minTradesForRollbackAudit {
		return RollbackAudit{Skipped: "fewer than minimum required trades"}, nil
	}

	m.mu.Lock()
	if !m.lastFire.IsZero() && time.Since(m.lastFire) < m.cooldown {
		m.mu.Unlock()
		return RollbackAudit{Skipped: "rollback cooldown active"}, nil
	}
	m.mu.Unlock()

	wins := 0
	cumulative := 0.0
	peak := 0.0
	maxDrawdownPct := 0.0

	for _, t := range trades {
		if t.ActualPnl == nil {
			continue
		}
		pnl := *t.ActualPnl
		if pnl > 0 {
			wins++
		}
		cumulative += pnl
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			drawdown := (peak - cumulative) / peak * 100
			if drawdown > maxDrawdownPct {
				maxDrawdownPct = drawdown
			}
		}
	}

	winRate := float64(wins) / float64(len(trades)) * 100

	dailyLossFraction := 0.0
	if dailyStartBalance > 0 && cumulative < 0 {
		dailyLossFraction = (-cumulative) / dailyStartBalance * 100
	}

	audit := RollbackAudit{
		WinRate:        winRate,
		CumulativePnl:  cumulative,
		MaxDrawdownPct: maxDrawdownPct,
	}

	switch {
	case dailyLossFraction >= 5:
		audit.Triggered = true
		audit.Trigger = models.RollbackTriggerDailyLoss
	case winRate < 30:
		audit.Triggered = true
		audit.Trigger = models.RollbackTriggerWinRate
	case maxDrawdownPct >= 15:
		audit.Triggered = true
		audit.Trigger = models.RollbackTriggerDrawdown
	}

	if !audit.Triggered {
		return audit, nil
	}

	if err := m.fire(audit); err != nil {
		return audit, err
	}

	return audit, nil
}

func (m *ConfigRollbackManager) fire(audit RollbackAudit) error {
	backupPath, err := m.store.SaveEmergencyBackup()
	if err != nil {
		return fmt.Errorf("emergency backup failed: %w", err)
	}

	restoredFrom, err := m.store.RestoreNewestBackup()
	if err != nil {
		return fmt.Errorf("restore from backup failed: %w", err)
	}

	record := models.ConfigRollbackRecord{
		Timestamp:      time.Now(),
		Trigger:        audit.Trigger,
		WinRate:        audit.WinRate,
		CumulativePnl:  audit.CumulativePnl,
		MaxDrawdownPct: audit.MaxDrawdownPct,
		BackupPath:     backupPath,
		RestoredFrom:   restoredFrom,
	}

	m.mu.Lock()
	m.history = append(m.history, record)
	m.lastFire = time.Now()
	m.mu.Unlock()

	if m.persistFn != nil {
		m.persistFn(record)
	}

	return nil
}

// History возвращает копию накопленной истории срабатываний
func (m *ConfigRollbackManager) History() []models.ConfigRollbackRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ConfigRollbackRecord, len(m.history))
	copy(out, m.history)
	return out
}

package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FileConfigBackupStore - файловая реализация ConfigBackupStore. Живая
// конфигурация - один YAML-файл (config.yaml), снимки лежат рядом в
// backupDir как config_backup_<unixnano>, emergency-копия - config.yaml.emergency_backup
// рядом с живым файлом. Имена снимков сортируются лексикографически, что для
// unixnano-суффикса совпадает с хронологическим порядком.
type FileConfigBackupStore struct {
	liveConfigPath string
	backupDir      string
}

// NewFileConfigBackupStore создаёт хранилище бэкапов конфигурации
func NewFileConfigBackupStore(liveConfigPath, backupDir string) *FileConfigBackupStore {
	return &FileConfigBackupStore{liveConfigPath: liveConfigPath, backupDir: backupDir}
}

// SaveEmergencyBackup сохраняет живую конфигурацию как emergency_backup перед
// тем, как откат перезапишет живой файл
func (s *FileConfigBackupStore) SaveEmergencyBackup() (string, error) {
	data, err := os.ReadFile(s.liveConfigPath)
	if err != nil {
		return "", fmt.Errorf("config backup: read live config: %w", err)
	}

	path := s.liveConfigPath + ".emergency_backup"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("config backup: write emergency backup: %w", err)
	}
	return path, nil
}

// RestoreNewestBackup копирует самый свежий config_backup_* поверх живой конфигурации
func (s *FileConfigBackupStore) RestoreNewestBackup() (string, error) {
	entries, err := filepath.Glob(filepath.Join(s.backupDir, "config_backup_*"))
	if err != nil {
		return "", fmt.Errorf("config backup: glob backups: %w", err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("config backup: no backups found in %s", s.backupDir)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(entries)))
	newest := entries[0]

	data, err := os.ReadFile(newest)
	if err != nil {
		return "", fmt.Errorf("config backup: read %s: %w", newest, err)
	}

	if err := os.WriteFile(s.liveConfigPath, data, 0o644); err != nil {
		return "", fmt.Errorf("config backup: restore %s: %w", newest, err)
	}
	return newest, nil
}

// SaveSnapshot записывает новый config_backup_<ts> со снимком живой
// конфигурации. Не часть ConfigBackupStore - вызывается отдельно (например,
// по таймеру) для пополнения пула снимков, которые RestoreNewestBackup может откатить.
func (s *FileConfigBackupStore) SaveSnapshot() (string, error) {
	data, err := os.ReadFile(s.liveConfigPath)
	if err != nil {
		return "", fmt.Errorf("config backup: read live config: %w", err)
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("config backup: create backup dir: %w", err)
	}

	path := filepath.Join(s.backupDir, fmt.Sprintf("config_backup_%d", time.Now().UnixNano()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("config backup: write snapshot: %w", err)
	}
	return path, nil
}

package service

import (
	"strings"

	"arbitrage/internal/models"
)

// WebSocketBroadcaster - интерфейс для отправки уведомлений через WebSocket
type WebSocketBroadcaster interface {
	BroadcastNotification(notif *models.Notification)
}

// NotificationService - бизнес-логика для уведомлений: фильтрация по
// настройкам, сохранение в БД, broadcast через WebSocket hub
type NotificationService struct {
	notificationRepo NotificationRepositoryInterface
	settingsRepo     SettingsRepositoryInterface
	wsHub            WebSocketBroadcaster
}

// NewNotificationService создает новый экземпляр сервиса уведомлений
func NewNotificationService(notificationRepo NotificationRepositoryInterface, settingsRepo SettingsRepositoryInterface) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		settingsRepo:     settingsRepo,
	}
}

// SetWebSocketHub устанавливает получателя broadcast-уведомлений
func (s *NotificationService) SetWebSocketHub(hub WebSocketBroadcaster) {
	s.wsHub = hub
}

// CreateNotification сохраняет уведомление, если его тип не отключен в
// настройках, и рассылает его подключенным клиентам
func (s *NotificationService) CreateNotification(notif *models.Notification) error {
	enabled, err := s.isNotificationTypeEnabled(notif.Type)
	if err != nil {
		// fail-safe: при ошибке чтения настроек уведомление все равно создается
	} else if !enabled {
		return nil
	}

	if err := s.notificationRepo.Create(notif); err != nil {
		return err
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastNotification(notif)
	}

	return nil
}

// GetNotifications возвращает последние уведомления, опционально отфильтрованные по типу
func (s *NotificationService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	normalizedTypes := make([]string, 0, len(types))
	for _, t := range types {
		normalized := strings.ToUpper(strings.TrimSpace(t))
		if normalized != "" && s.isValidNotificationType(normalized) {
			normalizedTypes = append(normalizedTypes, normalized)
		}
	}

	if len(normalizedTypes) > 0 {
		return s.notificationRepo.GetByTypes(normalizedTypes, limit)
	}

	return s.notificationRepo.GetRecent(limit)
}

// ClearNotifications полностью очищает журнал уведомлений
func (s *NotificationService) ClearNotifications() error {
	return s.notificationRepo.DeleteAll()
}

// GetNotificationCount возвращает общее число уведомлений
func (s *NotificationService) GetNotificationCount() (int, error) {
	return s.notificationRepo.Count()
}

// GetNotificationCountByType возвращает число уведомлений заданного типа
func (s *NotificationService) GetNotificationCountByType(notifType string) (int, error) {
	return s.notificationRepo.CountByType(strings.ToUpper(notifType))
}

// CleanupOld оставляет только keepCount последних уведомлений
func (s *NotificationService) CleanupOld(keepCount int) (int64, error) {
	if keepCount <= 0 {
		keepCount = 100
	}
	return s.notificationRepo.KeepRecent(keepCount)
}

func (s *NotificationService) isNotificationTypeEnabled(notifType string) (bool, error) {
	prefs, err := s.settingsRepo.GetNotificationPrefs()
	if err != nil {
		return true, err
	}
	if prefs == nil {
		return true, nil
	}

	switch strings.ToUpper(notifType) {
	case models.NotificationTypeOpen:
		return prefs.Open, nil
	case models.NotificationTypeClose:
		return prefs.Close, nil
	case models.NotificationTypeSL:
		return prefs.StopLoss, nil
	case models.NotificationTypeLiquidation:
		return prefs.Liquidation, nil
	case models.NotificationTypeError:
		return prefs.APIError, nil
	case models.NotificationTypeMargin:
		return prefs.Margin, nil
	case models.NotificationTypePause:
		return prefs.Pause, nil
	case models.NotificationTypeSecondLegFail:
		return prefs.SecondLegFail, nil
	default:
		return true, nil
	}
}

func (s *NotificationService) isValidNotificationType(notifType string) bool {
	validTypes := map[string]bool{
		models.NotificationTypeOpen:          true,
		models.NotificationTypeClose:         true,
		models.NotificationTypeSL:            true,
		models.NotificationTypeLiquidation:   true,
		models.NotificationTypeError:         true,
		models.NotificationTypeMargin:        true,
		models.NotificationTypePause:         true,
		models.NotificationTypeSecondLegFail: true,
	}
	return validTypes[strings.ToUpper(notifType)]
}

// CreateOpenNotification создает уведомление об открытии позиции
func (s *NotificationService) CreateOpenNotification(pairID int, message string, meta map[string]interface{}) error {
	return s.CreateNotification(&models.Notification{
		Type:     models.NotificationTypeOpen,
		Severity: models.SeverityInfo,
		PairID:   &pairID,
		Message:  message,
		Meta:     meta,
	})
}

// CreateCloseNotification создает уведомление о закрытии позиции
func (s *NotificationService) CreateCloseNotification(pairID int, message string, meta map[string]interface{}) error {
	return s.CreateNotification(&models.Notification{
		Type:     models.NotificationTypeClose,
		Severity: models.SeverityInfo,
		PairID:   &pairID,
		Message:  message,
		Meta:     meta,
	})
}

// CreateSLNotification создает уведомление о срабатывании Stop Loss
func (s *NotificationService) CreateSLNotification(pairID int, message string, meta map[string]interface{}) error {
	return s.CreateNotification(&models.Notification{
		Type:     models.NotificationTypeSL,
		Severity: models.SeverityWarn,
		PairID:   &pairID,
		Message:  message,
		Meta:     meta,
	})
}

// CreateErrorNotification создает уведомление об ошибке, pairID может быть nil для общих ошибок
func (s *NotificationService) CreateErrorNotification(pairID *int, message string, meta map[string]interface{}) error {
	return s.CreateNotification(&models.Notification{
		Type:     models.NotificationTypeError,
		Severity: models.SeverityError,
		PairID:   pairID,
		Message:  message,
		Meta:     meta,
	})
}

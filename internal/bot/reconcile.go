package bot

import (
	"context"
	"sync"
	"time"

	"arbitrage/internal/exchange"
	"arbitrage/internal/models"
	"arbitrage/pkg/utils"
)

// positionFetchTimeout ограничивает один вызов GetOpenPositions при сверке
const positionFetchTimeout = 10 * time.Second

// venueLister - минимальный срез Registry, нужный сверке: список подключённых
// адаптеров. Узкий интерфейс вместо конкретного *exchange.Registry позволяет
// подменить источник бирж в тестах, не проходя через NewExchange/Connect.
type venueLister interface {
	All() map[string]exchange.Exchange
}

// StartupReconciler опрашивает все подключённые биржи на старте (и по
// требованию) и сверяет сообщённые ими открытые позиции с локальным
// PositionLedger. Расхождения только фиксируются - леджер не правится
// автоматически, решение остаётся за оператором.
type StartupReconciler struct {
	registry venueLister
	ledger   *PositionLedger
}

// NewStartupReconciler создаёт сверщик позиций поверх реестра бирж и леджера
func NewStartupReconciler(registry venueLister, ledger *PositionLedger) *StartupReconciler {
	return &StartupReconciler{registry: registry, ledger: ledger}
}

// Reconcile опрашивает параллельно все подключённые биржи и сверяет
// каждую обнаруженную открытую позицию с леджером. Возвращает список
// зафиксированных расхождений для этого прогона.
func (r *StartupReconciler) Reconcile(parentCtx context.Context) []models.ReconcileDrift {
	ctx, cancel := context.WithTimeout(parentCtx, positionFetchTimeout)
	defer cancel()

	venues := r.registry.All()

	type venuePositions struct {
		venue     string
		positions []*exchange.Position
	}

	resultsCh := make(chan venuePositions, len(venues))
	var wg sync.WaitGroup

	for venue, exch := range venues {
		venue, exch := venue, exch
		wg.Add(1)
		go func() {
			defer wg.Done()

			positions, err := exch.GetOpenPositions(ctx)
			if err != nil {
				if logger := utils.GetGlobalLogger(); logger != nil {
					logger.Sugar().Errorf("reconcile: failed to fetch open positions on %s: %v", venue, err)
				}
				return
			}
			resultsCh <- venuePositions{venue: venue, positions: positions}
		}()
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var drifts []models.ReconcileDrift
	for res := range resultsCh {
		for _, pos := range res.positions {
			if pos.Size == 0 {
				continue
			}
			drift := r.ledger.Reconcile(res.venue, pos.Symbol, pos.Size)
			if drift.Drift != 0 {
				if logger := utils.GetGlobalLogger(); logger != nil {
					logger.Sugar().Warnf("reconcile: drift on %s/%s: local=%.8f venue=%.8f",
						res.venue, pos.Symbol, drift.LocalQty, drift.VenueQty)
				}
				drifts = append(drifts, drift)
			}
		}
	}

	return drifts
}

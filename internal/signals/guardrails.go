package signals

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"arbitrage/internal/config"
	"arbitrage/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AdvisorClient абстрагирует вызов внешнего советника (LLM), чтобы
// Guardrails не зависел от конкретного API-клиента
type AdvisorClient interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

var balancedBraces = regexp.MustCompile(`\{[\s\S]*\}`)
var fencedJSON = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*?\\})\\s*```")

// Guardrails оборачивает вызов советника бюджетом, кэшем по fingerprint'у,
// валидацией ответа и таймаутом. При любом отказе возвращает консервативное
// fallback-решение вместо распространения ошибки вызывающему.
type Guardrails struct {
	mu sync.Mutex

	client AdvisorClient
	cfg    config.GuardrailsConfig

	totalCalls     int
	dailyCalls     int
	dailyCost      float64
	dailyResetDate string

	cache map[string]models.GuardrailsCacheEntry

	validationFail int
	timeoutFail    int
	budgetStop     int
	cacheHits      int
}

// NewGuardrails создаёт обёртку над advisor-клиентом
func NewGuardrails(client AdvisorClient, cfg config.GuardrailsConfig) *Guardrails {
	return &Guardrails{
		client:         client,
		cfg:            cfg,
		dailyResetDate: time.Now().Format("2006-01-02"),
		cache:          make(map[string]models.GuardrailsCacheEntry),
	}
}

// SignalContext описывает данные сигнала, участвующие в fingerprint'е кэша
type SignalContext struct {
	Strategy  string
	SignalKind string
	RSI       float64
	MACD      float64
	ADX       float64
	EMAUp     bool // true если краткая EMA выше длинной (восходящий тренд)
}

// Evaluate выполняет полный цикл: бюджет → кэш → вызов → валидация, с
// таймаутом, и возвращает структурированное решение (реальное или fallback)
func (g *Guardrails) Evaluate(ctx context.Context, prompt string, sig SignalContext) models.AdvisorDecision {
	g.resetDailyIfNeeded()

	fingerprint := g.fingerprint(sig)

	if cached, ok := g.checkCache(fingerprint); ok {
		return cached
	}

	if ok, reason := g.checkBudget(); !ok {
		return g.fallback(reason)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	resultCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		text, err := g.client.Analyze(callCtx, prompt)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- text
	}()

	g.recordCall()

	var responseText string
	select {
	case text := <-resultCh:
		responseText = text
	case <-errCh:
		return g.fallback("advisor call failed")
	case <-callCtx.Done():
		g.mu.Lock()
		g.timeoutFail++
		g.mu.Unlock()
		return g.fallback("advisor call timed out")
	}

	decision, err := g.validate(responseText)
	if err != nil {
		g.mu.Lock()
		g.validationFail++
		g.mu.Unlock()
		return g.fallback(err.Error())
	}

	g.saveCache(fingerprint, decision)
	return decision
}

func (g *Guardrails) timeout() time.Duration {
	if g.cfg.Timeout <= 0 {
		return 10 * time.Second
	}
	return g.cfg.Timeout
}

func (g *Guardrails) resetDailyIfNeeded() {
	today := time.Now().Format("2006-01-02")

	g.mu.Lock()
	defer g.mu.Unlock()
	if today != g.dailyResetDate {
		g.dailyCalls = 0
		g.dailyCost = 0
		g.dailyResetDate = today
	}
}

func (g *Guardrails) checkBudget() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	maxCalls := g.cfg.MaxDailyCalls
	if maxCalls > 0 && g.dailyCalls >= maxCalls {
		g.budgetStop++
		return false, fmt.Sprintf("daily call limit reached (%d)", maxCalls)
	}
	if g.cfg.MaxDailyCost > 0 && g.dailyCost >= g.cfg.MaxDailyCost {
		g.budgetStop++
		return false, fmt.Sprintf("daily cost limit reached ($%.2f)", g.cfg.MaxDailyCost)
	}
	return true, ""
}

func (g *Guardrails) recordCall(costUSD ...float64) {
	cost := 0.015
	if len(costUSD) > 0 {
		cost = costUSD[0]
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.totalCalls++
	g.dailyCalls++
	g.dailyCost += cost
}

// fingerprint воспроизводит ключ кэша советника: имя стратегии, вид сигнала,
// минутный timestamp, округлённые индикаторы и знак тренда EMA
func (g *Guardrails) fingerprint(sig SignalContext) string {
	trend := "down"
	if sig.EMAUp {
		trend = "up"
	}

	keyStr := fmt.Sprintf("%s|%s|%s|%.1f|%.0f|%.0f|%s",
		sig.Strategy, sig.SignalKind, time.Now().Format("2006-01-02 15:04"),
		sig.RSI, sig.MACD, sig.ADX, trend)

	sum := md5.Sum([]byte(keyStr))
	return hex.EncodeToString(sum[:])
}

func (g *Guardrails) checkCache(fingerprint string) (models.AdvisorDecision, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.cache[fingerprint]
	if !ok {
		return models.AdvisorDecision{}, false
	}
	if time.Now().After(entry.ExpiresAt) {
		delete(g.cache, fingerprint)
		return models.AdvisorDecision{}, false
	}

	g.cacheHits++
	result := entry.Result
	result.FromCache = true
	return result, true
}

func (g *Guardrails) saveCache(fingerprint string, decision models.AdvisorDecision) {
	ttl := g.cfg.CacheTTL
	if ttl <= 0 {
		ttl = 300 * time.Second
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache[fingerprint] = models.GuardrailsCacheEntry{
		Result:    decision,
		ExpiresAt: time.Now().Add(ttl),
	}
	g.cleanupCacheLocked()
}

func (g *Guardrails) cleanupCacheLocked() {
	now := time.Now()
	for k, v := range g.cache {
		if now.After(v.ExpiresAt) {
			delete(g.cache, k)
		}
	}
}

// validate разбирает ответ советника, принимая прямой JSON, JSON внутри
// ограждённого блока кода или первую сбалансированную {…} подстроку, и
// проверяет обязательные поля и диапазоны
func (g *Guardrails) validate(text string) (models.AdvisorDecision, error) {
	raw, err := parseJSON(text)
	if err != nil {
		return models.AdvisorDecision{}, fmt.Errorf("unable to parse advisor response: %w", err)
	}

	if err := validateRequiredFields(raw); err != nil {
		return models.AdvisorDecision{}, err
	}

	var decision models.AdvisorDecision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return models.AdvisorDecision{}, fmt.Errorf("unable to decode advisor decision: %w", err)
	}

	if decision.Confidence < 0 || decision.Confidence > 1 {
		return models.AdvisorDecision{}, fmt.Errorf("confidence out of range: %v", decision.Confidence)
	}
	if decision.SignalQuality < 0 || decision.SignalQuality > 1 {
		return models.AdvisorDecision{}, fmt.Errorf("signal_quality out of range: %v", decision.SignalQuality)
	}
	switch decision.Regime {
	case "trend", "mean_revert", "chop":
	default:
		return models.AdvisorDecision{}, fmt.Errorf("invalid regime: %q", decision.Regime)
	}

	return decision, nil
}

func validateRequiredFields(raw []byte) error {
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("advisor response is not a JSON object: %w", err)
	}
	required := []string{"execute", "confidence", "regime", "signal_quality"}
	var missing []string
	for _, field := range required {
		if _, ok := generic[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func parseJSON(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)

	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}

	if m := fencedJSON.FindStringSubmatch(trimmed); m != nil {
		if json.Valid([]byte(m[1])) {
			return []byte(m[1]), nil
		}
	}

	if m := balancedBraces.FindString(trimmed); m != "" {
		if json.Valid([]byte(m)) {
			return []byte(m), nil
		}
	}

	return nil, fmt.Errorf("no valid JSON object found in response")
}

// fallback возвращает консервативное решение по умолчанию, сконфигурированное
// через failure_mode: "pass" пропускает сигнал с низкой уверенностью, "reject" отклоняет
func (g *Guardrails) fallback(reason string) models.AdvisorDecision {
	mode := g.cfg.FailureMode
	if mode == "" {
		mode = config.GuardrailsFailureModePass
	}

	if mode == config.GuardrailsFailureModeReject {
		return models.AdvisorDecision{
			Execute:       false,
			Confidence:    0,
			Regime:        "chop",
			SignalQuality: 0,
			RiskFlags:     []string{"advisor_failure"},
			Reason:        "advisor fallback (reject): " + reason,
			FromFallback:  true,
		}
	}

	return models.AdvisorDecision{
		Execute:       true,
		Confidence:    0.5,
		Regime:        "chop",
		SignalQuality: 0.5,
		RiskFlags:     []string{"advisor_failure"},
		Reason:        "advisor fallback (pass): " + reason,
		FromFallback:  true,
	}
}

// Counters возвращает снимок публичных счётчиков
func (g *Guardrails) Counters() models.GuardrailsCounters {
	g.mu.Lock()
	defer g.mu.Unlock()

	remainingCalls := g.cfg.MaxDailyCalls - g.dailyCalls
	remainingBudget := g.cfg.MaxDailyCost - g.dailyCost

	return models.GuardrailsCounters{
		TotalCalls:           g.totalCalls,
		CacheHits:            g.cacheHits,
		ValidationFailures:   g.validationFail,
		TimeoutFailures:      g.timeoutFail,
		BudgetStops:          g.budgetStop,
		RemainingDailyCalls:  remainingCalls,
		RemainingDailyBudget: remainingBudget,
	}
}

package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidSymbol        = errors.New("invalid symbol")
	ErrInvalidSpread        = errors.New("invalid spread")
	ErrInvalidVolume        = errors.New("invalid volume")
	ErrInvalidNOrders       = errors.New("invalid n_orders")
	ErrInvalidStopLoss      = errors.New("invalid stop_loss")
	ErrInvalidLeverage      = errors.New("invalid leverage")
	ErrInvalidPercentage    = errors.New("invalid percentage")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrInvalidAPIKey        = errors.New("invalid api key")
	ErrInvalidAPISecret     = errors.New("invalid api secret")
	ErrInvalidAPIPassphrase = errors.New("invalid api passphrase")
	ErrInvalidExchange      = errors.New("invalid exchange")
	ErrInvalidPairConfig    = errors.New("invalid pair config")
)

var (
	symbolPattern    = regexp.MustCompile(`^[A-Za-z0-9_/-]+$`)
	apiKeyPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	emailLocalPart   = regexp.MustCompile(`^[A-Za-z0-9._%+-]+$`)
	symbolSeparators = []string{"-", "_", "/"}
)

// knownQuoteCurrencies — порядок имеет значение только в той мере, чтобы более
// длинные коды (USDT, USDC) проверялись раньше трёхбуквенных кросс-валют.
var knownQuoteCurrencies = []string{"USDT", "USDC", "BUSD", "TUSD", "DAI", "BNB", "ETH", "BTC"}

// ValidateSymbol проверяет формат торгового символа: 2-30 символов,
// буквы/цифры и разделители -, _, /.
func ValidateSymbol(symbol string) error {
	if len(symbol) < 2 || len(symbol) > 30 {
		return fmt.Errorf("%w: length must be between 2 and 30 characters", ErrInvalidSymbol)
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: contains invalid characters", ErrInvalidSymbol)
	}
	return nil
}

// IsValidSymbol — булевая обёртка над ValidateSymbol.
func IsValidSymbol(symbol string) bool {
	return ValidateSymbol(symbol) == nil
}

// NormalizeSymbol приводит символ к верхнему регистру и убирает разделители.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, sep := range symbolSeparators {
		s = strings.ReplaceAll(s, sep, "")
	}
	return s
}

func splitSymbol(symbol string) (base, quote string) {
	norm := strings.ToUpper(symbol)
	for _, sep := range symbolSeparators {
		if idx := strings.Index(norm, sep); idx > 0 {
			return norm[:idx], norm[idx+1:]
		}
	}
	for _, q := range knownQuoteCurrencies {
		if len(norm) > len(q) && strings.HasSuffix(norm, q) {
			return norm[:len(norm)-len(q)], q
		}
	}
	return norm, ""
}

// ExtractBaseCurrency возвращает базовую валюту символа (BTC из BTCUSDT).
func ExtractBaseCurrency(symbol string) string {
	base, _ := splitSymbol(symbol)
	return base
}

// ExtractQuoteCurrency возвращает котируемую валюту символа (USDT из BTCUSDT).
func ExtractQuoteCurrency(symbol string) string {
	_, quote := splitSymbol(symbol)
	return quote
}

// ValidateSpread проверяет что спред лежит в (0, 100] процентов.
func ValidateSpread(spread float64) error {
	if spread <= 0 || spread > 100 {
		return fmt.Errorf("%w: must be in (0, 100]", ErrInvalidSpread)
	}
	return nil
}

// ValidateVolume проверяет что объём лежит в (0, 1e9].
func ValidateVolume(volume float64) error {
	if volume <= 0 || volume > 1e9 {
		return fmt.Errorf("%w: must be in (0, 1e9]", ErrInvalidVolume)
	}
	return nil
}

// ValidateNOrders проверяет количество ордеров для разбивки объёма, [1, 100].
func ValidateNOrders(n int) error {
	if n < 1 || n > 100 {
		return fmt.Errorf("%w: must be between 1 and 100", ErrInvalidNOrders)
	}
	return nil
}

// ValidateStopLoss проверяет процент стоп-лосса, (0, 100].
func ValidateStopLoss(sl float64) error {
	if sl <= 0 || sl > 100 {
		return fmt.Errorf("%w: must be in (0, 100]", ErrInvalidStopLoss)
	}
	return nil
}

// ValidateLeverage проверяет плечо, [1, 100].
func ValidateLeverage(leverage int) error {
	if leverage < 1 || leverage > 100 {
		return fmt.Errorf("%w: must be between 1 and 100", ErrInvalidLeverage)
	}
	return nil
}

// ValidatePercentage проверяет произвольный процент, [0, 100].
func ValidatePercentage(pct float64) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: must be between 0 and 100", ErrInvalidPercentage)
	}
	return nil
}

// ValidateEmail — упрощённая проверка формата email, достаточная для
// валидации адресов уведомлений.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEmail)
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%w: must contain exactly one '@'", ErrInvalidEmail)
	}
	if !emailLocalPart.MatchString(parts[0]) {
		return fmt.Errorf("%w: invalid local part", ErrInvalidEmail)
	}
	domain := parts[1]
	dotIdx := strings.LastIndex(domain, ".")
	if dotIdx <= 0 || dotIdx == len(domain)-1 {
		return fmt.Errorf("%w: invalid domain", ErrInvalidEmail)
	}
	return nil
}

// IsValidEmail — булевая обёртка над ValidateEmail.
func IsValidEmail(email string) bool {
	return ValidateEmail(email) == nil
}

// ValidateAPIKey проверяет базовый формат ключа API биржи: минимум 16 символов,
// буквы/цифры/дефис/подчёркивание.
func ValidateAPIKey(apiKey string) error {
	if len(apiKey) < 16 {
		return fmt.Errorf("%w: must be at least 16 characters", ErrInvalidAPIKey)
	}
	if !apiKeyPattern.MatchString(apiKey) {
		return fmt.Errorf("%w: contains invalid characters", ErrInvalidAPIKey)
	}
	return nil
}

// IsValidAPIKey — булевая обёртка над ValidateAPIKey.
func IsValidAPIKey(apiKey string) bool {
	return ValidateAPIKey(apiKey) == nil
}

// ValidateAPISecret проверяет секрет API: минимум 16 символов, без ограничений
// по набору символов (секреты бирж часто содержат спецсимволы).
func ValidateAPISecret(secret string) error {
	if len(secret) < 16 {
		return fmt.Errorf("%w: must be at least 16 characters", ErrInvalidAPISecret)
	}
	return nil
}

// ValidateAPIPassphrase проверяет passphrase (пусто допустимо — не все биржи его требуют).
func ValidateAPIPassphrase(passphrase string) error {
	if len(passphrase) > 64 {
		return fmt.Errorf("%w: must be at most 64 characters", ErrInvalidAPIPassphrase)
	}
	return nil
}

// SupportedExchanges — биржи, для которых в exchange/ есть реализация адаптера.
var SupportedExchanges = []string{"bybit", "bitget", "okx", "gate", "htx", "bingx"}

// NormalizeExchange приводит имя биржи к каноническому виду (lower-case, trim).
func NormalizeExchange(exchange string) string {
	return strings.ToLower(strings.TrimSpace(exchange))
}

// ValidateExchange проверяет что биржа входит в список поддерживаемых.
func ValidateExchange(exchange string) error {
	norm := NormalizeExchange(exchange)
	if norm == "" {
		return fmt.Errorf("%w: empty", ErrInvalidExchange)
	}
	for _, e := range SupportedExchanges {
		if e == norm {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not supported", ErrInvalidExchange, exchange)
}

// IsValidExchange — булевая обёртка над ValidateExchange.
func IsValidExchange(exchange string) bool {
	return ValidateExchange(exchange) == nil
}

// GetSupportedExchanges возвращает копию списка поддерживаемых бирж.
func GetSupportedExchanges() []string {
	out := make([]string, len(SupportedExchanges))
	copy(out, SupportedExchanges)
	return out
}

// PairConfigValidation собирает поля конфигурации пары, которые должны быть
// провалидированы согласованно (в частности entry/exit спреды и пара бирж).
type PairConfigValidation struct {
	Symbol      string
	EntrySpread float64
	ExitSpread  float64
	Volume      float64
	NOrders     int
	StopLoss    float64
	ExchangeA   string
	ExchangeB   string
}

// ValidatePairConfig прогоняет конфигурацию пары через все отдельные валидаторы
// и дополнительно проверяет согласованность полей между собой.
func ValidatePairConfig(cfg PairConfigValidation) error {
	if err := ValidateSymbol(cfg.Symbol); err != nil {
		return err
	}
	if err := ValidateSpread(cfg.EntrySpread); err != nil {
		return fmt.Errorf("entry_spread: %w", err)
	}
	if err := ValidateSpread(cfg.ExitSpread); err != nil {
		return fmt.Errorf("exit_spread: %w", err)
	}
	if err := ValidateVolume(cfg.Volume); err != nil {
		return err
	}
	if err := ValidateNOrders(cfg.NOrders); err != nil {
		return err
	}
	if cfg.StopLoss != 0 {
		if err := ValidateStopLoss(cfg.StopLoss); err != nil {
			return err
		}
	}
	if cfg.ExchangeA != "" || cfg.ExchangeB != "" {
		if cfg.ExchangeA == cfg.ExchangeB {
			return fmt.Errorf("%w: exchange_a and exchange_b must differ", ErrInvalidPairConfig)
		}
		if err := ValidateExchange(cfg.ExchangeA); err != nil {
			return err
		}
		if err := ValidateExchange(cfg.ExchangeB); err != nil {
			return err
		}
	}
	if cfg.EntrySpread <= cfg.ExitSpread {
		return fmt.Errorf("%w: entry_spread must be greater than exit_spread", ErrInvalidPairConfig)
	}
	return nil
}

// ValidationErrors аккумулирует несколько ошибок валидации для составных форм,
// где нужно вернуть пользователю все проблемы сразу, а не первую встреченную.
type ValidationErrors []string

// Add добавляет запись в формате "field: message".
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, fmt.Sprintf("%s: %s", field, message))
}

// AddError добавляет ошибку err (если она не nil) под полем field.
func (e *ValidationErrors) AddError(field string, err error) {
	if err == nil {
		return
	}
	e.Add(field, err.Error())
}

// HasErrors сообщает, накоплена ли хотя бы одна ошибка.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Error реализует интерфейс error, объединяя записи через "; ".
func (e ValidationErrors) Error() string {
	return strings.Join(e, "; ")
}

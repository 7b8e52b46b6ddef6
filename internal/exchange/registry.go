package exchange

import (
	"fmt"
	"strings"
	"sync"
)

// Credentials - набор ключей для подключения к одной бирже
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// Registry - потокобезопасный реестр биржевых адаптеров, построенный один
// раз при старте и явно прокидываемый в движок (не пакетный синглтон).
// Активный адаптер конструируется сразу, остальные - лениво при первом
// обращении через Get.
type Registry struct {
	mu          sync.RWMutex
	creds       map[string]Credentials
	adapters    map[string]Exchange
	connected   map[string]bool
	activeName  string
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		creds:     make(map[string]Credentials),
		adapters:  make(map[string]Exchange),
		connected: make(map[string]bool),
	}
}

// Initialize регистрирует учётные данные для набора бирж и эагерли
// конструирует активный адаптер. Остальные остаются незапущенными до Get.
func (r *Registry) Initialize(creds map[string]Credentials, activeName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.creds = creds
	if activeName == "" {
		return fmt.Errorf("registry: active exchange name is required")
	}

	r.activeName = strings.ToLower(activeName)
	if _, err := r.getOrConstructLocked(r.activeName); err != nil {
		return fmt.Errorf("registry: failed to initialize active exchange %s: %w", r.activeName, err)
	}

	return nil
}

// Active возвращает текущий активный адаптер
func (r *Registry) Active() (Exchange, error) {
	r.mu.RLock()
	name := r.activeName
	r.mu.RUnlock()

	return r.Get(name)
}

// ActiveName возвращает имя активного адаптера
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeName
}

// Get возвращает адаптер по имени, конструируя его лениво при первом обращении
func (r *Registry) Get(name string) (Exchange, error) {
	name = strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getOrConstructLocked(name)
}

func (r *Registry) getOrConstructLocked(name string) (Exchange, error) {
	if adapter, ok := r.adapters[name]; ok {
		return adapter, nil
	}

	adapter, err := NewExchange(name)
	if err != nil {
		return nil, err
	}

	cred := r.creds[name]
	if err := adapter.Connect(cred.APIKey, cred.Secret, cred.Passphrase); err != nil {
		r.connected[name] = false
		return nil, fmt.Errorf("registry: connect %s: %w", name, err)
	}

	r.adapters[name] = adapter
	r.connected[name] = true
	return adapter, nil
}

// Switch меняет активный адаптер атомарно. При ошибке конструирования
// нового адаптера прежний активный остаётся без изменений.
func (r *Registry) Switch(name string) error {
	name = strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.getOrConstructLocked(name); err != nil {
		return err
	}

	r.activeName = name
	return nil
}

// Connected сообщает, подключена ли биржа (по последнему известному статусу)
func (r *Registry) Connected(name string) bool {
	name = strings.ToLower(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected[name]
}

// MarkDisconnected помечает биржу как отключённую (например, после сбоя health-пробы)
func (r *Registry) MarkDisconnected(name string) {
	name = strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected[name] = false
}

// DisconnectAll закрывает все сконструированные адаптеры. Идемпотентна:
// повторный вызов или уже отключённые адаптеры не вызывают ошибки.
func (r *Registry) DisconnectAll() []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, adapter := range r.adapters {
		if !r.connected[name] {
			continue
		}
		if err := adapter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s: %w", name, err))
		}
		r.connected[name] = false
	}
	return errs
}

// All возвращает снимок всех уже сконструированных адаптеров
func (r *Registry) All() map[string]Exchange {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Exchange, len(r.adapters))
	for name, adapter := range r.adapters {
		out[name] = adapter
	}
	return out
}

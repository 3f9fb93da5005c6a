package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fastygo/planner/domain"
)

type CommandHandler func(ctx context.Context, payload interface{}) (interface{}, error)
type QueryHandler func(ctx context.Context, params interface{}) (interface{}, error)

// Dispatcher routes named commands and queries to their handlers. HTTP,
// cron and the CLI all trigger jobs through it.
type Dispatcher struct {
	cmdHandlers map[string]CommandHandler
	qryHandlers map[string]QueryHandler
	mu          sync.RWMutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		cmdHandlers: make(map[string]CommandHandler),
		qryHandlers: make(map[string]QueryHandler),
	}
}

// RegisterCommand panics on a duplicate name; wiring mistakes should fail at boot.
func (d *Dispatcher) RegisterCommand(name string, handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.cmdHandlers[name]; exists {
		panic(fmt.Sprintf("command handler %s already registered", name))
	}
	d.cmdHandlers[name] = handler
}

func (d *Dispatcher) RegisterQuery(name string, handler QueryHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.qryHandlers[name]; exists {
		panic(fmt.Sprintf("query handler %s already registered", name))
	}
	d.qryHandlers[name] = handler
}

func (d *Dispatcher) ExecuteCommand(ctx context.Context, name string, payload interface{}) (interface{}, error) {
	d.mu.RLock()
	handler, ok := d.cmdHandlers[name]
	d.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrCodeNotFound, fmt.Sprintf("command %s", name), domain.ErrUnknownCommand)
	}
	return handler(ctx, payload)
}

func (d *Dispatcher) ExecuteQuery(ctx context.Context, name string, params interface{}) (interface{}, error) {
	d.mu.RLock()
	handler, ok := d.qryHandlers[name]
	d.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrCodeNotFound, fmt.Sprintf("query %s", name), domain.ErrUnknownCommand)
	}
	return handler(ctx, params)
}

// Commands lists registered command names in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.cmdHandlers))
	for name := range d.cmdHandlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

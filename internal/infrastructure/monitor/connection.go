package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Probe is a named health check. Only required probes decide IsOnline.
type Probe struct {
	Name     string
	Check    Check
	Required bool
	Timeout  time.Duration
}

// Sizer reports the number of parked writes.
type Sizer interface {
	Size() (int, error)
}

// PostgresProbe pings the pool.
func PostgresProbe(pool *pgxpool.Pool) Probe {
	return Probe{
		Name:     "postgresql",
		Required: true,
		Timeout:  3 * time.Second,
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	}
}

// RedisProbe pings the client. Redis only backs the run guard, so it never
// takes the service offline.
func RedisProbe(client *redislib.Client) Probe {
	return Probe{
		Name:    "redis",
		Timeout: 2 * time.Second,
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

type Monitor struct {
	probes []Probe
	buffer Sizer

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(interval time.Duration, buffer Sizer, logger *zap.Logger, probes ...Probe) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		probes:   probes,
		buffer:   buffer,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
		status:   Status{Online: true, Components: map[string]bool{}},
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Online
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.status
	out.Components = make(map[string]bool, len(m.status.Components))
	for name, ok := range m.status.Components {
		out.Components[name] = ok
	}
	return out
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every probe once and stores the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	status := Status{
		Online:     true,
		Components: make(map[string]bool, len(m.probes)+1),
		LastCheck:  time.Now(),
	}
	for _, p := range m.probes {
		ok := m.run(ctx, p)
		status.Components[p.Name] = ok
		if p.Required && !ok {
			status.Online = false
		}
	}
	if m.buffer != nil {
		size, err := m.buffer.Size()
		if err != nil {
			m.logger.Warn("buffer size check failed", zap.Error(err))
		}
		status.Components["buffer"] = err == nil
		status.BufferSize = size
	}

	m.mu.Lock()
	if m.status.Online != status.Online {
		m.logger.Info("connectivity changed", zap.Bool("online", status.Online))
	}
	m.status = status
	m.mu.Unlock()
	return status
}

func (m *Monitor) run(ctx context.Context, p Probe) bool {
	if p.Check == nil {
		return false
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.Check(ctx); err != nil {
		m.logger.Debug("health probe failed", zap.String("probe", p.Name), zap.Error(err))
		return false
	}
	return true
}

package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const probeTimeout = 3 * time.Second

// Probe returns nil when a dependency is reachable.
type Probe func(ctx context.Context) error

// Sizer reports the backlog of the outbound outbox.
type Sizer interface {
	Size() int
}

// PostgresProbe pings a pgx pool.
func PostgresProbe(pool *pgxpool.Pool) Probe {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

// RedisProbe pings a redis client.
func RedisProbe(client *redislib.Client) Probe {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

type Monitor struct {
	probes map[string]Probe
	outbox Sizer

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// New builds a monitor running probes every interval. outbox may be nil.
func New(probes map[string]Probe, outbox Sizer, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		probes:   probes,
		outbox:   outbox,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	return m.GetStatus().Online()
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh()
	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every probe once and stores the result.
func (m *Monitor) Refresh() {
	services := make(map[string]bool, len(m.probes))
	for name, probe := range m.probes {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		err := probe(ctx)
		cancel()
		if err != nil {
			m.logger.Warn("dependency unhealthy", zap.String("service", name), zap.Error(err))
		}
		services[name] = err == nil
	}

	status := Status{Services: services, LastCheck: time.Now()}
	if m.outbox != nil {
		status.OutboxSize = m.outbox.Size()
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

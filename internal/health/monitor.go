package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ponedo/docsql/internal/shard"
)

// ShardHealth tracks the health status of a single shard connection.
// It maintains the current status, last successful check time, and
// failure count. Protected by the Monitor's mutex when accessed.
type ShardHealth struct {
	LastCheck        time.Time // Timestamp of the last check attempt
	LastHealthy      time.Time // Timestamp of the last successful check
	Shard            int       // Index of the shard in the set
	Status           string    // Current status: "healthy", "unhealthy", "unknown"
	ConsecutiveFails int       // Number of consecutive failed checks
}

// Monitor performs periodic liveness checks on every shard of a set.
// It tracks per-shard status and notifies a callback when a shard
// crosses the failure threshold. All methods are safe for concurrent
// access.
type Monitor struct {
	set         *shard.Set                           // Connections under observation
	shards      map[int]*ShardHealth                 // Current health per shard index
	checkFunc   func(ctx context.Context, index int) error // Performs one check
	onUnhealthy func(index int)                      // Callback on unhealthy transition
	log         *slog.Logger
	ctx         context.Context    // Internal context for shutdown
	cancel      context.CancelFunc // Cancels the monitoring loop
	interval    time.Duration      // How often to check shards
	timeout     time.Duration      // Per-check timeout
	mu          sync.RWMutex       // Protects shards map
	wg          sync.WaitGroup     // Waits for the loop on Stop
	maxFailures int                // Failures before marking unhealthy
}

// NewMonitor creates a monitor checking every shard of set on the
// given interval. Shards are marked unhealthy after 3 consecutive
// failures; each check gets a 2 second timeout.
func NewMonitor(set *shard.Set, interval time.Duration, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		set:         set,
		interval:    interval,
		timeout:     2 * time.Second,
		maxFailures: 3,
		shards:      make(map[int]*ShardHealth),
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetOnUnhealthy sets the callback invoked (in its own goroutine) when
// a shard transitions to unhealthy.
func (m *Monitor) SetOnUnhealthy(callback func(index int)) {
	m.onUnhealthy = callback
}

// SetCheckFunc replaces the default ping-based check. This is the test
// seam; production code keeps the default.
func (m *Monitor) SetCheckFunc(checkFunc func(ctx context.Context, index int) error) {
	m.checkFunc = checkFunc
}

// Start runs the monitoring loop in the current goroutine until the
// given context or the monitor itself is canceled. An initial round of
// checks runs immediately, then one per interval.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	if ctx == nil {
		ctx = m.ctx
	}
	if m.checkFunc == nil {
		m.checkFunc = m.defaultCheck
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info("health monitor started", "interval", m.interval, "shards", m.set.Len())

	m.checkAllShards(ctx)

	for {
		select {
		case <-ticker.C:
			m.checkAllShards(ctx)
		case <-ctx.Done():
			m.log.Debug("health monitor stopping", "reason", "context canceled")
			return
		case <-m.ctx.Done():
			m.log.Debug("health monitor stopping", "reason", "monitor stopped")
			return
		}
	}
}

// Stop shuts the monitor down and waits for the loop to exit. Safe to
// call more than once.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// checkAllShards performs one check round over the whole set.
func (m *Monitor) checkAllShards(ctx context.Context) {
	for i := 0; i < m.set.Len(); i++ {
		m.checkShard(ctx, i)
	}
}

// checkShard performs a single check on one shard and updates its
// health record, tracking consecutive failures and triggering the
// unhealthy callback when the threshold is crossed.
func (m *Monitor) checkShard(ctx context.Context, index int) {
	m.mu.Lock()
	health, exists := m.shards[index]
	if !exists {
		health = &ShardHealth{
			Shard:       index,
			Status:      "unknown",
			LastCheck:   time.Now(),
			LastHealthy: time.Now(),
		}
		m.shards[index] = health
	}
	m.mu.Unlock()

	err := m.checkFunc(ctx, index)

	m.mu.Lock()
	defer m.mu.Unlock()

	health.LastCheck = time.Now()

	if err != nil {
		health.ConsecutiveFails++
		m.log.Warn("shard health check failed",
			"shard", index,
			"attempt", health.ConsecutiveFails,
			"max", m.maxFailures,
			"error", err)

		if health.ConsecutiveFails >= m.maxFailures {
			previousStatus := health.Status
			health.Status = "unhealthy"

			if previousStatus != "unhealthy" && m.onUnhealthy != nil {
				m.log.Error("shard marked unhealthy",
					"shard", index,
					"failures", health.ConsecutiveFails)
				// Call the callback without holding the lock
				go m.onUnhealthy(index)
			}
		}
		return
	}

	if health.Status == "unhealthy" {
		m.log.Info("shard recovered", "shard", index)
	}
	health.Status = "healthy"
	health.ConsecutiveFails = 0
	health.LastHealthy = time.Now()
}

// defaultCheck pings one shard's pool with the monitor's timeout.
func (m *Monitor) defaultCheck(ctx context.Context, index int) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.set.Conn(index).DB().PingContext(ctx)
}

// Health returns a copy of the current health record for one shard, or
// nil if it has not been checked yet.
func (m *Monitor) Health(index int) *ShardHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health, exists := m.shards[index]
	if !exists {
		return nil
	}
	copied := *health
	return &copied
}

// All returns copies of every shard's health record keyed by index.
func (m *Monitor) All() map[int]*ShardHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[int]*ShardHealth, len(m.shards))
	for index, health := range m.shards {
		copied := *health
		result[index] = &copied
	}
	return result
}

// IsHealthy reports whether a shard is currently healthy. Unchecked
// shards report false.
func (m *Monitor) IsHealthy(index int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health, exists := m.shards[index]
	return exists && health.Status == "healthy"
}

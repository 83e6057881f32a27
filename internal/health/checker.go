package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult holds the result of a health check.
type CheckResult struct {
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error,omitempty"`
}

// Component represents a dependency that can be health-checked.
type Component struct {
	Name string `json:"name"`
	Type string `json:"type"` // database or http
	CheckResult
}

// Pinger is satisfied by *sql.DB and by record stores that expose their pool.
type Pinger interface {
	PingContext(ctx context.Context) error
}

var _ Pinger = (*sql.DB)(nil)

// Checker probes the record database and the upstream completions API.
type Checker struct {
	recordsDB       Pinger
	upstreamBaseURL string
	client          *http.Client
	version         string

	dbTimeout          time.Duration
	maxDatabaseLatency time.Duration

	mu   sync.RWMutex
	last []Component
}

// Config holds health checker configuration.
type Config struct {
	RecordsDB Pinger
	// UpstreamBaseURL is probed with a GET; any HTTP answer counts as reachable.
	UpstreamBaseURL string
	Version         string

	DBTimeout          time.Duration
	HTTPTimeout        time.Duration
	MaxDatabaseLatency time.Duration
	Transport          http.RoundTripper
}

// New creates a new health checker.
func New(cfg Config) *Checker {
	if cfg.DBTimeout == 0 {
		cfg.DBTimeout = 2 * time.Second
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	if cfg.MaxDatabaseLatency == 0 {
		cfg.MaxDatabaseLatency = 100 * time.Millisecond
	}
	return &Checker{
		recordsDB:          cfg.RecordsDB,
		upstreamBaseURL:    cfg.UpstreamBaseURL,
		client:             &http.Client{Timeout: cfg.HTTPTimeout, Transport: cfg.Transport},
		version:            cfg.Version,
		dbTimeout:          cfg.DBTimeout,
		maxDatabaseLatency: cfg.MaxDatabaseLatency,
	}
}

// HealthStatus represents the overall health of relayd.
type HealthStatus struct {
	Status     Status      `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	Version    string      `json:"version,omitempty"`
	Components []Component `json:"components"`
}

// Check runs every probe in parallel and returns the overall status.
func (c *Checker) Check(ctx context.Context) HealthStatus {
	var wg sync.WaitGroup
	results := make(chan Component, 2)

	if c.recordsDB != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.checkDatabase(ctx, "records_db", c.recordsDB)
		}()
	}
	if c.upstreamBaseURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.checkHTTPEndpoint(ctx, "upstream_api", c.upstreamBaseURL)
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	components := make([]Component, 0, 2)
	for comp := range results {
		components = append(components, comp)
	}

	c.mu.Lock()
	c.last = components
	c.mu.Unlock()

	return c.overall(components)
}

// LastStatus returns the previous Check result without probing.
func (c *Checker) LastStatus() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overall(c.last)
}

func (c *Checker) checkDatabase(ctx context.Context, name string, db Pinger) Component {
	comp := Component{Name: name, Type: "database", CheckResult: CheckResult{Timestamp: time.Now()}}

	dbCtx, cancel := context.WithTimeout(ctx, c.dbTimeout)
	defer cancel()

	start := time.Now()
	err := db.PingContext(dbCtx)
	comp.Latency = time.Since(start)
	switch {
	case err != nil:
		comp.Status = StatusUnhealthy
		comp.Error = err.Error()
		comp.Message = "Database unreachable"
	case comp.Latency > c.maxDatabaseLatency:
		comp.Status = StatusDegraded
		comp.Message = fmt.Sprintf("High latency: %v", comp.Latency)
	default:
		comp.Status = StatusHealthy
		comp.Message = "Connected"
	}
	return comp
}

func (c *Checker) checkHTTPEndpoint(ctx context.Context, name, baseURL string) Component {
	comp := Component{Name: name, Type: "http", CheckResult: CheckResult{Timestamp: time.Now()}}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		comp.Status = StatusUnhealthy
		comp.Error = err.Error()
		comp.Latency = time.Since(start)
		return comp
	}
	resp, err := c.client.Do(req)
	comp.Latency = time.Since(start)
	if err != nil {
		comp.Status = StatusDegraded
		comp.Error = err.Error()
		comp.Message = "Endpoint unreachable"
		return comp
	}
	defer resp.Body.Close()

	// 4xx/5xx still means the service is up.
	comp.Status = StatusHealthy
	comp.Message = fmt.Sprintf("Reachable (HTTP %d)", resp.StatusCode)
	return comp
}

// overall degrades on any non-healthy component; a failed database is fatal.
func (c *Checker) overall(components []Component) HealthStatus {
	status := StatusHealthy
	for _, comp := range components {
		switch comp.Status {
		case StatusUnhealthy:
			if comp.Type == "database" {
				status = StatusUnhealthy
			} else if status == StatusHealthy {
				status = StatusDegraded
			}
		case StatusDegraded:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		}
	}
	if components == nil {
		components = []Component{}
	}
	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Version:    c.version,
		Components: components,
	}
}

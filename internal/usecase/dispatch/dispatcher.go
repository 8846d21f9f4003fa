package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"conductor/internal/adapter/llm"
	"conductor/internal/domain"
	"conductor/internal/infra/config"
	"conductor/internal/infra/tracer"
)

// Default dispatcher limits.
const (
	defaultSendTimeout = 120 * time.Second
	defaultFanoutLimit = 8
)

// adapterRecord is one registered adapter plus its private accounting.
type adapterRecord struct {
	id           string
	providerType string
	model        string
	adapter      domain.Adapter
	stats        *usageStats
}

// Options configures a Dispatcher.
type Options struct {
	// SendTimeout bounds a single adapter call. 0 uses the default (120s).
	SendTimeout time.Duration
	// FanoutLimit caps concurrent fan-out branches. 0 uses the default (8).
	FanoutLimit int
	// MinInterval is the throttle spacing applied to each adapter.
	MinInterval time.Duration
	// CircuitBreaker is applied to every adapter built by AddAdapter.
	CircuitBreaker config.CircuitBreakerConfig
	// Pricing overrides the built-in per-million price table.
	Pricing map[string]config.ModelPriceConfig
	// History receives one entry per successful role-addressed send.
	// Nil defaults to a no-op (no conversation log).
	History domain.ConversationStore
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// NewAdapter overrides adapter construction, for tests. Nil uses llm.New.
	NewAdapter func(cfg config.ProviderConfig) (domain.Adapter, error)
}

// Dispatcher owns the adapter registry, role bindings, dispatch strategies,
// and usage accounting.
type Dispatcher struct {
	mu        sync.RWMutex
	adapters  map[string]*adapterRecord
	order     []string // registration order, drives fallback and tie-breaks
	roles     map[string]string
	roleStats map[string]*usageStats

	global  *usageStats
	history domain.ConversationStore
	pricing *Pricing
	logger  *slog.Logger

	sendTimeout time.Duration
	fanoutLimit int
	minInterval time.Duration
	cbCfg       config.CircuitBreakerConfig
	newAdapter  func(cfg config.ProviderConfig) (domain.Adapter, error)
}

// New creates an empty Dispatcher.
func New(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sendTimeout := opts.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	fanoutLimit := opts.FanoutLimit
	if fanoutLimit <= 0 {
		fanoutLimit = defaultFanoutLimit
	}

	d := &Dispatcher{
		adapters:    make(map[string]*adapterRecord),
		roles:       make(map[string]string),
		roleStats:   make(map[string]*usageStats),
		global:      &usageStats{},
		history:     opts.History,
		pricing:     NewPricing(opts.Pricing),
		logger:      logger,
		sendTimeout: sendTimeout,
		fanoutLimit: fanoutLimit,
		minInterval: opts.MinInterval,
		cbCfg:       opts.CircuitBreaker,
		newAdapter:  opts.NewAdapter,
	}
	if d.newAdapter == nil {
		d.newAdapter = func(cfg config.ProviderConfig) (domain.Adapter, error) {
			return llm.New(cfg, d.cbCfg, d.minInterval, d.logger)
		}
	}
	return d
}

// AddAdapter constructs and registers an adapter for the provider config.
// An empty cfg.ID gets an auto-generated "<type>-<random8>" id. Returns the
// id of the new adapter, or ErrUnsupportedProvider for an unknown type.
func (d *Dispatcher) AddAdapter(cfg config.ProviderConfig) (string, error) {
	adapter, err := d.newAdapter(cfg)
	if err != nil {
		return "", err
	}

	providerType := cfg.Type
	if providerType == "" {
		providerType = "openai"
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := cfg.ID
	if id == "" {
		for {
			id = providerType + "-" + randomSuffix()
			if _, exists := d.adapters[id]; !exists {
				break
			}
		}
	} else if _, exists := d.adapters[id]; exists {
		return "", fmt.Errorf("adapter %q already registered", id)
	}

	d.adapters[id] = &adapterRecord{
		id:           id,
		providerType: providerType,
		model:        cfg.Model,
		adapter:      adapter,
		stats:        &usageStats{},
	}
	d.order = append(d.order, id)

	d.logger.Info("adapter registered", "adapter", id, "type", providerType, "model", cfg.Model)
	return id, nil
}

// randomSuffix returns 8 lowercase characters of ULID entropy.
func randomSuffix() string {
	s := ulid.Make().String()
	return strings.ToLower(s[len(s)-8:])
}

// RemoveAdapter deletes the adapter and every role binding referencing it.
// Unknown ids are a no-op.
func (d *Dispatcher) RemoveAdapter(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.adapters[id]; !ok {
		return
	}
	delete(d.adapters, id)
	for i, oid := range d.order {
		if oid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	for role, bound := range d.roles {
		if bound == id {
			delete(d.roles, role)
		}
	}
	d.logger.Info("adapter removed", "adapter", id)
}

// AssignRole binds a role to an adapter, overwriting any existing binding.
// Fails with ErrAdapterNotFound for an unregistered id.
func (d *Dispatcher) AssignRole(role, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.adapters[id]; !ok {
		return domain.NewDomainError("Dispatcher.AssignRole", domain.ErrAdapterNotFound, id)
	}
	d.roles[role] = id
	d.logger.Info("role assigned", "role", role, "adapter", id)
	return nil
}

// Send resolves role to an adapter and dispatches. An unbound role falls
// back to the first registered adapter; an empty registry fails with
// ErrNoAdapters.
func (d *Dispatcher) Send(ctx context.Context, role, message, contextText string) (*domain.Response, error) {
	d.mu.RLock()
	id, bound := d.roles[role]
	if !bound {
		if len(d.order) == 0 {
			d.mu.RUnlock()
			return nil, domain.NewDomainError("Dispatcher.Send", domain.ErrNoAdapters, role)
		}
		id = d.order[0]
	}
	d.mu.RUnlock()

	return d.dispatch(ctx, id, role, message, contextText)
}

// SendToAdapter dispatches directly to one adapter by id, bypassing the
// availability gate. Fails with ErrAdapterNotFound for an unknown id.
func (d *Dispatcher) SendToAdapter(ctx context.Context, id, message, contextText string) (*domain.Response, error) {
	return d.dispatch(ctx, id, "", message, contextText)
}

// BalanceLoad dispatches to the best currently-available adapter. The score
// is requestCount + 10 × avgLatencySeconds; the lowest score wins, ties go
// to the earliest registration. An idle-but-slow adapter can lose to a
// busier-but-faster one.
func (d *Dispatcher) BalanceLoad(ctx context.Context, message, contextText string) (*domain.Response, error) {
	d.mu.RLock()
	if len(d.order) == 0 {
		d.mu.RUnlock()
		return nil, domain.NewDomainError("Dispatcher.BalanceLoad", domain.ErrNoAdapters, "")
	}

	bestID := ""
	bestScore := 0.0
	for _, id := range d.order {
		rec := d.adapters[id]
		if !rec.adapter.CheckAvailability().Available {
			continue
		}
		snap := rec.stats.snapshot()
		score := float64(snap.Requests) + 10*snap.AvgLatency.Seconds()
		if bestID == "" || score < bestScore {
			bestID = id
			bestScore = score
		}
	}
	d.mu.RUnlock()

	if bestID == "" {
		return nil, domain.NewDomainError("Dispatcher.BalanceLoad", domain.ErrAllAdaptersBusy, "")
	}
	return d.dispatch(ctx, bestID, "", message, contextText)
}

// FanOut concurrently dispatches to every currently-available adapter.
// Each branch is isolated: a failed branch maps its adapter id to nil
// without aborting the others. No available adapters yields an empty map.
func (d *Dispatcher) FanOut(ctx context.Context, message, contextText string) map[string]*domain.Response {
	d.mu.RLock()
	var targets []string
	for _, id := range d.order {
		if d.adapters[id].adapter.CheckAvailability().Available {
			targets = append(targets, id)
		}
	}
	d.mu.RUnlock()

	results := make(map[string]*domain.Response, len(targets))
	if len(targets) == 0 {
		return results
	}

	var (
		wg  sync.WaitGroup
		rmu sync.Mutex
		sem = make(chan struct{}, d.fanoutLimit)
	)
	for _, id := range targets {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			resp, err := d.dispatch(ctx, id, "", message, contextText)
			if err != nil {
				d.logger.Warn("fan-out branch failed", "adapter", id, "error", err)
				resp = nil
			}
			rmu.Lock()
			results[id] = resp
			rmu.Unlock()
		}(id)
	}
	wg.Wait()

	return results
}

// dispatch performs one adapter call and folds the outcome into the
// adapter's, the role's (when role-addressed), and the global accounting.
func (d *Dispatcher) dispatch(ctx context.Context, id, role, message, contextText string) (*domain.Response, error) {
	d.mu.RLock()
	rec, ok := d.adapters[id]
	d.mu.RUnlock()
	if !ok {
		return nil, domain.NewDomainError("Dispatcher.SendToAdapter", domain.ErrAdapterNotFound, id)
	}

	ctx, span := tracer.StartSpan(ctx, "dispatch.send")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("dispatch.adapter", id),
		tracer.StringAttr("dispatch.role", role),
	)

	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	resp, err := rec.adapter.SendMessage(ctx, message, contextText)
	latency := time.Since(start)

	if err != nil {
		rec.stats.recordError(latency)
		if role != "" {
			d.statsForRole(role).recordError(latency)
		}
		d.global.recordError(latency)

		if domain.ErrorCodeOf(err) == domain.CodeUnknown {
			err = fmt.Errorf("%w: %v", domain.ErrProviderError, err)
		}
		err = domain.WrapOp("dispatch "+id, err)
		tracer.RecordError(span, err)
		d.logger.Error("dispatch failed", "adapter", id, "role", role, "latency", latency, "error", err)
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = rec.model
	}
	cost := d.pricing.Cost(model, resp.Usage)

	rec.stats.recordSuccess(resp.Usage, cost, latency)
	if role != "" {
		d.statsForRole(role).recordSuccess(resp.Usage, cost, latency)
	}
	d.global.recordSuccess(resp.Usage, cost, latency)

	if role != "" && d.history != nil {
		entry := domain.ConversationEntry{
			ID:        ulid.Make().String(),
			Timestamp: time.Now(),
			Role:      role,
			AdapterID: id,
			Message:   message,
			Response:  resp.Content,
			Usage: domain.UsageSnapshot{
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
				Cost:         cost,
				Latency:      latency,
				Model:        model,
			},
		}
		if herr := d.history.Append(ctx, entry); herr != nil {
			d.logger.Warn("conversation log append failed", "error", herr)
		}
	}

	span.SetAttributes(tracer.Float64Attr("dispatch.cost", cost))
	tracer.SetOK(span)
	d.logger.Info("dispatch completed",
		"adapter", id,
		"role", role,
		"model", model,
		"latency", latency,
		"tokens", resp.Usage.Total(),
		"cost", cost,
	)
	return resp, nil
}

// statsForRole lazily creates the per-role accounting bucket.
func (d *Dispatcher) statsForRole(role string) *usageStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.roleStats[role]
	if !ok {
		s = &usageStats{}
		d.roleStats[role] = s
	}
	return s
}

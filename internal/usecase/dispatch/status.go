package dispatch

import (
	"context"
	"fmt"
	"time"

	"conductor/internal/domain"
)

// AdapterStatus is the monitoring view of one registered adapter.
type AdapterStatus struct {
	ProviderType string        `json:"provider_type"`
	Model        string        `json:"model"`
	Status       string        `json:"status"`
	RetryAfter   time.Duration `json:"retry_after"`
	Stats        StatsSnapshot `json:"stats"`
}

// RoleStatus is the monitoring view of one role binding.
type RoleStatus struct {
	AdapterID string        `json:"adapter_id"`
	Stats     StatsSnapshot `json:"stats"`
}

// TotalStats is the dispatcher-wide monitoring view.
type TotalStats struct {
	Adapters      int           `json:"adapters"`
	Roles         int           `json:"roles"`
	Conversations int           `json:"conversations"`
	Stats         StatsSnapshot `json:"stats"`
}

// Adapters returns the registered adapter ids in registration order.
func (d *Dispatcher) Adapters() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Roles returns a copy of the role binding table.
func (d *Dispatcher) Roles() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.roles))
	for role, id := range d.roles {
		out[role] = id
	}
	return out
}

// AdapterStatuses returns a read-only snapshot per registered adapter.
func (d *Dispatcher) AdapterStatuses() map[string]AdapterStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]AdapterStatus, len(d.adapters))
	for id, rec := range d.adapters {
		av := rec.adapter.CheckAvailability()
		snap := rec.stats.snapshot()

		status := domain.StatusActive
		switch {
		case !av.Available:
			status = domain.StatusRateLimited
		case snap.Errors > snap.Requests && snap.Errors > 0:
			status = domain.StatusDegraded
		}

		out[id] = AdapterStatus{
			ProviderType: rec.providerType,
			Model:        rec.model,
			Status:       status,
			RetryAfter:   av.RetryAfter,
			Stats:        snap,
		}
	}
	return out
}

// RoleStatuses returns a read-only snapshot per role binding.
func (d *Dispatcher) RoleStatuses() map[string]RoleStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]RoleStatus, len(d.roles))
	for role, id := range d.roles {
		rs := RoleStatus{AdapterID: id}
		if s, ok := d.roleStats[role]; ok {
			rs.Stats = s.snapshot()
		} else {
			rs.Stats = StatsSnapshot{SuccessRate: 100}
		}
		out[role] = rs
	}
	return out
}

// GetTotalStats returns the dispatcher-wide accounting snapshot.
func (d *Dispatcher) GetTotalStats(ctx context.Context) TotalStats {
	d.mu.RLock()
	adapters := len(d.adapters)
	roles := len(d.roles)
	d.mu.RUnlock()

	conversations := 0
	if d.history != nil {
		if n, err := d.history.Len(ctx); err == nil {
			conversations = n
		}
	}

	return TotalStats{
		Adapters:      adapters,
		Roles:         roles,
		Conversations: conversations,
		Stats:         d.global.snapshot(),
	}
}

// History returns up to limit conversation entries, oldest first.
// limit <= 0 returns all entries. Without a configured store it returns nil.
func (d *Dispatcher) History(ctx context.Context, limit int) ([]domain.ConversationEntry, error) {
	if d.history == nil {
		return nil, nil
	}
	return d.history.Recent(ctx, limit)
}

// ResetStats zeroes accounting for the given scope without touching the
// registry or role bindings. Scopes: all, adapters, roles, conversations.
func (d *Dispatcher) ResetStats(ctx context.Context, scope string) error {
	switch scope {
	case "all":
		d.resetAdapterStats()
		d.resetRoleStats()
		d.global.reset()
		return d.clearHistory(ctx)
	case "adapters":
		d.resetAdapterStats()
	case "roles":
		d.resetRoleStats()
	case "conversations":
		return d.clearHistory(ctx)
	default:
		return fmt.Errorf("unknown reset scope %q", scope)
	}
	return nil
}

func (d *Dispatcher) resetAdapterStats() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, rec := range d.adapters {
		rec.stats.reset()
	}
}

func (d *Dispatcher) resetRoleStats() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.roleStats {
		s.reset()
	}
}

func (d *Dispatcher) clearHistory(ctx context.Context) error {
	if d.history == nil {
		return nil
	}
	if err := d.history.Clear(ctx); err != nil {
		return fmt.Errorf("%w: clear: %v", domain.ErrHistoryStore, err)
	}
	return nil
}

package trigger

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MikeDominic92/okta-sso-hub/config"
	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/event"
	"github.com/MikeDominic92/okta-sso-hub/executor"
	"github.com/MikeDominic92/okta-sso-hub/metric"
	"github.com/MikeDominic92/okta-sso-hub/pkg/buffer"
)

const defaultHistorySize = 1000

// FlowDispatcher is the executor surface the router needs: dispatch one
// flow and report its result.
type FlowDispatcher interface {
	ExecuteFlow(ctx context.Context, flowID string, input map[string]any, opts ...executor.ExecOption) (*executor.Result, error)
}

var _ FlowDispatcher = (*executor.Executor)(nil)

// Router matches incoming events against the rule set and dispatches a
// flow execution per matching rule. It keeps a bounded event history
// and the event-to-execution correlation map.
type Router struct {
	dispatcher FlowDispatcher

	mu    sync.RWMutex
	rules []Rule

	history buffer.History[*event.Event]

	corrMu      sync.Mutex
	correlation map[string][]string

	logger  *slog.Logger
	metrics *metric.Metrics
}

// Option configures a Router.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetricsRegistry wires event, rule-match, and history-size series
// into the shared registry.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// New builds a Router on top of a flow dispatcher. The built-in rule
// set is installed when cfg.DefaultRules is set; cfg.RulesFile, when
// present, is loaded and appended after the defaults.
func New(dispatcher FlowDispatcher, cfg config.TriggerConfig, opts ...Option) (*Router, error) {
	if dispatcher == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "trigger", "New", "flow dispatcher is required")
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	historySize := cfg.HistorySize
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	history, err := buffer.NewRing[*event.Event](historySize)
	if err != nil {
		return nil, errors.Wrap(err, "trigger", "New", "create event history")
	}

	var metrics *metric.Metrics
	if o.registry != nil {
		metrics = o.registry.CoreMetrics()
	}

	r := &Router{
		dispatcher:  dispatcher,
		history:     history,
		correlation: make(map[string][]string),
		logger:      o.logger,
		metrics:     metrics,
	}

	if cfg.DefaultRules {
		for _, rule := range DefaultRules() {
			if err := r.AddRule(rule); err != nil {
				return nil, err
			}
		}
	}
	if cfg.RulesFile != "" {
		rules, err := LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		for _, rule := range rules {
			if err := r.AddRule(rule); err != nil {
				return nil, err
			}
		}
	}

	r.logger.Info("trigger router initialized", "rules", len(r.rules))
	return r, nil
}

// AddRule validates and appends a rule. Duplicate rule IDs are
// tolerated: both rules stay active and both fire on a match, so the
// duplicate is only logged.
func (r *Router) AddRule(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	for _, existing := range r.rules {
		if existing.ID == rule.ID {
			r.logger.Warn("duplicate rule id", "rule_id", rule.ID)
			break
		}
	}
	r.rules = append(r.rules, rule)
	r.mu.Unlock()

	r.logger.Info("added trigger rule", "rule_id", rule.ID, "flow_id", rule.FlowID)
	return nil
}

// RemoveRule removes every rule with the given ID and reports whether
// any were removed.
func (r *Router) RemoveRule(ruleID string) bool {
	r.mu.Lock()
	filtered := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if rule.ID != ruleID {
			filtered = append(filtered, rule)
		}
	}
	removed := len(filtered) < len(r.rules)
	r.rules = filtered
	r.mu.Unlock()

	if removed {
		r.logger.Info("removed trigger rule", "rule_id", ruleID)
	}
	return removed
}

// Rules returns a snapshot of the rule set in insertion order.
func (r *Router) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Rule returns the first rule with the given ID.
func (r *Router) Rule(ruleID string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rule := range r.rules {
		if rule.ID == ruleID {
			return rule, true
		}
	}
	return Rule{}, false
}

// SetEnabled flips activation on every rule with the given ID and
// reports whether any matched.
func (r *Router) SetEnabled(ruleID string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := false
	for i := range r.rules {
		if r.rules[i].ID == ruleID {
			r.rules[i].Enabled = enabled
			changed = true
		}
	}
	return changed
}

// ProcessEvent routes one event: append it to history, dispatch a flow
// for every matching enabled rule in insertion order, and record the
// event-to-execution correlation.
//
// A single rule's dispatch failure is logged and skipped; it never
// aborts the remaining matches. The returned results are terminal when
// the dispatcher waits for completion (the default).
func (r *Router) ProcessEvent(ctx context.Context, e *event.Event) ([]*executor.Result, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	r.logger.Info("processing event", "event_id", e.ID, "event_type", e.Type, "subject", e.Subject.Email)
	if r.metrics != nil {
		r.metrics.RecordEvent(string(e.Type))
	}

	r.history.Append(e)
	if r.metrics != nil {
		r.metrics.RecordEventHistorySize(r.history.Len())
	}

	matching := r.matchingRules(e)
	if len(matching) == 0 {
		r.logger.Info("no matching rules", "event_id", e.ID, "event_type", e.Type)
		return nil, nil
	}

	results := make([]*executor.Result, 0, len(matching))
	executionIDs := make([]string, 0, len(matching))
	for _, rule := range matching {
		if r.metrics != nil {
			r.metrics.RecordRuleMatch(rule.ID)
		}

		result, err := r.dispatcher.ExecuteFlow(ctx, rule.FlowID, rule.input(e))
		if err != nil {
			r.logger.Error("failed to trigger flow",
				"rule_id", rule.ID, "flow_id", rule.FlowID, "event_id", e.ID, "error", err)
			continue
		}

		results = append(results, result)
		executionIDs = append(executionIDs, result.ExecutionID)
		r.logger.Info("triggered flow",
			"rule_id", rule.ID, "flow_id", rule.FlowID,
			"execution_id", result.ExecutionID, "event_id", e.ID)
	}

	if len(executionIDs) > 0 {
		r.corrMu.Lock()
		r.correlation[e.ID] = executionIDs
		r.corrMu.Unlock()
	}
	return results, nil
}

// ProcessEventsBatch routes a batch of events. Results line up with the
// input by index. A failure processing one event leaves an empty slot
// and never aborts the rest; parallel mode gives no ordering guarantee
// between events, though each event still dispatches its own rules in
// insertion order.
func (r *Router) ProcessEventsBatch(ctx context.Context, events []*event.Event, parallel bool) [][]*executor.Result {
	results := make([][]*executor.Result, len(events))
	if len(events) == 0 {
		return results
	}

	r.logger.Info("processing event batch", "count", len(events), "parallel", parallel)

	if parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, e := range events {
			i, e := i, e
			g.Go(func() error {
				results[i] = r.processBatchItem(gctx, e)
				return nil
			})
		}
		_ = g.Wait()
		return results
	}

	for i, e := range events {
		results[i] = r.processBatchItem(ctx, e)
	}
	return results
}

func (r *Router) processBatchItem(ctx context.Context, e *event.Event) []*executor.Result {
	results, err := r.ProcessEvent(ctx, e)
	if err != nil {
		r.logger.Error("failed to process event", "event_id", eventID(e), "error", err)
		return nil
	}
	return results
}

// SimulateEvent constructs a synthetic event and routes it like a live
// one. The synthetic event lands in history and correlation exactly as
// an ingested event would.
func (r *Router) SimulateEvent(ctx context.Context, eventType event.Type, opts ...event.Option) (*event.Event, []*executor.Result, error) {
	e := event.Simulate(eventType, opts...)
	r.logger.Info("simulating event", "event_id", e.ID, "event_type", eventType)

	results, err := r.ProcessEvent(ctx, e)
	if err != nil {
		return nil, nil, err
	}
	return e, results, nil
}

// EventFilter narrows EventHistory reads. Zero values match everything;
// Limit keeps only the most recent N after filtering.
type EventFilter struct {
	Type      event.Type
	SubjectID string
	Limit     int
}

// EventHistory returns processed events matching the filter, oldest
// first.
func (r *Router) EventHistory(filter EventFilter) []*event.Event {
	events := r.history.Filter(func(e *event.Event) bool {
		if filter.Type != "" && e.Type != filter.Type {
			return false
		}
		if filter.SubjectID != "" && e.Subject.ID != filter.SubjectID {
			return false
		}
		return true
	})
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[len(events)-filter.Limit:]
	}
	return events
}

// ExecutionsForEvent returns the execution IDs dispatched for an event,
// in dispatch order. Unknown event IDs return nothing.
func (r *Router) ExecutionsForEvent(eventID string) []string {
	r.corrMu.Lock()
	defer r.corrMu.Unlock()
	ids, ok := r.correlation[eventID]
	if !ok {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Stats is a point-in-time router snapshot for health and gateway
// reporting.
type Stats struct {
	Rules            int `json:"rules"`
	EnabledRules     int `json:"enabled_rules"`
	EventsRetained   int `json:"events_retained"`
	CorrelatedEvents int `json:"correlated_events"`
}

// Stats returns a snapshot of router state.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	rules := len(r.rules)
	enabled := 0
	for _, rule := range r.rules {
		if rule.Enabled {
			enabled++
		}
	}
	r.mu.RUnlock()

	r.corrMu.Lock()
	correlated := len(r.correlation)
	r.corrMu.Unlock()

	return Stats{
		Rules:            rules,
		EnabledRules:     enabled,
		EventsRetained:   r.history.Len(),
		CorrelatedEvents: correlated,
	}
}

// matchingRules snapshots the rule set and filters it against the
// event. Predicates run outside the rule lock.
func (r *Router) matchingRules(e *event.Event) []Rule {
	rules := r.Rules()
	matching := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.matches(e) {
			matching = append(matching, rule)
		}
	}
	return matching
}

func eventID(e *event.Event) string {
	if e == nil {
		return ""
	}
	return e.ID
}

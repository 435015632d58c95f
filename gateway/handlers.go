package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/event"
	"github.com/MikeDominic92/okta-sso-hub/executor"
	"github.com/MikeDominic92/okta-sso-hub/trigger"
	"github.com/MikeDominic92/okta-sso-hub/webhook"
)

type eventResponse struct {
	Event   *event.Event       `json:"event"`
	Results []*executor.Result `json:"results"`
	Matched int                `json:"matched"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.ingestEvent(w, r)
	case http.MethodGet:
		s.listEvents(w, r)
	default:
		s.methodNotAllowed(w, r)
	}
}

// ingestEvent accepts a full event document, routes it, and reports the
// dispatch results. The same fan-out as the NATS path applies: webhook
// subscribers and the websocket feed both see the event.
func (s *Server) ingestEvent(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	e, err := event.Decode(data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	results, err := s.deps.Router.ProcessEvent(r.Context(), e)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.publishProcessed(e, results)
	writeJSON(w, http.StatusOK, eventResponse{
		Event:   e,
		Results: nonNilResults(results),
		Matched: len(results),
	})
}

type simulateRequest struct {
	Type         string         `json:"event_type"`
	SubjectID    string         `json:"subject_id,omitempty"`
	SubjectEmail string         `json:"subject_email,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}

	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req simulateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.writeError(w, r, errors.WrapInvalid(err, "gateway", "handleSimulate", "decode request"))
		return
	}

	t := event.Type(req.Type)
	if !t.Valid() {
		s.writeError(w, r, errors.WrapInvalid(
			fmt.Errorf("unknown event type %q", req.Type),
			"gateway", "handleSimulate", "validate request"))
		return
	}

	var opts []event.Option
	if req.SubjectID != "" || req.SubjectEmail != "" {
		opts = append(opts, event.WithSubject(req.SubjectID, req.SubjectEmail))
	}
	if len(req.Data) > 0 {
		opts = append(opts, event.WithData(req.Data))
	}

	e, results, err := s.deps.Router.SimulateEvent(r.Context(), t, opts...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.publishProcessed(e, results)
	writeJSON(w, http.StatusOK, eventResponse{
		Event:   e,
		Results: nonNilResults(results),
		Matched: len(results),
	})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := trigger.EventFilter{SubjectID: q.Get("subject")}
	if raw := q.Get("type"); raw != "" {
		t := event.Type(raw)
		if !t.Valid() {
			s.writeError(w, r, errors.WrapInvalid(
				fmt.Errorf("unknown event type %q", raw),
				"gateway", "listEvents", "validate query"))
			return
		}
		filter.Type = t
	}

	limit, err := queryLimit(q.Get("limit"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter.Limit = limit

	events := s.deps.Router.EventHistory(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rules := s.deps.Router.Rules()
		writeJSON(w, http.StatusOK, map[string]any{
			"rules": rules,
			"count": len(rules),
		})
	case http.MethodPost:
		s.createRule(w, r)
	default:
		s.methodNotAllowed(w, r)
	}
}

// createRule accepts the declarative rule form used by rule files and
// installs it on the router.
func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var spec trigger.RuleSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		s.writeError(w, r, errors.WrapInvalid(err, "gateway", "createRule", "decode request"))
		return
	}

	rule, err := spec.Compile()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Router.AddRule(rule); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"rule": rule})
}

func (s *Server) handleRuleByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/rules/"), "/")
	id := parts[0]
	if id == "" {
		s.notFound(w, r)
		return
	}

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			rule, ok := s.deps.Router.Rule(id)
			if !ok {
				s.writeError(w, r, fmt.Errorf("%w: %s", errors.ErrRuleNotFound, id))
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"rule": rule})
		case http.MethodDelete:
			if !s.deps.Router.RemoveRule(id) {
				s.writeError(w, r, fmt.Errorf("%w: %s", errors.ErrRuleNotFound, id))
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"removed": id})
		default:
			s.methodNotAllowed(w, r)
		}
	case len(parts) == 2 && (parts[1] == "enable" || parts[1] == "disable"):
		if r.Method != http.MethodPost {
			s.methodNotAllowed(w, r)
			return
		}
		enabled := parts[1] == "enable"
		if !s.deps.Router.SetEnabled(id, enabled) {
			s.writeError(w, r, fmt.Errorf("%w: %s", errors.ErrRuleNotFound, id))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rule_id": id, "enabled": enabled})
	default:
		s.notFound(w, r)
	}
}

func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	q := r.URL.Query()

	filter := executor.HistoryFilter{FlowID: q.Get("flow_id")}
	if raw := q.Get("status"); raw != "" {
		st := executor.Status(raw)
		switch st {
		case executor.StatusPending, executor.StatusRunning, executor.StatusSuccess,
			executor.StatusFailed, executor.StatusCancelled:
			filter.Status = st
		default:
			s.writeError(w, r, errors.WrapInvalid(
				fmt.Errorf("unknown execution status %q", raw),
				"gateway", "handleExecutions", "validate query"))
			return
		}
	}

	limit, err := queryLimit(q.Get("limit"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter.Limit = limit

	executions := s.deps.Executor.History(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"executions": executions,
		"count":      len(executions),
	})
}

func (s *Server) handleExecutionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/executions/")
	if id == "" || strings.Contains(id, "/") {
		s.notFound(w, r)
		return
	}

	res, err := s.deps.Executor.ExecutionStatus(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFlows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}

	flows, err := s.deps.Provider.ListFlows(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"flows": flows,
		"count": len(flows),
	})
}

type executeRequest struct {
	Input          map[string]any `json:"input,omitempty"`
	Wait           *bool          `json:"wait,omitempty"`
	TimeoutSeconds float64        `json:"timeout_seconds,omitempty"`
}

func (s *Server) handleFlowExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/flows/")
	flowID, ok := strings.CutSuffix(rest, "/execute")
	if !ok || flowID == "" || strings.Contains(flowID, "/") {
		s.notFound(w, r)
		return
	}

	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req executeRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			s.writeError(w, r, errors.WrapInvalid(err, "gateway", "handleFlowExecute", "decode request"))
			return
		}
	}

	var opts []executor.ExecOption
	if req.Wait != nil {
		opts = append(opts, executor.WithWait(*req.Wait))
	}
	if req.TimeoutSeconds > 0 {
		opts = append(opts, executor.WithTimeout(time.Duration(req.TimeoutSeconds*float64(time.Second))))
	}

	res, err := s.deps.Executor.ExecuteFlow(r.Context(), flowID, req.Input, opts...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type subscriptionRequest struct {
	URL    string       `json:"url"`
	Events []event.Type `json:"events,omitempty"`
	Secret string       `json:"secret,omitempty"`
}

func (s *Server) handleWebhooks(w http.ResponseWriter, r *http.Request) {
	if s.deps.Notifier == nil {
		s.webhooksDisabled(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		subs := s.deps.Notifier.Subscriptions()
		writeJSON(w, http.StatusOK, map[string]any{
			"subscriptions": subs,
			"count":         len(subs),
		})
	case http.MethodPost:
		data, err := readBody(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req subscriptionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.writeError(w, r, errors.WrapInvalid(err, "gateway", "handleWebhooks", "decode request"))
			return
		}

		created, err := s.deps.Notifier.Subscribe(webhook.Subscription{
			URL:    req.URL,
			Events: req.Events,
			Secret: req.Secret,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		s.methodNotAllowed(w, r)
	}
}

func (s *Server) handleWebhookByID(w http.ResponseWriter, r *http.Request) {
	if s.deps.Notifier == nil {
		s.webhooksDisabled(w)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/webhooks/"), "/")
	id := parts[0]
	if id == "" {
		s.notFound(w, r)
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			s.methodNotAllowed(w, r)
			return
		}
		if !s.deps.Notifier.Unsubscribe(id) {
			s.writeError(w, r, fmt.Errorf("%w: %s", errors.ErrSubscriptionNotFound, id))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"removed": id})
	case len(parts) == 2 && (parts[1] == "enable" || parts[1] == "disable"):
		if r.Method != http.MethodPost {
			s.methodNotAllowed(w, r)
			return
		}
		active := parts[1] == "enable"
		if !s.deps.Notifier.SetActive(id, active) {
			s.writeError(w, r, fmt.Errorf("%w: %s", errors.ErrSubscriptionNotFound, id))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subscription_id": id, "active": active})
	default:
		s.notFound(w, r)
	}
}

func (s *Server) webhooksDisabled(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, errorBody{
		Error:  "webhook notifications are not enabled",
		Status: http.StatusServiceUnavailable,
	})
}

type gatewayStats struct {
	WSClients     int     `json:"ws_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type statsResponse struct {
	Router   trigger.Stats  `json:"router"`
	Executor executor.Stats `json:"executor"`
	Webhooks *webhook.Stats `json:"webhooks,omitempty"`
	Gateway  gatewayStats   `json:"gateway"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}

	resp := statsResponse{
		Router:   s.deps.Router.Stats(),
		Executor: s.deps.Executor.Stats(),
		Gateway: gatewayStats{
			WSClients:     s.hub.ClientCount(),
			UptimeSeconds: s.uptime().Seconds(),
		},
	}
	if s.deps.Notifier != nil {
		stats := s.deps.Notifier.Stats()
		resp.Webhooks = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealthz reports aggregated system health when a monitor is
// wired, otherwise the gateway's own component health.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}

	if s.deps.Monitor != nil {
		s.deps.Monitor.Handler("ssohub").ServeHTTP(w, r)
		return
	}

	status := s.Health()
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// publishProcessed mirrors the NATS ingest fan-out for events routed
// through the REST surface: webhook subscribers and the websocket feed.
func (s *Server) publishProcessed(e *event.Event, results []*executor.Result) {
	if s.deps.Notifier != nil {
		s.deps.Notifier.Notify(e)
	}
	s.hub.BroadcastEvent(e, results)
}

func nonNilResults(results []*executor.Result) []*executor.Result {
	if results == nil {
		return []*executor.Result{}
	}
	return results
}

func queryLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.WrapInvalid(
			fmt.Errorf("limit must be a non-negative integer, got %q", raw),
			"gateway", "queryLimit", "validate query")
	}
	return n, nil
}

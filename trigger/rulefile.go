package trigger

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/event"
)

// maxRuleFileSize bounds rule file reads.
const maxRuleFileSize = 1 << 20

type ruleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is the declarative form of a rule, used by YAML rule files
// and by the gateway's rule-creation endpoint. When holds data-attribute
// equality conditions; Input maps flow input fields to event field
// selectors (event.id, event.type, timestamp, subject.id,
// subject.email, client.ip, client.user_agent, data.<key>). Enabled
// defaults to true when omitted.
type RuleSpec struct {
	ID          string            `yaml:"id" json:"rule_id"`
	Name        string            `yaml:"name" json:"name,omitempty"`
	Description string            `yaml:"description" json:"description,omitempty"`
	FlowID      string            `yaml:"flow_id" json:"flow_id"`
	EventTypes  []string          `yaml:"event_types" json:"event_types"`
	When        map[string]any    `yaml:"when" json:"when,omitempty"`
	Input       map[string]string `yaml:"input" json:"input,omitempty"`
	Enabled     *bool             `yaml:"enabled" json:"enabled,omitempty"`
}

// Compile turns the declarative spec into a routable rule. Event types
// must belong to the known taxonomy; input selectors are resolved here
// so a typo fails at load time, not per event.
func (s RuleSpec) Compile() (Rule, error) {
	types := make([]event.Type, 0, len(s.EventTypes))
	for _, raw := range s.EventTypes {
		t := event.Type(raw)
		if !t.Valid() {
			return Rule{}, errors.WrapInvalid(
				fmt.Errorf("rule '%s' references unknown event type %q", s.ID, raw),
				"trigger", "Compile", "validation failed")
		}
		types = append(types, t)
	}

	var predicate Predicate
	if len(s.When) > 0 {
		keys := make([]string, 0, len(s.When))
		for key := range s.When {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		preds := make([]Predicate, 0, len(keys))
		for _, key := range keys {
			preds = append(preds, DataPredicate(key, s.When[key]))
		}
		predicate = And(preds...)
	}

	var mapper InputMapper
	if len(s.Input) > 0 {
		fields := make(map[string]fieldResolver, len(s.Input))
		for name, selector := range s.Input {
			resolve, err := compileSelector(selector)
			if err != nil {
				return Rule{}, errors.WrapInvalid(
					fmt.Errorf("rule '%s' input field %q: %w", s.ID, name, err),
					"trigger", "Compile", "validation failed")
			}
			fields[name] = resolve
		}
		mapper = InputMapperFunc(func(e *event.Event) map[string]any {
			input := make(map[string]any, len(fields))
			for name, resolve := range fields {
				input[name] = resolve(e)
			}
			return input
		})
	}

	enabled := true
	if s.Enabled != nil {
		enabled = *s.Enabled
	}

	rule := Rule{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		EventTypes:  types,
		FlowID:      s.FlowID,
		Predicate:   predicate,
		Mapper:      mapper,
		Enabled:     enabled,
	}
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

type fieldResolver func(*event.Event) any

func compileSelector(selector string) (fieldResolver, error) {
	switch selector {
	case "event.id":
		return func(e *event.Event) any { return e.ID }, nil
	case "event.type":
		return func(e *event.Event) any { return string(e.Type) }, nil
	case "timestamp":
		return func(e *event.Event) any { return e.Timestamp.Format(time.RFC3339) }, nil
	case "subject.id":
		return func(e *event.Event) any { return e.Subject.ID }, nil
	case "subject.email":
		return func(e *event.Event) any { return e.Subject.Email }, nil
	case "client.ip":
		return func(e *event.Event) any { return e.Client.IPAddress }, nil
	case "client.user_agent":
		return func(e *event.Event) any { return e.Client.UserAgent }, nil
	}
	if key, ok := strings.CutPrefix(selector, "data."); ok && key != "" {
		return func(e *event.Event) any {
			if e.Data == nil {
				return nil
			}
			return e.Data[key]
		}, nil
	}
	return nil, fmt.Errorf("unknown event field selector %q", selector)
}

// LoadRules reads and compiles declarative rules from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "trigger", "LoadRules", "stat rules file")
	}
	if info.Size() > maxRuleFileSize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("rules file too large: %d > %d bytes", info.Size(), maxRuleFileSize),
			"trigger", "LoadRules", "read rules file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "trigger", "LoadRules", "read rules file")
	}
	return ParseRules(data)
}

// ParseRules compiles declarative rules from YAML bytes.
func ParseRules(data []byte) ([]Rule, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"trigger", "ParseRules", "parse rules file")
	}

	rules := make([]Rule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		rule, err := spec.Compile()
		if err != nil {
			return nil, errors.Wrap(err, "trigger", "ParseRules", fmt.Sprintf("compile rule %d", i))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

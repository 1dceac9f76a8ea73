package segment

import (
	"fmt"
	"strings"
)

// RuleConfig is the data form of one boundary rule, as read from configuration.
type RuleConfig struct {
	Kind    string
	Pattern string
}

// Factory compiles a RuleConfig into a Rule.
type Factory func(cfg RuleConfig) (Rule, error)

// Registry keeps a mapping from rule kinds to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry returns a registry with every built-in rule kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(string(KindNumbered), newNumberedRule)
	r.Register(string(KindBullet), newBulletRule)
	r.Register(string(KindHeadline), newHeadlineRule)
	r.Register(string(KindSeparator), newSeparatorRule)
	r.Register(string(KindSection), newSectionRule)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(kind string, f Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[strings.ToLower(kind)] = f
}

// Build compiles cfg with the factory registered for its kind.
func (r *Registry) Build(cfg RuleConfig) (Rule, error) {
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(cfg.Kind))]
	if !ok {
		return nil, fmt.Errorf("rule kind %q is not registered", cfg.Kind)
	}
	rule, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("build %s rule: %w", cfg.Kind, err)
	}
	return rule, nil
}

package selector

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrDuplicateName is returned when a name is registered twice.
	ErrDuplicateName = errors.New("duplicate selector name")

	// ErrUnknownSelector is returned when resolving a name that was never registered.
	ErrUnknownSelector = errors.New("unknown selector")
)

// Strategy is how a selector value locates an element.
type Strategy string

const (
	StrategyCSS       Strategy = "css"
	StrategyText      Strategy = "text"
	StrategyAttribute Strategy = "attribute"
	StrategyRole      Strategy = "role"
)

// ValidStrategies lists the accepted strategies.
var ValidStrategies = []Strategy{StrategyCSS, StrategyText, StrategyAttribute, StrategyRole}

// ParseStrategy converts a scenario string into a Strategy.
// An empty string defaults to css.
func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return StrategyCSS, nil
	}
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ValidStrategies {
		if v == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid strategy %q: must be one of %v", s, ValidStrategies)
}

// Selector is a named strategy for locating a UI element.
type Selector struct {
	Name     string
	Strategy Strategy
	Value    string
}

// String renders the selector as strategy=value. Used as a stable key by
// in-memory pages and in failure messages.
func (s Selector) String() string {
	return string(s.Strategy) + "=" + s.Value
}

// CSS returns the CSS form of css and attribute selectors.
// Text and role selectors have no CSS form and return false.
func (s Selector) CSS() (string, bool) {
	switch s.Strategy {
	case StrategyCSS:
		return s.Value, true
	case StrategyAttribute:
		attr, val, ok := s.AttributePair()
		if !ok {
			return "[" + s.Value + "]", true
		}
		return "[" + attr + "=" + strconv.Quote(val) + "]", true
	}
	return "", false
}

// AttributePair splits an attribute selector value "attr=value".
// A bare attribute name ("disabled") returns ok=false.
func (s Selector) AttributePair() (attr, value string, ok bool) {
	attr, value, ok = strings.Cut(s.Value, "=")
	if !ok {
		return strings.TrimSpace(s.Value), "", false
	}
	return strings.TrimSpace(attr), strings.Trim(strings.TrimSpace(value), `"'`), true
}

// Role splits a role selector value "role" or "role:accessible name".
func (s Selector) Role() (role, name string) {
	role, name, _ = strings.Cut(s.Value, ":")
	return strings.TrimSpace(role), strings.TrimSpace(name)
}

// Registry holds the selectors of one scenario.
// It is not safe for concurrent mutation; scenarios register everything
// during setup and only resolve afterwards.
type Registry struct {
	byName map[string]Selector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Selector)}
}

// Register adds a selector. Fails with ErrDuplicateName if name is taken.
func (r *Registry) Register(name string, strategy Strategy, value string) error {
	if name == "" {
		return fmt.Errorf("selector name is required")
	}
	if value == "" {
		return fmt.Errorf("selector %q: value is required", name)
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return fmt.Errorf("selector %q: %w", name, err)
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if strategy == "" {
		strategy = StrategyCSS
	}
	r.byName[name] = Selector{Name: name, Strategy: strategy, Value: value}
	return nil
}

// Resolve returns the selector registered under name.
func (r *Registry) Resolve(name string) (Selector, error) {
	sel, ok := r.byName[name]
	if !ok {
		return Selector{}, fmt.Errorf("%w: %q", ErrUnknownSelector, name)
	}
	return sel, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered selectors.
func (r *Registry) Len() int {
	return len(r.byName)
}

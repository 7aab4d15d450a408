package rules

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"gallery-router/internal/common/errors"
)

// Dispatcher matches incoming gallery paths against the published routing
// table. The table is swapped atomically on publish; matching holds only a
// read lock so request resolution never blocks a concurrent publish for
// long.
type Dispatcher struct {
	mu       sync.RWMutex
	table    *Table
	compiled []compiledRule
	registry *Registry
}

type compiledRule struct {
	rule RewriteRule
	re   *regexp.Regexp
}

// NewDispatcher creates an empty dispatcher; it matches nothing until a
// table is published.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Publish compiles and installs a routing table. Patterns are recompiled
// here because tables round-trip through JSON when published to the shared
// store. A table with any invalid pattern is rejected whole.
func (d *Dispatcher) Publish(table *Table) error {
	compiled := make([]compiledRule, 0, len(table.Rules))
	for _, rule := range table.Rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return errors.InternalError("invalid rewrite pattern: "+rule.Pattern, err)
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}

	d.mu.Lock()
	d.table = table
	d.compiled = compiled
	d.mu.Unlock()
	return nil
}

// Table returns the currently published table, or nil before first publish.
func (d *Dispatcher) Table() *Table {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.table
}

// Match resolves a request path against the published rules. The first
// matching rule in priority order wins. Returns the extracted query
// variables (filtered through the registry) and whether anything matched.
func (d *Dispatcher) Match(path string) (map[string]string, bool) {
	path = strings.Trim(path, "/")

	d.mu.RLock()
	compiled := d.compiled
	d.mu.RUnlock()

	for _, cr := range compiled {
		match := cr.re.FindStringSubmatchIndex(path)
		if match == nil {
			continue
		}

		expanded := cr.re.ExpandString(nil, cr.rule.Template, path, match)
		return d.parseTemplate(string(expanded)), true
	}

	return nil, false
}

// parseTemplate converts an expanded query-string template into a variable
// map, dropping anything the registry does not declare.
func (d *Dispatcher) parseTemplate(expanded string) map[string]string {
	vars := make(map[string]string)

	values, err := url.ParseQuery(expanded)
	if err != nil {
		return vars
	}

	for name := range values {
		if d.registry.Accepts(name) {
			vars[name] = values.Get(name)
		}
	}
	return vars
}

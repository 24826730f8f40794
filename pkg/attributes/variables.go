package attributes

import (
	"context"
	"regexp"
	"strings"

	"github.com/arthur-debert/solodeploy/pkg/errors"
)

// Provider computes a deferred variable for one host
type Provider func(ctx context.Context, host string) (any, error)

// Variables hold the baseline of every host document. Concrete values are
// always eligible; deferred providers run only for keys on the include list.
type Variables struct {
	order     []string
	values    map[string]any
	providers map[string]Provider
}

// NewVariables returns an empty set
func NewVariables() *Variables {
	return &Variables{values: map[string]any{}, providers: map[string]Provider{}}
}

// Set stores a concrete value, replacing any provider under key
func (v *Variables) Set(key string, value any) {
	v.remember(key)
	delete(v.providers, key)
	v.values[key] = value
}

// Defer registers a provider under key, replacing any concrete value
func (v *Variables) Defer(key string, p Provider) {
	v.remember(key)
	delete(v.values, key)
	v.providers[key] = p
}

// SetAll stores every entry of m as a concrete value, in key order
func (v *Variables) SetAll(m map[string]any) {
	for _, k := range sortedKeys(m) {
		v.Set(k, m[k])
	}
}

// Deferred reports whether key is backed by a provider
func (v *Variables) Deferred(key string) bool {
	_, ok := v.providers[key]
	return ok
}

func (v *Variables) remember(key string) {
	if _, ok := v.values[key]; ok {
		return
	}
	if _, ok := v.providers[key]; ok {
		return
	}
	v.order = append(v.order, key)
}

// Baseline returns the variables eligible for host under filter
func (v *Variables) Baseline(ctx context.Context, host string, filter *Filter) (*Document, error) {
	doc := NewDocument()
	if v == nil {
		return doc, nil
	}
	for _, key := range v.order {
		if filter.Excluded(key) {
			continue
		}
		if value, ok := v.values[key]; ok {
			doc.Set(key, normalize(value))
			continue
		}
		provider := v.providers[key]
		if !filter.Included(key) {
			continue
		}
		value, err := provider(ctx, host)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrAttributes, "failed to resolve variable %s", key).
				WithDetail("host", host).
				WithDetail("variable", key)
		}
		doc.Set(key, normalize(value))
	}
	return doc, nil
}

// Filter decides which variables reach the baseline. Patterns are exact
// keys or regular expressions between slashes. Exclusion wins.
type Filter struct {
	include []matcher
	exclude []matcher
}

type matcher struct {
	exact string
	re    *regexp.Regexp
}

func (m matcher) match(key string) bool {
	if m.re != nil {
		return m.re.MatchString(key)
	}
	return m.exact == key
}

// NewFilter compiles include and exclude patterns
func NewFilter(include, exclude []string) (*Filter, error) {
	f := &Filter{}
	var err error
	if f.include, err = compilePatterns(include); err != nil {
		return nil, err
	}
	if f.exclude, err = compilePatterns(exclude); err != nil {
		return nil, err
	}
	return f, nil
}

func compilePatterns(patterns []string) ([]matcher, error) {
	out := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		if len(p) > 1 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
			re, err := regexp.Compile(p[1 : len(p)-1])
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrAttributes, "invalid variable pattern %s", p).
					WithDetail("pattern", p)
			}
			out = append(out, matcher{re: re})
			continue
		}
		out = append(out, matcher{exact: p})
	}
	return out, nil
}

// Excluded reports whether key matches an exclude pattern
func (f *Filter) Excluded(key string) bool {
	if f == nil {
		return false
	}
	for _, m := range f.exclude {
		if m.match(key) {
			return true
		}
	}
	return false
}

// Included reports whether key is allow-listed and not excluded
func (f *Filter) Included(key string) bool {
	if f == nil || f.Excluded(key) {
		return false
	}
	for _, m := range f.include {
		if m.match(key) {
			return true
		}
	}
	return false
}

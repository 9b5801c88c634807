package policy

import (
	"context"
	"errors"
	"path"
	"strings"
)

// Capabilities granted by a rule.
const (
	CapRead  = "read"
	CapWrite = "write"
)

// ErrUnknownPolicy is returned by a PolicyGetter that has no policy by the
// requested name.
var ErrUnknownPolicy = errors.New("unknown policy")

// PathRule lists the capabilities granted on a path pattern.
type PathRule struct {
	Capabilities []string
}

// HasCapability reports whether the rule grants c.
func (r PathRule) HasCapability(c string) bool {
	for _, have := range r.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Policy maps path patterns to rules. Policies are named after roles.
type Policy struct {
	Name  string
	Rules map[string]PathRule
}

// PolicyGetter is the minimal interface the Engine needs to resolve policies.
type PolicyGetter interface {
	GetPolicy(ctx context.Context, name string) (*Policy, error)
}

// Engine evaluates role policies for a request.
type Engine struct {
	store PolicyGetter
}

// NewEngine creates a new policy Engine backed by the given policy source.
func NewEngine(store PolicyGetter) *Engine {
	return &Engine{store: store}
}

// IsAllowed returns true if any of the given policies grant the capability
// on the path.
func (e *Engine) IsAllowed(ctx context.Context, policies []string, capability, reqPath string) bool {
	for _, name := range policies {
		pol, err := e.store.GetPolicy(ctx, name)
		if err != nil || pol == nil {
			continue
		}
		if policyAllows(pol, capability, reqPath) {
			return true
		}
	}
	return false
}

func policyAllows(pol *Policy, capability, reqPath string) bool {
	for pattern, rule := range pol.Rules {
		if matchPath(pattern, reqPath) && rule.HasCapability(capability) {
			return true
		}
	}
	return false
}

// matchPath matches reqPath against a glob pattern:
//   - "api/downloads/*" matches one additional segment
//   - "api/credit/**"   matches any number of segments, including zero
//   - "*"               matches everything
func matchPath(pattern, reqPath string) bool {
	pattern = strings.TrimPrefix(pattern, "/")
	reqPath = strings.Trim(reqPath, "/")

	if pattern == "*" {
		return true
	}

	if strings.Contains(pattern, "**") {
		parts := strings.SplitN(pattern, "**", 2)
		prefix, suffix := parts[0], parts[1]
		if !strings.HasPrefix(reqPath+"/", prefix) {
			return false
		}
		if suffix == "" || suffix == "/" {
			return true
		}
		return strings.HasSuffix(reqPath, strings.TrimPrefix(suffix, "/"))
	}

	matched, err := path.Match(pattern, reqPath)
	if err != nil {
		return false
	}
	return matched
}

// CapabilityFor maps an HTTP method to the capability it needs.
func CapabilityFor(method string) string {
	switch method {
	case "GET", "HEAD", "OPTIONS":
		return CapRead
	default:
		return CapWrite
	}
}

package permissions

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/net/idna"

	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/walletbroker/internal/shared/utils"
)

// AnyCapability grants every capability
const AnyCapability = "*"

// DefaultScheme is assumed for patterns and origins written without one
const DefaultScheme = "https"

// Grant gives an origin pattern a set of capabilities
type Grant struct {
	Origin       string   `yaml:"origin" toml:"origin" json:"origin"`
	Capabilities []string `yaml:"capabilities" toml:"capabilities" json:"capabilities"`
}

type grantsFile struct {
	Grants []Grant `yaml:"grants" toml:"grants"`
}

type rule struct {
	scheme   string
	pattern  string
	withPort bool
	all      bool
	caps     map[string]struct{}
}

// Oracle answers capability checks from a static set of grants
type Oracle struct {
	mu     sync.RWMutex
	rules  []rule
	path   string
	logger *logging.Logger
}

// NewOracle creates an oracle from grants. A nil slice denies everything.
func NewOracle(grants []Grant) (*Oracle, error) {
	rules, err := compile(grants)
	if err != nil {
		return nil, err
	}
	return &Oracle{rules: rules, logger: logging.NewNop()}, nil
}

// Load creates an oracle from a .yaml, .yml or .toml grants file
func Load(path string) (*Oracle, error) {
	grants, err := readGrants(path)
	if err != nil {
		return nil, err
	}
	o, err := NewOracle(grants)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	o.path = path
	return o, nil
}

// WithLogger sets the logger used for reloads
func (o *Oracle) WithLogger(logger *logging.Logger) *Oracle {
	if logger != nil {
		o.logger = logger.Named("permissions")
	}
	return o
}

// Reload re-reads the grants file. On error the current grants stay active.
func (o *Oracle) Reload() error {
	if o.path == "" {
		return nil
	}
	grants, err := readGrants(o.path)
	if err != nil {
		return err
	}
	rules, err := compile(grants)
	if err != nil {
		return fmt.Errorf("%s: %w", o.path, err)
	}

	o.mu.Lock()
	o.rules = rules
	o.mu.Unlock()

	o.logger.Info("Grants reloaded", zap.String("path", o.path), zap.Int("grants", len(rules)))
	return nil
}

// Len returns the number of active grants
func (o *Oracle) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.rules)
}

// HasCapability reports whether origin was granted capability
func (o *Oracle) HasCapability(ctx context.Context, origin, capability string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	scheme := originScheme(origin)
	hostPort := normalizeHost(utils.OriginHost(origin))
	if scheme == "" || hostPort == "" || capability == "" {
		return false, nil
	}
	host := hostPort
	if h, _, err := net.SplitHostPort(hostPort); err == nil {
		host = h
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, r := range o.rules {
		if !doublestar.MatchUnvalidated(r.scheme, scheme) {
			continue
		}
		target := host
		if r.withPort {
			target = hostPort
		}
		if !doublestar.MatchUnvalidated(r.pattern, target) {
			continue
		}
		if r.all {
			return true, nil
		}
		if _, ok := r.caps[capability]; ok {
			return true, nil
		}
	}
	return false, nil
}

func readGrants(path string) ([]Grant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grants: %w", err)
	}

	var file grantsFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported grants format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse grants %s: %w", path, err)
	}
	return file.Grants, nil
}

func compile(grants []Grant) ([]rule, error) {
	rules := make([]rule, 0, len(grants))
	for i, g := range grants {
		scheme, pattern := normalizePattern(g.Origin)
		if pattern == "" {
			return nil, fmt.Errorf("grant %d: empty origin", i)
		}
		if !doublestar.ValidatePattern(scheme) || !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("grant %d: invalid origin pattern %q", i, g.Origin)
		}
		if len(g.Capabilities) == 0 {
			return nil, fmt.Errorf("grant %d: no capabilities for %q", i, g.Origin)
		}

		r := rule{
			scheme:   scheme,
			pattern:  pattern,
			withPort: strings.Contains(pattern, ":"),
			caps:     make(map[string]struct{}, len(g.Capabilities)),
		}
		for _, c := range g.Capabilities {
			c = strings.TrimSpace(c)
			if c == AnyCapability {
				r.all = true
			}
			r.caps[c] = struct{}{}
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// normalizePattern lower-cases a pattern and splits it into its scheme,
// DefaultScheme when absent, and its host pattern with literal labels in
// punycode. Labels holding glob syntax are kept as is.
func normalizePattern(raw string) (string, string) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	scheme := DefaultScheme
	if before, rest, ok := strings.Cut(raw, "://"); ok {
		scheme, raw = before, rest
	}
	raw = strings.TrimSuffix(raw, "/")
	if raw == "" || scheme == "" {
		return scheme, ""
	}

	labels := strings.Split(raw, ".")
	for i, label := range labels {
		if strings.ContainsAny(label, "*?[]{}:\\") {
			continue
		}
		if ascii, err := idna.Lookup.ToASCII(label); err == nil {
			labels[i] = ascii
		}
	}
	return scheme, strings.Join(labels, ".")
}

// originScheme returns the lower-cased scheme of a caller origin. Bare
// hosts get DefaultScheme, as utils.OriginHost treats them.
func originScheme(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ""
	}
	scheme, _, ok := strings.Cut(origin, "://")
	if !ok {
		return DefaultScheme
	}
	return strings.ToLower(scheme)
}

// normalizeHost converts host[:port] to its ASCII form. Hosts idna rejects
// (IP literals) are returned unchanged.
func normalizeHost(hostPort string) string {
	if hostPort == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		host, port = hostPort, ""
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	if port == "" {
		return host
	}
	return net.JoinHostPort(host, port)
}

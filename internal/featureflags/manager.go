// Package featureflags evaluates FEATURE_FLAGS, e.g. "avatar_uploads=on,thread_search=25%".
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flags known to the forum. Unknown names are accepted but nothing reads them.
const (
	AvatarUploads  = "avatar_uploads"
	ThreadSearch   = "thread_search"
	ReportFiling   = "report_filing"
	PasswordResets = "password_resets"
)

// defaults apply when FEATURE_FLAGS does not mention a known flag.
var defaults = map[string]bool{
	AvatarUploads:  true,
	ThreadSearch:   true,
	ReportFiling:   true,
	PasswordResets: true,
}

type rule struct {
	raw     string
	on      bool
	percent int // -1 when the rule is a plain on/off switch
}

// Manager holds parsed flag rules. A nil Manager reports every flag at its default.
type Manager struct {
	rules   map[string]rule
	invalid []string
}

// NewManager parses a comma-separated key=value list. Values are on/off/true/false/1/0 or N%.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule)}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key, value = normalize(key), normalize(value)
		if !ok || key == "" || value == "" {
			m.invalid = append(m.invalid, pair)
			continue
		}
		r, ok := parseRule(value)
		if !ok {
			m.invalid = append(m.invalid, pair)
			continue
		}
		m.rules[key] = r
	}

	return m
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, on: true, percent: -1}, true
	case "off", "false", "0":
		return rule{raw: value, percent: -1}, true
	}
	pctRaw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: min(max(pct, 0), 100)}, true
}

// Enabled returns whether name is on for userID. Percentage rollouts are deterministic per
// user and never include anonymous callers (userID 0) below 100%.
func (m *Manager) Enabled(name string, userID uint) bool {
	name = normalize(name)
	if m == nil {
		return defaults[name]
	}
	r, ok := m.rules[name]
	if !ok {
		return defaults[name]
	}
	if r.percent < 0 {
		return r.on
	}
	switch {
	case r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < r.percent
}

// Raw returns the configured values keyed by flag name.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Invalid lists entries that could not be parsed, in input order.
func (m *Manager) Invalid() []string {
	return append([]string(nil), m.invalid...)
}

// Snapshot evaluates every known and configured flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(defaults)+len(m.rules))
	for name := range defaults {
		out[name] = m.Enabled(name, userID)
	}
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

// Names returns the sorted flag names Snapshot reports.
func (m *Manager) Names() []string {
	snap := m.Snapshot(0)
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}

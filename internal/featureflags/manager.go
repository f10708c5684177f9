// Package featureflags evaluates the FEATURE_FLAGS switches that gate optional subsystems.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Known flags. All default to on; FEATURE_FLAGS can turn them off or roll them out.
const (
	ImageUploads = "image_uploads"
	Realtime     = "realtime"
	Reconcile    = "reconcile"
)

var defaults = map[string]string{
	ImageUploads: "on",
	Realtime:     "on",
	Reconcile:    "on",
}

// Manager holds parsed flag values.
//
// FEATURE_FLAGS is a comma-separated list. An entry is either a bare name
// ("realtime", meaning on) or name=value where value is on/off/true/false/1/0
// or a percentage rollout such as 25%.
type Manager struct {
	flags    map[string]string
	explicit map[string]string
}

// NewManager parses raw on top of the built-in defaults.
func NewManager(raw string) *Manager {
	explicit := make(map[string]string)

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, found := strings.Cut(entry, "=")
		key = normalize(key)
		if !found {
			value = "on"
		}
		value = normalize(value)
		if key == "" || value == "" || strings.ContainsAny(key, " \t") {
			continue
		}
		explicit[key] = value
	}

	flags := make(map[string]string, len(defaults)+len(explicit))
	for k, v := range defaults {
		flags[k] = v
	}
	for k, v := range explicit {
		flags[k] = v
	}
	return &Manager{flags: flags, explicit: explicit}
}

// Enabled reports whether name is on for userID. Unknown flags are off.
// Percentage rollouts need a non-zero userID.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if pctRaw, ok := strings.CutSuffix(value, "%"); ok {
		pct, err := strconv.Atoi(pctRaw)
		if err != nil || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if userID == 0 {
			return false
		}
		return rolloutBucket(name, userID) < pct
	}

	return false
}

// Raw returns a copy of the flags set through configuration, without defaults.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.explicit))
	for k, v := range m.explicit {
		out[k] = v
	}
	return out
}

// Snapshot evaluates every known flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}

package featureflags

import (
	"os"
	"slices"
	"strings"
)

// Flag names a switch set through the environment as FLAG_<NAME>.
type Flag string

// RedactTempPassword omits the plaintext temporary password from invite
// responses. Enable it where invitations are delivered by email.
const RedactTempPassword Flag = "REDACT_TEMP_PASSWORD"

const envPrefix = "FLAG_"

// Set is an immutable snapshot of enabled flags.
type Set struct {
	enabled map[Flag]bool
}

// FromEnv snapshots the process environment.
func FromEnv() *Set {
	return Parse(os.Environ())
}

// Parse reads KEY=value pairs, keeping FLAG_ entries whose value is
// 1/true/yes/on in any case. Anything else leaves the flag off.
func Parse(environ []string) *Set {
	s := &Set{enabled: map[Flag]bool{}}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		name := Flag(strings.ToUpper(strings.TrimPrefix(key, envPrefix)))
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			s.enabled[name] = true
		}
	}
	return s
}

// Enabled is safe on a nil Set, which has every flag off.
func (s *Set) Enabled(f Flag) bool {
	return s != nil && s.enabled[f]
}

// Names lists the enabled flags in sorted order, for startup logging.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.enabled))
	for f := range s.enabled {
		names = append(names, string(f))
	}
	slices.Sort(names)
	return names
}

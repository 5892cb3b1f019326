package config

import (
	"fmt"
	"sort"
	"strings"
)

// MissingEnvError lists required env keys that were empty.
type MissingEnvError struct {
	Keys []string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("missing required env %s", strings.Join(e.Keys, ", "))
}

// RequireNonEmpty checks values keyed by env name and reports every empty
// one at once. It returns nil when all are set.
func RequireNonEmpty(values map[string]string) error {
	var missing []string
	for key, v := range values {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &MissingEnvError{Keys: missing}
}

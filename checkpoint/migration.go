package checkpoint

import "fmt"

// migrationStep upgrades a decoded data map one schema step at a time
// (spec §4.8 "migration chain is applied (one step at a time").
type migrationStep struct {
	from, to string
	apply    func(map[string]any) map[string]any
}

// migrationChain covers the supported schema versions (spec §6: 1.0.0,
// 1.1.0, 1.2.0). 1.0.0 checkpoints predate the artifacts list; 1.1.0
// checkpoints named the configuration block "config".
var migrationChain = []migrationStep{
	{
		from: "1.0.0",
		to:   "1.1.0",
		apply: func(m map[string]any) map[string]any {
			if _, ok := m["artifacts"]; !ok {
				m["artifacts"] = []any{}
			}
			return m
		},
	},
	{
		from: "1.1.0",
		to:   "1.2.0",
		apply: func(m map[string]any) map[string]any {
			if v, ok := m["config"]; ok {
				if _, exists := m["configuration"]; !exists {
					m["configuration"] = v
				}
				delete(m, "config")
			}
			return m
		},
	},
}

// Migrate walks migrationChain from version until it reaches
// CurrentSchemaVersion, applying each step's transform to data in order.
// A missing link in the chain is a migration_failure (spec §4.8).
func Migrate(version string, data map[string]any) (map[string]any, string, error) {
	current := version
	for current != CurrentSchemaVersion {
		step, ok := stepFrom(current)
		if !ok {
			return nil, current, fmt.Errorf("checkpoint: no migration path from schema_version %q", current)
		}
		data = step.apply(data)
		current = step.to
	}
	return data, current, nil
}

func stepFrom(version string) (migrationStep, bool) {
	for _, s := range migrationChain {
		if s.from == version {
			return s, true
		}
	}
	return migrationStep{}, false
}

// migrationPathExists reports whether Migrate can reach CurrentSchemaVersion
// from version, used to set corruption-report severity/recoverability for a
// schema-version mismatch (spec §4.8 "schema mismatch with migration
// available → Medium").
func migrationPathExists(version string) bool {
	if version == CurrentSchemaVersion {
		return true
	}
	current := version
	for i := 0; i < len(migrationChain)+1; i++ {
		step, ok := stepFrom(current)
		if !ok {
			return false
		}
		if step.to == CurrentSchemaVersion {
			return true
		}
		current = step.to
	}
	return false
}

package plan

import (
	"strings"
)

// Level is a risk classification.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// RiskZone binds a path prefix to a risk level and the rule names that
// produced it, grounded on original_source/tests/plugins/policy.rs's
// "zone match beats command-class default" behavior.
type RiskZone struct {
	PathPrefix string
	LevelValue Level
	Rules      []string
}

// RiskMap is an ordered collection of path-prefix zones.
type RiskMap struct {
	Zones []RiskZone
}

// commandClassDefaults maps a command-name suffix to its default risk
// level when no path-prefix zone matches.
var commandClassDefaults = map[string]Level{
	"delete":  LevelHigh,
	"archive": LevelMedium,
	"list":    LevelLow,
}

// EvalRisk classifies cmd acting on path: a path-prefix zone match always
// wins over the command-class default; the longest matching prefix is
// preferred when more than one zone matches.
func EvalRisk(cmd, path string, riskMap RiskMap) (Level, []string) {
	var best *RiskZone
	for i := range riskMap.Zones {
		z := &riskMap.Zones[i]
		if z.PathPrefix == "" || !strings.HasPrefix(path, z.PathPrefix) {
			continue
		}
		if best == nil || len(z.PathPrefix) > len(best.PathPrefix) {
			best = z
		}
	}
	if best != nil {
		return best.LevelValue, best.Rules
	}

	class := commandSuffix(cmd)
	if level, ok := commandClassDefaults[class]; ok {
		return level, []string{"command-class:" + class}
	}
	return LevelLow, []string{"default"}
}

func commandSuffix(cmd string) string {
	if idx := strings.LastIndexByte(cmd, '.'); idx >= 0 {
		return cmd[idx+1:]
	}
	return cmd
}

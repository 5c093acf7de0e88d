// Package risk scores proposed actions on a four-point ordinal scale.
// Assessment is a pure function of the action's kind, target and
// content plus the request's classification tag; it performs no IO and
// never fails.
package risk

import (
	"regexp"
	"strings"

	"intentloop/internal/classify"
)

// Level is an ordinal risk level. Higher values are riskier.
type Level int

const (
	Low Level = iota
	Medium
	High
	Critical
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Weight returns the verification cost weight for the level.
func (l Level) Weight() float64 {
	switch l {
	case Low:
		return 1
	case Medium:
		return 2
	case High:
		return 3
	case Critical:
		return 4
	default:
		return 2
	}
}

// ParseLevel maps a level name to a Level. Unknown names map to Medium,
// the conservative middle.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low
	case "medium":
		return Medium
	case "high":
		return High
	case "critical":
		return Critical
	default:
		return Medium
	}
}

// Assessment is a scored action with the pattern names that fired.
type Assessment struct {
	Level   Level    `json:"level"`
	Factors []string `json:"factors,omitempty"`
}

type pattern struct {
	name string
	re   *regexp.Regexp
}

// Critical patterns: irreversible or system-destroying operations.
var criticalPatterns = []pattern{
	{"recursive_delete", regexp.MustCompile(`\brm\s+(-[a-z]*r[a-z]*f|-[a-z]*f[a-z]*r)\b`)},
	{"disk_overwrite", regexp.MustCompile(`\bdd\s+.*of=/dev/`)},
	{"filesystem_format", regexp.MustCompile(`\bmkfs\b`)},
	{"fork_bomb", regexp.MustCompile(`:\(\)\s*\{.*\|.*&\s*\}`)},
	{"drop_table", regexp.MustCompile(`(?i)\bdrop\s+(table|database)\b`)},
}

// High patterns: privileged, destructive or system-path operations.
var highPatterns = []pattern{
	{"privilege_escalation", regexp.MustCompile(`\bsudo\b|\bdoas\b`)},
	{"world_writable", regexp.MustCompile(`\bchmod\s+(-[a-zA-Z]+\s+)?777\b`)},
	{"ownership_change", regexp.MustCompile(`\bchown\b`)},
	{"system_path", regexp.MustCompile(`(^|[\s"'=])/(etc|boot|usr/bin|usr/sbin|bin|sbin|lib|var/lib)(/|\b)`)},
	{"service_control", regexp.MustCompile(`\bsystemctl\s+(stop|disable|mask|restart)\b`)},
	{"force_flag", regexp.MustCompile(`\s--force\b|\s-f\b`)},
	{"kill_process", regexp.MustCompile(`\bkill(all)?\b`)},
	{"mount_operation", regexp.MustCompile(`\bu?mount\b`)},
	{"curl_pipe_shell", regexp.MustCompile(`\b(curl|wget)\b.*\|\s*(ba)?sh\b`)},
}

// Low patterns: read-only or trivially reversible operations.
var lowPatterns = []pattern{
	{"read_only_command", regexp.MustCompile(`^\s*(ls|cat|grep|head|tail|echo|pwd|date|wc|which)\b`)},
	{"version_query", regexp.MustCompile(`\s--version\b|\s-V\b`)},
	{"git_read", regexp.MustCompile(`\bgit\s+(status|log|diff|show|branch)\b`)},
	{"list_query", regexp.MustCompile(`\bsystemctl\s+(status|list-units)\b`)},
}

// Assess scores an action. Kind is the action kind (write_file,
// run_process, ...), target the file path or command, content the
// payload. The classification tag can raise but never lower the level.
func Assess(kind, target, content string, tag classify.Tag) Assessment {
	haystack := target + "\n" + content
	var factors []string

	level := baseLevel(kind)

	for _, p := range criticalPatterns {
		if p.re.MatchString(haystack) {
			level = Critical
			factors = append(factors, p.name)
		}
	}
	if level < Critical {
		for _, p := range highPatterns {
			if p.re.MatchString(haystack) {
				if level < High {
					level = High
				}
				factors = append(factors, p.name)
			}
		}
	}
	if level == baseLevel(kind) && len(factors) == 0 {
		for _, p := range lowPatterns {
			if p.re.MatchString(target) {
				if level > Low {
					level = Low
				}
				factors = append(factors, p.name)
				break
			}
		}
	}

	// Output bound for a process to execute raises the stakes one step.
	if tag.RequiresElevation() && level < High {
		level++
		factors = append(factors, "process_executes_output")
	}

	return Assessment{Level: level, Factors: factors}
}

// baseLevel is the floor for each action kind before pattern matching.
func baseLevel(kind string) Level {
	switch kind {
	case "run_process":
		return Medium
	case "delete_file":
		return Medium
	case "write_file", "append_file":
		return Low
	case "evaluate_code":
		return Medium
	default:
		return Medium
	}
}

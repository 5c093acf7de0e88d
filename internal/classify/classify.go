// Package classify assigns a three-axis classification tag to a natural
// language request: where the result lands (destination), who reads it
// (consumer), and what is done with it (semantics).
//
// Classification is deterministic keyword matching and never fails; an
// ambiguous request falls back to axis defaults. The tag is advisory:
// it can raise verification strictness but never blocks execution.
package classify

import "strings"

// Destination is where an operation's output lands.
type Destination string

const (
	DestinationStream  Destination = "stream"  // transient output (stdout, logs)
	DestinationFile    Destination = "file"    // persistent file content
	DestinationProcess Destination = "process" // a running process or service
)

// Consumer is who consumes the output.
type Consumer string

const (
	ConsumerHuman   Consumer = "human"
	ConsumerMachine Consumer = "machine"
)

// Semantics is what is done with the output.
type Semantics string

const (
	SemanticsRead      Semantics = "read"      // displayed or stored verbatim
	SemanticsInterpret Semantics = "interpret" // parsed or transformed
	SemanticsExecute   Semantics = "execute"   // run as code or commands
)

// Tag is the full classification of a request.
type Tag struct {
	Destination Destination `json:"destination"`
	Consumer    Consumer    `json:"consumer"`
	Semantics   Semantics   `json:"semantics"`
}

// RequiresElevation reports whether this tag forbids the minimal
// verification strategy. Output that a process will execute is the
// riskiest combination on the taxonomy.
func (t Tag) RequiresElevation() bool {
	return t.Destination == DestinationProcess && t.Semantics == SemanticsExecute
}

// String renders the tag as destination/consumer/semantics.
func (t Tag) String() string {
	return string(t.Destination) + "/" + string(t.Consumer) + "/" + string(t.Semantics)
}

// Keyword tables per axis. First match in table order wins within an
// axis; axes are independent. Precedence across axes when downstream
// components consult the tag is destination > semantics > consumer.
var (
	fileWords = []string{
		"file", "write", "save", "create", "edit", "modify", "patch",
		"append", "config", "script", "document", "delete", "add",
		"insert", "refactor", "rename", "implement", "fix", "update",
		"docstring", "comment", "function", "class",
	}
	processWords = []string{
		"run", "execute", "start", "stop", "restart", "launch", "kill",
		"service", "daemon", "process", "install", "deploy", "compile",
		"build", "test",
	}

	machineWords = []string{
		"json", "yaml", "xml", "csv", "api", "parse", "pipe", "machine",
		"program", "automated", "script",
	}

	executeWords = []string{
		"run", "execute", "launch", "install", "start", "restart",
		"invoke", "apply", "deploy",
	}
	interpretWords = []string{
		"parse", "analyze", "convert", "transform", "extract", "compute",
		"format", "validate", "interpret",
	}
)

// Classify derives a Tag from a request. It is pure and idempotent:
// the same request always yields the same tag.
func Classify(request string) Tag {
	lower := strings.ToLower(request)

	tag := Tag{
		Destination: DestinationStream,
		Consumer:    ConsumerHuman,
		Semantics:   SemanticsRead,
	}

	// Destination: process wins over file when both match, because
	// process-directed output carries the stricter handling.
	if containsAny(lower, processWords) {
		tag.Destination = DestinationProcess
	} else if containsAny(lower, fileWords) {
		tag.Destination = DestinationFile
	}

	if containsAny(lower, executeWords) {
		tag.Semantics = SemanticsExecute
	} else if containsAny(lower, interpretWords) {
		tag.Semantics = SemanticsInterpret
	}

	if containsAny(lower, machineWords) {
		tag.Consumer = ConsumerMachine
	}

	return tag
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if containsWord(s, w) {
			return true
		}
	}
	return false
}

// containsWord matches w on word boundaries so "start" does not match
// "restarting" via substring accident in the wrong direction.
func containsWord(s, w string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], w)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(w)
		beforeOK := start == 0 || !isWordChar(s[start-1])
		afterOK := end == len(s) || !isWordChar(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}

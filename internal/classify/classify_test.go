package classify

import "testing"

func TestClassifyDefaults(t *testing.T) {
	tag := Classify("what is the weather like")
	if tag.Destination != DestinationStream {
		t.Errorf("expected stream destination, got %s", tag.Destination)
	}
	if tag.Consumer != ConsumerHuman {
		t.Errorf("expected human consumer, got %s", tag.Consumer)
	}
	if tag.Semantics != SemanticsRead {
		t.Errorf("expected read semantics, got %s", tag.Semantics)
	}
}

func TestClassifyFileWrite(t *testing.T) {
	tag := Classify("write a config file with the new settings")
	if tag.Destination != DestinationFile {
		t.Errorf("expected file destination, got %s", tag.Destination)
	}
}

func TestClassifyProcessExecute(t *testing.T) {
	tag := Classify("restart the nginx service")
	if tag.Destination != DestinationProcess {
		t.Errorf("expected process destination, got %s", tag.Destination)
	}
	if tag.Semantics != SemanticsExecute {
		t.Errorf("expected execute semantics, got %s", tag.Semantics)
	}
	if !tag.RequiresElevation() {
		t.Error("process+execute should require elevation")
	}
}

func TestClassifyMachineConsumer(t *testing.T) {
	tag := Classify("parse the JSON response and extract fields")
	if tag.Consumer != ConsumerMachine {
		t.Errorf("expected machine consumer, got %s", tag.Consumer)
	}
	if tag.Semantics != SemanticsInterpret {
		t.Errorf("expected interpret semantics, got %s", tag.Semantics)
	}
}

func TestClassifyCodeEdit(t *testing.T) {
	for _, req := range []string{
		"add a docstring to the parse function",
		"fix the off-by-one in the loop",
		"rename the helper to something clearer",
	} {
		if tag := Classify(req); tag.Destination != DestinationFile {
			t.Errorf("%q: expected file destination, got %s", req, tag.Destination)
		}
	}
}

func TestClassifyProcessWinsOverFile(t *testing.T) {
	// Both "file" and "run" appear; process-directed wins.
	tag := Classify("run the script file")
	if tag.Destination != DestinationProcess {
		t.Errorf("expected process destination, got %s", tag.Destination)
	}
}

// Classification is deterministic: the same request always yields the
// same tag.
func TestClassifyIdempotent(t *testing.T) {
	requests := []string{
		"write hello to notes.txt",
		"restart the web service",
		"summarize this article",
		"parse csv and compute totals",
		"",
	}
	for _, req := range requests {
		first := Classify(req)
		for i := 0; i < 5; i++ {
			if got := Classify(req); got != first {
				t.Errorf("classification of %q not stable: %v vs %v", req, first, got)
			}
		}
	}
}

func TestClassifyNeverElevatesOnReadOnly(t *testing.T) {
	tag := Classify("show me the contents of the log")
	if tag.RequiresElevation() {
		t.Error("read-only request should not require elevation")
	}
}

func TestContainsWordBoundaries(t *testing.T) {
	if containsWord("restarting services", "start") {
		t.Error("start should not match inside restarting")
	}
	if !containsWord("please start the job", "start") {
		t.Error("start should match as a standalone word")
	}
}

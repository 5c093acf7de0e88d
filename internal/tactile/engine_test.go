package tactile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"intentloop/internal/config"
)

func testConfig(t *testing.T) config.ExecutionConfig {
	t.Helper()
	cfg := config.DefaultExecutionConfig()
	cfg.BackupDir = filepath.Join(t.TempDir(), "backups")
	return cfg
}

func TestWriteFileCreatesAndUndoDeletes(t *testing.T) {
	engine := NewEngine(testConfig(t))
	path := filepath.Join(t.TempDir(), "out.txt")

	res, err := engine.Execute(context.Background(), Action{
		Kind:    KindWriteFile,
		Target:  path,
		Content: "hello",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("write failed: %s", res.Error)
	}
	if !res.Reversible {
		t.Fatal("creating a file should be reversible")
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello" {
		t.Fatalf("file content wrong: %q, %v", data, err)
	}

	if err := engine.Undo(context.Background(), res.ID); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("undo should remove the created file")
	}
}

// Overwriting an existing file and undoing must restore the exact
// pre-execution content hash.
func TestOverwriteUndoRestoresHash(t *testing.T) {
	engine := NewEngine(testConfig(t))
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("original content\n"), 0644); err != nil {
		t.Fatal(err)
	}
	originalHash, err := hashFile(path)
	if err != nil {
		t.Fatal(err)
	}

	res, err := engine.Execute(context.Background(), Action{
		Kind:    KindWriteFile,
		Target:  path,
		Content: "replacement",
	})
	if err != nil || !res.Success {
		t.Fatalf("execute: %v / %s", err, res.Error)
	}

	before := res.StateBefore.Files[path]
	if before.SHA256 != originalHash {
		t.Errorf("before-snapshot hash mismatch: %s vs %s", before.SHA256, originalHash)
	}
	after := res.StateAfter.Files[path]
	if after.SHA256 == originalHash {
		t.Error("after-snapshot should differ from original")
	}
	if backup, ok := res.BackupPaths[path]; !ok || backup == "" {
		t.Fatalf("expected a backup keyed by %s, got %v", path, res.BackupPaths)
	}

	if err := engine.Undo(context.Background(), res.ID); err != nil {
		t.Fatalf("undo: %v", err)
	}
	restoredHash, err := hashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if restoredHash != originalHash {
		t.Errorf("undo did not restore original hash: %s vs %s", restoredHash, originalHash)
	}
}

func TestAppendFile(t *testing.T) {
	engine := NewEngine(testConfig(t))
	path := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(path, []byte("line1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := engine.Execute(context.Background(), Action{
		Kind:    KindAppendFile,
		Target:  path,
		Content: "line2\n",
	})
	if err != nil || !res.Success {
		t.Fatalf("append: %v / %s", err, res.Error)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "line1\nline2\n" {
		t.Errorf("append content wrong: %q", data)
	}

	if err := engine.Undo(context.Background(), res.ID); err != nil {
		t.Fatalf("undo: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "line1\n" {
		t.Errorf("undo should drop appended content, got %q", data)
	}
}

func TestDeleteFileUndoRestores(t *testing.T) {
	engine := NewEngine(testConfig(t))
	path := filepath.Join(t.TempDir(), "doomed.txt")
	if err := os.WriteFile(path, []byte("precious"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := engine.Execute(context.Background(), Action{Kind: KindDeleteFile, Target: path})
	if err != nil || !res.Success {
		t.Fatalf("delete: %v / %s", err, res.Error)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file should be gone after delete")
	}

	if err := engine.Undo(context.Background(), res.ID); err != nil {
		t.Fatalf("undo: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "precious" {
		t.Errorf("undo should restore deleted file: %q, %v", data, err)
	}
}

func TestProcessAllowList(t *testing.T) {
	engine := NewEngine(testConfig(t))

	res, err := engine.Execute(context.Background(), Action{
		Kind:   KindRunProcess,
		Target: "rm -rf /tmp/whatever",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success {
		t.Fatal("rm must be denied")
	}
	if !strings.Contains(res.Error, "allow-list") {
		t.Errorf("expected allow-list denial, got %q", res.Error)
	}
}

func TestProcessRunsAndCapturesOutput(t *testing.T) {
	engine := NewEngine(testConfig(t))

	res, err := engine.Execute(context.Background(), Action{
		Kind:   KindRunProcess,
		Target: "ls /",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("ls failed: %s (%s)", res.Error, res.Stderr)
	}
	if res.Stdout == "" {
		t.Error("expected stdout from ls /")
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code: want 0, got %d", res.ExitCode)
	}
}

func TestProcessTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.AllowedBinaries["sleep"] = true
	cfg.ProcessTimeout = 100 * time.Millisecond
	engine := NewEngine(cfg)

	res, err := engine.Execute(context.Background(), Action{
		Kind:   KindRunProcess,
		Target: "sleep 5",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success {
		t.Fatal("timed-out process should not succeed")
	}
	if !res.TimedOut {
		t.Error("result should be marked timed out")
	}
}

func TestInverseCommandTable(t *testing.T) {
	cases := map[string]string{
		"systemctl start nginx":  "systemctl stop nginx",
		"systemctl stop nginx":   "systemctl start nginx",
		"systemctl enable nginx": "systemctl disable nginx",
		// service syntax is service <unit> <verb>
		"service nginx start":  "service nginx stop",
		"service nginx stop":   "service nginx start",
		"service nginx status": "",
		"service nginx":        "",
		// umount takes only the mount point
		"mount /dev/sdb1 /mnt": "umount /mnt",
		"mount /mnt":           "umount /mnt",
		"umount /mnt":          "mount /mnt",
		"mkdir /tmp/newdir":    "rmdir /tmp/newdir",
		"ls -la":               "",
		"":                     "",
	}
	for in, want := range cases {
		if got := inverseCommand(in); got != want {
			t.Errorf("inverseCommand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitCommandQuoting(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`git commit -m "fix the thing"`, []string{"git", "commit", "-m", "fix the thing"}},
		{`cat 'a file.txt'`, []string{"cat", "a file.txt"}},
		{"ls  -la\t/tmp", []string{"ls", "-la", "/tmp"}},
		{`echo ""`, []string{"echo", ""}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCommand(c.in)
		if len(got) != len(c.want) {
			t.Errorf("splitCommand(%q) = %v, want %v", c.in, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("splitCommand(%q)[%d] = %q, want %q", c.in, i, got[i], c.want[i])
			}
		}
	}
}

func TestMkdirIsReversibleViaInverse(t *testing.T) {
	engine := NewEngine(testConfig(t))
	dir := filepath.Join(t.TempDir(), "made")

	res, err := engine.Execute(context.Background(), Action{
		Kind:   KindRunProcess,
		Target: "mkdir " + dir,
	})
	if err != nil || !res.Success {
		t.Fatalf("mkdir: %v / %s", err, res.Error)
	}
	if !res.Reversible {
		t.Fatal("mkdir should be reversible via rmdir")
	}

	if err := engine.Undo(context.Background(), res.ID); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("undo should rmdir the created directory")
	}
}

func TestEvalComputes(t *testing.T) {
	engine := NewEngine(testConfig(t))

	res, err := engine.Execute(context.Background(), Action{
		Kind:    KindEvaluateCode,
		Content: `import "fmt"; fmt.Println(6 * 7)`,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("eval failed: %s", res.Error)
	}
	if !strings.Contains(res.Stdout, "42") {
		t.Errorf("expected 42 in output, got %q", res.Stdout)
	}
	if res.Reversible {
		t.Error("evaluation must be irreversible")
	}
}

func TestEvalBlocksForbiddenImports(t *testing.T) {
	engine := NewEngine(testConfig(t))

	res, err := engine.Execute(context.Background(), Action{
		Kind:    KindEvaluateCode,
		Content: "import \"os\"\nos.Remove(\"/etc/passwd\")",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success {
		t.Fatal("os import must be rejected")
	}
	if !strings.Contains(res.Error, "allow-list") {
		t.Errorf("expected import denial, got %q", res.Error)
	}
}

func TestUndoUnknownID(t *testing.T) {
	engine := NewEngine(testConfig(t))
	if err := engine.Undo(context.Background(), "nope"); !errors.Is(err, ErrUnknownExec) {
		t.Errorf("want ErrUnknownExec, got %v", err)
	}
}

func TestUndoIrreversible(t *testing.T) {
	engine := NewEngine(testConfig(t))
	res, err := engine.Execute(context.Background(), Action{
		Kind:    KindEvaluateCode,
		Content: `1 + 1`,
	})
	if err != nil || !res.Success {
		t.Fatalf("eval: %v / %s", err, res.Error)
	}
	if err := engine.Undo(context.Background(), res.ID); !errors.Is(err, ErrNotReversible) {
		t.Errorf("want ErrNotReversible, got %v", err)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	engine := NewEngine(testConfig(t))
	if _, err := engine.Execute(context.Background(), Action{Kind: "format_disk"}); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("want ErrInvalidAction, got %v", err)
	}
}

func TestAuditCallback(t *testing.T) {
	engine := NewEngine(testConfig(t))
	var events []AuditEvent
	engine.SetAudit(func(ev AuditEvent) { events = append(events, ev) })

	path := filepath.Join(t.TempDir(), "a.txt")
	res, err := engine.Execute(context.Background(), Action{Kind: KindWriteFile, Target: path, Content: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Undo(context.Background(), res.ID); err != nil {
		t.Fatal(err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(events))
	}
	if events[0].Operation != "execute" || events[1].Operation != "undo" {
		t.Errorf("event operations wrong: %v", events)
	}
}

func TestBackupSizeCap(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxBackupMB = 1
	engine := NewEngine(cfg)

	path := filepath.Join(t.TempDir(), "big.bin")
	big := make([]byte, 2<<20)
	if err := os.WriteFile(path, big, 0644); err != nil {
		t.Fatal(err)
	}

	res, err := engine.Execute(context.Background(), Action{
		Kind:    KindWriteFile,
		Target:  path,
		Content: "small",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success {
		t.Fatal("write should abort when backup exceeds the cap")
	}
	data, _ := os.ReadFile(path)
	if len(data) != len(big) {
		t.Error("aborted write must leave the original untouched")
	}
}

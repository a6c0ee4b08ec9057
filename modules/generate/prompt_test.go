package generate

import (
	"strings"
	"testing"
)

func TestComposePromptWrapsRawPrompt(t *testing.T) {
	raw := "make the scene a golden sunset beach wedding"
	out := ComposePrompt(raw)

	if out == raw {
		t.Fatalf("plain prompt should be wrapped")
	}
	if got := strings.Count(out, raw); got != 1 {
		t.Fatalf("raw prompt should appear exactly once, got %d", got)
	}
	if !strings.Contains(out, "IDENTITY PRESERVATION - ABSOLUTE RULES") {
		t.Fatalf("identity directive block missing")
	}
	if !strings.Contains(out, "[SPECIFIC EDITING REQUEST]") {
		t.Fatalf("editing request slot missing")
	}
	if !strings.Contains(out, promptPreamble) || !strings.Contains(out, promptClosing) {
		t.Fatalf("boilerplate blocks missing")
	}
}

func TestComposePromptIsIdempotent(t *testing.T) {
	once := ComposePrompt("soft candlelight ceremony")
	twice := ComposePrompt(once)

	if once != twice {
		t.Fatalf("composing an already-wrapped prompt must be a no-op")
	}
}

func TestComposePromptMarkerMatchIsCaseInsensitive(t *testing.T) {
	prompt := "keep it simple. specific editing request: brighten the veil"
	if got := ComposePrompt(prompt); got != prompt {
		t.Fatalf("lowercase marker should still prevent re-wrapping")
	}
}

func TestComposePromptHasNoLengthCap(t *testing.T) {
	long := strings.Repeat("very detailed instruction. ", 200) // ~5400 chars
	out := ComposePrompt(long)
	if !strings.Contains(out, long) {
		t.Fatalf("long prompts must not be truncated on this path")
	}
}

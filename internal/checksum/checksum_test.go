package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSumDeterministic(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	if a != b {
		t.Errorf("digests differ: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
	if Sum([]byte("hello")) == Sum([]byte("hellp")) {
		t.Error("distinct content produced equal digests")
	}
}

func TestSumFileMatchesSum(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f.bin")
	content := []byte("snapshot payload\x00\x01\x02")
	if err := os.WriteFile(p, content, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := SumFile(p)
	if err != nil {
		t.Fatalf("SumFile: %v", err)
	}
	if got != Sum(content) {
		t.Errorf("SumFile = %s, Sum = %s", got, Sum(content))
	}
}

func TestSumFileMissing(t *testing.T) {
	if _, err := SumFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestHasherStreaming(t *testing.T) {
	h := New()
	_, _ = h.Write([]byte("part one "))
	_, _ = h.Write([]byte("part two"))
	if h.SumHex() != Sum([]byte("part one part two")) {
		t.Error("streamed digest does not match one-shot digest")
	}
}

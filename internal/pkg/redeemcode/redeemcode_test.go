package redeemcode

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestAlphabet(t *testing.T) {
	if len(Alphabet) != 32 {
		t.Fatalf("expected 32 symbols, got %d", len(Alphabet))
	}
	for _, banned := range "0O1I" {
		if strings.ContainsRune(Alphabet, banned) {
			t.Fatalf("alphabet must not contain %q", banned)
		}
	}
	seen := map[rune]bool{}
	for _, r := range Alphabet {
		if seen[r] {
			t.Fatalf("duplicate symbol %q", r)
		}
		seen[r] = true
	}
}

func TestGenerateShape(t *testing.T) {
	g, err := NewGenerator("jcq")
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	for i := 0; i < 200; i++ {
		code, err := g.Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != len("JCQ-XXXX-XXXX") || !strings.HasPrefix(code, "JCQ-") {
			t.Fatalf("unexpected code %q", code)
		}
		if !g.Valid(code) {
			t.Fatalf("generated code %q failed validation", code)
		}
	}
}

func TestParseCanonicalizes(t *testing.T) {
	g, _ := NewGenerator("JCQ")

	code, err := g.Parse("  jcq-ab23-xy89 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if code != "JCQ-AB23-XY89" {
		t.Fatalf("expected canonical code, got %q", code)
	}
}

func TestParseRejects(t *testing.T) {
	g, _ := NewGenerator("JCQ")
	for _, input := range []string{
		"",
		"JCQ-AB23-XY8",
		"JCQ-AB23-XY890",
		"JCQ-AB03-XY89", // 0 is not in the alphabet
		"JCQ-ABI3-XY89", // I is not in the alphabet
		"XYZ-AB23-XY89",
		"JCQAB23XY89",
		"JCQ-AB23_XY89",
	} {
		if _, err := g.Parse(input); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("%q: expected ErrInvalidFormat, got %v", input, err)
		}
	}
}

func TestNewGeneratorRejectsBadPrefix(t *testing.T) {
	for _, prefix := range []string{"", "J-Q", "TOOLONGPFX"} {
		if _, err := NewGenerator(prefix); err == nil {
			t.Errorf("expected error for prefix %q", prefix)
		}
	}
}

func TestGenerateBatchRegeneratesCollisions(t *testing.T) {
	// First two draws are identical, the third differs.
	same := bytes.Repeat([]byte{0}, 8)
	other := bytes.Repeat([]byte{1}, 8)
	r := bytes.NewReader(append(append(append([]byte{}, same...), same...), other...))

	g, err := newGenerator("JCQ", r)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	codes, err := g.GenerateBatch(2, nil)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if codes[0] != "JCQ-AAAA-AAAA" || codes[1] != "JCQ-BBBB-BBBB" {
		t.Fatalf("unexpected codes: %v", codes)
	}
}

func TestGenerateBatchSkipsTaken(t *testing.T) {
	first := bytes.Repeat([]byte{0}, 8)
	second := bytes.Repeat([]byte{2}, 8)
	g, _ := newGenerator("JCQ", bytes.NewReader(append(first, second...)))

	codes, err := g.GenerateBatch(1, func(code string) bool { return code == "JCQ-AAAA-AAAA" })
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if codes[0] != "JCQ-CCCC-CCCC" {
		t.Fatalf("expected taken code to be skipped, got %v", codes)
	}
}

func TestGenerateBatchBounds(t *testing.T) {
	g, _ := NewGenerator("JCQ")
	for _, n := range []int{0, MaxBatch + 1} {
		if _, err := g.GenerateBatch(n, nil); !errors.Is(err, ErrInvalidBatch) {
			t.Errorf("n=%d: expected ErrInvalidBatch, got %v", n, err)
		}
	}
	codes, err := g.GenerateBatch(MaxBatch, nil)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	unique := map[string]bool{}
	for _, c := range codes {
		unique[c] = true
	}
	if len(unique) != MaxBatch {
		t.Fatalf("expected %d unique codes, got %d", MaxBatch, len(unique))
	}
}

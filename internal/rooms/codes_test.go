package rooms

import (
	"regexp"
	"strings"
	"testing"
)

func TestAlphabet_Size(t *testing.T) {
	if len(alphabet) != 32 {
		t.Errorf("alphabet has %d symbols, want 32", len(alphabet))
	}
}

func TestGenerateCode_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{6}$`)

	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode() error: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Errorf("GenerateCode() = %q, doesn't match expected pattern", code)
		}
	}
}

func TestGenerateCode_Length(t *testing.T) {
	code, err := GenerateCode()
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != codeLength {
		t.Errorf("code length = %d, want %d", len(code), codeLength)
	}

	longer, err := generateCode(codeLength + 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(longer) != codeLength+1 {
		t.Errorf("code length = %d, want %d", len(longer), codeLength+1)
	}
}

func TestGenerateCode_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	dupes := 0
	for i := 0; i < 1000; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatal(err)
		}
		if seen[code] {
			dupes++
		}
		seen[code] = true
	}
	// 32^6 is about a billion codes
	if dupes > 1 {
		t.Errorf("too many duplicate codes: %d out of 1000", dupes)
	}
}

func TestGenerateCode_NoAmbiguousChars(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatal(err)
		}
		if strings.ContainsAny(code, "0O1I") {
			t.Errorf("code %q contains an ambiguous character", code)
		}
	}
}

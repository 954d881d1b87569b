package nl

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenizeIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"parseConfigFile", []string{"parse", "config", "file"}},
		{"parse_config_file", []string{"parse", "config", "file"}},
		{"parse-config-file", []string{"parse", "config", "file"}},
		{"HTTPServer", []string{"h", "t", "t", "p", "server"}},
		{"获取用户", []string{"获", "取", "用", "户"}},
		{"", nil},
	}
	for _, c := range cases {
		got := TokenizeIdentifier(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("TokenizeIdentifier(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestTokenizeIdentifierIdempotent(t *testing.T) {
	s := "parseConfigFile"
	once := TokenizeIdentifier(s)
	twice := TokenizeIdentifier(strings.Join(once, "_"))
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("tokenization not idempotent: %v vs %v", once, twice)
	}
}

func TestNormalizeForFTS(t *testing.T) {
	got := NormalizeForFTS("parse_config_file")
	if got != "parse config file" {
		t.Errorf("NormalizeForFTS = %q", got)
	}

	if NormalizeForFTS("") != "" {
		t.Error("empty input should normalize to empty")
	}
	if NormalizeForFTS("   ") != "" {
		t.Error("whitespace-only input should normalize to empty")
	}
}

func TestNormalizeForFTSCapped(t *testing.T) {
	huge := strings.Repeat("A", 100000)
	got := NormalizeForFTS(huge)
	if len(got) > maxNormalizedLen {
		t.Errorf("NormalizeForFTS output len %d exceeds cap", len(got))
	}
	for _, r := range got {
		if r != ' ' && !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' {
			t.Fatalf("NormalizeForFTS output contains disallowed rune %q", r)
		}
	}
}

func TestNormalizeForFTSOperatorsInert(t *testing.T) {
	got := NormalizeForFTS(`"quoted" AND (foo OR bar*)`)
	for _, disallowed := range []string{`"`, "(", ")", "*"} {
		if strings.Contains(got, disallowed) {
			t.Errorf("NormalizeForFTS output %q retains FTS operator %q", got, disallowed)
		}
	}
}

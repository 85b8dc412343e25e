package fingerprint

import (
	"testing"

	"github.com/conorfennell/knolbox/internal/domain"
	"github.com/conorfennell/knolbox/internal/parser"
)

func TestKey(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		// sha256 of "q"
		expected := "8e35c2cd3bf6641bdb0e2050b76932cbb2e6034a0ddacc1d9bea82a6ba57f7cf"
		if got := Key(parser.Entry{Front: "Q"}); got != expected {
			t.Errorf("Expected key '%s', but got '%s'", expected, got)
		}
	})

	t.Run("normalization produces same key", func(t *testing.T) {
		a := parser.Entry{Front: "  hello \r\n", Back: "merhaba"}
		b := parser.Entry{Front: "Hello", Back: "selam"}
		if Key(a) != Key(b) {
			t.Error("Expected keys to match after normalization, but they were different.")
		}
	})

	t.Run("different fronts have different keys", func(t *testing.T) {
		if Key(parser.Entry{Front: "one"}) == Key(parser.Entry{Front: "two"}) {
			t.Error("Expected keys for different fronts to be different")
		}
	})
}

func TestContent(t *testing.T) {
	base := parser.Entry{Front: "Hund", Back: "dog", Detail: domain.Detail{{Name: "gender", Value: "der"}}}

	testCases := []struct {
		name  string
		entry parser.Entry
		same  bool
	}{
		{"identical", base, true},
		{"case and spacing", parser.Entry{Front: " hund", Back: "DOG ", Detail: domain.Detail{{Name: "Gender", Value: "der"}}}, true},
		{"back changed", parser.Entry{Front: "Hund", Back: "hound", Detail: base.Detail}, false},
		{"detail changed", parser.Entry{Front: "Hund", Back: "dog", Detail: domain.Detail{{Name: "gender", Value: "die"}}}, false},
		{"detail dropped", parser.Entry{Front: "Hund", Back: "dog"}, false},
		{"fields shifted", parser.Entry{Front: "Hund\ndog", Back: "", Detail: base.Detail}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Content(tc.entry) == Content(base); got != tc.same {
				t.Errorf("Expected same content hash to be %v, but got %v", tc.same, got)
			}
		})
	}
}

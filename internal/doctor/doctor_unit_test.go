package doctor

import (
	"testing"

	"github.com/example/go-gtts/internal/token"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		name       string
		tk         string
		wantFirst  int64
		wantSecond int64
		wantErr    bool
	}{
		{"reference", "278125.134055", 278125, 134055, false},
		{"small", "1.0", 1, 0, false},
		{"single number", "278125", 0, 0, true},
		{"empty", "", 0, 0, true},
		{"three parts", "1.2.3", 0, 0, true},
		{"bad first", "abc.11", 0, 0, true},
		{"bad second", "3.xyz", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, second, err := parseToken(tt.tk)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseToken(%q) = (%d,%d,nil); want error", tt.tk, first, second)
				}

				return
			}

			if err != nil {
				t.Fatalf("parseToken(%q) error: %v", tt.tk, err)
			}

			if first != tt.wantFirst || second != tt.wantSecond {
				t.Fatalf("parseToken(%q) = (%d,%d); want (%d,%d)",
					tt.tk, first, second, tt.wantFirst, tt.wantSecond)
			}
		})
	}
}

func TestCheckSigner(t *testing.T) {
	if err := checkSigner(); err != nil {
		t.Fatalf("checkSigner() = %v", err)
	}
}

func TestCheckSeed(t *testing.T) {
	if err := checkSeed(token.Seed{}); err == nil {
		t.Error("checkSeed(zero) = nil; want error")
	}

	if err := checkSeed(token.Seed{A: 406986, B: 2817744745}); err != nil {
		t.Errorf("checkSeed(reference) = %v", err)
	}
}

func TestLooksLikeMP3(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"id3", []byte("ID3\x04"), true},
		{"frame sync", []byte{0xFF, 0xFB, 0x90}, true},
		{"html", []byte("<html>"), false},
		{"short", []byte{0xFF}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeMP3(tt.data); got != tt.want {
				t.Errorf("looksLikeMP3(%q) = %v; want %v", tt.data, got, tt.want)
			}
		})
	}
}

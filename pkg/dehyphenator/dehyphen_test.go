package dehyphenator

import (
	"bytes"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		join bool
		want string
	}{
		{"lowercase continuation", "Die Verfas-\nsung gilt\n", false, "Die Verfassung gilt\n"},
		{"uppercase continuation", "Bundes-\nVerfassungsgericht\n", false, "Bundes-Verfassungsgericht\n"},
		{"abbreviation", "Die EU-\nStaaten\n", false, "Die EU-Staaten\n"},
		{"abbreviation lowercase", "EU-\nweit\n", false, "EU-weit\n"},
		{"blank lines kept", "a\n\nb\n", false, "a\n\nb\n"},
		{"joined", "Die Verfas-\nsung\n\ngilt\n", true, "Die Verfassung gilt "},
		{"hyphen only line", "a\n-\nb\n", true, "a b "},
		{"umlaut", "Grö-\nße\n", false, "Größe\n"},
		{"whitespace trimmed", "  Haus-  \n  tür  \n", false, "Haustür\n"},
		{"noncharacter", "a\uFFFEb\n", false, "ab\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := String(tt.in, Options{JoinLines: tt.join})
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPipe(t *testing.T) {
	var out bytes.Buffer
	w, done := Pipe(&out, Options{JoinLines: true})
	for _, line := range []string{"Ein lan-\n", "ger Text\n", "mit Zei-\n", "len\n"} {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatal(err)
		}
	}
	w.Close()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != "Ein langer Text mit Zeilen" {
		t.Errorf("got %q", got)
	}
}

package util

import (
	"strings"
	"sync"
	"testing"
)

func TestRenderTemplate(t *testing.T) {
	ClearTemplateCache()

	tests := []struct {
		name string
		tmpl string
		data any
		want string
	}{
		{
			name: "map data",
			tmpl: "■ Template {{.Index}}",
			data: map[string]any{"Index": 3},
			want: "■ Template 3",
		},
		{
			name: "struct data",
			tmpl: "{{.Title}} / {{.Menu}}",
			data: struct{ Title, Menu string }{"ボブ", "cut"},
			want: "ボブ / cut",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderTemplate(tt.tmpl, tt.data)
			if err != nil {
				t.Fatalf("RenderTemplate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("RenderTemplate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderTemplate_Errors(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"call directive", `{{call .Fn}}`, "forbidden directive"},
		{"define directive", `{{define "x"}}y{{end}}`, "forbidden directive"},
		{"parse error", `{{.Name`, "failed to parse"},
		{"missing key", `{{.Missing}}`, "failed to execute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RenderTemplate(tt.tmpl, map[string]any{"Name": "x"})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("RenderTemplate() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestRenderTemplate_Concurrent(t *testing.T) {
	ClearTemplateCache()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			got, err := RenderTemplate("n={{.N}}", map[string]any{"N": n})
			if err != nil || got == "" {
				t.Errorf("RenderTemplate() = %q, %v", got, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"truncate me", 8, "truncate…"},
		{"春のボブスタイル", 3, "春のボ…"},
		{"anything", 0, ""},
	}

	for _, tt := range tests {
		if got := TruncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestSingleLine(t *testing.T) {
	if got := SingleLine("  soft\nlayered \t bob "); got != "soft layered bob" {
		t.Errorf("SingleLine() = %q", got)
	}
}

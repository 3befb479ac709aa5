package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type deviceLine struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Auth     string    `json:"auth" table:"AUTH"`
	Endpoint string    `json:"endpoint" table:",wide"`
	Secret   string    `json:"-" table:"-"`
	Selected bool      `json:"selected"`
	Seen     time.Time `json:"seen_at"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, false).(*JSONFormatter); !ok {
		t.Error("expected JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("expected YAMLFormatter")
	}
	tf, ok := NewFormatter("unknown", true).(*TableFormatter)
	if !ok {
		t.Fatal("expected TableFormatter as default")
	}
	if !tf.Wide {
		t.Error("expected Wide=true")
	}
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	err := (&JSONFormatter{}).Format(&buf, deviceLine{ID: "dev-1", Secret: "hunter2"})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"id": "dev-1"`) {
		t.Errorf("missing indented id field:\n%s", out)
	}
	if strings.Contains(out, "hunter2") {
		t.Error("json:\"-\" field leaked")
	}
}

func TestYAMLFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	data := []deviceLine{{ID: "dev-1", Name: "lobby", Selected: true}}
	if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "- ") {
		t.Errorf("expected a YAML sequence:\n%s", out)
	}
	for _, want := range []string{"id: dev-1", "  name: lobby", "  selected: true"} {
		if !strings.Contains(out, want) {
			t.Errorf("YAML output missing %q:\n%s", want, out)
		}
	}
}

func TestYAMLFormatter_Unencodable(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLFormatter{}).Format(&buf, make(chan int)); err == nil {
		t.Error("expected error for channel value")
	}
}

package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestTableFormatter_Slice(t *testing.T) {
	data := []deviceLine{
		{ID: "dev-1", Name: "lobby", Auth: "ok", Endpoint: "http://192.0.2.10/onvif/device_service", Selected: true},
		{ID: "dev-2", Auth: "required"},
	}

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}

	header := strings.Fields(lines[0])
	want := []string{"ID", "NAME", "AUTH", "SELECTED", "SEEN_AT"}
	if strings.Join(header, " ") != strings.Join(want, " ") {
		t.Errorf("header = %v, want %v", header, want)
	}
	if !strings.Contains(lines[1], "yes") {
		t.Errorf("bool not rendered as yes: %q", lines[1])
	}
	if fields := strings.Fields(lines[2]); fields[1] != "-" {
		t.Errorf("empty name = %q, want -", fields[1])
	}
}

func TestTableFormatter_Wide(t *testing.T) {
	data := []deviceLine{{ID: "dev-1", Endpoint: "http://192.0.2.10/onvif/device_service"}}

	var narrow, wide bytes.Buffer
	if err := (&TableFormatter{}).Format(&narrow, data); err != nil {
		t.Fatal(err)
	}
	if err := (&TableFormatter{Wide: true}).Format(&wide, data); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(narrow.String(), "ENDPOINT") {
		t.Error("wide column shown in narrow mode")
	}
	if !strings.Contains(wide.String(), "ENDPOINT") || !strings.Contains(wide.String(), "192.0.2.10") {
		t.Errorf("wide column missing:\n%s", wide.String())
	}
}

func TestTableFormatter_Struct(t *testing.T) {
	var buf bytes.Buffer
	err := (&TableFormatter{}).Format(&buf, &deviceLine{ID: "dev-1", Secret: "hunter2"})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "FIELD") {
		t.Errorf("expected FIELD/VALUE table:\n%s", out)
	}
	if strings.Contains(out, "hunter2") {
		t.Error("hidden column rendered")
	}
}

func TestTableFormatter_MapSorted(t *testing.T) {
	var buf bytes.Buffer
	err := (&TableFormatter{NoHeaders: true}).Format(&buf, map[string]int{"workers": 8, "pending": 2, "running": 1})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "pending") || !strings.HasPrefix(lines[2], "workers") {
		t.Errorf("rows not sorted by key:\n%s", buf.String())
	}
}

func TestTableFormatter_FallbackJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, 42); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "42" {
		t.Errorf("fallback output = %q", buf.String())
	}
}

func TestTable_AddRow(t *testing.T) {
	var table Table
	table.SetHeaders("STEP", "OUTCOME")
	table.AddRow("discover", "ok")

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "discover  ok") {
		t.Errorf("unexpected render:\n%s", buf.String())
	}
}

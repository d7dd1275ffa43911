package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/wippyai/scanx-wasm/bindings"
	"github.com/wippyai/scanx-wasm/config"
	"github.com/wippyai/scanx-wasm/engine"
	"github.com/wippyai/scanx-wasm/internal/enginetest"
	"github.com/wippyai/scanx-wasm/runtime"
)

type testApp struct {
	*app
	out    *bytes.Buffer
	errOut *bytes.Buffer
	loader *enginetest.Loader
}

func newTestApp(t *testing.T, terminal bool) *testApp {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	ta := &testApp{
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
		loader: &enginetest.Loader{},
	}
	ta.app = &app{
		stdout: ta.out,
		stderr: ta.errOut,
		stdin:  strings.NewReader(""),
		newRuntime: func(cfg *config.Config, log *zap.Logger) (*runtime.Runtime, error) {
			return runtime.New(
				runtime.WithConfig(cfg),
				runtime.WithLogger(log),
				runtime.WithLoader(ta.loader),
				runtime.WithDefaultOverrides(func() engine.Overrides { return engine.Overrides{} }),
			)
		},
		isTerminal: func() bool { return terminal },
	}
	return ta
}

func (ta *testApp) run(t *testing.T, args ...string) error {
	t.Helper()
	return execute(ta.app, args)
}

func TestWriteThenRead(t *testing.T) {
	ta := newTestApp(t, false)
	path := filepath.Join(t.TempDir(), "hello.png")

	if err := ta.run(t, "write", "HELLO", "--out", path); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(ta.errOut.String(), "wrote "+path) {
		t.Errorf("stderr = %q", ta.errOut.String())
	}

	ta.out.Reset()
	if err := ta.run(t, "read", path, "-o", "json"); err != nil {
		t.Fatalf("read: %v", err)
	}
	var got []fileResults
	if err := json.Unmarshal(ta.out.Bytes(), &got); err != nil {
		t.Fatalf("decode output %q: %v", ta.out.String(), err)
	}
	if len(got) != 1 || len(got[0].Results) != 1 {
		t.Fatalf("results = %+v", got)
	}
	r := got[0].Results[0]
	if r.Text != "HELLO" || r.Format != bindings.FormatQRCode {
		t.Errorf("result = %s %q", r.Format, r.Text)
	}
	if ta.loader.Loads() != 2 {
		t.Errorf("each command should build its own runtime, loads = %d", ta.loader.Loads())
	}
	for _, e := range ta.loader.Engines() {
		if !e.Closed() {
			t.Error("engine not closed after the command")
		}
	}
}

func TestWrite_Stdout(t *testing.T) {
	t.Run("pipe", func(t *testing.T) {
		ta := newTestApp(t, false)
		if err := ta.run(t, "write", "HELLO"); err != nil {
			t.Fatal(err)
		}
		_, payload, ok := enginetest.Decode(ta.out.Bytes())
		if !ok || string(payload) != "HELLO" {
			t.Errorf("stdout should hold the image, got %q", ta.out.String())
		}
	})
	t.Run("terminal", func(t *testing.T) {
		ta := newTestApp(t, true)
		if err := ta.run(t, "write", "HELLO"); err != nil {
			t.Fatal(err)
		}
		if ta.out.String() != "HELLO\n" {
			t.Errorf("stdout = %q", ta.out.String())
		}
	})
}

func TestWrite_SVG(t *testing.T) {
	ta := newTestApp(t, false)
	path := filepath.Join(t.TempDir(), "code.svg")
	if err := ta.run(t, "write", "--hex", "00ff", "--format", "DataMatrix", "--out", path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "<svg") {
		t.Errorf("file = %q", data)
	}
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"reader cannot write", []string{"write", "--variant", "reader", "x"}},
		{"writer cannot read", []string{"read", "--variant", "writer", "x.png"}},
		{"unknown variant", []string{"read", "--variant", "tiny", "x.png"}},
		{"bad hex", []string{"write", "--hex", "zz"}},
		{"missing file", []string{"read", "absent.png"}},
		{"unknown mode", []string{"--mode", "staging", "info"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t, false)
			if err := ta.run(t, tt.args...); err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	ta := newTestApp(t, false)
	if err := ta.run(t, "--cdn-host", "https://mirror.example.com", "info"); err != nil {
		t.Fatal(err)
	}
	out := ta.out.String()
	for _, want := range []string{
		"https://mirror.example.com/npm/scanx-wasm@",
		"dist/reader/scanx_reader.wasm",
		"dist/full/scanx_full.wasm",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("info output misses %q:\n%s", want, out)
		}
	}
}

func TestRender(t *testing.T) {
	all := []fileResults{
		{File: "a.png", Results: []bindings.ReadResult{{Format: bindings.FormatQRCode, Text: "one"}}},
		{File: "b.png"},
	}

	var text bytes.Buffer
	if err := render(&text, "text", all); err != nil {
		t.Fatal(err)
	}
	want := "a.png: QRCode\tone\nb.png: no barcode found\n"
	if diff := cmp.Diff(want, text.String()); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}

	var y bytes.Buffer
	if err := render(&y, "yaml", all); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(y.String(), "file: a.png") || !strings.Contains(y.String(), "text: one") {
		t.Errorf("yaml = %s", y.String())
	}

	if err := render(&y, "xml", all); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestBrowseModel(t *testing.T) {
	m := newBrowseModel([]fileResults{
		{File: "a.png", Results: []bindings.ReadResult{
			{Format: bindings.FormatQRCode, Text: "alpha"},
			{Format: bindings.FormatDataMatrix, Text: "beta"},
		}},
	})
	if len(m.visible) != 2 {
		t.Fatalf("visible = %v", m.visible)
	}
	m.filter.SetValue("beta")
	m.applyFilter()
	if diff := cmp.Diff([]int{1}, m.visible); diff != "" {
		t.Errorf("filtered (-want +got):\n%s", diff)
	}
	m.showDetail()
	if m.state != stateDetail || !strings.Contains(m.detail, "text: beta") {
		t.Errorf("detail = %q", m.detail)
	}
}

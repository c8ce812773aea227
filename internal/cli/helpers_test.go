package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/testutil"
	"github.com/keymagic/keymagic/internal/vk"
)

const circumflexSource = `name: Circumflex
description: doubled vowels become circumflex vowels
hotkey: ctrl shift c
rules:
  - lhs: ["aa"]
    rhs: ["â"]
  - lhs: ["ee"]
    rhs: ["ê"]
`

// circumflexLayout is the compiled twin of circumflexSource plus one base
// key.
func circumflexLayout() *testutil.LayoutBuilder {
	return testutil.NewLayout().
		Info(km2.InfoName, "Circumflex").
		Info(km2.InfoHotkey, "ctrl shift c").
		Rule(testutil.LHS(km2.Str("aa")), km2.Str("â")).
		Rule(testutil.LHS(km2.Str("ee")), km2.Str("ê")).
		Rule(km2.Keys(vk.KeyQ), km2.Str("ဆ"))
}

func writeKM2(t *testing.T, dir string) string {
	t.Helper()
	return circumflexLayout().WriteFile(t, dir, "circumflex.km2")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// jsonResponse mirrors CLIResponse with Data left raw.
type jsonResponse struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Error   *CLIError       `json:"error"`
	TraceID string          `json:"trace_id"`
}

func decodeResponse(t *testing.T, out string, data any) jsonResponse {
	t.Helper()
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if data != nil && resp.Data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

func textOpts() *RootOptions { return &RootOptions{Format: "text"} }
func jsonOpts() *RootOptions { return &RootOptions{Format: "json"} }

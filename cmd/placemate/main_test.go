package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "placemate.toml")
	body := fmt.Sprintf("db_path = %q\nphoto_path = %q\nscan_lock = false\nlog_level = \"error\"\n%s",
		filepath.Join(dir, "placemate.db"), filepath.Join(dir, "photos"), extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, cfgPath, args...)
	require.NoError(t, err, out)
	return out
}

func runJSON(t *testing.T, cfgPath string, v any, args ...string) {
	t.Helper()
	out := mustRun(t, cfgPath, append([]string{"--json"}, args...)...)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestLocationsCommands(t *testing.T) {
	cfg := writeConfig(t, "")

	var shelf struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	runJSON(t, cfg, &shelf, "locations", "add", "Garage > Shelf")
	assert.Equal(t, "Shelf", shelf.Name)
	assert.Equal(t, "storage", shelf.Kind)

	var box struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	}
	runJSON(t, cfg, &box, "locations", "add", "Garage/Shelf/Red Box", "--kind", "container")
	assert.Equal(t, "container", box.Kind)

	out := mustRun(t, cfg, "locations", "tree")
	assert.Contains(t, out, "Garage (room)")
	assert.Contains(t, out, "    Red Box (container)")

	out = mustRun(t, cfg, "locations", "list")
	assert.Contains(t, out, "Garage > Shelf > Red Box")

	out = mustRun(t, cfg, "locations", "rename", box.ID, "Blue Box")
	assert.Contains(t, out, "renamed to Blue Box")

	out = mustRun(t, cfg, "locations", "mv", box.ID, "--root")
	assert.Contains(t, out, "moved to Blue Box")

	_, err := runCLI(t, cfg, "locations", "mv", box.ID)
	require.Error(t, err)

	mustRun(t, cfg, "locations", "rm", box.ID)
	out = mustRun(t, cfg, "locations", "list")
	assert.NotContains(t, out, "Blue Box")
}

func TestItemsCommands(t *testing.T) {
	cfg := writeConfig(t, "")

	var hammer struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Category     string `json:"category"`
		LocationPath string `json:"location_path"`
	}
	runJSON(t, cfg, &hammer, "items", "add", "Hammer", "--at", "Garage > Tool Shelf")
	assert.Equal(t, "Hammer", hammer.Name)
	assert.Equal(t, "Garage > Tool Shelf", hammer.LocationPath)
	assert.NotEmpty(t, hammer.Category)

	out := mustRun(t, cfg, "items", "add", "Mug")
	assert.Contains(t, out, "Default Room")

	out = mustRun(t, cfg, "search", "hammer")
	assert.Contains(t, out, "Garage > Tool Shelf")
	assert.NotContains(t, out, "Mug")

	out = mustRun(t, cfg, "items", "borrow", hammer.ID, "--by", "Sam", "--due", "2000-01-01")
	assert.Contains(t, out, "borrowed by Sam")

	out = mustRun(t, cfg, "items", "show", hammer.ID)
	assert.Contains(t, out, "taken")
	assert.Contains(t, out, "Sam")

	out = mustRun(t, cfg, "items", "borrowed")
	assert.Contains(t, out, "Hammer")
	assert.Contains(t, out, "2000-01-01 (overdue)")

	_, err := runCLI(t, cfg, "items", "borrow", hammer.ID, "--by", "Alex")
	require.Error(t, err)

	out = mustRun(t, cfg, "items", "return", hammer.ID)
	assert.Contains(t, out, "Hammer returned")

	out = mustRun(t, cfg, "items", "borrowed")
	assert.Contains(t, out, "Nothing found.")

	out = mustRun(t, cfg, "items", "mv", hammer.ID, "Kitchen")
	assert.Contains(t, out, "Hammer is now at Kitchen")

	mustRun(t, cfg, "items", "rm", hammer.ID)
	_, err = runCLI(t, cfg, "items", "show", hammer.ID)
	require.Error(t, err)

	_, err = runCLI(t, cfg, "items", "borrow", "x", "--by", "Sam", "--due", "soon")
	require.ErrorContains(t, err, "invalid --due")
}

func TestScanCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"response": `{"objects":[` +
				`{"label":"Shelf","isContainer":true,"box_2d":[0,0,500,1000]},` +
				`{"label":"Book","parentLabel":"Shelf","quantity":2,"box_2d":[100,100,200,200]}]}`,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cfg := writeConfig(t, fmt.Sprintf("vision_backend = \"ollama\"\nollama_host = %q\n", server.URL))

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 200, 100))))
	imgPath := filepath.Join(t.TempDir(), "study.png")
	require.NoError(t, os.WriteFile(imgPath, img.Bytes(), 0o600))

	out := mustRun(t, cfg, "scan", imgPath, "--room", "Study")
	assert.Contains(t, out, "Room: Study")
	assert.Contains(t, out, "Study > Shelf")

	var hits []struct {
		Item struct {
			Name string `json:"name"`
		} `json:"item"`
		Path string `json:"path"`
	}
	runJSON(t, cfg, &hits, "search", "book")
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.True(t, strings.HasPrefix(strings.ToLower(h.Item.Name), "book"), h.Item.Name)
		assert.Equal(t, "Study > Shelf", h.Path)
	}

	_, err := runCLI(t, cfg, "scan", filepath.Join(t.TempDir(), "missing.png"))
	require.ErrorContains(t, err, "read image")
}

func TestClearCommand(t *testing.T) {
	cfg := writeConfig(t, "")
	mustRun(t, cfg, "items", "add", "Mug", "--at", "Kitchen")

	_, err := runCLI(t, cfg, "clear")
	require.ErrorContains(t, err, "--yes")

	out := mustRun(t, cfg, "clear", "--yes")
	assert.Contains(t, out, "catalog cleared")

	out = mustRun(t, cfg, "items", "list")
	assert.Contains(t, out, "Nothing found.")
}

func TestInvalidConfig(t *testing.T) {
	cfg := writeConfig(t, "vision_backend = \"bogus\"\n")
	_, err := runCLI(t, cfg, "items", "list")
	require.ErrorContains(t, err, "vision_backend")
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"Garage", "Shelf", "Red Box"}, splitPath(" Garage > Shelf /Red Box "))
	assert.Empty(t, splitPath(" > "))
}

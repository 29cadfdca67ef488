package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/contentsearch/internal/config"
	"github.com/dshills/contentsearch/internal/searcher"
	"github.com/dshills/contentsearch/internal/storage"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Engine.WorkerMode = config.WorkerModeLocal
	cfg.Engine.Workers = 2
	return cfg
}

func setupTestServer(t *testing.T, withHistory bool) *Server {
	t.Helper()
	return setupTestServerWithConfig(t, testConfig(), withHistory)
}

func setupTestServerWithConfig(t *testing.T, cfg *config.Config, withHistory bool) *Server {
	t.Helper()

	var store storage.Storage
	if withHistory {
		sqlite, err := storage.NewSQLiteStorage(storage.MemoryPath)
		require.NoError(t, err)
		t.Cleanup(func() { _ = sqlite.Close() })
		store = sqlite
	}

	srv, err := NewServer(searcher.New(cfg, store, searcher.Options{}), nil)
	require.NoError(t, err)
	return srv
}

func createTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"main.go":      "package main\n\n// TODO: wire flags\nfunc main() {}\n",
		"util/util.go": "package util\n\n// TODO: remove\n",
		"README.md":    "# readme\nnothing to do here\n",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func callTool(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

// resultJSON decodes the text payload of a tool result
func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)

	var text string
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content type %T", result.Content[0])
	}

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

func TestNewServer(t *testing.T) {
	srv := setupTestServer(t, true)
	assert.NotNil(t, srv.mcp)
	assert.NotNil(t, srv.searcher)
	assert.NotNil(t, srv.logger)
}

func TestHandleSearchContent(t *testing.T) {
	srv := setupTestServer(t, true)
	root := createTestTree(t)

	result, err := srv.handleSearchContent(context.Background(), callTool(map[string]interface{}{
		"paths":   []interface{}{root},
		"pattern": "TODO",
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.NotEmpty(t, out["run_id"])
	assert.EqualValues(t, 2, out["num_files"])
	assert.EqualValues(t, 2, out["num_matches"])
	assert.Equal(t, false, out["limit_hit"])
	assert.Equal(t, false, out["canceled"])

	matches, ok := out["matches"].([]interface{})
	require.True(t, ok)
	require.Len(t, matches, 2)
	first := matches[0].(map[string]interface{})
	lines := first["lines"].([]interface{})
	require.NotEmpty(t, lines)
	line := lines[0].(map[string]interface{})
	assert.EqualValues(t, 3, line["line"])
	assert.Contains(t, line["text"], "TODO")
}

func TestHandleSearchContent_WalkerOverride(t *testing.T) {
	srv := setupTestServer(t, false)
	root := createTestTree(t)

	result, err := srv.handleSearchContent(context.Background(), callTool(map[string]interface{}{
		"paths":   []interface{}{root},
		"pattern": "TODO",
		"include": []interface{}{"util/**"},
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.EqualValues(t, 1, out["num_files"])
	matches := out["matches"].([]interface{})
	require.Len(t, matches, 1)
	assert.Equal(t, filepath.Join(root, "util", "util.go"), matches[0].(map[string]interface{})["path"])
}

func TestHandleSearchContent_OverrideKeepsConfiguredWalker(t *testing.T) {
	cfg := testConfig()
	cfg.Walker.Exclude = append(cfg.Walker.Exclude, "util/**")
	srv := setupTestServerWithConfig(t, cfg, false)
	root := createTestTree(t)

	result, err := srv.handleSearchContent(context.Background(), callTool(map[string]interface{}{
		"paths":   []interface{}{root},
		"pattern": "TODO",
		"include": []interface{}{"**/*.go"},
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	matches := out["matches"].([]interface{})
	require.Len(t, matches, 1)
	assert.Equal(t, filepath.Join(root, "main.go"), matches[0].(map[string]interface{})["path"])
	assert.Equal(t, []string{"**/.git/**", "**/node_modules/**", "util/**"}, cfg.Walker.Exclude, "server config is not modified")
}

func TestHandleSearchContent_MaxResults(t *testing.T) {
	srv := setupTestServer(t, false)
	root := createTestTree(t)

	result, err := srv.handleSearchContent(context.Background(), callTool(map[string]interface{}{
		"paths":       []interface{}{root},
		"pattern":     "TODO",
		"max_results": float64(1),
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.EqualValues(t, 1, out["num_files"])
	assert.Equal(t, true, out["limit_hit"])
}

func TestHandleSearchContent_InvalidParams(t *testing.T) {
	srv := setupTestServer(t, false)
	root := createTestTree(t)
	file := filepath.Join(root, "main.go")

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"missing paths", map[string]interface{}{"pattern": "x"}, ErrorCodeInvalidParams},
		{"empty paths", map[string]interface{}{"paths": []interface{}{}, "pattern": "x"}, ErrorCodeInvalidParams},
		{"paths not strings", map[string]interface{}{"paths": []interface{}{1}, "pattern": "x"}, ErrorCodeInvalidParams},
		{"relative path", map[string]interface{}{"paths": []interface{}{"relative/dir"}, "pattern": "x"}, ErrorCodeInvalidParams},
		{"missing path", map[string]interface{}{"paths": []interface{}{filepath.Join(root, "nope")}, "pattern": "x"}, ErrorCodeInvalidParams},
		{"file path", map[string]interface{}{"paths": []interface{}{file}, "pattern": "x"}, ErrorCodeInvalidParams},
		{"empty pattern", map[string]interface{}{"paths": []interface{}{root}, "pattern": ""}, ErrorCodeEmptyPattern},
		{"missing pattern", map[string]interface{}{"paths": []interface{}{root}}, ErrorCodeEmptyPattern},
		{"max_results too small", map[string]interface{}{"paths": []interface{}{root}, "pattern": "x", "max_results": float64(0)}, ErrorCodeInvalidParams},
		{"max_results too large", map[string]interface{}{"paths": []interface{}{root}, "pattern": "x", "max_results": float64(MaxMaxResults + 1)}, ErrorCodeInvalidParams},
		{"bad include", map[string]interface{}{"paths": []interface{}{root}, "pattern": "x", "include": "*.go"}, ErrorCodeInvalidParams},
		{"bad regexp", map[string]interface{}{"paths": []interface{}{root}, "pattern": "(", "is_regexp": true}, ErrorCodeInvalidParams},
		{"unknown encoding", map[string]interface{}{"paths": []interface{}{root}, "pattern": "x", "encoding": "no-such-charset"}, ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := srv.handleSearchContent(context.Background(), callTool(tt.args))
			assert.Nil(t, result)
			requireMCPError(t, err, tt.code)
		})
	}
}

func TestHandleSearchHistory(t *testing.T) {
	srv := setupTestServer(t, true)
	root := createTestTree(t)
	ctx := context.Background()

	for _, pattern := range []string{"TODO", "readme"} {
		_, err := srv.handleSearchContent(ctx, callTool(map[string]interface{}{
			"paths":   []interface{}{root},
			"pattern": pattern,
		}))
		require.NoError(t, err)
	}

	t.Run("list", func(t *testing.T) {
		result, err := srv.handleSearchHistory(ctx, callTool(map[string]interface{}{}))
		require.NoError(t, err)
		out := resultJSON(t, result)
		assert.EqualValues(t, 2, out["count"])
		runs := out["runs"].([]interface{})
		require.Len(t, runs, 2)
		assert.Equal(t, "readme", runs[0].(map[string]interface{})["pattern"])
	})

	t.Run("filter by pattern", func(t *testing.T) {
		result, err := srv.handleSearchHistory(ctx, callTool(map[string]interface{}{"pattern": "TODO"}))
		require.NoError(t, err)
		out := resultJSON(t, result)
		assert.EqualValues(t, 1, out["count"])
	})

	t.Run("show run", func(t *testing.T) {
		result, err := srv.handleSearchHistory(ctx, callTool(map[string]interface{}{"pattern": "TODO", "limit": float64(1)}))
		require.NoError(t, err)
		runs := resultJSON(t, result)["runs"].([]interface{})
		require.Len(t, runs, 1)
		id := runs[0].(map[string]interface{})["id"].(string)

		result, err = srv.handleSearchHistory(ctx, callTool(map[string]interface{}{"run_id": id}))
		require.NoError(t, err)
		out := resultJSON(t, result)
		run := out["run"].(map[string]interface{})
		assert.Equal(t, id, run["id"])
		assert.EqualValues(t, 2, run["files_matched"])
		assert.Len(t, out["files"], 2)
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := srv.handleSearchHistory(ctx, callTool(map[string]interface{}{"run_id": "missing"}))
		requireMCPError(t, err, ErrorCodeRunNotFound)
	})

	t.Run("bad limit", func(t *testing.T) {
		_, err := srv.handleSearchHistory(ctx, callTool(map[string]interface{}{"limit": float64(101)}))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})
}

func TestHandleSearchHistory_Disabled(t *testing.T) {
	srv := setupTestServer(t, false)
	_, err := srv.handleSearchHistory(context.Background(), callTool(nil))
	requireMCPError(t, err, ErrorCodeHistoryDisabled)
}

func TestHandleGetStatus(t *testing.T) {
	srv := setupTestServer(t, true)
	root := createTestTree(t)
	ctx := context.Background()

	_, err := srv.handleSearchContent(ctx, callTool(map[string]interface{}{
		"paths":   []interface{}{root},
		"pattern": "TODO",
	}))
	require.NoError(t, err)

	result, err := srv.handleGetStatus(ctx, callTool(nil))
	require.NoError(t, err)
	out := resultJSON(t, result)

	serverInfo := out["server"].(map[string]interface{})
	assert.Equal(t, ServerName, serverInfo["name"])
	assert.Equal(t, ServerVersion, serverInfo["version"])
	assert.Equal(t, storage.BuildMode, serverInfo["build_mode"])

	searches := out["searches"].(map[string]interface{})
	assert.EqualValues(t, 1, searches["total"])
	assert.EqualValues(t, 0, searches["active"])
	assert.NotEmpty(t, searches["last_run_id"])
	assert.NotEmpty(t, searches["last_finished_at"])

	workers := out["workers"].(map[string]interface{})
	assert.Equal(t, config.WorkerModeLocal, workers["mode"])
	assert.EqualValues(t, 2, workers["count"])

	history := out["history"].(map[string]interface{})
	assert.Equal(t, true, history["enabled"])
	assert.EqualValues(t, 1, history["total_runs"])
	assert.Equal(t, storage.CurrentSchemaVersion, history["schema_version"])
}

func TestHandleGetStatus_NoHistory(t *testing.T) {
	srv := setupTestServer(t, false)
	result, err := srv.handleGetStatus(context.Background(), callTool(nil))
	require.NoError(t, err)
	history := resultJSON(t, result)["history"].(map[string]interface{})
	assert.Equal(t, false, history["enabled"])
	assert.NotContains(t, history, "total_runs")
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name string
		path string
		want error
	}{
		{"valid", dir, nil},
		{"empty", "", ErrPathRequired},
		{"relative", "some/dir", ErrPathNotAbsolute},
		{"missing", filepath.Join(dir, "missing"), ErrPathNotFound},
		{"file", file, ErrNotDirectory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetStringSlice(t *testing.T) {
	args := map[string]interface{}{
		"list":  []interface{}{"a", "b"},
		"typed": []string{"c"},
		"mixed": []interface{}{"a", 2},
		"str":   "a",
	}

	got, err := getStringSlice(args, "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = getStringSlice(args, "typed")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got)

	got, err = getStringSlice(args, "absent")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = getStringSlice(args, "mixed")
	assert.Error(t, err)
	_, err = getStringSlice(args, "str")
	assert.Error(t, err)
}

package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ballpark/internal/secret"
)

const feed = `{
  "gameData": {
    "teams": {"home": {"id": 147, "teamName": "Yankees"}, "away": {"id": 111, "teamName": "Red Sox"}},
    "venue": {"id": 3313, "name": "Yankee Stadium",
      "location": {"city": "Bronx", "defaultCoordinates": {"latitude": 40.8292, "longitude": -73.9265}}}
  },
  "liveData": {"boxscore": {
    "teams": {"home": {"teamStats": {"batting": {"runs": 4}}}, "away": {"teamStats": {"batting": {"runs": 4}}}},
    "info": []
  }}
}`

type mapStore map[string][]byte

func (m mapStore) Get(key string) ([]byte, error)     { return m[key], nil }
func (m mapStore) Set(key string, value []byte) error { m[key] = value; return nil }
func (m mapStore) Delete(key string) error            { delete(m, key); return nil }

func setup(t *testing.T) (*globals, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1.1/game/745001/feed/live" {
			fmt.Fprint(w, feed)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "ballpark.json5")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`{
  warehouse: { driver: "sqlite", host: %q },
  state_db: %q,
  retry: { attempts: 1 },
  stats_api: { base_url: %q },
}`, filepath.Join(dir, "w.db"), filepath.Join(dir, "s.db"), srv.URL)), 0o644))

	g := &globals{secrets: mapStore{}}
	return g, path
}

func execute(t *testing.T, g *globals, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd("test", g)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScoresThenRuns(t *testing.T) {
	g, path := setup(t)

	out, err := execute(t, g, "", "--config", path, "scores", "--game", "745001,745002")
	require.NoError(t, err)
	require.Contains(t, out, "success")
	require.Contains(t, out, "1 identifiers skipped")

	out, err = execute(t, g, "", "--config", path, "runs", "--pipeline", "scores")
	require.NoError(t, err)
	require.Contains(t, out, "scores")
	require.Contains(t, out, "success")

	out, err = execute(t, g, "", "--config", path, "skips", "no-such-run")
	require.NoError(t, err)
	require.Contains(t, out, "no skipped identifiers")
}

func TestPipelinesCmd(t *testing.T) {
	g, path := setup(t)

	out, err := execute(t, g, "", "--config", path, "pipelines")
	require.NoError(t, err)
	for _, want := range []string{"scores", "locations", "games", "elevation", "GAME_SCORES", "elevation_data"} {
		require.Contains(t, out, want)
	}
}

func TestRunCmd_BadFlags(t *testing.T) {
	g, path := setup(t)

	_, err := execute(t, g, "", "--config", path, "scores", "--game", "abc")
	require.ErrorContains(t, err, "not a number")

	_, err = execute(t, g, "", "--config", path, "games", "--team", "147", "--start", "April")
	require.ErrorContains(t, err, "--start")
}

func TestRunCmd_NoTeamsFails(t *testing.T) {
	g, path := setup(t)

	out, err := execute(t, g, "", "--config", path, "locations")
	require.ErrorContains(t, err, "no game ids or team ids")
	require.Contains(t, out, "error")
}

func TestSecretCmd(t *testing.T) {
	store := mapStore{}
	g := &globals{secrets: store}

	out, err := execute(t, g, "hunter2\n", "secret", "set")
	require.NoError(t, err)
	require.Contains(t, out, "stored")
	require.Equal(t, "hunter2", string(store["warehouse"]))

	_, err = execute(t, g, "", "secret", "set")
	require.Error(t, err)

	_, err = execute(t, g, "", "secret", "delete")
	require.NoError(t, err)
	require.NotContains(t, store, "warehouse")
}

var _ secret.SecretStore = mapStore{}

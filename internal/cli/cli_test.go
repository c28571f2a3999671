package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webstorage/storectl/internal/api"
	"github.com/webstorage/storectl/internal/config"
	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/models"
	"github.com/webstorage/storectl/internal/session"
)

// fileServer is a minimal stand-in for the storage backend.
type fileServer struct {
	mu        sync.Mutex
	token     string
	files     []models.FileEntry
	lastQuery string
	renames   []models.RenameRequest
	deletes   []models.FileID
	uploads   []string
	forced    map[string]int
}

func newFileServer(t *testing.T) (*fileServer, *httptest.Server) {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  42,
		"exp": time.Now().Add(2 * time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	fs := &fileServer{
		token: token,
		files: []models.FileEntry{
			{ID: 3, DisplayName: "report", Extension: ".pdf", SizeBytes: 2048},
			{ID: 7, DisplayName: "draft", Extension: ".txt", SizeBytes: 12},
		},
		forced: map[string]int{},
	}
	server := httptest.NewServer(fs)
	t.Cleanup(server.Close)
	return fs, server
}

func (fs *fileServer) force(path string, status int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.forced[path] = status
}

func (fs *fileServer) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	fs.mu.Lock()
	status, forced := fs.forced[r.URL.Path]
	fs.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/api/auth/") && r.Header.Get("Authorization") != "Bearer "+fs.token {
		status, forced = nethttp.StatusUnauthorized, true
	}
	if forced {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{"code": status, "message": "Token is expired"})
		return
	}

	switch r.URL.Path {
	case api.PathLogin:
		var creds models.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{"code": 401, "message": "incorrect Username or Password"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": fs.token, "expire": time.Now().Add(2 * time.Hour).Format(time.RFC3339)})
	case api.PathSignup:
		json.NewEncoder(w).Encode(map[string]string{"message": "Success registration."})
	case api.PathFiles:
		fs.mu.Lock()
		fs.lastQuery = r.URL.RawQuery
		files := fs.files
		fs.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{"files": files})
	case api.PathUpload:
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(nethttp.StatusBadRequest)
			return
		}
		var names []string
		for _, fh := range r.MultipartForm.File[api.UploadField] {
			names = append(names, fh.Filename)
		}
		fs.mu.Lock()
		fs.uploads = append(fs.uploads, names...)
		fs.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"message": "Loaded files: " + strings.Join(names, " ")})
	case api.PathRename:
		var req models.RenameRequest
		json.NewDecoder(r.Body).Decode(&req)
		fs.mu.Lock()
		fs.renames = append(fs.renames, req)
		fs.mu.Unlock()
		w.Write([]byte(`{}`))
	case api.PathDelete:
		var req models.DeleteRequest
		json.NewDecoder(r.Body).Decode(&req)
		fs.mu.Lock()
		fs.deletes = append(fs.deletes, req.ID)
		fs.mu.Unlock()
		w.Write([]byte(`{}`))
	case api.PathDownload:
		io.WriteString(w, "contents of "+r.URL.Query().Get("file"))
	default:
		w.WriteHeader(nethttp.StatusNotFound)
	}
}

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.ServerURL = serverURL
	cfg.SessionStorePath = filepath.Join(dir, "session.json")
	cfg.DownloadDir = dir
	return cfg
}

// execute runs the full command tree with args and returns its output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	AddCommands(root)

	var buf bytes.Buffer
	out := &lockedWriter{w: &buf}
	root.SetOut(out)
	root.SetErr(out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	for _, name := range []string{"login", "signup", "logout", "whoami", "ls", "upload", "download", "rename", "rm", "shell", "config", "completion"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("command %q not registered", name)
			continue
		}
		if cmd.Short == "" {
			t.Errorf("%s: Short description is empty", name)
		}
	}

	for _, flag := range []string{"config", "url", "verbose", "debug"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("--%s flag not found", flag)
		}
	}
}

func TestListCommandFlags(t *testing.T) {
	cmd := newListCmd()
	if cmd.Flags().Lookup("sort") == nil {
		t.Error("--sort flag not found")
	}
	if cmd.Flags().Lookup("desc") == nil {
		t.Error("--desc flag not found")
	}
}

func TestCommandsEndToEnd(t *testing.T) {
	t.Setenv(config.EnvServerURL, "")
	fs, server := newFileServer(t)
	cfg := testConfig(t, server.URL)
	cfgPath := filepath.Join(t.TempDir(), "config")
	require.NoError(t, config.Save(cfg, cfgPath))

	_, err := execute(t, "", "-c", cfgPath, "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	_, err = execute(t, "wrong\n", "-c", cfgPath, "login", "-u", "alice")
	require.Error(t, err)
	assert.Equal(t, "incorrect Username or Password", err.Error())

	out, err := execute(t, "secret\n", "-c", cfgPath, "login", "-u", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")

	out, err = execute(t, "", "-c", cfgPath, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "User ID: 42")
	assert.Contains(t, out, "Session: expires")

	out, err = execute(t, "", "-c", cfgPath, "ls", "--sort", "size", "--desc")
	require.NoError(t, err)
	assert.Contains(t, out, "SIZE ▼")
	assert.Contains(t, out, "report")
	assert.Contains(t, out, "2.0 KiB")
	fs.mu.Lock()
	assert.Equal(t, "col=Size&ord=desc", fs.lastQuery)
	fs.mu.Unlock()

	out, err = execute(t, "", "-c", cfgPath, "rename", "7", "final")
	require.NoError(t, err)
	assert.Contains(t, out, "Renamed draft.txt to final.txt")

	out, err = execute(t, "n\n", "-c", cfgPath, "rm", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")

	out, err = execute(t, "", "-c", cfgPath, "rm", "7", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted draft.txt")

	dlDir := t.TempDir()
	out, err = execute(t, "", "-c", cfgPath, "download", "3", "-o", dlDir)
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(dlDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved "+filepath.Join(resolved, "report.pdf"))
	data, err := os.ReadFile(filepath.Join(dlDir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "contents of report.pdf", string(data))

	_, err = execute(t, "", "-c", cfgPath, "download", "99")
	require.Error(t, err)

	fs.mu.Lock()
	assert.Equal(t, []models.RenameRequest{{ID: 7, Name: "final", Extension: ".txt"}}, fs.renames)
	assert.Equal(t, []models.FileID{7}, fs.deletes)
	fs.mu.Unlock()

	out, err = execute(t, "", "-c", cfgPath, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = execute(t, "", "-c", cfgPath, "whoami")
	require.Error(t, err)
}

func TestUploadCommand(t *testing.T) {
	t.Setenv(config.EnvServerURL, "")
	fs, server := newFileServer(t)
	cfg := testConfig(t, server.URL)
	cfgPath := filepath.Join(t.TempDir(), "config")
	require.NoError(t, config.Save(cfg, cfgPath))
	_, err := execute(t, "secret\n", "-c", cfgPath, "login", "-u", "alice")
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(src, []byte("# notes"), 0644))

	out, err := execute(t, "", "-c", cfgPath, "upload", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Uploading notes.md")
	assert.Contains(t, out, "Loaded files: notes.md")

	fs.mu.Lock()
	assert.Equal(t, []string{"notes.md"}, fs.uploads)
	fs.mu.Unlock()
}

func TestExpiredSessionIsCleared(t *testing.T) {
	t.Setenv(config.EnvServerURL, "")
	fs, server := newFileServer(t)
	cfg := testConfig(t, server.URL)
	cfgPath := filepath.Join(t.TempDir(), "config")
	require.NoError(t, config.Save(cfg, cfgPath))
	_, err := execute(t, "secret\n", "-c", cfgPath, "login", "-u", "alice")
	require.NoError(t, err)

	fs.force(api.PathFiles, nethttp.StatusUnauthorized)
	_, err = execute(t, "", "-c", cfgPath, "ls")
	require.Error(t, err)
	assert.Equal(t, constants.MsgSessionExpired, err.Error())

	_, ok, err := session.NewFileStore(cfg.SessionStorePath).Get(constants.SessionTokenKey)
	require.NoError(t, err)
	assert.False(t, ok, "token should be removed after a 401")
}

func TestURLFlagOverridesConfig(t *testing.T) {
	t.Setenv(config.EnvServerURL, "")
	cfgPath := filepath.Join(t.TempDir(), "config")
	require.NoError(t, config.Save(testConfig(t, "http://unused.invalid"), cfgPath))

	out, err := execute(t, "", "-c", cfgPath, "--url", "https://files.example.net/", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Server URL:         https://files.example.net\n")

	_, err = execute(t, "", "-c", cfgPath, "--url", "not a url", "config", "show")
	require.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	t.Setenv(config.EnvServerURL, "")
	cfgPath := filepath.Join(t.TempDir(), "nested", "config")
	answers := "https://store.example.com\n/tmp/dl\nbasic\nproxy.corp\n3128\nbob\n"

	out, err := execute(t, answers, "-c", cfgPath, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration saved to "+cfgPath)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "https://store.example.com", cfg.ServerURL)
	assert.Equal(t, "/tmp/dl", cfg.DownloadDir)
	assert.Equal(t, "basic", cfg.ProxyMode)
	assert.Equal(t, "proxy.corp", cfg.ProxyHost)
	assert.Equal(t, 3128, cfg.ProxyPort)
	assert.Equal(t, "bob", cfg.ProxyUser)

	out, err = execute(t, "", "-c", cfgPath, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestPrintListing(t *testing.T) {
	var buf bytes.Buffer
	printListing(&buf, nil, models.DefaultSort())
	assert.Equal(t, "No files.\n", buf.String())

	buf.Reset()
	files := []models.FileEntry{
		{ID: 1, DisplayName: "a", Extension: ".txt", SizeBytes: 1536, ModifiedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{ID: 22, DisplayName: "b", Extension: ".bin"},
	}
	printListing(&buf, files, models.SortState{Column: models.SortByName, Direction: models.Ascending})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME ▲")
	assert.NotContains(t, lines[0], "SIZE ▲")
	assert.Contains(t, lines[1], "1.5 KiB")
	assert.Contains(t, lines[2], "22")
	assert.True(t, strings.HasSuffix(lines[2], "-"), "zero date renders as -")
}

func TestPrompter(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("\n  bob  \nsecret\nY\n"), &out)

	name, err := p.required("Username: ")
	require.NoError(t, err)
	assert.Equal(t, "bob", name)
	assert.Contains(t, out.String(), "a value is required")

	password, err := p.password("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "secret", password)

	yes, err := p.confirm("Delete?")
	require.NoError(t, err)
	assert.True(t, yes)

	_, err = p.line("More: ")
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadCredentialsMismatch(t *testing.T) {
	p := newPrompter(strings.NewReader("carol\none\ntwo\n"), io.Discard)
	_, err := readCredentials(p, "", true)
	assert.ErrorIs(t, err, errPasswordMismatch)
}

// shellFixture wires an app against fs with an in-memory session.
func shellFixture(t *testing.T, server *httptest.Server, token string) (*app, *lockedWriter, *bytes.Buffer) {
	t.Helper()
	store := session.NewMemoryStore()
	if token != "" {
		require.NoError(t, store.Set(constants.SessionTokenKey, token))
	}
	var buf bytes.Buffer
	out := &lockedWriter{w: &buf}
	a, err := newApp(testConfig(t, server.URL), store, out)
	require.NoError(t, err)
	return a, out, &buf
}

func runShell(t *testing.T, a *app, out *lockedWriter, script string) {
	t.Helper()
	s := newShell(a, strings.NewReader(script), out)
	s.redirectDelay = 0
	require.NoError(t, s.run(context.Background()))
	a.Close()
}

func TestShellLoginAndMutations(t *testing.T) {
	fs, server := newFileServer(t)
	a, out, buf := shellFixture(t, server, "")

	runShell(t, a, out, "ls\nlogin alice\nsecret\nsort size\nedit 7\nsave final\nrm 3\nquit\n")

	text := buf.String()
	assert.Contains(t, text, "Not logged in. Use 'login' or 'signup'.")
	assert.Contains(t, text, "Logged in as alice")
	assert.Contains(t, text, "SIZE ▲")
	assert.Contains(t, text, "[rename draft.txt]>")
	assert.Contains(t, text, "Deleted report.pdf")

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, []models.RenameRequest{{ID: 7, Name: "final", Extension: ".txt"}}, fs.renames)
	assert.Equal(t, []models.FileID{3}, fs.deletes)
	assert.Equal(t, "col=Size&ord=asc", fs.lastQuery)
}

func TestShellTransfers(t *testing.T) {
	fs, server := newFileServer(t)
	a, out, buf := shellFixture(t, server, fs.token)
	dir := a.cfg.DownloadDir

	src := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg"), 0644))

	runShell(t, a, out, "get 3\nup "+src+"\nget 99\nquit\n")

	data, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "contents of report.pdf", string(data))

	text := buf.String()
	assert.Contains(t, text, "no such file in the listing: 99")
	assert.Contains(t, text, "Loaded files: photo.jpg")

	fs.mu.Lock()
	assert.Equal(t, []string{"photo.jpg"}, fs.uploads)
	fs.mu.Unlock()
}

func TestShellSessionEndedByServer(t *testing.T) {
	fs, server := newFileServer(t)
	a, out, buf := shellFixture(t, server, fs.token)
	fs.force(api.PathDelete, nethttp.StatusUnauthorized)

	runShell(t, a, out, "rm 7\nls\nquit\n")

	text := buf.String()
	assert.Contains(t, text, constants.MsgSessionExpired+" Use 'login' to continue.")
	assert.Contains(t, text, "Not logged in. Use 'login' or 'signup'.")
	assert.False(t, a.ws.Session().IsAuthenticated())
}

func TestShellSignupContinuesToLogin(t *testing.T) {
	_, server := newFileServer(t)
	a, out, buf := shellFixture(t, server, "")

	runShell(t, a, out, "signup dave\nsecret\nsecret\nsecret\nquit\n")

	text := buf.String()
	assert.Contains(t, text, "Success registration.")
	assert.Contains(t, text, "Logged in as dave")
	assert.True(t, a.ws.Session().IsAuthenticated())
}

func TestCommandError(t *testing.T) {
	err := commandError(io.ErrUnexpectedEOF, constants.MsgDeleteFailed)
	assert.Equal(t, "Delete failed: unexpected EOF", err.Error())
}

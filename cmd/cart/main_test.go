package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	dir        string
	configPath string
}

func newCLIEnv(t *testing.T, extra string) cliEnv {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`[log]
level = "error"

[storage]
driver = "sqlite"
sqlite_path = %q

[session]
path = %q
%s`, filepath.Join(dir, "cart.db"), filepath.Join(dir, "session.yaml"), extra)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return cliEnv{dir: dir, configPath: configPath}
}

func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "cart %v", args)
	return out
}

func TestCLI_GuestCart(t *testing.T) {
	env := newCLIEnv(t, "")

	out := env.mustRun(t, "add", "p1", "--price", "9.99", "--qty", "2", "--max", "3", "--name", "Mug")
	assert.Equal(t, "p1 x2\n", out)

	// Clamped to the stock ceiling
	out = env.mustRun(t, "add", "p1", "--qty", "5")
	assert.Equal(t, "p1 x3\n", out)

	out = env.mustRun(t, "show")
	assert.Contains(t, out, "Cart (guest)")
	assert.Contains(t, out, "Mug")
	assert.Contains(t, out, "Items: 3  Total: 29.97 USD")

	env.mustRun(t, "set", "p1", "1")
	assert.Contains(t, env.mustRun(t, "show"), "Items: 1")

	env.mustRun(t, "remove", "p1")
	assert.Contains(t, env.mustRun(t, "show"), "empty")

	_, err := env.run(t, "remove", "p1")
	assert.ErrorIs(t, err, errRejected)
}

func TestCLI_Rejections(t *testing.T) {
	env := newCLIEnv(t, "")

	_, err := env.run(t, "add", "p1", "--qty=-1")
	assert.ErrorIs(t, err, errRejected)

	_, err = env.run(t, "add", "p1", "--max", "0")
	assert.ErrorIs(t, err, errRejected)

	_, err = env.run(t, "set", "p1", "many")
	assert.Error(t, err)

	_, err = env.run(t, "remove", " ")
	assert.ErrorIs(t, err, errProductRequired)

	_, err = env.run(t, "login", " ")
	assert.Error(t, err)

	assert.Contains(t, env.mustRun(t, "show"), "empty")
}

func TestCLI_LoginMigratesGuestCartOffline(t *testing.T) {
	env := newCLIEnv(t, "")

	env.mustRun(t, "add", "p1", "--price", "4")
	env.mustRun(t, "add", "p2", "--variant", "red", "--price", "6", "--qty", "2")

	out := env.mustRun(t, "login", "u1")
	assert.Contains(t, out, "Cart (u1)")
	assert.Contains(t, out, "Items: 3")

	sess, err := loadSession(filepath.Join(env.dir, "session.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.User)

	// A later invocation continues as the user
	assert.Contains(t, env.mustRun(t, "show"), "Cart (u1)")

	// The guest record was retired by the migration
	env.mustRun(t, "logout")
	out = env.mustRun(t, "show")
	assert.Contains(t, out, "Cart (guest)")
	assert.Contains(t, out, "empty")

	// Signing back in finds the user's record
	assert.Contains(t, env.mustRun(t, "login", "u1"), "Items: 3")
}

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]json.RawMessage
}

func TestCLI_SyncsWithCartService(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.body)
		}
		mu.Lock()
		requests = append(requests, rec)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"cart":[{"productId":"srv","variantId":null,"quantity":1,"unitPrice":"2.50"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"cart":[]}`))
	}))
	defer srv.Close()

	env := newCLIEnv(t, fmt.Sprintf(`
[gateway]
base_url = %q
`, srv.URL+"/api/v1"))

	env.mustRun(t, "add", "p1", "--price", "4")
	out := env.mustRun(t, "login", "u1", "--token", "tok-1")
	assert.Contains(t, out, "srv")
	assert.Contains(t, out, "p1")
	assert.Contains(t, out, "Items: 2")

	mu.Lock()
	defer mu.Unlock()
	var fetched, merged, beacons int
	for _, r := range requests {
		assert.Equal(t, "Bearer tok-1", r.auth)
		switch {
		case r.method == http.MethodGet && r.path == "/api/v1/cart":
			fetched++
		case r.method == http.MethodPost && r.path == "/api/v1/cart/merge" && r.body["cartToAdd"] != nil:
			merged++
		case r.method == http.MethodPost && r.path == "/api/v1/cart/merge" && r.body["cart"] != nil:
			beacons++
		}
	}
	assert.Equal(t, 1, fetched)
	assert.Equal(t, 1, merged)
	assert.Equal(t, 1, beacons, "teardown flush on exit")
}

func TestCLI_CatalogStock(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`products:
  - id: tee
    name: Logo Tee
    price: "19.50"
    hasVariants: true
    variants:
      - id: tee-m
        size: M
        quantity: 2
      - id: tee-l
        size: L
        quantity: 0
`), 0o600))
	env := newCLIEnv(t, fmt.Sprintf(`
[catalog]
path = %q
`, catalogPath))

	_, err := env.run(t, "add", "tee")
	assert.ErrorIs(t, err, errRejected, "variant required")

	_, err = env.run(t, "add", "tee", "--variant", "tee-l")
	assert.ErrorIs(t, err, errRejected, "out of stock")

	out := env.mustRun(t, "add", "tee", "--variant", "tee-m", "--qty", "5")
	assert.Equal(t, "tee/tee-m x2\n", out)

	out = env.mustRun(t, "show")
	assert.Contains(t, out, "Logo Tee")
	assert.Contains(t, out, "Items: 2  Total: 39.00 USD")
}

package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/gomega"

	v0 "github.com/kmjayadeep/baskit-sub000/internal/api/v0"
	syncapp "github.com/kmjayadeep/baskit-sub000/internal/app"
	"github.com/kmjayadeep/baskit-sub000/internal/config"
	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/internal/status"
)

// pollEvery is the cadence of the Eventually helpers. The daemons poll
// the shared database every 200ms, so assertions poll a bit faster.
const pollEvery = 100 * time.Millisecond

// DaemonTestHelper manages one daemon instance, its config file and an
// HTTP client against its API. Specs drive everything through the
// public API, the same way a device UI would.
type DaemonTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	httpClient *http.Client
	app        *syncapp.SyncApp
	token      string
	port       int
}

// NewDaemonTestHelper creates a helper for a daemon listening on the
// given port.
func NewDaemonTestHelper(ctx context.Context, configPath string, port int) *DaemonTestHelper {
	return &DaemonTestHelper{
		ctx:        ctx,
		configPath: configPath,
		baseURL:    fmt.Sprintf("http://localhost:%d", port),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		port: port,
	}
}

// StartDaemon builds the daemon from its config file and starts serving
func (d *DaemonTestHelper) StartDaemon() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(d.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := syncapp.NewSyncApp(d.ctx,
		syncapp.WithConfig(cfg),
		syncapp.WithAddress(fmt.Sprintf(":%d", d.port)),
	)
	if err != nil {
		return fmt.Errorf("failed to build daemon: %w", err)
	}
	d.app = app

	go func() {
		if err := app.Start(); err != nil {
			// Surfaced here for debugging; the test itself fails on
			// the unreachable port.
			fmt.Fprintf(os.Stderr, "Daemon start failed: %v\n", err)
		}
	}()

	return nil
}

// StopDaemon gracefully stops the daemon
func (d *DaemonTestHelper) StopDaemon() error {
	if d.app != nil {
		return d.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForDaemonReady waits until the daemon answers health checks
func (d *DaemonTestHelper) WaitForDaemonReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := d.GetHealth()
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("daemon returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, pollEvery).Should(gomega.Succeed(), "Daemon should be ready")
}

// UseToken attaches a bearer token to every subsequent request
func (d *DaemonTestHelper) UseToken(token string) {
	d.token = token
}

// GetBaseURL returns the base URL of the daemon's API
func (d *DaemonTestHelper) GetBaseURL() string {
	return d.baseURL
}

// Do sends one API request with the helper's auth context. The caller
// owns the response body.
func (d *DaemonTestHelper) Do(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(d.ctx, method, d.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	return d.httpClient.Do(req)
}

// GetHealth makes a GET request to /health
func (d *DaemonTestHelper) GetHealth() (*http.Response, error) {
	return d.Do(http.MethodGet, "/health", nil)
}

// GetLists makes a GET request to /api/v0/lists
func (d *DaemonTestHelper) GetLists() (*http.Response, error) {
	return d.Do(http.MethodGet, "/api/v0/lists", nil)
}

// GetSyncStatus makes a GET request to /api/v0/sync/status
func (d *DaemonTestHelper) GetSyncStatus() (*http.Response, error) {
	return d.Do(http.MethodGet, "/api/v0/sync/status", nil)
}

// SignIn switches the daemon to the given principal and waits until
// the engine reports both sync directions established.
func (d *DaemonTestHelper) SignIn(principalID string) {
	resp, err := d.Do(http.MethodPut, "/api/v0/identity", v0.IdentityRequest{PrincipalID: principalID})
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	d.WaitForState(status.StateSynced, 15*time.Second)
}

// SignOut resets the daemon to the anonymous principal
func (d *DaemonTestHelper) SignOut() {
	resp, err := d.Do(http.MethodDelete, "/api/v0/identity", nil)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusNoContent))

	d.WaitForState(status.StateIdle, 5*time.Second)
}

// StopSync pauses synchronization. The daemon keeps serving local
// writes, which accumulate until sync is resumed.
func (d *DaemonTestHelper) StopSync() {
	resp, err := d.Do(http.MethodPost, "/api/v0/sync/stop", nil)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	d.WaitForState(status.StateIdle, 5*time.Second)
}

// ResumeSync re-establishes synchronization for the signed-in principal
func (d *DaemonTestHelper) ResumeSync() {
	resp, err := d.Do(http.MethodPost, "/api/v0/sync/resume", nil)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	d.WaitForState(status.StateSynced, 15*time.Second)
}

// FetchSyncStatus decodes GET /api/v0/sync/status
func (d *DaemonTestHelper) FetchSyncStatus() (v0.SyncStatusResponse, error) {
	var out v0.SyncStatusResponse

	resp, err := d.GetSyncStatus()
	if err != nil {
		return out, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("sync status returned %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

// WaitForState waits until the engine reports the given state
func (d *DaemonTestHelper) WaitForState(want status.State, timeout time.Duration) {
	gomega.Eventually(func() (status.State, error) {
		st, err := d.FetchSyncStatus()
		if err != nil {
			return "", err
		}
		return st.State, nil
	}, timeout, pollEvery).Should(gomega.Equal(want), "engine should reach state %q", want)
}

// CreateList creates a list through the API and returns it
func (d *DaemonTestHelper) CreateList(name string) model.List {
	var created model.List

	resp, err := d.Do(http.MethodPost, "/api/v0/lists", v0.CreateListRequest{Name: name})
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusCreated))
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&created)).To(gomega.Succeed())

	return created
}

// RenameList updates a list's name through the API and returns the
// updated list.
func (d *DaemonTestHelper) RenameList(listID, name string) model.List {
	return d.updateList(listID, v0.UpdateListRequest{Name: name})
}

// ShareList replaces a list's member set through the API. The owner is
// always kept in the set by the daemon.
func (d *DaemonTestHelper) ShareList(listID, name string, members []string) model.List {
	return d.updateList(listID, v0.UpdateListRequest{Name: name, Members: members})
}

func (d *DaemonTestHelper) updateList(listID string, req v0.UpdateListRequest) model.List {
	var updated model.List

	resp, err := d.Do(http.MethodPut, "/api/v0/lists/"+listID, req)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&updated)).To(gomega.Succeed())

	return updated
}

// DeleteList soft-deletes a list through the API
func (d *DaemonTestHelper) DeleteList(listID string) {
	resp, err := d.Do(http.MethodDelete, "/api/v0/lists/"+listID, nil)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusNoContent))
}

// AddItem creates an item on a list through the API and returns it
func (d *DaemonTestHelper) AddItem(listID, name string) model.Item {
	var created model.Item

	resp, err := d.Do(http.MethodPost, "/api/v0/lists/"+listID+"/items", v0.CreateItemRequest{Name: name})
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusCreated))
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&created)).To(gomega.Succeed())

	return created
}

// ToggleItem flips an item's completion state through the API
func (d *DaemonTestHelper) ToggleItem(listID, itemID string) model.Item {
	var toggled model.Item

	resp, err := d.Do(http.MethodPost, "/api/v0/lists/"+listID+"/items/"+itemID+"/toggle", nil)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&toggled)).To(gomega.Succeed())

	return toggled
}

// FetchLists decodes GET /api/v0/lists
func (d *DaemonTestHelper) FetchLists() ([]model.List, error) {
	resp, err := d.GetLists()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lists returned %d", resp.StatusCode)
	}

	var out v0.ListCollectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Lists, nil
}

// FetchList decodes GET /api/v0/lists/{listID}
func (d *DaemonTestHelper) FetchList(listID string) (model.List, error) {
	var out model.List

	resp, err := d.Do(http.MethodGet, "/api/v0/lists/"+listID, nil)
	if err != nil {
		return out, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("list returned %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

// WaitForList waits until a list with the given name is visible and
// returns it.
func (d *DaemonTestHelper) WaitForList(name string, timeout time.Duration) model.List {
	var found model.List

	gomega.Eventually(func() bool {
		lists, err := d.FetchLists()
		if err != nil {
			return false
		}
		for _, l := range lists {
			if l.Name == name {
				found = l
				return true
			}
		}
		return false
	}, timeout, pollEvery).Should(gomega.BeTrue(), "list %q should become visible", name)

	return found
}

// WaitForListCount waits until exactly n lists are visible and returns
// them.
func (d *DaemonTestHelper) WaitForListCount(n int, timeout time.Duration) []model.List {
	var lists []model.List

	gomega.Eventually(func() (int, error) {
		var err error
		lists, err = d.FetchLists()
		if err != nil {
			return 0, err
		}
		return len(lists), nil
	}, timeout, pollEvery).Should(gomega.Equal(n), "daemon should see %d lists", n)

	return lists
}

// WaitForItem waits until the named item appears on the list and
// returns it.
func (d *DaemonTestHelper) WaitForItem(listID, itemName string, timeout time.Duration) model.Item {
	var found model.Item

	gomega.Eventually(func() bool {
		list, err := d.FetchList(listID)
		if err != nil {
			return false
		}
		for _, it := range list.Items {
			if it.Name == itemName {
				found = it
				return true
			}
		}
		return false
	}, timeout, pollEvery).Should(gomega.BeTrue(), "item %q should become visible on list %s", itemName, listID)

	return found
}

// DaemonConfigOptions selects the optional blocks of a generated
// daemon configuration.
type DaemonConfigOptions struct {
	// Principal signs the daemon in at startup instead of through the
	// API.
	Principal string

	// SQLitePath switches the local store from memory to SQLite.
	SQLitePath string

	// StatusFile overrides where the status document is written. A
	// path inside the daemon's directory is generated when empty.
	StatusFile string

	// AuthSecret enables bearer authentication with the given secret.
	AuthSecret string

	// PollInterval overrides how often the daemon polls the shared
	// database. Defaults to 200ms to keep specs fast.
	PollInterval string
}

// WriteDaemonConfig writes a config file pointing at the shared
// database into dir and returns its path. The database password and
// the optional API secret are written next to it.
func WriteDaemonConfig(dir string, pg *SharedPostgres, opts *DaemonConfigOptions) string {
	if opts == nil {
		opts = &DaemonConfigOptions{}
	}

	passwordFile := filepath.Join(dir, "db-password")
	err := os.WriteFile(passwordFile, []byte(pg.Password), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	configContent := ""

	if opts.Principal != "" {
		configContent += fmt.Sprintf(`principal:
  id: %s

`, opts.Principal)
	}

	if opts.SQLitePath != "" {
		configContent += fmt.Sprintf(`localStore:
  sqlite:
    path: %s

`, opts.SQLitePath)
	}

	pollInterval := opts.PollInterval
	if pollInterval == "" {
		pollInterval = "200ms"
	}
	configContent += fmt.Sprintf(`remoteStore:
  pollInterval: %s
  postgres:
    host: %s
    port: %d
    user: %s
    passwordFile: %s
    database: %s
    sslMode: disable
    maxConns: 4
`, pollInterval, pg.Host, pg.Port, pg.User, passwordFile, pg.Database)

	// Without an explicit path the daemon would write its status
	// document relative to the test working directory.
	statusFile := opts.StatusFile
	if statusFile == "" {
		statusFile = filepath.Join(dir, "status.json")
	}
	configContent += fmt.Sprintf(`
sync:
  statusFile: %s
`, statusFile)

	if opts.AuthSecret != "" {
		secretFile := filepath.Join(dir, "api-secret")
		err := os.WriteFile(secretFile, []byte(opts.AuthSecret), 0600)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		configContent += fmt.Sprintf(`
api:
  auth:
    secretFile: %s
`, secretFile)
	}

	configPath := filepath.Join(dir, "config.yaml")
	err = os.WriteFile(configPath, []byte(configContent), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return configPath
}

// FreePort asks the kernel for an unused TCP port
func FreePort() int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = l.Close()
	}()
	return l.Addr().(*net.TCPAddr).Port
}

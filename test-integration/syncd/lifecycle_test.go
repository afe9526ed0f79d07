package integration

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kmjayadeep/baskit-sub000/internal/auth"
	"github.com/kmjayadeep/baskit-sub000/internal/status"
	"github.com/kmjayadeep/baskit-sub000/test-integration/syncd/helpers"
)

var _ = Describe("Daemon Lifecycle", Label("lifecycle"), func() {
	var tempDir string

	BeforeEach(func() {
		sharedPG.Reset(ctx)
		tempDir = createTempDir("lifecycle-test-")
	})

	AfterEach(func() {
		cleanupTempDir(tempDir)
	})

	It("keeps lists across a restart with a sqlite local store", func() {
		dir := filepath.Join(tempDir, "device-a")
		Expect(os.MkdirAll(dir, 0750)).To(Succeed())
		configPath := helpers.WriteDaemonConfig(dir, sharedPG, &helpers.DaemonConfigOptions{
			SQLitePath: filepath.Join(dir, "baskit.db"),
		})

		daemon := helpers.NewDaemonTestHelper(ctx, configPath, helpers.FreePort())
		Expect(daemon.StartDaemon()).To(Succeed())
		daemon.WaitForDaemonReady(10 * time.Second)

		daemon.SignIn("alice")
		list := daemon.CreateList("groceries")
		daemon.AddItem(list.ID, "milk")
		Expect(daemon.StopDaemon()).To(Succeed())

		// A fresh process over the same database file serves the data
		// before anyone signs in or any sync runs.
		restarted := helpers.NewDaemonTestHelper(ctx, configPath, helpers.FreePort())
		Expect(restarted.StartDaemon()).To(Succeed())
		defer stopDaemon(restarted)
		restarted.WaitForDaemonReady(10 * time.Second)

		kept := restarted.WaitForList("groceries", 5*time.Second)
		Expect(kept.ID).To(Equal(list.ID))

		full, err := restarted.FetchList(list.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(full.Items).To(HaveLen(1))
		Expect(full.Items[0].Name).To(Equal("milk"))
	})

	It("records sync progress in the status file", func() {
		dir := filepath.Join(tempDir, "device-a")
		Expect(os.MkdirAll(dir, 0750)).To(Succeed())
		statusFile := filepath.Join(dir, "status.json")
		configPath := helpers.WriteDaemonConfig(dir, sharedPG, &helpers.DaemonConfigOptions{
			StatusFile: statusFile,
		})

		daemon := helpers.NewDaemonTestHelper(ctx, configPath, helpers.FreePort())
		Expect(daemon.StartDaemon()).To(Succeed())
		defer stopDaemon(daemon)
		daemon.WaitForDaemonReady(10 * time.Second)

		daemon.SignIn("alice")
		daemon.CreateList("groceries")

		Eventually(func() (status.Document, error) {
			var doc status.Document
			raw, err := os.ReadFile(statusFile)
			if err != nil {
				return doc, err
			}
			err = json.Unmarshal(raw, &doc)
			return doc, err
		}, 10*time.Second, 200*time.Millisecond).Should(SatisfyAll(
			HaveField("State", status.StateSynced),
			HaveField("PrincipalID", "alice"),
			HaveField("ListCount", 1),
			HaveField("LastSyncedAt", Not(BeNil())),
		))
	})

	It("signs the daemon in from a configured principal", func() {
		daemon := startDaemon(tempDir, "device-a", &helpers.DaemonConfigOptions{
			Principal: "alice",
		})
		defer stopDaemon(daemon)

		daemon.WaitForState(status.StateSynced, 15*time.Second)

		st, err := daemon.FetchSyncStatus()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.PrincipalID).To(Equal("alice"))
	})

	It("requires a bearer token when auth is configured", func() {
		// The middleware refuses secrets shorter than 32 bytes.
		const secret = "integration-test-secret-0123456789abcdef"
		daemon := startDaemon(tempDir, "device-a", &helpers.DaemonConfigOptions{
			AuthSecret: secret,
		})
		defer stopDaemon(daemon)

		// Health stays public.
		resp, err := daemon.GetHealth()
		Expect(err).NotTo(HaveOccurred())
		_ = resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		// The control surface is not.
		resp, err = daemon.GetLists()
		Expect(err).NotTo(HaveOccurred())
		_ = resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Bearer"))

		token, err := auth.Mint("alice", time.Hour, []byte(secret))
		Expect(err).NotTo(HaveOccurred())
		daemon.UseToken(token)

		lists, err := daemon.FetchLists()
		Expect(err).NotTo(HaveOccurred())
		Expect(lists).To(BeEmpty())
	})
})

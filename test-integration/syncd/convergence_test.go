package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/test-integration/syncd/helpers"
)

var _ = Describe("Cross Device Convergence", Label("convergence"), func() {
	var (
		tempDir string
		deviceA *helpers.DaemonTestHelper
		deviceB *helpers.DaemonTestHelper
	)

	BeforeEach(func() {
		sharedPG.Reset(ctx)
		tempDir = createTempDir("convergence-test-")

		deviceA = startDaemon(tempDir, "device-a", nil)
		deviceB = startDaemon(tempDir, "device-b", nil)

		deviceA.SignIn("alice")
		deviceB.SignIn("alice")
	})

	AfterEach(func() {
		stopDaemon(deviceA)
		stopDaemon(deviceB)
		cleanupTempDir(tempDir)
	})

	It("propagates a list created on one device to the other", func() {
		created := deviceA.CreateList("groceries")

		synced := deviceB.WaitForList("groceries", 10*time.Second)
		Expect(synced.ID).To(Equal(created.ID))
		Expect(synced.OwnerID).To(Equal("alice"))
		Expect(synced.Members).To(ContainElement("alice"))
	})

	It("merges items added on both devices into the same list", func() {
		list := deviceA.CreateList("groceries")
		deviceB.WaitForList("groceries", 10*time.Second)

		deviceA.AddItem(list.ID, "milk")
		deviceB.AddItem(list.ID, "eggs")

		// Both devices end up with the union of the two edits.
		deviceA.WaitForItem(list.ID, "eggs", 10*time.Second)
		deviceB.WaitForItem(list.ID, "milk", 10*time.Second)
	})

	It("propagates a rename to the other device", func() {
		list := deviceA.CreateList("groceries")
		deviceB.WaitForList("groceries", 10*time.Second)

		deviceA.RenameList(list.ID, "weekend shopping")

		renamed := deviceB.WaitForList("weekend shopping", 10*time.Second)
		Expect(renamed.ID).To(Equal(list.ID))
	})

	It("makes a shared list visible to the member's device", func() {
		list := deviceA.CreateList("family")
		deviceB.WaitForList("family", 10*time.Second)

		deviceC := startDaemon(tempDir, "device-c", nil)
		defer stopDaemon(deviceC)
		deviceC.SignIn("bob")

		// Bob cannot see the list until alice shares it.
		Consistently(func() ([]model.List, error) {
			return deviceC.FetchLists()
		}, time.Second, 200*time.Millisecond).Should(BeEmpty())

		deviceA.ShareList(list.ID, "family", []string{"bob"})

		shared := deviceC.WaitForList("family", 10*time.Second)
		Expect(shared.ID).To(Equal(list.ID))
		Expect(shared.OwnerID).To(Equal("alice"))
		Expect(shared.Members).To(ContainElements("alice", "bob"))
	})
})

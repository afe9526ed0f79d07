package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/test-integration/syncd/helpers"
)

// The offline half of a scenario is simulated through the sync control
// endpoints: a paused daemon keeps accepting local writes, and resuming
// replays them against whatever the other device pushed meanwhile.
var _ = Describe("Offline Reconciliation", Label("conflict"), func() {
	var (
		tempDir string
		deviceA *helpers.DaemonTestHelper
		deviceB *helpers.DaemonTestHelper
	)

	BeforeEach(func() {
		sharedPG.Reset(ctx)
		tempDir = createTempDir("conflict-test-")

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

	It("reconciles lists created while a device was offline", func() {
		deviceB.StopSync()

		deviceA.CreateList("from-a")
		deviceB.CreateList("from-b")

		// The paused device stays blind to the other one's list.
		Consistently(func() ([]model.List, error) {
			return deviceB.FetchLists()
		}, time.Second, 200*time.Millisecond).Should(HaveLen(1))

		deviceB.ResumeSync()

		listsB := deviceB.WaitForListCount(2, 10*time.Second)
		listsA := deviceA.WaitForListCount(2, 10*time.Second)

		names := func(lists []model.List) []string {
			out := make([]string, len(lists))
			for i, l := range lists {
				out[i] = l.Name
			}
			return out
		}
		Expect(names(listsA)).To(ConsistOf("from-a", "from-b"))
		Expect(names(listsB)).To(ConsistOf("from-a", "from-b"))
	})

	It("unions items added on both sides while offline", func() {
		list := deviceA.CreateList("groceries")
		deviceB.WaitForList("groceries", 10*time.Second)

		deviceB.StopSync()

		deviceA.AddItem(list.ID, "milk")
		deviceB.AddItem(list.ID, "eggs")

		deviceB.ResumeSync()

		mergedA := deviceA.WaitForItem(list.ID, "eggs", 10*time.Second)
		Expect(mergedA.Name).To(Equal("eggs"))
		mergedB := deviceB.WaitForItem(list.ID, "milk", 10*time.Second)
		Expect(mergedB.Name).To(Equal("milk"))

		// Neither side lost its own edit.
		current, err := deviceA.FetchList(list.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(current.Items).To(HaveLen(2))
	})

	It("resolves a rename conflict in favor of the latest write", func() {
		list := deviceA.CreateList("groceries")
		deviceB.WaitForList("groceries", 10*time.Second)

		deviceB.StopSync()

		// Two divergent renames; the offline device writes last.
		deviceA.RenameList(list.ID, "from-a")
		deviceB.RenameList(list.ID, "from-b")

		deviceB.ResumeSync()

		converged := deviceA.WaitForList("from-b", 10*time.Second)
		Expect(converged.ID).To(Equal(list.ID))

		kept, err := deviceB.FetchList(list.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(kept.Name).To(Equal("from-b"))
	})
})

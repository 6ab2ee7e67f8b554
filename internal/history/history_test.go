package history_test

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/vaultsync/internal/history"
	"github.com/skaphos/vaultsync/internal/model"
)

var _ = Describe("History", func() {
	It("saves and loads the log", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "history.yaml")
		h := &history.History{}
		h.Append(history.Record{At: time.Now(), Vault: "/vault", Op: "sync", OK: true, Pulled: 2})
		Expect(history.Save(h, path)).To(Succeed())

		loaded, err := history.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Records).To(HaveLen(1))
		Expect(loaded.Records[0].Pulled).To(Equal(2))
		Expect(loaded.Records[0].ID).NotTo(BeEmpty())
	})

	It("treats a missing file as an empty log", func() {
		loaded, err := history.Load(filepath.Join(GinkgoT().TempDir(), "absent.yaml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Records).To(BeEmpty())
	})

	It("builds records from verdicts", func() {
		at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
		v := model.SyncVerdict{OK: true, Message: "synced", Pulled: 1, Pushed: 3}
		record := history.FromVerdict("/vault", "sync", at, v)
		Expect(record.ID).NotTo(BeEmpty())
		Expect(record.At).To(Equal(at))
		Expect(record.Op).To(Equal("sync"))
		Expect(record.Pushed).To(Equal(3))
	})

	It("caps the log at the record limit", func() {
		h := &history.History{}
		for i := 0; i < 250; i++ {
			h.Append(history.Record{At: time.Now(), Vault: "/vault", Op: "push"})
		}
		Expect(h.Records).To(HaveLen(200))
	})

	It("prunes records older than the threshold", func() {
		h := &history.History{}
		h.Append(history.Record{At: time.Now().Add(-48 * time.Hour), Vault: "/vault", Op: "sync"})
		h.Append(history.Record{At: time.Now(), Vault: "/vault", Op: "sync"})
		Expect(h.Prune(24 * time.Hour)).To(Equal(1))
		Expect(h.Records).To(HaveLen(1))
	})

	It("returns the newest record per vault", func() {
		h := &history.History{}
		h.Append(history.Record{At: time.Now(), Vault: "/a", Op: "pull", Message: "first"})
		h.Append(history.Record{At: time.Now(), Vault: "/b", Op: "push", Message: "other vault"})
		h.Append(history.Record{At: time.Now(), Vault: "/a", Op: "sync", Message: "latest"})

		last := h.Last("/a")
		Expect(last).NotTo(BeNil())
		Expect(last.Message).To(Equal("latest"))
		Expect(h.Last("/missing")).To(BeNil())
		Expect(h.ForVault("/a")).To(HaveLen(2))
	})
})

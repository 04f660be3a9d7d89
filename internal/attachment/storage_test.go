package attachment_test

import (
	"context"
	"io"
	"strings"

	"github.com/frahmantamala/spm-sp2d/internal/attachment"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("LocalStore", func() {
	var (
		store *attachment.LocalStore
		ctx   context.Context
	)

	ginkgo.BeforeEach(func() {
		var err error
		store, err = attachment.NewLocalStore(ginkgo.GinkgoT().TempDir())
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		ctx = context.Background()
	})

	ginkgo.It("round-trips content by key", func() {
		n, err := store.Put(ctx, "1/2/abc_kwitansi.pdf", strings.NewReader("kwitansi"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(n).To(gomega.Equal(int64(8)))

		r, err := store.Open(ctx, "1/2/abc_kwitansi.pdf")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		defer r.Close()
		gomega.Expect(io.ReadAll(r)).To(gomega.Equal([]byte("kwitansi")))
	})

	ginkgo.It("overwrites an existing key", func() {
		_, err := store.Put(ctx, "1/2/a.pdf", strings.NewReader("first"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		_, err = store.Put(ctx, "1/2/a.pdf", strings.NewReader("second"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		r, err := store.Open(ctx, "1/2/a.pdf")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		defer r.Close()
		gomega.Expect(io.ReadAll(r)).To(gomega.Equal([]byte("second")))
	})

	ginkgo.DescribeTable("rejects keys escaping the root",
		func(key string) {
			_, err := store.Put(ctx, key, strings.NewReader("x"))
			gomega.Expect(err).To(gomega.MatchError(attachment.ErrInvalidKey))
		},
		ginkgo.Entry("parent traversal", "../../etc/passwd"),
		ginkgo.Entry("nested traversal", "1/../../x"),
		ginkgo.Entry("absolute path", "/etc/passwd"),
		ginkgo.Entry("empty key", ""),
	)

	ginkgo.It("deletes idempotently", func() {
		_, err := store.Put(ctx, "3/4/b.png", strings.NewReader("png"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(store.Delete(ctx, "3/4/b.png")).To(gomega.Succeed())
		gomega.Expect(store.Delete(ctx, "3/4/b.png")).To(gomega.Succeed())

		_, err = store.Open(ctx, "3/4/b.png")
		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})

var _ = ginkgo.DescribeTable("SanitizeFileName",
	func(in, want string) {
		gomega.Expect(attachment.SanitizeFileName(in)).To(gomega.Equal(want))
	},
	ginkgo.Entry("keeps safe names", "SPM-001_final.pdf", "SPM-001_final.pdf"),
	ginkgo.Entry("replaces spaces", "bukti bayar.jpg", "bukti_bayar.jpg"),
	ginkgo.Entry("drops directories", "../../secret.pdf", "secret.pdf"),
	ginkgo.Entry("drops windows directories", `C:\Users\bendahara\scan.png`, "scan.png"),
	ginkgo.Entry("falls back for empty names", "...", "file"),
)

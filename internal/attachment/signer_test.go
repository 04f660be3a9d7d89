package attachment

import (
	"net/url"
	"time"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("URLSigner", func() {
	var (
		signer *URLSigner
		now    time.Time
	)

	tokenOf := func(signed SignedURL) string {
		u, err := url.Parse(signed.URL)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		return u.Query().Get("token")
	}

	ginkgo.BeforeEach(func() {
		now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		signer = NewURLSigner("secret", 10*time.Minute, "http://localhost:8080")
		signer.now = func() time.Time { return now }
	})

	ginkgo.It("round-trips the attachment and user", func() {
		signed, err := signer.Sign(42, 7)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(signed.ExpiresAt).To(gomega.Equal(now.Add(10 * time.Minute)))

		claims, err := signer.Parse(tokenOf(signed))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(claims.AttachmentID).To(gomega.Equal(int64(42)))
		gomega.Expect(claims.Subject).To(gomega.Equal("7"))
	})

	ginkgo.It("expires after the ttl", func() {
		signed, err := signer.Sign(42, 7)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		now = now.Add(11 * time.Minute)
		_, err = signer.Parse(tokenOf(signed))
		gomega.Expect(err).To(gomega.MatchError(internal.ErrTokenExpired))
	})

	ginkgo.It("rejects garbage", func() {
		_, err := signer.Parse("not-a-token")
		gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))
	})
})

package classify_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tmdnlcl/relay-worker/api/types"
	"github.com/tmdnlcl/relay-worker/internal/classify"
	"github.com/tmdnlcl/relay-worker/internal/config"
)

var _ = Describe("Classifier", func() {
	var c *classify.Classifier

	BeforeEach(func() {
		c = classify.New(config.PatternConfig{
			HashTag:       "#Tag",
			InstantOpen:   ">>",
			InstantClose:  "<<",
			ArchivePrefix: "//",
		})
	})

	Context("instant mode", func() {
		It("matches a hashtag with a marker span anywhere in the body", func() {
			body := "intro #Tag >>hello world<<"
			Expect(c.Match(types.ModeInstant, body)).To(BeTrue())
			Expect(c.Extract(body)).To(Equal([]string{"hello world"}))
		})

		It("requires the hashtag", func() {
			Expect(c.Match(types.ModeInstant, "intro >>hello world<<")).To(BeFalse())
		})

		It("requires a non-empty marker span", func() {
			Expect(c.Match(types.ModeInstant, "#Tag >><<")).To(BeFalse())
			Expect(c.Match(types.ModeInstant, "#Tag >>open only")).To(BeFalse())
		})

		It("replaces every span with its converted text", func() {
			out := c.Render(types.ModeInstant, "#Tag >>dkssud<< and >>gksrmf<<")
			Expect(out).To(Equal("#Tag 안녕 and 한글"))
		})

		It("keeps unmappable words inside a span", func() {
			Expect(c.Render(types.ModeInstant, ">>gksrmf 42<< #Tag")).To(Equal("한글 42 #Tag"))
		})
	})

	Context("archive mode", func() {
		It("matches and strips the prefix", func() {
			Expect(c.Match(types.ModeArchive, "//saved text")).To(BeTrue())
			Expect(c.Render(types.ModeArchive, "//saved text")).To(Equal("saved text"))
		})

		It("requires the prefix at the start", func() {
			Expect(c.Match(types.ModeArchive, "saved // text")).To(BeFalse())
		})
	})

	It("ignores unknown modes", func() {
		Expect(c.Match(types.Mode(0), "//saved text")).To(BeFalse())
	})
})

package fxfer

import (
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/derektruong/fxfer-upload/internal/fileinput"
)

var _ = Describe("fileRule", func() {
	var (
		rule *fileRule
		d    fileinput.Descriptor
	)

	BeforeEach(func() {
		rule = &fileRule{}
		size := int64(2 << 30) // 2 GiB
		d = fileinput.Descriptor{
			Name:         "Tên file.mov",
			Type:         "video/quicktime",
			LastModified: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Size:         &size,
		}
	})

	It("returns an error when file size exceeds the maximum allowed size", func() {
		rule.MaxFileSize = 1 << 30 // 1 GiB
		Expect(rule.Check(d)).To(MatchError(ContainSubstring("exceeds the maximum")))
	})

	It("returns an error when file size is below the minimum required size", func() {
		rule.MinFileSize = 3 << 30 // 3 GiB
		Expect(rule.Check(d)).To(MatchError(ContainSubstring("does not meet the minimum")))
	})

	It("skips size checks for streaming input of unknown size", func() {
		rule.MaxFileSize = 1
		d.Size = nil
		Expect(rule.Check(d)).To(Succeed())
	})

	It("rejects an extension not on the whitelist", func() {
		rule.ExtensionWhitelist = []string{"png", "jpg"}
		Expect(rule.Check(d)).To(MatchError(ContainSubstring("not allowed")))
	})

	It("accepts an extension on the whitelist regardless of case", func() {
		rule.ExtensionWhitelist = []string{"MOV"}
		Expect(rule.Check(d)).To(Succeed())
	})

	It("rejects a blacklisted extension", func() {
		rule.ExtensionBlacklist = []string{"mov"}
		Expect(rule.Check(d)).To(MatchError(ContainSubstring("blocked")))
	})

	It("rejects a file modified before the required time", func() {
		rule.ModifiedAfter = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		Expect(rule.Check(d)).To(MatchError(ContainSubstring("modified after")))
	})

	It("rejects a file modified after the required time", func() {
		rule.ModifiedBefore = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		Expect(rule.Check(d)).To(MatchError(ContainSubstring("modified before")))
	})

	It("rejects a file name not matching the required pattern", func() {
		rule.FileNamePattern = regexp.MustCompile(`^report-\d+`)
		Expect(rule.Check(d)).To(MatchError(ContainSubstring("does not match")))
	})

	It("accepts a file satisfying every configured rule", func() {
		rule.MaxFileSize = 3 << 30
		rule.MinFileSize = 1 << 30
		rule.ExtensionWhitelist = []string{"mov"}
		Expect(rule.Check(d)).To(Succeed())
	})
})

package awssig_test

import (
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/derektruong/fxfer-upload/internal/awssig"
)

var _ = Describe("BuildCanonicalString", func() {
	fixedNow := func() (string, string) { return "20260730T120000Z", "20260730" }

	It("produces the canonical string, one line per x- header, for an empty-body request", func() {
		headers := http.Header{}
		headers.Set("X-Amz-Content-Sha256", awssig.EmptyBodySHA256)
		headers.Set("X-Amz-Date", "20260730T120000Z")

		canonical, timestamp := awssig.BuildCanonicalString(awssig.CanonicalRequest{
			Method: "POST", Bucket: "my-bucket", Key: "path/to/object",
			Region: "us-east-1", Host: "s3.amazonaws.com", Query: "uploads=",
			Headers: headers, Now: fixedNow,
		})

		Expect(timestamp).To(Equal("20260730T120000Z"))

		lines := strings.Split(canonical, "\n")
		Expect(lines).To(HaveLen(12))
		Expect(lines[0]).To(Equal("AWS4-HMAC-SHA256"))
		Expect(lines[1]).To(Equal("20260730T120000Z"))
		Expect(lines[2]).To(Equal("20260730/us-east-1/s3/aws4_request"))
		Expect(lines[3]).To(Equal("POST"))
		Expect(lines[4]).To(Equal("/my-bucket/path/to/object"))
		Expect(lines[5]).To(Equal("uploads="))
		Expect(lines[6]).To(Equal("host:s3.amazonaws.com"))
		Expect(lines[7]).To(Equal("x-amz-content-sha256:" + awssig.EmptyBodySHA256))
		Expect(lines[8]).To(Equal("x-amz-date:20260730T120000Z"))
		Expect(lines[9]).To(Equal(""))
		Expect(lines[10]).NotTo(Equal(""))
	})

	It("agrees between line 2's timestamp and line 3's date stamp", func() {
		canonical, timestamp := awssig.BuildCanonicalString(awssig.CanonicalRequest{
			Method: "PUT", Bucket: "b", Key: "k", Region: "eu-west-1",
			Host: "h", Now: fixedNow,
		})
		lines := strings.Split(canonical, "\n")
		Expect(lines[1]).To(Equal(timestamp))
		Expect(lines[2]).To(HavePrefix(timestamp[:8]))
	})

	It("sorts x-amz headers and lists host first among signed headers", func() {
		headers := http.Header{}
		headers.Set("X-Amz-Date", "20260730T120000Z")
		headers.Set("X-Amz-Acl", "private")
		headers.Set("Content-Type", "application/octet-stream") // not an x- header, excluded

		canonical, _ := awssig.BuildCanonicalString(awssig.CanonicalRequest{
			Method: "POST", Bucket: "b", Key: "k", Region: "us-east-1",
			Host: "h", Headers: headers, Now: fixedNow,
		})
		lines := strings.Split(canonical, "\n")

		// host, then x-amz-acl, then x-amz-date (alphabetical), then blank,
		// then signed-header list, then body hash: 6 header-ish lines after
		// the first 6 fixed lines.
		Expect(lines[6]).To(Equal("host:h"))
		Expect(lines[7]).To(Equal("x-amz-acl:private"))
		Expect(lines[8]).To(Equal("x-amz-date:20260730T120000Z"))
		Expect(lines[9]).To(Equal(""))
		Expect(lines[10]).To(Equal("host;x-amz-acl;x-amz-date"))
		Expect(lines[11]).To(Equal(awssig.EmptyBodySHA256))
	})

	It("hashes a non-empty body instead of using the empty-body constant", func() {
		canonical, _ := awssig.BuildCanonicalString(awssig.CanonicalRequest{
			Method: "PUT", Bucket: "b", Key: "k", Region: "us-east-1",
			Host: "h", Body: []byte("hello"), Now: fixedNow,
		})
		lines := strings.Split(canonical, "\n")
		Expect(lines[len(lines)-1]).NotTo(Equal(awssig.EmptyBodySHA256))
		Expect(lines[len(lines)-1]).To(HaveLen(64))
	})
})

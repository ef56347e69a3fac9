package awssig_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/derektruong/fxfer-upload/internal/awssig"
	"github.com/derektruong/fxfer-upload/internal/xferio"
)

func respondWith(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

var _ = Describe("ClassifyResponse", func() {
	adapter := xferio.NewDefaultAdapter(nil)

	It("recognizes a well-formed S3 error document", func() {
		body := []byte(`<Error><Code>NoSuchUpload</Code><Message>Upload not found</Message></Error>`)
		doc, err := adapter.ParseXML(body)
		Expect(err).NotTo(HaveOccurred())
		code, ok := doc.FirstText("Code")
		Expect(ok).To(BeTrue())
		Expect(code).To(Equal("NoSuchUpload"))
	})

	It("classifies a 4xx status as a client-fault API error with the S3 error code", func() {
		server := respondWith(404, `<Error><Code>NoSuchUpload</Code><Message>gone</Message></Error>`)
		defer server.Close()

		resp, err := adapter.HTTPRequest(context.Background(), server.URL, http.MethodGet, nil, nil, 0)
		Expect(err).NotTo(HaveOccurred())

		classified := awssig.ClassifyResponse(adapter, resp)
		Expect(awssig.IsErrorCode(classified, "NoSuchUpload")).To(BeTrue())
	})

	It("classifies a 5xx status as a server-fault API error with the S3 error code", func() {
		server := respondWith(500, `<Error><Code>InternalError</Code><Message>oops</Message></Error>`)
		defer server.Close()

		resp, err := adapter.HTTPRequest(context.Background(), server.URL, http.MethodGet, nil, nil, 0)
		Expect(err).NotTo(HaveOccurred())

		classified := awssig.ClassifyResponse(adapter, resp)
		Expect(awssig.IsErrorCode(classified, "InternalError")).To(BeTrue())
		Expect(awssig.IsErrorCode(classified, "NoSuchUpload")).To(BeFalse())
	})

	It("falls back to a plain status error when the body isn't a recognizable error document", func() {
		server := respondWith(502, `<html>bad gateway</html>`)
		defer server.Close()

		resp, err := adapter.HTTPRequest(context.Background(), server.URL, http.MethodGet, nil, nil, 0)
		Expect(err).NotTo(HaveOccurred())

		classified := awssig.ClassifyResponse(adapter, resp)
		Expect(classified).To(HaveOccurred())
		Expect(awssig.IsErrorCode(classified, "InternalError")).To(BeFalse())
	})
})

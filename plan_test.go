package fxfer

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("computePlan", func() {
	Describe("AWS protocol", func() {
		It("floors the part size at 5 MiB for small known sizes", func() {
			size := int64(1 << 20) // 1 MiB
			plan, err := computePlan(&size, UploadInfo{HandleID: "h1", Bucket: Bucket{Host: "s3.example.com", Name: "b", Region: "us-east-1"}, Key: "k"})
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.Mode).To(Equal(ModeAws))
			Expect(plan.BlockSize).To(Equal(int64(awsMinBlockSize)))
			Expect(*plan.BlockCount).To(Equal(1))
		})

		It("scales the part size up to stay within 10000 parts for large sizes", func() {
			size := int64(100) * 1024 * 1024 * 1024 // 100 GiB
			plan, err := computePlan(&size, UploadInfo{HandleID: "h1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.BlockSize).To(BeNumerically(">", int64(awsMinBlockSize)))
			Expect(*plan.BlockCount).To(BeNumerically("<=", awsMaxParts))
		})

		It("defers block count until end-of-stream for unknown sizes", func() {
			plan, err := computePlan(nil, UploadInfo{HandleID: "h1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.BlockSize).To(Equal(int64(unknownSizeBlock)))
			Expect(plan.BlockCount).To(BeNil())
		})
	})

	Describe("PUT protocol", func() {
		It("uses the server-supplied block size when given", func() {
			size := int64(30 * mib)
			blockSize := int64(10 * mib)
			plan, err := computePlan(&size, UploadInfo{PutURL: "https://up.example.com", BlockSize: &blockSize})
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.Mode).To(Equal(ModePut))
			Expect(plan.BlockSize).To(Equal(blockSize))
			Expect(*plan.BlockCount).To(Equal(3))
		})

		It("uploads as a single block when the server supplies no block size", func() {
			size := int64(12345)
			plan, err := computePlan(&size, UploadInfo{PutURL: "https://up.example.com"})
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.BlockSize).To(Equal(size))
			Expect(*plan.BlockCount).To(Equal(1))
		})

		It("errors when size and server block size are both unknown", func() {
			_, err := computePlan(nil, UploadInfo{PutURL: "https://up.example.com"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("AWS discriminator precedence", func() {
		It("prefers the AWS shape when both HandleID and PutURL are present", func() {
			size := int64(mib)
			plan, err := computePlan(&size, UploadInfo{HandleID: "h1", PutURL: "https://up.example.com"})
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.Mode).To(Equal(ModeAws))
		})
	})

	It("rejects a handshake response matching neither shape", func() {
		size := int64(mib)
		_, err := computePlan(&size, UploadInfo{})
		Expect(err).To(MatchError(ErrProtocolUnrecognized))
	})
})

var _ = Describe("blockRange", func() {
	It("clamps the final block to the file size", func() {
		start, end := blockRange(2, 10, 25)
		Expect(start).To(Equal(int64(20)))
		Expect(end).To(Equal(int64(25)))
	})

	It("returns a full-width range for interior blocks", func() {
		start, end := blockRange(1, 10, 25)
		Expect(start).To(Equal(int64(10)))
		Expect(end).To(Equal(int64(20)))
	})
})

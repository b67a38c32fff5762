package extraction

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("prepareImageData", func() {
	It("passes PNG payloads through unchanged", func() {
		data := testPNG()
		out, err := prepareImageData(data, "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(data))
	})

	It("converts JPEG payloads to PNG", func() {
		out, err := prepareImageData(testJPEG(), "image/jpeg")
		Expect(err).NotTo(HaveOccurred())

		_, err = png.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
	})

	It("defaults an empty content type to JPEG handling", func() {
		out, err := prepareImageData(testJPEG(), "")
		Expect(err).NotTo(HaveOccurred())

		_, err = png.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects undecodable payloads", func() {
		_, err := prepareImageData([]byte("garbage"), "image/jpeg")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("isHEICFormat", func() {
	heicHeader := func(brand string) []byte {
		return append([]byte{0, 0, 0, 24, 'f', 't', 'y', 'p'}, []byte(brand)...)
	}

	It("recognizes HEIC brands in the ftyp box", func() {
		Expect(isHEICFormat(heicHeader("heic"))).To(BeTrue())
		Expect(isHEICFormat(heicHeader("heif"))).To(BeTrue())
		Expect(isHEICFormat(heicHeader("mif1"))).To(BeTrue())
	})

	It("rejects other payloads", func() {
		Expect(isHEICFormat(testPNG())).To(BeFalse())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})
})

package expense

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
	var (
		store     *mockStore
		extractor *mockExtractor
		idGen     *mockIDGenerator
		clock     *mockTimeSource
		server    *Server
	)

	BeforeEach(func() {
		store = newMockStore()
		extractor = newMockExtractor()
		idGen = &mockIDGenerator{id: "test-id-123"}
		clock = &mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
		workflow, err := NewWorkflowWithDeps(store, extractor, idGen, clock)
		Expect(err).NotTo(HaveOccurred())
		server = NewServer(workflow, BasicAuth{})
	})

	do := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var body map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	captureRequest := func() *http.Request {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="receipt.jpg"`)
		header.Set("Content-Type", "image/jpeg")
		part, err := writer.CreatePart(header)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("fake image data"))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		req := httptest.NewRequest("POST", "/api/capture", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req
	}

	saveEdits := func(edits Edits) *httptest.ResponseRecorder {
		body, err := json.Marshal(edits)
		Expect(err).NotTo(HaveOccurred())
		req := httptest.NewRequest("POST", "/api/expenses", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return do(req)
	}

	captureAndSave := func(id, merchant string, cents int64) {
		idGen.id = id
		Expect(do(captureRequest()).Code).To(Equal(http.StatusCreated))
		rec := saveEdits(Edits{
			Merchant:   merchant,
			TotalCents: cents,
			Date:       "2024-01-15",
			Category:   CategoryHealth,
		})
		Expect(rec.Code).To(Equal(http.StatusCreated))
	}

	Describe("GET /", func() {
		It("serves the HTML interface", func() {
			rec := do(httptest.NewRequest("GET", "/", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(ContainSubstring("text/html"))
			Expect(rec.Body.String()).To(ContainSubstring("SnapSpend"))
		})
	})

	Describe("GET /api/expenses", func() {
		It("returns an empty collection with a zero aggregate", func() {
			rec := do(httptest.NewRequest("GET", "/api/expenses", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decode(rec)
			Expect(body["records"]).To(BeEmpty())
			Expect(body["total_cents"]).To(BeEquivalentTo(0))
			Expect(body["total"]).To(Equal("0.00"))
		})

		It("returns saved records with the exact aggregate", func() {
			captureAndSave("id-1", "CVS", 1250)
			captureAndSave("id-2", "Cafe", 749)

			rec := do(httptest.NewRequest("GET", "/api/expenses", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decode(rec)
			Expect(body["records"]).To(HaveLen(2))
			Expect(body["total_cents"]).To(BeEquivalentTo(1999))
			Expect(body["total"]).To(Equal("19.99"))
		})

		It("strips the image payload from the listing", func() {
			captureAndSave("id-1", "CVS", 1250)
			rec := do(httptest.NewRequest("GET", "/api/expenses", nil))
			Expect(rec.Body.String()).NotTo(ContainSubstring("image_data"))
		})
	})

	Describe("POST /api/capture", func() {
		It("returns the extracted draft", func() {
			rec := do(captureRequest())
			Expect(rec.Code).To(Equal(http.StatusCreated))
			body := decode(rec)
			Expect(body["id"]).To(Equal("test-id-123"))
			Expect(body["merchant"]).To(Equal("CVS Pharmacy"))
			Expect(body["total_cents"]).To(BeEquivalentTo(2599))
			Expect(body["category"]).To(Equal("Health"))
		})

		It("returns a draft with an advisory when extraction fails", func() {
			extractor.extractErr = errors.New("model unavailable")
			rec := do(captureRequest())
			Expect(rec.Code).To(Equal(http.StatusCreated))
			body := decode(rec)
			Expect(body["advisory"]).NotTo(BeEmpty())
			Expect(body["merchant"]).To(BeEmpty())
		})

		It("rejects a request without a file", func() {
			var buf bytes.Buffer
			writer := multipart.NewWriter(&buf)
			Expect(writer.Close()).To(Succeed())
			req := httptest.NewRequest("POST", "/api/capture", &buf)
			req.Header.Set("Content-Type", writer.FormDataContentType())

			rec := do(req)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("conflicts while another draft is under review", func() {
			Expect(do(captureRequest()).Code).To(Equal(http.StatusCreated))
			rec := do(captureRequest())
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})
	})

	Describe("POST /api/expenses", func() {
		It("conflicts when no draft is under review", func() {
			rec := saveEdits(Edits{
				Merchant:   "CVS",
				TotalCents: 100,
				Date:       "2024-01-15",
				Category:   CategoryHealth,
			})
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})

		It("saves the reviewed draft and persists it", func() {
			Expect(do(captureRequest()).Code).To(Equal(http.StatusCreated))
			rec := saveEdits(Edits{
				Merchant:   "Edited Merchant",
				TotalCents: 4200,
				Date:       "2024-01-16",
				Category:   CategoryShopping,
				Summary:    "edited",
			})
			Expect(rec.Code).To(Equal(http.StatusCreated))
			body := decode(rec)
			Expect(body["merchant"]).To(Equal("Edited Merchant"))
			Expect(store.records).To(HaveLen(1))
			Expect(store.records[0].Merchant).To(Equal("Edited Merchant"))
		})

		It("rejects invalid fields and keeps the draft", func() {
			Expect(do(captureRequest()).Code).To(Equal(http.StatusCreated))
			rec := saveEdits(Edits{
				Merchant:   "",
				TotalCents: 100,
				Date:       "2024-01-15",
				Category:   CategoryHealth,
			})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			draft := do(httptest.NewRequest("GET", "/api/draft", nil))
			Expect(draft.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /api/cancel", func() {
		It("discards the draft", func() {
			Expect(do(captureRequest()).Code).To(Equal(http.StatusCreated))
			rec := do(httptest.NewRequest("POST", "/api/cancel", nil))
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(store.records).To(BeEmpty())
		})

		It("conflicts when nothing is being edited", func() {
			rec := do(httptest.NewRequest("POST", "/api/cancel", nil))
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})
	})

	Describe("record details", func() {
		BeforeEach(func() {
			captureAndSave("id-1", "CVS", 1250)
		})

		It("opens details for a stored record", func() {
			rec := do(httptest.NewRequest("GET", "/api/expenses/id-1", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["merchant"]).To(Equal("CVS"))
		})

		It("404s for an unknown record", func() {
			rec := do(httptest.NewRequest("GET", "/api/expenses/nope", nil))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("serves the stored image payload", func() {
			rec := do(httptest.NewRequest("GET", "/api/expenses/id-1/image", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/jpeg"))
			Expect(rec.Body.Bytes()).To(Equal([]byte("fake image data")))
		})

		It("re-enters edit mode from details", func() {
			Expect(do(httptest.NewRequest("GET", "/api/expenses/id-1", nil)).Code).To(Equal(http.StatusOK))
			rec := do(httptest.NewRequest("POST", "/api/expenses/id-1/edit", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["id"]).To(Equal("id-1"))
		})

		It("closes details without mutating", func() {
			Expect(do(httptest.NewRequest("GET", "/api/expenses/id-1", nil)).Code).To(Equal(http.StatusOK))
			rec := do(httptest.NewRequest("POST", "/api/done", nil))
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(store.records).To(HaveLen(1))
		})
	})

	Describe("DELETE /api/expenses/{id}", func() {
		BeforeEach(func() {
			captureAndSave("id-1", "CVS", 1250)
			Expect(do(httptest.NewRequest("GET", "/api/expenses/id-1", nil)).Code).To(Equal(http.StatusOK))
		})

		It("deletes when confirmed", func() {
			rec := do(httptest.NewRequest("DELETE", "/api/expenses/id-1?confirmed=true", nil))
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(store.records).To(BeEmpty())
		})

		It("keeps the record when confirmation is declined", func() {
			rec := do(httptest.NewRequest("DELETE", "/api/expenses/id-1?confirmed=false", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["deleted"]).To(Equal(false))
			Expect(store.records).To(HaveLen(1))
		})

		It("conflicts when the record is not the one being viewed", func() {
			rec := do(httptest.NewRequest("DELETE", "/api/expenses/other?confirmed=true", nil))
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})
	})

	Describe("export", func() {
		It("rejects export of an empty collection", func() {
			Expect(do(httptest.NewRequest("GET", "/api/export", nil)).Code).To(Equal(http.StatusBadRequest))
			Expect(do(httptest.NewRequest("GET", "/api/export/mailto", nil)).Code).To(Equal(http.StatusBadRequest))
		})

		It("downloads the tabular export", func() {
			captureAndSave("id-1", "CVS", 1250)
			rec := do(httptest.NewRequest("GET", "/api/export", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(ContainSubstring("text/csv"))
			Expect(rec.Header().Get("Content-Disposition")).To(ContainSubstring("snapspend_export_"))
			Expect(rec.Body.String()).To(HavePrefix("Date,Merchant,Category,Total,Summary,ID"))
			Expect(rec.Body.String()).To(ContainSubstring(`"CVS"`))
		})

		It("returns the mail-compose URI", func() {
			captureAndSave("id-1", "CVS", 1250)
			rec := do(httptest.NewRequest("GET", "/api/export/mailto", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			uri, ok := decode(rec)["uri"].(string)
			Expect(ok).To(BeTrue())
			Expect(uri).To(HavePrefix("mailto:?subject="))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			workflow, err := NewWorkflowWithDeps(store, extractor, idGen, clock)
			Expect(err).NotTo(HaveOccurred())
			server = NewServer(workflow, BasicAuth{Username: "admin", Password: "secret"})
		})

		It("rejects requests without credentials", func() {
			rec := do(httptest.NewRequest("GET", "/api/expenses", nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(rec.Header().Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("rejects wrong credentials", func() {
			req := httptest.NewRequest("GET", "/api/expenses", nil)
			req.SetBasicAuth("admin", "wrong")
			Expect(do(req).Code).To(Equal(http.StatusUnauthorized))
		})

		It("accepts valid credentials", func() {
			req := httptest.NewRequest("GET", "/api/expenses", nil)
			req.SetBasicAuth("admin", "secret")
			Expect(do(req).Code).To(Equal(http.StatusOK))
		})
	})

	Describe("static assets", func() {
		It("serves the stylesheet and script", func() {
			css := do(httptest.NewRequest("GET", "/static/app.css", nil))
			Expect(css.Code).To(Equal(http.StatusOK))
			Expect(css.Header().Get("Content-Type")).To(ContainSubstring("text/css"))

			js := do(httptest.NewRequest("GET", "/static/app.js", nil))
			Expect(js.Code).To(Equal(http.StatusOK))
			Expect(js.Body.String()).To(ContainSubstring("refreshList"))
		})
	})

	It("strings helper keeps declared content types as-is", func() {
		Expect(contentTypeFor(" Image/JPEG ", "x.png")).To(Equal("image/jpeg"))
		Expect(contentTypeFor("", "photo.HEIC")).To(Equal("image/heic"))
		Expect(contentTypeFor("", "scan.pdf")).To(Equal("application/pdf"))
		Expect(contentTypeFor("", "unknown.bin")).To(Equal("application/octet-stream"))
		Expect(strings.HasPrefix(contentTypeFor("", "a.jpg"), "image/")).To(BeTrue())
	})
})

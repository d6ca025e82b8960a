package ingest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/apresai/quizzify/internal/ingest"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Photosynthesis Basics</title></head>
<body>
<article>
<h1>Photosynthesis Basics</h1>
<p>Photosynthesis is the process by which green plants and some other organisms use sunlight to synthesize foods from carbon dioxide and water. It generally involves the green pigment chlorophyll and generates oxygen as a byproduct.</p>
<p>The light-dependent reactions take place in the thylakoid membranes of the chloroplasts, where light energy is converted into chemical energy in the form of ATP and NADPH, releasing oxygen from split water molecules.</p>
<p>The Calvin cycle takes place in the stroma and uses the ATP and NADPH produced by the light reactions to fix carbon dioxide into three-carbon sugars, which the plant then uses to build glucose and other carbohydrates.</p>
</article>
</body></html>`

var _ = Describe("FetchURL", func() {
	var srv *httptest.Server

	BeforeEach(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(articleHTML))
		})
		mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
		srv = httptest.NewServer(mux)
	})

	AfterEach(func() {
		srv.Close()
	})

	It("returns the readable article text as a text upload", func() {
		f, err := ingest.FetchURL(context.Background(), srv.URL+"/article")
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Name).To(HaveSuffix("article.txt"))
		Expect(strings.ContainsAny(f.Name, "/:")).To(BeFalse())
		Expect(string(f.Data)).To(ContainSubstring("Calvin cycle"))
		Expect(ingest.DetectSource(f.Name)).To(Equal(ingest.SourceText))
	})

	It("fails on a non-200 response", func() {
		_, err := ingest.FetchURL(context.Background(), srv.URL+"/missing")
		Expect(err).To(MatchError(ContainSubstring("HTTP 404")))
	})

	It("rejects malformed URLs", func() {
		_, err := ingest.FetchURL(context.Background(), "not a url")
		Expect(err).To(HaveOccurred())
	})
})

package vectorstore

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PGStore", func() {
	DescribeTable("relevance",
		func(distance, want float64) {
			Expect(relevance(distance)).To(BeNumerically("~", want, 1e-9))
		},
		Entry("identical", 0.0, 1.0),
		Entry("orthogonal", 1.0, 0.5),
		Entry("opposite", 2.0, 0.0),
		Entry("rounding past opposite", 2.0000001, 0.0),
	)

	It("rejects unsafe table names before connecting", func() {
		_, err := OpenPG(context.Background(), "postgres://unused", "chunks; DROP TABLE x", "c", 768)
		Expect(err).To(MatchError(ContainSubstring("invalid table name")))
	})

	It("requires a collection name", func() {
		_, err := OpenPG(context.Background(), "postgres://unused", "", "", 768)
		Expect(err).To(MatchError(ContainSubstring("collection name is required")))
	})
})

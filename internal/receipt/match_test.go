package receipt

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// staticSource serves a fixed receipt list
type staticSource []Receipt

func (s staticSource) Load() []Receipt {
	return s
}

var _ = Describe("Matcher", func() {
	var (
		receipts staticSource
		matcher  *Matcher
		query    Query
		match    *Match
	)

	BeforeEach(func() {
		receipts = staticSource{sampleReceipt("rewe.jpg", "Rewe Markt Frankfurt", "12.50")}
		query = Query{Amount: dec("12.53")}
	})

	JustBeforeEach(func() {
		matcher = NewMatcher(receipts)
		match = matcher.FindMatch(query)
	})

	When("the amount is within tolerance", func() {
		It("should match", func() {
			Expect(match).NotTo(BeNil())
			Expect(match.Receipt.File).To(Equal("rewe.jpg"))
			Expect(match.Score).To(BeNumerically("~", 0.97, 1e-9))
		})
	})

	When("the amount is exactly at the tolerance", func() {
		BeforeEach(func() {
			query.Amount = dec("12.55")
		})

		It("should match", func() {
			Expect(match).NotTo(BeNil())
		})
	})

	When("the amount is outside tolerance", func() {
		BeforeEach(func() {
			query.Amount = dec("12.60")
		})

		It("should not match", func() {
			Expect(match).To(BeNil())
		})
	})

	When("the amount is a negative debit", func() {
		BeforeEach(func() {
			query.Amount = dec("-12.50")
		})

		It("should compare the absolute value", func() {
			Expect(match).NotTo(BeNil())
			Expect(match.Score).To(BeNumerically("~", 1.0, 1e-9))
		})
	})

	When("a receipt has no total", func() {
		BeforeEach(func() {
			receipts = staticSource{sampleReceipt("blank.jpg", "REWE", "")}
		})

		It("should never match it", func() {
			Expect(match).To(BeNil())
		})
	})

	When("the ledger is empty", func() {
		BeforeEach(func() {
			receipts = nil
		})

		It("should not match", func() {
			Expect(match).To(BeNil())
		})
	})

	Describe("store hint", func() {
		When("the hint shares enough words with the store", func() {
			BeforeEach(func() {
				query.StoreHint = "REWE Frankfurt"
			})

			It("should add the similarity to the score", func() {
				Expect(match).NotTo(BeNil())
				Expect(match.Score).To(BeNumerically("~", 0.97+2.0/3.0, 1e-9))
			})
		})

		When("the hint names a different store", func() {
			BeforeEach(func() {
				receipts = staticSource{sampleReceipt("aldi.jpg", "ALDI SÜD", "12.50")}
				query.StoreHint = "REWE"
			})

			It("should reject the candidate", func() {
				Expect(match).To(BeNil())
			})
		})

		When("the hint is blank", func() {
			BeforeEach(func() {
				receipts = staticSource{sampleReceipt("aldi.jpg", "ALDI SÜD", "12.50")}
				query.StoreHint = "   "
			})

			It("should ignore it", func() {
				Expect(match).NotTo(BeNil())
			})
		})

		When("the hint decides between equal amounts", func() {
			BeforeEach(func() {
				receipts = staticSource{
					sampleReceipt("aldi.jpg", "ALDI SÜD", "12.50"),
					sampleReceipt("lidl.jpg", "LIDL", "12.50"),
				}
				query.StoreHint = "Aldi Sud"
			})

			It("should pick the matching store", func() {
				Expect(match.Receipt.File).To(Equal("aldi.jpg"))
			})
		})
	})

	Describe("selection", func() {
		When("one candidate is closer", func() {
			BeforeEach(func() {
				receipts = staticSource{
					sampleReceipt("far.jpg", "REWE", "12.49"),
					sampleReceipt("near.jpg", "REWE", "12.53"),
				}
			})

			It("should pick the closer amount", func() {
				Expect(match.Receipt.File).To(Equal("near.jpg"))
			})
		})

		When("candidates tie", func() {
			BeforeEach(func() {
				receipts = staticSource{
					sampleReceipt("first.jpg", "REWE", "12.50"),
					sampleReceipt("second.jpg", "REWE", "12.50"),
				}
			})

			It("should keep the first in ledger order", func() {
				Expect(match.Receipt.File).To(Equal("first.jpg"))
			})
		})

		It("should return the same receipt for repeated queries", func() {
			again := matcher.FindMatch(query)
			Expect(again).NotTo(BeNil())
			Expect(again.Receipt.File).To(Equal(match.Receipt.File))
		})
	})

	Describe("date", func() {
		var dated Receipt

		BeforeEach(func() {
			plain := sampleReceipt("plain.jpg", "REWE", "12.50")
			dated = sampleReceipt("dated.jpg", "REWE", "12.50")
			dated.RawText = "REWE\nMilch\n14.03.2024 18:02\nEUR\n12,50\n"
			receipts = staticSource{plain, dated}
			day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
			query.Date = &day
		})

		It("should prefer the receipt dated in the same month", func() {
			Expect(match.Receipt.File).To(Equal("dated.jpg"))
			Expect(match.Score).To(BeNumerically("~", 0.97+dateBonus, 1e-9))
		})

		When("the receipt is from another month", func() {
			BeforeEach(func() {
				day := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
				query.Date = &day
			})

			It("should not add the bonus", func() {
				Expect(match.Receipt.File).To(Equal("plain.jpg"))
			})
		})
	})

	Describe("FindMatchText", func() {
		It("should accept a decimal comma", func() {
			Expect(matcher.FindMatchText("12,53", "", nil)).NotTo(BeNil())
		})

		It("should return nil for malformed amounts", func() {
			Expect(matcher.FindMatchText("twelve", "", nil)).To(BeNil())
			Expect(matcher.FindMatchText("", "", nil)).To(BeNil())
		})
	})
})

var _ = Describe("ParseAmount", func() {
	DescribeTable("valid amounts",
		func(in, want string) {
			got, ok := ParseAmount(in)
			Expect(ok).To(BeTrue())
			Expect(got.Equal(dec(want))).To(BeTrue(), "got %s", got)
		},
		Entry("point", "12.53", "12.53"),
		Entry("comma", "12,53", "12.53"),
		Entry("negative", "-4,99", "-4.99"),
		Entry("german thousands", "1.234,56", "1234.56"),
		Entry("english thousands", "1,234.56", "1234.56"),
		Entry("padded", " 7 ", "7"),
	)

	DescribeTable("invalid amounts",
		func(in string) {
			_, ok := ParseAmount(in)
			Expect(ok).To(BeFalse())
		},
		Entry("empty", ""),
		Entry("words", "abc"),
		Entry("two commas", "1,2,3"),
	)
})

var _ = Describe("tokenSimilarity", func() {
	DescribeTable("scores",
		func(a, b string, want float64) {
			Expect(tokenSimilarity(a, b)).To(BeNumerically("~", want, 1e-9))
		},
		Entry("partial overlap", "REWE Frankfurt", "Rewe Markt Frankfurt", 2.0/3.0),
		Entry("different stores", "REWE", "ALDI SÜD", 0.0),
		Entry("diacritics", "Aldi Süd", "ALDI SUD", 1.0),
		Entry("punctuation", "dm-drogerie markt", "DM Drogerie Markt", 1.0),
		Entry("empty side", "", "REWE", 0.0),
		Entry("only punctuation", "***", "REWE", 0.0),
	)

	It("should normalize names", func() {
		Expect(normalizeName("  ALDI SÜD GmbH & Co.  KG ")).To(Equal("aldi sud gmbh co kg"))
	})
})

var _ = Describe("mentionsMonth", func() {
	march := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	DescribeTable("date tokens",
		func(text string, want bool) {
			Expect(mentionsMonth(text, march)).To(Equal(want))
		},
		Entry("day first", "Datum 02.03.2024", true),
		Entry("short year", "02.03.24 10:11", true),
		Entry("slashes", "02/03/2024", true),
		Entry("iso", "2024-03-31", true),
		Entry("other month", "02.04.2024", false),
		Entry("other year", "02.03.2023", false),
		Entry("not a date", "Summe 12,50", false),
		Entry("impossible month", "02.13.2024", false),
	)
})

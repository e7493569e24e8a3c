package bank

import (
	"bytes"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/receipt-ledger/internal/receipt"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("WriteXLSX", func() {
	var (
		report *Report
		file   *excelize.File
	)

	ginkgo.BeforeEach(func() {
		store, name := "REWE", "rewe.jpg"
		report = &Report{
			Month:            "2024-03",
			Total:            dec("17.52"),
			TransactionCount: 2,
			Transactions: []Expense{
				{
					Date: "2024-03-02", Amount: dec("12.53"), Currency: "EUR", Name: "REWE", Purpose: "Karte",
					Store: &store, File: &name,
					Items: []receipt.Item{{Name: "Milch", Price: dec("1.80"), Qty: 2}, {Name: "Brot", Price: dec("2.49"), Qty: 1}},
				},
				{Date: "2024-03-05", Amount: dec("4.99"), Currency: "EUR", Name: "Unknown", Items: []receipt.Item{}},
			},
		}
	})

	ginkgo.JustBeforeEach(func() {
		var buf bytes.Buffer
		Expect(WriteXLSX(&buf, report)).To(Succeed())

		var err error
		file, err = excelize.OpenReader(&buf)
		Expect(err).NotTo(HaveOccurred())
		ginkgo.DeferCleanup(file.Close)
	})

	ginkgo.It("should write a single Expenses sheet", func() {
		Expect(file.GetSheetList()).To(Equal([]string{"Expenses"}))
	})

	ginkgo.It("should write the header row", func() {
		rows, err := file.GetRows("Expenses")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows[0]).To(Equal(expenseHeaders))
	})

	ginkgo.It("should write one row per transaction", func() {
		Expect(file.GetCellValue("Expenses", "A2")).To(Equal("2024-03-02"))
		Expect(file.GetCellValue("Expenses", "B2")).To(Equal("12.53"))
		Expect(file.GetCellValue("Expenses", "F2")).To(Equal("REWE"))
		Expect(file.GetCellValue("Expenses", "G2")).To(Equal("Milch 2x 1.80; Brot 2.49"))
		Expect(file.GetCellValue("Expenses", "H2")).To(Equal("rewe.jpg"))
		Expect(file.GetCellValue("Expenses", "F3")).To(BeEmpty())
	})

	ginkgo.It("should finish with the total", func() {
		Expect(file.GetCellValue("Expenses", "A4")).To(Equal("Total"))
		Expect(file.GetCellValue("Expenses", "B4")).To(Equal("17.52"))
	})
})

package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("cleanTranscript", func() {
	var (
		input  string
		output string
	)

	JustBeforeEach(func() {
		output = cleanTranscript(input)
	})

	When("the text is plain", func() {
		BeforeEach(func() {
			input = "REWE\nMilch\nEUR\n1,29 B\n"
		})

		It("should keep every line", func() {
			Expect(output).To(Equal("REWE\nMilch\nEUR\n1,29 B"))
		})
	})

	When("the text is wrapped in a markdown code block", func() {
		BeforeEach(func() {
			input = "```text\nREWE\nMilch\n```"
		})

		It("should strip the fences", func() {
			Expect(output).To(Equal("REWE\nMilch"))
		})
	})

	When("the text uses windows line endings and trailing spaces", func() {
		BeforeEach(func() {
			input = "REWE  \r\nMilch\t\r\n"
		})

		It("should normalize them", func() {
			Expect(output).To(Equal("REWE\nMilch"))
		})
	})

	When("the text is empty", func() {
		BeforeEach(func() {
			input = "   "
		})

		It("should return an empty string", func() {
			Expect(output).To(BeEmpty())
		})
	})
})

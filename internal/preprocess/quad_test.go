package preprocess

import (
	"image"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Quad", func() {
	Describe("Ordered", func() {
		var (
			quad    Quad
			ordered Quad
		)

		JustBeforeEach(func() {
			ordered = quad.Ordered()
		})

		When("corners arrive shuffled", func() {
			BeforeEach(func() {
				quad = Quad{{X: 105, Y: 200}, {X: 10, Y: 20}, {X: 100, Y: 15}, {X: 5, Y: 190}}
			})

			It("should put the smallest x+y first", func() {
				Expect(ordered[0]).To(Equal(Point{X: 10, Y: 20}))
			})

			It("should put the largest x+y third", func() {
				Expect(ordered[2]).To(Equal(Point{X: 105, Y: 200}))
			})

			It("should put the top-right corner second", func() {
				Expect(ordered[1]).To(Equal(Point{X: 100, Y: 15}))
			})

			It("should put the bottom-left corner last", func() {
				Expect(ordered[3]).To(Equal(Point{X: 5, Y: 190}))
			})
		})

		When("the quad comes from an axis aligned rectangle", func() {
			BeforeEach(func() {
				quad = quadFromRect(image.Rect(10, 20, 110, 70))
			})

			It("should keep clockwise order from the top-left", func() {
				Expect(ordered).To(Equal(Quad{{X: 10, Y: 20}, {X: 110, Y: 20}, {X: 110, Y: 70}, {X: 10, Y: 70}}))
			})
		})
	})

	Describe("Expand", func() {
		It("should push corners away from the centroid", func() {
			q := quadFromRect(image.Rect(0, 0, 100, 100)).Expand(0.1)
			Expect(q[0].X).To(BeNumerically("~", -5, 1e-9))
			Expect(q[2].Y).To(BeNumerically("~", 105, 1e-9))
		})

		It("should keep the centroid in place", func() {
			c := quadFromRect(image.Rect(10, 10, 50, 90)).Expand(0.1).Centroid()
			Expect(c.X).To(BeNumerically("~", 30, 1e-9))
			Expect(c.Y).To(BeNumerically("~", 50, 1e-9))
		})
	})

	Describe("Clip", func() {
		It("should clamp corners into the image", func() {
			q := Quad{{X: -5, Y: -5}, {X: 120, Y: -1}, {X: 130, Y: 90}, {X: -3, Y: 85}}.Clip(100, 80)
			Expect(q).To(Equal(Quad{{X: 0, Y: 0}, {X: 99, Y: 0}, {X: 99, Y: 79}, {X: 0, Y: 79}}))
		})
	})

	Describe("Size", func() {
		It("should use the longer of each opposite side pair", func() {
			q := Quad{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 90, Y: 50}, {X: 0, Y: 60}}
			w, h := q.Size()
			Expect(w).To(Equal(100))
			Expect(h).To(Equal(60))
		})
	})
})

var _ = Describe("projectionVariance", func() {
	It("should be zero for a uniform mask", func() {
		data := make([]byte, 4*3)
		Expect(projectionVariance(data, 4, 3)).To(BeZero())
	})

	It("should measure the spread of row ink counts", func() {
		data := []byte{
			255, 255,
			0, 0,
			255, 255,
			0, 0,
		}
		Expect(projectionVariance(data, 4, 2)).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("should ignore short buffers", func() {
		Expect(projectionVariance([]byte{1}, 4, 4)).To(BeZero())
	})
})

var _ = Describe("skewAngles", func() {
	It("should sweep from -4 up to but excluding 4 in 0.2 steps", func() {
		angles := skewAngles()
		Expect(angles).To(HaveLen(40))
		Expect(angles[0]).To(Equal(-4.0))
		Expect(angles).To(ContainElement(0.0))
		Expect(angles[len(angles)-1]).To(Equal(3.8))
	})
})

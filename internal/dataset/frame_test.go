package dataset_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/gotsim/internal/dataset"
	"github.com/okian/gotsim/internal/domain/failure"
	. "github.com/smartystreets/goconvey/convey"
)

func sample() *dataset.Frame {
	f := dataset.New(3)
	_ = f.SetStrings("Name", []string{"Arya", "Bran", "Cersei"})
	_ = f.SetFloats("GoT", []float64{1, 0, 1})
	_ = f.SetFloats("Death Chapter", []float64{math.NaN(), 12, 40})
	return f
}

func TestFrameAccessors(t *testing.T) {
	Convey("Given a frame with string and float columns", t, func() {
		f := sample()

		Convey("Then columns keep insertion order", func() {
			So(f.Names(), ShouldResemble, []string{"Name", "GoT", "Death Chapter"})
			So(f.Len(), ShouldEqual, 3)
			So(f.Has("GoT"), ShouldBeTrue)
			So(f.Has("got"), ShouldBeFalse)
		})

		Convey("When reading a missing column", func() {
			_, err := f.Floats("CoK")

			Convey("Then the error is a schema error naming the column", func() {
				So(errors.Is(err, failure.ErrSchema), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, `"CoK"`)
			})
		})

		Convey("When reading a column with the wrong kind", func() {
			_, err := f.Floats("Name")
			_, err2 := f.Strings("GoT")

			Convey("Then the error is a type error", func() {
				So(errors.Is(err, failure.ErrType), ShouldBeTrue)
				So(errors.Is(err2, failure.ErrType), ShouldBeTrue)
			})
		})

		Convey("When setting a column of the wrong length", func() {
			err := f.SetFloats("CoK", []float64{1})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, failure.ErrSchema), ShouldBeTrue)
				So(f.Has("CoK"), ShouldBeFalse)
			})
		})

		Convey("When replacing a column", func() {
			So(f.SetFloats("Name", []float64{1, 2, 3}), ShouldBeNil)

			Convey("Then it keeps its position and takes the new kind", func() {
				So(f.Names()[0], ShouldEqual, "Name")
				k, err := f.KindOf("Name")
				So(err, ShouldBeNil)
				So(k, ShouldEqual, dataset.Float)
			})
		})
	})
}

func TestFrameCloneFilterDrop(t *testing.T) {
	Convey("Given a frame", t, func() {
		f := sample()

		Convey("When cloning and mutating the clone", func() {
			c := f.Clone()
			So(c.SetFloats("GoT", []float64{9, 9, 9}), ShouldBeNil)
			c.Drop("Name")

			Convey("Then the original is untouched", func() {
				got, _ := f.Floats("GoT")
				So(got, ShouldResemble, []float64{1, 0, 1})
				So(f.Has("Name"), ShouldBeTrue)
				So(c.Has("Name"), ShouldBeFalse)
			})
		})

		Convey("When filtering rows", func() {
			out, err := f.Filter([]bool{true, false, true})
			So(err, ShouldBeNil)

			Convey("Then only kept rows remain in order", func() {
				names, _ := out.Strings("Name")
				So(out.Len(), ShouldEqual, 2)
				So(cmp.Diff([]string{"Arya", "Cersei"}, names), ShouldBeEmpty)
			})
		})

		Convey("When the mask has the wrong length", func() {
			_, err := f.Filter([]bool{true})
			Convey("Then filtering fails", func() {
				So(errors.Is(err, failure.ErrSchema), ShouldBeTrue)
			})
		})

		Convey("When building a matrix", func() {
			m, err := f.Matrix([]string{"GoT", "Death Chapter"})
			So(err, ShouldBeNil)

			Convey("Then rows follow the requested column order", func() {
				So(len(m), ShouldEqual, 3)
				So(m[1], ShouldResemble, []float64{0, 12})
				So(math.IsNaN(m[0][1]), ShouldBeTrue)
			})
		})

		Convey("Then non-finite columns are reported", func() {
			So(f.NonFinite(), ShouldResemble, []string{"Death Chapter"})
		})
	})
}

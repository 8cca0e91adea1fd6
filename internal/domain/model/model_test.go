package model_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/gotsim/internal/domain/failure"
	model "github.com/okian/gotsim/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestChapterCounts(t *testing.T) {
	Convey("Given the five book chapter counts", t, func() {
		counts, err := model.NewChapterCounts(map[int]float64{1: 72, 2: 69, 3: 80, 4: 45, 5: 71})
		So(err, ShouldBeNil)

		Convey("Then lookups succeed inside 1..K", func() {
			So(counts.Installments(), ShouldEqual, 5)
			So(counts.Sentinel(), ShouldEqual, 6)
			v, err := counts.Chapters(3)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 80)
		})

		Convey("And fail loudly outside it", func() {
			_, err := counts.Chapters(6)
			So(errors.Is(err, failure.ErrSchema), ShouldBeTrue)
			_, err = counts.Chapters(0)
			So(errors.Is(err, failure.ErrSchema), ShouldBeTrue)
		})
	})

	Convey("Given a mapping with a gap", t, func() {
		_, err := model.NewChapterCounts(map[int]float64{1: 72, 3: 80, 4: 45, 5: 71})

		Convey("Then construction names the missing installment", func() {
			So(errors.Is(err, failure.ErrSchema), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "installment 2")
		})
	})

	Convey("Given a non-positive count", t, func() {
		_, err := model.NewChapterCounts(map[int]float64{1: 0})
		So(errors.Is(err, failure.ErrType), ShouldBeTrue)
	})

	Convey("Given installment cells", t, func() {
		k, ok, err := model.Installment(3)
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)
		So(k, ShouldEqual, 3)

		_, ok, err = model.Installment(math.NaN())
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)

		_, _, err = model.Installment(2.5)
		So(errors.Is(err, failure.ErrType), ShouldBeTrue)
	})
}

func TestFactions(t *testing.T) {
	Convey("Given the closed faction set", t, func() {
		Convey("Then exact names parse and others do not", func() {
			f, ok := model.ParseFaction("HouseStark")
			So(ok, ShouldBeTrue)
			So(f, ShouldEqual, model.HouseStark)
			_, ok = model.ParseFaction("House Stark")
			So(ok, ShouldBeFalse)
			_, ok = model.ParseFaction("HouseMartell")
			So(ok, ShouldBeFalse)
		})

		Convey("Then one-hot features select exactly one faction", func() {
			feats, err := model.FactionFeatures(model.NightsWatch)
			So(err, ShouldBeNil)
			So(len(feats), ShouldEqual, 6)
			sum := 0
			for _, v := range feats {
				sum += v
			}
			So(sum, ShouldEqual, 1)
			So(feats["NightsWatch"], ShouldEqual, 1)
		})
	})
}

func TestCodebook(t *testing.T) {
	Convey("Given the default codebook", t, func() {
		cb, err := model.NewCodebook(model.DefaultClasses())
		So(err, ShouldBeNil)

		Convey("Then buckets map to fixed codes", func() {
			low, _ := cb.Code(model.BucketLow)
			mid, _ := cb.Code(model.BucketMid)
			high, _ := cb.Code(model.BucketHigh)
			So([]int{low, mid, high}, ShouldResemble, []int{0, 1, 2})
			So(cb.Codes(), ShouldResemble, []int{0, 1, 2})
		})

		Convey("Then unknown keys are lookup errors", func() {
			_, err := cb.Code("gt300")
			So(errors.Is(err, failure.ErrLookup), ShouldBeTrue)
			_, err = cb.Bucket(7)
			So(errors.Is(err, failure.ErrLookup), ShouldBeTrue)
		})

		Convey("Then every code has a label and a remark", func() {
			for _, code := range cb.Codes() {
				So(cb.Labels()[code], ShouldNotBeEmpty)
				So(cb.Remarks()[code], ShouldNotBeEmpty)
			}
		})
	})

	Convey("Given duplicate codes", t, func() {
		_, err := model.NewCodebook([]model.Class{{Code: 0, Bucket: "a"}, {Code: 0, Bucket: "b"}})
		So(errors.Is(err, failure.ErrConfig), ShouldBeTrue)
	})
}

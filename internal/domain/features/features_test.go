package features_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/gotsim/internal/dataset"
	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/features"
	"github.com/okian/gotsim/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var nan = math.NaN()

func bookChapters() model.ChapterCounts {
	counts, err := model.NewChapterCounts(map[int]float64{1: 72, 2: 69, 3: 80, 4: 45, 5: 71})
	if err != nil {
		panic(err)
	}
	return counts
}

func codebook() model.Codebook {
	cb, err := model.NewCodebook(model.DefaultClasses())
	if err != nil {
		panic(err)
	}
	return cb
}

func TestChaptersSurvived(t *testing.T) {
	counts := bookChapters()

	Convey("Given the happy path records", t, func() {
		intro := []float64{1, 3, 5, 5, 3, 2, 1, 1, 2, 3}
		death := []float64{nan, 3, nan, 5, nan, nan, 4, 5, nan, nan}
		deathCh := []float64{nan, 51, nan, 20, nan, nan, 35, nan, nan, nan}
		introCh := []float64{56, 49, 5, 20, nan, nan, 21, 59, 11, 0}

		Convey("When computing survival in the first book", func() {
			got := make([]float64, len(intro))
			for i := range intro {
				v, err := features.ChaptersSurvived(features.Record{
					Intro: intro[i], Death: death[i], IntroChapter: introCh[i], DeathChapter: deathCh[i],
				}, 1, counts)
				So(err, ShouldBeNil)
				got[i] = v
			}

			Convey("Then each character gets the chapters they were alive for", func() {
				So(cmp.Diff([]float64{16, 0, 0, 0, 0, 0, 51, 13, 0, 0}, got), ShouldBeEmpty)
			})
		})
	})

	Convey("Given a character introduced in book 1 at chapter 0 who never died", t, func() {
		r := features.Record{Intro: 1, Death: nan, IntroChapter: 0, DeathChapter: nan}

		Convey("Then they survive the whole first book", func() {
			v, err := features.ChaptersSurvived(r, 1, counts)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 72)
		})

		Convey("And every later book in full", func() {
			v, err := features.ChaptersSurvived(r, 4, counts)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 45)
		})
	})

	Convey("Given a character introduced and killed in the same book", t, func() {
		r := features.Record{Intro: 2, Death: 2, IntroChapter: 0, DeathChapter: 69}

		Convey("Then the difference is used even when it equals the full book", func() {
			v, err := features.ChaptersSurvived(r, 2, counts)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 69)
		})
	})

	Convey("Given a character introduced earlier and killed in book 3", t, func() {
		r := features.Record{Intro: 1, Death: 3, IntroChapter: 4, DeathChapter: 40}

		Convey("Then book 3 counts up to the death chapter and book 4 counts nothing", func() {
			v, err := features.ChaptersSurvived(r, 3, counts)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 40)
			v, err = features.ChaptersSurvived(r, 4, counts)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0)
		})
	})

	Convey("Given an installment without a chapter count", t, func() {
		_, err := features.ChaptersSurvived(features.Record{Intro: 1}, 6, counts)
		So(errors.Is(err, failure.ErrSchema), ShouldBeTrue)
	})
}

func TestBucket(t *testing.T) {
	Convey("Given survival totals at the bucket boundaries", t, func() {
		So(features.Bucket(0), ShouldEqual, model.BucketLow)
		So(features.Bucket(100), ShouldEqual, model.BucketLow)
		So(features.Bucket(100.5), ShouldEqual, model.BucketMid)
		So(features.Bucket(200), ShouldEqual, model.BucketMid)
		So(features.Bucket(201), ShouldEqual, model.BucketHigh)
	})
}

func cleanedBase() *dataset.Frame {
	f := dataset.New(4)
	_ = f.SetStrings("Name", []string{"Arya Stark", "Bran Stark", "Cersei Lannister", "Davos Seaworth"})
	_ = f.SetStrings("Allegiance", []string{"HouseStark", "NightsWatch", "HouseLannister", "HouseBaratheon"})
	_ = f.SetFloats("book_intro", []float64{1, 2, 1, 1})
	_ = f.SetFloats("Book of Death", []float64{nan, 3, 1, 3})
	_ = f.SetFloats("Death Chapter", []float64{nan, 20, 5, 40})
	_ = f.SetFloats("Book Intro Chapter", []float64{0, 9, 10, 2})
	_ = f.SetFloats("Gender", []float64{0, 1, 0, 1})
	_ = f.SetFloats("Nobility", []float64{1, 1, 1, 0})
	return f
}

func profile() *dataset.Frame {
	f := dataset.New(4)
	_ = f.SetStrings("name", []string{"Arya Stark", "Davos Seaworth", "Arya Stark", "Euron Greyjoy"})
	_ = f.SetFloats("isMarried", []float64{0, 1, 1, 1})
	_ = f.SetFloats("boolDeadRelations", []float64{1, 0, 0, 0})
	_ = f.SetFloats("isPopular", []float64{1, 1, 0, 0})
	return f
}

func TestFeaturize(t *testing.T) {
	ctx := context.Background()

	Convey("Given a cleaned base table and a profile table", t, func() {
		fz := features.New(bookChapters(), codebook())
		base := cleanedBase()
		out, err := fz.Featurize(ctx, base, profile())
		So(err, ShouldBeNil)

		Convey("Then the negative survival row is excluded", func() {
			So(out.Len(), ShouldEqual, base.Len()-1)
			names, _ := out.Strings("Name")
			So(cmp.Diff([]string{"Arya Stark", "Bran Stark", "Davos Seaworth"}, names), ShouldBeEmpty)
		})

		Convey("Then survival is summed over every book", func() {
			got, _ := out.Floats("chapters_survived")
			So(cmp.Diff([]float64{337, 80, 179}, got), ShouldBeEmpty)
			got, _ = out.Floats("CoK_chapters")
			So(cmp.Diff([]float64{69, 60, 69}, got), ShouldBeEmpty)
		})

		Convey("Then targets use the fixed codebook", func() {
			labels, _ := out.Strings("survive_class")
			codes, _ := out.Floats("survive_class_id")
			So(cmp.Diff([]string{"gt200", "0-100", "100-200"}, labels), ShouldBeEmpty)
			So(cmp.Diff([]float64{2, 0, 1}, codes), ShouldBeEmpty)
		})

		Convey("Then profile attributes are merged with unmatched rows imputed to 0", func() {
			married, _ := out.Floats("isMarried")
			dead, _ := out.Floats("boolDeadRelations")
			popular, _ := out.Floats("isPopular")
			So(cmp.Diff([]float64{0, 0, 1}, married), ShouldBeEmpty)
			So(cmp.Diff([]float64{1, 0, 0}, dead), ShouldBeEmpty)
			So(cmp.Diff([]float64{1, 0, 1}, popular), ShouldBeEmpty)
		})

		Convey("Then exactly one faction indicator is set per row", func() {
			for i := 0; i < out.Len(); i++ {
				sum := 0.0
				for _, name := range []string{"HouseBaratheon", "HouseStark", "NightsWatch"} {
					col, err := out.Floats(name)
					So(err, ShouldBeNil)
					sum += col[i]
				}
				So(sum, ShouldEqual, 1)
			}
			So(out.Has("HouseLannister"), ShouldBeFalse)
			So(out.Has("Allegiance"), ShouldBeTrue)
		})

		Convey("Then no null or infinite values remain", func() {
			So(out.NonFinite(), ShouldBeEmpty)
		})
	})

	Convey("Given a row whose intro chapter is unknown in its intro book", t, func() {
		base := cleanedBase()
		intro, _ := base.Floats("Book Intro Chapter")
		patched := append([]float64(nil), intro...)
		patched[0] = nan
		_ = base.SetFloats("Book Intro Chapter", patched)

		out, err := features.New(bookChapters(), codebook()).Featurize(ctx, base, profile())
		So(err, ShouldBeNil)

		Convey("Then the undefined total is dropped like a negative one", func() {
			So(out.Len(), ShouldEqual, 2)
		})
	})

	Convey("Given a profile table without the popularity column", t, func() {
		aux := profile()
		aux.Drop("isPopular")
		_, err := features.New(bookChapters(), codebook()).Featurize(ctx, cleanedBase(), aux)

		Convey("Then featurizing fails with a schema error", func() {
			So(errors.Is(err, failure.ErrSchema), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "isPopular")
		})
	})

	Convey("Given a codebook missing a bucket", t, func() {
		cb, err := model.NewCodebook([]model.Class{{Code: 0, Bucket: model.BucketLow}, {Code: 1, Bucket: model.BucketMid}})
		So(err, ShouldBeNil)
		_, err = features.New(bookChapters(), cb).Featurize(ctx, cleanedBase(), profile())
		So(errors.Is(err, failure.ErrLookup), ShouldBeTrue)
	})

	Convey("Given fewer chapter counts than survival columns", t, func() {
		counts, err := model.NewChapterCounts(map[int]float64{1: 72, 2: 69})
		So(err, ShouldBeNil)
		_, err = features.New(counts, codebook()).Featurize(ctx, cleanedBase(), profile())
		So(errors.Is(err, failure.ErrConfig), ShouldBeTrue)
	})
}

func TestImputeAndOneHot(t *testing.T) {
	Convey("Given a frame with null and infinite cells", t, func() {
		f := dataset.New(3)
		_ = f.SetFloats("x", []float64{nan, math.Inf(1), math.Inf(-1)})
		_ = f.SetStrings("house", []string{"Wildling", "HouseStark", "Wildling"})

		out := features.Impute(f)

		Convey("Then they become 0 and the input is untouched", func() {
			x, _ := out.Floats("x")
			So(x, ShouldResemble, []float64{0, 0, 0})
			So(f.NonFinite(), ShouldResemble, []string{"x"})
		})

		Convey("When expanding the house column", func() {
			hot, cats, err := features.OneHot(out, "house")
			So(err, ShouldBeNil)

			Convey("Then indicators are appended in sorted order", func() {
				So(cats, ShouldResemble, []string{"HouseStark", "Wildling"})
				So(hot.Names(), ShouldResemble, []string{"x", "house", "HouseStark", "Wildling"})
				w, _ := hot.Floats("Wildling")
				So(w, ShouldResemble, []float64{1, 0, 1})
			})
		})
	})
}

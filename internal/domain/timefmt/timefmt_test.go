package timefmt_test

import (
	"math"
	"testing"
	"time"

	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/internal/domain/timefmt"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFormatDelta(t *testing.T) {
	Convey("FormatDelta keeps the two largest units", t, func() {
		So(timefmt.FormatDelta(0), ShouldEqual, "0 seconds")
		So(timefmt.FormatDelta(500*time.Millisecond), ShouldEqual, "0 seconds")
		So(timefmt.FormatDelta(time.Second), ShouldEqual, "1 second")
		So(timefmt.FormatDelta(90*time.Second), ShouldEqual, "1 minute 30 seconds")
		So(timefmt.FormatDelta(2*time.Hour+30*time.Minute+10*time.Second), ShouldEqual, "2 hours 30 minutes")
		So(timefmt.FormatDelta(51*time.Hour), ShouldEqual, "2 days 3 hours")
		So(timefmt.FormatDelta(24*time.Hour+5*time.Minute), ShouldEqual, "1 day 5 minutes")
		So(timefmt.FormatSeconds(7560), ShouldEqual, "2 hours 6 minutes")
		So(timefmt.FormatSeconds(math.NaN()), ShouldEqual, "0 seconds")
	})
}

func TestFormatDifference(t *testing.T) {
	Convey("FormatDifference lists days, hours and minutes", t, func() {
		So(timefmt.FormatDifference(0), ShouldEqual, "Unknown")
		So(timefmt.FormatDifference(-3), ShouldEqual, "Unknown")
		So(timefmt.FormatDifference(math.NaN()), ShouldEqual, "Unknown")
		So(timefmt.FormatDifference(0.4), ShouldEqual, "Just now")
		So(timefmt.FormatDifference(45), ShouldEqual, "45 seconds")
		So(timefmt.FormatDifference(61), ShouldEqual, "1 minute")
		So(timefmt.FormatDifference(2*86400+3*3600+45*60+12), ShouldEqual, "2 days, 3 hours, 45 minutes")
		So(timefmt.FormatDifference(86400), ShouldEqual, "1 day")
	})
}

func TestFreshness(t *testing.T) {
	Convey("Freshness buckets event age", t, func() {
		day := 24 * time.Hour
		So(timefmt.Freshness(time.Hour, day, 7*day), ShouldEqual, model.Fresh)
		So(timefmt.Freshness(day, day, 7*day), ShouldEqual, model.Fresh)
		So(timefmt.Freshness(3*day, day, 7*day), ShouldEqual, model.Stale)
		So(timefmt.Freshness(8*day, day, 7*day), ShouldEqual, model.Outdated)
	})
}

func TestMonthWindow(t *testing.T) {
	Convey("MonthWindow spans calendar months ending now", t, func() {
		now := time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)
		keys, from := timefmt.MonthWindow(now, 4)
		So(keys, ShouldResemble, []string{"2024-11", "2024-12", "2025-01", "2025-02"})
		So(from, ShouldEqual, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC))

		keys, _ = timefmt.MonthWindow(now, 0)
		So(keys, ShouldResemble, []string{"2025-02"})
	})
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/xptrack/internal/adapters/render"
	"github.com/okian/xptrack/internal/domain/history"
	"github.com/smartystreets/goconvey/convey"
)

const historyFixture = `{
	"2024-01-01": { "rank":  12, "level":  100, "experience":    15694800 },
	"2024-01-02": { "rank":  11, "level":  101, "experience":    16180000 },
	"2024-01-03": { "rank":   9, "level":  103, "experience":    17200000 }
}
`

func TestRun(t *testing.T) {
	convey.Convey("Given a history file and a README", t, func() {
		dir := t.TempDir()
		historyPath := filepath.Join(dir, "xp-history.json")
		readmePath := filepath.Join(dir, "README.md")
		convey.So(os.WriteFile(historyPath, []byte(historyFixture), 0o644), convey.ShouldBeNil)
		convey.So(os.WriteFile(readmePath, []byte(render.StartMarker+"\n"+render.EndMarker+"\n"), 0o644), convey.ShouldBeNil)

		t.Setenv("XPTRACK_HISTORY_PATH", historyPath)
		t.Setenv("XPTRACK_LATEST_PATH", "")
		t.Setenv("XPTRACK_README_PATH", readmePath)
		t.Setenv("XPTRACK_RECENT_WINDOW", "2")
		ctx := context.Background()

		convey.Convey("When printing the report", func() {
			var out bytes.Buffer
			err := run(ctx, []string{"report", "-window", "2"}, &out)

			convey.Convey("Then the windowed report is printed as JSON", func() {
				convey.So(err, convey.ShouldBeNil)
				var report history.Report
				convey.So(json.Unmarshal(out.Bytes(), &report), convey.ShouldBeNil)
				convey.So(report.Meta.Days, convey.ShouldEqual, 2)
				convey.So(report.Meta.LevelDelta, convey.ShouldEqual, 2)
				convey.So(report.Meta.Updated, convey.ShouldEqual, "2024-01-03")
			})
		})

		convey.Convey("When printing Markdown", func() {
			var out bytes.Buffer
			convey.So(run(ctx, []string{"markdown"}, &out), convey.ShouldBeNil)
			convey.So(out.String(), convey.ShouldContainSubstring, "**3 days**")
			convey.So(out.String(), convey.ShouldContainSubstring, "17,200,000")
		})

		convey.Convey("When writing HTML to a file", func() {
			page := filepath.Join(dir, "report.html")
			convey.So(run(ctx, []string{"html", "-o", page, "-title", "Progress"}, &bytes.Buffer{}), convey.ShouldBeNil)

			raw, err := os.ReadFile(page)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(raw), convey.ShouldContainSubstring, "<title>Progress</title>")
		})

		convey.Convey("When refreshing the README", func() {
			convey.So(run(ctx, []string{"readme"}, &bytes.Buffer{}), convey.ShouldBeNil)

			raw, err := os.ReadFile(readmePath)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(raw), convey.ShouldContainSubstring, "**2 days**")
			convey.So(string(raw), convey.ShouldNotContainSubstring, "2024-01-01")
		})

		convey.Convey("When refreshing the README with the whole history", func() {
			convey.So(run(ctx, []string{"readme", "-window", "all"}, &bytes.Buffer{}), convey.ShouldBeNil)

			raw, err := os.ReadFile(readmePath)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(raw), convey.ShouldContainSubstring, "**3 days**")
			convey.So(string(raw), convey.ShouldContainSubstring, "2024-01-01")
		})

		convey.Convey("When the command is unknown", func() {
			err := run(ctx, []string{"frobnicate"}, &bytes.Buffer{})
			convey.So(errors.Is(err, errUsage), convey.ShouldBeTrue)
		})

		convey.Convey("When the window is invalid", func() {
			err := run(ctx, []string{"report", "-window", "0"}, &bytes.Buffer{})
			convey.So(errors.Is(err, history.ErrInvalidWindow), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given no arguments", t, func() {
		convey.So(errors.Is(run(context.Background(), nil, &bytes.Buffer{}), errUsage), convey.ShouldBeTrue)
	})
}

package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/xptrack/internal/adapters/repository"
	"github.com/okian/xptrack/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func day(key string) time.Time {
	d, err := model.ParseDate(key)
	if err != nil {
		panic(err)
	}
	return d
}

func entry(key string, rank, level, xp int64) model.Entry {
	return model.Entry{Date: day(key), Snapshot: model.Snapshot{Rank: rank, Level: level, Experience: xp}}
}

// storeContract runs the behaviour shared by every Store implementation.
func storeContract(open func() repository.Store) {
	ctx := context.Background()

	Convey("When the store is empty", func() {
		s := open()
		defer s.Close()

		series, err := s.Load(ctx)
		So(err, ShouldBeNil)
		So(series, ShouldBeEmpty)

		_, err = s.Latest(ctx)
		So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
	})

	Convey("When entries are appended out of order", func() {
		s := open()
		defer s.Close()

		So(s.Append(ctx, entry("2024-01-03", 12, 101, 16_200_000)), ShouldBeNil)
		So(s.Append(ctx, entry("2024-01-01", 10, 100, 15_694_800)), ShouldBeNil)
		So(s.Append(ctx, entry("2024-01-02", 11, 100, 15_900_000)), ShouldBeNil)

		Convey("Then Load returns them by ascending date", func() {
			series, err := s.Load(ctx)
			So(err, ShouldBeNil)
			So(len(series), ShouldEqual, 3)
			So(series[0].DateKey(), ShouldEqual, "2024-01-01")
			So(series[1].DateKey(), ShouldEqual, "2024-01-02")
			So(series[2].DateKey(), ShouldEqual, "2024-01-03")
			So(series[2].Level, ShouldEqual, 101)
			So(series.Validate(), ShouldBeNil)
		})

		Convey("Then Latest returns the newest entry", func() {
			latest, err := s.Latest(ctx)
			So(err, ShouldBeNil)
			So(latest.DateKey(), ShouldEqual, "2024-01-03")
			So(latest.Experience, ShouldEqual, 16_200_000)
		})

		Convey("Then a second entry for the same day is rejected", func() {
			dup := entry("2024-01-02", 1, 1, 0)
			dup.Date = dup.Date.Add(13 * time.Hour)
			err := s.Append(ctx, dup)
			So(errors.Is(err, repository.ErrDuplicateDate), ShouldBeTrue)
		})
	})

	Convey("When an invalid snapshot is appended", func() {
		s := open()
		defer s.Close()

		err := s.Append(ctx, entry("2024-01-01", 0, 100, 1))
		So(errors.Is(err, model.ErrInvalidSnapshot), ShouldBeTrue)

		series, err := s.Load(ctx)
		So(err, ShouldBeNil)
		So(series, ShouldBeEmpty)
	})
}

func TestJSONStore(t *testing.T) {
	Convey("Given a JSON store", t, func() {
		dir := t.TempDir()
		n := 0
		storeContract(func() repository.Store {
			n++
			s, err := repository.NewJSONStore(
				filepath.Join(dir, "history", strings.Repeat("h", n)+".json"),
				repository.WithLatestPath(filepath.Join(dir, "latest", strings.Repeat("l", n)+".json")),
			)
			So(err, ShouldBeNil)
			return s
		})
	})

	Convey("Given a JSON store with a latest file", t, func() {
		dir := t.TempDir()
		historyPath := filepath.Join(dir, "history.json")
		latestPath := filepath.Join(dir, "latest.json")
		s, err := repository.NewJSONStore(historyPath, repository.WithLatestPath(latestPath))
		So(err, ShouldBeNil)

		ctx := context.Background()
		So(s.Append(ctx, entry("2024-01-01", 7, 100, 15_694_800)), ShouldBeNil)
		So(s.Append(ctx, entry("2024-01-02", 5, 101, 16_180_000)), ShouldBeNil)

		Convey("Then the history file has one aligned line per day", func() {
			raw, err := os.ReadFile(historyPath)
			So(err, ShouldBeNil)
			want := "{\n" +
				"\t\"2024-01-01\": { \"rank\":   7, \"level\":  100, \"experience\":    15694800 },\n" +
				"\t\"2024-01-02\": { \"rank\":   5, \"level\":  101, \"experience\":    16180000 }\n" +
				"}\n"
			So(string(raw), ShouldEqual, want)
		})

		Convey("Then the latest file holds the newest entry", func() {
			raw, err := os.ReadFile(latestPath)
			So(err, ShouldBeNil)
			var got map[string]any
			So(json.Unmarshal(raw, &got), ShouldBeNil)
			So(got["date"], ShouldEqual, "2024-01-02")
			So(got["level"], ShouldEqual, float64(101))
			So(got["rank"], ShouldEqual, float64(5))
		})

		Convey("Then a fresh store over the same file sees the entries", func() {
			again, err := repository.NewJSONStore(historyPath)
			So(err, ShouldBeNil)
			series, err := again.Load(ctx)
			So(err, ShouldBeNil)
			So(len(series), ShouldEqual, 2)
		})
	})

	Convey("Given a corrupt history file", t, func() {
		path := filepath.Join(t.TempDir(), "history.json")
		So(os.WriteFile(path, []byte(`{"yesterday": {"rank": 1}}`), 0o644), ShouldBeNil)
		s, err := repository.NewJSONStore(path)
		So(err, ShouldBeNil)

		Convey("Then Load reports ErrCorruptStore", func() {
			_, err := s.Load(context.Background())
			So(errors.Is(err, repository.ErrCorruptStore), ShouldBeTrue)
		})
	})

	Convey("Given an empty path", t, func() {
		_, err := repository.NewJSONStore("")
		So(err, ShouldNotBeNil)
	})
}

func TestSQLiteStore(t *testing.T) {
	Convey("Given a SQLite store", t, func() {
		dir := t.TempDir()
		n := 0
		storeContract(func() repository.Store {
			n++
			s, err := repository.OpenSQLite(context.Background(), filepath.Join(dir, strings.Repeat("s", n)+".db"))
			So(err, ShouldBeNil)
			return s
		})
	})

	Convey("Given a blank path", t, func() {
		_, err := repository.OpenSQLite(context.Background(), "  ")
		So(err, ShouldNotBeNil)
	})
}

func TestOpen(t *testing.T) {
	Convey("Given store settings", t, func() {
		dir := t.TempDir()
		ctx := context.Background()

		Convey("When the driver is empty it defaults to JSON", func() {
			s, err := repository.Open(ctx, repository.Settings{HistoryPath: filepath.Join(dir, "h.json")})
			So(err, ShouldBeNil)
			_, ok := s.(*repository.JSONStore)
			So(ok, ShouldBeTrue)
		})

		Convey("When the driver is sqlite", func() {
			s, err := repository.Open(ctx, repository.Settings{
				Driver:     repository.DriverSQLite,
				SQLitePath: filepath.Join(dir, "h.db"),
			})
			So(err, ShouldBeNil)
			defer s.Close()
			_, ok := s.(*repository.SQLiteStore)
			So(ok, ShouldBeTrue)
		})

		Convey("When the driver is unknown", func() {
			s, err := repository.Open(ctx, repository.Settings{Driver: "postgres"})
			So(s, ShouldBeNil)
			So(errors.Is(err, repository.ErrUnknownDriver), ShouldBeTrue)
		})
	})
}

package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/xptrack/internal/adapters/highscore"
	"github.com/okian/xptrack/internal/adapters/render"
	"github.com/okian/xptrack/internal/adapters/repository"
	service "github.com/okian/xptrack/internal/app"
	"github.com/okian/xptrack/internal/domain/history"
	"github.com/okian/xptrack/internal/domain/model"
	"github.com/okian/xptrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeFetcher struct {
	snap    model.Snapshot
	err     error
	calls   atomic.Int32
	commits atomic.Int32
}

func (f *fakeFetcher) Fetch(context.Context) (model.Snapshot, error) {
	f.calls.Add(1)
	return f.snap, f.err
}

func (f *fakeFetcher) Commit(context.Context) error {
	f.commits.Add(1)
	return nil
}

// brokenStore fails every append.
type brokenStore struct {
	repository.Store
}

func (brokenStore) Append(context.Context, model.Entry) error {
	return errors.New("disk full")
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newStore(t *testing.T) repository.Store {
	s, err := repository.NewJSONStore(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestService_Collect(t *testing.T) {
	Convey("Given a service with a store and a fetcher", t, func() {
		ctx := context.Background()
		store := newStore(t)
		fetcher := &fakeFetcher{snap: model.Snapshot{Rank: 10, Level: 100, Experience: 15_694_800}}
		clk := &clock{t: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)}
		svc := service.New(
			service.WithStore(store),
			service.WithFetcher(fetcher),
			service.WithClock(clk.now),
		)

		Convey("When collecting for the first time today", func() {
			res, err := svc.Collect(ctx)

			Convey("Then the snapshot is stored under today's date", func() {
				So(err, ShouldBeNil)
				So(res.Date, ShouldEqual, "2024-03-01")
				So(res.RunID, ShouldNotBeEmpty)
				So(res.Level, ShouldEqual, 100)

				latest, err := store.Latest(ctx)
				So(err, ShouldBeNil)
				So(latest.DateKey(), ShouldEqual, "2024-03-01")
				So(latest.Experience, ShouldEqual, 15_694_800)
			})

			Convey("Then the fetcher is told the snapshot was stored", func() {
				So(fetcher.commits.Load(), ShouldEqual, 1)
			})

			Convey("And collecting again the same day", func() {
				clk.t = clk.t.Add(3 * time.Hour)
				_, err := svc.Collect(ctx)

				Convey("Then it is rejected without calling upstream", func() {
					So(errors.Is(err, service.ErrAlreadyCollected), ShouldBeTrue)
					So(fetcher.calls.Load(), ShouldEqual, 1)
				})
			})

			Convey("And collecting the next day", func() {
				clk.t = clk.t.Add(24 * time.Hour)
				fetcher.snap = model.Snapshot{Rank: 9, Level: 101, Experience: 16_180_000}
				res, err := svc.Collect(ctx)

				Convey("Then a second entry is appended", func() {
					So(err, ShouldBeNil)
					So(res.Date, ShouldEqual, "2024-03-02")

					report, err := svc.Report(ctx, history.All())
					So(err, ShouldBeNil)
					So(report.Meta.Days, ShouldEqual, 2)
					So(report.Meta.LevelDelta, ShouldEqual, 1)
					So(report.Meta.RankDelta, ShouldEqual, -1)
				})

				Convey("Then stats count both runs", func() {
					stats := svc.GetStats()
					So(stats["collections"], ShouldEqual, int64(2))
					So(stats["lastError"], ShouldEqual, "")
				})
			})
		})

		Convey("When upstream is stale", func() {
			fetcher.err = highscore.ErrStaleSnapshot
			_, err := svc.Collect(ctx)

			Convey("Then nothing is stored and the error is surfaced", func() {
				So(errors.Is(err, highscore.ErrStaleSnapshot), ShouldBeTrue)
				_, err := store.Latest(ctx)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(svc.GetStats()["lastError"], ShouldNotBeEmpty)
				So(fetcher.commits.Load(), ShouldEqual, 0)
			})
		})

		Convey("When the fetcher returns an invalid snapshot", func() {
			fetcher.snap = model.Snapshot{Rank: 0, Level: 100, Experience: 1}
			_, err := svc.Collect(ctx)

			Convey("Then validation rejects it", func() {
				So(errors.Is(err, model.ErrInvalidSnapshot), ShouldBeTrue)
			})
		})
	})

	Convey("Given a store that cannot append", t, func() {
		fetcher := &fakeFetcher{snap: model.Snapshot{Rank: 10, Level: 100, Experience: 15_694_800}}
		svc := service.New(
			service.WithStore(brokenStore{Store: newStore(t)}),
			service.WithFetcher(fetcher),
		)

		Convey("When collecting", func() {
			_, err := svc.Collect(context.Background())

			Convey("Then the fetch is not committed so a retry can run today", func() {
				So(err, ShouldNotBeNil)
				So(fetcher.calls.Load(), ShouldEqual, 1)
				So(fetcher.commits.Load(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a service without a fetcher", t, func() {
		svc := service.New(service.WithStore(newStore(t)))
		_, err := svc.Collect(context.Background())
		So(errors.Is(err, service.ErrNoFetcher), ShouldBeTrue)
	})
}

func TestService_RenderReadme(t *testing.T) {
	Convey("Given a README with markers and a collected history", t, func() {
		ctx := context.Background()
		readme := filepath.Join(t.TempDir(), "README.md")
		So(os.WriteFile(readme, []byte("# Log\n"+render.StartMarker+"\n"+render.EndMarker+"\n"), 0o644), ShouldBeNil)

		clk := &clock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
		fetcher := &fakeFetcher{snap: model.Snapshot{Rank: 3, Level: 250, Experience: 250_000_000}}
		svc := service.New(
			service.WithStore(newStore(t)),
			service.WithFetcher(fetcher),
			service.WithClock(clk.now),
			service.WithReadmePath(readme),
			service.WithRecentWindow(7),
		)

		Convey("When a collection succeeds", func() {
			_, err := svc.Collect(ctx)
			So(err, ShouldBeNil)

			Convey("Then the README table is regenerated", func() {
				raw, err := os.ReadFile(readme)
				So(err, ShouldBeNil)
				So(string(raw), ShouldContainSubstring, "| 2024-03-01 |")
				So(string(raw), ShouldContainSubstring, "250,000,000")
				So(string(raw), ShouldContainSubstring, "**1 days**")
			})
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a service with a daily schedule", t, func() {
		svc := service.New(
			service.WithStore(newStore(t)),
			service.WithSchedule("CRON_TZ=UTC 30 10 * * *"),
		)

		Convey("When starting it", func() {
			err := svc.Start(context.Background())
			defer svc.Stop()

			Convey("Then it reports the next run", func() {
				So(err, ShouldBeNil)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["nextCollection"], ShouldNotBeNil)
			})
		})

		Convey("When stopping it", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()

			Convey("Then it is marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given an invalid schedule", t, func() {
		svc := service.New(service.WithStore(newStore(t)), service.WithSchedule("every day"))
		So(svc.Start(context.Background()), ShouldNotBeNil)
	})

	Convey("Given no store", t, func() {
		So(errors.Is(service.New().Start(context.Background()), service.ErrNoStore), ShouldBeTrue)
	})
}

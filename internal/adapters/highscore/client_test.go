package highscore_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/okian/xptrack/internal/adapters/highscore"
	"github.com/okian/xptrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// pageBody renders a minimal tibiadata-like page. stamp varies the fields
// the client is expected to ignore.
func pageBody(stamp string, rows ...string) string {
	return fmt.Sprintf(`{
		"highscores": {
			"world": "Vunira",
			"highscore_age": %q,
			"highscore_list": [%s]
		},
		"information": {"api": {"version": 4}, "timestamp": %q}
	}`, stamp, strings.Join(rows, ","), stamp)
}

func row(rank int, name string, level, xp int64) string {
	return fmt.Sprintf(`{"rank": %d, "name": %q, "vocation": "Royal Paladin", "world": "Vunira", "level": %d, "value": %d}`,
		rank, name, level, xp)
}

type upstream struct {
	pages map[int]string
	hits  atomic.Int32
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.hits.Add(1)
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 6 || parts[0] != "v4" || parts[3] != "experience" {
		http.Error(w, "bad path", http.StatusNotFound)
		return
	}
	page, err := strconv.Atoi(parts[5])
	if err != nil {
		http.Error(w, "bad page", http.StatusNotFound)
		return
	}
	body, ok := u.pages[page]
	if !ok {
		body = pageBody("x")
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestClientFetch(t *testing.T) {
	Convey("Given an upstream with two pages", t, func() {
		up := &upstream{pages: map[int]string{
			1: pageBody("t1", row(1, "Someone Else", 1200, 30_000_000_000), row(2, "Another", 1100, 20_000_000_000)),
			2: pageBody("t1", row(51, "Mathias Bynens", 100, 15_694_800)),
		}}
		srv := httptest.NewServer(up)
		defer srv.Close()

		snapshotPath := filepath.Join(t.TempDir(), "snap", "page1.json")
		client, err := highscore.New("Vunira", "paladins", "Mathias Bynens",
			highscore.WithBaseURL(srv.URL+"/"),
			highscore.WithHTTPClient(srv.Client()),
			highscore.WithSnapshotPath(snapshotPath),
		)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When fetching the first time", func() {
			snap, err := client.Fetch(ctx)

			Convey("Then it walks to page 2 and returns the row", func() {
				So(err, ShouldBeNil)
				So(snap.Rank, ShouldEqual, 51)
				So(snap.Level, ShouldEqual, 100)
				So(snap.Experience, ShouldEqual, 15_694_800)
				So(up.hits.Load(), ShouldEqual, 2)
			})

			Convey("Then page 1 is not saved before Commit", func() {
				_, err := os.Stat(snapshotPath)
				So(os.IsNotExist(err), ShouldBeTrue)
			})

			Convey("And the same page is fetched again without a Commit", func() {
				up.pages[1] = pageBody("t2", row(1, "Someone Else", 1200, 30_000_000_000), row(2, "Another", 1100, 20_000_000_000))
				_, err := client.Fetch(ctx)

				Convey("Then the retry is not reported stale", func() {
					So(err, ShouldBeNil)
				})
			})
		})

		Convey("When fetching and committing", func() {
			_, err := client.Fetch(ctx)
			So(err, ShouldBeNil)
			So(client.Commit(ctx), ShouldBeNil)

			Convey("Then page 1 is persisted without volatile fields", func() {
				raw, err := os.ReadFile(snapshotPath)
				So(err, ShouldBeNil)
				So(string(raw), ShouldNotContainSubstring, "timestamp")
				So(string(raw), ShouldNotContainSubstring, "highscore_age")
				So(string(raw), ShouldContainSubstring, "Someone Else")
			})

			Convey("And fetching again with only volatile fields changed", func() {
				up.pages[1] = pageBody("t2", row(1, "Someone Else", 1200, 30_000_000_000), row(2, "Another", 1100, 20_000_000_000))
				_, err := client.Fetch(ctx)

				Convey("Then the snapshot is reported stale", func() {
					So(errors.Is(err, highscore.ErrStaleSnapshot), ShouldBeTrue)
				})
			})

			Convey("And fetching again after page 1 changed", func() {
				up.pages[1] = pageBody("t2", row(1, "Someone Else", 1200, 30_100_000_000), row(2, "Another", 1100, 20_000_000_000))
				_, err := client.Fetch(ctx)

				Convey("Then the fetch succeeds", func() {
					So(err, ShouldBeNil)
				})
			})
		})
	})

	Convey("Given an upstream without the character", t, func() {
		up := &upstream{pages: map[int]string{
			1: pageBody("t", row(1, "Someone Else", 1200, 1)),
			2: pageBody("t", row(51, "Another", 300, 1)),
			3: pageBody("t", row(101, "Third", 200, 1)),
		}}
		srv := httptest.NewServer(up)
		defer srv.Close()

		Convey("When the page cap is reached", func() {
			client, err := highscore.New("Vunira", "paladins", "Nobody",
				highscore.WithBaseURL(srv.URL), highscore.WithMaxPages(2))
			So(err, ShouldBeNil)
			_, err = client.Fetch(context.Background())

			Convey("Then ErrCharacterNotFound is returned after two pages", func() {
				So(errors.Is(err, highscore.ErrCharacterNotFound), ShouldBeTrue)
				So(up.hits.Load(), ShouldEqual, 2)
			})
		})

		Convey("When an empty page ends the list early", func() {
			client, err := highscore.New("Vunira", "paladins", "Nobody", highscore.WithBaseURL(srv.URL))
			So(err, ShouldBeNil)
			_, err = client.Fetch(context.Background())

			Convey("Then the walk stops at the empty page", func() {
				So(errors.Is(err, highscore.ErrCharacterNotFound), ShouldBeTrue)
				So(up.hits.Load(), ShouldEqual, 4)
			})
		})
	})

	Convey("Given an upstream returning 503", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client, err := highscore.New("Vunira", "paladins", "Mathias Bynens", highscore.WithBaseURL(srv.URL))
		So(err, ShouldBeNil)

		Convey("Then Fetch wraps ErrUpstream", func() {
			_, err := client.Fetch(context.Background())
			So(errors.Is(err, highscore.ErrUpstream), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "503")
		})
	})

	Convey("Given missing identity fields", t, func() {
		_, err := highscore.New("", "paladins", "x")
		So(err, ShouldNotBeNil)
	})
}

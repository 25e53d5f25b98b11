// Package servicetest wires a Service over a temporary vault for tests of
// the packages that sit on top of it.
package servicetest

import (
	"context"
	"testing"
	"time"

	"github.com/starford/almanac/internal/dailyrecord"
	"github.com/starford/almanac/internal/memos"
	"github.com/starford/almanac/internal/para"
	"github.com/starford/almanac/internal/period"
	"github.com/starford/almanac/internal/periodic"
	"github.com/starford/almanac/internal/service"
	"github.com/starford/almanac/internal/testutil"
)

// DailyHeader is the daily-record header of the test service.
const DailyHeader = "## Daily Record"

// New wires a Service in UTC over a fresh vault. With a nil src the memo
// sync is left unconfigured.
func New(t *testing.T, src dailyrecord.Source) (*service.Service, *testutil.Env) {
	t.Helper()
	env := testutil.TestVault(t)
	logger := testutil.Logger()
	notes := periodic.New(env.Vault, periodic.Config{
		Folder:      "PeriodicNotes",
		Location:    time.UTC,
		DailyHeader: DailyHeader,
	}, logger)
	resolver := period.NewResolver(time.UTC, "PeriodicNotes", env.Vault)
	pm := para.New(env.Vault, para.Config{}, logger)

	var engine *dailyrecord.Engine
	if src != nil {
		engine = dailyrecord.New(src, notes, env.Vault, env.DB, dailyrecord.Config{
			Header:           DailyHeader,
			AttachmentFolder: "Attachments/memos",
			Location:         time.UTC,
			CreateDelay:      time.Millisecond,
			Namespace:        "daily-record:test",
		}, logger)
	}
	return service.New(env.Vault, resolver, notes, pm, engine, logger), env
}

// Source serves a single page of records on a current-protocol server.
type Source struct {
	Records []memos.Record
}

func (s *Source) Discover(context.Context) (memos.Session, error) {
	return memos.Session{Protocol: memos.Current, User: "users/1"}, nil
}

func (s *Source) ListPage(_ context.Context, _ memos.Session, cur memos.Cursor) (memos.Page, error) {
	if cur.Token != "" {
		return memos.Page{}, nil
	}
	return memos.Page{Records: s.Records}, nil
}

func (s *Source) Download(context.Context, memos.Session, memos.Attachment) ([]byte, error) {
	return []byte("attachment"), nil
}

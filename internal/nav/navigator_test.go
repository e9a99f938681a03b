package nav

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/fetch"
	"github.com/slmtnm/s3ranger/internal/listing"
	"github.com/slmtnm/s3ranger/internal/pathkey"
	"github.com/slmtnm/s3ranger/internal/store/memory"
)

type recorder struct {
	views  [][]listing.EntryRow
	navs   []pathkey.Location
	errors []error
}

func (r *recorder) ViewChanged(rows []listing.EntryRow)  { r.views = append(r.views, rows) }
func (r *recorder) NavigationChanged(l pathkey.Location) { r.navs = append(r.navs, l) }
func (r *recorder) ErrorOccurred(err error)              { r.errors = append(r.errors, err) }

func (r *recorder) lastView() []listing.EntryRow {
	if len(r.views) == 0 {
		return nil
	}
	return r.views[len(r.views)-1]
}

type fixture struct {
	store *memory.Store
	nav   *Navigator
	rec   *recorder
	lists atomic.Int32
}

func newFixture(t *testing.T, strategy Strategy) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), rec: &recorder{}}
	f.store.Put("bkt", "logs/app.log", make([]byte, 100), time.Time{})
	f.store.Put("bkt", "logs/debug.log", make([]byte, 50), time.Time{})
	f.store.Put("bkt", "config.json", make([]byte, 20), time.Time{})
	f.store.Put("other", "x.txt", []byte("x"), time.Time{})
	f.store.SetListHook(func(context.Context, string, string, string) error {
		f.lists.Add(1)
		return nil
	})

	coord := fetch.NewCoordinator(f.store, time.Second, nil)
	f.nav = New(coord, Options{Strategy: strategy, Listener: f.rec})
	return f
}

// run executes task synchronously and delivers its result.
func (f *fixture) run(task fetch.Task) {
	if task != nil {
		f.nav.Deliver(task())
	}
}

func summary(rows []listing.EntryRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Kind.String() + ":" + r.Name
	}
	return out
}

func TestScenario_BrowseAndReturn(t *testing.T) {
	for _, strategy := range []Strategy{StrategyLazy, StrategyEager} {
		t.Run(strategy.String(), func(t *testing.T) {
			f := newFixture(t, strategy)
			assert.Equal(t, StateNoBucket, f.nav.State())

			task, err := f.nav.SelectBucket("bkt")
			require.NoError(t, err)
			require.NotNil(t, task)
			assert.True(t, f.nav.Loading())
			assert.Empty(t, f.nav.Rows())
			f.run(task)

			assert.False(t, f.nav.Loading())
			rows := f.nav.Rows()
			require.Len(t, rows, 2)
			assert.Equal(t, listing.EntryRow{Name: "logs", Kind: listing.KindFolder, Size: 150}, rows[0])
			assert.Equal(t, listing.EntryRow{Name: "config.json", Kind: listing.KindFile, Size: 20}, rows[1])

			task, err = f.nav.EnterFolder("logs")
			require.NoError(t, err)
			assert.Nil(t, task, "root listing covers subfolders")
			assert.Equal(t, "logs/", f.nav.Prefix())
			assert.Equal(t, []string{"parent:..", "file:app.log", "file:debug.log"}, summary(f.nav.Rows()))
			assert.Equal(t, uint64(100), f.nav.Rows()[1].Size)
			assert.Equal(t, uint64(50), f.nav.Rows()[2].Size)

			assert.Nil(t, f.nav.GoUp())
			assert.Equal(t, "", f.nav.Prefix())
			assert.Equal(t, []string{"folder:logs", "file:config.json"}, summary(f.rec.lastView()))
			assert.Equal(t, int32(1), f.lists.Load())

			assert.Equal(t, []string{"s3://bkt", "s3://bkt/logs/", "s3://bkt"}, locations(f.rec.navs))
		})
	}
}

func locations(locs []pathkey.Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.String()
	}
	return out
}

func TestRefreshFailure_KeepsRows(t *testing.T) {
	f := newFixture(t, StrategyLazy)
	task, _ := f.nav.SelectBucket("bkt")
	f.run(task)
	before := f.nav.Rows()
	views := len(f.rec.views)

	f.store.SetListHook(func(context.Context, string, string, string) error {
		return errs.New(errs.KindConnectionFailed, "connection refused")
	})
	task = f.nav.Refresh()
	require.NotNil(t, task)
	assert.Equal(t, before, f.nav.Rows(), "rows stay in view while refreshing")
	f.run(task)

	assert.Equal(t, before, f.nav.Rows())
	require.Len(t, f.rec.errors, 1)
	assert.True(t, errs.IsStore(f.rec.errors[0]))
	assert.Len(t, f.rec.views, views, "no view change on failure")
	assert.Equal(t, "", f.nav.Prefix())
	assert.False(t, f.nav.Loading())
}

func TestGoUp_FailureKeepsTargetPrefix(t *testing.T) {
	f := newFixture(t, StrategyLazy)
	task, _ := f.nav.Open(pathkey.Location{Bucket: "bkt", Key: "logs/"})
	f.run(task)
	require.Len(t, f.nav.Rows(), 3)

	f.store.SetListHook(func(context.Context, string, string, string) error {
		return errs.New(errs.KindPermissionDenied, "denied")
	})
	task = f.nav.GoUp()
	require.NotNil(t, task, "root is outside the cached scope")
	f.run(task)

	assert.Equal(t, "", f.nav.Prefix())
	assert.Empty(t, f.nav.Rows())
	require.Len(t, f.rec.errors, 1)
	assert.True(t, errs.IsPermissionDenied(f.rec.errors[0]))
}

func TestEnterFolder_RequiresFolderRow(t *testing.T) {
	f := newFixture(t, StrategyLazy)

	_, err := f.nav.EnterFolder("logs")
	assert.True(t, errs.IsInvalidInput(err), "no bucket yet")

	task, _ := f.nav.SelectBucket("bkt")
	f.run(task)

	for _, name := range []string{"config.json", "missing", listing.ParentName, ""} {
		_, err := f.nav.EnterFolder(name)
		assert.True(t, errs.IsInvalidInput(err), name)
	}
	assert.Equal(t, "", f.nav.Prefix())
}

func TestGoUp_NoOps(t *testing.T) {
	f := newFixture(t, StrategyLazy)
	assert.Nil(t, f.nav.GoUp())
	assert.Equal(t, StateNoBucket, f.nav.State())

	task, _ := f.nav.SelectBucket("bkt")
	f.run(task)
	navs := len(f.rec.navs)
	assert.Nil(t, f.nav.GoUp())
	assert.Equal(t, StateAtPrefix, f.nav.State())
	assert.Len(t, f.rec.navs, navs)
}

func TestSelectBucket_DiscardsPreviousListing(t *testing.T) {
	f := newFixture(t, StrategyEager)
	task, _ := f.nav.SelectBucket("bkt")
	f.run(task)
	_, err := f.nav.EnterFolder("logs")
	require.NoError(t, err)

	task, err = f.nav.SelectBucket("other")
	require.NoError(t, err)
	assert.Empty(t, f.nav.Rows())
	assert.Equal(t, Context{Bucket: "other"}, f.nav.Context())
	f.run(task)
	assert.Equal(t, []string{"file:x.txt"}, summary(f.nav.Rows()))

	_, err = f.nav.SelectBucket("")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestSelectBucket_StaleResultDropped(t *testing.T) {
	f := newFixture(t, StrategyLazy)
	first, _ := f.nav.SelectBucket("bkt")
	second, _ := f.nav.SelectBucket("other")

	f.nav.Deliver(second())
	f.nav.Deliver(first())

	assert.Equal(t, []string{"file:x.txt"}, summary(f.nav.Rows()))
	assert.Equal(t, "other", f.nav.Location().Bucket)
}

func TestLazy_SubfolderReusesScope(t *testing.T) {
	f := newFixture(t, StrategyLazy)
	f.store.Put("bkt", "logs/2024/01/a.log", []byte("a"), time.Time{})

	task, _ := f.nav.Open(pathkey.MustParse("s3://bkt/logs/"))
	f.run(task)
	assert.Equal(t, []string{"parent:..", "folder:2024", "file:app.log", "file:debug.log"}, summary(f.nav.Rows()))

	task, err := f.nav.EnterFolder("2024")
	require.NoError(t, err)
	assert.Nil(t, task)
	assert.Equal(t, []string{"parent:..", "folder:01"}, summary(f.nav.Rows()))

	assert.Nil(t, f.nav.GoUp())
	assert.Equal(t, int32(1), f.lists.Load())

	// leaving the cached scope needs a fetch of the parent
	task = f.nav.GoUp()
	require.NotNil(t, task)
	assert.True(t, f.nav.Loading())
	assert.Empty(t, f.nav.Rows())
	f.run(task)
	assert.Equal(t, []string{"folder:logs", "file:config.json"}, summary(f.nav.Rows()))
}

func TestLazy_RefreshFetchesCurrentPrefix(t *testing.T) {
	f := newFixture(t, StrategyLazy)
	task, _ := f.nav.SelectBucket("bkt")
	f.run(task)
	_, _ = f.nav.EnterFolder("logs")

	f.store.Put("bkt", "logs/new.log", []byte("n"), time.Time{})
	f.run(f.nav.Refresh())
	assert.Equal(t, []string{"parent:..", "file:app.log", "file:debug.log", "file:new.log"}, summary(f.nav.Rows()))
}

func TestEager_RefreshFetchesWholeBucket(t *testing.T) {
	f := newFixture(t, StrategyEager)
	task, _ := f.nav.Open(pathkey.MustParse("s3://bkt/logs/"))
	f.run(task)

	assert.Nil(t, f.nav.GoUp(), "eager listing covers the root")
	assert.Equal(t, []string{"folder:logs", "file:config.json"}, summary(f.nav.Rows()))

	_, _ = f.nav.EnterFolder("logs")
	f.run(f.nav.Refresh())
	assert.Equal(t, "logs/", f.nav.Prefix())
	assert.Equal(t, int32(2), f.lists.Load())
}

func TestNavigateWhileLoading(t *testing.T) {
	f := newFixture(t, StrategyEager)
	task, _ := f.nav.SelectBucket("bkt")
	f.run(task)
	_, _ = f.nav.EnterFolder("logs")

	refresh := f.nav.Refresh()
	require.NotNil(t, refresh)

	// the outstanding whole-bucket fetch still covers the root
	assert.Nil(t, f.nav.GoUp())
	assert.True(t, f.nav.Loading())
	assert.Equal(t, []string{"folder:logs", "file:config.json"}, summary(f.nav.Rows()))

	f.store.Put("bkt", "z.txt", []byte("z"), time.Time{})
	f.run(refresh)
	assert.False(t, f.nav.Loading())
	assert.Equal(t, []string{"folder:logs", "file:config.json", "file:z.txt"}, summary(f.nav.Rows()))
}

func TestLazy_CoveredMoveSupersedesUnrelatedFetch(t *testing.T) {
	f := newFixture(t, StrategyLazy)
	task, _ := f.nav.SelectBucket("bkt")
	f.run(task)
	_, _ = f.nav.EnterFolder("logs")

	refresh := f.nav.Refresh() // scope logs/
	assert.Nil(t, f.nav.GoUp(), "root cache still covers the root")
	assert.False(t, f.nav.Loading())

	f.nav.Deliver(refresh())
	assert.Equal(t, "", f.nav.Prefix())
	assert.Equal(t, []string{"folder:logs", "file:config.json"}, summary(f.nav.Rows()))
}

func TestSelection_FollowsView(t *testing.T) {
	f := newFixture(t, StrategyLazy)
	task, _ := f.nav.SelectBucket("bkt")
	f.run(task)

	loc, ok := f.nav.Tracker().LocationFor(0)
	require.True(t, ok)
	assert.Equal(t, pathkey.New("bkt", "logs/"), loc)

	_, _ = f.nav.EnterFolder("logs")
	_, ok = f.nav.Tracker().LocationFor(0)
	assert.False(t, ok, "parent row")
	for i := range f.nav.Tracker().Len() {
		row, _ := f.nav.Tracker().RowAt(i)
		assert.Equal(t, f.nav.Rows()[i], row)
		if loc, ok := f.nav.Tracker().LocationFor(i); ok {
			assert.Equal(t, "logs/"+row.Name, loc.Key)
		}
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t, StrategyLazy)
	task, _ := f.nav.SelectBucket("bkt")
	f.run(task)
	pending := f.nav.Refresh()

	f.nav.Reset()
	assert.Equal(t, StateNoBucket, f.nav.State())
	assert.Empty(t, f.nav.Rows())
	assert.Equal(t, 0, f.nav.Tracker().Len())
	assert.True(t, f.nav.Location().IsZero())

	f.nav.Deliver(pending())
	assert.Empty(t, f.nav.Rows(), "result from before the reset is stale")
	assert.Nil(t, f.nav.Refresh())
}

func TestOpen(t *testing.T) {
	f := newFixture(t, StrategyLazy)

	task, err := f.nav.Open(pathkey.Location{Bucket: "bkt", Key: "logs//2024"})
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, []string{"logs", "2024"}, f.nav.Context().Stack)
	assert.Equal(t, "logs/2024/", f.nav.Prefix())

	_, err = f.nav.Open(pathkey.Location{})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{"": StrategyLazy, "lazy": StrategyLazy, "EAGER": StrategyEager} {
		got, err := ParseStrategy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseStrategy("sometimes")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestContext_Prefix(t *testing.T) {
	assert.Equal(t, "", Context{Bucket: "b"}.Prefix())
	assert.Equal(t, "a/b/", Context{Bucket: "b", Stack: []string{"a", "b"}}.Prefix())
	assert.Equal(t, "s3://b/a/", Context{Bucket: "b", Stack: []string{"a"}}.Location().String())
	assert.True(t, Context{}.Location().IsZero())
}

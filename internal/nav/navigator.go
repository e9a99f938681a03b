// Package nav implements the navigation state machine: the current bucket and
// folder stack, and the transitions that move between them while keeping the
// listing cache and the row mapping consistent.
//
// A Navigator is owned by a single goroutine. Transitions that need data
// return a fetch.Task; the owner runs it in the background and passes the
// Result back through Deliver. A nil Task means nothing has to be fetched.
package nav

import (
	"strings"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/fetch"
	"github.com/slmtnm/s3ranger/internal/listing"
	"github.com/slmtnm/s3ranger/internal/logger"
	"github.com/slmtnm/s3ranger/internal/pathkey"
	"github.com/slmtnm/s3ranger/internal/selection"
)

// Listener receives display notifications. Calls happen on the owning
// goroutine, synchronously within the transition that caused them.
type Listener interface {
	ViewChanged(rows []listing.EntryRow)
	NavigationChanged(loc pathkey.Location)
	ErrorOccurred(err error)
}

type nopListener struct{}

func (nopListener) ViewChanged([]listing.EntryRow)     {}
func (nopListener) NavigationChanged(pathkey.Location) {}
func (nopListener) ErrorOccurred(error)                {}

// Options configures a Navigator.
type Options struct {
	Strategy Strategy
	Listener Listener
	Logger   *logger.Logger
}

// Navigator owns the navigation context, the listing cache and the
// selection tracker.
type Navigator struct {
	coord    *fetch.Coordinator
	cache    *listing.Cache
	tracker  *selection.Tracker
	strategy Strategy
	listener Listener
	log      *logger.Logger

	state State
	ctx   Context
	rows  []listing.EntryRow

	loading       bool
	pendingBucket string
	pendingScope  string
}

// New creates a navigator in the NoBucket state.
func New(coord *fetch.Coordinator, opts Options) *Navigator {
	if opts.Listener == nil {
		opts.Listener = nopListener{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Navigator{
		coord:    coord,
		cache:    listing.New(),
		tracker:  selection.New(),
		strategy: opts.Strategy,
		listener: opts.Listener,
		log:      opts.Logger,
		state:    StateNoBucket,
	}
}

// State returns the current state.
func (n *Navigator) State() State { return n.state }

// Context returns a copy of the navigation context.
func (n *Navigator) Context() Context { return n.ctx.clone() }

// Prefix returns the current key prefix.
func (n *Navigator) Prefix() string { return n.ctx.Prefix() }

// Location returns the current bucket and prefix as a location.
func (n *Navigator) Location() pathkey.Location { return n.ctx.Location() }

// Strategy returns the fetch strategy.
func (n *Navigator) Strategy() Strategy { return n.strategy }

// Loading reports whether an admitted fetch is still outstanding.
func (n *Navigator) Loading() bool { return n.loading }

// Rows returns a copy of the rows currently in view.
func (n *Navigator) Rows() []listing.EntryRow {
	return append([]listing.EntryRow(nil), n.rows...)
}

// Tracker exposes the row mapping for action dispatch.
func (n *Navigator) Tracker() *selection.Tracker { return n.tracker }

// SelectBucket moves to the root of name. The previous bucket's listing is
// dropped and a fresh fetch is always started.
func (n *Navigator) SelectBucket(name string) (fetch.Task, error) {
	if name == "" || strings.Contains(name, pathkey.Separator) {
		return nil, errs.Newf(errs.KindInvalidInput, "invalid bucket name %q", name)
	}
	return n.open(name, nil), nil
}

// Open moves straight to loc, as when a location is given on the command
// line. Every non-empty segment of the key becomes a folder.
func (n *Navigator) Open(loc pathkey.Location) (fetch.Task, error) {
	if loc.Bucket == "" {
		return nil, errs.New(errs.KindInvalidInput, "location has no bucket")
	}
	if strings.Contains(loc.Bucket, pathkey.Separator) {
		return nil, errs.Newf(errs.KindInvalidInput, "invalid bucket name %q", loc.Bucket)
	}
	return n.open(loc.Bucket, splitPrefix(loc.Key)), nil
}

func (n *Navigator) open(bucket string, stack []string) fetch.Task {
	n.state = StateAtPrefix
	n.ctx = Context{Bucket: bucket, Stack: stack}
	n.cache.Clear()
	n.setRows(nil)

	n.log.With().Str("bucket", bucket).Str("prefix", n.ctx.Prefix()).Logger().Debug("bucket selected")
	n.listener.NavigationChanged(n.ctx.Location())
	n.listener.ViewChanged(n.Rows())
	return n.request(n.fetchScope())
}

// EnterFolder pushes name onto the stack. name must be a folder row of the
// current view.
func (n *Navigator) EnterFolder(name string) (fetch.Task, error) {
	if n.state != StateAtPrefix {
		return nil, errs.New(errs.KindInvalidInput, "no bucket selected")
	}
	if n.tracker.IndexOf(name, listing.KindFolder) < 0 {
		return nil, errs.Newf(errs.KindInvalidInput, "no folder %q in %s", name, n.ctx.Location())
	}

	n.ctx.Stack = append(n.ctx.Stack, name)
	return n.moved(), nil
}

// GoUp pops one folder. It does nothing at the bucket root or without a
// bucket.
func (n *Navigator) GoUp() fetch.Task {
	if n.state != StateAtPrefix || len(n.ctx.Stack) == 0 {
		return nil
	}
	n.ctx.Stack = n.ctx.Stack[:len(n.ctx.Stack)-1]
	return n.moved()
}

// Refresh re-fetches the current scope. The rows stay in view until the
// result arrives.
func (n *Navigator) Refresh() fetch.Task {
	if n.state != StateAtPrefix {
		return nil
	}
	return n.request(n.fetchScope())
}

// Reset returns to NoBucket and supersedes every outstanding fetch.
func (n *Navigator) Reset() {
	n.coord.Invalidate()
	n.state = StateNoBucket
	n.ctx = Context{}
	n.cache.Clear()
	n.loading = false
	n.pendingBucket, n.pendingScope = "", ""
	n.setRows(nil)

	n.listener.NavigationChanged(pathkey.Location{})
	n.listener.ViewChanged(n.Rows())
}

// Deliver applies a completed fetch if it is still current. A failed fetch
// leaves the cache and rows as they were and is reported once.
func (n *Navigator) Deliver(res fetch.Result) {
	if !n.coord.Accept(res) {
		return
	}
	n.loading = false
	n.pendingBucket, n.pendingScope = "", ""

	if res.Err != nil {
		n.listener.ErrorOccurred(res.Err)
		return
	}

	n.cache.SetRawListing(res.Bucket, res.Scope, res.Records)
	n.derive()
}

// moved handles a change of prefix within the current bucket.
func (n *Navigator) moved() fetch.Task {
	prefix := n.ctx.Prefix()
	n.log.With().Str("bucket", n.ctx.Bucket).Str("prefix", prefix).Logger().Debug("navigated")
	n.listener.NavigationChanged(n.ctx.Location())

	if n.loading && n.pendingBucket == n.ctx.Bucket && strings.HasPrefix(prefix, n.pendingScope) {
		// The outstanding fetch will cover the new prefix.
		if n.cache.Covers(n.ctx.Bucket, prefix) {
			n.derive()
		} else {
			n.setRows(nil)
			n.listener.ViewChanged(n.Rows())
		}
		return nil
	}

	if n.cache.Covers(n.ctx.Bucket, prefix) {
		if n.loading {
			n.coord.Invalidate()
			n.loading = false
			n.pendingBucket, n.pendingScope = "", ""
		}
		n.derive()
		return nil
	}

	n.setRows(nil)
	n.listener.ViewChanged(n.Rows())
	return n.request(n.fetchScope())
}

func (n *Navigator) request(scope string) fetch.Task {
	n.loading = true
	n.pendingBucket = n.ctx.Bucket
	n.pendingScope = scope
	return n.coord.Request(n.ctx.Bucket, scope)
}

func (n *Navigator) fetchScope() string {
	if n.strategy == StrategyEager {
		return ""
	}
	return n.ctx.Prefix()
}

func (n *Navigator) derive() {
	n.setRows(n.cache.DeriveView(n.ctx.Prefix()))
	n.listener.ViewChanged(n.Rows())
}

func (n *Navigator) setRows(rows []listing.EntryRow) {
	n.rows = rows
	n.tracker.Rebuild(n.ctx.Bucket, n.ctx.Prefix(), rows)
}

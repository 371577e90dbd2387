package browser

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/widescreen/pkg/logging"
	"github.com/entrhq/widescreen/pkg/observe"
	"github.com/entrhq/widescreen/pkg/site"
)

type fakeEngine struct {
	focused atomic.Int32
	closed  atomic.Int32
	feed    *observe.Feed
}

func (e *fakeEngine) Focus() { e.focused.Add(1) }
func (e *fakeEngine) Close() { e.closed.Add(1) }

type engineLog struct {
	mu      sync.Mutex
	engines []*fakeEngine
	err     error
}

func (l *engineLog) start(p *Page) (Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	e := &fakeEngine{feed: p.Feed()}
	l.engines = append(l.engines, e)
	return e, nil
}

func (l *engineLog) started() []*fakeEngine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeEngine(nil), l.engines...)
}

func chatgpt(t *testing.T) func() *site.Descriptor {
	t.Helper()
	d, err := site.DefaultRegistry().Lookup("chatgpt.com")
	require.NoError(t, err)
	return func() *site.Descriptor { return d }
}

func unsupported() *site.Descriptor { return nil }

func TestReloadRebuildsEngine(t *testing.T) {
	page := newPage("tab-1", nil, time.Second, logging.Discard())
	t.Cleanup(page.retire)
	engines := &engineLog{}

	require.NoError(t, page.reload(1, chatgpt(t), engines.start))
	require.Len(t, engines.started(), 1)
	first := engines.started()[0]
	assert.Same(t, page.Feed(), first.feed)
	assert.Equal(t, "chatgpt", page.Site().Name())

	page.focus()
	assert.Equal(t, int32(1), first.focused.Load())

	// a reload drops the old engine and its feed
	require.NoError(t, page.reload(2, chatgpt(t), engines.start))
	require.Len(t, engines.started(), 2)
	second := engines.started()[1]
	assert.Equal(t, int32(1), first.closed.Load())
	assert.Zero(t, second.closed.Load())
	assert.NotSame(t, first.feed, second.feed)
	assert.Same(t, page.Feed(), second.feed)

	var delivered atomic.Int32
	second.feed.Subscribe(nil, func([]observe.Record) { delivered.Add(1) })
	first.feed.Subscribe(nil, func([]observe.Record) { t.Error("stale feed delivered a record") })
	page.publish(observe.Record{Kind: observe.KindChildList, Target: observe.TargetBody})
	require.True(t, second.feed.Settle(time.Second))
	assert.Equal(t, int32(1), delivered.Load())

	page.focus()
	assert.Equal(t, int32(1), first.focused.Load())
	assert.Equal(t, int32(1), second.focused.Load())
}

func TestReloadSkipsServedLoads(t *testing.T) {
	page := newPage("tab-1", nil, time.Second, logging.Discard())
	t.Cleanup(page.retire)
	engines := &engineLog{}

	require.NoError(t, page.reload(2, chatgpt(t), engines.start))
	require.NoError(t, page.reload(1, chatgpt(t), engines.start))
	require.NoError(t, page.reload(2, chatgpt(t), engines.start))
	assert.Len(t, engines.started(), 1)
	assert.Zero(t, engines.started()[0].closed.Load())
}

func TestReloadOffChatSiteStopsEngine(t *testing.T) {
	page := newPage("tab-1", nil, time.Second, logging.Discard())
	t.Cleanup(page.retire)
	engines := &engineLog{}

	require.NoError(t, page.reload(1, chatgpt(t), engines.start))
	require.NoError(t, page.reload(2, unsupported, engines.start))

	require.Len(t, engines.started(), 1)
	assert.Equal(t, int32(1), engines.started()[0].closed.Load())
	assert.Nil(t, page.Site())
	assert.False(t, page.SidebarHidden())

	// coming back starts a new engine
	require.NoError(t, page.reload(3, chatgpt(t), engines.start))
	assert.Len(t, engines.started(), 2)
}

func TestReloadStartFailureLeavesNoEngine(t *testing.T) {
	page := newPage("tab-1", nil, time.Second, logging.Discard())
	t.Cleanup(page.retire)
	engines := &engineLog{}

	require.NoError(t, page.reload(1, chatgpt(t), engines.start))
	engines.err = errors.New("init timed out")
	require.Error(t, page.reload(2, chatgpt(t), engines.start))

	assert.Equal(t, int32(1), engines.started()[0].closed.Load())
	page.focus()
	assert.Zero(t, engines.started()[0].focused.Load())
}

func TestRetireBlocksLaterLoads(t *testing.T) {
	page := newPage("tab-1", nil, time.Second, logging.Discard())
	engines := &engineLog{}

	require.NoError(t, page.reload(1, chatgpt(t), engines.start))
	page.retire()
	assert.Equal(t, int32(1), engines.started()[0].closed.Load())

	// a load event that raced the close finds the page retired
	require.NoError(t, page.reload(page.navs.Add(1), chatgpt(t), engines.start))
	assert.Len(t, engines.started(), 1)
	page.retire()
	assert.Equal(t, int32(1), engines.started()[0].closed.Load())
}

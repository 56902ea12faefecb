package sharekit

import (
	"context"
	"testing"

	"github.com/go-playground/assert/v2"
)

type todoEntity struct {
	Title string `json:"title"`
}

func subscribedQuery(t *testing.T) (*Connection, *fakeSocket, *QueryHandle[todoEntity]) {
	t.Helper()
	ctx := context.Background()
	c, sock := newTestConnection(t)
	handshake(t, c, "c1")

	q, err := SubscribeQuery[todoEntity](ctx, c, "todos", map[string]any{"done": false})
	assert.Equal(t, err, nil)
	assert.Equal(t, q.ID(), uint64(1))

	frame := sock.last()
	assert.Equal(t, frameField(frame, "a").String(), "qs")
	assert.Equal(t, frameField(frame, "c").String(), "todos")
	assert.Equal(t, frameField(frame, "id").Uint(), uint64(1))
	return c, sock, q
}

func TestQueryPutInstallsDocuments(t *testing.T) {
	c, sock, q := subscribedQuery(t)

	c.handleFrame([]byte(`{"a":"qs","id":1,"c":"todos","data":[` +
		`{"d":"t1","v":1,"data":{"title":"one"}},` +
		`{"d":"t2","v":4,"data":{"title":"two"}}]}`))

	assert.Equal(t, q.Results(), []todoEntity{{Title: "one"}, {Title: "two"}})

	// Each installed document got its own subscribe frame.
	subs := 0
	for _, f := range sock.sent() {
		if frameField(f, "a").String() == "s" {
			subs++
		}
	}
	assert.Equal(t, subs, 2)

	// Installed documents live in the shared registry and track remote ops.
	doc, err := GetDocument[todoEntity](c, "todos", "t2")
	assert.Equal(t, err, nil)
	assert.Equal(t, doc.State(), StateReady)
	c.handleFrame([]byte(`{"a":"op","c":"todos","d":"t2","src":"c9","v":4,"op":[{"p":["title"],"oi":"TWO","od":"two"}]}`))
	assert.Equal(t, doc.Entity(), todoEntity{Title: "TWO"})
}

func TestQuerySyncDiffs(t *testing.T) {
	c, _, q := subscribedQuery(t)

	c.handleFrame([]byte(`{"a":"qs","id":1,"c":"todos","data":[` +
		`{"d":"t1","v":1,"data":{"title":"one"}},` +
		`{"d":"t2","v":1,"data":{"title":"two"}},` +
		`{"d":"t3","v":1,"data":{"title":"three"}}]}`))

	// move: ["one","two","three"] -> ["two","three","one"]
	c.handleFrame([]byte(`{"a":"q","id":1,"diff":[{"type":"move","from":0,"to":2,"howMany":1}]}`))
	assert.Equal(t, q.Results(), []todoEntity{{Title: "two"}, {Title: "three"}, {Title: "one"}})

	// insert at 1
	c.handleFrame([]byte(`{"a":"q","id":1,"diff":[{"type":"insert","index":1,"values":[{"d":"t4","v":1,"data":{"title":"four"}}]}]}`))
	assert.Equal(t, q.Results(), []todoEntity{{Title: "two"}, {Title: "four"}, {Title: "three"}, {Title: "one"}})

	// remove two entries from index 1
	c.handleFrame([]byte(`{"a":"q","id":1,"diff":[{"type":"remove","index":1,"howMany":2}]}`))
	assert.Equal(t, q.Results(), []todoEntity{{Title: "two"}, {Title: "one"}})

	// out-of-range diffs are dropped, not applied partially
	c.handleFrame([]byte(`{"a":"q","id":1,"diff":[{"type":"remove","index":5,"howMany":1}]}`))
	assert.Equal(t, q.Results(), []todoEntity{{Title: "two"}, {Title: "one"}})
}

// Identical query expressions on one collection share a subscription.
func TestQueryDeduplication(t *testing.T) {
	ctx := context.Background()
	c, sock := newTestConnection(t)
	handshake(t, c, "c1")

	a, err := SubscribeQuery[todoEntity](ctx, c, "todos", map[string]any{"done": false})
	assert.Equal(t, err, nil)
	before := len(sock.sent())

	b, err := SubscribeQuery[todoEntity](ctx, c, "todos", map[string]any{"done": false})
	assert.Equal(t, err, nil)
	assert.Equal(t, a.q == b.q, true)
	assert.Equal(t, len(sock.sent()), before)

	// A different expression gets its own id.
	d, err := SubscribeQuery[todoEntity](ctx, c, "todos", map[string]any{"done": true})
	assert.Equal(t, err, nil)
	assert.Equal(t, d.ID(), uint64(2))
}

func TestQueryWatchPublishesResultSets(t *testing.T) {
	c, _, q := subscribedQuery(t)
	stream := q.Watch()

	c.handleFrame([]byte(`{"a":"qs","id":1,"c":"todos","data":[{"d":"t1","v":1,"data":{"title":"one"}}]}`))
	got := <-stream
	assert.Equal(t, got, []todoEntity{{Title: "one"}})
}

package sharekit

import (
	"context"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/LSX-s-Software/share-kit/json0"
	"github.com/LSX-s-Software/share-kit/wire"
)

func changeOps(t *testing.T, snapshot string, fn func(*Proxy) error) []json0.Op {
	t.Helper()
	ctx := context.Background()
	c, sock := newTestConnection(t)
	handshake(t, c, "c1")
	doc := mustReadyDoc(t, ctx, c, sock, "proxies", "doc", snapshot, 0)

	err := doc.Change(ctx, fn)
	assert.Equal(t, err, nil)
	doc.doc.mu.Lock()
	defer doc.doc.mu.Unlock()
	upd, ok := doc.doc.inflight.(wire.UpdateOperation)
	assert.Equal(t, ok, true)
	return upd.Ops
}

func TestProxySetInsertsAndReplaces(t *testing.T) {
	ops := changeOps(t, `{"a":1}`, func(p *Proxy) error {
		if err := p.Key("a").Set(int64(2)); err != nil {
			return err
		}
		return p.Key("b").Set("new")
	})
	assert.Equal(t, ops, []json0.Op{
		{Path: json0.Path{"a"}, Payload: json0.ObjectReplace{New: int64(2), Old: int64(1)}},
		{Path: json0.Path{"b"}, Payload: json0.ObjectInsert{Value: "new"}},
	})
}

func TestProxyListOps(t *testing.T) {
	ops := changeOps(t, `{"l":["a","b"]}`, func(p *Proxy) error {
		if err := p.Key("l").Index(0).Set("z"); err != nil {
			return err
		}
		if err := p.Key("l").Insert(2, "c"); err != nil {
			return err
		}
		return p.Key("l").Index(1).Remove()
	})
	assert.Equal(t, ops, []json0.Op{
		{Path: json0.Path{"l", 0}, Payload: json0.ListReplace{New: "z", Old: "a"}},
		{Path: json0.Path{"l", 2}, Payload: json0.ListInsert{Value: "c"}},
		{Path: json0.Path{"l", 1}, Payload: json0.ListDelete{Value: "b"}},
	})
}

func TestProxyTextSplice(t *testing.T) {
	ops := changeOps(t, `{"s":"hello"}`, func(p *Proxy) error {
		if err := p.Key("s").InsertText(5, " world"); err != nil {
			return err
		}
		return p.Key("s").DeleteText(0, "he")
	})
	assert.Equal(t, ops, []json0.Op{
		{Path: json0.Path{"s", 5}, Payload: json0.StringInsert{Text: " world"}},
		{Path: json0.Path{"s", 0}, Payload: json0.StringDelete{Text: "he"}},
	})
}

// Later operations in one transaction see the effects of earlier ones.
func TestProxyTransactionSeesOwnWrites(t *testing.T) {
	ops := changeOps(t, `{}`, func(p *Proxy) error {
		if err := p.Key("m").Set(map[string]any{}); err != nil {
			return err
		}
		return p.Key("m").Key("x").Set(int64(1))
	})
	assert.Equal(t, len(ops), 2)
	assert.Equal(t, ops[1], json0.Op{Path: json0.Path{"m", "x"}, Payload: json0.ObjectInsert{Value: int64(1)}})
}

// An operation whose preconditions fail is refused before it is enqueued,
// and the whole change is dropped.
func TestProxyRefusesInvalidOps(t *testing.T) {
	ctx := context.Background()
	c, sock := newTestConnection(t)
	handshake(t, c, "c1")
	doc := mustReadyDoc(t, ctx, c, sock, "proxies", "doc", `{"n":1.5}`, 0)

	before := len(sock.sent())
	err := doc.Change(ctx, func(p *Proxy) error {
		return p.Key("n").Add(1)
	})
	assert.Equal(t, errorsIs(err, json0.ErrInvalidJSONData), true)
	assert.Equal(t, len(sock.sent()), before)
	assert.Equal(t, doc.Entity(), counterEntity{})

	err = doc.Change(ctx, func(p *Proxy) error {
		return p.Key("missing").Key("x").Set(int64(1))
	})
	assert.Equal(t, errorsIs(err, json0.ErrInvalidPath), true)
}

func TestProxyAddMatchesNumericKind(t *testing.T) {
	ops := changeOps(t, `{"i":1,"f":0.5}`, func(p *Proxy) error {
		if err := p.Key("i").Add(2); err != nil {
			return err
		}
		return p.Key("f").Add(0.25)
	})
	assert.Equal(t, ops, []json0.Op{
		{Path: json0.Path{"i"}, Payload: json0.NumberAdd{Value: int64(2)}},
		{Path: json0.Path{"f"}, Payload: json0.NumberAdd{Value: float64(0.25)}},
	})
}

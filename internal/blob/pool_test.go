package blob

import "testing"

func TestBPoolGetReturnsExactSize(t *testing.T) {
	p := newBPool(32)
	buf := p.Get()
	if len(buf) != 32 {
		t.Fatalf("got length %d, want 32", len(buf))
	}
}

func TestBPoolGetAfterPutReturnsExactSize(t *testing.T) {
	p := newBPool(16)
	buf := p.Get()
	buf[0] = 0xAB
	p.Put(buf)

	again := p.Get()
	if len(again) != 16 {
		t.Fatalf("got length %d, want 16", len(again))
	}
}

func TestBPoolPutRejectsWrongSize(t *testing.T) {
	p := newBPool(16)
	// A slice with the wrong capacity must be dropped, not pooled -- a
	// later Get could otherwise hand back an undersized buffer.
	p.Put(make([]byte, 8))
	buf := p.Get()
	if len(buf) != 16 {
		t.Fatalf("got length %d, want 16", len(buf))
	}
}

func TestClusterPoolReturnsSamePoolForSameSize(t *testing.T) {
	a := clusterPool(64)
	b := clusterPool(64)
	if a != b {
		t.Fatal("clusterPool(64) returned two distinct pools")
	}
}

func TestClusterPoolKeepsDistinctSizesSeparate(t *testing.T) {
	a := clusterPool(64)
	b := clusterPool(128)
	if a == b {
		t.Fatal("clusterPool(64) and clusterPool(128) shared one pool")
	}
}

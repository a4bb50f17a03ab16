//go:build !integration

package rotation

import (
	"sync"
	"testing"
)

func TestNewKeyPool_TrimsAndCopies(t *testing.T) {
	in := []string{" a ", "", "b", "   "}
	p := NewKeyPool(in)
	in[0] = "mutated"

	if p.Size() != 2 {
		t.Fatalf("size = %d, want 2", p.Size())
	}
	if k, idx := p.Current(); k != "a" || idx != 0 {
		t.Errorf("Current = %s,%d", k, idx)
	}
}

func TestKeyPool_AdvanceWraps(t *testing.T) {
	p := NewKeyPool([]string{"a", "b", "c"})
	var got []string
	for i := 0; i < 4; i++ {
		k, _ := p.Current()
		got = append(got, k)
		p.Advance()
	}
	if want := []string{"a", "b", "c", "a"}; len(got) != 4 || got[3] != want[3] || got[1] != want[1] {
		t.Errorf("sequence = %v, want %v", got, want)
	}
}

func TestKeyPool_EmptyIsSafe(t *testing.T) {
	p := NewKeyPool(nil)
	if !p.Empty() {
		t.Fatal("expected empty pool")
	}
	p.Advance()
	if p.advanceFrom(0) {
		t.Error("advanceFrom on empty pool must not report a move")
	}
}

func TestKeyPool_RandomStartInRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := NewKeyPool([]string{"a", "b", "c"}, RandomStart())
		if _, idx := p.Current(); idx < 0 || idx >= 3 {
			t.Fatalf("cursor out of range: %d", idx)
		}
	}
}

func TestKeyPool_AdvanceFromOnlyOnce(t *testing.T) {
	p := NewKeyPool([]string{"a", "b", "c", "d"})
	_, idx := p.Current()

	var wg sync.WaitGroup
	moved := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			moved <- p.advanceFrom(idx)
		}()
	}
	wg.Wait()
	close(moved)

	n := 0
	for m := range moved {
		if m {
			n++
		}
	}
	if n != 1 {
		t.Errorf("expected a single advance, got %d", n)
	}
	if _, now := p.Current(); now != 1 {
		t.Errorf("cursor = %d, want 1", now)
	}
}

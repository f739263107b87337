package registry

import (
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/danmuck/rollbridge/internal/testutil/testlog"
)

func TestAllocateIsNonzeroAndDistinct(t *testing.T) {
	testlog.Start(t)
	r := New[string]()
	seen := make(map[Handle]bool)
	for i := 0; i < 1000; i++ {
		h, err := r.Allocate()
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if h == Invalid {
			t.Fatalf("allocate returned the invalid handle")
		}
		if seen[h] {
			t.Fatalf("handle %d issued twice", h)
		}
		seen[h] = true
	}
}

func TestHandlesNotReusedAfterRemove(t *testing.T) {
	testlog.Start(t)
	r := New[string]()
	h1, _ := r.Allocate()
	if err := r.Insert(h1, "a"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, ok := r.Remove(h1); !ok {
		t.Fatalf("remove missed live handle")
	}
	h2, _ := r.Allocate()
	if h2 == h1 {
		t.Fatalf("handle %d reused", h1)
	}
	if _, ok := r.Get(h1); ok {
		t.Fatalf("removed handle still resolves")
	}
}

func TestInsertRules(t *testing.T) {
	testlog.Start(t)
	r := New[int]()
	if err := r.Insert(Invalid, 1); !errors.Is(err, ErrHandleInvalid) {
		t.Fatalf("expected ErrHandleInvalid, got %v", err)
	}
	if err := r.Insert(5, 1); !errors.Is(err, ErrHandleNotAllocated) {
		t.Fatalf("expected ErrHandleNotAllocated, got %v", err)
	}
	h, _ := r.Allocate()
	if err := r.Insert(h, 1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := r.Insert(h, 2); !errors.Is(err, ErrHandleInUse) {
		t.Fatalf("expected ErrHandleInUse, got %v", err)
	}
	if v, ok := r.Get(h); !ok || v != 1 {
		t.Fatalf("get returned %v,%v", v, ok)
	}
}

func TestGetUnknownHandle(t *testing.T) {
	testlog.Start(t)
	r := New[int]()
	if _, ok := r.Get(999); ok {
		t.Fatalf("expected unknown handle to miss")
	}
	if _, ok := r.Remove(999); ok {
		t.Fatalf("expected remove of unknown handle to miss")
	}
}

func TestAllocateExhaustion(t *testing.T) {
	testlog.Start(t)
	r := New[int]()
	r.next = math.MaxUint32
	h, err := r.Allocate()
	if err != nil || h != math.MaxUint32 {
		t.Fatalf("expected last handle, got %d,%v", h, err)
	}
	if _, err := r.Allocate(); !errors.Is(err, ErrHandlesExhausted) {
		t.Fatalf("expected ErrHandlesExhausted, got %v", err)
	}
	if err := r.Insert(h, 1); err != nil {
		t.Fatalf("insert of last handle: %v", err)
	}
}

func TestHandlesSortedAndConcurrentAllocate(t *testing.T) {
	testlog.Start(t)
	r := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h, err := r.Allocate()
				if err != nil {
					t.Errorf("allocate: %v", err)
					return
				}
				if err := r.Insert(h, j); err != nil {
					t.Errorf("insert: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	hs := r.Handles()
	if len(hs) != 400 || r.Len() != 400 {
		t.Fatalf("expected 400 live handles, got %d", len(hs))
	}
	want := make([]Handle, 400)
	for i := range want {
		want[i] = Handle(i + 1)
	}
	if !reflect.DeepEqual(hs, want) {
		t.Fatalf("handles not sorted 1..400")
	}
}

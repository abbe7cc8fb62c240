package adapter

import (
	"context"
	"sync"
	"testing"
)

type listingAdapter struct {
	MockAdapter
	models []ModelDescriptor
}

func (l *listingAdapter) Models(ctx context.Context) ([]ModelDescriptor, error) {
	return l.models, nil
}

func TestCatalogAddDuplicate(t *testing.T) {
	c := NewCatalog()
	if err := c.Add(ModelDescriptor{ID: "mock"}, &MockAdapter{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.Add(ModelDescriptor{ID: "mock"}, &MockAdapter{}); err == nil {
		t.Fatal("expected error for duplicate model, got nil")
	}
	d, ok := c.Lookup("mock")
	if !ok {
		t.Fatal("mock not found")
	}
	if d.Name != "mock" || d.Provider != "mock" {
		t.Errorf("defaults: got name %q provider %q", d.Name, d.Provider)
	}
}

func TestCatalogDiscoverSkipsKnown(t *testing.T) {
	c := NewCatalog()
	b := &listingAdapter{models: []ModelDescriptor{{ID: "a"}, {ID: "b"}, {ID: ""}}}
	if err := c.Add(ModelDescriptor{ID: "a", Name: "Pinned"}, b); err != nil {
		t.Fatalf("Add: %v", err)
	}

	added, err := c.Discover(context.Background(), b)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if added != 1 {
		t.Errorf("added: got %d, want 1", added)
	}
	if d, _ := c.Lookup("a"); d.Name != "Pinned" {
		t.Errorf("known model overwritten: %+v", d)
	}
	if c.Len() != 2 {
		t.Errorf("len: got %d, want 2", c.Len())
	}
}

func TestCatalogDiscoverConcurrent(t *testing.T) {
	c := NewCatalog()
	b := &listingAdapter{models: []ModelDescriptor{{ID: "a"}, {ID: "b"}, {ID: "c"}}}

	const workers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := c.Discover(context.Background(), b)
			if err != nil {
				t.Errorf("Discover: %v", err)
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 3 {
		t.Errorf("total added: got %d, want 3", total)
	}
	if c.Len() != 3 {
		t.Errorf("len: got %d, want 3", c.Len())
	}
}

func TestCatalogDiscoverNonLister(t *testing.T) {
	c := NewCatalog()
	n, err := c.Discover(context.Background(), &MockAdapter{})
	if err != nil || n != 0 {
		t.Errorf("got (%d, %v), want (0, nil)", n, err)
	}
}

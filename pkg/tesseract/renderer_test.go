package tesseract

import (
	"errors"
	"testing"
	"time"
)

func fakeTextRenderer(t *testing.T, c *capi) *Renderer {
	t.Helper()
	r, err := newRendererWith(c, "TessTextRendererCreate", func(c *capi) (uintptr, error) {
		return c.TessTextRendererCreate(nil), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRendererLifecycle(t *testing.T) {
	e, f := recognizedEngine(t)
	r := fakeTextRenderer(t, e.c)
	defer r.Close()

	if ok, err := r.AddImage(e); ok || err != nil {
		t.Errorf("AddImage before BeginDocument: got %v, %v", ok, err)
	}
	if ok, err := r.EndDocument(); ok || err != nil {
		t.Errorf("EndDocument before BeginDocument: got %v, %v", ok, err)
	}
	if f.calls() != 0 {
		t.Fatalf("out of order calls reached the library")
	}
	if ok, err := r.BeginDocument("doc"); !ok || err != nil {
		t.Fatalf("BeginDocument: got %v, %v", ok, err)
	}
	if ok, _ := r.BeginDocument("doc"); ok {
		t.Error("second BeginDocument succeeded")
	}
	for range 2 {
		if ok, err := r.AddImage(e); !ok || err != nil {
			t.Fatalf("AddImage: got %v, %v", ok, err)
		}
	}
	if n, err := r.ImageNum(); err != nil || n != 2 {
		t.Errorf("got %d images, %v", n, err)
	}
	if ok, err := r.EndDocument(); !ok || err != nil {
		t.Fatalf("EndDocument: got %v, %v", ok, err)
	}
	calls := f.calls()
	if ok, _ := r.AddImage(e); ok {
		t.Error("AddImage after EndDocument succeeded")
	}
	if ok, _ := r.EndDocument(); ok {
		t.Error("second EndDocument succeeded")
	}
	if f.calls() != calls {
		t.Error("calls after EndDocument reached the library")
	}
}

func TestRendererAddImageNeedsInitializedEngine(t *testing.T) {
	f, c := newFakeLib()
	e, err := newEngine(c)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	r := fakeTextRenderer(t, c)
	defer r.Close()
	if _, err := r.BeginDocument(""); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddImage(e); !errors.Is(err, ErrUninitialized) {
		t.Errorf("got %v, want ErrUninitialized", err)
	}
	if f.calls() != 1 {
		t.Error("AddImage reached the library")
	}
}

func TestRendererInsert(t *testing.T) {
	f, c := newFakeLib()
	r := fakeTextRenderer(t, c)
	next, err := newRendererWith(c, "TessHOcrRendererCreate2", func(c *capi) (uintptr, error) {
		return c.TessHOcrRendererCreate2(nil, 1), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	rPtr, nextPtr := r.o.h.ptr, next.o.h.ptr
	if err := r.Insert(r); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("got %v, want ErrInvalidParameter", err)
	}
	if err := r.Insert(next); err != nil {
		t.Fatal(err)
	}
	if f.inserted[rPtr] != nextPtr {
		t.Error("renderer not inserted")
	}
	if _, err := next.BeginDocument("x"); !errors.Is(err, ErrNullPointer) {
		t.Errorf("using an inserted renderer: got %v, want ErrNullPointer", err)
	}
	next.Close()
	r.Close()
	if f.deletions(rPtr) != 1 {
		t.Error("head of the chain not deleted once")
	}
	if f.deletions(nextPtr) != 0 {
		t.Error("inserted renderer deleted by its own handle")
	}
}

func TestInsertAfterBeginDocument(t *testing.T) {
	_, c := newFakeLib()
	r := fakeTextRenderer(t, c)
	defer r.Close()
	next := fakeTextRenderer(t, c)
	defer next.Close()
	if _, err := r.BeginDocument("x"); err != nil {
		t.Fatal(err)
	}
	if err := r.Insert(next); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("got %v, want ErrInvalidParameter", err)
	}
}

func TestConcurrentMutualInsert(t *testing.T) {
	_, c := newFakeLib()
	for range 200 {
		a := fakeTextRenderer(t, c)
		b := fakeTextRenderer(t, c)
		errs := make(chan error, 2)
		go func() { errs <- a.Insert(b) }()
		go func() { errs <- b.Insert(a) }()
		var failed int
		for range 2 {
			select {
			case err := <-errs:
				if err != nil {
					if !errors.Is(err, ErrNullPointer) {
						t.Errorf("got %v, want ErrNullPointer for the adopted renderer", err)
					}
					failed++
				}
			case <-time.After(5 * time.Second):
				t.Fatal("inserting two renderers into each other deadlocked")
			}
		}
		if failed != 1 {
			t.Fatalf("%d of 2 inserts failed, want exactly one", failed)
		}
		a.Close()
		b.Close()
	}
}

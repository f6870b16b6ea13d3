package player

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLoaderDecodesAllIndexAligned(t *testing.T) {
	dec := &fakeDecoder{decode: func(_ context.Context, loc string) (Frame, error) {
		return fakeFrame{w: len(loc), h: 1}, nil
	}}
	l := NewLoader(dec)
	locs := []string{"a", "bb", "ccc", "dddd"}

	set, err := l.Load(context.Background(), locs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !l.Ready() || set.Len() != 4 || l.Images() != set {
		t.Fatalf("expected ready set of 4, ready=%v len=%d", l.Ready(), set.Len())
	}
	for i := range locs {
		if w, _ := set.At(i).Size(); w != i+1 {
			t.Errorf("frame %d has width %d, want %d", i, w, i+1)
		}
	}
	if set.At(4) != nil || set.At(-1) != nil {
		t.Error("out of range At should be nil")
	}
}

func TestLoaderFailsAsAUnit(t *testing.T) {
	dec := &fakeDecoder{decode: func(_ context.Context, loc string) (Frame, error) {
		if loc == "bad" {
			return nil, errors.New("corrupt data")
		}
		return fakeFrame{w: 10, h: 10}, nil
	}}
	l := NewLoader(dec)

	set, err := l.Load(context.Background(), []string{"ok", "bad", "ok"})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if !strings.Contains(err.Error(), "image 1") {
		t.Errorf("expected failing index in error, got %q", err)
	}
	if set != nil || l.Ready() || l.Images() != nil {
		t.Error("failed load must not be ready")
	}
}

func TestLoaderFailureDiscardsPreviousSet(t *testing.T) {
	fail := false
	dec := &fakeDecoder{decode: func(context.Context, string) (Frame, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return fakeFrame{w: 1, h: 1}, nil
	}}
	l := NewLoader(dec)
	if _, err := l.Load(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("first load: %v", err)
	}
	fail = true
	if _, err := l.Load(context.Background(), []string{"y"}); err == nil {
		t.Fatal("expected failure")
	}
	if l.Ready() {
		t.Error("previous set survived a failed reload")
	}
}

func TestLoaderEmpty(t *testing.T) {
	l := NewLoader(&fakeDecoder{})
	if _, err := l.Load(context.Background(), nil); !errors.Is(err, ErrNoImages) {
		t.Errorf("expected ErrNoImages, got %v", err)
	}
	if l.Ready() {
		t.Error("empty load must not be ready")
	}
}

func TestLoaderNilFrameIsFailure(t *testing.T) {
	l := NewLoader(&fakeDecoder{decode: func(context.Context, string) (Frame, error) {
		return nil, nil
	}})
	if _, err := l.Load(context.Background(), []string{"x"}); !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestLoaderDiscardsStaleLoad(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	dec := &fakeDecoder{decode: func(_ context.Context, loc string) (Frame, error) {
		if loc == "slow" {
			close(started)
			<-release
		}
		return fakeFrame{w: 2, h: 1}, nil
	}}
	l := NewLoader(dec)

	errc := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), []string{"slow"})
		errc <- err
	}()
	<-started

	fresh, err := l.Load(context.Background(), []string{"fast", "fast"})
	if err != nil {
		t.Fatalf("fresh load: %v", err)
	}
	close(release)

	if err := <-errc; !errors.Is(err, ErrStaleLoad) {
		t.Errorf("expected ErrStaleLoad, got %v", err)
	}
	if l.Images() != fresh {
		t.Error("stale load replaced the fresh set")
	}
}

func TestTruncateLocator(t *testing.T) {
	long := "data:image/png;base64," + strings.Repeat("A", 500)
	got := truncateLocator(long)
	if len(got) != maxLoggedLocator+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("unexpected truncation %q", got)
	}
	if truncateLocator("short") != "short" {
		t.Error("short locator changed")
	}
}

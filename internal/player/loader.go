package player

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoImages is returned for an empty locator sequence; the loader stays not ready.
	ErrNoImages = errors.New("player: no images")
	// ErrDecode wraps the first failing decode of a sequence.
	ErrDecode = errors.New("player: image decode failed")
	// ErrStaleLoad is returned when a newer Load superseded this one.
	ErrStaleLoad = errors.New("player: image load superseded")
)

const maxLoggedLocator = 96

// ImageSet is a fully decoded image sequence, index-aligned with its locators.
// A nil *ImageSet is a valid empty set.
type ImageSet struct {
	frames []Frame
}

// Len returns the number of frames.
func (s *ImageSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.frames)
}

// At returns frame i, or nil when i is out of range.
func (s *ImageSet) At(i int) Frame {
	if s == nil || i < 0 || i >= len(s.frames) {
		return nil
	}
	return s.frames[i]
}

// Loader decodes image sequences as a unit. Each Load starts a new
// generation; the result of an older generation is discarded.
type Loader struct {
	decoder Decoder

	mu  sync.Mutex
	gen uint64
	set *ImageSet
}

// NewLoader creates a loader backed by decoder.
func NewLoader(decoder Decoder) *Loader {
	return &Loader{decoder: decoder}
}

// Load decodes every locator concurrently. It succeeds only when all of them
// decode; any failure leaves the loader not ready.
func (l *Loader) Load(ctx context.Context, locators []string) (*ImageSet, error) {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.set = nil
	l.mu.Unlock()

	if len(locators) == 0 {
		return nil, ErrNoImages
	}

	frames := make([]Frame, len(locators))
	g, gctx := errgroup.WithContext(ctx)
	for i, loc := range locators {
		g.Go(func() error {
			f, err := l.decoder.Decode(gctx, loc)
			if err == nil && f == nil {
				err = errors.New("decoder returned no frame")
			}
			if err != nil {
				log.Error().Err(err).Int("index", i).Str("locator", truncateLocator(loc)).Msg("Failed to load image")
				return fmt.Errorf("%w: image %d: %w", ErrDecode, i, err)
			}
			frames[i] = f
			return nil
		})
	}
	err := g.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return nil, ErrStaleLoad
	}
	if err != nil {
		return nil, err
	}
	l.set = &ImageSet{frames: frames}
	return l.set, nil
}

// Ready reports whether the latest Load completed successfully.
func (l *Loader) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set.Len() > 0
}

// Images returns the latest successfully decoded set, or nil.
func (l *Loader) Images() *ImageSet {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set
}

// Reset discards the decoded set and invalidates any in-flight Load.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.gen++
	l.set = nil
	l.mu.Unlock()
}

func truncateLocator(loc string) string {
	if len(loc) <= maxLoggedLocator {
		return loc
	}
	return loc[:maxLoggedLocator] + "..."
}

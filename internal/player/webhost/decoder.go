//go:build js && wasm

package webhost

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/snappy-loop/bulletin/internal/player"
)

// Image is a loaded HTMLImageElement.
type Image struct {
	el            js.Value
	width, height int
}

// Size implements player.Frame.
func (i *Image) Size() (int, int) { return i.width, i.height }

// Decoder loads images through detached <img> elements.
type Decoder struct{}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Decode implements player.Decoder.
func (d *Decoder) Decode(ctx context.Context, locator string) (player.Frame, error) {
	el := document.Call("createElement", "img")
	el.Set("crossOrigin", "anonymous")

	done := make(chan error, 1)
	onLoad := js.FuncOf(func(js.Value, []js.Value) any {
		done <- nil
		return nil
	})
	onError := js.FuncOf(func(js.Value, []js.Value) any {
		done <- fmt.Errorf("image failed to load")
		return nil
	})
	defer onLoad.Release()
	defer onError.Release()
	el.Set("onload", onLoad)
	el.Set("onerror", onError)
	el.Set("src", locator)

	select {
	case err := <-done:
		el.Set("onload", js.Null())
		el.Set("onerror", js.Null())
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		el.Set("onload", js.Null())
		el.Set("onerror", js.Null())
		el.Set("src", "")
		return nil, ctx.Err()
	}

	w, h := el.Get("naturalWidth").Int(), el.Get("naturalHeight").Int()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("image has no dimensions")
	}
	return &Image{el: el, width: w, height: h}, nil
}

//go:build js && wasm

// Package webhost binds the player to a browser page through syscall/js:
// image elements, a 2D canvas, the audio element, requestAnimationFrame and
// MediaRecorder. All functions may be called from any goroutine; Await must
// not be called from inside a JS callback.
package webhost

import (
	"context"
	"errors"
	"fmt"
	"syscall/js"
)

var (
	global   = js.Global()
	document = global.Get("document")
)

// jsError converts a thrown JS value into an error.
func jsError(v js.Value) error {
	if v.IsUndefined() || v.IsNull() {
		return errors.New("js: unknown error")
	}
	if msg := v.Get("message"); msg.Type() == js.TypeString {
		return fmt.Errorf("js: %s", msg.String())
	}
	return fmt.Errorf("js: %s", v.String())
}

// try runs fn and turns a JS exception into an error.
func try(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if je, ok := r.(js.Error); ok {
				err = jsError(je.Value)
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}

// Await blocks until promise settles.
func Await(ctx context.Context, promise js.Value) (js.Value, error) {
	type settled struct {
		v   js.Value
		err error
	}
	ch := make(chan settled, 1)
	onResolve := js.FuncOf(func(_ js.Value, args []js.Value) any {
		v := js.Undefined()
		if len(args) > 0 {
			v = args[0]
		}
		ch <- settled{v: v}
		return nil
	})
	onReject := js.FuncOf(func(_ js.Value, args []js.Value) any {
		v := js.Undefined()
		if len(args) > 0 {
			v = args[0]
		}
		ch <- settled{err: jsError(v)}
		return nil
	})
	defer onResolve.Release()
	defer onReject.Release()

	promise.Call("then", onResolve, onReject)
	select {
	case s := <-ch:
		return s.v, s.err
	case <-ctx.Done():
		return js.Undefined(), ctx.Err()
	}
}

// ElementByID returns the element with id, or an error when absent.
func ElementByID(id string) (js.Value, error) {
	el := document.Call("getElementById", id)
	if el.IsNull() {
		return js.Null(), fmt.Errorf("element #%s not found", id)
	}
	return el, nil
}

// Listen registers fn for the event on target and returns a release func.
func Listen(target js.Value, event string, fn func(ev js.Value)) (release func()) {
	cb := js.FuncOf(func(_ js.Value, args []js.Value) any {
		ev := js.Undefined()
		if len(args) > 0 {
			ev = args[0]
		}
		fn(ev)
		return nil
	})
	target.Call("addEventListener", event, cb)
	return func() {
		target.Call("removeEventListener", event, cb)
		cb.Release()
	}
}

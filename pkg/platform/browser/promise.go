//go:build js && wasm

package browser

import (
	"context"
	"syscall/js"

	"github.com/pkg/errors"
)

type settled struct {
	value js.Value
	err   error
}

// await blocks until the thenable v settles or ctx is done. Values that
// aren't thenables are returned as they are.
func await(ctx context.Context, v js.Value) (js.Value, error) {
	if !thenable(v) {
		return v, nil
	}
	ch := make(chan settled, 1)
	onResolve := js.FuncOf(func(_ js.Value, args []js.Value) interface{} {
		res := js.Undefined()
		if len(args) > 0 {
			res = args[0]
		}
		ch <- settled{value: res}
		return nil
	})
	onReject := js.FuncOf(func(_ js.Value, args []js.Value) interface{} {
		reason := "rejected"
		if len(args) > 0 {
			reason = describe(args[0])
		}
		ch <- settled{err: errors.New(reason)}
		return nil
	})
	v.Call("then", onResolve, onReject)

	select {
	case s := <-ch:
		onResolve.Release()
		onReject.Release()
		return s.value, s.err
	case <-ctx.Done():
		// The callbacks may still fire; they're left for the collector rather
		// than released under a pending promise.
		return js.Undefined(), ctx.Err()
	}
}

// Promise runs fn off the JS event loop and exposes its outcome as a Promise.
func Promise(fn func() (interface{}, error)) js.Value {
	executor := js.FuncOf(func(_ js.Value, args []js.Value) interface{} {
		resolve, reject := args[0], args[1]
		go func() {
			v, err := fn()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(v)
		}()
		return nil
	})
	defer executor.Release()
	return js.Global().Get("Promise").New(executor)
}

func thenable(v js.Value) bool {
	return v.Type() == js.TypeObject && v.Get("then").Type() == js.TypeFunction
}

func describe(v js.Value) string {
	if !present(v) {
		return "rejected"
	}
	if msg := v.Get("message"); v.Type() == js.TypeObject && msg.Type() == js.TypeString {
		return msg.String()
	}
	return js.Global().Get("String").Invoke(v).String()
}

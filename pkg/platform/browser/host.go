//go:build js && wasm

package browser

import (
	"context"
	"syscall/js"

	"github.com/bottlerocket-os/swwatch/pkg/bridge"
	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/pkg/errors"
)

var _ bridge.Host = (*Host)(nil)

// Host calls back into a JS host reference. References exposing
// invokeMethodAsync (.NET object references) are called through it; anything
// else has the method called directly. Returned promises are awaited.
type Host struct {
	ref js.Value
}

// NewHost wraps ref, which must be an object.
func NewHost(ref js.Value) (*Host, error) {
	if ref.Type() != js.TypeObject {
		return nil, errors.Errorf("host reference must be an object, got %s", ref.Type())
	}
	return &Host{ref: ref}, nil
}

func (h *Host) Invoke(ctx context.Context, method string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("host threw calling %s: %v", method, r)
		}
	}()
	var ret js.Value
	switch {
	case h.ref.Get(marker.HostInvokeAsync).Type() == js.TypeFunction:
		ret = h.ref.Call(marker.HostInvokeAsync, method)
	case h.ref.Get(method).Type() == js.TypeFunction:
		ret = h.ref.Call(method)
	default:
		return errors.Errorf("host does not implement %s", method)
	}
	_, err = await(ctx, ret)
	return errors.WithMessagef(err, "host %s", method)
}

//go:build js && wasm

package browser

import (
	"syscall/js"

	"github.com/bottlerocket-os/swwatch/pkg/config"
	"github.com/bottlerocket-os/swwatch/pkg/marker"
)

var _ config.Attributes = Attributes{}

// Attributes reads data-swwatch-* attributes off an element.
type Attributes struct {
	el js.Value
}

// ScriptAttributes finds the <script data-swwatch> element that loaded the
// module. With none on the page every lookup misses and defaults apply.
func ScriptAttributes() Attributes {
	doc := js.Global().Get("document")
	if !present(doc) {
		return Attributes{el: js.Null()}
	}
	return Attributes{el: doc.Call("querySelector", "script["+marker.Prefix+"]")}
}

func (a Attributes) Get(name string) (string, bool) {
	if !present(a.el) {
		return "", false
	}
	attr := marker.Prefix + "-" + name
	if !a.el.Call("hasAttribute", attr).Bool() {
		return "", false
	}
	return a.el.Call("getAttribute", attr).String(), true
}

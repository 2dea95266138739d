//go:build js && wasm

package browser

import (
	"io"
	"strings"
	"syscall/js"
)

type console string

// Console writes each line to the browser console's method, such as "log" or
// "error", so the devtools level filter applies.
func Console(method string) io.Writer {
	return console(method)
}

func (c console) Write(p []byte) (int, error) {
	con := js.Global().Get("console")
	if !present(con) {
		return len(p), nil
	}
	con.Call(string(c), strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

package logging

// DebugEnable is set at link time (-ldflags "-X ...logging.DebugEnable=1") to
// build in verbose lifecycle tracing.
var DebugEnable string

// Debuggable reports whether lifecycle tracing was built in. Release builds
// leave the traced branches unreachable.
var Debuggable = DebugEnable != ""

package marker

type Key = string

// Attribute keys read from the hosting <script> element.
const (
	// Prefix marks the element that carries swwatch's attributes.
	Prefix = "data-swwatch"

	// ScriptPathKey overrides the Service Worker script to register.
	ScriptPathKey Key = "register"
	// NoRegisterKey, when present at all, disables automatic registration so
	// that the page may register on its own and hand the registration over.
	NoRegisterKey Key = "no-register"
	// NamespaceKey names the dotted global under which the JS entry points are
	// exported.
	NamespaceKey Key = "namespace"
	// ReloadDelayKey is the grace period between activation and reload.
	ReloadDelayKey Key = "reload-delay"
	// LogLevelKey sets the logrus level.
	LogLevelKey Key = "log-level"
	// EnvironmentKey names the host environment (Production, Development, ...).
	EnvironmentKey Key = "environment"
	// EnvironmentsForWorkKey lists the environments in which the update
	// notification is surfaced.
	EnvironmentsForWorkKey Key = "environments-for-work"
	// DispatchEventKey names a DOM event dispatched on window when a new
	// version is waiting.
	DispatchEventKey Key = "dispatch-event"
)

// Property names on the JS side of the handshake.
const (
	// HostMethodNextVersionIsWaiting is invoked on the host once per update
	// detected.
	HostMethodNextVersionIsWaiting = "OnNextVersionIsWaiting"
	// HostInvokeAsync is the dispatch method exposed by host object references.
	HostInvokeAsync = "invokeMethodAsync"

	ExportHandleRegistration = "handleRegistration"
	ExportSetToBeReady       = "setToBeReady"
	ExportSkipWaiting        = "skipWaiting"
)

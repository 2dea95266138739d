package marker

import "time"

// WorkerState is the state a Service Worker reports for itself.
type WorkerState = string

const (
	WorkerStateParsed     WorkerState = "parsed"
	WorkerStateInstalling WorkerState = "installing"
	WorkerStateInstalled  WorkerState = "installed"
	WorkerStateActivating WorkerState = "activating"
	WorkerStateActivated  WorkerState = "activated"
	WorkerStateRedundant  WorkerState = "redundant"
)

// Slot names one of a registration's worker positions.
type Slot = string

const (
	SlotInstalling Slot = "installing"
	SlotWaiting    Slot = "waiting"
	SlotActive     Slot = "active"
)

// MessageType identifies a control message posted to a worker.
type MessageType = string

const (
	// MessageSkipWaiting asks the worker to call its own skipWaiting().
	MessageSkipWaiting MessageType = "SKIP_WAITING"
)

const (
	DefaultScriptPath          = "service-worker.js"
	DefaultNamespace           = "swwatch"
	DefaultEnvironment         = "Production"
	DefaultEnvironmentsForWork = "Production"
	DefaultReloadDelay         = 10 * time.Millisecond
	DefaultLogLevel            = "info"
)

// EnvironmentVariable names the host environment outside the browser when
// the configuration leaves it empty.
const EnvironmentVariable = "SWWATCH_ENVIRONMENT"


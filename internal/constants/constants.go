package constants

import "time"

// Application constants centralized in one location to improve type safety
// and eliminate magic strings throughout the codebase

// Default Configuration Values
const (
	DefaultStatusAPIPort = 6660
	DefaultLogLevel      = "INFO"
	DefaultFloorCount    = 4

	// Timing defaults (spec.md §6.1)
	DefaultEachFloorDuration   = 2 * time.Second
	DefaultDoorOpenDuration    = 3 * time.Second
	DefaultMotorTimeout        = 6 * time.Second
	DefaultObstructionTimeout  = 10 * time.Second
	DefaultPeerGossipInterval  = 200 * time.Millisecond
	DefaultPeerTimeout         = 2 * time.Second
	DefaultBroadcastAckTimeout = 500 * time.Millisecond
	DefaultBroadcastRetries    = 3
	DefaultAssignerTimeout     = 3 * time.Second

	// Status API push interval
	StatusUpdateInterval = 1 * time.Second

	// FSMTickInterval is the FSM's nominal control-tick period (spec.md §5).
	FSMTickInterval = 100 * time.Millisecond
	// CoordinatorIdleWake is the Coordinator's idle wake-up period (spec.md §5).
	CoordinatorIdleWake = 50 * time.Millisecond

	// Status API HTTP server defaults.
	DefaultHTTPReadTimeout  = 10 * time.Second
	DefaultHTTPWriteTimeout = 10 * time.Second
	DefaultHTTPIdleTimeout  = 60 * time.Second
	DefaultRateLimitRPM     = 300
)

// HTTP Content Types
const (
	ContentTypeJSON      = "application/json"
	ContentTypeTextPlain = "text/plain"
)

// HTTP Methods
const (
	MethodGET  = "GET"
	MethodPOST = "POST"
)

// Component Names for Logging
const (
	ComponentHTTPServer    = "http-server"
	ComponentHTTPHandler   = "http_handler"
	ComponentFSM           = "fsm"
	ComponentCoordinator   = "coordinator"
	ComponentNetwork       = "network"
	ComponentHardware      = "hardware"
	ComponentAssigner      = "assigner"
	ComponentPersistence   = "persistence"
	ComponentStatusAPI     = "status-api"
	ComponentConfig        = "config"
	ComponentObservability = "observability"
)

// Floor Validation Limits
const (
	MinAllowedFloorCount = 2
	MaxAllowedFloorCount = 100
)

// Metrics
const (
	MetricsNamespace = "elevator_fleet"
)

// Circuit breaker defaults for the hall-request-assigner subprocess
// (spec.md §6.4).
const (
	AssignerBreakerFailureThreshold = 3
	AssignerBreakerOpenDuration     = 10 * time.Second
	AssignerBreakerHalfOpenProbes   = 1
)

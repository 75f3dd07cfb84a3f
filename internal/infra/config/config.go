package config

import (
	"time"

	"github.com/BurntSushi/toml"

	"github.com/fjellheim/elevator-fleet/internal/constants"
	"github.com/fjellheim/elevator-fleet/internal/domain"
)

// Duration wraps time.Duration so BurntSushi/toml can decode human-readable
// strings ("500ms", "2s") via encoding.TextUnmarshaler instead of requiring
// raw millisecond integers in the TOML file.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// NetworkConfig holds `network.*` (spec.md §6.1).
type NetworkConfig struct {
	IDGenAddress                     string   `toml:"id_gen_address"`
	MsgPort                          int      `toml:"msg_port"`
	PeerPort                         int      `toml:"peer_port"`
	MaxRetries                       int      `toml:"max_retries"`
	AckTimeout                       Duration `toml:"ack_timeout"`
	MaxAttemptsIDGeneration          int      `toml:"max_attempts_id_generation"`
	DelayBetweenAttemptsIDGeneration Duration `toml:"delay_between_attempts_id_generation"`
	PeerGossipInterval               Duration `toml:"peer_gossip_interval"`
	PeerTimeout                      Duration `toml:"peer_timeout"`
}

// ElevatorConfig holds `elevator.*` (spec.md §6.1).
type ElevatorConfig struct {
	NFloors      int      `toml:"n_floors"`
	DoorOpenTime Duration `toml:"door_open_time"`
	MotorTimeout Duration `toml:"motor_timeout"`
	DoorTimeout  Duration `toml:"door_timeout"`
}

// HardwareConfig holds `hardware.*` (spec.md §6.1). NFloors must equal
// elevator.n_floors.
type HardwareConfig struct {
	NFloors           int      `toml:"n_floors"`
	Driver            string   `toml:"driver"` // "simulated" or "tcp"
	DriverAddress     string   `toml:"driver_address"`
	DriverPort        int      `toml:"driver_port"`
	HWThreadSleepTime Duration `toml:"hw_thread_sleep_time"`
}

// AssignerConfig points at the hall-request-assigner subprocess and the
// circuit breaker guarding it (spec.md §6.4). Not named by spec.md §6.1,
// folded in as an ambient operational knob.
type AssignerConfig struct {
	Command                 string   `toml:"command"`
	Timeout                 Duration `toml:"timeout"`
	BreakerFailureThreshold int      `toml:"breaker_failure_threshold"`
	BreakerOpenDuration     Duration `toml:"breaker_open_duration"`
	BreakerHalfOpenProbes   int      `toml:"breaker_half_open_probes"`
}

// PersistenceConfig locates the single-file TOML cab-call store (spec.md §6.5).
type PersistenceConfig struct {
	CabCallsPath string `toml:"cab_calls_path"`
}

// ObservabilityConfig controls structured logging, metrics, and tracing
// export (spec.md §6.7, folded into the same file per SPEC_FULL.md §6.1).
type ObservabilityConfig struct {
	LogLevel       string `toml:"log_level"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
	MetricsEnabled bool   `toml:"metrics_enabled"`
}

// StatusAPIConfig controls the read-only HTTP surface (spec.md §4.5).
type StatusAPIConfig struct {
	Enabled        bool     `toml:"enabled"`
	Port           int      `toml:"port"`
	UpdateInterval Duration `toml:"update_interval"`
	ReadTimeout    Duration `toml:"read_timeout"`
	WriteTimeout   Duration `toml:"write_timeout"`
	IdleTimeout    Duration `toml:"idle_timeout"`
	RateLimitRPM   int      `toml:"rate_limit_rpm"`
}

// Config is the root of the TOML configuration file read at startup
// (spec.md §6.1). Every node in the fleet loads its own copy. NodeID is
// not a config key — it is derived at runtime by the network layer's TCP
// probe (spec.md §4.3 "Id derivation") and threaded through explicitly.
type Config struct {
	Network       NetworkConfig       `toml:"network"`
	Elevator      ElevatorConfig      `toml:"elevator"`
	Hardware      HardwareConfig      `toml:"hardware"`
	Assigner      AssignerConfig      `toml:"assigner"`
	Persistence   PersistenceConfig   `toml:"persistence"`
	Observability ObservabilityConfig `toml:"observability"`
	StatusAPI     StatusAPIConfig     `toml:"status_api"`
}

// defaults returns a Config pre-filled with every value named in
// SPEC_FULL.md §6.1, so a TOML file only needs to override what it cares
// about.
func defaults() Config {
	return Config{
		Network: NetworkConfig{
			IDGenAddress:                     "8.8.8.8:80",
			MsgPort:                          6330,
			PeerPort:                         6331,
			MaxRetries:                       constants.DefaultBroadcastRetries,
			AckTimeout:                       Duration(constants.DefaultBroadcastAckTimeout),
			MaxAttemptsIDGeneration:          3,
			DelayBetweenAttemptsIDGeneration: Duration(500 * time.Millisecond),
			PeerGossipInterval:               Duration(constants.DefaultPeerGossipInterval),
			PeerTimeout:                      Duration(constants.DefaultPeerTimeout),
		},
		Elevator: ElevatorConfig{
			NFloors:      constants.DefaultFloorCount,
			DoorOpenTime: Duration(constants.DefaultDoorOpenDuration),
			MotorTimeout: Duration(constants.DefaultMotorTimeout),
			DoorTimeout:  Duration(constants.DefaultObstructionTimeout),
		},
		Hardware: HardwareConfig{
			NFloors:           constants.DefaultFloorCount,
			Driver:            "simulated",
			HWThreadSleepTime: Duration(constants.DefaultEachFloorDuration),
		},
		Assigner: AssignerConfig{
			Command:                 "./hall_request_assigner",
			Timeout:                 Duration(constants.DefaultAssignerTimeout),
			BreakerFailureThreshold: constants.AssignerBreakerFailureThreshold,
			BreakerOpenDuration:     Duration(constants.AssignerBreakerOpenDuration),
			BreakerHalfOpenProbes:   constants.AssignerBreakerHalfOpenProbes,
		},
		Persistence: PersistenceConfig{
			CabCallsPath: "cab_calls.toml",
		},
		Observability: ObservabilityConfig{
			LogLevel:       constants.DefaultLogLevel,
			MetricsEnabled: true,
		},
		StatusAPI: StatusAPIConfig{
			Enabled:        true,
			Port:           constants.DefaultStatusAPIPort,
			UpdateInterval: Duration(constants.StatusUpdateInterval),
			ReadTimeout:    Duration(constants.DefaultHTTPReadTimeout),
			WriteTimeout:   Duration(constants.DefaultHTTPWriteTimeout),
			IdleTimeout:    Duration(constants.DefaultHTTPIdleTimeout),
			RateLimitRPM:   constants.DefaultRateLimitRPM,
		},
	}
}

// Load reads and validates a node configuration file. Fields absent from
// the file keep their default value (BurntSushi/toml leaves unset struct
// fields untouched).
func Load(path string) (*Config, error) {
	cfg := defaults()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, domain.NewValidationError("failed to decode configuration file", err).
			WithContext("path", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cross-field invariants the TOML decoder cannot
// express on its own.
func (c *Config) Validate() error {
	if err := domain.ValidateFloorCount(c.Elevator.NFloors); err != nil {
		return err
	}
	if c.Hardware.NFloors != c.Elevator.NFloors {
		return domain.NewValidationError("hardware.n_floors must equal elevator.n_floors", nil).
			WithContext("hardware.n_floors", c.Hardware.NFloors).
			WithContext("elevator.n_floors", c.Elevator.NFloors)
	}
	if c.Hardware.Driver != "simulated" && c.Hardware.Driver != "tcp" {
		return domain.NewValidationError("hardware.driver must be \"simulated\" or \"tcp\"", nil).
			WithContext("driver", c.Hardware.Driver)
	}
	if c.Hardware.Driver == "tcp" && c.Hardware.DriverAddress == "" {
		return domain.NewValidationError("hardware.driver_address is required when hardware.driver is \"tcp\"", nil)
	}
	if c.Elevator.DoorOpenTime <= 0 {
		return domain.NewValidationError("elevator.door_open_time must be positive", nil)
	}
	if c.Elevator.MotorTimeout <= 0 {
		return domain.NewValidationError("elevator.motor_timeout must be positive", nil)
	}
	if c.Elevator.DoorTimeout <= 0 {
		return domain.NewValidationError("elevator.door_timeout must be positive", nil)
	}
	if c.Network.MsgPort <= 0 || c.Network.MsgPort > 65535 {
		return domain.NewValidationError("network.msg_port must be between 1 and 65535", nil).
			WithContext("msg_port", c.Network.MsgPort)
	}
	if c.Network.PeerPort <= 0 || c.Network.PeerPort > 65535 {
		return domain.NewValidationError("network.peer_port must be between 1 and 65535", nil).
			WithContext("peer_port", c.Network.PeerPort)
	}
	if c.Network.MaxRetries <= 0 {
		return domain.NewValidationError("network.max_retries must be positive", nil)
	}
	if c.Assigner.Command == "" {
		return domain.NewValidationError("assigner.command must not be empty", nil)
	}
	if c.Assigner.Timeout <= 0 {
		return domain.NewValidationError("assigner.timeout must be positive", nil)
	}
	if c.Persistence.CabCallsPath == "" {
		return domain.NewValidationError("persistence.cab_calls_path must not be empty", nil)
	}
	if c.StatusAPI.Enabled && (c.StatusAPI.Port <= 0 || c.StatusAPI.Port > 65535) {
		return domain.NewValidationError("status_api.port must be between 1 and 65535", nil).
			WithContext("port", c.StatusAPI.Port)
	}
	return nil
}

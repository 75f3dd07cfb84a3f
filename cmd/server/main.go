package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/fjellheim/elevator-fleet/internal/assign"
	"github.com/fjellheim/elevator-fleet/internal/coordinator"
	"github.com/fjellheim/elevator-fleet/internal/domain"
	"github.com/fjellheim/elevator-fleet/internal/events"
	"github.com/fjellheim/elevator-fleet/internal/fsm"
	"github.com/fjellheim/elevator-fleet/internal/hardware"
	httpPkg "github.com/fjellheim/elevator-fleet/internal/http"
	"github.com/fjellheim/elevator-fleet/internal/infra/config"
	"github.com/fjellheim/elevator-fleet/internal/infra/health"
	"github.com/fjellheim/elevator-fleet/internal/infra/logging"
	"github.com/fjellheim/elevator-fleet/internal/infra/tracing"
	"github.com/fjellheim/elevator-fleet/internal/network"
	"github.com/fjellheim/elevator-fleet/internal/persist"
	"github.com/fjellheim/elevator-fleet/metrics"
)

const serviceName = "elevator-fleet"

var allBehaviours = []string{
	domain.BehaviourIdle.String(),
	domain.BehaviourMoving.String(),
	domain.BehaviourDoorOpen.String(),
	domain.BehaviourError.String(),
}

// main wires Config -> Logging -> Hardware -> FSM -> Coordinator ->
// Network -> Status API into a single node, per SPEC_FULL.md §5's thread
// layout. Grounded on the teacher's cmd/server/main.go startup sequence
// (signal-driven graceful shutdown, error channel fan-in from every
// long-lived goroutine) generalized from the teacher's HTTP+WebSocket
// pair onto this node's five supervised threads.
func main() {
	configPath := flag.String("config", "config.toml", "path to node configuration file")
	hardwareAddress := flag.String("hardware-address", "", "override hardware.driver_address")
	hardwarePort := flag.Int("hardware-port", 0, "override hardware.driver_port")
	networkPort := flag.Int("network-port", 0, "override network.msg_port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()), slog.String("path", *configPath))
		os.Exit(1)
	}
	if *hardwareAddress != "" {
		cfg.Hardware.DriverAddress = *hardwareAddress
	}
	if *hardwarePort != 0 {
		cfg.Hardware.DriverPort = *hardwarePort
	}
	if *networkPort != 0 {
		cfg.Network.MsgPort = *networkPort
	}

	logging.InitLogger(cfg.Observability.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	selfID := network.DeriveID(cfg.Network.IDGenAddress, cfg.Network.MsgPort,
		cfg.Network.MaxAttemptsIDGeneration, cfg.Network.DelayBetweenAttemptsIDGeneration.Duration())
	solo := selfID == network.OfflineID

	slog.InfoContext(ctx, "node starting",
		slog.String("self_id", selfID),
		slog.Int("floor_count", cfg.Elevator.NFloors),
		slog.Bool("solo_mode", solo))

	tracerProvider, err := tracing.NewProvider(ctx, cfg.Observability.OTLPEndpoint, serviceName, selfID)
	if err != nil {
		slog.Error("failed to initialize tracing provider", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("tracing provider shutdown failed", slog.String("error", err.Error()))
		}
	}()

	driver, err := buildDriver(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize hardware driver", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer driver.Close()

	cabCalls := persist.NewCabCalls(cfg.Persistence.CabCallsPath)

	motionCh := make(chan events.MotionEvent, 16)
	driverCh := make(chan events.DriverEvent, 16)
	fsmOutCh := make(chan events.FSMEvent, 16)
	coordOutCh := make(chan events.CoordinatorEvent, 16)
	lampCh := make(chan events.LampDirective, 16)
	networkDataOutCh := make(chan *domain.ElevatorData, 4)

	hwThread := hardware.NewThread(driver, cfg.Elevator.NFloors, cfg.Hardware.HWThreadSleepTime.Duration(), motionCh, driverCh)

	cabinFSM, err := fsm.New(
		cfg.Elevator.NFloors,
		cfg.Elevator.DoorOpenTime.Duration(),
		cfg.Elevator.MotorTimeout.Duration(),
		cfg.Elevator.DoorTimeout.Duration(),
		cabCalls,
		motionCh,
		coordOutCh,
		hwThread.MotorCh,
		hwThread.DoorCh,
		fsmOutCh,
	)
	if err != nil {
		slog.Error("failed to initialize FSM", slog.String("error", err.Error()))
		os.Exit(1)
	}

	assigner := assign.NewSubprocessAssigner(
		cfg.Assigner.Command,
		cfg.Assigner.Timeout.Duration(),
		cfg.Assigner.BreakerFailureThreshold,
		cfg.Assigner.BreakerOpenDuration.Duration(),
		cfg.Assigner.BreakerHalfOpenProbes,
	)

	var net4 *network.Network
	var networkEvents <-chan events.NetworkEvent
	if !solo {
		net4 = network.New(network.Config{
			SelfID:             selfID,
			MsgPort:            cfg.Network.MsgPort,
			PeerPort:           cfg.Network.PeerPort,
			MaxRetries:         cfg.Network.MaxRetries,
			AckTimeout:         cfg.Network.AckTimeout.Duration(),
			PeerGossipInterval: cfg.Network.PeerGossipInterval.Duration(),
			PeerTimeout:        cfg.Network.PeerTimeout.Duration(),
		}, networkDataOutCh)
		networkEvents = net4.Events()
	} else {
		empty := make(chan events.NetworkEvent)
		networkEvents = empty
	}

	coord := coordinator.New(
		selfID,
		cfg.Elevator.NFloors,
		assigner,
		networkEvents,
		driverCh,
		fsmOutCh,
		lampCh,
		coordOutCh,
		networkDataOutCh,
	)

	checkers := []health.HealthChecker{
		health.NewFSMHealthChecker(func() health.FSMStatus {
			s := cabinFSM.Snapshot()
			return health.FSMStatus{Behaviour: s.Behaviour.String(), Floor: s.Floor}
		}),
		health.NewAssignerHealthChecker(func() string {
			return assigner.State().String()
		}),
	}
	if !solo {
		checkers = append(checkers, health.NewPeerCountHealthChecker(func() (int, int) {
			return coord.PeerCounts()
		}))
	}

	statusServer := httpPkg.NewServer(cfg, selfID, coord, checkers...)

	var wg sync.WaitGroup
	errCh := make(chan error, 8)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(runCtx); err != nil {
				slog.ErrorContext(runCtx, "thread exited with error", slog.String("thread", name), slog.String("error", err.Error()))
				errCh <- err
				cancel()
			}
		}()
	}

	spawn("hardware", hwThread.Run)
	spawn("fsm", cabinFSM.Run)
	spawn("coordinator", coord.Run)
	if net4 != nil {
		spawn("network", net4.Run)
	}

	// lampCh fan-in: Hardware drains its own LampCh, but the Coordinator
	// writes lamp directives on a channel of its own so it never blocks on
	// Hardware's buffer directly.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case l := <-lampCh:
				select {
				case hwThread.LampCh <- l:
				case <-runCtx.Done():
					return
				}
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				metrics.SetFSMBehaviour(selfID, cabinFSM.Snapshot().Behaviour.String(), allBehaviours)
			}
		}
	}()

	if cfg.StatusAPI.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := statusServer.Start(runCtx); err != nil {
				slog.ErrorContext(runCtx, "status API exited with error", slog.String("error", err.Error()))
				errCh <- err
				cancel()
			}
		}()
	}

	<-runCtx.Done()
	slog.Info("shutdown signal received, draining threads")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if cfg.StatusAPI.Enabled {
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("status API shutdown failed", slog.String("error", err.Error()))
		}
	}

	cancel()
	wg.Wait()

	select {
	case err := <-errCh:
		slog.Error("node exiting after thread failure", slog.String("error", err.Error()))
		os.Exit(1)
	default:
		slog.Info("node shutdown complete")
	}
}

// buildDriver selects the Simulated or TCPPanel hardware.Driver per
// hardware.driver (spec.md §6.6).
func buildDriver(ctx context.Context, cfg *config.Config) (hardware.Driver, error) {
	switch cfg.Hardware.Driver {
	case "tcp":
		addr := net.JoinHostPort(cfg.Hardware.DriverAddress, strconv.Itoa(cfg.Hardware.DriverPort))
		return hardware.DialTCPPanel(ctx, addr, cfg.Elevator.MotorTimeout.Duration())
	default:
		return hardware.NewSimulated(cfg.Hardware.NFloors, cfg.Hardware.HWThreadSleepTime.Duration(), 0), nil
	}
}

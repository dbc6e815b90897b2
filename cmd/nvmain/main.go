// Command nvmain replays a memory access trace against a simulated memory
// controller and reports per-component statistics, mirroring the reference
// trace-driven simulation driver.
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/sarchlab/nvmain/config"
	"github.com/sarchlab/nvmain/mem/dram"
	"github.com/sarchlab/nvmain/sim"
	"github.com/sarchlab/nvmain/trace"
	"github.com/sarchlab/nvmain/tracing"
	"github.com/shirou/gopsutil/process"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var traceBackend string
var hooksPath string

var rootCmd = &cobra.Command{
	Use:   "nvmain CONFIG_FILE TRACE_FILE [CYCLES]",
	Short: "Replay a memory access trace against a simulated memory controller.",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&traceBackend, "hooks", "none",
		"command-completion hook bus to record to: none, csv, csv-legacy, json, or sqlite")
	rootCmd.Flags().StringVar(&hooksPath, "hooks-path", "",
		"output path for the hook bus backend (backend picks a default when empty)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRecorder() (dram.TaskRecorder, error) {
	switch traceBackend {
	case "none", "":
		return nil, nil
	case "csv":
		return tracing.NewCSVTraceWriter(hooksPath), nil
	case "csv-legacy":
		path := hooksPath
		if path == "" {
			path = "nvmain_trace.csv"
		}
		return tracing.NewCSVTracerBackend(path), nil
	case "json":
		return dram.NewJSONTaskRecorder(tracing.NewJSONTracer()), nil
	case "sqlite":
		path := hooksPath
		if path == "" {
			path = "nvmain_trace"
		}
		return tracing.NewSQLiteTraceWriter(path), nil
	default:
		return nil, fmt.Errorf("unknown hook bus backend %q", traceBackend)
	}
}

func run(cmd *cobra.Command, args []string) error {
	configPath, tracePath := args[0], args[1]

	requestedCycles := uint64(0)
	if len(args) == 3 {
		n, err := parseUint(args[2])
		if err != nil {
			return fmt.Errorf("parsing CYCLES: %w", err)
		}
		requestedCycles = n
	}

	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}

	params, err := config.ResolveMemParams(cfg)
	if err != nil {
		return err
	}

	scale := uint64(math.Ceil(float64(params.CPUFreq) / float64(params.CLK)))
	simulateCycles := requestedCycles * scale

	reader, err := trace.Open(tracePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.IgnoreCycle = cfg.Bool("IgnoreTraceCycle")

	recorder, err := buildRecorder()
	if err != nil {
		return err
	}
	if recorder != nil {
		recorder.Init()
	}

	engine := sim.NewSerialEngine()
	freq := sim.GHz

	var order []dram.Field
	if params.AddressMappingScheme != "" {
		order, err = dram.ParseScheme(params.AddressMappingScheme)
		if err != nil {
			return err
		}
	}

	builder := dram.MakeBuilder().
		WithEngine(engine).
		WithFreq(freq).
		WithTopology(params.Ranks, params.Banks, params.Rows, params.Cols).
		WithTiming(dram.Timing{
			TRCD: params.TRCD, TRP: params.TRP, TRAS: params.TRAS, TRC: params.TRC,
			TCCD: params.TCCD, TRFC: params.TRFC, TCWD: params.TCWD, TBURST: params.TBURST,
			TWR: params.TWR, TRTP: params.TRTP, TWTR: params.TWTR, AL: params.AL,
		}).
		WithQueueSize(params.QueueSize).
		WithStarvationThreshold(params.StarvationThreshold).
		WithClosePage(params.ClosePage).
		WithScheduleScheme(params.ScheduleScheme).
		WithAddressOrder(order)

	if recorder != nil {
		builder = builder.WithTaskRecorder(recorder)
	}

	if params.UseRefresh {
		builder = builder.WithRefresh(
			params.BanksPerRefresh, params.RefreshRows, params.TRFI, params.DelayedRefreshThreshold)
	}

	channels := make([]*dram.Comp, params.Channels)
	for i := range channels {
		channels[i] = builder.Build(fmt.Sprintf("MemChannel%d", i))
		if simulateCycles != 0 {
			channels[i].SetCycleLimit(simulateCycles)
		}
	}

	topology := dram.Topology{
		Rows: params.Rows, Cols: params.Cols, Banks: params.Banks,
		Ranks: params.Ranks, Channels: params.Channels,
	}
	rootTranslator := dram.NewTranslator(topology, 64, order)

	root := dram.NewRoot("MemRoot", engine, freq, rootTranslator, channels)
	if simulateCycles != 0 {
		root.SetCycleLimit(simulateCycles)
	}

	conn := sim.NewDirectConnection("MemConn", engine, freq)
	conn.PlugIn(root.TopPort)

	downstream := make([]cycleLimiter, 0, len(channels)+1)
	downstream = append(downstream, root)
	for _, ch := range channels {
		downstream = append(downstream, ch)
	}

	inj := newInjector("TraceInjector", engine, freq, reader, root.TopPort.AsRemote(), simulateCycles, downstream)
	conn.PlugIn(inj.OutPort)

	if err := engine.Run(); err != nil {
		return err
	}

	printStats(channels)
	printRuntimeUsage()

	fmt.Printf("Exiting at cycle %d because simCycles %d reached.\n",
		inj.CyclesRun(), simulateCycles)

	atexit.Exit(0)
	return nil
}

// printRuntimeUsage reports the host resources this run consumed, the way a
// long batch job would log them alongside its simulation output.
func printRuntimeUsage() {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err == nil {
		fmt.Printf("host.cpu_percent %.2f\n", cpuPercent)
	}

	memInfo, err := proc.MemoryInfo()
	if err == nil {
		fmt.Printf("host.rss_bytes %d\n", memInfo.RSS)
	}
}

func parseUint(s string) (uint64, error) {
	var n uint64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func printStats(channels []*dram.Comp) {
	for i, ch := range channels {
		fmt.Printf("i0.MemChannel%d.reads %d\n", i, ch.Stats().Reads)
		fmt.Printf("i0.MemChannel%d.writes %d\n", i, ch.Stats().Writes)
		fmt.Printf("i0.MemChannel%d.activates %d\n", i, ch.Stats().Activates)
		fmt.Printf("i0.MemChannel%d.precharges %d\n", i, ch.Stats().Precharges)
		fmt.Printf("i0.MemChannel%d.refreshes %d\n", i, ch.Stats().Refreshes)
	}
}

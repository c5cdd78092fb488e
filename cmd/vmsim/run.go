package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/uarchsim/vmsim/datarecording"
	"github.com/uarchsim/vmsim/mem/vm"
	"github.com/uarchsim/vmsim/mem/vm/walker"
	"github.com/uarchsim/vmsim/monitoring"
)

var runFlags = struct {
	mode           string
	topCapacity    int
	middleCapacity int
	lowerCapacity  int
	noPWC          bool

	accesses      uint64
	totalPages    int
	hotPages      int
	hotFraction   float64
	flushInterval uint64
	seed          int64

	dbPath      string
	monitor     bool
	monitorPort int
	openBrowser bool
}{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a synthetic translation workload",
	Run: func(_ *cobra.Command, _ []string) {
		runWorkload()
	},
}

func init() {
	f := runCmd.Flags()

	f.StringVar(&runFlags.mode, "mode", "long",
		"addressing mode: long, legacy-pae, or legacy")
	f.IntVar(&runFlags.topCapacity, "top-capacity", 2,
		"entry count of the top-level cache")
	f.IntVar(&runFlags.middleCapacity, "middle-capacity", 4,
		"entry count of the middle-level cache")
	f.IntVar(&runFlags.lowerCapacity, "lower-capacity", 32,
		"entry count of the lower-level cache")
	f.BoolVar(&runFlags.noPWC, "no-pwc", false,
		"disable the paging-structure cache")

	f.Uint64Var(&runFlags.accesses, "accesses", 1000000,
		"number of translations to perform")
	f.IntVar(&runFlags.totalPages, "pages", 4096,
		"number of mapped pages")
	f.IntVar(&runFlags.hotPages, "hot-pages", 64,
		"size of the hot working set, in pages")
	f.Float64Var(&runFlags.hotFraction, "hot-fraction", 0.9,
		"fraction of accesses that hit the hot working set")
	f.Uint64Var(&runFlags.flushInterval, "flush-interval", 0,
		"simulate a root-pointer write every N accesses (0 disables)")
	f.Int64Var(&runFlags.seed, "seed", 1,
		"random seed of the address stream")

	f.StringVar(&runFlags.dbPath, "db", envOr("VMSIM_DB", ""),
		"record run stats into an SQLite database at this path")
	f.BoolVar(&runFlags.monitor, "monitor", false,
		"serve live stats over HTTP until interrupted")
	f.IntVar(&runFlags.monitorPort, "monitor-port",
		envIntOr("VMSIM_MONITOR_PORT", 0),
		"port of the monitoring server (0 picks a random port)")
	f.BoolVar(&runFlags.openBrowser, "open-browser", false,
		"open the monitoring API in a browser")

	rootCmd.AddCommand(runCmd)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ignoring %s=%q: %s\n", key, v, err)
		return fallback
	}

	return n
}

func parseMode(s string) vm.Mode {
	switch s {
	case "long":
		return vm.ModeLong
	case "legacy-pae":
		return vm.ModeLegacyPAE
	case "legacy":
		return vm.ModeLegacy
	}

	fmt.Fprintf(os.Stderr, "Unknown mode %q\n", s)
	os.Exit(1)
	return 0
}

func runWorkload() {
	mode := parseMode(runFlags.mode)

	mem := vm.NewTableMemory()
	pageTable := vm.NewRadixPageTable(mem, mode)
	pageVAs := mapPages(pageTable, mode)

	w := buildWalker(mem, mode, pageTable.Root())

	monitor := startMonitor(w)

	runAccesses(w, pageTable, pageVAs)

	reportStats(w)
	recordStats(w)

	if monitor != nil {
		waitForInterrupt()
	}
}

func buildWalker(mem *vm.TableMemory, mode vm.Mode, root uint64) *walker.Comp {
	builder := walker.MakeBuilder().
		WithTableReader(mem).
		WithMode(mode).
		WithRootPointer(root).
		WithCacheCapacities(
			runFlags.topCapacity,
			runFlags.middleCapacity,
			runFlags.lowerCapacity,
		)

	if runFlags.noPWC {
		builder = builder.WithoutPagingStructureCache()
	}

	return builder.Build("Walker")
}

// mapPages installs runFlags.totalPages translations at random page
// addresses and returns their virtual addresses.
func mapPages(pageTable *vm.RadixPageTable, mode vm.Mode) []uint64 {
	addrBits := uint(48)
	if mode != vm.ModeLong {
		addrBits = 32
	}
	offsetBits := vm.PageOffsetBits(mode)

	rng := rand.New(rand.NewSource(runFlags.seed))
	seen := make(map[uint64]bool)
	pageVAs := make([]uint64, 0, runFlags.totalPages)

	for len(pageVAs) < runFlags.totalPages {
		va := (rng.Uint64() % (1 << (addrBits - offsetBits))) << offsetBits
		if seen[va] {
			continue
		}
		seen[va] = true

		pa := uint64(len(pageVAs)+1) << offsetBits
		pageTable.Map(va, pa)
		pageVAs = append(pageVAs, va)
	}

	return pageVAs
}

func runAccesses(
	w *walker.Comp,
	pageTable *vm.RadixPageTable,
	pageVAs []uint64,
) {
	rng := rand.New(rand.NewSource(runFlags.seed + 1))
	hot := runFlags.hotPages
	if hot > len(pageVAs) {
		hot = len(pageVAs)
	}

	for i := uint64(0); i < runFlags.accesses; i++ {
		if runFlags.flushInterval > 0 && i > 0 &&
			i%runFlags.flushInterval == 0 {
			w.SetRootPointer(pageTable.Root())
		}

		var va uint64
		if rng.Float64() < runFlags.hotFraction {
			va = pageVAs[rng.Intn(hot)]
		} else {
			va = pageVAs[rng.Intn(len(pageVAs))]
		}

		w.TranslateToPhys(va)
	}
}

func startMonitor(w *walker.Comp) *monitoring.Monitor {
	if !runFlags.monitor {
		return nil
	}

	monitor := monitoring.NewMonitor().
		WithPortNumber(runFlags.monitorPort)
	if runFlags.openBrowser {
		monitor = monitor.WithBrowserOpen()
	}

	monitor.RegisterComponent(w)
	if pwc := w.PagingStructureCache(); pwc != nil {
		for _, level := range pwc.Levels() {
			monitor.RegisterComponent(level)
		}
	}

	monitor.StartServer()

	return monitor
}

func reportStats(w *walker.Comp) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "cache\tinsert\thit\tmiss\tevict\tflush\thit rate")
	if pwc := w.PagingStructureCache(); pwc != nil {
		for _, level := range pwc.Levels() {
			s := level.Stats()
			hitRate := 0.0
			if s.Hit+s.Miss > 0 {
				hitRate = float64(s.Hit) / float64(s.Hit+s.Miss)
			}

			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%.3f\n",
				level.Name(), s.Insert, s.Hit, s.Miss, s.Evict, s.Flush,
				hitRate)
		}
	}
	tw.Flush()

	fmt.Printf("table reads: %d (%.3f per translation)\n",
		w.TableReads(),
		float64(w.TableReads())/float64(runFlags.accesses))
}

type statsRow struct {
	Cache  string
	Flush  uint64
	Insert uint64
	Evict  uint64
	Hit    uint64
	Miss   uint64
}

type summaryRow struct {
	Mode       string
	Accesses   uint64
	TableReads uint64
}

func recordStats(w *walker.Comp) {
	if runFlags.dbPath == "" {
		return
	}

	recorder := datarecording.New(runFlags.dbPath)

	recorder.CreateTable("pwc_stats", statsRow{})
	if pwc := w.PagingStructureCache(); pwc != nil {
		for _, level := range pwc.Levels() {
			s := level.Stats()
			recorder.InsertData("pwc_stats", statsRow{
				Cache:  level.Name(),
				Flush:  s.Flush,
				Insert: s.Insert,
				Evict:  s.Evict,
				Hit:    s.Hit,
				Miss:   s.Miss,
			})
		}
	}

	recorder.CreateTable("run_summary", summaryRow{})
	recorder.InsertData("run_summary", summaryRow{
		Mode:       w.Mode().String(),
		Accesses:   runFlags.accesses,
		TableReads: w.TableReads(),
	})

	recorder.Flush()
}

func waitForInterrupt() {
	fmt.Fprintln(os.Stderr, "Workload done; monitoring server still up. "+
		"Interrupt to exit.")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	<-sigs
}

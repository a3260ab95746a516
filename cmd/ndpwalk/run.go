package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/ndpwalk/config"
	"github.com/sarchlab/ndpwalk/memfetch"
	"github.com/sarchlab/ndpwalk/memmap"
	"github.com/sarchlab/ndpwalk/telemetry"
	"github.com/sarchlab/ndpwalk/tlb"
	"github.com/spf13/cobra"
)

// snapshotEvery bounds how often run records a telemetry snapshot when
// --db is set, so long traces do not write a row per cycle.
const snapshotEvery = 256

var (
	runConfigPath string
	runEnvPath    string
	runPageTable  string
	runPTBase     uint64
	runTracePath  string
	runDBPath     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a VA trace through the TLB/MMU pair, cycle by cycle.",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "path to config YAML")
	runCmd.Flags().StringVar(&runEnvPath, "env", "", "path to .env overrides")
	runCmd.Flags().StringVar(&runPageTable, "pagetable", "", "path to page-table dump")
	runCmd.Flags().Uint64Var(&runPTBase, "pagetable-base", defaultPTBase, "PML4 physical base")
	runCmd.Flags().StringVar(&runTracePath, "trace", "", "path to newline-delimited VA trace")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "optional SQLite database for stats snapshots")
	runCmd.MarkFlagRequired("pagetable")
	runCmd.MarkFlagRequired("trace")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath, runEnvPath)
	if err != nil {
		return err
	}

	ptFile, err := os.Open(runPageTable)
	if err != nil {
		return fmt.Errorf("opening page table: %w", err)
	}
	defer ptFile.Close()

	mem, err := memmap.Load(ptFile)
	if err != nil {
		return fmt.Errorf("loading page table: %w", err)
	}

	vas, err := readTrace(runTracePath)
	if err != nil {
		return err
	}

	t := tlb.MakeBuilder().
		WithConfig(cfg).
		WithMemoryMap(mem).
		WithPageTableBase(runPTBase).
		Build()

	var recorder *telemetry.Recorder
	if runDBPath != "" {
		recorder, err = telemetry.NewRecorder(runDBPath)
		if err != nil {
			return err
		}
		defer recorder.Flush()
	}

	// The memory system is an external collaborator this core only
	// talks to through PushMemReq/Fill; standing in for it here with a
	// same-cycle delivery is enough to drive an end-to-end replay.
	toMem := t.ToMemBuffer()

	next := 0
	completed := 0
	for next < len(vas) || t.Outstanding() {
		if next < len(vas) && !t.Full(0) {
			mf := &memfetch.MemFetch{Addr: vas[next], AccessType: memfetch.GlobalRead}
			t.Access(mf)
			next++
		}

		t.Cycle()
		t.BankAccessCycle()
		cfg.AdvanceCycle()

		for toMem.Size() > 0 {
			t.Fill(toMem.Pop().(*memfetch.MemFetch))
		}

		for t.DataReady() {
			t.PopData()
			completed++
		}

		if recorder != nil && cfg.NDPCycle()%snapshotEvery == 0 {
			s := t.Stats()
			if err := recorder.Record(telemetry.Snapshot{
				Cycle: cfg.NDPCycle(), Walks: s.Walks, WalkReads: s.WalkReads, Hits: s.Hits, Fails: s.Fails,
			}); err != nil {
				return err
			}
		}
	}

	stats := t.Stats()
	fmt.Printf("submitted=%d completed=%d walks=%d walk_reads=%d hits=%d fails=%d cycles=%d\n",
		len(vas), completed, stats.Walks, stats.WalkReads, stats.Hits, stats.Fails, cfg.NDPCycle())

	return nil
}

func readTrace(path string) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}
	defer f.Close()

	var vas []uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		va, err := strconv.ParseUint(line, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing trace line %q: %w", line, err)
		}
		vas = append(vas, va)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}

	return vas, nil
}

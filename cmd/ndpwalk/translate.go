package main

import (
	"fmt"
	"os"

	"github.com/sarchlab/ndpwalk/config"
	"github.com/sarchlab/ndpwalk/memfetch"
	"github.com/sarchlab/ndpwalk/memmap"
	"github.com/sarchlab/ndpwalk/mmu"
	"github.com/spf13/cobra"
)

// defaultPTBase matches the original fixture generator's default
// PML4 physical base.
const defaultPTBase = 0x0009000000000000

var (
	translateConfigPath string
	translateEnvPath    string
	translatePageTable  string
	translatePTBase     uint64
	translateVA         uint64
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a single virtual address via MMU.Translate.",
	RunE:  runTranslate,
}

func init() {
	translateCmd.Flags().StringVar(&translateConfigPath, "config", "", "path to config YAML")
	translateCmd.Flags().StringVar(&translateEnvPath, "env", "", "path to .env overrides")
	translateCmd.Flags().StringVar(&translatePageTable, "pagetable", "", "path to page-table dump")
	translateCmd.Flags().Uint64Var(&translatePTBase, "pagetable-base", defaultPTBase, "PML4 physical base")
	translateCmd.Flags().Uint64Var(&translateVA, "va", 0, "virtual address to translate")
	translateCmd.MarkFlagRequired("pagetable")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(translateConfigPath, translateEnvPath)
	if err != nil {
		return err
	}

	f, err := os.Open(translatePageTable)
	if err != nil {
		return fmt.Errorf("opening page table: %w", err)
	}
	defer f.Close()

	mem, err := memmap.Load(f)
	if err != nil {
		return fmt.Errorf("loading page table: %w", err)
	}

	m := mmu.MakeBuilder().
		WithMemoryMap(mem).
		WithPageTableBase(translatePTBase).
		WithConfig(cfg).
		WithToMemQueue(noopToMem{}).
		Build()

	pa, ok := m.Translate(translateVA, false)
	if !ok {
		fmt.Printf("VA 0x%x: page fault\n", translateVA)
		return nil
	}

	fmt.Printf("VA 0x%x -> PA 0x%x\n", translateVA, pa)

	return nil
}

// noopToMem satisfies mmu.ToMemPusher for the functional-only
// translate path, which never issues asynchronous reads.
type noopToMem struct{}

func (noopToMem) PushMemReq(mf *memfetch.MemFetch) bool { return false }

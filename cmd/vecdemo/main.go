package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/untypedvec"
	"github.com/wippyai/untypedvec/memory"
)

func main() {
	var (
		typeName    = flag.String("type", "i32", "Element type ("+kindNames()+")")
		count       = flag.Int("n", 10, "Number of elements to push")
		linear      = flag.Bool("linear", false, "Store elements in WebAssembly linear memory")
		maxPages    = flag.Uint("pages", 0, "Linear memory page limit (0 = wazero default)")
		verbose     = flag.Bool("v", false, "Debug logging to stderr")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	kind, ok := kinds[*typeName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Usage: vecdemo -type %s [-n count] [-linear] [-v]\n", kindNames())
		fmt.Fprintln(os.Stderr, "       vecdemo -type <type> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = log.Sync() }()
		untypedvec.SetLogger(log)
		memory.SetLogger(log)
	}

	if *interactive {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			if err := runInteractive(kind, *linear, uint32(*maxPages)); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		fmt.Fprintln(os.Stderr, "stdout is not a terminal; running non-interactively")
	}

	if err := run(kind, *count, *linear, uint32(*maxPages)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openAllocator returns the allocator option and a release func.
func openAllocator(ctx context.Context, linear bool, maxPages uint32) ([]untypedvec.Option, func(), error) {
	if !linear {
		return nil, func() {}, nil
	}
	lin, err := memory.OpenLinear(ctx, maxPages)
	if err != nil {
		return nil, nil, fmt.Errorf("open linear memory: %w", err)
	}
	opts := []untypedvec.Option{untypedvec.WithAllocator(lin)}
	return opts, func() { _ = lin.Close(ctx) }, nil
}

func run(kind elemKind, n int, linear bool, maxPages uint32) error {
	ctx := context.Background()

	opts, release, err := openAllocator(ctx, linear, maxPages)
	if err != nil {
		return err
	}
	defer release()

	var drops int
	v := kind.open(&drops, opts...)
	defer v.Close()

	fmt.Printf("Vec[%s] %s\n", v.Type(), v.Layout())

	lastCap := v.Cap()
	for i := 0; i < n; i++ {
		if err := kind.push(v, kind.sample(i)); err != nil {
			return fmt.Errorf("push %d: %w", i, err)
		}
		if v.Cap() != lastCap {
			fmt.Printf("  grow at len=%d: cap %d -> %d\n", v.Len(), lastCap, v.Cap())
			lastCap = v.Cap()
		}
	}

	fmt.Printf("\nElements (len=%d cap=%d):\n", v.Len(), v.Cap())
	for i := 0; i < v.Len() && i < 8; i++ {
		s, err := kind.get(v, i)
		if err != nil {
			return fmt.Errorf("get %d: %w", i, err)
		}
		fmt.Printf("  [%d] %s\n", i, s)
	}
	if v.Len() > 8 {
		fmt.Printf("  ... %d more\n", v.Len()-8)
	}

	if linear {
		ptr, length, err := v.GuestListOf(kind.guest)
		if err != nil {
			return fmt.Errorf("guest list: %w", err)
		}
		fmt.Printf("\nGuest list<%s>: ptr=%#x len=%d\n", kind.name, ptr, length)
	}

	fmt.Printf("\nFaults:\n")
	if _, err := kind.get(v, v.Len()); err != nil {
		fmt.Printf("  get(%d): %v\n", v.Len(), err)
	}
	if _, err := untypedvec.Get[complex128](v, 0); err != nil {
		fmt.Printf("  get[complex128](0): %v\n", err)
	}

	live := v.Len()
	if err := v.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	fmt.Printf("\nClosed: dropped %d of %d elements\n", drops, live)
	return nil
}

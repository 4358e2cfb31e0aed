// Groove CLI - the main entry point for running Groove programs
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"

	"github.com/groove-lang/groove/cache"
	"github.com/groove-lang/groove/manifest"
	"github.com/groove-lang/groove/pkg/bytecode"
)

var log = commonlog.GetLogger("groove.cli")

var errColor = color.New(color.FgRed)

func main() {
	interactive := flag.Bool("i", false, "Start interactive REPL")
	evalExpr := flag.String("e", "", "Evaluate the given source and exit")
	disassemble := flag.Bool("d", false, "Disassemble instead of running")
	noCache := flag.Bool("no-cache", false, "Skip the compiled-chunk cache")
	cachePath := flag.String("cache", "", "Chunk cache location (overrides groove.toml)")
	trace := flag.Bool("trace", false, "Log each executed instruction")
	verbose := flag.Int("v", 0, "Log verbosity (0-2)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: groove [options] [script.groove]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a Groove script, or the project entry from groove.toml.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  groove play.groove        # Run a script\n")
		fmt.Fprintf(os.Stderr, "  groove -i                 # Start the REPL\n")
		fmt.Fprintf(os.Stderr, "  groove -d play.groove     # Show its bytecode\n")
		fmt.Fprintf(os.Stderr, "  groove -e 'print 1 + 2;'  # One-shot evaluation\n")
	}
	flag.Parse()

	commonlog.Configure(*verbose, nil)

	m := loadManifest()

	vm := bytecode.NewVM()
	vm.Stdout = os.Stdout
	vm.Trace = *trace

	switch {
	case *evalExpr != "":
		if _, err := vm.Interpret(*evalExpr); err != nil {
			fail(err)
		}

	case *interactive:
		runRepl(vm)

	default:
		path := flag.Arg(0)
		if path == "" {
			path = m.EntryPath()
		}
		if path == "" {
			flag.Usage()
			os.Exit(2)
		}
		if *disassemble {
			if err := disassembleScript(path); err != nil {
				fail(err)
			}
			return
		}
		store := openStore(m, *noCache, *cachePath)
		if store != nil {
			defer store.Close()
		}
		if err := runScript(vm, store, path); err != nil {
			fail(err)
		}
	}
}

// loadManifest reads groove.toml from the working directory, falling
// back to defaults when there is none.
func loadManifest() *manifest.Manifest {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	m, err := manifest.Load(dir)
	if err != nil {
		log.Debugf("no project manifest: %s", err.Error())
		return manifest.Default(dir)
	}
	log.Infof("loaded %s", filepath.Join(dir, "groove.toml"))
	return m
}

// openStore opens the chunk cache unless disabled by flag or manifest.
func openStore(m *manifest.Manifest, noCache bool, override string) *cache.Store {
	if noCache || (!m.CacheEnabled() && override == "") {
		return nil
	}
	path := m.CachePath()
	if override != "" {
		path = override
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Errorf("cannot create cache directory: %s", err.Error())
		return nil
	}
	store, err := cache.Open(path)
	if err != nil {
		log.Errorf("cannot open chunk cache: %s", err.Error())
		return nil
	}
	return store
}

// runScript executes a script file, going through the chunk cache when
// one is open.
func runScript(vm *bytecode.VM, store *cache.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	source := string(data)

	if store != nil {
		if closure, ok := store.Get(source); ok {
			log.Debugf("cache hit for %s", path)
			_, err := vm.RunClosure(closure)
			return err
		}
	}

	closure, err := vm.Compile(source)
	if err != nil {
		return err
	}
	if store != nil {
		if err := store.Put(source, closure); err != nil {
			log.Errorf("cannot cache %s: %s", path, err.Error())
		}
	}
	_, err = vm.RunClosure(closure)
	return err
}

// disassembleScript prints the compiled bytecode of a script.
func disassembleScript(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	closure, err := bytecode.Compile(string(data))
	if err != nil {
		return err
	}
	fmt.Print(closure.Fn.Chunk.DisassembleWithName(filepath.Base(path)))
	return nil
}

// runRepl reads statements line by line, sharing one VM so globals and
// functions persist across entries.
func runRepl(vm *bytecode.VM) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "groove> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".groove_history"),
		InterruptPrompt: "^C",
	})
	if err != nil {
		fail(err)
	}
	defer rl.Close()

	fmt.Println("Groove REPL - enter statements, ctrl-d to exit")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fail(err)
		}
		if line == "" {
			continue
		}
		if _, err := vm.Interpret(line); err != nil {
			errColor.Fprintln(os.Stderr, err)
		}
	}
}

func fail(err error) {
	errColor.Fprintln(os.Stderr, err)
	os.Exit(1)
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"volfs/internal/config"
	"volfs/internal/directio"
	"volfs/internal/fs"
	"volfs/internal/logging"

	"github.com/spf13/pflag"
)

var (
	logger = logging.GetLogger()

	errHelp = errors.New("help requested")
)

// usageError is returned for command lines that cannot be acted on.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }
func (e *usageError) ExitCode() int { return 2 }

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

type options struct {
	configPath string
	verbose    bool
	debugFuse  bool
}

func newFlagSet(cfg *config.Config, opts *options) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("volfs", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flagSet.StringVar(&cfg.FSName, "fsname", cfg.FSName, "filesystem name shown as the mount source")
	flagSet.BoolVar(&cfg.AllowOther, "allow-other", cfg.AllowOther, "allow other users to access the mount")
	flagSet.BoolVar(&cfg.Multithread, "multithread", cfg.Multithread, "handle requests concurrently")
	flagSet.BoolVar(&cfg.BufferedFallback, "buffered-fallback", cfg.BufferedFallback, "fall back to buffered I/O if O_DIRECT is refused")
	flagSet.BoolVar(&cfg.ReadOnly, "read-only", cfg.ReadOnly, "mount read-only and open the backing object read-only")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: error, warn, info, debug or trace")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "shorthand for --log-level=debug")
	flagSet.BoolVar(&opts.debugFuse, "debug-fuse", false, "log every FUSE message")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: volfs [flags] PATH MOUNTPOINT\n\n")
		fmt.Fprintf(os.Stderr, "Exposes the file or block device at PATH as MOUNTPOINT/volume.\n\nFlags:\n")
		flagSet.PrintDefaults()
	}
	return flagSet
}

// loadConfig layers the config file, the environment and the command
// line, in that order. Flags are parsed twice so that --config is known
// before the file it names is read.
func loadConfig(args []string) (*config.Config, *options, []string, error) {
	var probe options
	probeSet := newFlagSet(config.Default(), &probe)
	probeSet.Usage = func() {}
	probeSet.SetOutput(io.Discard)
	if err := probeSet.Parse(args); err != nil && err != pflag.ErrHelp {
		return nil, nil, nil, &usageError{msg: err.Error()}
	}

	cfg, err := config.Load(probe.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, nil, nil, err
	}

	var opts options
	flagSet := newFlagSet(cfg, &opts)
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, nil, nil, errHelp
		}
		return nil, nil, nil, &usageError{msg: err.Error()}
	}
	if opts.verbose && !flagSet.Changed("log-level") {
		cfg.LogLevel = "debug"
	}
	if flagSet.NArg() != 2 {
		flagSet.Usage()
		return nil, nil, nil, &usageError{msg: fmt.Sprintf("expected PATH and MOUNTPOINT, got %d arguments", flagSet.NArg())}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	return cfg, &opts, flagSet.Args(), nil
}

func run(args []string) error {
	cfg, opts, positional, err := loadConfig(args)
	if errors.Is(err, errHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	if cfg.LogLevel != "" {
		level, _ := cfg.Level()
		if os.Getenv("FUSE_DEBUG") != "" && level < logging.LevelDebug {
			level = logging.LevelDebug
		}
		logger.SetLevel(level)
	}

	backingPath := positional[0]
	mountPoint := filepath.Clean(positional[1])

	logger.Info("Starting volfs...")
	logger.Debug("Backing object: %s", backingPath)
	logger.Debug("Mount point: %s", mountPoint)
	logger.Debug("Config: %+v", *cfg)

	backing, err := fs.NewBacking(backingPath)
	if err != nil {
		return err
	}

	logger.Info("Opening backing object...")
	vol, err := directio.Open(backing.Path(), directio.Options{
		ReadOnly:      cfg.ReadOnly,
		AllowBuffered: cfg.BufferedFallback,
		Alignment:     cfg.Alignment,
	})
	if err != nil {
		return fmt.Errorf("failed to open backing object: %w", err)
	}
	defer func() {
		if err := vol.Close(); err != nil {
			logger.Error("Failed to close backing object: %v", err)
		}
	}()
	if !vol.Direct() {
		logger.Warn("O_DIRECT not supported for %s, using buffered I/O", backing.Path())
	}
	logger.Debug("Direct I/O alignment: %d", vol.Alignment())

	dispatcher := fs.NewDispatcher(fs.NewProjector(backing, nil), vol)
	ops := fs.Observe(dispatcher, fs.LogObserver(logger.WithPrefix("ops")))

	vfs := fs.NewVolumeFS(ops, fs.MountOptions{
		FSName:       cfg.FSName,
		Subtype:      cfg.Subtype,
		AllowOther:   cfg.AllowOther,
		ReadOnly:     cfg.ReadOnly,
		MaxReadahead: cfg.MaxReadahead,
		Serialize:    !cfg.Multithread,
		Debug:        opts.debugFuse,
	})

	logger.Debug("Setting up signal handlers...")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Mounting filesystem...")
	if err := vfs.Mount(mountPoint); err != nil {
		return err
	}
	logger.Info("Filesystem mounted and ready")

	go handleSignals(sigChan, vfs.Unmount)

	if err := vfs.Wait(); err != nil {
		return err
	}
	logger.Info("Clean shutdown complete")
	return nil
}

// handleSignals unmounts on each signal until an unmount succeeds. A busy
// mount leaves the loop waiting so the next signal can try again.
func handleSignals(sigs <-chan os.Signal, unmount func() error) {
	for sig := range sigs {
		logger.Info("Received signal %v", sig)
		if err := unmount(); err != nil {
			logger.Error("Unmount error: %v", err)
			continue
		}
		return
	}
}

// Command ultask is the CLI front end for the ulpatch core: attach to a
// running process, load and install a patch, and keep it resident until
// interrupted, at which point the patch is cleanly removed and the
// target detached. It is a thin cobra adapter over internal/task —
// every real operation (attach, symbol load, stage, relocate, install)
// lives in the internal packages; this file only wires flags to them
// and renders results.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ulpatch/ulpatch/internal/config"
	"github.com/ulpatch/ulpatch/internal/opevent"
	"github.com/ulpatch/ulpatch/internal/operr"
	"github.com/ulpatch/ulpatch/internal/task"
	"github.com/ulpatch/ulpatch/internal/ulog"
)

var (
	cfgPath      string
	debug        bool
	registryRoot string
	statusView   bool
	doVerify     bool
	callSiteHex  string
)

func main() {
	root := &cobra.Command{
		Use:   "ultask",
		Short: "Attach to a process and install userspace live patches",
		Long: `ultask attaches to a running Linux process via ptrace, resolves its
symbol table and memory layout, and installs a relocatable patch object's
replacement function at a call site — all without restarting the target.`,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file (optional)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging")
	root.PersistentFlags().StringVar(&registryRoot, "registry-root", "", "on-disk patch registry root (default $TMPDIR/ulpatch)")

	root.AddCommand(infoCmd())
	root.AddCommand(runCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if cat, ok := operr.Of(err); ok {
			fmt.Fprintf(os.Stderr, "hint (%s): %s\n", cat, cat.Suggestion())
		}
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err == nil {
			cfg = loaded
		}
	}
	return cfg.Merge(config.Config{Debug: debug, RegistryRoot: registryRoot, Verify: doVerify})
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <pid>",
		Short: "Attach read-only and print the target's VMA and symbol summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid pid %q: %w", args[0], err)
			}
			cfg := loadConfig()
			log := newLogger(cfg)

			flags := task.LoadVMAs | task.LoadVMAELFs | task.LoadSelfELF | task.LoadLibcELF | task.LoadSymbols
			t, err := task.OpenTarget(pid, flags, cfg.RegistryRoot, log)
			if err != nil {
				return err
			}
			defer task.CloseTarget(t)

			fmt.Printf("pid=%d comm=%s exe=%s isa=%s\n", t.PID, t.Comm, t.ExePath, t.ISA)
			fmt.Printf("vmas=%d\n", t.VMAs.Len())
			if t.Syms != nil {
				fmt.Printf("symbols=%d\n", t.Syms.Len())
			}
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var patchPath string
	cmd := &cobra.Command{
		Use:   "run <pid>",
		Short: "Attach, install a patch, and hold it resident until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid pid %q: %w", args[0], err)
			}
			if patchPath == "" {
				return fmt.Errorf("--patch is required")
			}
			callSite, err := strconv.ParseUint(callSiteHex, 0, 64)
			if err != nil {
				return fmt.Errorf("invalid --call-site %q: %w", callSiteHex, err)
			}

			cfg := loadConfig()
			log := newLogger(cfg)

			history := opevent.NewHistory(256, opevent.DefaultEnricher)
			log.SetOnEvent(history.ListenFunc())

			flags := task.LoadVMAs | task.LoadVMAELFs | task.LoadSelfELF | task.LoadLibcELF | task.LoadSymbols | task.RegisterOnDisk
			t, err := task.OpenTarget(pid, flags, cfg.RegistryRoot, log)
			if err != nil {
				return err
			}
			defer task.CloseTarget(t)
			t.Verify = cfg.Verify

			li, err := t.LoadPatch(patchPath, callSite)
			if err != nil {
				return fmt.Errorf("load patch: %w", err)
			}
			fmt.Printf("patch installed: target_func=%s state=%s call_site=0x%x\n",
				li.TargetFunc(), li.State, callSite)

			if statusView {
				runStatusView(history)
			} else {
				waitForSignal()
			}

			if err := t.RemovePatch(li); err != nil {
				return fmt.Errorf("remove patch: %w", err)
			}
			fmt.Println("patch removed")
			return nil
		},
	}
	cmd.Flags().StringVar(&patchPath, "patch", "", "path to the patch relocatable object (required)")
	cmd.Flags().StringVar(&callSiteHex, "call-site", "", "runtime address of the call site to redirect (required)")
	cmd.Flags().BoolVar(&doVerify, "verify", false, "dry-run the patch in an isolated sandbox before install")
	cmd.Flags().BoolVar(&statusView, "status", false, "show a live status view of lifecycle events")
	return cmd
}

func newLogger(cfg config.Config) *ulog.Logger {
	return ulog.New(cfg.Debug)
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
}

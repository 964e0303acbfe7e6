// Command vkframe opens a window and renders demo meshes with the vkframe renderer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	// GLFW calls must come from the main thread.
	runtime.LockOSThread()
}

type rootOptions struct {
	configPath string
	logLevel   string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "vkframe",
		Short:         "Vulkan frame loop demo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML or TOML configuration file")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.BoolVar(&opts.debug, "debug", false, "enable validation layers and the debug report callback")

	cmd.AddCommand(newRunCmd(opts), newDevicesCmd(opts), newConfigCmd(opts))
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "vkframe:", err)
		os.Exit(1)
	}
}

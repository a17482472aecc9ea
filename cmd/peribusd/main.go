// Command peribusd serves an example peribus namespace over 9P2000:
// a handful of agent directories, one PTY-backed shell, and a routes
// file tying them together, wired onto a cobra CLI.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/peripherialabs/peribus-sub000/conn"
	"github.com/peripherialabs/peribus-sub000/internal/config"
	ilog "github.com/peripherialabs/peribus-sub000/internal/log"
	"github.com/peripherialabs/peribus-sub000/internal/netservice"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	var configPath string
	var agentNames []string
	var shellName string

	root := &cobra.Command{
		Use:   "peribusd",
		Short: "Serve LLM agents, a shell, and routes as a 9P2000 file tree",
	}
	config.BindFlags(root, &cfg)
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the example namespace until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				fromFile, err := config.Load(configPath)
				if err != nil {
					return err
				}
				applyUnsetFlags(cmd, &cfg, fromFile)
			}

			ilog.SetLevel(cfg.LogLevel)
			return runServe(cfg, agentNames, shellName)
		},
	}
	serveCmd.Flags().StringSliceVar(&agentNames, "agent", []string{"assistant"}, "agent directory names to create")
	serveCmd.Flags().StringVar(&shellName, "shell-dir", "shell", "shell directory name (empty disables it)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the peribusd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	root.AddCommand(serveCmd, versionCmd)
	return root
}

// applyUnsetFlags layers file over cfg for every field whose flag was
// never explicitly set on the command line, so an explicit --flag
// always wins over the config file.
func applyUnsetFlags(cmd *cobra.Command, cfg *config.Config, file config.Config) {
	if !cmd.Flags().Changed("listen") {
		cfg.ListenAddr = file.ListenAddr
	}
	if !cmd.Flags().Changed("display-listen") {
		cfg.DisplayListenAddr = file.DisplayListenAddr
	}
	if !cmd.Flags().Changed("max-msize") {
		cfg.MaxMsize = file.MaxMsize
	}
	if !cmd.Flags().Changed("debounce") {
		cfg.Debounce = file.Debounce
	}
	if !cmd.Flags().Changed("log-level") {
		cfg.LogLevel = file.LogLevel
	}
	cfg.StreamBufferBytes = file.StreamBufferBytes
	cfg.ShellStreamBufferBytes = file.ShellStreamBufferBytes
	cfg.QueueCapacity = file.QueueCapacity
	if len(file.Shell) > 0 {
		cfg.Shell = file.Shell
	}
}

func runServe(cfg config.Config, agentNames []string, shellName string) error {
	ns, err := buildNamespace(cfg, agentNames, shellName)
	if err != nil {
		return err
	}

	srv := &conn.Server{Root: ns.root, MaxSize: cfg.MaxMsize}

	mainListener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("peribusd: listen %s: %w", cfg.ListenAddr, err)
	}
	listeners := []netservice.Listener{{Name: "main", Server: srv, Listener: mainListener}}

	if cfg.DisplayListenAddr != "" {
		displayListener, err := net.Listen("tcp", cfg.DisplayListenAddr)
		if err != nil {
			return fmt.Errorf("peribusd: listen %s: %w", cfg.DisplayListenAddr, err)
		}
		// The display server shares the same synthetic tree as the
		// primary listener -- one root served on several listeners;
		// only its advertised msize may differ.
		displaySrv := &conn.Server{Root: ns.root, MaxSize: cfg.MaxMsize}
		listeners = append(listeners, netservice.Listener{Name: "display", Server: displaySrv, Listener: displayListener})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group := netservice.New(listeners...)
	err = group.Run(ctx)
	ns.mgr.StopAll()
	return err
}

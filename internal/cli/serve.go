package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pagecheck/internal/harness"
	"github.com/roach88/pagecheck/internal/mockserver"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr   string
	Origin string

	// Ready receives the bound address once the server listens (for testing).
	Ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <scenario-file>",
		Short: "Serve a scenario's mock routes over HTTP",
		Long: `Expose the mock routes of one scenario as a standalone HTTP stub
server, for backends the frontend reaches outside the browser (a dev server
proxy, server-side rendering).

Routes are matched against --origin plus the request path, so routes
written for http://localhost:5000 keep matching when served elsewhere.
Unmatched requests get 501. GET /__pagecheck/routes lists the routes and
GET /__pagecheck/hits lists the requests served.

Example:
  pagecheck serve scenarios/flashcard_add_card.yaml --addr :5000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:5000", "listen address")
	cmd.Flags().StringVar(&opts.Origin, "origin", "", "origin routes are matched against (default: request host)")

	return cmd
}

func runServe(opts *ServeOptions, path string, cmd *cobra.Command) error {
	logger := opts.newLogger(cmd.ErrOrStderr())

	sc, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	_, tbl, err := sc.Build()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build mock routes", err)
	}

	srv := mockserver.New(tbl, mockserver.Options{Origin: opts.Origin, Logger: logger})

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ready := make(chan string, 1)
	done := make(chan struct{})
	go func() {
		select {
		case addr := <-ready:
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Serving %d mock route(s) from %s on http://%s\n", tbl.Len(), sc.Name, addr)
			fmt.Fprintln(w, "Press Ctrl-C to stop.")
			if opts.Ready != nil {
				opts.Ready <- addr
			}
		case <-done:
		}
	}()

	err = srv.Serve(ctx, opts.Addr, ready)
	close(done)
	if err != nil {
		return WrapExitError(ExitCommandError, "mock server failed", err)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/wippyai/corosock"
	"github.com/wippyai/corosock/errors"
	"github.com/wippyai/corosock/socket"
)

type dialOptions struct {
	timeout time.Duration
}

func newDialCommand(a *app) *cobra.Command {
	var opts dialOptions

	cmd := &cobra.Command{
		Use:   "dial HOST:PORT",
		Short: "Connect to a TCP endpoint and pipe stdin and stdout through it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDial(ctx, a, args[0], opts)
		},
	}

	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Connect timeout")
	return cmd
}

func runDial(ctx context.Context, a *app, target string, opts dialOptions) error {
	addr, port, err := parseEndpoint(target)
	if err != nil {
		return err
	}

	dctx := ctx
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	c, err := corosock.Dial(dctx, addr, port, a.socketOptions()...)
	if err != nil {
		return err
	}
	st := socket.NewStream(ctx, c)
	defer st.Close()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "connected to %s from %s, ^D to finish\n", c.PeerEndpoint(), c.LocalEndpoint())
	}
	a.log.Debug("connected", zap.Stringer("peer", c.PeerEndpoint()))

	var g errgroup.Group
	g.Go(func() error {
		if _, err := io.Copy(st, os.Stdin); err != nil {
			return err
		}
		return st.CloseWrite()
	})
	g.Go(func() error {
		_, err := io.Copy(os.Stdout, st)
		return err
	})

	go func() {
		<-ctx.Done()
		st.Close()
	}()

	err = g.Wait()
	if err != nil && errors.KindOf(err) == errors.KindClosed {
		return nil
	}
	return err
}

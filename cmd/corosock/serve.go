package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/corosock"
	"github.com/wippyai/corosock/errors"
	"github.com/wippyai/corosock/registry"
	"github.com/wippyai/corosock/socket"
	"github.com/wippyai/corosock/sockopt"
)

type serveOptions struct {
	addr    string
	backlog int
	noDelay bool
}

func newServeCommand(a *app) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve [OPTIONS]",
		Short: "Run a TCP echo server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.addr, "listen", "l", ":7000", "Address to listen on")
	flags.IntVar(&opts.backlog, "backlog", 0, "Listen backlog (0 uses the system maximum)")
	flags.BoolVar(&opts.noDelay, "no-delay", true, "Disable Nagle on accepted connections")
	return cmd
}

func runServe(ctx context.Context, a *app, opts serveOptions) error {
	addr, port, err := parseEndpoint(opts.addr)
	if err != nil {
		return err
	}
	l, err := corosock.ListenTCP(addr, port, opts.backlog, a.socketOptions()...)
	if err != nil {
		return err
	}
	a.log.Info("echo server listening",
		zap.Stringer("local", l.LocalEndpoint()),
		zap.Stringer("family", l.Family()))

	conns := registry.New[*socket.Socket]()
	cancel := conns.Subscribe(registry.ObserverFunc[*socket.Socket](func(e registry.Event[*socket.Socket]) {
		a.log.Debug("connection "+e.Type.String(),
			zap.Uint32("handle", uint32(e.Handle)),
			zap.Int("open", conns.Len()))
	}))
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		l.Close()
		return conns.Close()
	})
	g.Go(func() error {
		for {
			c, err := l.Accept(ctx)
			if err != nil {
				switch errors.KindOf(err) {
				case errors.KindCanceled, errors.KindClosed:
					return nil
				case errors.KindResourceExhausted, errors.KindNetwork:
					a.log.Warn("accept failed", zap.Error(err))
					continue
				}
				return err
			}
			if opts.noDelay {
				_ = c.SetOption(sockopt.LowDelay, 1)
			}
			h, err := conns.Add(c)
			if err != nil {
				c.Close()
				return nil
			}
			g.Go(func() error {
				echo(ctx, a.log, c)
				conns.Remove(h)
				return nil
			})
		}
	})
	err = g.Wait()
	a.log.Info("echo server stopped")
	return err
}

func echo(ctx context.Context, log *zap.Logger, c *socket.Socket) {
	peer := c.PeerEndpoint()
	st := socket.NewStream(ctx, c)
	defer st.Close()

	n, err := io.Copy(st, st)
	fields := []zap.Field{zap.Stringer("peer", peer), zap.Int64("bytes", n)}
	if err != nil && errors.KindOf(err) != errors.KindClosed {
		log.Info("connection ended", append(fields, zap.Error(err))...)
		return
	}
	log.Info("connection ended", fields...)
}

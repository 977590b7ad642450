package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wippyai/corosock"
	"github.com/wippyai/corosock/errors"
	"github.com/wippyai/corosock/inet"
	"github.com/wippyai/corosock/socket"
	"github.com/wippyai/corosock/sockopt"
)

func newUDPListenCommand(a *app) *cobra.Command {
	var bufSize int

	cmd := &cobra.Command{
		Use:   "udp-listen HOST:PORT",
		Short: "Print datagrams received on a UDP port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr, port, err := parseEndpoint(args[0])
			if err != nil {
				return err
			}
			u, err := corosock.ListenUDP(addr, port, a.socketOptions()...)
			if err != nil {
				return err
			}
			defer u.Close()
			a.log.Info("listening", zap.Stringer("local", u.LocalEndpoint()))

			buf := make([]byte, bufSize)
			for {
				n, src, err := u.RecvFrom(ctx, buf)
				if err != nil {
					if errors.KindOf(err) == errors.KindCanceled {
						return nil
					}
					return err
				}
				fmt.Printf("%s\t%q\n", src, buf[:n])
			}
		},
	}

	cmd.Flags().IntVar(&bufSize, "buffer", 65535, "Receive buffer size in bytes")
	return cmd
}

type udpSendOptions struct {
	rate  float64
	count int
}

func newUDPSendCommand(a *app) *cobra.Command {
	var opts udpSendOptions

	cmd := &cobra.Command{
		Use:   "udp-send HOST:PORT MESSAGE",
		Short: "Send datagrams to a UDP endpoint at a fixed rate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runUDPSend(ctx, a, args[0], []byte(args[1]), opts)
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&opts.rate, "rate", 10, "Datagrams per second")
	flags.IntVarP(&opts.count, "count", "n", 1, "Number of datagrams to send (0 sends until interrupted)")
	return cmd
}

func runUDPSend(ctx context.Context, a *app, target string, msg []byte, opts udpSendOptions) error {
	addr, port, err := parseEndpoint(target)
	if err != nil {
		return err
	}
	family := inet.IPv4
	if addr.IsValid() && !addr.Unmap().Is4() {
		family = inet.IPv6
	}
	u, err := socket.New(inet.Datagram, family, a.socketOptions()...)
	if err != nil {
		return err
	}
	defer u.Close()
	if v, ok := u.GetOption(sockopt.SendBufferSize); ok {
		a.log.Debug("send buffer", zap.Int("bytes", v))
	}

	limiter := rate.NewLimiter(rate.Limit(opts.rate), 1)
	for i := 0; opts.count == 0 || i < opts.count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		if _, err := u.SendTo(ctx, msg, addr, port); err != nil {
			if errors.KindOf(err) == errors.KindDatagramTooLarge {
				return err
			}
			a.log.Warn("send failed", zap.Error(err))
		}
	}
	a.log.Debug("done", zap.Stringer("local", u.LocalEndpoint()))
	return nil
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blockedby/mailmerge/internal/nats"
)

func newEventsCommand() *cobra.Command {
	var consumer string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow dispatch run events published to NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if rt.cfg.NatsURL == "" {
				return errors.New("NATS_URL is not set")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			nc, err := nats.New(ctx, rt.cfg.NatsURL)
			if err != nil {
				return err
			}
			defer nc.Close()

			if err := nc.EnsureDispatchStream(ctx); err != nil {
				return err
			}

			cc, err := nc.Subscribe(ctx, consumer, nats.SubjectDispatchAll, func(subject string, data []byte) error {
				_, err := fmt.Fprintf(rt.out, "%s %s\n", subject, data)
				return err
			})
			if err != nil {
				return err
			}
			defer cc.Stop()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&consumer, "consumer", "mailmerge-cli", "Durable consumer name")

	return cmd
}

package main

import (
	"context"

	"github.com/UnknownOlympus/geotweet/internal/adapter/kafka"
	"github.com/UnknownOlympus/geotweet/internal/service"
	"github.com/spf13/cobra"
)

func newStreamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stream",
		Short: "Resolves statuses from the Kafka source topic into the sink topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				reader := kafka.NewReader(a.cfg, a.log)
				defer reader.Close()
				writer := kafka.NewWriter(a.cfg, a.log)
				defer writer.Close()

				// Start the monitoring server in a goroutine, it stops with ctx.
				go startMonitoringServer(ctx, a.log, a.registry, a.store, a.cfg.Port)

				a.log.InfoContext(ctx, "Application started. Press Ctrl+C to stop.",
					"source", a.cfg.Kafka.SourceTopic,
					"sink", a.cfg.Kafka.SinkTopic)

				err := service.NewStream(reader, a.geocoder, writer, a.log, a.metrics, nil).Run(ctx)

				a.log.InfoContext(ctx, "Application stopped gracefully.")
				return err
			})
		},
	}
}

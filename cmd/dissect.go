package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slonegd/otdissect/ber"
	"github.com/slonegd/otdissect/c1222"
	"github.com/slonegd/otdissect/capture"
	"github.com/slonegd/otdissect/dissect"
	"github.com/slonegd/otdissect/internal/config"
	"github.com/slonegd/otdissect/logger"
	"github.com/slonegd/otdissect/osi/cotp"
)

var dissectCmd = &cobra.Command{
	Use:   "dissect",
	Short: "Decode the MMS and C12.22 messages of a capture",
	Long: `Decode every MMS and C12.22 message of a pcap or pcapng file.

One line is printed per message: frame number, connection, direction, the
decoded layers and a summary. MMS responses show the frame of their request
and the latency.

Examples:
  otdissect dissect -f substation.pcapng
  otdissect dissect -c otdissect.yml -f meter.pcap`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configFile)
		if err != nil {
			exitWithError("failed to load config", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := runDissect(ctx, cfg, dissectFile, cmd.OutOrStdout()); err != nil {
			exitWithError("dissect failed", err)
		}
	},
}

var dissectFile string

func init() {
	dissectCmd.Flags().StringVarP(&dissectFile, "file", "f", "", "capture file (required)")
	dissectCmd.MarkFlagRequired("file")
}

// Stats summarizes a dissect run.
type Stats struct {
	Packets  uint64
	Messages int
	Errors   int
}

func runDissect(ctx context.Context, cfg *config.Config, path string, out io.Writer) (Stats, error) {
	var stats Stats
	log := logger.NewLogger("dissect")

	pipeline, err := newPipeline(cfg, log)
	if err != nil {
		return stats, err
	}

	src, err := capture.OpenFile(path)
	if err != nil {
		return stats, err
	}
	defer src.Close()

	handle := func(m capture.Message) {
		rec, err := pipeline.Handle(m)
		if err != nil {
			log.Warn("frame %d: %v", m.Frame, err)
			return
		}
		stats.Messages++
		if rec.Err != nil {
			stats.Errors++
		}
		fmt.Fprintln(out, rec)
	}
	a := capture.NewAssembler(routes(cfg), handle,
		capture.WithDesegment(cfg.Decoder.Desegment),
		capture.WithLogger(logger.NewLogger("capture")),
	)

	stats.Packets, err = capture.Run(ctx, src, a)
	if err != nil {
		return stats, err
	}
	log.Info("%s: %d packets, %d messages, %d with errors", path, stats.Packets, stats.Messages, stats.Errors)
	return stats, nil
}

func newPipeline(cfg *config.Config, log logger.Logger) (*dissect.Pipeline, error) {
	keys, err := loadKeys(cfg.C1222)
	if err != nil {
		return nil, err
	}
	var baseOID ber.OID
	if cfg.C1222.BaseOID != "" {
		if baseOID, err = ber.ParseOID(cfg.C1222.BaseOID); err != nil {
			return nil, fmt.Errorf("invalid c1222.base_oid: %w", err)
		}
	}
	if cfg.C1222.Decrypt {
		log.Warn("c1222.decrypt is set but no EAX cipher is linked in, envelopes are reported as not checked")
	}

	return dissect.New(dissect.Config{
		MaxDepth:       cfg.Decoder.MaxDepth,
		TransactionTTL: cfg.MMS.TransactionTTL,
		Envelope: c1222.Config{
			DecryptEnabled: cfg.C1222.Decrypt,
			BaseOID:        baseOID,
			Keys:           keys,
		},
	}, dissect.WithLogger(log)), nil
}

func routes(cfg *config.Config) []capture.Route {
	var rs []capture.Route
	for _, port := range cfg.MMS.Ports {
		rs = append(rs, capture.Route{Name: dissect.RouteMMS, Port: port, Framer: cotp.Framer{}})
	}
	for _, port := range cfg.C1222.Ports {
		rs = append(rs, capture.Route{Name: dissect.RouteC1222, Port: port, Framer: c1222.Framer{}, UDP: true})
	}
	return rs
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"subburn/internal/encoding"
)

func newEncodersCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "encoders",
		Short: "Probe the transcoder for hardware encoder support",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}

			support := encoding.DetectHardwareEncoders(
				cmd.Context(),
				cfg.Tools.FFmpegBinary,
				time.Duration(cfg.Tools.EncoderProbeTimeout)*time.Second,
				nil,
			)
			if !support.Available {
				fmt.Fprintln(cmd.OutOrStdout(), support.Description)
				return nil
			}

			rows := make([][]string, 0, len(support.Encoders))
			for _, name := range support.Encoders {
				rows = append(rows, []string{name})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Hardware Encoder"},
				rows,
				[]columnAlignment{alignLeft},
			))
			return nil
		},
	}
}

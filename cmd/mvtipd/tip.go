package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/megavibe/megavibe-node/tipClient/chains"
	"github.com/megavibe/megavibe-node/tipClient/core"
	"github.com/megavibe/megavibe-node/tipClient/logger"
	"github.com/megavibe/megavibe-node/tipClient/orchestrator"
	"github.com/megavibe/megavibe-node/tipClient/units"
)

// QuoteOutput is the printable form of a quote
type QuoteOutput struct {
	SourceChain       string `yaml:"source_chain" json:"source_chain"`
	TargetChain       string `yaml:"target_chain" json:"target_chain"`
	SendUSDC          string `yaml:"send_usdc" json:"send_usdc"`
	ReceiveUSDC       string `yaml:"receive_usdc" json:"receive_usdc"`
	PlatformFeeUSD    string `yaml:"platform_fee_usd" json:"platform_fee_usd"`
	GasFeeUSD         string `yaml:"gas_fee_usd" json:"gas_fee_usd"`
	BridgeFeeUSD      string `yaml:"bridge_fee_usd" json:"bridge_fee_usd"`
	TotalFeesUSD      string `yaml:"total_fees_usd" json:"total_fees_usd"`
	EstimatedDuration string `yaml:"estimated_duration" json:"estimated_duration"`
	Route             string `yaml:"route" json:"route"`
	Tool              string `yaml:"tool,omitempty" json:"tool,omitempty"`
}

// ChainOutput is the printable form of a supported chain
type ChainOutput struct {
	ChainID      int64  `yaml:"chain_id" json:"chain_id"`
	Name         string `yaml:"name" json:"name"`
	NativeSymbol string `yaml:"native_symbol" json:"native_symbol"`
	USDC         string `yaml:"usdc_address,omitempty" json:"usdc_address,omitempty"`
	Target       bool   `yaml:"target" json:"target"`
	Testnet      bool   `yaml:"testnet" json:"testnet"`
}

func tipCmd() *cobra.Command {
	var (
		sourceChainID int64
		recipient     string
		amount        string
		message       string
		eventID       string
		speakerID     string
	)

	cmd := &cobra.Command{
		Use:   "tip",
		Short: "Send a tip and follow it until it settles",
		RunE: func(cmd *cobra.Command, args []string) error {
			amountUSD, err := units.ParseUSD(amount)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.Init(*cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := core.NewTipClient(ctx, log, cfg)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.StartBackground(); err != nil {
				return err
			}

			req := orchestrator.TipRequest{
				SourceChainID:    sourceChainID,
				RecipientAddress: recipient,
				AmountUSD:        amountUSD,
				Message:          message,
				EventID:          eventID,
				SpeakerID:        speakerID,
			}
			tracker, err := client.Orchestrator().Start(ctx, req)
			if err != nil {
				return err
			}

			source, _ := client.Registry().Chain(sourceChainID)
			result := followTip(ctx, cmd.OutOrStdout(), tracker, source, log)
			if result != nil && !result.Success {
				return fmt.Errorf("tip %s failed: %s", tracker.RequestID(), result.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&sourceChainID, "from-chain", 0, "Chain id the USDC is sent from")
	cmd.Flags().StringVar(&recipient, "to", "", "Speaker wallet address")
	cmd.Flags().StringVar(&amount, "amount", "", "Tip amount in USD, e.g. 5 or 2.50")
	cmd.Flags().StringVar(&message, "message", "", "Message shown with the tip")
	cmd.Flags().StringVar(&eventID, "event", "", "Event id")
	cmd.Flags().StringVar(&speakerID, "speaker", "", "Speaker id")
	_ = cmd.MarkFlagRequired("from-chain")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

// followTip prints statuses until the tip finishes. On interrupt it stops
// printing; the tip itself still runs to completion before the client closes.
func followTip(ctx context.Context, out io.Writer, tracker *orchestrator.Tracker, source *chains.Chain, log zerolog.Logger) *orchestrator.TransferResult {
	fmt.Fprintf(out, "Tip %s submitted\n", tracker.RequestID())

	for {
		select {
		case status, ok := <-tracker.Updates():
			if !ok {
				result, _ := tracker.Result(context.Background())
				return result
			}
			printStatus(out, status, source)
		case <-ctx.Done():
			tracker.Unsubscribe()
			log.Warn().Str("request_id", tracker.RequestID()).Msg("interrupted, waiting for the in-flight tip to finish")
			return nil
		}
	}
}

func printStatus(out io.Writer, status orchestrator.TransferStatus, source *chains.Chain) {
	line := fmt.Sprintf("%s  %-10s %s", status.Timestamp.Format(time.TimeOnly), status.Kind, status.Message)
	if status.Quote != nil {
		line += fmt.Sprintf(" (receive %s USDC, fees $%s)", units.FormatUSDC(status.Quote.TargetAmount), status.Quote.Fees.Total().StringFixed(2))
	}
	if status.TxHash != "" {
		if url := source.TxURL(status.TxHash); url != "" {
			line += "  " + url
		} else {
			line += "  tx " + status.TxHash
		}
	}
	if detail := status.ErrorDetail(); detail != "" && detail != status.Message {
		line += "  error: " + detail
	}
	fmt.Fprintln(out, line)
}

func quoteCmd() *cobra.Command {
	var (
		sourceChainID int64
		amount        string
		outputFormat  string
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Preview the route and fees of a cross-chain tip",
		RunE: func(cmd *cobra.Command, args []string) error {
			amountUSD, err := units.ParseUSD(amount)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			client, err := core.NewTipClient(cmd.Context(), zerolog.Nop(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			quote, err := client.Orchestrator().Quote(cmd.Context(), sourceChainID, amountUSD)
			if err != nil {
				return err
			}
			registry := client.Registry()
			return printOutput(cmd.OutOrStdout(), QuoteOutput{
				SourceChain:       registry.ChainName(quote.SourceChainID),
				TargetChain:       registry.ChainName(quote.TargetChainID),
				SendUSDC:          units.FormatUSDC(quote.SourceAmount),
				ReceiveUSDC:       units.FormatUSDC(quote.TargetAmount),
				PlatformFeeUSD:    quote.Fees.Platform.StringFixed(2),
				GasFeeUSD:         quote.Fees.Gas.StringFixed(2),
				BridgeFeeUSD:      quote.Fees.Bridge.StringFixed(2),
				TotalFeesUSD:      quote.Fees.Total().StringFixed(2),
				EstimatedDuration: quote.EstimatedDuration.String(),
				Route:             quote.RouteReference,
				Tool:              quote.Tool,
			}, outputFormat)
		},
	}

	cmd.Flags().Int64Var(&sourceChainID, "from-chain", 0, "Chain id the USDC is sent from")
	cmd.Flags().StringVar(&amount, "amount", "", "Tip amount in USD")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	_ = cmd.MarkFlagRequired("from-chain")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func chainsCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "chains",
		Short: "List the supported chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			registry, err := chains.NewRegistry(cfg.Chains, zerolog.Nop())
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), chainOutputs(registry.All(), cfg.TargetChainID), outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func chainOutputs(all []*chains.Chain, targetChainID int64) []ChainOutput {
	out := make([]ChainOutput, 0, len(all))
	for _, c := range all {
		out = append(out, ChainOutput{
			ChainID:      c.ID,
			Name:         c.Name,
			NativeSymbol: c.NativeSymbol,
			USDC:         c.USDCAddress,
			Target:       c.ID == targetChainID,
			Testnet:      c.Testnet,
		})
	}
	return out
}

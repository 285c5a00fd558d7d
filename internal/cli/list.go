package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/listing"
	"github.com/yolodolo42/deployfi/internal/logging"
	"github.com/yolodolo42/deployfi/internal/tx"
	"github.com/yolodolo42/deployfi/internal/ui"
	"github.com/yolodolo42/deployfi/internal/wallet"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a deployed token: approve the router, then add liquidity",
	Long: `List walks a deployed token through three stages.

  select   read the token and its presale state
  approve  grant the router 40% of total supply (skipped for exempt versions)
  deploy   add liquidity through the token, falling back to the router

Presale-gated tokens can only be listed after the presale is finalized.
Use --presale-action to finalize, burn unsold tokens, or cancel.`,
	Example: `  deployfi list --token 0x... --version v3 --token-amount 400000 --native-amount 0.5
  deployfi list --token 0x... --version v3 --presale-action finalize`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("token", "", "Token address")
	listCmd.Flags().String("version", contracts.VersionV4, "Factory version the token was created with")
	listCmd.Flags().String("token-amount", "", "Tokens to add, in whole tokens")
	listCmd.Flags().String("native-amount", "", "Native currency to add")
	listCmd.Flags().Uint64("slippage-bps", listing.DefaultSlippageBps, "Router slippage tolerance in basis points")
	listCmd.Flags().String("presale-action", "", "Run a presale action instead of listing: finalize, burn_unsold, cancel_and_withdraw")
	listCmd.Flags().String("from", "", "Keystore account to sign with (default: first account)")
	listCmd.Flags().Bool("yes", false, "Sign without asking for confirmation")
	_ = listCmd.MarkFlagRequired("token")
}

func runList(cmd *cobra.Command, args []string) error {
	tokenFlag, _ := cmd.Flags().GetString("token")
	version, _ := cmd.Flags().GetString("version")
	tokenAmount, _ := cmd.Flags().GetString("token-amount")
	nativeAmount, _ := cmd.Flags().GetString("native-amount")
	slippage, _ := cmd.Flags().GetUint64("slippage-bps")
	action, _ := cmd.Flags().GetString("presale-action")
	from, _ := cmd.Flags().GetString("from")
	yes, _ := cmd.Flags().GetBool("yes")

	if !common.IsHexAddress(tokenFlag) {
		return fmt.Errorf("invalid --token address: %s", tokenFlag)
	}
	if action == "" && (tokenAmount == "" || nativeAmount == "") {
		return fmt.Errorf("--token-amount and --native-amount are required to list")
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	signer, err := loadSigner(from)
	if err != nil {
		return err
	}
	reader := e.client.Reader(e.profile.ChainID)
	exec := listing.NewExecutor(e.profile, reader, wallet.New(signer, reader, confirmPrompt(e.profile, yes)),
		logging.Named("listing"),
		tx.WithConfirmTimeout(viper.GetDuration("confirm.timeout")),
		tx.WithPollInterval(viper.GetDuration("confirm.interval")),
	)
	flow := listing.NewWorkflow(exec)

	stage := listing.StageSelect
	unsubscribe := flow.Session().OnChange(func(s listing.Status) {
		if s.Stage != stage {
			stage = s.Stage
			fmt.Println(ui.Step(s.Stage.String()))
		}
	})
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println(ui.Step(listing.StageSelect.String()))
	tok, err := flow.SelectToken(ctx, common.HexToAddress(tokenFlag), version)
	if err != nil {
		return err
	}
	printToken(e.profile, tok, flow.Session().Status(), flow.PresaleActions())

	if action != "" {
		hash, err := flow.RunPresaleAction(ctx, listing.PresaleAction(action))
		if err != nil {
			return err
		}
		fmt.Println(ui.Success("Presale %s submitted", action))
		fmt.Println(ui.Field("Explorer", ui.LinkStyle.Render(e.profile.ExplorerLink(chain.LinkTx, hash.Hex()))))
		return nil
	}

	decimals, err := contracts.ReadDecimals(ctx, reader, tok.Address)
	if err != nil {
		return fmt.Errorf("read token decimals: %w", err)
	}
	tokens, err := chain.ParseUnits(tokenAmount, decimals)
	if err != nil {
		return fmt.Errorf("invalid --token-amount: %w", err)
	}
	native, err := chain.ParseUnits(nativeAmount, chain.NativeDecimals)
	if err != nil {
		return fmt.Errorf("invalid --native-amount: %w", err)
	}

	approval, err := flow.Approve(ctx)
	if err != nil {
		return err
	}
	switch {
	case approval.Exempt:
		fmt.Println(ui.Success("No approval needed for %s tokens", tok.Version))
	case approval.Submitted:
		fmt.Println(ui.Success("Router approved"))
		fmt.Println(ui.Field("Explorer", ui.LinkStyle.Render(e.profile.ExplorerLink(chain.LinkTx, approval.TxHash.Hex()))))
	default:
		fmt.Println(ui.Success("Router already approved"))
	}

	res, err := flow.Deploy(ctx, listing.LiquidityRequest{
		TokenAmount:  tokens,
		NativeAmount: native,
		SlippageBps:  slippage,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(ui.Success("Liquidity added via %s", res.Method))
	if res.FellBack {
		fmt.Println(ui.Warning("The token method reverted; the router was used instead."))
	}
	fmt.Println(ui.Field("Transaction", res.TxHash.Hex()))
	fmt.Println(ui.Field("Explorer", ui.LinkStyle.Render(e.profile.ExplorerLink(chain.LinkTx, res.TxHash.Hex()))))
	return nil
}

func printToken(profile *chain.NetworkProfile, tok listing.Token, status listing.Status, actions []listing.PresaleAction) {
	fmt.Println(ui.Field("Token", ui.AddressStyle.Render(tok.Address.Hex())))
	fmt.Println(ui.Field("Version", tok.Version))
	fmt.Println(ui.Field("Explorer", ui.LinkStyle.Render(profile.ExplorerLink(chain.LinkToken, tok.Address.Hex()))))
	if !tok.PresaleGated || status.Presale == nil {
		return
	}

	p := status.Presale
	state := "running"
	switch {
	case p.Finalized:
		state = "finalized"
	case p.Succeeded():
		state = "soft cap reached"
	}
	fmt.Println(ui.Field("Presale", state))
	if !p.Deadline.IsZero() {
		fmt.Println(ui.Field("Deadline", p.Deadline.Local().Format("2006-01-02 15:04")))
	}
	for _, a := range actions {
		fmt.Println(ui.HelpStyle.Render(fmt.Sprintf("  %s --presale-action %s", ui.SymbolArrow, a)))
	}
}

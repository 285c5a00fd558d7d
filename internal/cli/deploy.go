package cli

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/deploy"
	"github.com/yolodolo42/deployfi/internal/failure"
	"github.com/yolodolo42/deployfi/internal/fee"
	"github.com/yolodolo42/deployfi/internal/logging"
	"github.com/yolodolo42/deployfi/internal/tx"
	"github.com/yolodolo42/deployfi/internal/ui"
	"github.com/yolodolo42/deployfi/internal/wallet"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a token or lending pool through a factory",
}

var deployTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Deploy a token",
	Example: `  deployfi deploy token --name Test --symbol TST --supply 1000000 --version v4
  deployfi --chain polygon-amoy deploy token --name Test --symbol TST --supply 1000000 --version v1`,
	RunE: runDeployToken,
}

var deployPoolCmd = &cobra.Command{
	Use:     "pool",
	Short:   "Deploy a lending pool for an asset",
	Example: `  deployfi deploy pool --asset 0x... --collateral-bps 7500 --reserve-bps 1000`,
	RunE:    runDeployPool,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.AddCommand(deployTokenCmd)
	deployCmd.AddCommand(deployPoolCmd)

	for _, c := range []*cobra.Command{deployTokenCmd, deployPoolCmd} {
		c.Flags().String("from", "", "Keystore account to sign with (default: first account)")
		c.Flags().Bool("yes", false, "Sign without asking for confirmation")
		c.Flags().Bool("open", false, "Open the result in the block explorer")
		c.Flags().Uint64("gas-limit", 0, "Gas limit (default: conservative per-operation limit)")
		c.Flags().Duration("watch", 0, "After a confirmation timeout, keep watching for the deployment this long")
	}
	deployCmd.PersistentFlags().String("fee-fallback", "", "Fee fallback policy: default or strict")
	_ = viper.BindPFlag("fee.fallback", deployCmd.PersistentFlags().Lookup("fee-fallback"))

	deployTokenCmd.Flags().String("version", contracts.VersionV4, "Factory version")
	deployTokenCmd.Flags().String("name", "", "Token name")
	deployTokenCmd.Flags().String("symbol", "", "Token symbol")
	deployTokenCmd.Flags().Uint8("decimals", 18, "Token decimals")
	deployTokenCmd.Flags().String("supply", "", "Total supply in whole tokens")
	deployTokenCmd.Flags().Bool("presale", false, "Create a presale-gated token (factories that support it)")
	deployTokenCmd.Flags().String("liquidity", "", "Native amount sent with the creation for initial liquidity")
	_ = deployTokenCmd.MarkFlagRequired("name")
	_ = deployTokenCmd.MarkFlagRequired("symbol")
	_ = deployTokenCmd.MarkFlagRequired("supply")

	deployPoolCmd.Flags().String("asset", "", "Underlying asset address")
	deployPoolCmd.Flags().Uint64("collateral-bps", 7500, "Collateral factor in basis points")
	deployPoolCmd.Flags().Uint64("reserve-bps", 1000, "Reserve factor in basis points")
	_ = deployPoolCmd.MarkFlagRequired("asset")
}

func runDeployToken(cmd *cobra.Command, args []string) error {
	version, _ := cmd.Flags().GetString("version")
	name, _ := cmd.Flags().GetString("name")
	symbol, _ := cmd.Flags().GetString("symbol")
	decimals, _ := cmd.Flags().GetUint8("decimals")
	supplyFlag, _ := cmd.Flags().GetString("supply")
	presale, _ := cmd.Flags().GetBool("presale")
	liquidity, _ := cmd.Flags().GetString("liquidity")

	supply, err := chain.ParseUnits(supplyFlag, decimals)
	if err != nil {
		return fmt.Errorf("invalid --supply: %w", err)
	}
	var extra *big.Int
	if liquidity != "" {
		if extra, err = chain.ParseUnits(liquidity, chain.NativeDecimals); err != nil {
			return fmt.Errorf("invalid --liquidity: %w", err)
		}
	}

	return runDeploy(cmd, version, map[string]any{
		"name":        name,
		"symbol":      symbol,
		"decimals":    decimals,
		"totalSupply": supply,
		"presale":     presale,
	}, extra)
}

func runDeployPool(cmd *cobra.Command, args []string) error {
	assetFlag, _ := cmd.Flags().GetString("asset")
	collateral, _ := cmd.Flags().GetUint64("collateral-bps")
	reserve, _ := cmd.Flags().GetUint64("reserve-bps")

	if !common.IsHexAddress(assetFlag) {
		return fmt.Errorf("invalid --asset address: %s", assetFlag)
	}
	return runDeploy(cmd, contracts.VersionLending, map[string]any{
		"asset":               common.HexToAddress(assetFlag),
		"collateralFactorBps": new(big.Int).SetUint64(collateral),
		"reserveFactorBps":    new(big.Int).SetUint64(reserve),
	}, nil)
}

func runDeploy(cmd *cobra.Command, version string, values map[string]any, extra *big.Int) error {
	from, _ := cmd.Flags().GetString("from")
	yes, _ := cmd.Flags().GetBool("yes")
	open, _ := cmd.Flags().GetBool("open")
	gasLimit, _ := cmd.Flags().GetUint64("gas-limit")
	watch, _ := cmd.Flags().GetDuration("watch")

	policy, err := fee.ParsePolicy(viper.GetString("fee.fallback"))
	if err != nil {
		return err
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	factory, err := contracts.Lookup(version, e.profile.ABIVariant)
	if err != nil {
		return err
	}
	createArgs, err := factory.CreateArgs(values)
	if err != nil {
		return err
	}

	signer, err := loadSigner(from)
	if err != nil {
		return err
	}
	reader := e.client.Reader(e.profile.ChainID)
	w := wallet.New(signer, reader, confirmPrompt(e.profile, yes))

	journal, err := deploy.OpenJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	deployer, err := deploy.New(deploy.Config{
		Registry: e.registry,
		Fees:     fee.NewCalculator(policy, logging.Named("fee")),
		Journal:  journal,
		SubmitterOptions: []tx.SubmitterOption{
			tx.WithConfirmTimeout(viper.GetDuration("confirm.timeout")),
			tx.WithPollInterval(viper.GetDuration("confirm.interval")),
		},
		Logger: logging.Named("deploy"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println(ui.Step(fmt.Sprintf("Deploying %s through the %s factory on %s", factoryKind(factory), version, e.profile.Name)))
	res := deployer.Deploy(ctx, deploy.Request{
		ChainID:    e.profile.ChainID,
		Version:    version,
		Args:       createArgs,
		ExtraValue: extra,
		GasLimit:   gasLimit,
	}, reader, w)

	if res.Error != nil && res.Error.Kind == failure.KindConfirmationTimeout && watch > 0 {
		res = awaitAfterTimeout(ctx, deployer, reader, e.profile, factory, res, watch)
	}

	printResult(e.profile, res)
	for _, hint := range resultHints(res, gasLimit) {
		fmt.Println(ui.HelpStyle.Render(hint))
	}
	if open && res.ExplorerURL != "" {
		if err := browser.OpenURL(res.ExplorerURL); err != nil {
			fmt.Println(ui.Warning("could not open browser: %v", err))
		}
	}
	if res.Error != nil {
		return res.Error
	}
	return nil
}

// awaitAfterTimeout watches for the creation event of a timed-out
// submission. It only reads; the transaction is never resent.
func awaitAfterTimeout(ctx context.Context, d *deploy.Deployer, reader chain.Reader, profile *chain.NetworkProfile,
	factory *contracts.Factory, res deploy.Result, watch time.Duration) deploy.Result {
	fmt.Println(ui.Warning("No receipt yet for %s, watching for %s", res.TxHash.Hex(), watch))

	watchCtx, cancel := context.WithTimeout(ctx, watch)
	defer cancel()
	addr, err := d.AwaitDeployment(watchCtx, reader, res.ChainID, res.Version, res.TxHash, res.StartBlock, 0)
	if err != nil {
		var c *failure.Error
		if errors.As(err, &c) && c.Kind == failure.KindExtractionFailed {
			res.Error = c
		}
		return res
	}

	if err := chain.NewWatcher(reader, 0, logging.Named("watch")).AwaitCode(watchCtx, addr.Value); err != nil {
		fmt.Println(ui.Warning("Creation event found but no code at %s yet", addr.Value.Hex()))
	}

	res.Success = true
	res.Error = nil
	res.Address = addr.Value
	res.Source = addr.Source
	res.Confidence = addr.Confidence
	kind := chain.LinkToken
	if factory.Pool {
		kind = chain.LinkAddress
	}
	res.ExplorerURL = profile.ExplorerLink(kind, addr.Value.Hex())
	return res
}

func factoryKind(f *contracts.Factory) string {
	if f.Pool {
		return "a lending pool"
	}
	return "a token"
}

// resultHints suggests what to do after a failed deployment.
func resultHints(res deploy.Result, gasLimit uint64) []string {
	if res.Error == nil {
		return nil
	}
	var hints []string
	switch kind := res.Error.Kind; {
	case kind.Retryable():
		hints = append(hints, "This failure is transient. Check the transaction before retrying.")
	case kind.Terminal():
		hints = append(hints, "This failure is final. Change the request before running it again.")
	case kind == failure.KindUnclassifiedRevert:
		next := tx.EscalateGas(tx.Request{Op: tx.OpDeploy, GasLimit: gasLimit})
		hints = append(hints, fmt.Sprintf(
			"The call reverted without a reason. If it ran out of gas, retry with --gas-limit %d.", next.GasLimit))
	}
	return hints
}

func printResult(profile *chain.NetworkProfile, res deploy.Result) {
	fmt.Println()
	if res.Success {
		fmt.Println(ui.Success("Deployed"))
		fmt.Println(ui.Field("Address", ui.AddressStyle.Render(res.Address.Hex())))
		fmt.Println(ui.Field("Found via", fmt.Sprintf("%s (confidence %d/6)", res.Source, res.Confidence)))
	} else {
		fmt.Println(ui.Failure("%s", res.Error.Message()))
		if res.Error.Reason != "" {
			fmt.Println(ui.Field("Reason", string(res.Error.Reason)))
		}
	}

	if res.TxHash != (common.Hash{}) {
		fmt.Println(ui.Field("Transaction", res.TxHash.Hex()))
	}
	if res.Fee.Amount != nil && res.Fee.Amount.Sign() > 0 {
		fmt.Println(ui.Field("Fee", fmt.Sprintf("%s %s (%s)",
			chain.FormatBalance(res.Fee.Amount, chain.NativeDecimals), profile.NativeCurrency, res.Fee.Source)))
	}
	if res.Fee.Source == fee.SourceFallback {
		fmt.Println(ui.Warning("The fee could not be read and a fallback value was used."))
	}
	if res.ExplorerURL != "" {
		fmt.Println(ui.Field("Explorer", ui.LinkStyle.Render(res.ExplorerURL)))
	}
}

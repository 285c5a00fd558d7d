package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/ui"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show native balances of the deploying account",
	Long: `Show the native balance used to pay deployment fees on each
configured chain. Testnets are included by default.`,
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().String("address", "", "Address to check (uses first wallet if not specified)")
	balanceCmd.Flags().StringSlice("chains", nil, "Chains to query by name or id (default: all)")
	balanceCmd.Flags().Bool("mainnets", false, "Include mainnet chains when --chains is not given")
}

func runBalance(cmd *cobra.Command, args []string) error {
	addressFlag, _ := cmd.Flags().GetString("address")
	names, _ := cmd.Flags().GetStringSlice("chains")
	mainnets, _ := cmd.Flags().GetBool("mainnets")

	var address common.Address
	if addressFlag != "" {
		if !common.IsHexAddress(addressFlag) {
			return fmt.Errorf("invalid address: %s", addressFlag)
		}
		address = common.HexToAddress(addressFlag)
	} else {
		km, err := keystore()
		if err != nil {
			return fmt.Errorf("no address specified and failed to load wallets: %w", err)
		}
		accounts := km.Accounts()
		if len(accounts) == 0 {
			return fmt.Errorf("no address specified and no wallets found. Use --address or create a wallet first")
		}
		address = accounts[0].Address
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	profiles, err := selectProfiles(e.registry, names, mainnets)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// One slot per profile keeps output in registry order.
	balances := make([]*chain.NativeBalance, len(profiles))
	errs := make([]error, len(profiles))
	var g errgroup.Group
	for i, p := range profiles {
		i, p := i, p
		g.Go(func() error {
			balances[i], errs[i] = e.client.GetNativeBalance(ctx, p.ChainID, address)
			return nil
		})
	}
	_ = g.Wait()

	fmt.Println(ui.TitleStyle.Render("Balances for " + address.Hex()))
	for i, p := range profiles {
		if errs[i] != nil {
			fmt.Println(ui.Field(p.Name, ui.ErrorStyle.Render(ui.SymbolWarn+" "+errs[i].Error())))
			continue
		}
		b := balances[i]
		fmt.Println(ui.Field(p.Name, fmt.Sprintf("%s %s", chain.FormatBalance(b.Balance, chain.NativeDecimals), b.Symbol)))
	}
	return nil
}

func selectProfiles(registry *chain.Registry, names []string, mainnets bool) ([]*chain.NetworkProfile, error) {
	if len(names) == 0 {
		return lo.Filter(registry.Profiles(), func(p *chain.NetworkProfile, _ int) bool {
			return p.IsTestnet || mainnets
		}), nil
	}
	out := make([]*chain.NetworkProfile, 0, len(names))
	for _, name := range names {
		p, err := registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return lo.UniqBy(out, func(p *chain.NetworkProfile) uint64 { return p.ChainID }), nil
}

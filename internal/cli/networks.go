package cli

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/logging"
	"github.com/yolodolo42/deployfi/internal/ui"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List configured networks and their factories",
	RunE:  runNetworks,
}

func init() {
	rootCmd.AddCommand(networksCmd)
}

func runNetworks(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	for _, p := range registry.Profiles() {
		printProfile(p)
		fmt.Println()
	}
	return nil
}

func printProfile(p *chain.NetworkProfile) {
	kind := "mainnet"
	if p.IsTestnet {
		kind = "testnet"
	}
	fmt.Println(ui.TitleStyle.Render(fmt.Sprintf("%s (%d, %s)", p.Name, p.ChainID, kind)))
	fmt.Println(ui.Field("Currency", p.NativeCurrency))
	fmt.Println(ui.Field("Tx style", string(p.TxStyle)))
	fmt.Println(ui.Field("Explorer", ui.LinkStyle.Render(p.ExplorerURL)))
	if p.NoFee {
		fmt.Println(ui.Field("Fees", "none"))
	}

	versions := p.Versions()
	if len(versions) == 0 {
		fmt.Println(ui.Field("Factories", ui.HelpStyle.Render("none configured")))
	}
	for i, v := range versions {
		addr, _ := p.Factory(v)
		branch := ui.SymbolTreeBranch
		if i == len(versions)-1 && !p.HasRouter() {
			branch = ui.SymbolTree
		}
		fmt.Printf("  %s %-8s %s\n", branch, v, ui.AddressStyle.Render(addr.Hex()))
	}
	if p.HasRouter() {
		fmt.Printf("  %s %-8s %s\n", ui.SymbolTree, "router", ui.AddressStyle.Render(p.Router.Hex()))
	}
	if len(p.RPCURLs) > 0 {
		fmt.Println(ui.HelpStyle.Render("  rpc: " + strings.Join(lo.Map(p.RPCURLs, func(u string, _ int) string { return logging.RedactURL(u) }), ", ")))
	}
}

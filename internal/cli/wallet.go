package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/tx"
	"github.com/yolodolo42/deployfi/internal/ui"
	"github.com/yolodolo42/deployfi/internal/wallet"
)

const minPasswordLength = 8

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage the accounts deployments are signed with",
	Long: `Create, import, and list keystore accounts.

Deployments sign with the account given by --from, or the first keystore
account. Setting DEPLOYFI_PRIVATE_KEY signs with a raw key instead.`,
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new keystore account",
	RunE:  runWalletCreate,
}

var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an account from a private key",
	RunE:  runWalletImport,
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keystore accounts",
	RunE:  runWalletList,
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletCreateCmd)
	walletCmd.AddCommand(walletImportCmd)
	walletCmd.AddCommand(walletListCmd)

	walletImportCmd.Flags().String("key", "", "Private key to import (hex, with or without 0x prefix)")
}

func keystore() (*wallet.Keystore, error) {
	km, err := wallet.OpenKeystore(getDataDir())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keystore: %w", err)
	}
	return km, nil
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // newline after password input
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// newPassword asks for a password twice.
func newPassword(prompt string) (string, error) {
	password, err := readPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func runWalletCreate(cmd *cobra.Command, args []string) error {
	km, err := keystore()
	if err != nil {
		return err
	}
	password, err := newPassword("Enter password for new account: ")
	if err != nil {
		return err
	}

	account, err := km.Create(password)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	fmt.Println()
	fmt.Println(ui.Success("Account created"))
	fmt.Println(ui.Field("Address", account.Address.Hex()))
	fmt.Println(ui.Field("Keystore", account.URL.Path))
	fmt.Println(ui.Warning("Back up the keystore file and remember the password."))
	return nil
}

func runWalletImport(cmd *cobra.Command, args []string) error {
	privateKey, _ := cmd.Flags().GetString("key")
	if privateKey == "" {
		fmt.Print("Enter private key (hex): ")
		var input string
		_, _ = fmt.Scanln(&input)
		privateKey = strings.TrimSpace(input)
	}
	if privateKey == "" {
		return fmt.Errorf("private key is required")
	}

	km, err := keystore()
	if err != nil {
		return err
	}
	password, err := newPassword("Enter password to encrypt account: ")
	if err != nil {
		return err
	}

	account, err := km.Import(privateKey, password)
	if err != nil {
		return fmt.Errorf("failed to import key: %w", err)
	}

	fmt.Println()
	fmt.Println(ui.Success("Account imported"))
	fmt.Println(ui.Field("Address", account.Address.Hex()))
	fmt.Println(ui.Field("Keystore", account.URL.Path))
	return nil
}

func runWalletList(cmd *cobra.Command, args []string) error {
	km, err := keystore()
	if err != nil {
		return err
	}

	accounts := km.Accounts()
	if len(accounts) == 0 {
		fmt.Println("No accounts found.")
		fmt.Println(ui.HelpStyle.Render("Use 'deployfi wallet create' to create one."))
		return nil
	}

	fmt.Println(ui.TitleStyle.Render(fmt.Sprintf("%d account(s)", len(accounts))))
	for i, acc := range accounts {
		fmt.Printf("%d. %s\n", i+1, acc.Address.Hex())
	}
	return nil
}

// loadSigner resolves the signing account: a raw key from the environment,
// the --from keystore account, or the first keystore account.
func loadSigner(from string) (wallet.Signer, error) {
	if key := viper.GetString("private_key"); key != "" {
		return wallet.NewKeySigner(key)
	}

	km, err := keystore()
	if err != nil {
		return nil, err
	}

	var address common.Address
	switch {
	case from != "":
		if !common.IsHexAddress(from) {
			return nil, fmt.Errorf("invalid --from address: %s", from)
		}
		address = common.HexToAddress(from)
		if !km.Has(address) {
			return nil, fmt.Errorf("no keystore account for %s", address.Hex())
		}
	default:
		accounts := km.Accounts()
		if len(accounts) == 0 {
			return nil, fmt.Errorf("no accounts found; run 'deployfi wallet create' or set DEPLOYFI_PRIVATE_KEY")
		}
		address = accounts[0].Address
	}

	password, err := readPassword(fmt.Sprintf("Password for %s: ", address.Hex()))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return km.Unlock(address, password)
}

// confirmPrompt shows every envelope before it is signed and asks for
// approval unless assumeYes is set.
func confirmPrompt(profile *chain.NetworkProfile, assumeYes bool) wallet.ConfirmFunc {
	reader := bufio.NewReader(os.Stdin)
	return func(env *tx.Envelope) bool {
		fmt.Println()
		fmt.Println(ui.TitleStyle.Render("Transaction"))
		fmt.Println(ui.Field("Network", fmt.Sprintf("%s (%d)", profile.Name, env.ChainID)))
		fmt.Println(ui.Field("To", env.To.Hex()))
		fmt.Println(ui.Field("Method", env.Method))
		fmt.Println(ui.Field("Value", chain.FormatBalance(env.Value, chain.NativeDecimals)+" "+profile.NativeCurrency))
		fmt.Println(ui.Field("Gas limit", fmt.Sprintf("%d", env.GasLimit)))
		if env.Style == chain.TxStyleFeeMarket {
			fmt.Println(ui.Field("Max fee", env.MaxFee.String()+" wei"))
			fmt.Println(ui.Field("Priority fee", env.MaxPriorityFee.String()+" wei"))
		} else {
			fmt.Println(ui.Field("Gas price", env.GasPrice.String()+" wei"))
		}
		if assumeYes {
			return true
		}

		fmt.Print("Sign and send? [y/N]: ")
		line, _ := reader.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

// agora-cli is a command-line client for the Agora wallet engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/agoranet-labs/agora-wallet/config"
	"github.com/agoranet-labs/agora-wallet/internal/broadcast"
	"github.com/agoranet-labs/agora-wallet/internal/engine"
	"github.com/agoranet-labs/agora-wallet/internal/indexer"
	"github.com/agoranet-labs/agora-wallet/internal/log"
	"github.com/agoranet-labs/agora-wallet/internal/wallet"
	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	endpoint := ""
	dataDir := config.DefaultDataDir()
	network := "mainnet"

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--indexer" && len(args) > 1:
			endpoint = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--indexer="):
			endpoint = args[0][len("--indexer="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	log.Init("warn", false)

	cfg := config.Default(config.NetworkType(network))
	cfg.DataDir = filepath.Join(dataDir, network)
	if endpoint != "" {
		cfg.Indexer.Endpoint = endpoint
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "create":
		cmdCreate(cfg, cmdArgs)
	case "address":
		cmdAddress(cfg, cmdArgs)
	case "new-address":
		cmdNewAddress(cfg)
	case "balance":
		cmdBalance(cfg, cmdArgs)
	case "send":
		cmdSend(cfg, cmdArgs)
	case "scan":
		cmdScan(cfg, cmdArgs)
	case "import":
		cmdImport(cfg, cmdArgs)
	case "export":
		cmdExport(cfg, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: agora-cli [global flags] <command> [flags]

Global flags:
  --indexer <url>     Indexer websocket endpoint
  --datadir <path>    Data directory (default: ~/.agora)
  --network <net>     mainnet (default) or testnet

Commands:
  create [--mnemonic "..."]       Create a wallet (new or from mnemonic)
  address                         List wallet addresses
  new-address                     Derive the next receive address
  balance [address]               Show vesting balance breakdown
  send --to <dest> --amount <amt> [--from <addr>]
                                  Send funds (dest may be a chain address)
  scan [--count <n>]              Probe derivation indices for balances
  import <file>                   Import an exported wallet file
  export [--encrypt] <file>       Export the wallet to a file
`)
}

// openSession builds a session and fails the process on error.
func openSession(cfg *config.Config) *engine.Session {
	s, err := engine.New(cfg, engine.Options{})
	if err != nil {
		fatal(err)
	}
	return s
}

// connect brings the indexer link up and waits for it, failing on the error
// state or timeout.
func connect(s *engine.Session) {
	s.Connect()
	deadline := time.Now().Add(2 * time.Minute)
	for time.Now().Before(deadline) {
		switch s.ConnState() {
		case indexer.StateConnected:
			return
		case indexer.StateError:
			fatal(fmt.Errorf("could not reach indexer"))
		}
		time.Sleep(100 * time.Millisecond)
	}
	fatal(fmt.Errorf("timed out connecting to indexer"))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func cmdCreate(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	mnemonic := fs.String("mnemonic", "", "BIP-39 mnemonic (omit to generate)")
	passphrase := fs.String("passphrase", "", "optional BIP-39 passphrase")
	fs.Parse(args)

	s := openSession(cfg)
	defer s.Close()

	if ok, err := s.HasWallet(); err != nil {
		fatal(err)
	} else if ok {
		fatal(wallet.ErrWalletExists)
	}

	m := *mnemonic
	if m == "" {
		var err error
		m, err = wallet.GenerateMnemonic()
		if err != nil {
			fatal(err)
		}
		fmt.Println("Generated mnemonic (write this down):")
		fmt.Println()
		fmt.Printf("  %s\n", m)
		fmt.Println()
	}

	w, err := s.Create(m, *passphrase)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Wallet created with %d address(es):\n", len(w.Addresses))
	for _, a := range w.Addresses {
		fmt.Printf("  %s  %s\n", a.Path, a.Address)
	}
}

func cmdAddress(cfg *config.Config, _ []string) {
	s := openSession(cfg)
	defer s.Close()

	w, err := s.Open()
	if err != nil {
		fatal(err)
	}
	for _, a := range w.Addresses {
		kind := "receive"
		if a.IsChange {
			kind = "change"
		}
		fmt.Printf("%-8s %s  %s\n", kind, a.Path, a.Address)
	}
}

func cmdNewAddress(cfg *config.Config) {
	s := openSession(cfg)
	defer s.Close()

	if _, err := s.Open(); err != nil {
		fatal(err)
	}
	a, err := s.NewAddress()
	if err != nil {
		fatal(err)
	}
	fmt.Printf("%s  %s\n", a.Path, a.Address)
}

func cmdBalance(cfg *config.Config, args []string) {
	s := openSession(cfg)
	defer s.Close()

	w, err := s.Open()
	if err != nil {
		fatal(err)
	}
	connect(s)
	ctx := context.Background()

	addrs := make([]types.Address, 0, len(w.Addresses))
	if len(args) > 0 {
		addr, err := types.ParseAddress(args[0])
		if err != nil {
			fatal(err)
		}
		addrs = append(addrs, addr)
	} else {
		for _, a := range w.Addresses {
			addrs = append(addrs, a.Address)
		}
	}

	var vested, unvested, all uint64
	for _, addr := range addrs {
		b, err := s.VestingBalances(ctx, addr, nil)
		if err != nil {
			fatal(err)
		}
		vested += b.Vested
		unvested += b.Unvested
		all += b.All
	}

	fmt.Printf("Vested:   %s AGO\n", config.FormatAmount(vested))
	fmt.Printf("Unvested: %s AGO\n", config.FormatAmount(unvested))
	fmt.Printf("Total:    %s AGO\n", config.FormatAmount(all))
}

func cmdSend(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	to := fs.String("to", "", "destination address")
	amountStr := fs.String("amount", "", "amount in AGO")
	from := fs.String("from", "", "source address (default: first receive address)")
	fs.Parse(args)

	if *to == "" || *amountStr == "" {
		fatal(fmt.Errorf("send requires --to and --amount"))
	}
	amount, err := config.ParseAmount(*amountStr)
	if err != nil {
		fatal(err)
	}

	s := openSession(cfg)
	defer s.Close()

	w, err := s.Open()
	if err != nil {
		fatal(err)
	}

	var source types.Address
	if *from != "" {
		source, err = types.ParseAddress(*from)
		if err != nil {
			fatal(err)
		}
	} else {
		if len(w.Addresses) == 0 {
			fatal(wallet.ErrNoUTXOs)
		}
		source = w.Addresses[0].Address
	}

	connect(s)

	res, err := s.Send(context.Background(), *to, amount, source)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Status: %s\n", res.Outcome.Status)
	fmt.Printf("Amount: %s AGO, fee %s AGO\n",
		config.FormatAmount(res.Amount), config.FormatAmount(res.Fee))
	for _, id := range res.Outcome.SucceededIDs {
		fmt.Printf("  tx %s\n", id)
	}
	for _, f := range res.Outcome.Failures {
		fmt.Fprintf(os.Stderr, "  failed %s: %v\n", f.TxID, f.Err)
	}
	if res.Outcome.Status != broadcast.StatusSuccess {
		os.Exit(1)
	}
}

func cmdScan(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	count := fs.Int("count", 0, "number of indices to probe per chain")
	fs.Parse(args)

	s := openSession(cfg)
	defer s.Close()

	if _, err := s.Open(); err != nil {
		fatal(err)
	}
	connect(s)

	scanned, err := s.Scan(context.Background(), *count)
	if err != nil {
		fatal(err)
	}
	for _, sa := range scanned {
		if sa.Balance == 0 {
			continue
		}
		fmt.Printf("%s  %s  %s AGO\n",
			sa.Address.Path, sa.Address.Address, config.FormatAmount(sa.Balance))
	}
}

func cmdImport(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal(fmt.Errorf("import requires a file path"))
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fatal(err)
	}

	s := openSession(cfg)
	defer s.Close()

	res, err := s.ImportWallet(data, nil)
	if errors.Is(err, wallet.ErrPasswordRequired) {
		password, perr := readPassword("Enter password: ")
		if perr != nil {
			fatal(perr)
		}
		res, err = s.ImportWallet(data, password)
	}
	if err != nil {
		fatal(err)
	}

	if !res.NeedsScan {
		fmt.Println("Wallet imported.")
		return
	}

	// Legacy import: discover funded addresses before persisting anything.
	connect(s)
	scanned, err := s.ScanWallet(context.Background(), res.Wallet, 0)
	if err != nil {
		fatal(err)
	}
	var selected []wallet.ScannedAddress
	for _, sa := range scanned {
		if sa.Balance > 0 {
			selected = append(selected, sa)
			fmt.Printf("found %s  %s AGO\n", sa.Address.Address, config.FormatAmount(sa.Balance))
		}
	}
	if err := s.AdoptScanned(res.Wallet, selected); err != nil {
		fatal(err)
	}
	fmt.Printf("Legacy wallet imported with %d funded address(es).\n", len(selected))
}

func cmdExport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	encrypt := fs.Bool("encrypt", false, "encrypt the export with a password")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		fatal(fmt.Errorf("export requires a file path"))
	}

	s := openSession(cfg)
	defer s.Close()

	if _, err := s.Open(); err != nil {
		fatal(err)
	}

	var password []byte
	if *encrypt {
		var err error
		password, err = readPassword("Enter password: ")
		if err != nil {
			fatal(err)
		}
		confirm, err := readPassword("Confirm password: ")
		if err != nil {
			fatal(err)
		}
		if string(password) != string(confirm) {
			fatal(fmt.Errorf("passwords do not match"))
		}
	}

	data, err := s.ExportWallet(password)
	if err != nil {
		fatal(err)
	}
	if err := os.WriteFile(rest[0], data, 0600); err != nil {
		fatal(err)
	}
	fmt.Printf("Wallet exported to %s\n", rest[0])
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	defaultRPC          = "http://127.0.0.1:8545"
	passphraseEnv       = "PAYLINK_KEYSTORE_PASSPHRASE"
	operatorTokenEnv    = "PAYLINK_RPC_TOKEN"
	operatorSecretEnv   = "PAYLINK_OPERATOR_SECRET"
	defaultKeystorePath = "wallet.json"
)

var (
	rpcEndpoint  = defaultRPCEndpoint()
	rpcAuthToken = os.Getenv(operatorTokenEnv)
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}

	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "commitment":
		return runCommitmentCommand(args[1:], stdout, stderr)
	case "escrow":
		return runEscrowCommand(args[1:], stdout, stderr)
	case "privacy":
		return runPrivacyCommand(args[1:], stdout, stderr)
	case "admin":
		return runAdminCommand(args[1:], stdout, stderr)
	case "query":
		return runQueryCommand(args[1:], stdout, stderr)
	case "operator":
		return runOperatorCommand(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func defaultRPCEndpoint() string {
	if value := strings.TrimSpace(os.Getenv("PAYLINK_RPC_URL")); value != "" {
		return value
	}
	return defaultRPC
}

// applyGlobalFlags consumes --rpc and --token only ahead of the command name.
// Everything from the command onwards is left for the subcommand, which may
// declare flags of the same name.
func applyGlobalFlags(args []string) ([]string, error) {
	i := 0
	for ; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc" || arg == "--token":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a value", arg)
			}
			setGlobal(arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--rpc="):
			setGlobal("--rpc", strings.TrimPrefix(arg, "--rpc="))
		case strings.HasPrefix(arg, "--token="):
			setGlobal("--token", strings.TrimPrefix(arg, "--token="))
		default:
			return args[i:], nil
		}
	}
	return nil, nil
}

func setGlobal(name, value string) {
	value = strings.TrimSpace(value)
	if name == "--rpc" {
		rpcEndpoint = value
		return
	}
	rpcAuthToken = value
}

func usage() string {
	return strings.Join([]string{
		"Usage: paylink-cli [--rpc URL] [--token JWT] <command> [args]",
		"",
		"Commands:",
		"  keygen      --out wallet.json",
		"  commitment  compute|verify",
		"  escrow      deposit|deposit-commitment|withdraw|refund|get|state|verify-proof|count",
		"  privacy     enable|set|get|status|history",
		"  admin       init|pause|unpause|set-admin|upgrade|get|paused|code",
		"  query       nonce|balance|health|events",
		"  operator    token|mint",
		"",
		"Signing commands read " + passphraseEnv + " or prompt for the keystore passphrase.",
	}, "\n")
}

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"paylinkchain/config"
	"paylinkchain/core/types"
	"paylinkchain/crypto"
	"paylinkchain/native/commitment"
)

func runEscrowCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, escrowUsage())
		return 1
	}
	switch args[0] {
	case "deposit":
		return runEscrowDeposit(args[1:], stdout, stderr)
	case "deposit-commitment":
		return runEscrowDepositCommitment(args[1:], stdout, stderr)
	case "withdraw":
		return runEscrowWithdraw(args[1:], stdout, stderr)
	case "refund":
		return runEscrowRefund(args[1:], stdout, stderr)
	case "get":
		return runEscrowGet(args[1:], stdout, stderr)
	case "state":
		return runEscrowState(args[1:], stdout, stderr)
	case "verify-proof":
		return runEscrowVerifyProof(args[1:], stdout, stderr)
	case "count":
		if len(args) > 1 {
			return printError(stderr, "count takes no arguments")
		}
		return invoke(stdout, stderr, "paylink_escrowCount", nil, false)
	default:
		fmt.Fprintf(stderr, "Unknown escrow subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, escrowUsage())
		return 1
	}
}

func runEscrowDeposit(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow deposit", stderr, escrowUsage())
	var (
		signing                    signingFlags
		owner, token, amount, salt string
		timeout                    string
	)
	signing.register(fs)
	fs.StringVar(&owner, "owner", "", "account allowed to withdraw")
	fs.StringVar(&token, "token", "", "token tag or contract address")
	fs.StringVar(&amount, "amount", "", "amount in base units (supports 100e18 shorthand)")
	fs.StringVar(&salt, "salt", "", "0x-prefixed secret salt")
	fs.StringVar(&timeout, "timeout", "", "optional expiry such as 72h or 3d")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	ownerAddr, err := parseAddressFlag("owner", owner)
	if err != nil {
		return printError(stderr, err.Error())
	}
	tokenAddr, err := parseTokenFlag(token)
	if err != nil {
		return printError(stderr, err.Error())
	}
	value, err := parseAmountFlag(amount)
	if err != nil {
		return printError(stderr, err.Error())
	}
	saltBytes, err := parseHexFlag("salt", salt)
	if err != nil {
		return printError(stderr, err.Error())
	}
	secs, err := parseTimeout(timeout)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return submit(stdout, stderr, signing, types.MethodDeposit, types.DepositArgs{
		Token:   tokenAddr,
		Amount:  value,
		Owner:   ownerAddr,
		Salt:    saltBytes,
		Timeout: secs,
	})
}

func runEscrowDepositCommitment(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow deposit-commitment", stderr, escrowUsage())
	var (
		signing                         signingFlags
		from, token, amount, commitHash string
		timeout                         string
	)
	signing.register(fs)
	fs.StringVar(&from, "from", "", "funding account (must be the signer)")
	fs.StringVar(&token, "token", "", "token tag or contract address")
	fs.StringVar(&amount, "amount", "", "amount in base units")
	fs.StringVar(&commitHash, "commitment", "", "0x-prefixed 32-byte commitment")
	fs.StringVar(&timeout, "timeout", "", "optional expiry such as 72h or 3d")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	fromAddr, err := parseAddressFlag("from", from)
	if err != nil {
		return printError(stderr, err.Error())
	}
	tokenAddr, err := parseTokenFlag(token)
	if err != nil {
		return printError(stderr, err.Error())
	}
	value, err := parseAmountFlag(amount)
	if err != nil {
		return printError(stderr, err.Error())
	}
	c, err := parseCommitmentFlag(commitHash)
	if err != nil {
		return printError(stderr, err.Error())
	}
	secs, err := parseTimeout(timeout)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return submit(stdout, stderr, signing, types.MethodDepositWithCommitment, types.DepositWithCommitmentArgs{
		From:       fromAddr,
		Token:      tokenAddr,
		Amount:     value,
		Commitment: c,
		Timeout:    secs,
	})
}

func runEscrowWithdraw(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow withdraw", stderr, escrowUsage())
	var (
		signing          signingFlags
		to, amount, salt string
	)
	signing.register(fs)
	fs.StringVar(&to, "to", "", "recipient; must be the escrow owner and signer")
	fs.StringVar(&amount, "amount", "", "escrowed amount")
	fs.StringVar(&salt, "salt", "", "0x-prefixed salt used at deposit")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	toAddr, err := parseAddressFlag("to", to)
	if err != nil {
		return printError(stderr, err.Error())
	}
	value, err := parseAmountFlag(amount)
	if err != nil {
		return printError(stderr, err.Error())
	}
	saltBytes, err := parseHexFlag("salt", salt)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return submit(stdout, stderr, signing, types.MethodWithdraw, types.WithdrawArgs{
		To:     toAddr,
		Amount: value,
		Salt:   saltBytes,
	})
}

func runEscrowRefund(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow refund", stderr, escrowUsage())
	var (
		signing            signingFlags
		caller, commitHash string
	)
	signing.register(fs)
	fs.StringVar(&caller, "caller", "", "refund recipient; must be the escrow owner and signer")
	fs.StringVar(&commitHash, "commitment", "", "0x-prefixed 32-byte commitment")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	callerAddr, err := parseAddressFlag("caller", caller)
	if err != nil {
		return printError(stderr, err.Error())
	}
	c, err := parseCommitmentFlag(commitHash)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return submit(stdout, stderr, signing, types.MethodRefund, types.RefundArgs{
		Commitment: c,
		Caller:     callerAddr,
	})
}

func runEscrowGet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow get", stderr, escrowUsage())
	var commitHash, viewer string
	fs.StringVar(&commitHash, "commitment", "", "0x-prefixed 32-byte commitment")
	fs.StringVar(&viewer, "viewer", "", "optional viewer address for private escrows")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	c, err := parseCommitmentFlag(commitHash)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := map[string]string{"commitment": "0x" + hex.EncodeToString(c[:])}
	if strings.TrimSpace(viewer) != "" {
		if _, err := parseAddressFlag("viewer", viewer); err != nil {
			return printError(stderr, err.Error())
		}
		params["viewer"] = strings.TrimSpace(viewer)
	}
	return invoke(stdout, stderr, "paylink_escrowDetails", params, false)
}

func runEscrowState(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow state", stderr, escrowUsage())
	var commitHash string
	fs.StringVar(&commitHash, "commitment", "", "0x-prefixed 32-byte commitment")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	c, err := parseCommitmentFlag(commitHash)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(stdout, stderr, "paylink_commitmentState", map[string]string{"commitment": "0x" + hex.EncodeToString(c[:])}, false)
}

func runEscrowVerifyProof(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow verify-proof", stderr, escrowUsage())
	var owner, amount, salt string
	fs.StringVar(&owner, "owner", "", "owner address")
	fs.StringVar(&amount, "amount", "", "amount in base units")
	fs.StringVar(&salt, "salt", "", "0x-prefixed salt")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	ownerAddr, value, saltBytes, err := parseProof(owner, amount, salt)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(stdout, stderr, "paylink_verifyProof", map[string]string{
		"owner":  ownerAddr.String(),
		"amount": value.String(),
		"salt":   "0x" + hex.EncodeToString(saltBytes),
	}, false)
}

func runCommitmentCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, commitmentUsage())
		return 1
	}
	switch args[0] {
	case "compute":
		fs := newFlagSet("commitment compute", stderr, commitmentUsage())
		var owner, amount, salt string
		fs.StringVar(&owner, "owner", "", "owner address")
		fs.StringVar(&amount, "amount", "", "amount in base units")
		fs.StringVar(&salt, "salt", "", "0x-prefixed salt")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		ownerAddr, value, saltBytes, err := parseProof(owner, amount, salt)
		if err != nil {
			return printError(stderr, err.Error())
		}
		c, err := commitment.Create(ownerAddr, value, saltBytes)
		if err != nil {
			return printError(stderr, err.Error())
		}
		fmt.Fprintf(stdout, "0x%s\n", hex.EncodeToString(c[:]))
		return 0
	case "verify":
		fs := newFlagSet("commitment verify", stderr, commitmentUsage())
		var commitHash, owner, amount, salt string
		fs.StringVar(&commitHash, "commitment", "", "0x-prefixed 32-byte commitment")
		fs.StringVar(&owner, "owner", "", "owner address")
		fs.StringVar(&amount, "amount", "", "amount in base units")
		fs.StringVar(&salt, "salt", "", "0x-prefixed salt")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		c, err := parseCommitmentFlag(commitHash)
		if err != nil {
			return printError(stderr, err.Error())
		}
		ownerAddr, value, saltBytes, err := parseProof(owner, amount, salt)
		if err != nil {
			return printError(stderr, err.Error())
		}
		if commitment.Verify(c, ownerAddr, value, saltBytes) {
			fmt.Fprintln(stdout, "true")
			return 0
		}
		fmt.Fprintln(stdout, "false")
		return 1
	default:
		fmt.Fprintf(stderr, "Unknown commitment subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, commitmentUsage())
		return 1
	}
}

func parseProof(owner, amount, salt string) (crypto.Address, *big.Int, []byte, error) {
	ownerAddr, err := parseAddressFlag("owner", owner)
	if err != nil {
		return crypto.Address{}, nil, nil, err
	}
	value, err := parseAmountFlag(amount)
	if err != nil {
		return crypto.Address{}, nil, nil, err
	}
	saltBytes, err := parseHexFlag("salt", salt)
	if err != nil {
		return crypto.Address{}, nil, nil, err
	}
	return ownerAddr, value, saltBytes, nil
}

func escrowUsage() string {
	return strings.TrimSpace(`Usage:
  paylink-cli escrow <command> [flags]

Commands:
  deposit             Lock funds under a commitment derived from owner, amount and salt
  deposit-commitment  Lock funds under a precomputed commitment
  withdraw            Release a pending escrow to its owner
  refund              Return an expired escrow to its owner
  get                 Show escrow details (owner and amount hidden when private)
  state               Show the escrow status
  verify-proof        Check that owner, amount and salt open a pending escrow
  count               Show the number of escrows ever created
`)
}

func commitmentUsage() string {
	return strings.TrimSpace(`Usage:
  paylink-cli commitment compute --owner ADDR --amount N --salt 0x..
  paylink-cli commitment verify --commitment 0x.. --owner ADDR --amount N --salt 0x..
`)
}

func parseAddressFlag(name, value string) (crypto.Address, error) {
	if err := required(name, value); err != nil {
		return crypto.Address{}, err
	}
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("--%s: %v", name, err)
	}
	return addr, nil
}

func parseTokenFlag(value string) (crypto.Address, error) {
	if err := required("token", value); err != nil {
		return crypto.Address{}, err
	}
	addr, err := config.ResolveToken(value)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("--token: %v", err)
	}
	return addr, nil
}

func parseHexFlag(name, value string) ([]byte, error) {
	if err := required(name, value); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return nil, fmt.Errorf("--%s must be 0x-prefixed hex", name)
	}
	decoded, err := hex.DecodeString(trimmed[2:])
	if err != nil {
		return nil, fmt.Errorf("--%s must contain only hexadecimal characters", name)
	}
	return decoded, nil
}

func parseCommitmentFlag(value string) (commitment.Hash, error) {
	var out commitment.Hash
	decoded, err := parseHexFlag("commitment", value)
	if err != nil {
		return out, err
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("--commitment must be a 0x-prefixed 32-byte hex string")
	}
	copy(out[:], decoded)
	return out, nil
}

// parseAmountFlag accepts plain integers and the 100e18 shorthand. Decimal
// fractions are accepted only when the exponent absorbs them.
func parseAmountFlag(value string) (*big.Int, error) {
	if err := required("amount", value); err != nil {
		return nil, err
	}
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if strings.HasPrefix(trimmed, "-") {
		return nil, fmt.Errorf("--amount must be positive")
	}
	trimmed = strings.TrimPrefix(trimmed, "+")
	base := trimmed
	exponent := 0
	if idx := strings.Index(trimmed, "e"); idx >= 0 {
		base = trimmed[:idx]
		exp, err := strconv.Atoi(trimmed[idx+1:])
		if err != nil || exp < 0 {
			return nil, fmt.Errorf("invalid amount exponent")
		}
		exponent = exp
	}
	parts := strings.Split(base, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount format")
	}
	digits := parts[0]
	fracLen := 0
	if len(parts) == 2 {
		frac := strings.TrimRight(parts[1], "0")
		digits += frac
		fracLen = len(frac)
	}
	if digits == "" || !isDigits(digits) {
		return nil, fmt.Errorf("invalid amount format")
	}
	if fracLen > exponent {
		return nil, fmt.Errorf("--amount must be an integer")
	}
	digits += strings.Repeat("0", exponent-fracLen)
	amount, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount format")
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("--amount must be positive")
	}
	if amount.Cmp(commitment.MaxAmount()) > 0 {
		return nil, fmt.Errorf("--amount exceeds the 128-bit range")
	}
	return amount, nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseTimeout converts 72h or 3d style durations to whole seconds. Empty
// means the escrow never expires.
func parseTimeout(value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	var dur time.Duration
	if strings.HasSuffix(trimmed, "d") || strings.HasSuffix(trimmed, "D") {
		days, err := strconv.ParseFloat(trimmed[:len(trimmed)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timeout duration")
		}
		dur = time.Duration(days * 24 * float64(time.Hour))
	} else {
		parsed, err := time.ParseDuration(trimmed)
		if err != nil {
			return 0, fmt.Errorf("invalid timeout duration")
		}
		dur = parsed
	}
	if dur < time.Second {
		return 0, fmt.Errorf("timeout must be at least one second")
	}
	return uint64(dur / time.Second), nil
}

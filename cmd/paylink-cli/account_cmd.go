package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"paylinkchain/core/types"
	"paylinkchain/rpc"
	"paylinkchain/rpc/middleware"
)

func runPrivacyCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, privacyUsage())
		return 1
	}
	switch args[0] {
	case "enable":
		fs := newFlagSet("privacy enable", stderr, privacyUsage())
		var (
			signing signingFlags
			account string
			level   uint
		)
		signing.register(fs)
		fs.StringVar(&account, "account", "", "account to configure (must be the signer)")
		fs.UintVar(&level, "level", 1, "privacy level 0-3")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		addr, err := parseAddressFlag("account", account)
		if err != nil {
			return printError(stderr, err.Error())
		}
		if level > 3 {
			return printError(stderr, "--level must be between 0 and 3")
		}
		return submit(stdout, stderr, signing, types.MethodEnablePrivacy, types.EnablePrivacyArgs{Account: addr, Level: uint32(level)})
	case "set":
		fs := newFlagSet("privacy set", stderr, privacyUsage())
		var (
			signing signingFlags
			owner   string
			enabled bool
		)
		signing.register(fs)
		fs.StringVar(&owner, "owner", "", "escrow owner (must be the signer)")
		fs.BoolVar(&enabled, "enabled", true, "hide escrow details from other viewers")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		addr, err := parseAddressFlag("owner", owner)
		if err != nil {
			return printError(stderr, err.Error())
		}
		return submit(stdout, stderr, signing, types.MethodSetPrivacy, types.SetPrivacyArgs{Owner: addr, Enabled: enabled})
	case "get", "status", "history":
		fs := newFlagSet("privacy "+args[0], stderr, privacyUsage())
		var account string
		fs.StringVar(&account, "account", "", "account address")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		addr, err := parseAddressFlag("account", account)
		if err != nil {
			return printError(stderr, err.Error())
		}
		method := map[string]string{
			"get":     "paylink_getPrivacy",
			"status":  "paylink_privacyStatus",
			"history": "paylink_privacyHistory",
		}[args[0]]
		return invoke(stdout, stderr, method, map[string]string{"account": addr.String()}, false)
	default:
		fmt.Fprintf(stderr, "Unknown privacy subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, privacyUsage())
		return 1
	}
}

func runAdminCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, adminUsage())
		return 1
	}
	switch args[0] {
	case "init":
		fs := newFlagSet("admin init", stderr, adminUsage())
		var (
			signing signingFlags
			admin   string
		)
		signing.register(fs)
		fs.StringVar(&admin, "admin", "", "administrator address")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		addr, err := parseAddressFlag("admin", admin)
		if err != nil {
			return printError(stderr, err.Error())
		}
		return submit(stdout, stderr, signing, types.MethodInitialize, types.InitializeArgs{Admin: addr})
	case "pause", "unpause":
		fs := newFlagSet("admin "+args[0], stderr, adminUsage())
		var (
			signing signingFlags
			caller  string
		)
		signing.register(fs)
		fs.StringVar(&caller, "caller", "", "administrator address (must be the signer)")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		addr, err := parseAddressFlag("caller", caller)
		if err != nil {
			return printError(stderr, err.Error())
		}
		return submit(stdout, stderr, signing, types.MethodSetPaused, types.SetPausedArgs{Caller: addr, Paused: args[0] == "pause"})
	case "set-admin":
		fs := newFlagSet("admin set-admin", stderr, adminUsage())
		var (
			signing          signingFlags
			caller, newAdmin string
		)
		signing.register(fs)
		fs.StringVar(&caller, "caller", "", "current administrator (must be the signer)")
		fs.StringVar(&newAdmin, "new-admin", "", "replacement administrator")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		callerAddr, err := parseAddressFlag("caller", caller)
		if err != nil {
			return printError(stderr, err.Error())
		}
		newAddr, err := parseAddressFlag("new-admin", newAdmin)
		if err != nil {
			return printError(stderr, err.Error())
		}
		return submit(stdout, stderr, signing, types.MethodSetAdmin, types.SetAdminArgs{Caller: callerAddr, NewAdmin: newAddr})
	case "upgrade":
		fs := newFlagSet("admin upgrade", stderr, adminUsage())
		var (
			signing        signingFlags
			caller, digest string
		)
		signing.register(fs)
		fs.StringVar(&caller, "caller", "", "administrator address (must be the signer)")
		fs.StringVar(&digest, "code-hash", "", "0x-prefixed 32-byte code hash")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		callerAddr, err := parseAddressFlag("caller", caller)
		if err != nil {
			return printError(stderr, err.Error())
		}
		decoded, err := parseHexFlag("code-hash", digest)
		if err != nil {
			return printError(stderr, err.Error())
		}
		var hash [32]byte
		if len(decoded) != len(hash) {
			return printError(stderr, "--code-hash must be a 0x-prefixed 32-byte hex string")
		}
		copy(hash[:], decoded)
		return submit(stdout, stderr, signing, types.MethodUpgrade, types.UpgradeArgs{Caller: callerAddr, CodeHash: hash})
	case "get":
		return invoke(stdout, stderr, "paylink_getAdmin", nil, false)
	case "paused":
		return invoke(stdout, stderr, "paylink_isPaused", nil, false)
	case "code":
		return invoke(stdout, stderr, "paylink_code", nil, false)
	default:
		fmt.Fprintf(stderr, "Unknown admin subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, adminUsage())
		return 1
	}
}

func runQueryCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, queryUsage())
		return 1
	}
	switch args[0] {
	case "health":
		return invoke(stdout, stderr, "health_check", nil, false)
	case "nonce", "balance":
		fs := newFlagSet("query "+args[0], stderr, queryUsage())
		var account, token string
		fs.StringVar(&account, "account", "", "account address")
		if args[0] == "balance" {
			fs.StringVar(&token, "token", "", "token tag or contract address")
		}
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		addr, err := parseAddressFlag("account", account)
		if err != nil {
			return printError(stderr, err.Error())
		}
		params := map[string]string{"account": addr.String()}
		if args[0] == "nonce" {
			return invoke(stdout, stderr, "paylink_nonce", params, false)
		}
		if err := required("token", token); err != nil {
			return printError(stderr, err.Error())
		}
		params["token"] = strings.TrimSpace(token)
		return invoke(stdout, stderr, "paylink_balance", params, false)
	case "events":
		fs := newFlagSet("query events", stderr, queryUsage())
		var (
			eventType, commitHash, account string
			after                          uint64
			limit                          int
		)
		fs.StringVar(&eventType, "type", "", "event type filter, e.g. escrow.deposited")
		fs.StringVar(&commitHash, "commitment", "", "commitment filter")
		fs.StringVar(&account, "account", "", "account filter")
		fs.Uint64Var(&after, "after", 0, "return events with a higher sequence number")
		fs.IntVar(&limit, "limit", 50, "maximum number of events")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		params := map[string]interface{}{"limit": limit}
		if eventType != "" {
			params["type"] = eventType
		}
		if commitHash != "" {
			c, err := parseCommitmentFlag(commitHash)
			if err != nil {
				return printError(stderr, err.Error())
			}
			params["commitment"] = "0x" + hex.EncodeToString(c[:])
		}
		if account != "" {
			addr, err := parseAddressFlag("account", account)
			if err != nil {
				return printError(stderr, err.Error())
			}
			params["account"] = addr.String()
		}
		if after > 0 {
			params["afterSeq"] = after
		}
		return invoke(stdout, stderr, "paylink_events", params, false)
	default:
		fmt.Fprintf(stderr, "Unknown query subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, queryUsage())
		return 1
	}
}

func runOperatorCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, operatorUsage())
		return 1
	}
	switch args[0] {
	case "token":
		fs := newFlagSet("operator token", stderr, operatorUsage())
		var (
			secretEnv, issuer, subject string
			ttl                        time.Duration
		)
		fs.StringVar(&secretEnv, "secret-env", operatorSecretEnv, "environment variable holding the HMAC secret")
		fs.StringVar(&issuer, "issuer", "paylink-ops", "token issuer; must match rpc.operator_jwt_issuer")
		fs.StringVar(&subject, "subject", "operator", "token subject")
		fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		secret := os.Getenv(secretEnv)
		if strings.TrimSpace(secret) == "" {
			return printError(stderr, secretEnv+" is not set")
		}
		token, err := middleware.IssueToken(secret, issuer, subject, []string{rpc.OperatorScope}, ttl)
		if err != nil {
			return printError(stderr, err.Error())
		}
		fmt.Fprintln(stdout, token)
		return 0
	case "mint":
		fs := newFlagSet("operator mint", stderr, operatorUsage())
		var token, to, amount string
		fs.StringVar(&token, "token", "", "token tag or contract address")
		fs.StringVar(&to, "to", "", "recipient address")
		fs.StringVar(&amount, "amount", "", "amount in base units")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		if _, err := parseTokenFlag(token); err != nil {
			return printError(stderr, err.Error())
		}
		addr, err := parseAddressFlag("to", to)
		if err != nil {
			return printError(stderr, err.Error())
		}
		value, err := parseAmountFlag(amount)
		if err != nil {
			return printError(stderr, err.Error())
		}
		return invoke(stdout, stderr, "paylink_mint", map[string]string{
			"token":  strings.TrimSpace(token),
			"to":     addr.String(),
			"amount": value.String(),
		}, true)
	default:
		fmt.Fprintf(stderr, "Unknown operator subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, operatorUsage())
		return 1
	}
}

func privacyUsage() string {
	return strings.TrimSpace(`Usage:
  paylink-cli privacy enable --account ADDR --level N
  paylink-cli privacy set --owner ADDR [--enabled=false]
  paylink-cli privacy get|status|history --account ADDR
`)
}

func adminUsage() string {
	return strings.TrimSpace(`Usage:
  paylink-cli admin init --admin ADDR
  paylink-cli admin pause|unpause --caller ADDR
  paylink-cli admin set-admin --caller ADDR --new-admin ADDR
  paylink-cli admin upgrade --caller ADDR --code-hash 0x..
  paylink-cli admin get|paused|code
`)
}

func queryUsage() string {
	return strings.TrimSpace(`Usage:
  paylink-cli query health
  paylink-cli query nonce --account ADDR
  paylink-cli query balance --account ADDR --token TAG
  paylink-cli query events [--type T] [--commitment 0x..] [--account ADDR] [--after N] [--limit N]
`)
}

func operatorUsage() string {
	return strings.TrimSpace(`Usage:
  paylink-cli operator token [--secret-env VAR] [--issuer ISS] [--ttl 1h]
  paylink-cli operator mint --token TAG --to ADDR --amount N
`)
}

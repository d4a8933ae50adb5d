package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"paylinkchain/cmd/internal/passphrase"
	"paylinkchain/core/types"
	"paylinkchain/crypto"
)

var passphraseSource = passphrase.NewSource(passphraseEnv, "wallet keystore passphrase")

// loadSigner is swapped out in tests.
var loadSigner = loadKeystoreSigner

func loadKeystoreSigner(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("--keystore is required")
	}
	pass, err := passphraseSource.Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

type signingFlags struct {
	keystore string
	chainID  uint64
	nonce    int64
}

func (s *signingFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.keystore, "keystore", defaultKeystorePath, "path to the signing keystore")
	fs.Uint64Var(&s.chainID, "chain-id", 0, "chain id; fetched from the node when zero")
	fs.Int64Var(&s.nonce, "nonce", -1, "call nonce; fetched from the node when negative")
}

// submit signs a call for method and posts it. Missing chain id and nonce are
// looked up on the node first.
func submit(stdout, stderr io.Writer, flags signingFlags, method string, args interface{}) int {
	key, err := loadSigner(flags.keystore)
	if err != nil {
		return printError(stderr, err.Error())
	}
	signer := key.PubKey().Address()

	chainID := flags.chainID
	if chainID == 0 {
		chainID, err = fetchChainID()
		if err != nil {
			return handleRPCCallError(stderr, err)
		}
	}
	var nonce uint64
	if flags.nonce >= 0 {
		nonce = uint64(flags.nonce)
	} else {
		nonce, err = fetchNonce(signer)
		if err != nil {
			return handleRPCCallError(stderr, err)
		}
	}

	call, err := types.NewCall(chainID, nonce, method, args)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := call.Sign(key); err != nil {
		return printError(stderr, fmt.Sprintf("sign call: %v", err))
	}
	return invoke(stdout, stderr, "paylink_submitCall", call, false)
}

func fetchChainID() (uint64, error) {
	result, rpcErr, err := rpcCall("health_check", nil, false)
	if err != nil {
		return 0, err
	}
	if rpcErr != nil {
		return 0, fmt.Errorf("health_check: %s", rpcErr.Message)
	}
	var health struct {
		ChainID uint64 `json:"chainId"`
	}
	if err := json.Unmarshal(result, &health); err != nil {
		return 0, fmt.Errorf("decode health: %w", err)
	}
	if health.ChainID == 0 {
		return 0, fmt.Errorf("node reported chain id 0")
	}
	return health.ChainID, nil
}

func fetchNonce(account crypto.Address) (uint64, error) {
	result, rpcErr, err := rpcCall("paylink_nonce", map[string]string{"account": account.String()}, false)
	if err != nil {
		return 0, err
	}
	if rpcErr != nil {
		return 0, fmt.Errorf("paylink_nonce: %s", rpcErr.Message)
	}
	var nonce uint64
	if err := json.Unmarshal(result, &nonce); err != nil {
		return 0, fmt.Errorf("decode nonce: %w", err)
	}
	return nonce, nil
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr, "Usage: paylink-cli keygen --out wallet.json")
	var out string
	fs.StringVar(&out, "out", defaultKeystorePath, "keystore output path")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	pass, err := passphraseSource.Get()
	if err != nil {
		return printError(stderr, err.Error())
	}
	addr, err := crypto.NewKeystoreAccount(out, pass)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintf(stdout, "Address: %s\nKeystore: %s\n", addr, out)
	return 0
}

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/autosave-fi/autosave/internal/authz"
)

// Dev helper: signs a subscription artifact with the given key and submits
// it to a locally running ledger.

var (
	ledgerURL string
	keyHex    string
	token     string
	amount    string
	interval  uint64
	chainID   uint64
)

func main() {
	flag.StringVar(&ledgerURL, "ledger", "http://localhost:8080", "ledger base URL")
	flag.StringVar(&keyHex, "key", "", "owner private key (hex)")
	flag.StringVar(&token, "token", "", "token address")
	flag.StringVar(&amount, "amount", "100000", "amount per interval")
	flag.Uint64Var(&interval, "interval", 86400, "interval in seconds")
	flag.Uint64Var(&chainID, "chain-id", 1, "signing domain chain id")
	flag.Parse()

	if keyHex == "" || token == "" {
		panic("key and token are required")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		panic(err)
	}
	owner := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())

	var nonceResp struct {
		Nonce uint64 `json:"nonce"`
	}
	resp, err := http.Get(ledgerURL + "/v1/nonces/" + owner)
	if err != nil {
		panic(err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&nonceResp); err != nil {
		panic(err)
	}
	_ = resp.Body.Close()

	sub := &authz.SubscriptionAuthorization{
		Owner:             owner,
		Token:             token,
		AmountPerInterval: amount,
		IntervalSeconds:   interval,
		Deadline:          time.Now().Add(time.Hour).Unix(),
		Nonce:             nonceResp.Nonce,
	}

	digest, err := sub.Digest(authz.Domain{Name: "autosave", ChainID: chainID})
	if err != nil {
		panic(err)
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		panic(err)
	}
	sub.Signature = hex.EncodeToString(sig)

	body, err := json.Marshal(sub)
	if err != nil {
		panic(err)
	}

	resp, err = http.Post(ledgerURL+"/v1/plans", "application/json", bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		panic(err)
	}
	fmt.Printf("status: %s\nbody: %s\n", resp.Status, out.String())
}

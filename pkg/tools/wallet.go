package tools

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/uzlow/webtools/pkg/registry"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

const walletTestMessage = "wallet signature self-test"

func walletCandidate() registry.Candidate {
	return registry.StaticCandidate{
		Name:        "wallet_generator",
		Description: "Generate a fresh Octra wallet keypair and address",
		NoArg:       generateWallet,
		Functions: map[string]registry.FunctionInfo{
			"generate_wallet": {
				Name:       "generate_wallet",
				Doc:        "Generate entropy, derive an ed25519 keypair and oct address, and self-test the signature.",
				Parameters: nil,
				Module:     "tools/wallet",
			},
		},
	}
}

// generateWallet declares no inputs; it exercises the no-arg entrypoint
// adapter.
func generateWallet(_ context.Context) (any, error) {
	entropy := make([]byte, 32)
	if _, err := rand.Read(entropy); err != nil {
		return nil, fmt.Errorf("failed to generate entropy: %w", err)
	}

	seed := sha256.Sum256(entropy)
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)

	signature := ed25519.Sign(priv, []byte(walletTestMessage))
	valid := ed25519.Verify(pub, []byte(walletTestMessage), signature)

	return map[string]any{
		"entropy_hex":     hex.EncodeToString(entropy),
		"private_key_hex": hex.EncodeToString(seed[:]),
		"public_key_hex":  hex.EncodeToString(pub),
		"private_key_b64": base64.StdEncoding.EncodeToString(seed[:]),
		"public_key_b64":  base64.StdEncoding.EncodeToString(pub),
		"address":         octAddress(pub),
		"test_message":    walletTestMessage,
		"test_signature":  base64.StdEncoding.EncodeToString(signature),
		"signature_valid": valid,
	}, nil
}

// octAddress derives the oct-prefixed base58 address from a public key.
func octAddress(pub ed25519.PublicKey) string {
	digest := sha256.Sum256(pub)
	return "oct" + base58Encode(digest[:])
}

func base58Encode(input []byte) string {
	n := new(big.Int).SetBytes(input)
	base := big.NewInt(int64(len(base58Alphabet)))
	mod := new(big.Int)

	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}
	// Leading zero bytes map to the alphabet's first symbol.
	for _, b := range input {
		if b != 0 {
			break
		}
		out = append(out, base58Alphabet[0])
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

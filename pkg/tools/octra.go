package tools

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"

	"github.com/uzlow/webtools/pkg/registry"
	"github.com/uzlow/webtools/pkg/schema"
)

var octAddressPattern = regexp.MustCompile(`^oct[1-9A-HJ-NP-Za-km-z]+$`)

func octraCandidate(cfg Config) registry.Candidate {
	return registry.StaticCandidate{
		Name:        "octra_client",
		Description: "Octra wallet client for balances, history, and pending transactions",
		Handler:     octraHandler(cfg),
		Fields: []schema.FieldDef{
			{Name: "action", Spec: schema.FieldSpec{
				Type:        schema.TypeString,
				Description: "Operation to perform",
				Enum:        []any{"status", "history", "pending", "wallet_info"},
			}},
			{Name: "wallet_path", Spec: schema.FieldSpec{
				Type:        schema.TypeString,
				Description: "Path to the wallet JSON file",
				Default:     "wallet.json",
			}},
			{Name: "limit", Spec: schema.FieldSpec{
				Type:        schema.TypeNumber,
				Description: "Maximum number of history entries",
				Default:     20,
				Minimum:     floatPtr(1),
				Maximum:     floatPtr(100),
			}},
		},
		Required: []string{"action"},
		Functions: map[string]registry.FunctionInfo{
			"process_transaction": {
				Name:       "process_transaction",
				Doc:        "Dispatch a wallet action (status, history, pending, wallet_info) against the configured RPC endpoint.",
				Parameters: []string{"params"},
				Module:     "tools/octra",
			},
		},
	}
}

// octraHandler closes over the host config so the candidate table stays
// data-only.
func octraHandler(cfg Config) registry.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		wallet, err := loadWallet(stringArg(args, "wallet_path", "wallet.json"), cfg.OctraRPCURL)
		if err != nil {
			return nil, err
		}

		client := &octraClient{
			wallet: wallet,
			http:   &http.Client{Timeout: cfg.HTTPTimeout},
		}

		action := stringArg(args, "action", "")
		switch action {
		case "status":
			return client.status(ctx)
		case "history":
			return client.history(ctx, intArg(args, "limit", 20))
		case "pending":
			return client.pending(ctx)
		case "wallet_info":
			return client.walletInfo()
		default:
			return nil, fmt.Errorf("unsupported action: %s", action)
		}
	}
}

// walletFile is the on-disk wallet format: base64 ed25519 seed, address, and
// an optional RPC override.
type walletFile struct {
	Priv string `json:"priv"`
	Addr string `json:"addr"`
	RPC  string `json:"rpc,omitempty"`
}

type wallet struct {
	priv   ed25519.PrivateKey
	pubB64 string
	addr   string
	rpcURL string
}

func loadWallet(path, defaultRPC string) (*wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet file: %w", err)
	}

	var wf walletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("invalid wallet file: %w", err)
	}
	if wf.Priv == "" || wf.Addr == "" {
		return nil, fmt.Errorf("invalid wallet data: priv and addr are required")
	}
	if !octAddressPattern.MatchString(wf.Addr) {
		return nil, fmt.Errorf("invalid wallet address: %s", wf.Addr)
	}

	seed, err := base64.StdEncoding.DecodeString(wf.Priv)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid wallet private key")
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	rpcURL := wf.RPC
	if rpcURL == "" {
		rpcURL = defaultRPC
	}

	return &wallet{
		priv:   priv,
		pubB64: base64.StdEncoding.EncodeToString(pub),
		addr:   wf.Addr,
		rpcURL: rpcURL,
	}, nil
}

type octraClient struct {
	wallet *wallet
	http   *http.Client
}

// get performs one RPC GET and decodes the JSON body when there is one.
func (c *octraClient) get(ctx context.Context, path string) (int, map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.wallet.rpcURL+path, nil)
	if err != nil {
		return 0, nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("rpc request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	var decoded map[string]any
	if len(body) > 0 {
		// Non-JSON bodies are tolerated; callers check the status code.
		_ = json.Unmarshal(body, &decoded)
	}
	return resp.StatusCode, decoded, nil
}

// status returns the wallet's nonce and balance, bumping the nonce past any
// of our own staged transactions the way the chain expects.
func (c *octraClient) status(ctx context.Context) (any, error) {
	code, data, err := c.get(ctx, "/balance/"+c.wallet.addr)
	if err != nil {
		return nil, err
	}

	switch code {
	case http.StatusOK:
	case http.StatusNotFound:
		// Unknown address: zero balance, zero nonce.
		return map[string]any{"address": c.wallet.addr, "nonce": float64(0), "balance": float64(0)}, nil
	default:
		return nil, fmt.Errorf("rpc returned status %d", code)
	}

	nonce := numField(data, "nonce")
	balance := numField(data, "balance")

	if stagingCode, staging, err := c.get(ctx, "/staging"); err == nil && stagingCode == http.StatusOK {
		for _, tx := range listField(staging, "staged_transactions") {
			entry, ok := tx.(map[string]any)
			if !ok || entry["from"] != c.wallet.addr {
				continue
			}
			if n := numField(entry, "nonce"); n > nonce {
				nonce = n
			}
		}
	}

	return map[string]any{
		"address": c.wallet.addr,
		"nonce":   nonce,
		"balance": balance,
	}, nil
}

func (c *octraClient) history(ctx context.Context, limit int) (any, error) {
	path := fmt.Sprintf("/address/%s?limit=%d", url.PathEscape(c.wallet.addr), limit)
	code, data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("rpc returned status %d", code)
	}
	return map[string]any{
		"address":      c.wallet.addr,
		"transactions": listField(data, "recent_transactions"),
	}, nil
}

func (c *octraClient) pending(ctx context.Context) (any, error) {
	code, data, err := c.get(ctx, "/staging")
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("rpc returned status %d", code)
	}

	var ours []any
	for _, tx := range listField(data, "staged_transactions") {
		if entry, ok := tx.(map[string]any); ok && entry["from"] == c.wallet.addr {
			ours = append(ours, entry)
		}
	}
	return map[string]any{
		"address": c.wallet.addr,
		"pending": ours,
	}, nil
}

func (c *octraClient) walletInfo() (any, error) {
	return map[string]any{
		"address":    c.wallet.addr,
		"public_key": c.wallet.pubB64,
		"rpc_url":    c.wallet.rpcURL,
	}, nil
}

func numField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		var n float64
		_, _ = fmt.Sscanf(v, "%g", &n)
		return n
	}
	return 0
}

func listField(m map[string]any, key string) []any {
	if v, ok := m[key].([]any); ok {
		return v
	}
	return nil
}

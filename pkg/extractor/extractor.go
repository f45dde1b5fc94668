package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	"github.com/fraud-watch/pkg/config"
)

var (
	// Address patterns
	bech32Re    = regexp.MustCompile(`^(bc1|tb1)[ac-hj-np-z02-9]{8,87}$`)
	btcLegacyRe = regexp.MustCompile(`^[13mn2][a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	evmAddrRe   = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

// ClassifyAddress infers the chain of a raw address. Best effort only: anything
// that is not recognisably Bitcoin is treated as Ethereum.
func ClassifyAddress(addr string) config.Chain {
	addr = strings.TrimSpace(addr)
	lower := strings.ToLower(addr)
	if strings.HasPrefix(lower, "bc1") || strings.HasPrefix(lower, "tb1") {
		return config.ChainBitcoin
	}
	if btcLegacyRe.MatchString(addr) {
		return config.ChainBitcoin
	}
	return config.ChainEthereum
}

// Normalize trims user input and, when an explorer link was pasted, pulls the
// address out of it.
func Normalize(input string) string {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input
	}
	if addr := extractFromLink(input); addr != "" {
		return addr
	}
	return input
}

// Validate is a strict check used for warnings. Publishing never depends on it.
func Validate(addr string, chain config.Chain) error {
	switch chain {
	case config.ChainEthereum:
		if !common.IsHexAddress(addr) || !strings.HasPrefix(addr, "0x") {
			return fmt.Errorf("%q is not a hex ethereum address", addr)
		}
		return nil
	case config.ChainBitcoin:
		if bech32Re.MatchString(strings.ToLower(addr)) {
			return nil
		}
		raw, err := base58.Decode(addr)
		if err != nil {
			return fmt.Errorf("%q is not base58: %w", addr, err)
		}
		// version byte + 20-byte hash + 4-byte checksum
		if len(raw) != 25 {
			return fmt.Errorf("%q decodes to %d bytes, want 25", addr, len(raw))
		}
		return nil
	default:
		return fmt.Errorf("unknown chain %q", chain)
	}
}

// Display renders an address for humans: EIP-55 checksum for ethereum, as-is otherwise.
func Display(addr string, chain config.Chain) string {
	if chain == config.ChainEthereum && common.IsHexAddress(addr) {
		return common.HexToAddress(addr).Hex()
	}
	return addr
}

func looksLikeAddress(s string) bool {
	return evmAddrRe.MatchString(s) || bech32Re.MatchString(strings.ToLower(s)) || btcLegacyRe.MatchString(s)
}

func extractFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	// query params first, e.g. ?a=0x...
	q := u.Query()
	for _, k := range queryKeys(q) {
		for _, v := range q[k] {
			if looksLikeAddress(v) {
				return v
			}
		}
	}

	parts := strings.Split(strings.TrimRight(u.Path, "/"), "/")
	// Walk backwards to find the first thing that looks like an address
	for i := len(parts) - 1; i >= 0; i-- {
		segment := strings.TrimSpace(parts[i])
		if segment != "" && looksLikeAddress(segment) {
			return segment
		}
	}
	return ""
}

// queryKeys lists the conventional address params first, then the rest sorted.
func queryKeys(q url.Values) []string {
	keys := make([]string, 0, len(q))
	for _, k := range []string{"a", "address"} {
		if _, ok := q[k]; ok {
			keys = append(keys, k)
		}
	}
	rest := make([]string, 0, len(q))
	for k := range q {
		if k != "a" && k != "address" {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// Abbrev shortens an address for log lines.
func Abbrev(addr string) string {
	if len(addr) > 12 {
		return addr[:6] + "..." + addr[len(addr)-4:]
	}
	return addr
}

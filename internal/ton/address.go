package ton

import (
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

// Network ids used by TON Connect.
const (
	NetworkMainnet = "-239"
	NetworkTestnet = "-3"
)

// NormalizeIdentity turns a raw ("0:<hex>") or user-friendly address into
// the raw lower-case form used as the ledger identity, so the same wallet
// compares equal however it was written.
func NormalizeIdentity(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("empty address")
	}
	var (
		a   *address.Address
		err error
	)
	if strings.Contains(addr, ":") {
		a, err = address.ParseRawAddr(addr)
	} else {
		a, err = address.ParseAddr(addr)
	}
	if err != nil {
		return "", fmt.Errorf("parse address %q: %w", addr, err)
	}
	return strings.ToLower(a.StringRaw()), nil
}

// FriendlyAddress renders a raw address in the non-bounceable user-friendly
// form wallets display.
func FriendlyAddress(raw string, network string) (string, error) {
	wc, hash, err := ParseRawAddress(raw)
	if err != nil {
		return "", err
	}
	a := address.NewAddress(0, byte(wc), hash)
	a.SetBounce(false)
	a.SetTestnetOnly(network == NetworkTestnet)
	return a.String(), nil
}

package models

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

var (
	ErrAmountOverflow  = errors.New("amount overflow")
	ErrAmountUnderflow = errors.New("amount underflow")
)

// Amount is an unsigned quantity in base units (nanoTON).
type Amount uint64

const NanoPerTON = 1_000_000_000

func (a Amount) Add(b Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrAmountOverflow, a, b)
	}
	return Amount(sum), nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	diff, borrow := bits.Sub64(uint64(a), uint64(b), 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: %d - %d", ErrAmountUnderflow, a, b)
	}
	return Amount(diff), nil
}

// Div returns a/n, or 0 when n is 0.
func (a Amount) Div(n uint64) Amount {
	if n == 0 {
		return 0
	}
	return Amount(uint64(a) / n)
}

func (a Amount) IsZero() bool { return a == 0 }

func (a Amount) String() string { return strconv.FormatUint(uint64(a), 10) }

// TON renders the amount as a decimal TON string, e.g. 1500000000 -> "1.5".
func (a Amount) TON() string {
	whole := uint64(a) / NanoPerTON
	frac := uint64(a) % NanoPerTON
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	f := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return strconv.FormatUint(whole, 10) + "." + f
}

func ParseAmount(s string) (Amount, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount(v), nil
}

// ParseTON converts a decimal TON string ("5.5") to base units.
func ParseTON(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty TON amount")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("invalid TON amount: %s", s)
	}
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if len(frac) > 9 {
		return 0, fmt.Errorf("invalid TON amount: %s has more than 9 decimals", s)
	}
	for len(frac) < 9 {
		frac += "0"
	}
	v, err := strconv.ParseUint(parts[0]+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid TON amount: %s", s)
	}
	return Amount(v), nil
}

package ton

import (
	"strconv"
	"strings"
)

// MemoPrefix starts the text comment of an on-chain donation, e.g.
// "campaign:12".
const MemoPrefix = "campaign:"

func DepositMemo(campaignID uint64) string {
	return MemoPrefix + strconv.FormatUint(campaignID, 10)
}

// ParseDepositMemo extracts the campaign id from a transfer comment.
func ParseDepositMemo(comment string) (uint64, bool) {
	comment = strings.TrimSpace(comment)
	if len(comment) <= len(MemoPrefix) || !strings.EqualFold(comment[:len(MemoPrefix)], MemoPrefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimSpace(comment[len(MemoPrefix):]), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

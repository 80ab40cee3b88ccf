package ledger

import (
	"fmt"
	"slices"

	"github.com/crowdfund/backend/internal/models"
)

// indexes are projections over the campaign arena. They are never the source
// of truth and can always be rebuilt by scanning the arena.
type indexes struct {
	byCategory map[string][]uint64
	active     []uint64 // ascending, ids are assigned in order
	byOwner    map[string][]uint64
	byDonor    map[string][]uint64
	donated    map[string]map[uint64]struct{}
}

func newIndexes() *indexes {
	return &indexes{
		byCategory: make(map[string][]uint64),
		byOwner:    make(map[string][]uint64),
		byDonor:    make(map[string][]uint64),
		donated:    make(map[string]map[uint64]struct{}),
	}
}

func buildIndexes(campaigns []*models.Campaign) *indexes {
	idx := newIndexes()
	for _, c := range campaigns {
		idx.onCreate(c)
		for _, d := range c.Donations {
			idx.onDonate(c.ID, d.Donor)
		}
	}
	return idx
}

func (x *indexes) onCreate(c *models.Campaign) {
	x.byCategory[c.Category] = append(x.byCategory[c.Category], c.ID)
	x.byOwner[c.Owner] = append(x.byOwner[c.Owner], c.ID)
	if c.IsActive() {
		x.active = append(x.active, c.ID)
	}
}

func (x *indexes) onClose(id uint64) {
	if i, ok := slices.BinarySearch(x.active, id); ok {
		x.active = slices.Delete(x.active, i, i+1)
	}
}

func (x *indexes) onDonate(id uint64, donor string) {
	seen, ok := x.donated[donor]
	if !ok {
		seen = make(map[uint64]struct{})
		x.donated[donor] = seen
	}
	if _, ok := seen[id]; ok {
		return
	}
	seen[id] = struct{}{}
	x.byDonor[donor] = append(x.byDonor[donor], id)
}

func (x *indexes) category(label string) []uint64 {
	return slices.Clone(x.byCategory[models.NormalizeCategory(label)])
}

func (x *indexes) activeIDs() []uint64 {
	return slices.Clone(x.active)
}

// diff compares two index sets and describes the first mismatch.
func (x *indexes) diff(want *indexes) error {
	if !slices.Equal(x.active, want.active) {
		return fmt.Errorf("active index %v, scan gives %v", x.active, want.active)
	}
	if err := diffMap("category", x.byCategory, want.byCategory, false); err != nil {
		return err
	}
	if err := diffMap("owner", x.byOwner, want.byOwner, false); err != nil {
		return err
	}
	// A scan visits campaigns in id order, not in first-donation order.
	return diffMap("donor", x.byDonor, want.byDonor, true)
}

func diffMap(name string, got, want map[string][]uint64, unordered bool) error {
	if len(got) != len(want) {
		return fmt.Errorf("%s index has %d keys, scan gives %d", name, len(got), len(want))
	}
	for k, ids := range want {
		have := got[k]
		if unordered {
			have, ids = slices.Sorted(slices.Values(have)), slices.Sorted(slices.Values(ids))
		}
		if !slices.Equal(have, ids) {
			return fmt.Errorf("%s index[%q] = %v, scan gives %v", name, k, have, ids)
		}
	}
	return nil
}

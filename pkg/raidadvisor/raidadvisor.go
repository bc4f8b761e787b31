// Pure capacity-imbalance heuristic over current array members. Annotates the
// UI only - has nothing to do with the precheck-derived optimization plan.
package raidadvisor

import (
	"fmt"

	"github.com/komero-io/komero/pkg/byteshuman"
	"github.com/komero-io/komero/pkg/komtypes"
	"github.com/samber/lo"
)

// a member this much larger than the smallest one means the smallest is
// holding the array's effective capacity back
const imbalanceRatio = 1.5

type Suggestion struct {
	SmallestDevice string
	SmallestSize   uint64
	LargestDevice  string
	LargestSize    uint64
	Message        string
}

// Analyze returns nil when there is nothing to suggest: fewer than two
// members, or member sizes within the imbalance threshold.
func Analyze(members []komtypes.ArrayMember) *Suggestion {
	if len(members) < 2 {
		return nil
	}

	smallest := lo.MinBy(members, func(a komtypes.ArrayMember, b komtypes.ArrayMember) bool {
		return a.SizeBytes < b.SizeBytes
	})
	largest := lo.MaxBy(members, func(a komtypes.ArrayMember, b komtypes.ArrayMember) bool {
		return a.SizeBytes > b.SizeBytes
	})

	if float64(largest.SizeBytes) <= imbalanceRatio*float64(smallest.SizeBytes) {
		return nil
	}

	return &Suggestion{
		SmallestDevice: smallest.Device,
		SmallestSize:   smallest.SizeBytes,
		LargestDevice:  largest.Device,
		LargestSize:    largest.SizeBytes,
		Message: fmt.Sprintf(
			"array member %s (%s) is much smaller than %s (%s) - replacing it with a larger disk would raise the array's effective capacity",
			smallest.Device,
			byteshuman.Humanize(smallest.SizeBytes),
			largest.Device,
			byteshuman.Humanize(largest.SizeBytes)),
	}
}

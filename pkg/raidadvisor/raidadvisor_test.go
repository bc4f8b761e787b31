package raidadvisor

import (
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/komero-io/komero/pkg/komtypes"
)

const (
	gigabyte = 1000 * 1000 * 1000
	terabyte = 1000 * gigabyte
)

func TestImbalancedArray(t *testing.T) {
	// 4x size ratio => smallest member is holding the array back
	suggestion := Analyze([]komtypes.ArrayMember{
		{Device: "/dev/sda6", SizeBytes: 500 * gigabyte},
		{Device: "/dev/sdb1", SizeBytes: 2 * terabyte},
	})

	assert.Assert(t, suggestion != nil)
	assert.EqualString(t, suggestion.SmallestDevice, "/dev/sda6")
	assert.EqualString(t, suggestion.LargestDevice, "/dev/sdb1")
	assert.Assert(t, suggestion.Message != "")
}

func TestBalancedArray(t *testing.T) {
	// within the 1.5x threshold => nothing to suggest
	assert.Assert(t, Analyze([]komtypes.ArrayMember{
		{Device: "/dev/sda1", SizeBytes: 2 * terabyte},
		{Device: "/dev/sdb1", SizeBytes: 3 * terabyte},
	}) == nil)
}

func TestExactlyAtThreshold(t *testing.T) {
	// exactly 1.5x is still considered balanced
	assert.Assert(t, Analyze([]komtypes.ArrayMember{
		{Device: "/dev/sda1", SizeBytes: 2 * terabyte},
		{Device: "/dev/sdb1", SizeBytes: 3 * terabyte},
	}) == nil)

	// a hair over trips it
	assert.Assert(t, Analyze([]komtypes.ArrayMember{
		{Device: "/dev/sda1", SizeBytes: 2 * terabyte},
		{Device: "/dev/sdb1", SizeBytes: 3*terabyte + 1},
	}) != nil)
}

func TestTooFewMembers(t *testing.T) {
	assert.Assert(t, Analyze(nil) == nil)
	assert.Assert(t, Analyze([]komtypes.ArrayMember{
		{Device: "/dev/sda1", SizeBytes: 2 * terabyte},
	}) == nil)
}

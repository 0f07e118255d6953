package zookeeper

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeqOrdersProtectedNodes(t *testing.T) {
	children := []string{
		"_c_ffff-lock-0000000012",
		"_c_0000-lock-0000000010",
		"_c_aaaa-lock-0000000011",
	}
	sort.Slice(children, func(i, j int) bool { return seq(children[i]) < seq(children[j]) })
	assert.Equal(t, "_c_0000-lock-0000000010", children[0])
	assert.Equal(t, "_c_ffff-lock-0000000012", children[2])
	assert.Equal(t, "x", seq("x"))
}

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilitiesFromCSV(t *testing.T) {
	cases := map[string][]string{
		"":                         {},
		"a":                        {"a"},
		"a,b":                      {"a", "b"},
		" a , b ,":                 {"a", "b"},
		",,staking,,  ,iterator,":  {"iterator", "staking"},
		"staking,staking,iterator": {"iterator", "staking"},
	}
	for input, expected := range cases {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, expected, CapabilitiesFromCSV(input).Sorted())
		})
	}
}

func TestCapabilitiesDifference(t *testing.T) {
	required := NewCapabilities("water", "nutrients", "sun", "freedom")
	available := NewCapabilities("sun", "water")
	assert.Equal(t, []string{"freedom", "nutrients"}, required.Difference(available))
	assert.Empty(t, available.Difference(required))
	assert.Empty(t, NewCapabilities().Difference(available))
}

func TestCapabilitiesSerialize(t *testing.T) {
	assert.Equal(t, "a,b,c", NewCapabilities("c", "a", "b").Serialize())
	assert.Equal(t, "", NewCapabilities().Serialize())
}

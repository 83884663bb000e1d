package php

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lit(s string) *Param { return &Param{Text: s} }

func opt(children ...*Param) *Param { return &Param{Optional: true, Children: children} }

func TestSplitArgs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want []*Param
	}{
		{"plain", "$a, $b", []*Param{lit("$a"), lit("$b")}},
		{"nested optional", "$a, [$b, [$c]]", []*Param{lit("$a"), opt(lit("$b"), opt(lit("$c")))}},
		{"trailing open", "$a[, $b]", []*Param{lit("$a"), opt(lit("$b"))}},
		{"array default", "array $x = []", []*Param{lit("array $x = []")}},
		{"typed", "int $count, ?string $label = null", []*Param{lit("int $count"), lit("?string $label = null")}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitArgs(tt.raw)
			assert.Equal(t, OK, got.Outcome)
			assert.Equal(t, tt.want, got.Params)
		})
	}
}

func TestSplitArgs_UnbalancedFallsBack(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"[[[$a, $b], $c",
		"$a], $b",
		"]$a",
		"$a, [$b",
	} {
		t.Run(raw, func(t *testing.T) {
			t.Parallel()
			got := SplitArgs(raw)
			require.Equal(t, FallbackApplied, got.Outcome)
			require.Len(t, got.Params, 1)
			assert.Equal(t, raw, got.Params[0].Text)
			assert.False(t, got.Params[0].Optional)
		})
	}
}

func TestArgList_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "$a[, $b[, $c]]", SplitArgs("$a, [$b, [$c]]").String())
	assert.Equal(t, "$a, $b", SplitArgs("$a,$b").String())
	assert.Equal(t, "[$a]", SplitArgs("[$a]").String())
}

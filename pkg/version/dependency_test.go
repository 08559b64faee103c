package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/waypack/waypack/pkg/version"
)

func TestParseSpecCaretRange(t *testing.T) {
	d, err := version.ParseSpec("^1.2.3")
	assert.NoError(t, err)
	assert.True(t, d.Matches(mustParse(t, "1.9.9")))
	assert.False(t, d.Matches(mustParse(t, "2.0.0")))
	assert.False(t, d.Matches(mustParse(t, "1.2.2")))
}

func TestParseSpecExactVersion(t *testing.T) {
	d, err := version.ParseSpec("1.0.0")
	assert.NoError(t, err)
	assert.True(t, d.Matches(mustParse(t, "1.0.0")))
	assert.False(t, d.Matches(mustParse(t, "1.0.1")))
}

func TestParseSpecBranch(t *testing.T) {
	d, err := version.ParseSpec("~mybranch")
	assert.NoError(t, err)
	assert.Equal(t, version.VariantBranch, d.Variant)
	assert.True(t, d.Matches(version.Branch("mybranch")))
	assert.False(t, d.Matches(mustParse(t, "1.0.0")))
}

func TestParseSpecExplicitRange(t *testing.T) {
	d, err := version.ParseSpec(">=1.0.0 <2.0.0")
	assert.NoError(t, err)
	assert.True(t, d.Matches(mustParse(t, "1.0.0")))
	assert.True(t, d.Matches(mustParse(t, "1.9.9")))
	assert.False(t, d.Matches(mustParse(t, "2.0.0")))
}

func TestMergeIntersectsRanges(t *testing.T) {
	a, _ := version.ParseSpec(">=1.0.0 <3.0.0")
	b, _ := version.ParseSpec(">=2.0.0 <4.0.0")
	merged, ok := version.Merge(a, b)
	assert.True(t, ok)
	assert.True(t, merged.Matches(mustParse(t, "2.5.0")))
	assert.False(t, merged.Matches(mustParse(t, "1.5.0")))
	assert.False(t, merged.Matches(mustParse(t, "3.5.0")))
}

func TestMergeDisjointRangesIsInvalid(t *testing.T) {
	a, _ := version.ParseSpec(">=1.0.0 <2.0.0")
	b, _ := version.ParseSpec(">=2.0.0 <3.0.0")
	_, ok := version.Merge(a, b)
	assert.False(t, ok)
}

func TestMergeDifferentVariantsIsInvalid(t *testing.T) {
	a, _ := version.ParseSpec("^1.0.0")
	b := version.FromBranch("main")
	_, ok := version.Merge(a, b)
	assert.False(t, ok)
}

func TestMergeExactAgainstRange(t *testing.T) {
	exact := version.FromVersion(mustParse(t, "1.5.0"))
	rng, _ := version.ParseSpec(">=1.0.0 <2.0.0")
	merged, ok := version.Merge(exact, rng)
	assert.True(t, ok)
	assert.True(t, merged.Matches(mustParse(t, "1.5.0")))
	assert.False(t, merged.Matches(mustParse(t, "1.6.0")))
}

func TestMergeExactOutsideRangeIsInvalid(t *testing.T) {
	exact := version.FromVersion(mustParse(t, "5.0.0"))
	rng, _ := version.ParseSpec(">=1.0.0 <2.0.0")
	_, ok := version.Merge(exact, rng)
	assert.False(t, ok)
}

func TestPathDependencyNeverMatchesAVersion(t *testing.T) {
	d := version.FromPath("../sibling")
	assert.False(t, d.Matches(mustParse(t, "1.0.0")))
}

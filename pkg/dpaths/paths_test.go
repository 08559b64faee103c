package dpaths_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/waypack/waypack/pkg/dpaths"
)

func TestSearchPathEntriesSplitsAndDropsEmpty(t *testing.T) {
	assert.Equal(t, []string{"/a/b", "/c/d"}, dpaths.SearchPathEntries("/a/b::/c/d"))
	assert.Nil(t, dpaths.SearchPathEntries(""))
}

func TestLocationsAllSkipsEmptyAndAppendsExtra(t *testing.T) {
	l := dpaths.Locations{Project: "/p", User: "", System: "/s", Extra: []string{"/e1"}}
	assert.Equal(t, []string{"/p", "/s", "/e1"}, l.All())
}

func TestExtendRecursionGuardIsIdempotent(t *testing.T) {
	t.Setenv(dpaths.EnvRecursionGuard, "foo")
	assert.Equal(t, "foo,bar", dpaths.ExtendRecursionGuard("bar"))
	assert.Equal(t, "foo", dpaths.ExtendRecursionGuard("foo"))
}

func TestRecursionGuardEntriesParsesCSV(t *testing.T) {
	t.Setenv(dpaths.EnvRecursionGuard, "a,b,c")
	entries := dpaths.RecursionGuardEntries()
	assert.True(t, entries["a"])
	assert.True(t, entries["b"])
	assert.True(t, entries["c"])
	assert.False(t, entries["d"])
}

package dataset

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strataFixture() []string {
	var strata []string
	for i := 0; i < 100; i++ {
		month := []string{"Feb", "Mar", "May", "Nov"}[i%4]
		revenue := "False"
		if i%5 == 0 {
			revenue = "True"
		}
		strata = append(strata, month+"_"+revenue)
	}
	return strata
}

func TestStratifiedSplitSizes(t *testing.T) {
	train, test, err := StratifiedSplit(strataFixture(), 0.3, 42)
	require.NoError(t, err)
	assert.Len(t, train, 70)
	assert.Len(t, test, 30)

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v, "every row must appear exactly once")
	}
}

func TestStratifiedSplitCeilsTestSize(t *testing.T) {
	strata := strataFixture()[:70]
	train, test, err := StratifiedSplit(strata, 0.3, 42)
	require.NoError(t, err)
	assert.Len(t, test, 21)
	assert.Len(t, train, 49)
}

func TestStratifiedSplitPreservesProportions(t *testing.T) {
	strata := strataFixture()
	train, test, err := StratifiedSplit(strata, 0.3, 42)
	require.NoError(t, err)

	count := func(idx []int) map[string]int {
		out := map[string]int{}
		for _, i := range idx {
			out[strata[i]]++
		}
		return out
	}
	full := count(append(append([]int(nil), train...), test...))
	inTest := count(test)
	for k, total := range full {
		expected := float64(total) * 0.3
		assert.InDelta(t, expected, float64(inTest[k]), 1.0, "stratum %s", k)
	}
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	strata := strataFixture()
	train1, test1, err := StratifiedSplit(strata, 0.3, 42)
	require.NoError(t, err)
	train2, test2, err := StratifiedSplit(strata, 0.3, 42)
	require.NoError(t, err)
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)

	train3, _, err := StratifiedSplit(strata, 0.3, 7)
	require.NoError(t, err)
	assert.NotEqual(t, train1, train3)
}

func TestStratifiedSplitSingletonGoesToTrain(t *testing.T) {
	strata := strataFixture()
	strata = append(strata, "Jul_True")
	train, _, err := StratifiedSplit(strata, 0.3, 42)
	require.NoError(t, err)
	assert.Contains(t, train, len(strata)-1)
}

func TestStratifiedSplitRejectsBadInput(t *testing.T) {
	_, _, err := StratifiedSplit([]string{"a"}, 0.3, 42)
	assert.Error(t, err)

	_, _, err = StratifiedSplit(strataFixture(), 1.2, 42)
	assert.Error(t, err)

	var singletons []string
	for i := 0; i < 10; i++ {
		singletons = append(singletons, fmt.Sprint(i))
	}
	_, _, err = StratifiedSplit(singletons, 0.3, 42)
	assert.Error(t, err)
}

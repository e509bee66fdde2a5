package dataset

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// StratifiedSplit partitions row indices into train and test so every stratum
// keeps roughly the same proportion in both. The test set holds
// ceil(testSize*n) rows; per-stratum test counts are allocated by largest
// remainder. A stratum with a single row always lands in train. The result
// depends only on the strata and the seed.
func StratifiedSplit(strata []string, testSize float64, seed int64) (train, test []int, err error) {
	n := len(strata)
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.Errorf("test size must be in (0, 1), got %g", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if n < 2 || nTest < 1 || nTest >= n {
		return nil, nil, errors.Errorf("cannot split %d rows with test size %g", n, testSize)
	}

	groups := make(map[string][]int)
	for i, s := range strata {
		groups[s] = append(groups[s], i)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	alloc := allocate(keys, groups, nTest, n)
	total := 0
	for _, c := range alloc {
		total += c
	}
	if total == 0 {
		return nil, nil, errors.New("every stratum has a single row, nothing can go to test")
	}

	rng := rand.New(rand.NewSource(seed))
	for _, k := range keys {
		idx := append([]int(nil), groups[k]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		test = append(test, idx[:alloc[k]]...)
		train = append(train, idx[alloc[k]:]...)
	}

	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// allocate distributes nTest test rows across strata proportionally.
func allocate(keys []string, groups map[string][]int, nTest, n int) map[string]int {
	type share struct {
		key       string
		remainder float64
	}

	alloc := make(map[string]int, len(keys))
	capacity := func(k string) int {
		if c := len(groups[k]); c > 1 {
			return c - 1
		}
		return 0
	}

	assigned := 0
	shares := make([]share, 0, len(keys))
	for _, k := range keys {
		exact := float64(len(groups[k])) * float64(nTest) / float64(n)
		whole := int(math.Floor(exact))
		if whole > capacity(k) {
			whole = capacity(k)
		}
		alloc[k] = whole
		assigned += whole
		shares = append(shares, share{key: k, remainder: exact - float64(whole)})
	}

	sort.SliceStable(shares, func(i, j int) bool { return shares[i].remainder > shares[j].remainder })
	for assigned < nTest {
		progressed := false
		for _, s := range shares {
			if assigned == nTest {
				break
			}
			if alloc[s.key] < capacity(s.key) {
				alloc[s.key]++
				assigned++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return alloc
}

package preprocess

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset"
)

func repeat(value string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestRareLabelEncoderGroupsInfrequent(t *testing.T) {
	// 100 rows, six categories; "6" and "7" are under 5%
	values := concat(repeat("1", 40), repeat("2", 30), repeat("3", 10), repeat("4", 8), repeat("5", 8), repeat("6", 3), repeat("7", 1))
	X := dataset.NewFrame()
	require.NoError(t, X.AddCategorical("Browser", values))

	enc := &RareLabelEncoder{Variables: []string{"Browser"}, Tol: 0.05, NCategories: 5}
	require.NoError(t, enc.Fit(X))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, enc.Frequent["Browser"])

	out, err := enc.Transform(X)
	require.NoError(t, err)
	col, _ := out.Column("Browser")
	assert.Equal(t, RareLabel, col.Cat[99])
	assert.Equal(t, RareLabel, col.Cat[97])
	assert.Equal(t, "5", col.Cat[95])

	orig, _ := X.Column("Browser")
	assert.Equal(t, "7", orig.Cat[99], "transform must not modify its input")
}

func TestRareLabelEncoderKeepsFewCategories(t *testing.T) {
	values := concat(repeat("a", 97), repeat("b", 3))
	X := dataset.NewFrame()
	require.NoError(t, X.AddCategorical("Region", values))

	enc := &RareLabelEncoder{Variables: []string{"Region"}, Tol: 0.05, NCategories: 5}
	require.NoError(t, enc.Fit(X))

	out, err := enc.Transform(X)
	require.NoError(t, err)
	col, _ := out.Column("Region")
	assert.Equal(t, "b", col.Cat[99])

	unseen := dataset.NewFrame()
	require.NoError(t, unseen.AddCategorical("Region", []string{"z"}))
	out, err = enc.Transform(unseen)
	require.NoError(t, err)
	col, _ = out.Column("Region")
	assert.Equal(t, RareLabel, col.Cat[0])
}

func TestRareLabelEncoderRejectsNumeric(t *testing.T) {
	X := dataset.NewFrame()
	require.NoError(t, X.AddNumeric("Browser", []float64{1, 2}))
	enc := &RareLabelEncoder{Variables: []string{"Browser"}, Tol: 0.05, NCategories: 5}
	assert.Error(t, enc.Fit(X))
}

func TestOneHotEncoder(t *testing.T) {
	X := dataset.NewFrame()
	require.NoError(t, X.AddCategorical("Month", []string{"Mar", "Feb", "Mar"}))
	require.NoError(t, X.AddNumeric("PageValues", []float64{1, 2, 3}))

	enc := &OneHotEncoder{Variables: []string{"Month"}}
	require.NoError(t, enc.Fit(X))

	out, err := enc.Transform(X)
	require.NoError(t, err)
	assert.Equal(t, []string{"PageValues", "Month_Mar", "Month_Feb"}, out.Columns())

	mar, _ := out.Column("Month_Mar")
	feb, _ := out.Column("Month_Feb")
	assert.Equal(t, []float64{1, 0, 1}, mar.Num)
	assert.Equal(t, []float64{0, 1, 0}, feb.Num)
}

func TestOneHotEncoderUnseenCategory(t *testing.T) {
	train := dataset.NewFrame()
	require.NoError(t, train.AddCategorical("Month", []string{"Mar", "Feb"}))
	enc := &OneHotEncoder{Variables: []string{"Month"}}
	require.NoError(t, enc.Fit(train))

	test := dataset.NewFrame()
	require.NoError(t, test.AddCategorical("Month", []string{"Dec"}))
	_, err := enc.Transform(test)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnseenCategory))

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "Month", stageErr.Variable)
}

func TestMinMaxScaler(t *testing.T) {
	X := dataset.NewFrame()
	require.NoError(t, X.AddNumeric("ExitRates", []float64{2, 4, 6}))
	require.NoError(t, X.AddNumeric("SpecialDay", []float64{0.4, 0.4, 0.4}))

	s := &MinMaxScaler{Variables: []string{"ExitRates", "SpecialDay"}}
	require.NoError(t, s.Fit(X))

	out, err := s.Transform(X)
	require.NoError(t, err)
	exit, _ := out.Column("ExitRates")
	special, _ := out.Column("SpecialDay")
	assert.InDeltaSlice(t, []float64{0, 0.5, 1}, exit.Num, 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, special.Num, 1e-12)

	orig, _ := X.Column("ExitRates")
	assert.Equal(t, []float64{2, 4, 6}, orig.Num)
}

func TestMinMaxScalerRejectsCategorical(t *testing.T) {
	X := dataset.NewFrame()
	require.NoError(t, X.AddCategorical("Month", []string{"Feb"}))
	s := &MinMaxScaler{Variables: []string{"Month"}}
	assert.Error(t, s.Fit(X))
}

func TestTransformBeforeFit(t *testing.T) {
	X := dataset.NewFrame()
	require.NoError(t, X.AddCategorical("Month", []string{"Feb"}))

	_, err := (&OneHotEncoder{Variables: []string{"Month"}}).Transform(X)
	assert.True(t, errors.Is(err, ErrNotFitted))
	_, err = (&RareLabelEncoder{Variables: []string{"Month"}}).Transform(X)
	assert.True(t, errors.Is(err, ErrNotFitted))
	_, err = (&MinMaxScaler{}).Transform(X)
	assert.True(t, errors.Is(err, ErrNotFitted))
}

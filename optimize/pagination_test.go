package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestValidatePaginationArgsRejectsNonPositiveFirst(t *testing.T) {
	_, err := ValidatePaginationArgs(PaginationArgs{First: intp(0)})
	require.Error(t, err)
	assert.Equal(t, KindInvalidPagination, Kind(err))
}

func TestValidatePaginationArgsRejectsAfterGreaterThanBefore(t *testing.T) {
	_, err := ValidatePaginationArgs(PaginationArgs{After: intp(10), Before: intp(5)})
	require.Error(t, err)
}

func TestValidatePaginationArgsCapsToMaxLimit(t *testing.T) {
	args, err := ValidatePaginationArgs(PaginationArgs{First: intp(50), MaxLimit: intp(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, *args.First)
}

func TestCalculateSliceFirst(t *testing.T) {
	slice := CalculateSlice(PaginationArgs{First: intp(3)}, 10)
	assert.Equal(t, Slice{Start: 0, Stop: 3}, slice)
}

func TestCalculateSliceLast(t *testing.T) {
	slice := CalculateSlice(PaginationArgs{Last: intp(3)}, 10)
	assert.Equal(t, Slice{Start: 7, Stop: 10}, slice)
}

func TestCalculateSliceAfterAndFirst(t *testing.T) {
	slice := CalculateSlice(PaginationArgs{After: intp(2), First: intp(3)}, 10)
	assert.Equal(t, Slice{Start: 2, Stop: 5}, slice)
}

func TestCalculateSliceBeforeAndLast(t *testing.T) {
	slice := CalculateSlice(PaginationArgs{Before: intp(8), Last: intp(3)}, 10)
	assert.Equal(t, Slice{Start: 5, Stop: 8}, slice)
}

func TestCalculateSliceClampsOutOfRangeAfter(t *testing.T) {
	slice := CalculateSlice(PaginationArgs{After: intp(100)}, 10)
	assert.Equal(t, Slice{Start: 10, Stop: 10}, slice)
}

func TestPaginationArgsIsUnbounded(t *testing.T) {
	assert.True(t, PaginationArgs{}.IsUnbounded())
	assert.False(t, PaginationArgs{First: intp(1)}.IsUnbounded())
}

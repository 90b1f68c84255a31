package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination_ClampsInvalidInput(t *testing.T) {
	p := NewPagination(0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)

	p = NewPagination(-5, 1000)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 100, p.PageSize)
}

func TestPagination_Offset(t *testing.T) {
	p := NewPagination(3, 10)
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 10, p.Limit())
}

func TestNewPagedResult_TotalPages(t *testing.T) {
	p := NewPagination(1, 10)

	result := NewPagedResult([]string{"a"}, 25, p)
	assert.Equal(t, 3, result.TotalPages)
	assert.Equal(t, int64(25), result.Total)

	result = NewPagedResult([]string{"a"}, 30, p)
	assert.Equal(t, 3, result.TotalPages)

	result = NewPagedResult([]string{}, 0, p)
	assert.Equal(t, 0, result.TotalPages)
}

package shared

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 45)
	require.Equal(t, 2, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 45, p.Total)
	require.Equal(t, 3, p.TotalPages)

	p = NewPagination(0, 0, 0)
	require.Equal(t, 1, p.Page)
	require.Equal(t, DefaultPerPage, p.PerPage)
	require.Equal(t, 0, p.TotalPages)
}

func TestPageQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/?page=3&limit=50", nil)
	page, perPage := PageQuery(r)
	require.Equal(t, 3, page)
	require.Equal(t, 50, perPage)

	r = httptest.NewRequest("GET", "/?page=-1&limit=9999", nil)
	page, perPage = PageQuery(r)
	require.Equal(t, 1, page)
	require.Equal(t, MaxPerPage, perPage)

	r = httptest.NewRequest("GET", "/", nil)
	page, perPage = PageQuery(r)
	require.Equal(t, 1, page)
	require.Equal(t, DefaultPerPage, perPage)
}

func TestOffset(t *testing.T) {
	require.Equal(t, 0, Offset(1, 20))
	require.Equal(t, 40, Offset(3, 20))
	require.Equal(t, 0, Offset(0, 20))
}

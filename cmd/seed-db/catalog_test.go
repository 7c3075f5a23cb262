package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `{
	"brands": [{"id": "brand-1", "name": "Lumen", "slug": "lumen"}],
	"products": [
		{"id": "prod-001", "name": "Velvet Matte Lipstick", "slug": "velvet", "brand_id": "brand-1", "price": "12.50", "sale_price": 9.99},
		{"id": "prod-002", "name": "Kajal Pencil", "slug": "kajal", "brand_id": "brand-1", "price": 4, "sale_price": null}
	]
}`

func TestDecodeCatalog(t *testing.T) {
	c, err := decodeCatalog(strings.NewReader(testCatalog))
	require.NoError(t, err)
	require.Len(t, c.Brands, 1)
	require.Len(t, c.Products, 2)

	assert.True(t, decimal.RequireFromString("12.50").Equal(c.Products[0].Price))
	assert.True(t, c.Products[0].SalePrice.Valid)
	assert.True(t, decimal.RequireFromString("9.99").Equal(c.Products[0].SalePrice.Decimal))
	assert.False(t, c.Products[1].SalePrice.Valid)
}

func TestDecodeCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"malformed", `{"brands":`, "parse catalog JSON"},
		{"unknown brand", `{"products":[{"id":"p","slug":"p","brand_id":"nope","price":1}]}`, "unknown brand"},
		{"negative price", `{"brands":[{"id":"b","slug":"b"}],"products":[{"id":"p","slug":"p","brand_id":"b","price":-1}]}`, "negative price"},
		{"missing slug", `{"brands":[{"id":"b"}]}`, "id and slug are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeCatalog(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadCatalogFile_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := pgzip.NewWriter(f)
	_, err = zw.Write([]byte(testCatalog))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	c, err := readCatalogFile(path)
	require.NoError(t, err)
	assert.Len(t, c.Products, 2)
}

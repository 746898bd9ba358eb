package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceBySchema(t *testing.T) {
	ctx := context.Background()

	src, err := NewSource(ctx, "data/retail_sales.csv", S3Options{})
	require.NoError(t, err)
	assert.Equal(t, FileSource{Path: "data/retail_sales.csv"}, src)

	src, err = NewSource(ctx, "file:///srv/retail_sales.csv", S3Options{})
	require.NoError(t, err)
	assert.Equal(t, FileSource{Path: "/srv/retail_sales.csv"}, src)

	src, err = NewSource(ctx, "https://example.com/retail_sales.csv", S3Options{})
	require.NoError(t, err)
	assert.IsType(t, HTTPSource{}, src)

	src, err = NewSource(ctx, "s3://sales-bucket/exports/retail_sales.csv", S3Options{
		Region:          "eu-west-1",
		Endpoint:        "http://127.0.0.1:9000",
		PathStyle:       true,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://sales-bucket/exports/retail_sales.csv", src.String())

	_, err = NewSource(ctx, "s3://sales-bucket", S3Options{})
	require.Error(t, err)

	_, err = NewSource(ctx, "ftp://example.com/x.csv", S3Options{})
	require.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/retail_sales.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, sampleCSV)
	}))
	defer srv.Close()

	store, err := LoadColumnar(context.Background(), HTTPSource{URL: srv.URL + "/retail_sales.csv", Client: srv.Client()})
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())

	_, err = LoadColumnar(context.Background(), HTTPSource{URL: srv.URL + "/missing.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestBuild(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sampleCSV)
	}))
	defer srv.Close()

	d, err := Build(context.Background(), HTTPSource{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, []string{"Month 1", "Month 2"}, d.Periods())

	cur, ref, err := d.TotalSales("Month 1", "Month 2")
	require.NoError(t, err)
	assert.Equal(t, 150.5, cur)
	assert.Equal(t, -20.2, ref) // -20.25 rounds half to even
}

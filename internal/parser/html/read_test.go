package html

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"complaintsetl/internal/config"
	"complaintsetl/pkg/records"
)

const complaintsTable = `
<html><body>
<h1>Export</h1>
<table>
  <tr><th> Complaint ID </th><th>Product</th><th>Submitted via</th></tr>
  <tr><td>1</td><td>Loan</td><td>Web</td></tr>
  <tr><td>2</td><td>Loan</td><td></td></tr>
</table>
</body></html>`

func TestRead_FirstTable(t *testing.T) {
	t.Parallel()

	ds, err := Read(strings.NewReader(complaintsTable), nil)
	require.NoError(t, err)

	require.Equal(t, []string{"Complaint ID", "Product", "Submitted via"}, ds.Columns)
	require.Len(t, ds.Rows, 2)
	require.Equal(t, records.String("Web"), ds.Rows[0][2])
	require.Equal(t, records.Missing(), ds.Rows[1][2], "empty cell is absent")
}

func TestRead_HeaderFromFirstRowWithoutTH(t *testing.T) {
	t.Parallel()

	in := `<table>
	  <tr><td>a</td><td>b</td></tr>
	  <tr><td>1</td><td>2</td></tr>
	</table>`

	ds, err := Read(strings.NewReader(in), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ds.Columns)
	require.Len(t, ds.Rows, 1)
}

func TestRead_TableIndex(t *testing.T) {
	t.Parallel()

	in := `<table><tr><th>skip</th></tr><tr><td>x</td></tr></table>
	       <table><tr><th>want</th></tr><tr><td>y</td></tr></table>`

	ds, err := Read(strings.NewReader(in), config.Options{"table_index": 1})
	require.NoError(t, err)
	require.Equal(t, []string{"want"}, ds.Columns)
	require.Equal(t, records.String("y"), ds.Rows[0][0])
}

func TestRead_Selector(t *testing.T) {
	t.Parallel()

	in := `<table id="nav"><tr><td>menu</td></tr></table>
	       <table id="data"><tr><th>col</th></tr><tr><td>v</td></tr></table>`

	ds, err := Read(strings.NewReader(in), config.Options{"selector": "table#data"})
	require.NoError(t, err)
	require.Equal(t, []string{"col"}, ds.Columns)

	_, err = Read(strings.NewReader(in), config.Options{"selector": "table#missing"})
	require.Error(t, err)
}

func TestRead_ShortRowsPadded(t *testing.T) {
	t.Parallel()

	in := `<table>
	  <tr><th>a</th><th>b</th><th>c</th></tr>
	  <tr><td>1</td></tr>
	</table>`

	ds, err := Read(strings.NewReader(in), nil)
	require.NoError(t, err)
	require.Equal(t, records.String("1"), ds.Rows[0][0])
	require.Equal(t, records.Missing(), ds.Rows[0][1])
	require.Equal(t, records.Missing(), ds.Rows[0][2])
}

func TestRead_NoTable(t *testing.T) {
	t.Parallel()

	_, err := Read(strings.NewReader("<html><body><p>nope</p></body></html>"), nil)
	require.Error(t, err)
}

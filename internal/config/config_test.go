package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	raw := []byte(`{
		"source": {"kind": "csv", "path": "complaints.csv"},
		"storage": {"kind": "sqlite", "dsn": "file.db"}
	}`)

	p, err := Parse(raw)
	require.NoError(t, err)

	require.Equal(t, "complaints", p.Job)
	require.Equal(t, "stg_consumer_complaints", p.Model.StagingTable)
	require.Len(t, p.Model.Axes, 2)
	require.Equal(t, "dim_product", p.Model.Axes[0].DimensionTable)
	require.Empty(t, ValidatePipeline(p))
}

func TestParse_DSNEnvExpansion(t *testing.T) {
	t.Setenv("COMPLAINTS_DB_PASS", "s3cret")

	raw := []byte(`{
		"source": {"kind": "csv", "path": "in.csv"},
		"storage": {"kind": "postgres", "dsn": "postgres://etl:${COMPLAINTS_DB_PASS}@db/c"}
	}`)

	p, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "postgres://etl:s3cret@db/c", p.Storage.DSN)
}

func TestParse_ModelOverride(t *testing.T) {
	raw := []byte(`{
		"source": {"kind": "html", "path": "export.html"},
		"storage": {"kind": "sqlite", "dsn": ":memory:"},
		"model": {
			"staging_table": "stg_x",
			"fact_table": "fact_x",
			"aggregate_table": "agg_x",
			"fact_key_column": "id",
			"axes": [{"name": "state", "source_columns": ["state"]}]
		}
	}`)

	p, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "stg_x", p.Model.StagingTable)
	require.Equal(t, "dim_state", p.Model.Axes[0].DimensionTable)
	require.Equal(t, "idx_agg_state", p.Model.Axes[0].AggregateIndex)
	require.Empty(t, ValidatePipeline(p))
}

func TestValidatePipeline_Findings(t *testing.T) {
	p, err := Parse([]byte(`{"source": {"kind": "xml"}}`))
	require.NoError(t, err)

	issues := ValidatePipeline(p)
	require.True(t, HasErrors(issues))

	paths := make(map[string]bool)
	for _, i := range issues {
		paths[i.Path] = true
	}
	require.True(t, paths["source.kind"])
	require.True(t, paths["source.path"])
	require.True(t, paths["storage.kind"])
	require.True(t, paths["storage.dsn"])
}

func TestValidatePipeline_NaturalKeyWarning(t *testing.T) {
	p, err := Parse([]byte(`{
		"source": {"kind": "csv", "path": "in.csv"},
		"storage": {"kind": "sqlite", "dsn": ":memory:"},
		"model": {
			"staging_table": "stg", "fact_table": "fact",
			"aggregate_table": "agg", "fact_key_column": "id",
			"axes": [{"name": "a", "source_columns": ["a"]}]
		}
	}`))
	require.NoError(t, err)

	issues := ValidatePipeline(p)
	require.False(t, HasErrors(issues))
	require.Len(t, issues, 1)
	require.Equal(t, SeverityWarn, issues[0].Severity)
}

func TestOptions_Accessors(t *testing.T) {
	p, err := Parse([]byte(`{
		"source": {
			"kind": "csv", "path": "in.csv",
			"options": {
				"comma": ";", "lazy_quotes": true, "table_index": 2,
				"header_map": {"Producto": "product"}
			}
		},
		"storage": {"kind": "sqlite", "dsn": ":memory:"}
	}`))
	require.NoError(t, err)

	o := p.Source.Options
	require.Equal(t, ';', o.Rune("comma", ','))
	require.Equal(t, ',', o.Rune("missing", ','))
	require.True(t, o.Bool("lazy_quotes", false))
	require.True(t, o.Bool("trim_space", true))
	require.Equal(t, 2, o.Int("table_index", 0))
	require.Equal(t, map[string]string{"Producto": "product"}, o.StringMap("header_map"))
	require.Nil(t, o.StringMap("comma"))
}

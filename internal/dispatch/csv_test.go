package dispatch

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableEncodeGolden(t *testing.T) {
	table := Table{
		Header: []string{"Matricula", "Data_Demissao", "Obs"},
		Rows: [][]string{
			{"009165", "15/03/2025", "Demissao"},
			{"000123", "01/04/2025", "Demissão"},
		},
	}
	body, err := table.Encode()
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "termination_csv", body)
}

func TestTableEncodeQuotesEmbeddedSeparator(t *testing.T) {
	table := Table{
		Header: []string{"a", "b"},
		Rows:   [][]string{{"x;y", "plain"}},
	}
	body, err := table.Encode()
	require.NoError(t, err)
	assert.Equal(t, "a;b\n\"x;y\";plain\n", string(body))
}

func TestTableEncodeRejectsRaggedRows(t *testing.T) {
	table := Table{
		Header: []string{"a", "b"},
		Rows:   [][]string{{"only-one"}},
	}
	_, err := table.Encode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0")
}

func TestTableEncodeEmptyTableIsHeaderOnly(t *testing.T) {
	table := Table{Header: []string{"A", "B"}}
	body, err := table.Encode()
	require.NoError(t, err)
	assert.Equal(t, "a;b\n", string(body))
}

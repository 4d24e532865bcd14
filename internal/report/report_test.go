package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skdltmxn/clrrefs/internal/resolve"
)

func TestWriteFlat(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []resolve.Reference{{Assembly: "Lib", Type: "N.Outer.Inner"}}, false)
	require.NoError(t, err)
	require.Equal(t, `[{"assembly":"Lib","type":"N.Outer.Inner"}]`+"\n", buf.String())
}

func TestWriteEmpty(t *testing.T) {
	for _, group := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, nil, group))
		require.Equal(t, "[]\n", buf.String())
	}
}

func TestGroupedKeepsTypeOrder(t *testing.T) {
	refs := []resolve.Reference{
		{Assembly: "Lib", Type: "A"},
		{Assembly: "Lib", Type: "B"},
	}
	require.Equal(t, []Group{{Assembly: "Lib", Types: []string{"A", "B"}}}, Grouped(refs))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, refs, true))
	require.Equal(t, `[{"assembly":"Lib","types":["A","B"]}]`+"\n", buf.String())
}

func TestGroupedSortsAssemblies(t *testing.T) {
	refs := []resolve.Reference{
		{Assembly: "System.Runtime", Type: "System.Object"},
		{Assembly: "Lib", Type: "N.A"},
		{Assembly: "System.Runtime", Type: "System.String"},
	}
	require.Equal(t, []Group{
		{Assembly: "Lib", Types: []string{"N.A"}},
		{Assembly: "System.Runtime", Types: []string{"System.Object", "System.String"}},
	}, Grouped(refs))
}

func TestWriteDoesNotEscapeGenerics(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []resolve.Reference{{Assembly: "Lib", Type: "N.Map<K>&"}}, false)
	require.NoError(t, err)
	require.Equal(t, `[{"assembly":"Lib","type":"N.Map<K>&"}]`+"\n", buf.String())
}

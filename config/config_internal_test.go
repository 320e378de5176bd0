package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/signal"
)

func TestParseChecksumIsDeterministic(t *testing.T) {
	data := []byte("telemetry:\n  chunkIntervalUs: 500000\nslots: []\n")
	doc1, err := parse(data)
	require.NoError(t, err)
	doc2, err := parse(data)
	require.NoError(t, err)
	assert.Equal(t, doc1.Checksum(), doc2.Checksum())
	assert.NotEmpty(t, doc1.Checksum())
}

func TestParseChecksumChangesWithContent(t *testing.T) {
	a, err := parse([]byte("slots: []\n"))
	require.NoError(t, err)
	b, err := parse([]byte("slots: []\nextra: true\n"))
	require.NoError(t, err)
	assert.NotEqual(t, a.Checksum(), b.Checksum())
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := parse([]byte("slots: [this is not valid yaml"))
	assert.Error(t, err)
}

func TestParameterTypeMapping(t *testing.T) {
	cases := map[string]signal.ParameterType{
		"string": signal.ParamString,
		"double": signal.ParamDouble,
		"int":    signal.ParamInt,
		"bool":   signal.ParamBool,
		"uuid":   signal.ParamUUID,
	}
	for tag, want := range cases {
		got, err := parameterType(tag)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := parameterType("bogus")
	assert.Error(t, err)
}

func TestToSignalParameters(t *testing.T) {
	specs := []ParameterSpec{
		{Name: "speed", Type: "double", Required: true},
		{Name: "label", Type: "string", Required: false},
	}
	params, err := toSignalParameters(specs)
	require.NoError(t, err)
	require.Len(t, params, 2)
}

func TestToSignalParametersRejectsUnknownType(t *testing.T) {
	_, err := toSignalParameters([]ParameterSpec{{Name: "x", Type: "nope"}})
	assert.Error(t, err)
}

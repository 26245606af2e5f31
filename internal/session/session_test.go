package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = `
dmm1:
  profile: keysight_34465a
  log:
    - kind: write
      command: ":CONF:VOLT:DC"
      timestamp: 0.0
    - kind: query
      command: ":READ?"
      response: "+1.0421E-03"
      timestamp: 0.4821
psu1:
  log:
    - kind: query_raw
      command: ":WAV:DATA?"
      response: "#15ABCDE"
      timestamp: 0.013
`

func TestParse_FullFile(t *testing.T) {
	f, err := Parse([]byte(sampleFile))
	require.NoError(t, err)
	require.Len(t, f, 2)

	dmm, err := f.Session("dmm1")
	require.NoError(t, err)
	assert.Equal(t, "keysight_34465a", dmm.Profile)
	require.Len(t, dmm.Log, 2)

	assert.Equal(t, KindWrite, dmm.Log[0].Kind)
	assert.Equal(t, ":CONF:VOLT:DC", dmm.Log[0].Command)
	assert.Empty(t, dmm.Log[0].Response)

	assert.Equal(t, KindQuery, dmm.Log[1].Kind)
	assert.Equal(t, "+1.0421E-03", dmm.Log[1].Response)
	assert.InDelta(t, 0.4821, dmm.Log[1].Timestamp, 1e-9)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	data := []byte(`
dmm1:
  log:
    - kind: write
      command: "*RST"
      timestamp: 0
      retries: 3
`)
	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries")
}

func TestParse_RejectsUnknownKind(t *testing.T) {
	data := []byte(`
dmm1:
  log:
    - kind: read
      command: ":READ?"
      timestamp: 0
`)
	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown kind "read"`)
}

func TestParse_RejectsEmptyCommand(t *testing.T) {
	data := []byte(`
dmm1:
  log:
    - kind: write
      command: ""
      timestamp: 0
`)
	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty command")
}

func TestParse_EmptyDocument(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, f)
}

func TestFile_SessionMissingAlias(t *testing.T) {
	f, err := Parse([]byte(sampleFile))
	require.NoError(t, err)

	_, err = f.Session("scope9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"scope9"`)
}

func TestWriteFile_RoundTrip(t *testing.T) {
	orig := File{
		"dmm1": {
			ID:      "test-session",
			Profile: "keysight_34465a",
			Log: []Entry{
				{Kind: KindWrite, Command: "*RST", Timestamp: 0},
				{Kind: KindQuery, Command: ":READ?", Response: "+1.00E+00", Timestamp: 0.25},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, WriteFile(path, orig))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, orig, loaded)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

package vvm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluateScriptReturnsLastExpressionDisplay(t *testing.T) {
	out, err := Evaluate("3 + 4", ModeScript)
	require.NoError(t, err)
	require.Equal(t, "7", out)
}

func TestEvaluateScriptSurfacesParseError(t *testing.T) {
	_, err := Evaluate("let x =", ModeScript)
	require.Error(t, err)
}

func TestEvaluateScriptDoesNotPersistBindingsAcrossCalls(t *testing.T) {
	_, err := Evaluate("var x = 1", ModeScript)
	require.NoError(t, err)

	_, err = Evaluate("x", ModeScript)
	require.Error(t, err, "each script-mode Evaluate call starts from a fresh session")
}

func TestSessionInteractiveTurnsPersistBindings(t *testing.T) {
	session := NewSession()

	out, err := session.Evaluate("var x = 5", ModeInteractive)
	require.NoError(t, err)
	require.Equal(t, "", out)

	out, err = session.Evaluate("x + 1", ModeInteractive)
	require.NoError(t, err)
	require.Equal(t, "6", out)
}

func TestSessionScriptEvaluateIsCachedByKey(t *testing.T) {
	session := NewSession()

	out1, err := session.Evaluate("10 + 20", ModeScript)
	require.NoError(t, err)
	out2, err := session.Evaluate("10 + 20", ModeScript)
	require.NoError(t, err)

	require.Equal(t, out1, out2)
	require.Equal(t, "30", out1)
}

func TestModeString(t *testing.T) {
	require.Equal(t, "script", ModeScript.String())
	require.Equal(t, "interactive", ModeInteractive.String())
}

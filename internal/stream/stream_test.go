package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"vvm/internal/langtypes"
)

func rowType(types *langtypes.Registry) langtypes.TypeCode {
	return types.Intern("!streamTestRow", []langtypes.Field{
		{Name: "id", Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector)},
		{Name: "label", Type: langtypes.Builtin(langtypes.String, langtypes.Vector)},
	})
}

// newEchoServer serves one websocket connection, writes each of messages as
// a text frame, then closes normally -- exercising Load's full-snapshot
// read loop end to end.
func newEchoServer(t *testing.T, messages []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for _, m := range messages {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(m)))
		}
		require.NoError(t, conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), 0))
	}))
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestLoadReadsFullSnapshotThenStopsAtClose(t *testing.T) {
	srv := newEchoServer(t, []string{
		`{"id": 1, "label": "a"}`,
		`{"id": 2, "label": "b"}`,
	})
	defer srv.Close()

	types := langtypes.NewRegistry()
	rt := rowType(types)

	result, err := (Source{}).Load(wsURL(srv), rt, types)
	require.NoError(t, err)
	require.Equal(t, 2, result.RowCount())
	require.Equal(t, int64(1), result.Cols[0].Vec.Get(0).I)
	require.Equal(t, "b", result.Cols[1].Vec.Get(1).S)
}

func TestLoadFillsMissingFieldWithNull(t *testing.T) {
	srv := newEchoServer(t, []string{`{"id": 5}`})
	defer srv.Close()

	types := langtypes.NewRegistry()
	rt := rowType(types)

	result, err := (Source{}).Load(wsURL(srv), rt, types)
	require.NoError(t, err)
	require.Equal(t, 1, result.RowCount())
	require.True(t, result.Cols[1].Vec.Get(0).IsNull(), "a row missing the label key maps to String's nil sentinel")
}

func TestLoadErrorsOnUnreachableServer(t *testing.T) {
	types := langtypes.NewRegistry()
	rt := rowType(types)
	_, err := (Source{}).Load("ws://127.0.0.1:1/does-not-exist", rt, types)
	require.Error(t, err)
}

package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ferronweb/ferron-core/internal/ferronconfig"
	"github.com/ferronweb/ferron-core/internal/ferronlog"
)

type recordingHandlers struct {
	name  string
	order *[]string
	kind  ResponseDataKind
}

func (h *recordingHandlers) RequestHandler(ctx context.Context, req *http.Request, cfg *ferronconfig.ServerConfiguration, sock SocketData, elog *ferronlog.ErrorLogger) (ResponseData, error) {
	*h.order = append(*h.order, "req:"+h.name)
	if h.kind == ProduceResponse {
		return ResponseData{Kind: ProduceResponse, Response: &http.Response{StatusCode: 200, Header: http.Header{}, Body: http.NoBody}}, nil
	}
	return ResponseData{Kind: PassThrough}, nil
}

func (h *recordingHandlers) ResponseModifyingHandler(ctx context.Context, resp *http.Response) (*http.Response, error) {
	*h.order = append(*h.order, "resp:"+h.name)
	return resp, nil
}

func TestResponseModifyingRunsInReverseOrderOverParticipants(t *testing.T) {
	var order []string
	a := &recordingHandlers{name: "a", order: &order, kind: PassThrough}
	b := &recordingHandlers{name: "b", order: &order, kind: PassThrough}
	c := &recordingHandlers{name: "c", order: &order, kind: ProduceResponse}

	chain := Chain{Handlers: []ModuleHandlers{a, b, c}}
	d := &Dispatcher{Index: ferronconfig.NewIndex(nil)}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sock := SocketData{}
	elog := ferronlog.Nop().ForRequest("test")

	result, err := d.Serve(context.Background(), req, &ferronconfig.ServerConfiguration{}, sock, elog, chain)
	require.NoError(t, err)
	require.NotNil(t, result.Response)

	require.Equal(t, []string{"req:a", "req:b", "req:c", "resp:c", "resp:b", "resp:a"}, order)
}

func TestErrorHandlerReentryCapped(t *testing.T) {
	d := &Dispatcher{Index: ferronconfig.NewIndex(nil)}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sock := SocketData{}
	elog := ferronlog.Nop().ForRequest("test")

	ctx := withErrorDepth(context.Background(), MaxErrorHandlerReentry)
	result, err := d.dispatchError(ctx, req, &ferronconfig.ServerConfiguration{}, sock, elog, Chain{}, 500)
	require.NoError(t, err)
	require.Equal(t, 500, result.Response.StatusCode)
}

package tools

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gaggiuino_mcp"
	"gaggiuino_mcp/internal/device"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// fakeMachine is an httptest server that counts every request it receives.
type fakeMachine struct {
	mux  *http.ServeMux
	hits atomic.Int64
	srv  *httptest.Server
}

func newFakeMachine(t *testing.T) *fakeMachine {
	t.Helper()
	m := &fakeMachine{mux: http.NewServeMux()}
	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.hits.Add(1)
		m.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *fakeMachine) handle(pattern string, status int, body string) {
	m.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func (m *fakeMachine) client() *device.Client {
	return device.New(m.srv.URL, 2*time.Second)
}

// connect serves a dispatcher over in-memory transports and returns a
// connected client session.
func connect(t *testing.T, dev Device, recorder InvocationRecorder) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	srv := mcp.NewServer(&mcp.Implementation{Name: "gaggiuino-test", Version: "0.0.1"}, nil)
	NewDispatcher(dev, nil, recorder).Register(srv)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	if _, err := srv.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// callTool returns the text of the result and whether it is an error result.
func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return resultText(t, res), res.IsError
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return tc.Text
}

func TestDispatcher_ListsTools(t *testing.T) {
	cs := connect(t, newFakeMachine(t).client(), nil)

	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	schemas := map[string]map[string]any{}
	for _, tool := range res.Tools {
		data, err := json.Marshal(tool.InputSchema)
		if err != nil {
			t.Fatalf("marshal schema of %s: %v", tool.Name, err)
		}
		var schema map[string]any
		if err := json.Unmarshal(data, &schema); err != nil {
			t.Fatalf("unmarshal schema of %s: %v", tool.Name, err)
		}
		schemas[tool.Name] = schema
	}

	for _, name := range []string{
		ToolGetSystemStatus, ToolGetLatestShot, ToolGetShotData, ToolGetAllProfiles,
		ToolSelectProfile, ToolDeleteProfile, ToolUploadShot,
	} {
		if _, ok := schemas[name]; !ok {
			t.Fatalf("tool %s not registered", name)
		}
	}
	if len(schemas) != 7 {
		t.Fatalf("expected 7 tools, got %d", len(schemas))
	}

	requires := func(schema map[string]any, field string) bool {
		list, _ := schema["required"].([]any)
		for _, v := range list {
			if v == field {
				return true
			}
		}
		return false
	}
	for _, name := range []string{ToolGetShotData, ToolSelectProfile, ToolDeleteProfile} {
		if !requires(schemas[name], "id") {
			t.Errorf("%s must require id: %v", name, schemas[name])
		}
	}
	upload := schemas[ToolUploadShot]
	if !requires(upload, "metadata") || !requires(upload, "dataPoints") {
		t.Errorf("uploadShot must require metadata and dataPoints: %v", upload)
	}
}

func TestDispatcher_ProfileConfirmations(t *testing.T) {
	m := newFakeMachine(t)
	m.handle("POST /api/profile-select/{id}", http.StatusOK, ``)
	m.handle("DELETE /api/profile-select/{id}", http.StatusOK, ``)
	cs := connect(t, m.client(), nil)

	text, isErr := callTool(t, cs, ToolSelectProfile, map[string]any{"id": "abc"})
	if isErr || text != "Profile abc selected successfully" {
		t.Fatalf("select: %q (error=%v)", text, isErr)
	}
	text, isErr = callTool(t, cs, ToolDeleteProfile, map[string]any{"id": "abc"})
	if isErr || text != "Profile abc deleted successfully" {
		t.Fatalf("delete: %q (error=%v)", text, isErr)
	}
}

func TestDispatcher_UploadShot(t *testing.T) {
	validMetadata := map[string]any{"profile": "Classic", "beanName": "Kenya", "doseWeight": 18.0}

	t.Run("invalid arguments never reach the machine", func(t *testing.T) {
		cases := []struct {
			name string
			args map[string]any
		}{
			{"data point without flow", map[string]any{
				"metadata":   validMetadata,
				"dataPoints": []any{map[string]any{"timestamp": 0, "temperature": 93, "pressure": 9}},
			}},
			{"metadata without profile", map[string]any{
				"metadata":   map[string]any{"beanName": "Kenya"},
				"dataPoints": []any{},
			}},
			{"temperature as string", map[string]any{
				"metadata":   validMetadata,
				"dataPoints": []any{map[string]any{"timestamp": 0, "temperature": "hot", "pressure": 9, "flow": 2}},
			}},
			{"missing dataPoints", map[string]any{"metadata": validMetadata}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				m := newFakeMachine(t)
				m.handle("POST /api/shots", http.StatusOK, `"1"`)
				cs := connect(t, m.client(), nil)

				res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: ToolUploadShot, Arguments: tc.args})
				if err == nil && !res.IsError {
					t.Fatalf("expected a validation failure, got %q", resultText(t, res))
				}
				if err == nil && strings.HasPrefix(resultText(t, res), "Shot uploaded") {
					t.Fatal("upload must not succeed")
				}
				if got := m.hits.Load(); got != 0 {
					t.Fatalf("expected zero device requests, got %d", got)
				}
			})
		}
	})

	t.Run("valid upload returns id", func(t *testing.T) {
		m := newFakeMachine(t)
		m.handle("POST /api/shots", http.StatusOK, `"77"`)
		cs := connect(t, m.client(), nil)

		text, isErr := callTool(t, cs, ToolUploadShot, map[string]any{
			"metadata": validMetadata,
			"dataPoints": []any{
				map[string]any{"timestamp": 0, "temperature": 93, "pressure": 2, "flow": 0.5},
				map[string]any{"timestamp": 250, "temperature": 93.4, "pressure": 9, "flow": 2.1, "weight": 1.5},
			},
		})
		if isErr || text != "Shot uploaded successfully with ID: 77" {
			t.Fatalf("got %q (error=%v)", text, isErr)
		}
		if m.hits.Load() != 1 {
			t.Fatalf("expected one device request, got %d", m.hits.Load())
		}
	})
}

func TestDispatcher_ConnectionFailure(t *testing.T) {
	m := newFakeMachine(t)
	c := m.client()
	m.srv.Close()
	cs := connect(t, c, nil)

	cases := []struct {
		tool string
		args map[string]any
		op   string
	}{
		{ToolGetSystemStatus, nil, "fetching system status"},
		{ToolGetLatestShot, nil, "fetching latest shot"},
		{ToolGetShotData, map[string]any{"id": "42"}, "fetching shot 42"},
		{ToolGetAllProfiles, nil, "fetching profiles"},
		{ToolSelectProfile, map[string]any{"id": "abc"}, "selecting profile abc"},
		{ToolDeleteProfile, map[string]any{"id": "abc"}, "deleting profile abc"},
		{ToolUploadShot, map[string]any{"metadata": map[string]any{"profile": "p"}, "dataPoints": []any{}}, "uploading shot data"},
	}
	for _, tc := range cases {
		t.Run(tc.tool, func(t *testing.T) {
			text, isErr := callTool(t, cs, tc.tool, tc.args)
			if !isErr {
				t.Fatalf("expected error result, got %q", text)
			}
			prefix := "Could not connect to the espresso machine: Connection error while " + tc.op + ": "
			if !strings.HasPrefix(text, prefix) || len(text) == len(prefix) {
				t.Fatalf("got %q, want prefix %q and a cause", text, prefix)
			}
			if strings.Contains(text, "\n") {
				t.Fatalf("error must be a single line: %q", text)
			}
		})
	}
}

func TestDispatcher_GetShotData_APIErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"not found", http.StatusNotFound, `{"message":"Shot not found"}`, "Resource not found: API error while fetching shot 42: Shot not found"},
		{"server error", http.StatusInternalServerError, ``, "API error: API error while fetching shot 42: Request failed with status code 500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newFakeMachine(t)
			m.handle("GET /api/shots/{id}", tc.status, tc.body)
			cs := connect(t, m.client(), nil)

			text, isErr := callTool(t, cs, ToolGetShotData, map[string]any{"id": "42"})
			if !isErr || text != tc.want {
				t.Fatalf("got %q (error=%v), want %q", text, isErr, tc.want)
			}
		})
	}
}

func TestDispatcher_GetSystemStatus_RoundTrip(t *testing.T) {
	m := newFakeMachine(t)
	m.handle("GET /api/system/status", http.StatusOK,
		`{"temperature":92.7,"pressure":8.9,"state":"brewing","heaterPower":63.5,"steamMode":true}`)
	c := m.client()
	cs := connect(t, c, nil)

	want, err := c.GetSystemStatus(context.Background())
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	text, isErr := callTool(t, cs, ToolGetSystemStatus, nil)
	if isErr {
		t.Fatalf("unexpected error result %q", text)
	}
	if !strings.Contains(text, "\n  \"temperature\"") {
		t.Fatalf("expected pretty-printed JSON, got %q", text)
	}
	var got gaggiuino_mcp.SystemStatus
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDispatcher_GetLatestShot(t *testing.T) {
	t.Run("plain identifier", func(t *testing.T) {
		m := newFakeMachine(t)
		m.handle("GET /api/shots/latest", http.StatusOK, `[{"lastShotId":"4294967295"}]`)
		cs := connect(t, m.client(), nil)

		text, isErr := callTool(t, cs, ToolGetLatestShot, nil)
		if isErr || text != "4294967295" {
			t.Fatalf("got %q (error=%v)", text, isErr)
		}
	})

	t.Run("unexpected shape", func(t *testing.T) {
		m := newFakeMachine(t)
		m.handle("GET /api/shots/latest", http.StatusOK, `{"shots":[]}`)
		cs := connect(t, m.client(), nil)

		text, isErr := callTool(t, cs, ToolGetLatestShot, nil)
		want := "An error occurred: Error while fetching latest shot: Unexpected response format for latest shot"
		if !isErr || text != want {
			t.Fatalf("got %q (error=%v), want %q", text, isErr, want)
		}
	})
}

func TestDispatcher_GetAllProfiles_KeepsParameterOrder(t *testing.T) {
	m := newFakeMachine(t)
	m.handle("GET /api/profiles/all", http.StatusOK,
		`[{"id":"1","name":"Classic","parameters":{"zeta":1.50,"alpha":[1,{"y":true,"x":null}]}}]`)
	cs := connect(t, m.client(), nil)

	text, isErr := callTool(t, cs, ToolGetAllProfiles, nil)
	if isErr {
		t.Fatalf("unexpected error result %q", text)
	}
	zeta, alpha := strings.Index(text, `"zeta"`), strings.Index(text, `"alpha"`)
	y, x := strings.Index(text, `"y"`), strings.Index(text, `"x"`)
	if zeta < 0 || alpha < 0 || zeta > alpha || y < 0 || x < 0 || y > x {
		t.Fatalf("parameter order not preserved:\n%s", text)
	}
	if !strings.Contains(text, "1.50") {
		t.Fatalf("number text should pass through untouched:\n%s", text)
	}
}

func TestDispatcher_ConcurrentInvocationsAreIndependent(t *testing.T) {
	m := newFakeMachine(t)
	m.mux.HandleFunc("GET /api/system/status", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = io.WriteString(w, `{"temperature":93,"pressure":1,"state":"idle","heaterPower":10,"steamMode":false}`)
	})
	m.handle("GET /api/profiles/all", http.StatusInternalServerError, `{"message":"storage failure"}`)
	cs := connect(t, m.client(), nil)

	var (
		wg                 sync.WaitGroup
		statusRes, profRes *mcp.CallToolResult
		statusErr, profErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		statusRes, statusErr = cs.CallTool(context.Background(), &mcp.CallToolParams{Name: ToolGetSystemStatus, Arguments: map[string]any{}})
	}()
	go func() {
		defer wg.Done()
		profRes, profErr = cs.CallTool(context.Background(), &mcp.CallToolParams{Name: ToolGetAllProfiles, Arguments: map[string]any{}})
	}()
	wg.Wait()

	if statusErr != nil || profErr != nil {
		t.Fatalf("call errors: status=%v profiles=%v", statusErr, profErr)
	}
	statusText, statusIsErr := resultText(t, statusRes), statusRes.IsError
	profText, profIsErr := resultText(t, profRes), profRes.IsError

	if statusIsErr || !strings.Contains(statusText, `"state": "idle"`) {
		t.Fatalf("status result affected by the other call: %q", statusText)
	}
	if !profIsErr || profText != "API error: API error while fetching profiles: storage failure" {
		t.Fatalf("profiles result = %q (error=%v)", profText, profIsErr)
	}
}

// panickyDevice raises a non-error value from every profile call.
type panickyDevice struct {
	Device
}

func (panickyDevice) GetAllProfiles(context.Context) ([]gaggiuino_mcp.Profile, error) {
	panic("Not an error object")
}

type recorderStub struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recorderStub) ObserveToolInvocation(tool, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, tool+":"+outcome)
}

func TestDispatcher_UnknownFailure(t *testing.T) {
	rec := &recorderStub{}
	cs := connect(t, panickyDevice{}, rec)

	text, isErr := callTool(t, cs, ToolGetAllProfiles, nil)
	if !isErr || text != "An unknown error occurred while fetching profiles" {
		t.Fatalf("got %q (error=%v)", text, isErr)
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0] != "getAllProfiles:unknown" {
		t.Fatalf("outcomes = %v", rec.outcomes)
	}
}

func TestDispatcher_RecordsOutcomes(t *testing.T) {
	m := newFakeMachine(t)
	m.handle("GET /api/shots/latest", http.StatusOK, `"5"`)
	m.handle("GET /api/shots/{id}", http.StatusNotFound, `{}`)
	rec := &recorderStub{}
	cs := connect(t, m.client(), rec)

	callTool(t, cs, ToolGetLatestShot, nil)
	callTool(t, cs, ToolGetShotData, map[string]any{"id": "5"})

	want := []string{"getLatestShot:ok", "getShotData:api"}
	if strings.Join(rec.outcomes, ",") != strings.Join(want, ",") {
		t.Fatalf("outcomes = %v, want %v", rec.outcomes, want)
	}
}

func TestDispatcher_RejectsUnknownArguments(t *testing.T) {
	m := newFakeMachine(t)
	m.handle("GET /api/shots/{id}", http.StatusOK, `{"id":"1","timestamp":"t","duration":1,"data":{"temperature":[],"pressure":[],"flow":[],"timePoints":[]}}`)
	cs := connect(t, m.client(), nil)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      ToolGetShotData,
		Arguments: map[string]any{"id": "1", "verbose": true},
	})
	if err == nil && !res.IsError {
		t.Fatalf("expected unknown argument to be rejected, got %q", resultText(t, res))
	}
	if got := m.hits.Load(); got != 0 {
		t.Fatalf("expected zero device requests, got %d", got)
	}
}

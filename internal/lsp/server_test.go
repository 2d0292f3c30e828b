package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/octofhir/fhircore/internal/fhirmodel"
	"github.com/octofhir/fhircore/internal/lsp/rpc"
)

// newTestServer wires a Server whose writes land in a shared buffer, and
// returns a second, persistent Conn reading from that same buffer so
// tests can observe replies/notifications without racing the server's
// own (unused, in these dispatch()-driven tests) read side.
func newTestServer() (*Server, *rpc.Conn) {
	schema := NewSchemaCache(nil, map[string]string{"observation": "Observation"})
	provider := fhirmodel.NewStaticProvider()
	resolver := NewFHIRResolver(provider)
	tables := NewTableResolver()
	engine := NewCompletionEngine(schema, resolver, tables)
	analyzer := NewAnalyzer(schema, resolver, tables)

	var buf bytes.Buffer
	writeConn := rpc.NewConn(bytes.NewReader(nil), &buf)
	readConn := rpc.NewConn(&buf, io.Discard)
	return NewServer(writeConn, zerolog.Nop(), engine, analyzer, schema), readConn
}

func readOne(t *testing.T, readConn *rpc.Conn) *rpc.Message {
	t.Helper()
	msg, err := readConn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return msg
}

func TestServer_Initialize_AdvertisesCapabilities(t *testing.T) {
	s, readConn := newTestServer()
	id := json.RawMessage(`1`)

	if err := s.dispatch(context.Background(), &rpc.Message{ID: &id, Method: "initialize"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	reply := readOne(t, readConn)
	if reply.Error != nil {
		t.Fatalf("unexpected error reply: %v", reply.Error)
	}
	var result initializeResult
	if err := json.Unmarshal(reply.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.Capabilities.HoverProvider {
		t.Fatal("expected HoverProvider to be advertised")
	}
	if len(result.Capabilities.CompletionProvider.TriggerCharacters) == 0 {
		t.Fatal("expected completion trigger characters to be advertised")
	}
}

func TestServer_DidOpen_PublishesDiagnostics(t *testing.T) {
	s, readConn := newTestServer()
	params, _ := json.Marshal(map[string]interface{}{
		"textDocument": map[string]interface{}{
			"uri":        "file:///scratch.sql",
			"languageId": "sql",
			"version":    1,
			"text":       "SELECT * FROM observation WHERE",
		},
	})

	if err := s.dispatch(context.Background(), &rpc.Message{Method: "textDocument/didOpen", Params: params}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	notif := readOne(t, readConn)
	if notif.Method != "textDocument/publishDiagnostics" {
		t.Fatalf("expected a publishDiagnostics notification, got method %q", notif.Method)
	}

	s.mu.Lock()
	_, ok := s.docs["file:///scratch.sql"]
	s.mu.Unlock()
	if !ok {
		t.Fatal("expected the opened document to be tracked")
	}
}

func TestServer_UnknownMethod_RepliesMethodNotFound(t *testing.T) {
	s, readConn := newTestServer()
	id := json.RawMessage(`2`)

	if err := s.dispatch(context.Background(), &rpc.Message{ID: &id, Method: "textDocument/bogus"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	reply := readOne(t, readConn)
	if reply.Error == nil || reply.Error.Code != rpc.ErrMethodNotFound {
		t.Fatalf("expected ErrMethodNotFound, got %+v", reply.Error)
	}
}

func TestServer_DidClose_RemovesDocumentAndClearsDiagnostics(t *testing.T) {
	s, readConn := newTestServer()
	openParams, _ := json.Marshal(map[string]interface{}{
		"textDocument": map[string]interface{}{
			"uri": "file:///a.sql", "languageId": "sql", "version": 1, "text": "SELECT 1",
		},
	})
	if err := s.dispatch(context.Background(), &rpc.Message{Method: "textDocument/didOpen", Params: openParams}); err != nil {
		t.Fatalf("dispatch didOpen: %v", err)
	}
	readOne(t, readConn) // drain the didOpen publishDiagnostics notification

	closeParams, _ := json.Marshal(map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": "file:///a.sql"},
	})
	if err := s.dispatch(context.Background(), &rpc.Message{Method: "textDocument/didClose", Params: closeParams}); err != nil {
		t.Fatalf("dispatch didClose: %v", err)
	}

	notif := readOne(t, readConn)
	if notif.Method != "textDocument/publishDiagnostics" {
		t.Fatalf("expected a publishDiagnostics notification clearing diagnostics, got %q", notif.Method)
	}

	s.mu.Lock()
	_, ok := s.docs["file:///a.sql"]
	s.mu.Unlock()
	if ok {
		t.Fatal("expected the closed document to be forgotten")
	}
}

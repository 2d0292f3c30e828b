// Package lsp's server.go wires the language-server components to the
// JSON-RPC wire protocol (internal/lsp/rpc): standard LSP over stdio,
// full document sync, completion (triggers ". ( space > ' { ,"), a
// hover stub, a formatting stub, and
// textDocument/{didOpen,didChange,didClose} notifications publishing the
// union of parse and semantic diagnostics.
package lsp

import (
	"context"
	"encoding/json"
	"sync"

	golsp "github.com/sourcegraph/go-lsp"
	"github.com/rs/zerolog"

	"github.com/octofhir/fhircore/internal/lsp/rpc"
	"github.com/octofhir/fhircore/internal/lsp/sqlparse"
)

// document is the server's view of one open text document: its latest
// text and the parse produced from it. Never shared across documents.
type document struct {
	text    string
	version int
	doc     *sqlparse.Document
	diags   []sqlparse.Diagnostic
}

// Server dispatches the LSP wire protocol over an rpc.Conn, serving
// completions from the completion Engine and diagnostics from the
// Analyzer against a single shared SchemaCache snapshot observed for the
// lifetime of each request.
type Server struct {
	conn     *rpc.Conn
	log      zerolog.Logger
	engine   *Engine
	analyzer *Analyzer
	schema   *SchemaCache

	mu   sync.Mutex
	docs map[string]*document
}

// NewServer wires a Server to conn. engine and analyzer are typically
// built over the same schema/resolver/tables instances so completion and
// diagnostics observe one consistent snapshot per request.
func NewServer(conn *rpc.Conn, log zerolog.Logger, engine *Engine, analyzer *Analyzer, schema *SchemaCache) *Server {
	return &Server{
		conn:     conn,
		log:      log,
		engine:   engine,
		analyzer: analyzer,
		schema:   schema,
		docs:     make(map[string]*document),
	}
}

// textDocumentSyncOptions and completionOptions mirror the wire shapes the
// LSP spec defines for ServerCapabilities.textDocumentSync /
// .completionProvider. They're spelled out locally, rather than through
// go-lsp's own capability structs, because this server only ever sends
// these two fields and a couple of scalars; a small explicit literal is
// less risk than depending on the exact nesting go-lsp's (unvendored)
// ServerCapabilities type happens to use for a oneof field.
type textDocumentSyncOptions struct {
	OpenClose bool `json:"openClose"`
	Change    int  `json:"change"`
}

type completionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters"`
}

type serverCapabilities struct {
	TextDocumentSync           textDocumentSyncOptions `json:"textDocumentSync"`
	CompletionProvider         completionOptions        `json:"completionProvider"`
	HoverProvider              bool                     `json:"hoverProvider"`
	DocumentFormattingProvider bool                     `json:"documentFormattingProvider"`
}

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
}

// capabilities is returned from `initialize`: full text-document sync,
// completion (with its trigger characters), a hover stub, and
// formatting.
func capabilities() serverCapabilities {
	return serverCapabilities{
		TextDocumentSync: textDocumentSyncOptions{
			OpenClose: true,
			Change:    int(golsp.TDSKFull),
		},
		CompletionProvider: completionOptions{
			TriggerCharacters: []string{".", "(", " ", ">", "'", "{", ","},
		},
		HoverProvider:              true,
		DocumentFormattingProvider: true,
	}
}

// Run drives the read loop until the stream closes or the client sends
// `exit`. Each request is handled synchronously on the read goroutine;
// the components underneath (parser, resolvers, cache lookups) never
// touch external I/O, so this never blocks mid-request.
func (s *Server) Run(ctx context.Context) error {
	for {
		msg, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := s.dispatch(ctx, msg); err != nil {
			s.log.Warn().Err(err).Str("method", msg.Method).Msg("lsp: dispatch failed")
		}
		if msg.Method == "exit" {
			return nil
		}
	}
}

func (s *Server) dispatch(ctx context.Context, msg *rpc.Message) error {
	switch msg.Method {
	case "initialize":
		return s.conn.Reply(msg.ID, initializeResult{Capabilities: capabilities()})
	case "initialized", "$/cancelRequest":
		return nil
	case "shutdown":
		return s.conn.Reply(msg.ID, nil)
	case "exit":
		return nil
	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, msg)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/hover":
		return s.conn.Reply(msg.ID, golsp.Hover{})
	case "textDocument/formatting":
		return s.conn.Reply(msg.ID, []golsp.TextEdit{})
	default:
		if msg.ID != nil {
			return s.conn.ReplyError(msg.ID, &rpc.Error{Code: rpc.ErrMethodNotFound, Message: "method not found: " + msg.Method})
		}
		return nil
	}
}

func (s *Server) handleDidOpen(ctx context.Context, msg *rpc.Message) error {
	var params golsp.DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	s.updateDocument(ctx, string(params.TextDocument.URI), params.TextDocument.Text, params.TextDocument.Version)
	return nil
}

func (s *Server) handleDidChange(ctx context.Context, msg *rpc.Message) error {
	var params golsp.DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if len(params.ContentChanges) == 0 {
		return nil
	}
	// Full sync only (capabilities advertises golsp.TDSKFull): the last
	// change event carries the complete new text.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	s.updateDocument(ctx, string(params.TextDocument.URI), text, params.TextDocument.Version)
	return nil
}

func (s *Server) handleDidClose(msg *rpc.Message) error {
	var params golsp.DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := string(params.TextDocument.URI)

	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()

	return s.conn.Notify("textDocument/publishDiagnostics", golsp.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []golsp.Diagnostic{},
	})
}

// updateDocument re-parses text, runs the diagnostics pass, stores the
// result, and publishes the combined diagnostics for the document.
func (s *Server) updateDocument(ctx context.Context, uri, text string, version int) {
	doc, parseDiags := sqlparse.Parse(text)

	s.mu.Lock()
	s.docs[uri] = &document{text: text, version: version, doc: doc, diags: parseDiags}
	s.mu.Unlock()

	diags := s.analyzer.Diagnostics(doc, parseDiags)
	lspDiags := make([]golsp.Diagnostic, 0, len(diags))
	for _, d := range diags {
		lspDiags = append(lspDiags, d.ToLSP(text))
	}

	if err := s.conn.Notify("textDocument/publishDiagnostics", golsp.PublishDiagnosticsParams{
		URI:         golsp.DocumentURI(uri),
		Diagnostics: lspDiags,
	}); err != nil {
		s.log.Warn().Err(err).Str("uri", uri).Msg("lsp: publish diagnostics failed")
	}
}

func (s *Server) handleCompletion(msg *rpc.Message) error {
	var params golsp.CompletionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := string(params.TextDocument.URI)

	s.mu.Lock()
	d, ok := s.docs[uri]
	s.mu.Unlock()
	if !ok {
		return s.conn.Reply(msg.ID, []golsp.CompletionItem{})
	}

	items := s.engine.Complete(d.doc, d.text, params.Position)
	return s.conn.Reply(msg.ID, items)
}

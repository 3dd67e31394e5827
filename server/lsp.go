// Package server implements the lxg language server.
package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/lxg-lang/lxg/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "lxg-lsp"

var log = commonlog.GetLogger("lxg.lsp")

// notifyFunc sends a notification to the client.
type notifyFunc = func(method string, params any)

// LspServer publishes lxg diagnostics and answers hover, completion and
// definition requests. Every document is analyzed independently with
// fresh compiler components.
type LspServer struct {
	mu   sync.Mutex
	docs map[protocol.DocumentUri]*document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP(version string) *LspServer {
	s := &LspServer{
		docs:    make(map[protocol.DocumentUri]*document),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Infof("initializing %s %s", lspName, s.version)

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	log.Info("shutting down")
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx.Notify, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.update(ctx.Notify, params.TextDocument.URI, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.close(ctx.Notify, params.TextDocument.URI)
	return nil
}

// update re-analyzes a document and publishes its diagnostics.
func (s *LspServer) update(notify notifyFunc, uri protocol.DocumentUri, text string) {
	doc := analyze(uri, text)

	s.mu.Lock()
	// Keep offering the last known variables while the text does not parse.
	if prev := s.docs[uri]; prev != nil && doc.analysis == nil {
		doc.symbols = prev.symbols
	}
	s.docs[uri] = doc
	s.mu.Unlock()

	log.Debugf("%s: %d diagnostics", uri, doc.diags.Len())
	go notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: doc.protocolDiagnostics(),
	})
}

// close forgets a document and clears its diagnostics.
func (s *LspServer) close(notify notifyFunc, uri protocol.DocumentUri) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()

	go notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
}

func (s *LspServer) document(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[uri]
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.hover(params.Position), nil
}

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.complete(params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	loc := doc.definition(params.Position)
	if loc == nil {
		return nil, nil
	}
	return loc, nil
}

func (d *document) hover(pos protocol.Position) *protocol.Hover {
	sym, span, ok := d.symbolAt(d.fromProtocol(pos))
	if !ok {
		return nil
	}
	rng := d.toRange(span)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: fmt.Sprintf("**%s**: `%s` (slot %d)", sym.Name, sym.Type, sym.Slot),
		},
		Range: &rng,
	}
}

func (d *document) definition(pos protocol.Position) *protocol.Location {
	sym, _, ok := d.symbolAt(d.fromProtocol(pos))
	if !ok {
		return nil
	}
	let, ok := d.declaration(sym)
	if !ok {
		return nil
	}
	return &protocol.Location{URI: d.uri, Range: d.toRange(let.NameSpan)}
}

// complete offers declared variables and keywords matching the identifier
// before the cursor. Variables come first, in declaration order.
func (d *document) complete(pos protocol.Position) []protocol.CompletionItem {
	prefix := extractPrefix(d.text, pos)
	items := []protocol.CompletionItem{}

	for _, sym := range d.symbols {
		if !strings.HasPrefix(sym.Name, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindVariable
		detail := sym.Type.String()
		items = append(items, protocol.CompletionItem{
			Label:  sym.Name,
			Kind:   &kind,
			Detail: &detail,
		})
	}

	for _, kw := range compiler.Keywords() {
		if !strings.HasPrefix(kw, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindKeyword
		items = append(items, protocol.CompletionItem{Label: kw, Kind: &kind})
	}
	return items
}

func boolPtr(b bool) *bool {
	return &b
}

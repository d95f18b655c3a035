// Package server provides the KolibriScript language server: parse
// diagnostics, keyword completion and hover documentation over LSP.
package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/kolibri-node/kolibri/script"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "kolibri-lsp"

// LspServer publishes KolibriScript language features to an editor.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: "0.1.0",
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
	commonlog.NewInfoMessage(0, "Kolibri LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

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
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := Diagnose(text)
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// Diagnose parses a document and converts the parser's messages into LSP
// diagnostics.
func Diagnose(text string) []protocol.Diagnostic {
	_, msgs := script.Parse(text)

	diagnostics := make([]protocol.Diagnostic, 0, len(msgs))
	severity := protocol.DiagnosticSeverityError
	source := lspName
	for _, msg := range msgs {
		line, rest := splitDiagnostic(msg)
		rng := protocol.Range{
			Start: protocol.Position{Line: line, Character: 0},
			End:   protocol.Position{Line: line, Character: 999},
		}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    rng,
			Severity: &severity,
			Source:   &source,
			Message:  rest,
		})
	}
	return diagnostics
}

// splitDiagnostic extracts the zero-based line from a "line N: msg"
// parser message.
func splitDiagnostic(msg string) (protocol.UInteger, string) {
	var line int
	var rest string
	if n, err := fmt.Sscanf(msg, "line %d: ", &line); err == nil && n == 1 {
		if idx := strings.Index(msg, ": "); idx >= 0 {
			rest = msg[idx+2:]
		}
		if line > 0 {
			return protocol.UInteger(line - 1), rest
		}
	}
	return 0, msg
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	kind := protocol.CompletionItemKindKeyword
	texts := script.KeywordTexts()
	sort.Strings(texts)

	items := make([]protocol.CompletionItem, 0, len(texts))
	for _, kw := range texts {
		items = append(items, protocol.CompletionItem{
			Label: kw,
			Kind:  &kind,
		})
	}
	return items, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	word := extractWord(text, pos)
	doc, ok := keywordDocs[word]
	if !ok {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: fmt.Sprintf("**%s**\n\n%s", word, doc),
		},
	}, nil
}

// keywordDocs holds hover text for the statement-forming keywords.
var keywordDocs = map[string]string{
	"начало":      "Открывает программу: `начало:`.",
	"конец":       "Закрывает программу или блок. Программа завершается `конец.`",
	"показать":    "Печатает значение выражения.",
	"переменная":  "Присваивание: `переменная имя = выражение`.",
	"режим":       "Устанавливает режим ответа: neutral, journal, emoji, analytics.",
	"обучить":     "Сохраняет ассоциацию: `обучить связь вопрос -> ответ`.",
	"создать":     "Регистрирует формулу: `создать формулу имя из выражение`.",
	"оценить":     "Запускает формулу на задаче; результат попадает в `итог`.",
	"сохранить":   "Записывает лучший ген в геном-журнал.",
	"отбросить":   "Удаляет формулу по имени.",
	"вызвать":     "Запускает одно поколение эволюции: `вызвать эволюцию`.",
	"распечатать": "Печатает канву (заглушка).",
	"рой":         "Ставит ген в очередь на отправку пирам: `рой отправить имя`.",
	"если":        "Ветвление: `если условие тогда ... иначе ... конец`.",
	"пока":        "Цикл: `пока условие делать ... конец`.",
	"фитнес":      "В выражении: последний фитнес формулы, `фитнес имя`.",
	"итог":        "Переменная с результатом последней оценки.",
}

// extractWord returns the word under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[int(pos.Line)]

	runes := []rune(line)
	col := int(pos.Character)
	if col > len(runes) {
		col = len(runes)
	}

	isWord := func(r rune) bool {
		return r != ' ' && r != '\t' && r != ':' && r != '.' && r != '"' &&
			r != '=' && r != '<' && r != '>'
	}

	start := col
	for start > 0 && isWord(runes[start-1]) {
		start--
	}
	end := col
	for end < len(runes) && isWord(runes[end]) {
		end++
	}
	return string(runes[start:end])
}

func boolPtr(b bool) *bool {
	return &b
}

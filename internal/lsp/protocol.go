package lsp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tidwall/gjson"
)

// Method names used by the shell.
const (
	MethodInitialize             = "initialize"
	MethodInitialized            = "initialized"
	MethodShutdown               = "shutdown"
	MethodExit                   = "exit"
	MethodHover                  = "textDocument/hover"
	MethodDefinition             = "textDocument/definition"
	MethodTypeDefinition         = "textDocument/typeDefinition"
	MethodReferences             = "textDocument/references"
	MethodCompletion             = "textDocument/completion"
	MethodSignatureHelp          = "textDocument/signatureHelp"
	MethodDocumentSymbol         = "textDocument/documentSymbol"
	MethodFormatting             = "textDocument/formatting"
	MethodRename                 = "textDocument/rename"
	MethodDidOpen                = "textDocument/didOpen"
	MethodDidClose               = "textDocument/didClose"
	MethodDidSave                = "textDocument/didSave"
	MethodWorkspaceSymbol        = "workspace/symbol"
	MethodDidChangeConfiguration = "workspace/didChangeConfiguration"
	MethodWorkspaceConfiguration = "workspace/configuration"
	MethodLogMessage             = "window/logMessage"
	MethodShowMessage            = "window/showMessage"
	MethodPublishDiagnostics     = "textDocument/publishDiagnostics"
)

// DocumentURI represents a URI as used in LSP.
// It is typically a file:// URI.
type DocumentURI string

// Position in a text document expressed as zero-based line and character offset.
// Character offset is measured in UTF-16 code units per the LSP specification.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range in a text document expressed as start and end positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location represents a location inside a resource.
type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

// TextDocumentIdentifier identifies a text document.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// TextDocumentItem is an item to transfer a text document from the client to the server.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentPositionParams is a parameter literal used in requests to pass
// a text document and a position inside that document.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// TextEdit represents a textual edit applicable to a text document.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// MarkupKind describes the content type.
type MarkupKind string

const (
	MarkupKindPlainText MarkupKind = "plaintext"
	MarkupKindMarkdown  MarkupKind = "markdown"
)

// Command represents a reference to a command.
type Command struct {
	Title     string `json:"title"`
	Command   string `json:"command"`
	Arguments []any  `json:"arguments,omitempty"`
}

// WorkspaceFolder represents a workspace folder.
type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

// WorkspaceEdit represents changes to many resources managed in the workspace.
type WorkspaceEdit struct {
	Changes         map[DocumentURI][]TextEdit `json:"changes,omitempty"`
	DocumentChanges []any                      `json:"documentChanges,omitempty"`
}

// NoParams stands in for methods that take no parameters.
// It encodes as null, which the client omits from the request.
type NoParams struct{}

// MarshalJSON implements json.Marshaler.
func (NoParams) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// --- Initialize ---

// ClientInfo identifies the client to the server.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeParams are the parameters sent in an initialize request.
type InitializeParams struct {
	ProcessID             *int               `json:"processId"`
	ClientInfo            *ClientInfo        `json:"clientInfo,omitempty"`
	Locale                string             `json:"locale,omitempty"`
	RootURI               DocumentURI        `json:"rootUri,omitempty"`
	RootPath              string             `json:"rootPath,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions any                `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
	Trace                 string             `json:"trace,omitempty"`
}

// InitializeResult is the result of the initialize request.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerInfo contains information about the language server from initialization.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeError is the error data of a failed initialize request.
type InitializeError struct {
	// Retry tells the client to retry the request after showing the message.
	Retry bool `json:"retry"`
}

// InitializedParams are the parameters sent in an initialized notification.
type InitializedParams struct{}

// --- Capabilities ---

// ClientCapabilities define capabilities the shell advertises on the client side.
type ClientCapabilities struct {
	Workspace    *WorkspaceClientCapabilities    `json:"workspace,omitempty"`
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
	Window       *WindowClientCapabilities       `json:"window,omitempty"`
}

// WorkspaceClientCapabilities define capabilities the client provides on the workspace.
type WorkspaceClientCapabilities struct {
	ApplyEdit        bool `json:"applyEdit,omitempty"`
	WorkspaceFolders bool `json:"workspaceFolders,omitempty"`
	Configuration    bool `json:"configuration,omitempty"`
}

// TextDocumentClientCapabilities define capabilities for text documents.
type TextDocumentClientCapabilities struct {
	Synchronization *SyncClientCapabilities   `json:"synchronization,omitempty"`
	Completion      *CompletionCapabilities   `json:"completion,omitempty"`
	Hover           *ContentFormatCapability  `json:"hover,omitempty"`
	SignatureHelp   *SignatureHelpCapability  `json:"signatureHelp,omitempty"`
	Definition      *LinkSupportCapability    `json:"definition,omitempty"`
	TypeDefinition  *LinkSupportCapability    `json:"typeDefinition,omitempty"`
	References      *DynamicCapability        `json:"references,omitempty"`
	DocumentSymbol  *DocumentSymbolCapability `json:"documentSymbol,omitempty"`
	Formatting      *DynamicCapability        `json:"formatting,omitempty"`
	Rename          *RenameCapability         `json:"rename,omitempty"`
	Diagnostics     *DiagnosticsCapability    `json:"publishDiagnostics,omitempty"`
}

// SyncClientCapabilities define capabilities for text document sync.
type SyncClientCapabilities struct {
	DidSave bool `json:"didSave,omitempty"`
}

// CompletionCapabilities define capabilities for completion.
type CompletionCapabilities struct {
	CompletionItem *CompletionItemCapabilities `json:"completionItem,omitempty"`
	ContextSupport bool                        `json:"contextSupport,omitempty"`
}

// CompletionItemCapabilities define capabilities for completion items.
type CompletionItemCapabilities struct {
	SnippetSupport      bool         `json:"snippetSupport,omitempty"`
	DocumentationFormat []MarkupKind `json:"documentationFormat,omitempty"`
}

// ContentFormatCapability lists accepted markup kinds.
type ContentFormatCapability struct {
	ContentFormat []MarkupKind `json:"contentFormat,omitempty"`
}

// SignatureHelpCapability define capabilities for signature help.
type SignatureHelpCapability struct {
	ContextSupport bool `json:"contextSupport,omitempty"`
}

// LinkSupportCapability is shared by definition-like requests.
type LinkSupportCapability struct {
	LinkSupport bool `json:"linkSupport,omitempty"`
}

// DynamicCapability is the minimal capability object.
type DynamicCapability struct {
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
}

// DocumentSymbolCapability define capabilities for document symbols.
type DocumentSymbolCapability struct {
	HierarchicalDocumentSymbolSupport bool `json:"hierarchicalDocumentSymbolSupport,omitempty"`
}

// RenameCapability define capabilities for rename.
type RenameCapability struct {
	PrepareSupport bool `json:"prepareSupport,omitempty"`
}

// DiagnosticsCapability define capabilities for published diagnostics.
type DiagnosticsCapability struct {
	RelatedInformation bool `json:"relatedInformation,omitempty"`
	VersionSupport     bool `json:"versionSupport,omitempty"`
}

// WindowClientCapabilities define capabilities for the window.
type WindowClientCapabilities struct {
	WorkDoneProgress bool `json:"workDoneProgress,omitempty"`
}

// ServerCapabilities define capabilities provided by the server.
// Provider fields are either booleans or option objects, so they stay untyped.
type ServerCapabilities struct {
	PositionEncoding           string `json:"positionEncoding,omitempty"`
	TextDocumentSync           any    `json:"textDocumentSync,omitempty"`
	CompletionProvider         any    `json:"completionProvider,omitempty"`
	HoverProvider              any    `json:"hoverProvider,omitempty"`
	SignatureHelpProvider      any    `json:"signatureHelpProvider,omitempty"`
	DefinitionProvider         any    `json:"definitionProvider,omitempty"`
	TypeDefinitionProvider     any    `json:"typeDefinitionProvider,omitempty"`
	ReferencesProvider         any    `json:"referencesProvider,omitempty"`
	DocumentSymbolProvider     any    `json:"documentSymbolProvider,omitempty"`
	WorkspaceSymbolProvider    any    `json:"workspaceSymbolProvider,omitempty"`
	DocumentFormattingProvider any    `json:"documentFormattingProvider,omitempty"`
	RenameProvider             any    `json:"renameProvider,omitempty"`
	Workspace                  any    `json:"workspace,omitempty"`
}

// --- Document Sync ---

// DidOpenTextDocumentParams are parameters for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidCloseTextDocumentParams are parameters for textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidSaveTextDocumentParams are parameters for textDocument/didSave.
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         string                 `json:"text,omitempty"`
}

// DidChangeConfigurationParams are parameters for workspace/didChangeConfiguration.
type DidChangeConfigurationParams struct {
	Settings any `json:"settings"`
}

// --- Completion ---

// CompletionParams are parameters for textDocument/completion.
type CompletionParams struct {
	TextDocumentPositionParams
	Context *CompletionContext `json:"context,omitempty"`
}

// CompletionContext contains additional information about the context.
type CompletionContext struct {
	TriggerKind      int    `json:"triggerKind"`
	TriggerCharacter string `json:"triggerCharacter,omitempty"`
}

// CompletionTriggerKindInvoked marks completion invoked explicitly by the user.
const CompletionTriggerKindInvoked = 1

// CompletionList represents a collection of completion items.
// A bare array of items in a response decodes into the Items field.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// UnmarshalJSON accepts both CompletionList and CompletionItem[] results.
func (l *CompletionList) UnmarshalJSON(data []byte) error {
	if gjson.ParseBytes(data).IsArray() {
		var items []CompletionItem
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("completion items: %w", err)
		}
		*l = CompletionList{Items: items}
		return nil
	}

	type plain CompletionList
	var list plain
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("completion list: %w", err)
	}
	*l = CompletionList(list)
	return nil
}

// CompletionItem represents a completion suggestion.
type CompletionItem struct {
	Label            string     `json:"label"`
	Kind             int        `json:"kind,omitempty"`
	Detail           string     `json:"detail,omitempty"`
	Documentation    any        `json:"documentation,omitempty"` // string or MarkupContent
	SortText         string     `json:"sortText,omitempty"`
	FilterText       string     `json:"filterText,omitempty"`
	InsertText       string     `json:"insertText,omitempty"`
	InsertTextFormat int        `json:"insertTextFormat,omitempty"`
	TextEdit         any        `json:"textEdit,omitempty"` // TextEdit or InsertReplaceEdit
	Command          *Command   `json:"command,omitempty"`
	Data             any        `json:"data,omitempty"`
	Deprecated       bool       `json:"deprecated,omitempty"`
	Preselect        bool       `json:"preselect,omitempty"`
	AdditionalEdits  []TextEdit `json:"additionalTextEdits,omitempty"`
}

// --- Hover ---

// HoverParams are parameters for textDocument/hover.
type HoverParams struct {
	TextDocumentPositionParams
}

// Hover represents hover information.
type Hover struct {
	Contents any    `json:"contents"` // MarkupContent, MarkedString or MarkedString[]
	Range    *Range `json:"range,omitempty"`
}

// --- Diagnostics ---

// PublishDiagnosticsParams are parameters for textDocument/publishDiagnostics.
type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Version     int          `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Diagnostic represents a diagnostic (error, warning, info, hint).
type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity,omitempty"`
	Code     any    `json:"code,omitempty"` // string or number
	Source   string `json:"source,omitempty"`
	Message  string `json:"message"`
}

// --- Formatting ---

// DocumentFormattingParams are parameters for textDocument/formatting.
type DocumentFormattingParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Options      FormattingOptions      `json:"options"`
}

// FormattingOptions describe options for formatting.
type FormattingOptions struct {
	TabSize                int  `json:"tabSize"`
	InsertSpaces           bool `json:"insertSpaces"`
	TrimTrailingWhitespace bool `json:"trimTrailingWhitespace,omitempty"`
	InsertFinalNewline     bool `json:"insertFinalNewline,omitempty"`
}

// --- Rename ---

// RenameParams are parameters for textDocument/rename.
type RenameParams struct {
	TextDocumentPositionParams
	NewName string `json:"newName"`
}

// --- References ---

// ReferenceParams are parameters for textDocument/references.
type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

// ReferenceContext contains additional information for reference requests.
type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// Locations is the result of definition-like requests. The server may answer
// with a single Location, a Location array, a LocationLink array or null;
// links are normalized to their target.
type Locations []Location

// UnmarshalJSON implements json.Unmarshaler.
func (l *Locations) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	switch {
	case res.Type == gjson.Null:
		*l = nil
		return nil
	case res.IsObject():
		var loc Location
		if err := json.Unmarshal(data, &loc); err != nil {
			return fmt.Errorf("location: %w", err)
		}
		*l = Locations{loc}
		return nil
	case !res.IsArray():
		return fmt.Errorf("location result: unexpected %s", res.Type)
	}

	if res.Get("0.targetUri").Exists() {
		var links []struct {
			TargetURI   DocumentURI `json:"targetUri"`
			TargetRange Range       `json:"targetSelectionRange"`
		}
		if err := json.Unmarshal(data, &links); err != nil {
			return fmt.Errorf("location links: %w", err)
		}
		out := make(Locations, 0, len(links))
		for _, link := range links {
			out = append(out, Location{URI: link.TargetURI, Range: link.TargetRange})
		}
		*l = out
		return nil
	}

	var locs []Location
	if err := json.Unmarshal(data, &locs); err != nil {
		return fmt.Errorf("locations: %w", err)
	}
	*l = locs
	return nil
}

// --- Signature Help ---

// SignatureHelpParams are parameters for textDocument/signatureHelp.
type SignatureHelpParams struct {
	TextDocumentPositionParams
}

// SignatureHelp represents signature help.
type SignatureHelp struct {
	Signatures      []SignatureInformation `json:"signatures"`
	ActiveSignature int                    `json:"activeSignature,omitempty"`
	ActiveParameter int                    `json:"activeParameter,omitempty"`
}

// SignatureInformation represents a signature.
type SignatureInformation struct {
	Label         string `json:"label"`
	Documentation any    `json:"documentation,omitempty"` // string or MarkupContent
	Parameters    []any  `json:"parameters,omitempty"`
}

// --- Symbols ---

// DocumentSymbolParams are parameters for textDocument/documentSymbol.
type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DocumentSymbol represents a symbol in a document.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           int              `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// SymbolInformation represents information about a symbol.
type SymbolInformation struct {
	Name          string   `json:"name"`
	Kind          int      `json:"kind"`
	Location      Location `json:"location"`
	ContainerName string   `json:"containerName,omitempty"`
}

// DocumentSymbols is the result of textDocument/documentSymbol, which is
// either hierarchical (DocumentSymbol[]) or flat (SymbolInformation[]).
type DocumentSymbols struct {
	Hierarchical []DocumentSymbol
	Flat         []SymbolInformation
}

// UnmarshalJSON picks the shape by looking for a location on the first entry.
func (s *DocumentSymbols) UnmarshalJSON(data []byte) error {
	*s = DocumentSymbols{}
	if gjson.GetBytes(data, "0.location").Exists() {
		return json.Unmarshal(data, &s.Flat)
	}
	return json.Unmarshal(data, &s.Hierarchical)
}

// MarshalJSON writes back whichever shape was received.
func (s DocumentSymbols) MarshalJSON() ([]byte, error) {
	if s.Flat != nil {
		return json.Marshal(s.Flat)
	}
	if s.Hierarchical == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Hierarchical)
}

// WorkspaceSymbolParams are parameters for workspace/symbol.
type WorkspaceSymbolParams struct {
	Query string `json:"query"`
}

// --- Window ---

// LogMessageParams are parameters of window/logMessage and window/showMessage.
type LogMessageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

// --- Utility Functions ---

// FilePathToURI converts a file path to a DocumentURI.
func FilePathToURI(path string) DocumentURI {
	if path == "" {
		return ""
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	path = filepath.ToSlash(path)

	// On Windows, add extra slash for drive letter
	if runtime.GOOS == "windows" && len(path) >= 2 && path[1] == ':' {
		path = "/" + path
	}

	u := &url.URL{
		Scheme: "file",
		Path:   path,
	}

	return DocumentURI(u.String())
}

// URIToFilePath converts a DocumentURI to a file path.
func URIToFilePath(uri DocumentURI) string {
	if uri == "" {
		return ""
	}

	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}

	path := u.Path

	// On Windows, remove leading slash before drive letter
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path)
}

// DefaultClientCapabilities returns the capabilities the shell advertises.
func DefaultClientCapabilities() ClientCapabilities {
	docFormats := []MarkupKind{MarkupKindMarkdown, MarkupKindPlainText}
	return ClientCapabilities{
		Workspace: &WorkspaceClientCapabilities{
			WorkspaceFolders: true,
			Configuration:    true,
		},
		TextDocument: &TextDocumentClientCapabilities{
			Synchronization: &SyncClientCapabilities{DidSave: true},
			Completion: &CompletionCapabilities{
				CompletionItem: &CompletionItemCapabilities{DocumentationFormat: docFormats},
				ContextSupport: true,
			},
			Hover:          &ContentFormatCapability{ContentFormat: docFormats},
			SignatureHelp:  &SignatureHelpCapability{ContextSupport: true},
			Definition:     &LinkSupportCapability{LinkSupport: true},
			TypeDefinition: &LinkSupportCapability{LinkSupport: true},
			References:     &DynamicCapability{},
			DocumentSymbol: &DocumentSymbolCapability{HierarchicalDocumentSymbolSupport: true},
			Formatting:     &DynamicCapability{},
			Rename:         &RenameCapability{},
			Diagnostics:    &DiagnosticsCapability{RelatedInformation: true, VersionSupport: true},
		},
		Window: &WindowClientCapabilities{},
	}
}

// DetectLanguageID returns the LSP language ID for a file path.
func DetectLanguageID(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".ts":
		return "typescript"
	case ".tsx":
		return "typescriptreact"
	case ".js":
		return "javascript"
	case ".jsx":
		return "javascriptreact"
	case ".py":
		return "python"
	case ".rb":
		return "ruby"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".cxx", ".hpp":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".lua":
		return "lua"
	case ".sh", ".bash":
		return "shellscript"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".html", ".htm":
		return "html"
	case ".css":
		return "css"
	case ".md", ".markdown":
		return "markdown"
	case ".zig":
		return "zig"
	}

	switch strings.ToLower(filepath.Base(path)) {
	case "dockerfile":
		return "dockerfile"
	case "makefile", "gnumakefile":
		return "makefile"
	}
	return "plaintext"
}

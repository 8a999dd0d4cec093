package command

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/lsp-shell/internal/lsp"
)

const (
	positionUsage  = "<file> <line> <character>"
	defaultTabSize = 4
)

// Default returns the registry of built-in commands. client identifies the
// shell in initialize requests.
func Default(client lsp.ClientInfo) *Registry {
	return NewRegistry().MustRegister(
		// Requests.
		NewRequest[lsp.InitializeParams, lsp.InitializeResult, lsp.InitializeError](
			"initialize", lsp.MethodInitialize, "[root-dir]", buildInitialize(client), "init"),
		NewRequest[lsp.NoParams, *struct{}, any](
			"shutdown", lsp.MethodShutdown, "", noArgs[lsp.NoParams]),
		NewRequest[lsp.HoverParams, *lsp.Hover, any](
			"hover", lsp.MethodHover, positionUsage, buildHover),
		NewRequest[lsp.TextDocumentPositionParams, lsp.Locations, any](
			"definition", lsp.MethodDefinition, positionUsage, buildPosition, "def"),
		NewRequest[lsp.TextDocumentPositionParams, lsp.Locations, any](
			"typeDefinition", lsp.MethodTypeDefinition, positionUsage, buildPosition),
		NewRequest[lsp.ReferenceParams, lsp.Locations, any](
			"references", lsp.MethodReferences, positionUsage, buildReferences, "refs"),
		NewRequest[lsp.CompletionParams, *lsp.CompletionList, any](
			"completion", lsp.MethodCompletion, positionUsage, buildCompletion),
		NewRequest[lsp.SignatureHelpParams, *lsp.SignatureHelp, any](
			"signatureHelp", lsp.MethodSignatureHelp, positionUsage, buildSignatureHelp),
		NewRequest[lsp.DocumentSymbolParams, lsp.DocumentSymbols, any](
			"documentSymbol", lsp.MethodDocumentSymbol, "<file>", buildDocumentSymbol, "symbols"),
		NewRequest[lsp.WorkspaceSymbolParams, []lsp.SymbolInformation, any](
			"workspaceSymbol", lsp.MethodWorkspaceSymbol, "[query...]", buildWorkspaceSymbol),
		NewRequest[lsp.DocumentFormattingParams, []lsp.TextEdit, any](
			"formatting", lsp.MethodFormatting, "<file> [tabSize]", buildFormatting, "format"),
		NewRequest[lsp.RenameParams, *lsp.WorkspaceEdit, any](
			"rename", lsp.MethodRename, positionUsage+" <newName>", buildRename),

		// Notifications.
		NewNotification[lsp.InitializedParams](
			"initialized", lsp.MethodInitialized, "", noArgs[lsp.InitializedParams]),
		NewNotification[lsp.NoParams](
			"exit", lsp.MethodExit, "", noArgs[lsp.NoParams]),
		NewNotification[lsp.DidOpenTextDocumentParams](
			"didOpen", lsp.MethodDidOpen, "<file> [languageId]", buildDidOpen, "open"),
		NewNotification[lsp.DidCloseTextDocumentParams](
			"didClose", lsp.MethodDidClose, "<file>", buildDidClose, "close"),
		NewNotification[lsp.DidSaveTextDocumentParams](
			"didSave", lsp.MethodDidSave, "<file>", buildDidSave, "save"),
		NewNotification[lsp.DidChangeConfigurationParams](
			"didChangeConfiguration", lsp.MethodDidChangeConfiguration, "[settings-json]", buildDidChangeConfiguration),
	)
}

// --- Argument helpers ---

func noArgs[P any](args []string) (P, error) {
	var p P
	if len(args) > 0 {
		return p, fmt.Errorf("%w: %q", ErrTooManyArguments, args[0])
	}
	return p, nil
}

// expect checks that args holds the named arguments, the last optional
// ones allowed to be absent.
func expect(args []string, required []string, optional int) error {
	if len(args) < len(required) {
		return missing(required[len(args)])
	}
	if len(args) > len(required)+optional {
		return fmt.Errorf("%w: %q", ErrTooManyArguments, args[len(required)+optional])
	}
	return nil
}

func parseIndex(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, invalid(name, value, "is not an integer")
	}
	if n < 0 {
		return 0, invalid(name, value, "is negative")
	}
	return n, nil
}

func documentURI(path string) (lsp.DocumentURI, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", invalid("file", path, err.Error())
	}
	return lsp.FilePathToURI(abs), nil
}

func textDocument(path string) (lsp.TextDocumentIdentifier, error) {
	uri, err := documentURI(path)
	return lsp.TextDocumentIdentifier{URI: uri}, err
}

// positionArgs parses the leading <file> <line> <character> triple.
// The caller has checked the argument count.
func positionArgs(args []string) (lsp.TextDocumentPositionParams, error) {
	var p lsp.TextDocumentPositionParams
	doc, err := textDocument(args[0])
	if err != nil {
		return p, err
	}
	line, err := parseIndex("line", args[1])
	if err != nil {
		return p, err
	}
	char, err := parseIndex("character", args[2])
	if err != nil {
		return p, err
	}

	p.TextDocument = doc
	p.Position = lsp.Position{Line: line, Character: char}
	return p, nil
}

// --- Request builders ---

func buildInitialize(client lsp.ClientInfo) Builder[lsp.InitializeParams] {
	return func(args []string) (lsp.InitializeParams, error) {
		var p lsp.InitializeParams
		if err := expect(args, nil, 1); err != nil {
			return p, err
		}

		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		root, err := filepath.Abs(root)
		if err != nil {
			return p, invalid("root-dir", root, err.Error())
		}
		uri := lsp.FilePathToURI(root)

		ci := client
		pid := os.Getpid()
		p = lsp.InitializeParams{
			ProcessID:    &pid,
			ClientInfo:   &ci,
			RootURI:      uri,
			RootPath:     root,
			Capabilities: lsp.DefaultClientCapabilities(),
			WorkspaceFolders: []lsp.WorkspaceFolder{
				{URI: uri, Name: filepath.Base(root)},
			},
		}
		return p, nil
	}
}

func buildPosition(args []string) (lsp.TextDocumentPositionParams, error) {
	if err := expect(args, []string{"file", "line", "character"}, 0); err != nil {
		return lsp.TextDocumentPositionParams{}, err
	}
	return positionArgs(args)
}

func buildHover(args []string) (lsp.HoverParams, error) {
	pos, err := buildPosition(args)
	return lsp.HoverParams{TextDocumentPositionParams: pos}, err
}

func buildSignatureHelp(args []string) (lsp.SignatureHelpParams, error) {
	pos, err := buildPosition(args)
	return lsp.SignatureHelpParams{TextDocumentPositionParams: pos}, err
}

func buildReferences(args []string) (lsp.ReferenceParams, error) {
	pos, err := buildPosition(args)
	return lsp.ReferenceParams{
		TextDocumentPositionParams: pos,
		Context:                    lsp.ReferenceContext{IncludeDeclaration: true},
	}, err
}

func buildCompletion(args []string) (lsp.CompletionParams, error) {
	pos, err := buildPosition(args)
	return lsp.CompletionParams{
		TextDocumentPositionParams: pos,
		Context:                    &lsp.CompletionContext{TriggerKind: lsp.CompletionTriggerKindInvoked},
	}, err
}

func buildRename(args []string) (lsp.RenameParams, error) {
	var p lsp.RenameParams
	if err := expect(args, []string{"file", "line", "character", "newName"}, 0); err != nil {
		return p, err
	}
	pos, err := positionArgs(args)
	if err != nil {
		return p, err
	}
	return lsp.RenameParams{TextDocumentPositionParams: pos, NewName: args[3]}, nil
}

func buildDocumentSymbol(args []string) (lsp.DocumentSymbolParams, error) {
	var p lsp.DocumentSymbolParams
	if err := expect(args, []string{"file"}, 0); err != nil {
		return p, err
	}
	doc, err := textDocument(args[0])
	p.TextDocument = doc
	return p, err
}

func buildWorkspaceSymbol(args []string) (lsp.WorkspaceSymbolParams, error) {
	return lsp.WorkspaceSymbolParams{Query: strings.Join(args, " ")}, nil
}

func buildFormatting(args []string) (lsp.DocumentFormattingParams, error) {
	var p lsp.DocumentFormattingParams
	if err := expect(args, []string{"file"}, 1); err != nil {
		return p, err
	}
	doc, err := textDocument(args[0])
	if err != nil {
		return p, err
	}

	tabSize := defaultTabSize
	if len(args) == 2 {
		tabSize, err = parseIndex("tabSize", args[1])
		if err != nil {
			return p, err
		}
	}

	p.TextDocument = doc
	p.Options = lsp.FormattingOptions{TabSize: tabSize, InsertSpaces: true}
	return p, nil
}

// --- Notification builders ---

func buildDidOpen(args []string) (lsp.DidOpenTextDocumentParams, error) {
	var p lsp.DidOpenTextDocumentParams
	if err := expect(args, []string{"file"}, 1); err != nil {
		return p, err
	}
	uri, err := documentURI(args[0])
	if err != nil {
		return p, err
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return p, invalid("file", args[0], err.Error())
	}

	languageID := lsp.DetectLanguageID(args[0])
	if len(args) == 2 {
		languageID = args[1]
	}

	p.TextDocument = lsp.TextDocumentItem{
		URI:        uri,
		LanguageID: languageID,
		Version:    1,
		Text:       string(content),
	}
	return p, nil
}

func buildDidClose(args []string) (lsp.DidCloseTextDocumentParams, error) {
	var p lsp.DidCloseTextDocumentParams
	if err := expect(args, []string{"file"}, 0); err != nil {
		return p, err
	}
	doc, err := textDocument(args[0])
	p.TextDocument = doc
	return p, err
}

func buildDidSave(args []string) (lsp.DidSaveTextDocumentParams, error) {
	var p lsp.DidSaveTextDocumentParams
	if err := expect(args, []string{"file"}, 0); err != nil {
		return p, err
	}
	doc, err := textDocument(args[0])
	p.TextDocument = doc
	return p, err
}

// buildDidChangeConfiguration joins its arguments into one JSON document,
// so settings may contain spaces.
func buildDidChangeConfiguration(args []string) (lsp.DidChangeConfigurationParams, error) {
	p := lsp.DidChangeConfigurationParams{Settings: map[string]any{}}
	if len(args) == 0 {
		return p, nil
	}

	raw := strings.Join(args, " ")
	if !gjson.Valid(raw) {
		return p, invalid("settings-json", raw, "is not valid JSON")
	}
	if err := json.Unmarshal([]byte(raw), &p.Settings); err != nil {
		return p, invalid("settings-json", raw, err.Error())
	}
	return p, nil
}

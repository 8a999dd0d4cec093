// Package command holds the closed set of LSP commands the shell can send.
//
// Each command is a descriptor whose Go type carries the method's parameter,
// result and error-data types:
//
//	NewRequest[lsp.HoverParams, *lsp.Hover, any]("hover", lsp.MethodHover,
//	    "<file> <line> <character>", buildHover)
//
// The shell only sees the untyped Request and Notification interfaces.
// Prepare turns shell arguments into parameters, and the returned Call or
// Send sends them; Call.Invoke decodes the response against the
// descriptor's own types and classifies it as an Outcome.
//
// # Arguments
//
// Every command takes its positional arguments followed by any number of
// path=value overrides, which are set on the JSON form of the parameters:
//
//	request initialize /src/project initializationOptions.usePlaceholders=true
//	request formatting main.go options.insertSpaces=false
//
// A value that is valid JSON is used as JSON, anything else as a string.
// A positional argument that itself contains '=' is protected with --;
// everything before it is positional and everything after it an override:
//
//	request workspaceSymbol a=b --
//	request rename main.go 3 5 x=y -- position.line=4
//
// # Adding a method
//
// Add one NewRequest or NewNotification value to Default. Nothing in the
// shell needs to change.
package command

// Package shell implements the interactive loop that drives one language
// server session.
//
// A Shell reads a line, splits it on whitespace and hands the tokens to the
// Dispatcher, which recognizes the control words:
//
//	exit | quit | q
//	help | h
//	start | s <program> [args...]     (or a configured preset)
//	request | req | r <name> [args...]
//	notify | not | n <name> [args...]
//
// Requests and notifications are resolved through a command.Registry. A
// request reserves the next id from the Session before its parameters are
// built and gives it back if building fails, so the ids that reach the
// server are 1, 2, 3, ... without gaps. Notifications never touch the
// counter. Both require a started server.
//
// The Interpreter prints each outcome: the failure message for a transport
// failure, the pretty-printed result for a success, and the message plus
// any pretty-printed data for an application error.
//
// Nothing a line does escapes that line except a failed start when
// Config.ExitOnSpawnError is set.
package shell

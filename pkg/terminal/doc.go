// Package terminal configures the local session's input mode.
//
// The controller is dumb, line-buffered, whenever the injected Platform
// reports that raw input is unavailable; otherwise the DumbTerminal flag
// decides. In raw mode keystrokes flow through a KeyForwarder into an
// editor.TerminalEditor and Ctrl-C becomes the editor's SIGINT event. In dumb
// mode stdin is read line by line and OS interrupt signals become SIGINT.
package terminal

// Package editor provides the line-editing facilities that feed sessions.
//
// Every editor reads its transport on its own goroutine and posts events to a
// reactor.Loop, so handlers registered with On run one at a time on the loop
// goroutine. Three editors are provided:
//
//   - StreamEditor: newline-delimited text over any byte stream (TCP
//     connections and the local terminal in dumb mode)
//   - TerminalEditor: interactive line editing on a raw-mode terminal, built
//     on golang.org/x/term
//   - WebSocketEditor: text frames over a gorilla/websocket connection
//
// History records the lines accepted by the local session and persists them
// on exit.
package editor

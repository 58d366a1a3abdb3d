// Command lumina-host runs the privileged browser-shell host process:
// tab registry, voice-agent supervisor, stream relay, and the WebSocket
// bridge the UI process drives them through.
package main

// Command duzhibot runs the text adventure bot: as a LINE webhook server, as an MCP server or
// as a chat in the terminal.
package main

func main() {
	Execute()
}

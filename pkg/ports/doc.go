/*
Package ports defines the driven ports (interfaces) around the bot.

These interfaces decouple the chat core from external implementations, so the same bot can be
served over a webhook, a terminal or MCP, and persisted to any backend.

# Key Interfaces

  - Bot: runs one message against a session state and returns the next state.
  - StateStore: persists and loads session State.
  - DistributedLocker: serializes concurrent messages for the same session across replicas.
  - ReplySender: delivers replies back to the chat channel.
*/
package ports

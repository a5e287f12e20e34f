/*
Package domain contains the core models shared by the bot, its stores and its adapters.

It is kept free of I/O so that persistence and transport adapters can depend on it without
depending on each other.

# Key Entities

  - State: the persisted snapshot of one chat session (current path, session data, recent history).
  - Message: a reply produced while a command runs (text or image, with optional quick replies).
  - LifecycleHooks: observability callbacks fired by the bot.
*/
package domain

/*
Package line adapts the LINE Messaging API SDK to the bot: it checks webhook signatures, decodes
webhook events and sends replies.

Events other than text messages from a user decode fine but carry no text, and callers skip them.
*/
package line

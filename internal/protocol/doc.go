// Package protocol encodes commands for, and decodes replies from, the
// Z-Wave controller's line protocol.
//
// The wire format is text: records are separated by '#', fields within
// a record by '~', and a device record's last field is a space-joined
// attribute blob carrying "Basic=<value>" among other tokens. Every
// record starts with a '~', so the first split field is always empty.
//
// Replies carry no type tag of their own. Dispatch is by explicit
// Kind, supplied by the caller from the request that solicited the
// reply; only the literal "UPDATE" push is self-describing. All
// functions here are pure; the package holds no state.
package protocol

// Package ime runs the text service as a Linux input method.
//
// Engine adapts IBus engine callbacks to a service session over an
// in-memory host document: the active composition is shown as preedit
// text and committed to the application when it ends. Server exposes
// engines on D-Bus through the IBus factory protocol.
package ime

// Package render turns pages into HTML on the server.
//
// A page asks for data through Context.UseFetchState. When the data is not
// ready yet the call returns a *SuspendError and the page returns it; the
// Renderer waits for the pending call and runs the page again, so a page is
// written as if its data were always available.
package render

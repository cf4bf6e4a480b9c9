// Package procexec runs external encoder processes and captures their exit
// status plus a bounded tail of stderr for diagnostics.
//
// Every Run waits for the child before returning, including on context
// cancellation, so no process outlives the call that started it.
package procexec

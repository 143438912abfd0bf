// Package shellexec runs a command on behalf of a calling process and
// reports its lifecycle through a status file.
package shellexec

// Version is the released version of shellexec.
const Version = "0.3.0"

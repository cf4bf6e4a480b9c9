// Package logs reads the OATS log file for the 'oats logs' command.
//
// Last returns the trailing lines and an offset; Follow polls from that
// offset and streams complete lines as batches append them.
package logs

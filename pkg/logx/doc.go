// Package logx is hwbot's thin layer over zerolog: value-type loggers
// with fixed fields, console and JSON file sinks, and a Service whose
// level and sinks can be swapped on config reload.
package logx

// Package daemon turns a foreground invocation into a detached, singleton
// background server: re-exec in a new session, take a non-blocking lock on a
// sentinel file, point stdout and stderr at a log file, and report readiness
// to systemd when running under it.
package daemon
